package emulator

import (
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/ezrec/armsim/cpu"
)

// Watch is a compiled Starlark condition over the CPU state.
//
// The expression sees r0..r15, sp, lr, pc, the flags n, z, c and v,
// halted, and mem(address) which reads a word of memory.
type Watch struct {
	Expr string
}

var watchOptions = syntax.FileOptions{}

// Eval evaluates the watch against the emulator state.
func (w *Watch) Eval(emu *Emulator) (hit bool, err error) {
	thread := &starlark.Thread{Name: "watch"}

	rc, err := starlark.EvalOptions(&watchOptions, thread, "watch", w.Expr, environment(emu))
	if err != nil {
		err = &ErrWatch{Expr: w.Expr, Err: err}
		return
	}

	value, ok := rc.(starlark.Bool)
	if !ok {
		err = &ErrWatch{Expr: w.Expr, Err: ErrWatchType}
		return
	}

	hit = bool(value)
	return
}

// environment builds the predeclared names for a watch.
func environment(emu *Emulator) starlark.StringDict {
	c := emu.Cpu

	env := make(starlark.StringDict, cpu.REGISTER_COUNT+10)
	for n, reg := range c.Register {
		env[fmt.Sprintf("r%d", n)] = starlark.MakeInt(int(reg))
	}
	env["sp"] = env["r13"]
	env["lr"] = env["r14"]
	env["pc"] = env["r15"]

	env["n"] = starlark.Bool(c.Flag(cpu.FLAG_N))
	env["z"] = starlark.Bool(c.Flag(cpu.FLAG_Z))
	env["c"] = starlark.Bool(c.Flag(cpu.FLAG_C))
	env["v"] = starlark.Bool(c.Flag(cpu.FLAG_V))
	env["halted"] = starlark.Bool(c.Halted())

	env["mem"] = starlark.NewBuiltin("mem", func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var address int
		err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &address)
		if err != nil {
			return nil, err
		}
		word, err := emu.Memory.Read32(address)
		if err != nil {
			return nil, err
		}
		return starlark.MakeInt(int(int32(word))), nil
	})

	return env
}
