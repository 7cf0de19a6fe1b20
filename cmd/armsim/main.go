// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tebeka/atexit"

	"github.com/ezrec/armsim/emulator"
	"github.com/ezrec/armsim/translate"
)

// lineList collects repeated -b flags.
type lineList []int

func (ll *lineList) String() string {
	return fmt.Sprint(*ll)
}

func (ll *lineList) Set(value string) (err error) {
	lineno, err := strconv.Atoi(value)
	if err != nil {
		return
	}
	*ll = append(*ll, lineno)
	return
}

// exprList collects repeated -w flags.
type exprList []string

func (el *exprList) String() string {
	return strings.Join(*el, ", ")
}

func (el *exprList) Set(value string) error {
	*el = append(*el, value)
	return nil
}

// parseRange decodes an address:length memory range.
func parseRange(text string) (address int, count int, err error) {
	addr, length, ok := strings.Cut(text, ":")
	if !ok {
		err = fmt.Errorf("%v: expected address:length", text)
		return
	}

	v64, err := strconv.ParseInt(addr, 0, 32)
	if err != nil {
		return
	}
	address = int(v64)

	v64, err = strconv.ParseInt(length, 0, 32)
	if err != nil {
		return
	}
	count = int(v64)

	return
}

func main() {
	var steps int
	var breakpoints lineList
	var watches exprList
	var dump string
	var listing bool
	var verbose bool

	flag.IntVar(&steps, "n", emulator.RUN_STEPS, "Maximum steps to execute")
	flag.Var(&breakpoints, "b", "Breakpoint source line (repeatable)")
	flag.Var(&watches, "w", "Watch expression (repeatable)")
	flag.StringVar(&dump, "m", "", "Memory to dump after the run, as address:length")
	flag.BoolVar(&listing, "l", false, "Print the program listing, do not execute")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")

	flag.Parse()

	if flag.NArg() != 1 {
		atexit.Fatalf("%v: expected one source file, got: %v", os.Args[0], flag.Args())
	}
	source := flag.Arg(0)

	emu := emulator.NewEmulator()
	emu.Verbose = verbose

	inf, err := os.Open(source)
	if err != nil {
		atexit.Fatalf("%v: %v", source, err)
	}
	atexit.Register(func() { inf.Close() })

	err = emu.Load(inf)
	if err != nil {
		atexit.Fatalf("%v: %v", source, err)
	}

	if listing {
		fmt.Print(emu.Program.String())
		atexit.Exit(0)
	}

	for _, lineno := range breakpoints {
		emu.SetBreakpoint(lineno)
	}

	for _, expr := range watches {
		err = emu.Watch(expr)
		if err != nil {
			atexit.Fatalf("%v: %v", source, err)
		}
	}

	ran, stop, err := emu.Run(steps)
	translate.Fprintf(os.Stdout, "%v: %d steps, stopped by %v at line %d\n", source, ran, stop, emu.LineNo())
	fmt.Print(emu.Cpu.String())
	if err != nil {
		atexit.Fatalf("%v: %v", source, err)
	}

	if len(dump) != 0 {
		address, count, err := parseRange(dump)
		if err != nil {
			atexit.Fatalf("-m %v: %v", dump, err)
		}
		rows, err := emu.Dump(address, count)
		if err != nil {
			atexit.Fatalf("-m %v: %v", dump, err)
		}
		for address, row := range rows {
			translate.Fprintf(os.Stdout, "%04x: % x\n", address, row)
		}
	}

	atexit.Exit(0)
}
