// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"regexp"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Assembler is a two pass assembler for the armsim instruction set.
//
// The Assembler holds no state between calls; every call builds and
// discards its own symbol table, so a single Assembler may be shared.
type Assembler struct {
	Verbose bool // If set, verbosely logs the assembler actions.
}

// sourceLine is a tokenized line of assembly text.
type sourceLine struct {
	LineNo   int      // 1-based line number.
	Line     string   // Original text.
	Label    string   // Label declared on the line, upper case.
	HasOp    bool     // Set if the line holds an instruction.
	Op       Op       // Decoded opcode.
	Operands []string // Operand tokens.
	Address  int      // Address assigned in layout.
}

var (
	reLabel    = regexp.MustCompile(`^([A-Za-z0-9_]+):(.*)$`)
	reOpcode   = regexp.MustCompile(`^([A-Za-z]+)(?:\s+(.*))?$`)
	reRegister = regexp.MustCompile(`^R(\d+)$`)
	reExpr     = regexp.MustCompile(`\$\([^\$]*\)`)
)

// regAlias are the named registers.
var regAlias = map[string]int{
	"SP": REG_SP,
	"LR": REG_LR,
	"PC": REG_PC,
}

// Assemble assembles source text into a Program.
func (asm *Assembler) Assemble(text string) (prog *Program, err error) {
	return asm.Parse(strings.NewReader(text))
}

// Parse parses an input stream into a Program of resolved instructions.
// On any error no Program is returned.
func (asm *Assembler) Parse(input io.Reader) (prog *Program, err error) {
	lines, err := asm.tokenize(input)
	if err != nil {
		return
	}

	labels := asm.layout(lines)

	insts, err := asm.resolve(lines, labels)
	if err != nil {
		return
	}

	prog = &Program{
		Instructions: insts,
	}

	return
}

// tokenize strips comments, splits labels from instructions, and checks
// the opcodes.
func (asm *Assembler) tokenize(input io.Reader) (lines []*sourceLine, err error) {
	scanner := bufio.NewScanner(input)

	var lineno int
	for scanner.Scan() {
		text := scanner.Text()
		lineno += 1

		if asm.Verbose {
			log.Printf("%v: %v\n", lineno, text)
		}

		var line *sourceLine
		line, err = parseLine(text, lineno)
		if err != nil {
			err = &ErrSyntax{LineNo: lineno, Line: text, Err: err}
			return
		}
		if line != nil {
			lines = append(lines, line)
		}
	}

	err = scanner.Err()
	if err != nil {
		err = &ErrSyntax{LineNo: lineno + 1, Err: err}
	}

	return
}

// parseLine tokenizes a single line. Blank and comment lines return nil.
func parseLine(text string, lineno int) (line *sourceLine, err error) {
	clean := text
	if n := strings.IndexAny(clean, ";@"); n >= 0 {
		clean = clean[:n]
	}
	clean = strings.TrimSpace(clean)
	if len(clean) == 0 {
		return
	}

	line = &sourceLine{LineNo: lineno, Line: text}

	if match := reLabel.FindStringSubmatch(clean); match != nil {
		line.Label = strings.ToUpper(match[1])
		clean = strings.TrimSpace(match[2])
		if len(clean) == 0 {
			return
		}
	}

	match := reOpcode.FindStringSubmatch(clean)
	if match == nil {
		err = ErrInvalidSyntax
		return
	}

	op, ok := LookupOp(match[1])
	if !ok {
		err = ErrOpcode(strings.ToUpper(match[1]))
		return
	}

	line.HasOp = true
	line.Op = op
	line.Operands = splitOperands(match[2])

	return
}

// splitOperands splits on commas outside of [...] and $(...).
func splitOperands(text string) (words []string) {
	var current strings.Builder
	var depth int

	for _, ch := range text {
		switch ch {
		case '[', '(':
			depth++
		case ']', ')':
			depth--
		}
		if ch == ',' && depth == 0 {
			words = append(words, strings.TrimSpace(current.String()))
			current.Reset()
			continue
		}
		current.WriteRune(ch)
	}

	if last := strings.TrimSpace(current.String()); len(last) != 0 {
		words = append(words, last)
	}

	return
}

// layout assigns instruction addresses, and returns the symbol table.
// Labels take the address of the next instruction; redefinition
// overwrites.
func (asm *Assembler) layout(lines []*sourceLine) (labels map[string]int) {
	labels = make(map[string]int, 16)

	address := 0
	for _, line := range lines {
		if len(line.Label) != 0 {
			if asm.Verbose {
				if _, ok := labels[line.Label]; ok {
					log.Printf("%v: label %v redefined", line.LineNo, line.Label)
				}
			}
			labels[line.Label] = address
		}
		if line.HasOp {
			line.Address = address
			address += INSTRUCTION_SIZE
		}
	}

	return
}

// resolve classifies all operands and builds the instruction list.
func (asm *Assembler) resolve(lines []*sourceLine, labels map[string]int) (insts []Instruction, err error) {
	for _, line := range lines {
		if !line.HasOp {
			continue
		}

		operands := make([]Operand, 0, len(line.Operands))
		for _, word := range line.Operands {
			var operand Operand
			operand, err = asm.operand(word, labels, line.LineNo)
			if err != nil {
				err = &ErrResolve{LineNo: line.LineNo, Operand: word, Err: err}
				return
			}
			operands = append(operands, operand)
		}

		err = checkShape(line.Op, operands)
		if err != nil {
			err = &ErrSyntax{LineNo: line.LineNo, Line: line.Line, Err: err}
			return
		}

		insts = append(insts, Instruction{
			Op:       line.Op,
			Operands: operands,
			LineNo:   line.LineNo,
			Address:  line.Address,
			Line:     line.Line,
		})
	}

	return
}

// operand classifies a single operand token.
func (asm *Assembler) operand(word string, labels map[string]int, lineno int) (operand Operand, err error) {
	word, err = asm.expand(word, labels, lineno)
	if err != nil {
		return
	}

	word = strings.ToUpper(strings.TrimSpace(word))

	if reg, ok := registerOf(word); ok {
		operand = Register(reg)
		return
	}

	if strings.HasPrefix(word, "#") {
		var value int32
		value, err = valueOf(word[1:])
		operand = Immediate(value)
		return
	}

	if strings.HasPrefix(word, "[") {
		operand, err = memoryOf(word)
		return
	}

	if address, ok := labels[word]; ok {
		operand = Label(word, address)
		return
	}

	if v64, perr := strconv.ParseInt(word, 10, 32); perr == nil {
		operand = Immediate(int32(v64))
		return
	}

	err = ErrOperandUnknown
	return
}

// registerOf decodes R0-R15, SP, LR and PC.
func registerOf(word string) (reg int, ok bool) {
	reg, ok = regAlias[word]
	if ok {
		return
	}

	match := reRegister.FindStringSubmatch(word)
	if match == nil {
		return
	}

	reg, err := strconv.Atoi(match[1])
	ok = err == nil && reg < REGISTER_COUNT
	return
}

// valueOf parses a signed decimal or 0x hexadecimal immediate. Values up
// to 0xffffffff are accepted and wrap to signed 32 bits.
func valueOf(word string) (value int32, err error) {
	digits, negative := strings.CutPrefix(word, "-")

	base := 10
	if hex, ok := strings.CutPrefix(strings.ToUpper(digits), "0X"); ok {
		digits = hex
		base = 16
	}

	u64, err := strconv.ParseUint(digits, base, 64)
	if err != nil || u64 > 0xffffffff {
		err = ErrParseNumber(word)
		return
	}

	v64 := int64(u64)
	if negative {
		v64 = -v64
	}
	if v64 < -int64(0x80000000) {
		err = ErrParseNumber(word)
		return
	}

	value = int32(uint32(v64))
	return
}

// memoryOf decodes [Rn] and [Rn, #imm]. The offset is kept, not applied.
// Only an immediate offset is accepted; [Rn, Rm] is ErrMemoryOffset.
func memoryOf(word string) (operand Operand, err error) {
	if !strings.HasSuffix(word, "]") {
		err = ErrMemoryBase
		return
	}

	inner := word[1 : len(word)-1]
	base, offset, has_offset := strings.Cut(inner, ",")

	reg, ok := registerOf(strings.TrimSpace(base))
	if !ok {
		err = ErrMemoryBase
		return
	}
	operand = Memory(reg)

	if has_offset {
		offset = strings.TrimSpace(offset)
		if !strings.HasPrefix(offset, "#") {
			err = ErrMemoryOffset
			return
		}
		operand.Offset, err = valueOf(offset[1:])
	}

	return
}

// expand does compile-time $(...) evaluations. Every label is visible,
// in upper and lower case, along with LINENO.
func (asm *Assembler) expand(word string, labels map[string]int, lineno int) (out string, err error) {
	if !strings.Contains(word, "$(") {
		out = word
		return
	}

	pred := starlark.StringDict{
		"LINENO": starlark.MakeInt(lineno),
	}
	for name, address := range labels {
		pred[name] = starlark.MakeInt(address)
		pred[strings.ToLower(name)] = starlark.MakeInt(address)
	}

	out = reExpr.ReplaceAllStringFunc(word, func(str string) string {
		value, _err := parenEval(str[2:len(str)-1], pred)
		if _err != nil {
			err = _err
		}
		return fmt.Sprintf("%d", value)
	})

	if asm.Verbose && err == nil {
		log.Printf("%v: %v => %v", lineno, word, out)
	}

	return
}

// parenEval evaluates an integer expression with Starlark.
func parenEval(expr string, pred starlark.StringDict) (value int64, err error) {
	thread := &starlark.Thread{Name: "expr"}
	opts := syntax.FileOptions{}

	rc, err := starlark.EvalOptions(&opts, thread, "expr", expr, pred)
	if err != nil {
		err = errors.Join(ErrParseExpression(expr), err)
		return
	}

	st_int, ok := rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}

	value, ok = st_int.Int64()
	if !ok {
		err = ErrParseExpression(expr)
		return
	}

	return
}
