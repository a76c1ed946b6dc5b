package image

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chazu/stvm/vm"
	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// YAML listings
// ---------------------------------------------------------------------------

// A listing is a program written as YAML with method bodies in assembly
// mnemonics:
//
//	entry: {class: Main, selector: main}
//	classes:
//	  - name: Main
//	    methods:
//	      - selector: main
//	        code: |
//	          push_global Transcript
//	          push_literal 'hello'
//	          send 1 show:
//	          return
//
// A line ending in a colon is a label for jump operands. Lines starting
// with # or ; are comments. Nested block bodies go under blocks: and are
// referenced by index or name.

type listing struct {
	Entry   listingEntry    `yaml:"entry"`
	Classes []*listingClass `yaml:"classes"`
}

type listingEntry struct {
	Class    string `yaml:"class"`
	Selector string `yaml:"selector"`
}

type listingClass struct {
	Name         string           `yaml:"name"`
	Superclass   string           `yaml:"superclass"`
	InstVars     []string         `yaml:"ivars"`
	Methods      []*listingMethod `yaml:"methods"`
	ClassMethods []*listingMethod `yaml:"class-methods"`
}

type listingMethod struct {
	Selector     string `yaml:"selector"`
	Primitive    string `yaml:"primitive"`
	listingBlock `yaml:",inline"`
}

type listingBlock struct {
	Name     string          `yaml:"name"`
	Args     int             `yaml:"args"`
	Locals   int             `yaml:"locals"`
	MaxStack int             `yaml:"max-stack"`
	Code     string          `yaml:"code"`
	Blocks   []*listingBlock `yaml:"blocks"`
}

// DecodeListing reads a YAML listing and assembles it into a Program.
func DecodeListing(r io.Reader) (*vm.Program, error) {
	var l listing
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&l); err != nil {
		return nil, fmt.Errorf("image: parse listing: %w", err)
	}

	prog := &vm.Program{
		Entry: vm.EntryPoint{Class: l.Entry.Class, Selector: l.Entry.Selector},
	}
	for i, lc := range l.Classes {
		if lc == nil || lc.Name == "" {
			return nil, fmt.Errorf("image: class %d has no name", i)
		}
		c := &vm.ClassDecl{Name: lc.Name, Superclass: lc.Superclass, InstVars: lc.InstVars}
		var err error
		if c.Methods, err = assembleMethods(lc.Name, lc.Methods); err != nil {
			return nil, err
		}
		if c.ClassMethods, err = assembleMethods(lc.Name+" class", lc.ClassMethods); err != nil {
			return nil, err
		}
		prog.Classes = append(prog.Classes, c)
	}
	return prog, nil
}

func assembleMethods(owner string, methods []*listingMethod) ([]*vm.MethodDecl, error) {
	var out []*vm.MethodDecl
	for _, lm := range methods {
		if lm == nil || lm.Selector == "" {
			return nil, fmt.Errorf("image: %s: method without selector", owner)
		}
		if lm.Primitive != "" {
			if lm.Code != "" || len(lm.Blocks) > 0 {
				return nil, fmt.Errorf("image: %s>>%s: a primitive method cannot have code", owner, lm.Selector)
			}
			out = append(out, &vm.MethodDecl{Selector: lm.Selector, Primitive: lm.Primitive})
			continue
		}
		lb := lm.listingBlock
		if lb.Name == "" {
			lb.Name = lm.Selector
		}
		if lb.Args == 0 {
			lb.Args = vm.SelectorArity(lm.Selector)
		}
		block, err := assemble(&lb, lm.Selector)
		if err != nil {
			return nil, fmt.Errorf("image: %s>>%s: %w", owner, lm.Selector, err)
		}
		out = append(out, &vm.MethodDecl{Selector: lm.Selector, Block: block})
	}
	return out, nil
}

// assemble builds a block body and, first, its nested blocks. prefix names
// nested blocks that have no name of their own.
func assemble(lb *listingBlock, prefix string) (*vm.CompiledBlock, error) {
	b := vm.NewBlockBuilder(lb.Name, lb.Args).SetLocals(lb.Locals).SetMaxStack(lb.MaxStack)

	names := make(map[string]int)
	for i, nested := range lb.Blocks {
		if nested == nil {
			return nil, fmt.Errorf("block %d is empty", i)
		}
		if nested.Name == "" {
			nested.Name = fmt.Sprintf("%s-block%d", prefix, i)
		}
		if _, dup := names[nested.Name]; dup {
			return nil, fmt.Errorf("duplicate block name %s", nested.Name)
		}
		child, err := assemble(nested, nested.Name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", nested.Name, err)
		}
		names[nested.Name] = b.AddBlock(child)
	}

	a := &assembler{b: b, blocks: names, labels: make(map[string]*vm.Label), marked: make(map[string]bool)}
	scanner := bufio.NewScanner(strings.NewReader(lb.Code))
	for n := 1; scanner.Scan(); n++ {
		if err := a.line(scanner.Text()); err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
	}
	for name, label := range a.labels {
		if label.Unresolved() {
			return nil, fmt.Errorf("undefined label %s", name)
		}
	}
	return b.Build(), nil
}

// ---------------------------------------------------------------------------
// Assembler
// ---------------------------------------------------------------------------

type assembler struct {
	b      *vm.BlockBuilder
	blocks map[string]int
	labels map[string]*vm.Label
	marked map[string]bool
}

func (a *assembler) label(name string) *vm.Label {
	l, ok := a.labels[name]
	if !ok {
		l = a.b.Bytecode().NewLabel()
		a.labels[name] = l
	}
	return l
}

// line assembles one source line.
func (a *assembler) line(text string) error {
	fields, err := splitFields(text)
	if err != nil {
		return err
	}
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") || strings.HasPrefix(fields[0], ";") {
		return nil
	}

	mnemonic := fields[0]
	if len(fields) == 1 && strings.HasSuffix(mnemonic, ":") {
		name := strings.TrimSuffix(mnemonic, ":")
		if a.marked[name] {
			return fmt.Errorf("duplicate label %s", name)
		}
		a.marked[name] = true
		a.b.Bytecode().Mark(a.label(name))
		return nil
	}

	op, ok := vm.OpcodeByName(mnemonic)
	if !ok {
		return fmt.Errorf("unknown instruction %q", mnemonic)
	}
	args := fields[1:]
	bc := a.b.Bytecode()

	switch op {
	case vm.OpPushInt:
		v, err := a.intArg(args, 1, 0, 32)
		if err != nil {
			return err
		}
		a.b.PushInt(int32(v))

	case vm.OpPushFloat:
		if len(args) != 1 {
			return fmt.Errorf("push_float takes 1 operand")
		}
		f, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("push_float: %w", err)
		}
		bc.EmitFloat64(vm.OpPushFloat, f)

	case vm.OpPushLiteral:
		if len(args) != 1 {
			return fmt.Errorf("push_literal takes 1 operand")
		}
		a.b.PushLiteral(args[0])

	case vm.OpPushGlobal:
		if len(args) != 1 {
			return fmt.Errorf("push_global takes 1 operand")
		}
		a.b.PushGlobal(args[0])

	case vm.OpPushLocal, vm.OpStoreLocal:
		delta, err := a.intArg(args, 2, 0, 8)
		if err != nil {
			return err
		}
		index, err := a.intArg(args, 2, 1, 8)
		if err != nil {
			return err
		}
		bc.EmitBytes(op, byte(delta), byte(index))

	case vm.OpPushField, vm.OpStoreField, vm.OpPushArray:
		v, err := a.intArg(args, 1, 0, 8)
		if err != nil {
			return err
		}
		bc.EmitByte(op, byte(v))

	case vm.OpSend, vm.OpSendSuper:
		var argc int
		var selector string
		switch len(args) {
		case 1:
			selector = args[0]
			argc = vm.SelectorArity(selector)
		case 2:
			n, err := a.intArg(args, 2, 0, 8)
			if err != nil {
				return err
			}
			argc, selector = int(n), args[1]
		default:
			return fmt.Errorf("%s takes [argc] selector", mnemonic)
		}
		if op == vm.OpSend {
			a.b.Send(selector, argc)
		} else {
			a.b.SendSuper(selector, argc)
		}

	case vm.OpJump, vm.OpJumpTrue, vm.OpJumpFalse:
		if len(args) != 1 {
			return fmt.Errorf("%s takes a label", mnemonic)
		}
		bc.EmitJump(op, a.label(args[0]))

	case vm.OpBlock:
		if len(args) != 1 {
			return fmt.Errorf("block takes an index or name")
		}
		idx, ok := a.blocks[args[0]]
		if !ok {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 0 || n >= len(a.blocks) {
				return fmt.Errorf("unknown block %s", args[0])
			}
			idx = n
		}
		bc.EmitUint16(vm.OpBlock, uint16(idx))

	case vm.OpDebug:
		if len(args) != 3 {
			return fmt.Errorf("dbg takes file line column")
		}
		line, err := a.intArg(args, 3, 1, 16)
		if err != nil {
			return err
		}
		col, err := a.intArg(args, 3, 2, 16)
		if err != nil {
			return err
		}
		a.b.Debug(args[0], int(line), int(col))

	default:
		if len(args) != 0 {
			return fmt.Errorf("%s takes no operands", mnemonic)
		}
		a.b.Emit(op)
	}
	return nil
}

// intArg parses operand i of want operands as a bits-wide integer. 32-bit
// operands are signed, narrower ones unsigned.
func (a *assembler) intArg(args []string, want, i, bits int) (int64, error) {
	if len(args) != want {
		return 0, fmt.Errorf("expected %d operands, got %d", want, len(args))
	}
	if bits == 32 {
		return strconv.ParseInt(args[i], 10, bits)
	}
	v, err := strconv.ParseUint(args[i], 10, bits)
	return int64(v), err
}

// splitFields splits an assembly line on whitespace. A single-quoted
// operand may contain spaces; a doubled quote inside it is a literal quote.
func splitFields(line string) ([]string, error) {
	var fields []string
	i := 0
	for i < len(line) {
		switch c := line[i]; {
		case c == ' ' || c == '\t':
			i++
		case c == '\'':
			var sb strings.Builder
			i++
			closed := false
			for i < len(line) {
				if line[i] == '\'' {
					if i+1 < len(line) && line[i+1] == '\'' {
						sb.WriteByte('\'')
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				sb.WriteByte(line[i])
				i++
			}
			if !closed {
				return nil, fmt.Errorf("unterminated string in %q", line)
			}
			fields = append(fields, sb.String())
		default:
			start := i
			for i < len(line) && line[i] != ' ' && line[i] != '\t' {
				i++
			}
			fields = append(fields, line[start:i])
		}
	}
	return fields, nil
}
