package image

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/chazu/stvm/vm"
	"github.com/fxamacker/cbor/v2"
)

// Magic opens every binary image. The byte after it is the format version.
const (
	Magic   = "STVM"
	Version = 1
)

var (
	// ErrBadMagic is returned for data that is not a binary image.
	ErrBadMagic = errors.New("image: missing STVM header")
	// ErrUnsupportedVersion is returned for images written by a newer encoder.
	ErrUnsupportedVersion = errors.New("image: unsupported version")
)

var (
	cborEncMode cbor.EncMode
	cborDecMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("image: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em

	dm, err := cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("image: failed to create CBOR dec mode: %v", err))
	}
	cborDecMode = dm
}

// ---------------------------------------------------------------------------
// Wire types
// ---------------------------------------------------------------------------

type wireProgram struct {
	Classes       []*wireClass `cbor:"1,keyasint,omitempty"`
	EntryClass    string       `cbor:"2,keyasint,omitempty"`
	EntrySelector string       `cbor:"3,keyasint,omitempty"`
}

type wireClass struct {
	Name         string        `cbor:"1,keyasint"`
	Superclass   string        `cbor:"2,keyasint,omitempty"`
	InstVars     []string      `cbor:"3,keyasint,omitempty"`
	Methods      []*wireMethod `cbor:"4,keyasint,omitempty"`
	ClassMethods []*wireMethod `cbor:"5,keyasint,omitempty"`
}

type wireMethod struct {
	Selector  string     `cbor:"1,keyasint"`
	Block     *wireBlock `cbor:"2,keyasint,omitempty"`
	Primitive string     `cbor:"3,keyasint,omitempty"`
}

type wireBlock struct {
	Name          string       `cbor:"1,keyasint"`
	QualifiedName string       `cbor:"2,keyasint,omitempty"`
	NumArgs       int          `cbor:"3,keyasint,omitempty"`
	NumLocals     int          `cbor:"4,keyasint,omitempty"`
	MaxStack      int          `cbor:"5,keyasint,omitempty"`
	Bytecode      []byte       `cbor:"6,keyasint,omitempty"`
	Literals      []string     `cbor:"7,keyasint,omitempty"`
	Blocks        []*wireBlock `cbor:"8,keyasint,omitempty"`
}

// ---------------------------------------------------------------------------
// Marshal / Unmarshal
// ---------------------------------------------------------------------------

// Marshal encodes prog as a binary image. The encoding is canonical, so
// equal programs produce identical bytes.
func Marshal(prog *vm.Program) ([]byte, error) {
	body, err := cborEncMode.Marshal(toWire(prog))
	if err != nil {
		return nil, fmt.Errorf("image: marshal: %w", err)
	}
	var buf bytes.Buffer
	buf.Grow(len(Magic) + 1 + len(body))
	buf.WriteString(Magic)
	buf.WriteByte(Version)
	buf.Write(body)
	return buf.Bytes(), nil
}

// Unmarshal decodes a binary image. Nested blocks are relinked to their
// home methods.
func Unmarshal(data []byte) (*vm.Program, error) {
	if len(data) < len(Magic)+1 || string(data[:len(Magic)]) != Magic {
		return nil, ErrBadMagic
	}
	if v := data[len(Magic)]; v != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	var w wireProgram
	if err := cborDecMode.Unmarshal(data[len(Magic)+1:], &w); err != nil {
		return nil, fmt.Errorf("image: unmarshal: %w", err)
	}
	return fromWire(&w)
}

func toWire(prog *vm.Program) *wireProgram {
	w := &wireProgram{
		EntryClass:    prog.Entry.Class,
		EntrySelector: prog.Entry.Selector,
	}
	for _, c := range prog.Classes {
		wc := &wireClass{
			Name:       c.Name,
			Superclass: c.Superclass,
			InstVars:   c.InstVars,
		}
		for _, m := range c.Methods {
			wc.Methods = append(wc.Methods, toWireMethod(m))
		}
		for _, m := range c.ClassMethods {
			wc.ClassMethods = append(wc.ClassMethods, toWireMethod(m))
		}
		w.Classes = append(w.Classes, wc)
	}
	return w
}

func toWireMethod(m *vm.MethodDecl) *wireMethod {
	return &wireMethod{
		Selector:  m.Selector,
		Block:     toWireBlock(m.Block),
		Primitive: m.Primitive,
	}
}

func toWireBlock(b *vm.CompiledBlock) *wireBlock {
	if b == nil {
		return nil
	}
	wb := &wireBlock{
		Name:          b.Name,
		QualifiedName: b.QualifiedName,
		NumArgs:       b.NumArgs,
		NumLocals:     b.NumLocals,
		MaxStack:      b.MaxStack,
		Bytecode:      b.Bytecode,
		Literals:      b.Literals,
	}
	for _, nested := range b.Blocks {
		wb.Blocks = append(wb.Blocks, toWireBlock(nested))
	}
	return wb
}

func fromWire(w *wireProgram) (*vm.Program, error) {
	prog := &vm.Program{
		Entry: vm.EntryPoint{Class: w.EntryClass, Selector: w.EntrySelector},
	}
	for i, wc := range w.Classes {
		if wc == nil || wc.Name == "" {
			return nil, fmt.Errorf("image: class %d has no name", i)
		}
		c := &vm.ClassDecl{
			Name:       wc.Name,
			Superclass: wc.Superclass,
			InstVars:   wc.InstVars,
		}
		var err error
		if c.Methods, err = fromWireMethods(wc.Name, wc.Methods); err != nil {
			return nil, err
		}
		if c.ClassMethods, err = fromWireMethods(wc.Name+" class", wc.ClassMethods); err != nil {
			return nil, err
		}
		prog.Classes = append(prog.Classes, c)
	}
	return prog, nil
}

func fromWireMethods(owner string, methods []*wireMethod) ([]*vm.MethodDecl, error) {
	var out []*vm.MethodDecl
	for _, wm := range methods {
		if wm == nil || wm.Selector == "" {
			return nil, fmt.Errorf("image: %s: method without selector", owner)
		}
		m := &vm.MethodDecl{Selector: wm.Selector, Primitive: wm.Primitive}
		if wm.Block != nil {
			m.Block = fromWireBlock(wm.Block)
			m.Block.Link()
		}
		out = append(out, m)
	}
	return out, nil
}

func fromWireBlock(wb *wireBlock) *vm.CompiledBlock {
	b := &vm.CompiledBlock{
		Name:          wb.Name,
		QualifiedName: wb.QualifiedName,
		NumArgs:       wb.NumArgs,
		NumLocals:     wb.NumLocals,
		MaxStack:      wb.MaxStack,
		Bytecode:      wb.Bytecode,
		Literals:      wb.Literals,
	}
	for _, nested := range wb.Blocks {
		if nested != nil {
			b.Blocks = append(b.Blocks, fromWireBlock(nested))
		}
	}
	return b
}
