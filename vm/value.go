package vm

import (
	"math"
	"strconv"
	"strings"
)

// Value is a runtime object.
//
// The set of implementations is closed: Nil, *Boolean, *Integer, *Float,
// *String, *Object, *Class and *BlockDescriptor. Every value except Nil
// carries the class it was constructed with; Nil's class is supplied by the
// VM (UndefinedObject) at dispatch time.
type Value interface {
	// Class returns the class of the value, or nil for Nil.
	Class() *Class

	// AsString returns the textual form used by printing primitives and
	// diagnostics.
	AsString() string
}

// ---------------------------------------------------------------------------
// Nil
// ---------------------------------------------------------------------------

type nilValue struct{}

func (nilValue) Class() *Class    { return nil }
func (nilValue) AsString() string { return "nil" }

// Nil is the process-wide nil singleton.
var Nil Value = nilValue{}

// IsNil reports whether v is Nil.
func IsNil(v Value) bool {
	return v == Nil
}

// ---------------------------------------------------------------------------
// Immediates
// ---------------------------------------------------------------------------

// Boolean is true or false. Each VM has exactly two Boolean instances.
type Boolean struct {
	class *Class
	V     bool
}

func (b *Boolean) Class() *Class { return b.class }

func (b *Boolean) AsString() string {
	if b.V {
		return "true"
	}
	return "false"
}

// Integer is a 64-bit signed integer.
type Integer struct {
	class *Class
	V     int64
}

func (i *Integer) Class() *Class    { return i.class }
func (i *Integer) AsString() string { return strconv.FormatInt(i.V, 10) }

// Float is a 64-bit IEEE 754 float.
type Float struct {
	class *Class
	V     float64
}

func (f *Float) Class() *Class { return f.class }

// AsString always includes a decimal point for finite values so floats
// never print like integers.
func (f *Float) AsString() string {
	switch {
	case math.IsNaN(f.V):
		return "nan"
	case math.IsInf(f.V, 1):
		return "inf"
	case math.IsInf(f.V, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(f.V, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// String is an immutable text value.
type String struct {
	class *Class
	V     string
}

func (s *String) Class() *Class    { return s.class }
func (s *String) AsString() string { return s.V }

// ---------------------------------------------------------------------------
// Heap objects
// ---------------------------------------------------------------------------

// Object is an instance of a user or builtin class. Fields holds the
// instance variable slots in layout order (inherited first). Arrays are
// Objects of class Array whose fields are the elements.
type Object struct {
	class  *Class
	Fields []Value
}

func (o *Object) Class() *Class { return o.class }

func (o *Object) AsString() string {
	return article(o.class.Name) + " " + o.class.Name
}

// BlockDescriptor is a closure: a compiled block plus the context it was
// created in. Enclosing resolves outer locals; Home is the method context
// a non-local return unwinds through.
type BlockDescriptor struct {
	class     *Class
	Block     *CompiledBlock
	Enclosing *Context
	Home      *Context
}

func (b *BlockDescriptor) Class() *Class    { return b.class }
func (b *BlockDescriptor) AsString() string { return "a BlockDescriptor" }

// NumArgs returns the number of arguments the block expects.
func (b *BlockDescriptor) NumArgs() int {
	return b.Block.NumArgs
}

func article(name string) string {
	if name != "" && strings.ContainsRune("AEIOUaeiou", rune(name[0])) {
		return "an"
	}
	return "a"
}

// ---------------------------------------------------------------------------
// Identity and equality
// ---------------------------------------------------------------------------

// Identical implements ==. Immediates (nil, booleans, integers, floats)
// are identical when their payloads match; everything else compares by
// reference.
func Identical(a, b Value) bool {
	switch x := a.(type) {
	case *Integer:
		y, ok := b.(*Integer)
		return ok && x.V == y.V
	case *Float:
		y, ok := b.(*Float)
		return ok && x.V == y.V
	case *Boolean:
		y, ok := b.(*Boolean)
		return ok && x.V == y.V
	}
	return a == b
}

// Equal implements the default =. Numbers compare numerically across
// kinds, strings by content, everything else by identity.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case *Integer:
		switch y := b.(type) {
		case *Integer:
			return x.V == y.V
		case *Float:
			i, ok := floatAsInt(y.V)
			return ok && i == x.V
		}
		return false
	case *Float:
		switch y := b.(type) {
		case *Integer:
			i, ok := floatAsInt(x.V)
			return ok && i == y.V
		case *Float:
			return x.V == y.V
		}
		return false
	}
	if x, ok := a.(*String); ok {
		y, ok := b.(*String)
		return ok && x.V == y.V
	}
	return Identical(a, b)
}

// floatAsInt returns f as an int64 when f is integral and in range.
// Mixed Integer/Float equality goes through it so that it stays exact
// beyond 2^53.
func floatAsInt(f float64) (int64, bool) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// numberValue returns v as a float64 if it is an Integer or Float.
func numberValue(v Value) (float64, bool) {
	switch n := v.(type) {
	case *Integer:
		return float64(n.V), true
	case *Float:
		return n.V, true
	}
	return 0, false
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

// NewInteger returns an Integer tagged with the VM's Integer class.
func (vm *VM) NewInteger(i int64) Value {
	return &Integer{class: vm.IntegerClass, V: i}
}

// NewFloat returns a Float tagged with the VM's Float class.
func (vm *VM) NewFloat(f float64) Value {
	return &Float{class: vm.FloatClass, V: f}
}

// NewBoolean returns the VM's canonical true or false.
func (vm *VM) NewBoolean(b bool) Value {
	if b {
		return vm.True
	}
	return vm.False
}

// NewString returns a String tagged with the VM's String class.
func (vm *VM) NewString(s string) Value {
	return &String{class: vm.StringClass, V: s}
}

// NewObject returns an instance of class with every field set to nil.
func (vm *VM) NewObject(class *Class) *Object {
	fields := make([]Value, class.NumFields())
	for i := range fields {
		fields[i] = Nil
	}
	return &Object{class: class, Fields: fields}
}

// NewArray returns an Array holding elems. The slice is not copied.
func (vm *VM) NewArray(elems []Value) *Object {
	return &Object{class: vm.ArrayClass, Fields: elems}
}

// newBlock closes block over ctx.
func (vm *VM) newBlock(block *CompiledBlock, ctx *Context) *BlockDescriptor {
	return &BlockDescriptor{
		class:     vm.BlockClass,
		Block:     block,
		Enclosing: ctx,
		Home:      ctx.Home,
	}
}

// ClassOf returns the class used to dispatch messages sent to v.
func (vm *VM) ClassOf(v Value) *Class {
	if v == Nil {
		return vm.UndefinedObjectClass
	}
	return v.Class()
}
