package vm

import (
	"math"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Builtin primitives
// ---------------------------------------------------------------------------

func TestBuiltinPrimitives(t *testing.T) {
	vm, _ := newTestVM(t, nil)
	i := func(v int64) Value { return vm.NewInteger(v) }
	f := func(v float64) Value { return vm.NewFloat(v) }
	s := func(v string) Value { return vm.NewString(v) }

	tests := []struct {
		recv     Value
		selector string
		args     []Value
		want     string
	}{
		// Integer arithmetic
		{i(3), "+", []Value{i(4)}, "7"},
		{i(3), "-", []Value{i(10)}, "-7"},
		{i(6), "*", []Value{i(7)}, "42"},
		{i(6), "/", []Value{i(3)}, "2"},
		{i(7), "/", []Value{i(2)}, "3.5"},
		{i(-7), "//", []Value{i(2)}, "-4"},
		{i(-7), "\\\\", []Value{i(2)}, "1"},
		{i(7), "\\\\", []Value{i(-2)}, "-1"},
		{i(3), "+", []Value{f(0.5)}, "3.5"},
		{i(3), "negated", nil, "-3"},
		{i(3), "asFloat", nil, "3.0"},
		{i(12), "asString", nil, "'12'"},

		// Comparison and equality
		{i(3), "<", []Value{i(4)}, "true"},
		{i(3), ">=", []Value{f(3.5)}, "false"},
		{i(3), "=", []Value{f(3)}, "true"},
		{i(3), "=", []Value{s("3")}, "false"},
		{i(3), "~=", []Value{s("3")}, "true"},

		// Float
		{f(1.5), "*", []Value{i(2)}, "3.0"},
		{f(1), "/", []Value{f(4)}, "0.25"},
		{f(2.5), "<=", []Value{f(2.5)}, "true"},
		{f(3.7), "asInteger", nil, "3"},
		{f(-3.7), "asInteger", nil, "-3"},
		{f(2), "negated", nil, "-2.0"},

		// Boolean
		{vm.True, "&", []Value{vm.False}, "false"},
		{vm.True, "|", []Value{vm.False}, "true"},
		{vm.False, "not", nil, "true"},
		{vm.True, "asString", nil, "'true'"},

		// String
		{s("ab"), ",", []Value{s("cd")}, "'abcd'"},
		{s("héllo"), "size", nil, "5"},
		{s("abc"), "at:", []Value{i(2)}, "'b'"},
		{s("abc"), "=", []Value{s("abc")}, "true"},
		{s("abc"), "asString", nil, "'abc'"},

		// Object
		{i(3), "==", []Value{i(3)}, "true"},
		{s("a"), "==", []Value{s("a")}, "false"},
		{s("a"), "~~", []Value{s("a")}, "true"},
		{Nil, "isNil", nil, "true"},
		{i(1), "notNil", nil, "true"},
		{i(3), "class", nil, "Integer"},
		{s("x"), "printString", nil, "''x''"},
		{Nil, "printString", nil, "'nil'"},

		// Class side
		{vm.IntegerClass, "name", nil, "'Integer'"},
		{vm.IntegerClass, "superclass", nil, "Object"},
		{vm.ObjectClass, "superclass", nil, "nil"},
		{vm.StringClass, "new", nil, "''"},
		{vm.ArrayClass, "new", nil, "an Array"},
	}
	for _, tt := range tests {
		result, err := sendTo(vm, tt.recv, tt.selector, tt.args...)
		if err != nil {
			t.Errorf("%s %s: %v", RenderValue(tt.recv), tt.selector, err)
			continue
		}
		if got := RenderValue(result); got != tt.want {
			t.Errorf("%s %s %v = %s, want %s", RenderValue(tt.recv), tt.selector, tt.args, got, tt.want)
		}
	}
}

func TestPrimitiveErrors(t *testing.T) {
	vm, _ := newTestVM(t, nil)
	i := func(v int64) Value { return vm.NewInteger(v) }
	s := func(v string) Value { return vm.NewString(v) }

	tests := []struct {
		recv     Value
		selector string
		args     []Value
		want     ErrorKind
	}{
		{i(1), "/", []Value{i(0)}, VMException},
		{i(1), "//", []Value{i(0)}, VMException},
		{vm.NewFloat(1), "/", []Value{i(0)}, VMException},
		{i(1), "+", []Value{s("a")}, TypeError},
		{i(1), "<", []Value{Nil}, TypeError},
		{i(1), "//", []Value{vm.NewFloat(2)}, TypeError},
		{vm.True, "&", []Value{i(1)}, TypeError},
		{s("a"), ",", []Value{i(3)}, TypeError},
		{s("abc"), "at:", []Value{i(4)}, IndexOutOfRange},
		{s("abc"), "at:", []Value{i(0)}, IndexOutOfRange},
		{s("abc"), "at:", []Value{s("1")}, TypeError},
		{vm.IntegerClass, "new", nil, TypeError},
		{vm.BooleanClass, "new", nil, TypeError},
		{vm.BlockClass, "new", nil, TypeError},
		{vm.ArrayClass, "new:", []Value{i(-1)}, IndexOutOfRange},
		{i(1), "error:", []Value{s("boom")}, VMException},
	}
	for _, tt := range tests {
		_, err := sendTo(vm, tt.recv, tt.selector, tt.args...)
		if k, ok := KindOf(err); !ok || k != tt.want {
			t.Errorf("%s %s %v: err = %v, want %s", RenderValue(tt.recv), tt.selector, tt.args, err, tt.want)
		}
	}
}

func TestTypeErrorNamesBothClasses(t *testing.T) {
	vm, _ := newTestVM(t, nil)
	_, err := sendTo(vm, vm.NewInteger(1), "+", vm.NewString("a"))
	re := expectKind(t, err, TypeError)
	if !strings.Contains(re.Message, "Integer") || !strings.Contains(re.Message, "String") {
		t.Errorf("message = %q", re.Message)
	}
}

func TestArrayPrimitives(t *testing.T) {
	vm, _ := newTestVM(t, nil)

	// a := Array new: 3. a at: 2 put: 'x'. ^a
	b := NewBlockBuilder("test", 0).SetLocals(1)
	b.PushGlobal("Array").PushInt(3).Send("new:", 1).StoreLocal(0, 0).Emit(OpPop)
	b.PushLocal(0, 0).PushInt(2).PushLiteral("x").Send("at:put:", 2).Emit(OpPop)
	b.PushLocal(0, 0).Emit(OpReturn)
	arr, ok := mustExec(t, vm, Nil, b.Build()).(*Object)
	if !ok || arr.Class() != vm.ArrayClass {
		t.Fatalf("result is not an Array: %v", arr)
	}
	if len(arr.Fields) != 3 || arr.Fields[0] != Nil || RenderValue(arr.Fields[1]) != "'x'" {
		t.Errorf("fields = %v", arr.Fields)
	}

	_, err := sendTo(vm, vm.ArrayClass, "new:", vm.NewString("3"))
	expectKind(t, err, TypeError)

	b = NewBlockBuilder("test", 0)
	b.PushGlobal("Array").Send("new", 0).PushInt(1).Send("at:", 1)
	_, err = vm.Exec(Nil, b.Build())
	expectKind(t, err, IndexOutOfRange)
}

func TestHashAgreesWithEquality(t *testing.T) {
	vm, _ := newTestVM(t, nil)
	if vm.hash(vm.NewInteger(3)) != vm.hash(vm.NewFloat(3)) {
		t.Error("3 and 3.0 are equal but hash differently")
	}
	if vm.hash(vm.NewString("abc")) != vm.hash(vm.NewString("abc")) {
		t.Error("equal strings hash differently")
	}
	obj := vm.NewObject(vm.ObjectClass)
	if vm.hash(obj) != vm.hash(obj) {
		t.Error("identity hash not stable")
	}
	if vm.hash(obj) == vm.hash(vm.NewObject(vm.ObjectClass)) {
		t.Error("distinct objects share an identity hash")
	}
}

func TestTranscriptShow(t *testing.T) {
	vm, out := newTestVM(t, nil)
	transcript, _ := vm.Globals.Get("Transcript")

	b := NewBlockBuilder("test", 0)
	b.PushGlobal("Transcript").PushLiteral("hi").Send("show:", 1).Emit(OpReturn)
	result := mustExec(t, vm, Nil, b.Build())
	if out.String() != "hi\n" {
		t.Errorf("output = %q, want %q", out.String(), "hi\n")
	}
	if result != transcript {
		t.Errorf("show: returned %v, want the Transcript", result)
	}

	out.Reset()
	b = NewBlockBuilder("test", 0)
	b.PushGlobal("Transcript").PushInt(42).Send("show:", 1)
	b.Send("tab", 0).Send("space", 0).Send("cr", 0).Emit(OpReturn)
	mustExec(t, vm, Nil, b.Build())
	if out.String() != "42\n\t \n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestPrimitiveBoundByDeclaration(t *testing.T) {
	prog := &Program{
		Classes: []*ClassDecl{
			{Name: "Logger", Superclass: "TranscriptStream",
				Methods: []*MethodDecl{{Selector: "log:", Primitive: "TranscriptStream_SHOW"}}},
			{Name: "Main",
				Methods: []*MethodDecl{{Selector: "say:", Primitive: "TranscriptStream_SHOW"}}},
		},
	}
	vm, out := newTestVM(t, prog)
	logger, _ := vm.Globals.Class("Logger")
	main, _ := vm.Globals.Class("Main")

	if _, err := sendTo(vm, vm.NewObject(logger), "log:", vm.NewString("x")); err != nil {
		t.Fatal(err)
	}
	if out.String() != "x\n" {
		t.Errorf("output = %q", out.String())
	}

	_, err := sendTo(vm, vm.NewObject(main), "say:", vm.NewString("x"))
	expectKind(t, err, TypeError)
}

func TestPrimitiveTable(t *testing.T) {
	vm, _ := newTestVM(t, nil)

	p, ok := vm.Primitives.ByID("TranscriptStream_SHOW")
	if !ok {
		t.Fatal("TranscriptStream_SHOW not registered")
	}
	if p.Selector != "show:" || p.Arity != 1 || p.Class != vm.TranscriptStreamClass {
		t.Errorf("primitive = %+v", p)
	}
	if p.MethodName() != "TranscriptStream>>show:" {
		t.Errorf("MethodName = %q", p.MethodName())
	}

	m, owner := vm.IntegerClass.Lookup("==")
	if got, ok := m.(*Primitive); !ok || got.ID != "Object_IDENTICAL" || owner != vm.ObjectClass {
		t.Errorf("inherited lookup = %v from %v", m, owner)
	}
	if _, ok := vm.Primitives.ByID("Nope_NOPE"); ok {
		t.Error("unexpected primitive")
	}
	ids := vm.Primitives.IDs()
	if len(ids) != vm.Primitives.Len() {
		t.Errorf("IDs() has %d entries, Len() = %d", len(ids), vm.Primitives.Len())
	}
	for i := 1; i < len(ids); i++ {
		if ids[i-1] >= ids[i] {
			t.Fatalf("IDs not sorted at %d: %q >= %q", i, ids[i-1], ids[i])
		}
	}
}

func TestMixedNumberEqualityIsExact(t *testing.T) {
	vm, _ := newTestVM(t, nil)
	big := vm.NewInteger(1<<53 + 1)
	rounded := vm.NewFloat(1 << 53)

	if Equal(big, rounded) || Equal(rounded, big) {
		t.Error("2^53+1 = 2.0^53 should be false")
	}
	if !Equal(vm.NewInteger(1<<53), rounded) {
		t.Error("2^53 = 2.0^53 should be true")
	}
	if Equal(vm.NewInteger(3), vm.NewFloat(3.5)) || Equal(vm.NewFloat(math.Inf(1)), vm.NewInteger(math.MaxInt64)) {
		t.Error("non-integral floats never equal integers")
	}
	for _, pair := range [][2]Value{
		{vm.NewInteger(1 << 53), rounded},
		{vm.NewInteger(math.MinInt64), vm.NewFloat(math.MinInt64)},
		{vm.NewInteger(-7), vm.NewFloat(-7)},
	} {
		if !Equal(pair[0], pair[1]) {
			t.Errorf("%s = %s should be true", RenderValue(pair[0]), RenderValue(pair[1]))
		}
		if vm.hash(pair[0]) != vm.hash(pair[1]) {
			t.Errorf("%s and %s are equal but hash differently", RenderValue(pair[0]), RenderValue(pair[1]))
		}
	}
}
