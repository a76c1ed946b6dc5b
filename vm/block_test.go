package vm

import (
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Block invocation
// ---------------------------------------------------------------------------

func TestBlockValueWithArgument(t *testing.T) {
	vm, _ := newTestVM(t, nil)

	// [:x | x + 1] value: 41
	inc := NewBlockBuilder("test-block0", 1)
	inc.PushLocal(0, 0).PushInt(1).Send("+", 1).Emit(OpBlockReturn)

	b := NewBlockBuilder("test", 0)
	b.Block(inc.Build()).PushInt(41).Send("value:", 1).Emit(OpReturn)
	if got := RenderValue(mustExec(t, vm, Nil, b.Build())); got != "42" {
		t.Errorf("result = %s, want 42", got)
	}
}

func TestBlockSeesOuterLocals(t *testing.T) {
	vm, _ := newTestVM(t, nil)

	// | n | n := 5. [n := n * 2] value. ^n
	double := NewBlockBuilder("test-block0", 0)
	double.PushLocal(1, 0).PushInt(2).Send("*", 1).StoreLocal(1, 0).Emit(OpBlockReturn)

	b := NewBlockBuilder("test", 0).SetLocals(1)
	b.PushInt(5).StoreLocal(0, 0).Emit(OpPop)
	b.Block(double.Build()).Send("value", 0).Emit(OpPop)
	b.PushLocal(0, 0).Emit(OpReturn)
	if got := RenderValue(mustExec(t, vm, Nil, b.Build())); got != "10" {
		t.Errorf("n = %s, want 10", got)
	}
}

func TestBlockReceiverIsHomeReceiver(t *testing.T) {
	vm, _ := newTestVM(t, nil)
	recv := vm.NewString("home")

	blk := NewBlockBuilder("test-block0", 0)
	blk.Emit(OpPushSelf).Emit(OpBlockReturn)

	b := NewBlockBuilder("test", 0)
	b.Block(blk.Build()).Send("value", 0).Emit(OpReturn)
	if got := mustExec(t, vm, recv, b.Build()); got != recv {
		t.Errorf("self in block = %v, want home receiver", got)
	}
}

func TestEmptyBlockAnswersNil(t *testing.T) {
	vm, _ := newTestVM(t, nil)
	b := NewBlockBuilder("test", 0)
	b.Block(NewBlockBuilder("test-block0", 0).Build()).Send("value", 0).Emit(OpReturn)
	if got := mustExec(t, vm, vm.NewInteger(1), b.Build()); got != Nil {
		t.Errorf("empty block = %v, want nil", got)
	}
}

func TestBlockArgumentMismatch(t *testing.T) {
	vm, _ := newTestVM(t, nil)
	blk := NewBlockBuilder("test-block0", 1)
	blk.PushLocal(0, 0).Emit(OpBlockReturn)

	b := NewBlockBuilder("test", 0)
	b.Block(blk.Build()).Send("value", 0).Emit(OpReturn)
	_, err := vm.Exec(Nil, b.Build())
	expectKind(t, err, MismatchedBlockArg)
}

func TestBlockValueWithArguments(t *testing.T) {
	vm, _ := newTestVM(t, nil)
	sub := NewBlockBuilder("test-block0", 2)
	sub.PushLocal(0, 0).PushLocal(0, 1).Send("-", 1).Emit(OpBlockReturn)

	b := NewBlockBuilder("test", 0)
	b.Block(sub.Build()).PushInt(10).PushInt(3).Bytecode().EmitByte(OpPushArray, 2)
	b.Send("valueWithArguments:", 1).Emit(OpReturn)
	if got := RenderValue(mustExec(t, vm, Nil, b.Build())); got != "7" {
		t.Errorf("result = %s, want 7", got)
	}

	bad := NewBlockBuilder("test", 0)
	bad.Block(sub.Build()).PushInt(10).Send("valueWithArguments:", 1).Emit(OpReturn)
	_, err := vm.Exec(Nil, bad.Build())
	expectKind(t, err, TypeError)
}

func TestBlockNumArgs(t *testing.T) {
	vm, _ := newTestVM(t, nil)
	b := NewBlockBuilder("test", 0)
	b.Block(NewBlockBuilder("test-block0", 3).Build()).Send("numArgs", 0).Emit(OpReturn)
	if got := RenderValue(mustExec(t, vm, Nil, b.Build())); got != "3" {
		t.Errorf("numArgs = %s", got)
	}
}

// ---------------------------------------------------------------------------
// Non-local return
// ---------------------------------------------------------------------------

func TestNonLocalReturnFromLiveHome(t *testing.T) {
	// helper: [^7] value. ^99
	early := NewBlockBuilder("helper-block0", 0)
	early.PushInt(7).Emit(OpReturn)
	helper := NewBlockBuilder("helper", 0)
	helper.Block(early.Build()).Send("value", 0).Emit(OpPop).PushInt(99).Emit(OpReturn)

	// main: ^self helper + 1
	main := NewBlockBuilder("main", 0)
	main.Emit(OpPushSelf).Send("helper", 0).PushInt(1).Send("+", 1).Emit(OpReturn)

	prog := &Program{
		Classes: []*ClassDecl{{Name: "Main", Methods: []*MethodDecl{method(helper), method(main)}}},
		Entry:   EntryPoint{Class: "Main", Selector: "main"},
	}
	vm, _ := newTestVM(t, prog)
	result, err := vm.ExecMain()
	if err != nil {
		t.Fatal(err)
	}
	if got := RenderValue(result); got != "8" {
		t.Errorf("result = %s, want 8", got)
	}
	if vm.Depth() != 0 {
		t.Errorf("chain not empty after return: depth %d", vm.Depth())
	}
}

func TestNonLocalReturnFromNestedBlock(t *testing.T) {
	vm, _ := newTestVM(t, nil)

	// [[^3] value. 4] value. ^5
	inner := NewBlockBuilder("test-block1", 0)
	inner.PushInt(3).Emit(OpReturn)
	outer := NewBlockBuilder("test-block0", 0)
	outer.Block(inner.Build()).Send("value", 0).Emit(OpPop).PushInt(4).Emit(OpBlockReturn)

	b := NewBlockBuilder("test", 0)
	b.Block(outer.Build()).Send("value", 0).Emit(OpPop).PushInt(5).Emit(OpReturn)
	if got := RenderValue(mustExec(t, vm, Nil, b.Build())); got != "3" {
		t.Errorf("result = %s, want 3", got)
	}
}

func TestNonLocalReturnFromDeadHome(t *testing.T) {
	// makeBlock: ^[^1]
	escaping := NewBlockBuilder("makeBlock-block0", 0)
	escaping.PushInt(1).Emit(OpReturn)
	makeBlock := NewBlockBuilder("makeBlock", 0)
	makeBlock.Block(escaping.Build()).Emit(OpReturn)

	// main: ^self makeBlock value
	main := NewBlockBuilder("main", 0)
	main.Emit(OpPushSelf).Send("makeBlock", 0).Send("value", 0).Emit(OpReturn)

	prog := &Program{
		Classes: []*ClassDecl{{Name: "Main", Methods: []*MethodDecl{method(makeBlock), method(main)}}},
		Entry:   EntryPoint{Class: "Main", Selector: "main"},
	}
	vm, _ := newTestVM(t, prog)
	_, err := vm.ExecMain()
	expectKind(t, err, BlockCannotReturn)
}

func TestNestedBlockHomeIsMethod(t *testing.T) {
	inner := NewBlockBuilder("m-block1", 0).Build()
	outerB := NewBlockBuilder("m-block0", 0)
	outerB.Block(inner)
	outer := outerB.Build()
	m := NewBlockBuilder("m", 0)
	m.Block(outer)
	built := m.Build()

	if outer.Home != built || inner.Home != built {
		t.Error("nested blocks should point at the enclosing method")
	}
	if built.IsBlock() || !inner.IsBlock() {
		t.Error("IsBlock mismatch")
	}
}

func TestNonLocalReturnThroughIntermediateMethod(t *testing.T) {
	// run: aBlock  aBlock value. ^0
	run := NewBlockBuilder("run:", 1)
	run.PushLocal(0, 0).Send("value", 0).Emit(OpPop).PushInt(0).Emit(OpReturn)

	// helper: self run: [^7]. ^99
	early := NewBlockBuilder("helper-block0", 0)
	early.PushInt(7).Emit(OpReturn)
	helper := NewBlockBuilder("helper", 0)
	helper.Emit(OpPushSelf).Block(early.Build()).Send("run:", 1).Emit(OpPop).PushInt(99).Emit(OpReturn)

	// main: ^self helper + 1
	main := NewBlockBuilder("main", 0)
	main.Emit(OpPushSelf).Send("helper", 0).PushInt(1).Send("+", 1).Emit(OpReturn)

	prog := &Program{
		Classes: []*ClassDecl{{Name: "Main", Methods: []*MethodDecl{method(run), method(helper), method(main)}}},
		Entry:   EntryPoint{Class: "Main", Selector: "main"},
	}
	vm, _ := newTestVM(t, prog)
	result, err := vm.ExecMain()
	if err != nil {
		t.Fatal(err)
	}
	if got := RenderValue(result); got != "8" {
		t.Errorf("result = %s, want 8", got)
	}
	if vm.Depth() != 0 {
		t.Errorf("chain not empty after return: depth %d", vm.Depth())
	}
}

func TestNonLocalReturnFromUnlinkedBlock(t *testing.T) {
	vm, _ := newTestVM(t, nil)

	// Bodies built without a builder have no Home link.
	body := NewBytecodeBuilder()
	body.EmitInt32(OpPushInt, 1)
	body.Emit(OpReturn)
	blk := &CompiledBlock{Name: "blk", Bytecode: body.Bytes()}

	outer := NewBytecodeBuilder()
	outer.EmitUint16(OpBlock, 0)
	outer.Emit(OpReturn)
	m := &CompiledBlock{Name: "m", Bytecode: outer.Bytes(), Blocks: []*CompiledBlock{blk}}

	escaped := mustExec(t, vm, Nil, m)
	if blk.Home != nil {
		t.Fatal("block unexpectedly linked")
	}

	_, err := sendTo(vm, escaped, "value")
	re := expectKind(t, err, BlockCannotReturn)
	if !strings.Contains(re.Message, "home context m has already returned") {
		t.Errorf("message = %q", re.Message)
	}
}
