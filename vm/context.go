package vm

import "strings"

// Context is the activation record of a method or block invocation.
//
// A context exclusively owns its operand stack and locals. Invoker is a
// back-reference only: the chain it forms is strictly shortened by every
// pop, so it can never become a cycle.
type Context struct {
	Block    *CompiledBlock
	Receiver Value

	Stack []Value // fixed size, allocated at creation
	SP    int     // index of the top element, -1 when empty

	Locals []Value // arguments followed by temporaries

	IP     int // next instruction
	PrevIP int // instruction being (or last) executed, -1 before the first

	File   string
	Line   int
	Column int

	Invoker *Context // caller, nil for the initial context

	// MethodClass is the class in which the running method was found;
	// super sends start at its superclass.
	MethodClass *Class

	// Enclosing is the lexically enclosing context for block contexts.
	Enclosing *Context
	// Home is the method context a non-local return unwinds through. A
	// method context is its own home.
	Home *Context
}

// newContext creates a method context. Arguments are copied into the
// leading local slots; remaining locals are nil.
func newContext(block *CompiledBlock, receiver Value, args []Value, stackSize int) *Context {
	ctx := &Context{
		Block:    block,
		Receiver: receiver,
		Stack:    make([]Value, stackSize),
		SP:       -1,
		Locals:   make([]Value, block.NumSlots()),
		PrevIP:   -1,
	}
	for i := range ctx.Locals {
		if i < len(args) {
			ctx.Locals[i] = args[i]
		} else {
			ctx.Locals[i] = Nil
		}
	}
	ctx.Home = ctx
	return ctx
}

// newBlockContext creates the context for invoking closure.
func newBlockContext(closure *BlockDescriptor, args []Value, stackSize int) *Context {
	receiver := Nil
	var methodClass *Class
	if closure.Home != nil {
		receiver = closure.Home.Receiver
		methodClass = closure.Home.MethodClass
	}
	ctx := newContext(closure.Block, receiver, args, stackSize)
	ctx.Enclosing = closure.Enclosing
	ctx.Home = closure.Home
	ctx.MethodClass = methodClass
	return ctx
}

// IsBlockContext reports whether the context runs a block body.
func (c *Context) IsBlockContext() bool {
	return c.Enclosing != nil
}

// Depth returns the number of values on the operand stack.
func (c *Context) Depth() int {
	return c.SP + 1
}

// push pushes v, reporting false if the stack is full.
func (c *Context) push(v Value) bool {
	if c.SP+1 >= len(c.Stack) {
		return false
	}
	c.SP++
	c.Stack[c.SP] = v
	return true
}

// pop removes and returns the top value. Callers check Depth first.
func (c *Context) pop() Value {
	v := c.Stack[c.SP]
	c.Stack[c.SP] = nil
	c.SP--
	return v
}

// top returns the top value without removing it.
func (c *Context) top() Value {
	return c.Stack[c.SP]
}

// peek returns the value n entries below the top (0 is the top).
func (c *Context) peek(n int) Value {
	return c.Stack[c.SP-n]
}

// popN removes the top n values and returns them in push order.
func (c *Context) popN(n int) []Value {
	out := make([]Value, n)
	copy(out, c.Stack[c.SP-n+1:c.SP+1])
	for i := c.SP - n + 1; i <= c.SP; i++ {
		c.Stack[i] = nil
	}
	c.SP -= n
	return out
}

// outer walks delta lexical levels out through Enclosing.
func (c *Context) outer(delta int) *Context {
	ctx := c
	for ; delta > 0 && ctx != nil; delta-- {
		ctx = ctx.Enclosing
	}
	return ctx
}

// isLive reports whether target is on the chain starting at c.
func (c *Context) isLive(target *Context) bool {
	for ctx := c; ctx != nil; ctx = ctx.Invoker {
		if ctx == target {
			return true
		}
	}
	return false
}

// String renders the context as qualified name, locals and stack.
func (c *Context) String() string {
	var sb strings.Builder
	sb.WriteString(c.Block.MethodName())
	writeValues(&sb, c.Locals)
	writeValues(&sb, c.Stack[:c.SP+1])
	return sb.String()
}
