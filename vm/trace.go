package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Stack traces and instruction tracing
// ---------------------------------------------------------------------------

// StackString renders the live context chain, current context first.
func (vm *VM) StackString() string {
	var sb strings.Builder
	for c := vm.ctx; c != nil; c = c.Invoker {
		ip := c.PrevIP
		if ip < 0 {
			ip = c.IP
		}
		location := fmt.Sprintf("(%s:%d:%d)", c.File, c.Line, c.Column)
		fmt.Fprintf(&sb, "    at %50s%-20s executing %s\n",
			c.String(), location, DisassembleInstruction(c.Block, ip))
	}
	return sb.String()
}

// traceInstr writes the instruction about to execute.
func (vm *VM) traceInstr() {
	fmt.Fprintf(vm.traceOut, "%-40s", DisassembleInstruction(vm.ctx.Block, vm.ctx.IP))
}

// traceStack writes the chain, oldest context first, after an instruction
// has executed.
func (vm *VM) traceStack() {
	var parts []string
	for c := vm.ctx; c != nil; c = c.Invoker {
		parts = append(parts, c.String())
	}
	for l, r := 0, len(parts)-1; l < r; l, r = l+1, r-1 {
		parts[l], parts[r] = parts[r], parts[l]
	}
	fmt.Fprintln(vm.traceOut, strings.Join(parts, ", "))
}
