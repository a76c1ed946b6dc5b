package vm

import "strings"

// ---------------------------------------------------------------------------
// Program: the input contract from a front end
// ---------------------------------------------------------------------------

// Program is a set of class declarations plus the entry point to run.
type Program struct {
	Classes []*ClassDecl
	Entry   EntryPoint
}

// EntryPoint names the class to instantiate and the selector to send.
type EntryPoint struct {
	Class    string
	Selector string
}

// ClassDecl declares a class. Declaring a builtin class by name reopens it:
// its methods are added to the existing class.
type ClassDecl struct {
	Name         string
	Superclass   string // empty means Object
	InstVars     []string
	Methods      []*MethodDecl
	ClassMethods []*MethodDecl
}

// MethodDecl binds a selector to either compiled code or a primitive id
// such as "TranscriptStream_SHOW".
type MethodDecl struct {
	Selector  string
	Block     *CompiledBlock
	Primitive string
}

// load installs prog's declarations. Classes are created first so that
// superclass references may point forward.
func (vm *VM) load(prog *Program) error {
	declared := make([]*Class, len(prog.Classes))
	for i, d := range prog.Classes {
		if d.Name == "" {
			return vm.error(VMException, "class declaration %d has no name", i)
		}
		c, ok := vm.Globals.Class(d.Name)
		if !ok {
			c = vm.createClass(d.Name, nil, nil)
		}
		declared[i] = c
	}

	for i, d := range prog.Classes {
		c := declared[i]
		switch {
		case d.Superclass != "":
			super, err := vm.LookupClass(d.Superclass)
			if err != nil {
				return err
			}
			vm.setSuperclass(c, super)
		case c.Superclass == nil && c != vm.ObjectClass:
			vm.setSuperclass(c, vm.ObjectClass)
		}
		if len(d.InstVars) > 0 {
			c.InstVars = d.InstVars
		}
	}

	for _, c := range declared {
		if err := vm.checkHierarchy(c); err != nil {
			return err
		}
	}

	for i, d := range prog.Classes {
		c := declared[i]
		for _, m := range d.Methods {
			if err := vm.install(c, m); err != nil {
				return err
			}
		}
		for _, m := range d.ClassMethods {
			if err := vm.install(c.Meta, m); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkHierarchy verifies that c's superclass chain is acyclic and ends
// at Object.
func (vm *VM) checkHierarchy(c *Class) error {
	seen := make(map[*Class]bool)
	current := c
	for ; current.Superclass != nil; current = current.Superclass {
		if seen[current] {
			return vm.error(VMException, "superclass chain of %s is cyclic", c.Name)
		}
		seen[current] = true
	}
	if current != vm.ObjectClass {
		return vm.error(VMException, "superclass chain of %s ends at %s, not Object", c.Name, current.Name)
	}
	return nil
}

func (vm *VM) install(c *Class, m *MethodDecl) error {
	switch {
	case m.Block != nil:
		if m.Block.QualifiedName == "" || m.Block.QualifiedName == m.Block.Name {
			m.Block.QualifiedName = c.Name + ">>" + m.Selector
		}
		m.Block.Link()
		qualifyBlocks(m.Block)
		c.Define(m.Selector, m.Block)
	case m.Primitive != "":
		p, ok := vm.Primitives.ByID(m.Primitive)
		if !ok {
			return vm.error(VMException, "%s>>%s: unknown primitive %s", c.Name, m.Selector, m.Primitive)
		}
		c.Define(m.Selector, p)
	default:
		return vm.error(VMException, "%s>>%s has neither code nor a primitive", c.Name, m.Selector)
	}
	return nil
}

// qualifyBlocks names nested bodies after their method when the front end
// left them unqualified.
func qualifyBlocks(method *CompiledBlock) {
	prefix := method.QualifiedName
	if i := strings.LastIndex(prefix, ">>"); i >= 0 {
		prefix = prefix[:i+2]
	} else {
		prefix = ""
	}
	var walk func(blocks []*CompiledBlock)
	walk = func(blocks []*CompiledBlock) {
		for _, b := range blocks {
			if b.QualifiedName == "" || b.QualifiedName == b.Name {
				b.QualifiedName = prefix + b.Name
			}
			walk(b.Blocks)
		}
	}
	walk(method.Blocks)
}

// SelectorArity returns the number of arguments a selector takes. Binary
// selectors take one.
func SelectorArity(selector string) int {
	if selector == "" {
		return 0
	}
	if n := strings.Count(selector, ":"); n > 0 {
		return n
	}
	if isBinarySelector(selector) {
		return 1
	}
	return 0
}

func isBinarySelector(selector string) bool {
	for _, r := range selector {
		if !strings.ContainsRune("+-*/\\<>=~,&|@%", r) {
			return false
		}
	}
	return true
}
