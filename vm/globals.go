package vm

import "sort"

// Globals is the name -> value table holding classes and global
// variables. Each VM owns exactly one.
type Globals struct {
	entries map[string]Value
}

// NewGlobals creates an empty namespace.
func NewGlobals() *Globals {
	return &Globals{entries: make(map[string]Value)}
}

// Define binds name to v, replacing any existing binding.
func (g *Globals) Define(name string, v Value) {
	g.entries[name] = v
}

// Get returns the binding for name.
func (g *Globals) Get(name string) (Value, bool) {
	v, ok := g.entries[name]
	return v, ok
}

// Class returns the class bound to name, if name is bound to a class.
func (g *Globals) Class(name string) (*Class, bool) {
	c, ok := g.entries[name].(*Class)
	return c, ok
}

// Names returns the bound names in sorted order.
func (g *Globals) Names() []string {
	names := make([]string, 0, len(g.entries))
	for name := range g.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of bindings.
func (g *Globals) Len() int {
	return len(g.entries)
}

// LookupClass resolves name to a class, failing with UnknownClass.
func (vm *VM) LookupClass(name string) (*Class, error) {
	if c, ok := vm.Globals.Class(name); ok {
		return c, nil
	}
	return nil, vm.error(UnknownClass, "unknown class %s", name)
}

// LookupGlobal resolves name, failing with UndefinedGlobal.
func (vm *VM) LookupGlobal(name string) (Value, error) {
	if v, ok := vm.Globals.Get(name); ok {
		return v, nil
	}
	return nil, vm.error(UndefinedGlobal, "undefined global %s", name)
}
