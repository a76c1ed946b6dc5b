package vm

// ---------------------------------------------------------------------------
// Class: method dictionary plus superclass link
// ---------------------------------------------------------------------------

// Method is an entry in a method dictionary: a *CompiledBlock or a
// *Primitive.
type Method interface {
	// MethodName returns the qualified name used in traces.
	MethodName() string
}

// Class describes the layout and behavior of its instances. Metaclasses
// are Classes too: Meta points from a class to its metaclass, and a
// metaclass's Base points back.
type Class struct {
	Name       string
	Superclass *Class
	InstVars   []string
	Methods    map[string]Method

	// Meta is the class-side counterpart, nil for metaclasses.
	Meta *Class
	// Base is the instance-side class, nil for ordinary classes.
	Base *Class

	class *Class // class of this class as a value
}

func newClass(name string, super *Class, ivars []string) *Class {
	return &Class{
		Name:       name,
		Superclass: super,
		InstVars:   ivars,
		Methods:    make(map[string]Method),
	}
}

// Class returns the metaclass for an ordinary class and the Metaclass
// class for a metaclass.
func (c *Class) Class() *Class {
	if c.Meta != nil {
		return c.Meta
	}
	return c.class
}

// AsString returns the class name. Metaclasses are named "Foo class".
func (c *Class) AsString() string {
	return c.String()
}

func (c *Class) String() string {
	return c.Name
}

// IsMeta reports whether c is a metaclass.
func (c *Class) IsMeta() bool {
	return c.Base != nil
}

// Lookup finds selector by walking the superclass chain. It returns the
// method and the class that defines it, or nil, nil.
func (c *Class) Lookup(selector string) (Method, *Class) {
	for current := c; current != nil; current = current.Superclass {
		if m, ok := current.Methods[selector]; ok {
			return m, current
		}
	}
	return nil, nil
}

// Define installs or replaces a method in this class's dictionary.
func (c *Class) Define(selector string, m Method) {
	c.Methods[selector] = m
}

// AllInstVarNames returns all instance variable names including inherited
// ones, in slot order.
func (c *Class) AllInstVarNames() []string {
	if c.Superclass == nil {
		return c.InstVars
	}
	inherited := c.Superclass.AllInstVarNames()
	result := make([]string, len(inherited)+len(c.InstVars))
	copy(result, inherited)
	copy(result[len(inherited):], c.InstVars)
	return result
}

// NumFields returns the number of instance slots.
func (c *Class) NumFields() int {
	n := 0
	for current := c; current != nil; current = current.Superclass {
		n += len(current.InstVars)
	}
	return n
}

// InstVarIndex returns the slot index for an instance variable name, or -1.
func (c *Class) InstVarIndex(name string) int {
	for i, n := range c.AllInstVarNames() {
		if n == name {
			return i
		}
	}
	return -1
}

// IsSubclassOf returns true if c is other or inherits from it.
func (c *Class) IsSubclassOf(other *Class) bool {
	for current := c; current != nil; current = current.Superclass {
		if current == other {
			return true
		}
	}
	return false
}

// Understands reports whether instances of c respond to selector.
func (c *Class) Understands(selector string) bool {
	m, _ := c.Lookup(selector)
	return m != nil
}
