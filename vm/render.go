package vm

import "strings"

// RenderValue renders v for stack dumps and traces. Locals and operand
// stack slots both go through here so they always render the same way.
func RenderValue(v Value) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case nilValue:
		return "nil"
	case *String:
		return "'" + x.V + "'"
	case *BlockDescriptor:
		return x.Block.Name
	case *Class:
		return x.String()
	}
	return v.AsString()
}

func writeValues(sb *strings.Builder, values []Value) {
	sb.WriteByte('[')
	for i, v := range values {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(RenderValue(v))
	}
	sb.WriteByte(']')
}
