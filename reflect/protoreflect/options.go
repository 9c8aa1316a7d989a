package protoreflect

import "fmt"

// Options is an opaque map from option name to a scalar value, standing in
// for the arbitrary *descriptorpb.XxxOptions messages attached to a
// descriptor. dynproto treats options as inert metadata: it never interprets
// them, only stores and compares them.
type Options map[string]interface{}

// Equal reports whether two option maps are equal. Recognized scalar kinds
// (bool, int64, string) are compared directly; any other value is compared
// by its string form, since option values may in principle be arbitrary
// nested structures that defy a universal structural comparison.
func (o Options) Equal(other Options) bool {
	if len(o) != len(other) {
		return false
	}
	for k, v := range o {
		ov, ok := other[k]
		if !ok {
			return false
		}
		if !scalarEqual(v, ov) {
			return false
		}
	}
	return true
}

func scalarEqual(a, b interface{}) bool {
	switch av := a.(type) {
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case int64:
		bv, ok := b.(int64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	default:
		return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
	}
}
