package known

import (
	"encoding/json"
)

// Struct, Value, and ListValue map exactly onto JSON's own object/array/
// scalar model with no proto3-specific quirks (no int64-as-string, no
// base64 bytes) — unlike an ordinary message's fields, there is no
// descriptor-typed field to special-case. encoding/json is therefore the
// right tool for this leaf of the JSON mapping, the one place in the JSON
// codec that is genuinely just JSON.

func marshalJSONString(s string) []byte {
	b, _ := json.Marshal(s)
	return b
}

func formatFloatJSON(f float64) string {
	b, _ := json.Marshal(f)
	return string(b)
}

func marshalStructJSON(s Struct) ([]byte, error) {
	m := make(map[string]interface{}, len(s))
	for k, v := range s {
		m[k] = valueToInterface(v)
	}
	return json.Marshal(m)
}

func marshalListValueJSON(l ListValue) ([]byte, error) {
	arr := make([]interface{}, len(l))
	for i, v := range l {
		arr[i] = valueToInterface(v)
	}
	return json.Marshal(arr)
}

func valueToInterface(v Value) interface{} {
	switch v.Kind {
	case NullValueKind:
		return nil
	case NumberValueKind:
		return v.Number
	case StringValueKind:
		return v.Str
	case BoolValueKind:
		return v.Bool
	case StructValueKind:
		m := make(map[string]interface{}, len(v.Struct))
		for k, sv := range v.Struct {
			m[k] = valueToInterface(sv)
		}
		return m
	case ListValueKind:
		arr := make([]interface{}, len(v.List))
		for i, lv := range v.List {
			arr[i] = valueToInterface(lv)
		}
		return arr
	default:
		return nil
	}
}

func interfaceToValue(v interface{}) Value {
	switch t := v.(type) {
	case nil:
		return NullValue()
	case float64:
		return NumberValue(t)
	case string:
		return StringValueOf(t)
	case bool:
		return BoolValueOf(t)
	case map[string]interface{}:
		s := make(Struct, len(t))
		for k, sv := range t {
			s[k] = interfaceToValue(sv)
		}
		return StructValueOf(s)
	case []interface{}:
		l := make(ListValue, len(t))
		for i, lv := range t {
			l[i] = interfaceToValue(lv)
		}
		return ListValueOf(l)
	default:
		return NullValue()
	}
}

func unmarshalValueJSON(data []byte) (Value, error) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return Value{}, errValidationf("invalid JSON for google.protobuf.Value: %v", err)
	}
	return interfaceToValue(v), nil
}

func unmarshalStructJSON(data []byte) (Struct, error) {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errValidationf("invalid JSON for google.protobuf.Struct: %v", err)
	}
	s := make(Struct, len(m))
	for k, v := range m {
		s[k] = interfaceToValue(v)
	}
	return s, nil
}

func unmarshalListValueJSON(data []byte) (ListValue, error) {
	var arr []interface{}
	if err := json.Unmarshal(data, &arr); err != nil {
		return nil, errValidationf("invalid JSON for google.protobuf.ListValue: %v", err)
	}
	l := make(ListValue, len(arr))
	for i, v := range arr {
		l[i] = interfaceToValue(v)
	}
	return l, nil
}
