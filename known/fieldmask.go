package known

import (
	"strings"

	"github.com/protoval/dynproto/protojson"
	"github.com/protoval/dynproto/reflect/protoreflect"
	"github.com/protoval/dynproto/types/dynamicpb"
)

// FieldMask is the host representation of google.protobuf.FieldMask: a set of
// field paths identifying a subset of fields in some other message.
type FieldMask struct {
	Paths []string
}

// NewFieldMaskMessage builds a dynamic google.protobuf.FieldMask message.
func NewFieldMaskMessage(fm FieldMask) (*dynamicpb.Message, error) {
	m := dynamicpb.New(FieldMaskDescriptor())
	for _, p := range fm.Paths {
		if err := m.AppendToRepeated("paths", protoreflect.String(p)); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// FieldMaskFromMessage reads a dynamic google.protobuf.FieldMask message back
// into its host representation.
func FieldMaskFromMessage(m *dynamicpb.Message) (FieldMask, error) {
	v, err := m.GetOrDefault("paths")
	if err != nil {
		return FieldMask{}, err
	}
	elems, _ := v.AsRepeated()
	fm := FieldMask{Paths: make([]string, 0, len(elems))}
	for _, e := range elems {
		s, _ := e.AsString()
		fm.Paths = append(fm.Paths, s)
	}
	return fm, nil
}

type fieldMaskHandler struct{}

// MarshalJSON renders the mask as a single comma-joined string with each
// path's snake_case converted to camelCase, per the proto3 JSON mapping.
func (fieldMaskHandler) MarshalJSON(m *dynamicpb.Message, _ protojson.MarshalOptions) ([]byte, error) {
	fm, err := FieldMaskFromMessage(m)
	if err != nil {
		return nil, err
	}
	camel := make([]string, len(fm.Paths))
	for i, p := range fm.Paths {
		parts := strings.Split(p, ".")
		for j, part := range parts {
			parts[j] = protoreflect.ToCamelCase(part)
		}
		camel[i] = strings.Join(parts, ".")
	}
	return []byte(`"` + strings.Join(camel, ",") + `"`), nil
}

func (fieldMaskHandler) UnmarshalJSON(data []byte, m *dynamicpb.Message, _ protojson.UnmarshalOptions) error {
	var s string
	if err := unquoteJSONString(data, &s); err != nil {
		return errValidationf("invalid field mask JSON: %v", err)
	}
	var paths []string
	if s != "" {
		for _, p := range strings.Split(s, ",") {
			paths = append(paths, camelPathToSnake(p))
		}
	}
	for _, p := range paths {
		if err := m.AppendToRepeated("paths", protoreflect.String(p)); err != nil {
			return err
		}
	}
	return nil
}

// camelPathToSnake reverses ToCamelCase per path segment: google.protobuf's
// FieldMask JSON form is camelCase, but paths.proto fields are snake_case.
func camelPathToSnake(p string) string {
	segs := strings.Split(p, ".")
	for i, seg := range segs {
		var b strings.Builder
		for _, r := range seg {
			if r >= 'A' && r <= 'Z' {
				b.WriteByte('_')
				b.WriteRune(r - 'A' + 'a')
			} else {
				b.WriteRune(r)
			}
		}
		segs[i] = b.String()
	}
	return strings.Join(segs, ".")
}
