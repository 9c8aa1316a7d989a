package known

import (
	"encoding/json"
	"strings"

	"github.com/protoval/dynproto/protojson"
	"github.com/protoval/dynproto/reflect/protoreflect"
	"github.com/protoval/dynproto/reflect/protoregistry"
	"github.com/protoval/dynproto/types/dynamicpb"
	"github.com/protoval/dynproto/wireformat"
)

// DefaultTypeURLPrefix is the prefix Pack uses when the caller does not
// supply one, matching the convention google.protobuf.Any itself documents.
const DefaultTypeURLPrefix = "type.googleapis.com"

// Any is the host representation of google.protobuf.Any: an opaque
// serialized message tagged with the full name of its type.
type Any struct {
	TypeURL string
	Value   []byte
}

// TypeName extracts the full_name suffix of a.TypeURL (the portion after the
// last '/'), the part a registry lookup actually needs.
func (a Any) TypeName() protoreflect.FullName {
	if i := strings.LastIndexByte(a.TypeURL, '/'); i >= 0 {
		return protoreflect.FullName(a.TypeURL[i+1:])
	}
	return protoreflect.FullName(a.TypeURL)
}

// Pack serializes msg to wire bytes and wraps it in an Any tagged with
// prefix + "/" + msg's full_name. An empty prefix uses DefaultTypeURLPrefix.
func Pack(msg *dynamicpb.Message, prefix string) (Any, error) {
	if prefix == "" {
		prefix = DefaultTypeURLPrefix
	}
	b, err := wireformat.Marshal(msg)
	if err != nil {
		return Any{}, err
	}
	return Any{TypeURL: prefix + "/" + string(msg.Descriptor().FullName), Value: b}, nil
}

// Unpack resolves a.TypeName() against reg and unmarshals a.Value into a
// fresh dynamic message of that type. It fails with a descriptive error if
// the type_url's suffix does not resolve: an Any must be resolvable via the
// registry to be unpacked.
func Unpack(a Any, reg *protoregistry.Registry) (*dynamicpb.Message, error) {
	desc, ok := reg.FindMessage(a.TypeName())
	if !ok {
		return nil, errValidationf("cannot unpack Any: type %q not found in registry", a.TypeName())
	}
	return wireformat.Unmarshal(a.Value, desc)
}

// NewAnyMessage builds a dynamic google.protobuf.Any message from a.
func NewAnyMessage(a Any) (*dynamicpb.Message, error) {
	m := dynamicpb.New(AnyDescriptor())
	if err := m.Set("type_url", protoreflect.String(a.TypeURL)); err != nil {
		return nil, err
	}
	if err := m.Set("value", protoreflect.Bytes(a.Value)); err != nil {
		return nil, err
	}
	return m, nil
}

// AnyFromMessage reads a dynamic google.protobuf.Any message back into its
// host representation.
func AnyFromMessage(m *dynamicpb.Message) (Any, error) {
	urlV, err := m.GetOrDefault("type_url")
	if err != nil {
		return Any{}, err
	}
	valV, err := m.GetOrDefault("value")
	if err != nil {
		return Any{}, err
	}
	url, _ := urlV.AsString()
	val, _ := valV.AsBytes()
	return Any{TypeURL: url, Value: val}, nil
}

// anyHandler implements protojson.WellKnownHandler for google.protobuf.Any.
// Its JSON form is an object carrying "@type" plus, for an ordinary message
// payload, that payload's own fields flattened into the same object (or, for
// a well-known payload, a single "value" key holding that type's own
// canonical JSON form). Resolving and re-rendering the payload requires a
// registry and recursive access to the full handler set, so this handler
// alone among the well-known types is parameterized beyond msg/options.
type anyHandler struct {
	reg      *protoregistry.Registry
	handlers map[protoreflect.FullName]protojson.WellKnownHandler
}

func (h *anyHandler) MarshalJSON(m *dynamicpb.Message, _ protojson.MarshalOptions) ([]byte, error) {
	a, err := AnyFromMessage(m)
	if err != nil {
		return nil, err
	}
	if a.TypeURL == "" {
		return []byte("{}"), nil
	}
	payload, err := Unpack(a, h.reg)
	if err != nil {
		return nil, err
	}
	payloadJSON, err := protojson.MarshalOptions{Resolver: registryResolver{h.reg}, Handlers: h.handlers}.Marshal(payload)
	if err != nil {
		return nil, err
	}

	if _, ok := h.handlers[payload.Descriptor().FullName]; ok {
		// A well-known payload's canonical form is not a JSON object, so it
		// cannot be flattened; it nests under "value" instead.
		return json.Marshal(struct {
			Type  string          `json:"@type"`
			Value json.RawMessage `json:"value"`
		}{Type: a.TypeURL, Value: payloadJSON})
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payloadJSON, &fields); err != nil {
		return nil, errValidationf("Any payload %q did not marshal to a JSON object: %v", a.TypeName(), err)
	}
	fields["@type"] = json.RawMessage(marshalJSONString(a.TypeURL))
	return json.Marshal(fields)
}

func (h *anyHandler) UnmarshalJSON(data []byte, m *dynamicpb.Message, _ protojson.UnmarshalOptions) error {
	var withType struct {
		Type string `json:"@type"`
	}
	if err := json.Unmarshal(data, &withType); err != nil {
		return errValidationf("invalid Any JSON: %v", err)
	}
	if withType.Type == "" {
		return errValidationf("Any JSON missing \"@type\"")
	}
	typeName := protoreflect.FullName(withType.Type)
	if i := strings.LastIndexByte(withType.Type, '/'); i >= 0 {
		typeName = protoreflect.FullName(withType.Type[i+1:])
	}
	desc, ok := h.reg.FindMessage(typeName)
	if !ok {
		return errValidationf("cannot unmarshal Any: type %q not found in registry", typeName)
	}

	var payloadJSON []byte
	if _, ok := h.handlers[desc.FullName]; ok {
		var withValue struct {
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(data, &withValue); err != nil {
			return errValidationf("invalid Any JSON for well-known payload: %v", err)
		}
		payloadJSON = withValue.Value
	} else {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(data, &fields); err != nil {
			return errValidationf("invalid Any JSON: %v", err)
		}
		delete(fields, "@type")
		b, err := json.Marshal(fields)
		if err != nil {
			return err
		}
		payloadJSON = b
	}

	payload, err := protojson.UnmarshalOptions{Resolver: registryResolver{h.reg}, Handlers: h.handlers}.Unmarshal(payloadJSON, desc)
	if err != nil {
		return err
	}
	a, err := Pack(payload, typeURLPrefix(withType.Type))
	if err != nil {
		return err
	}
	return m.Merge(mustAnyMessage(a))
}

func typeURLPrefix(typeURL string) string {
	if i := strings.LastIndexByte(typeURL, '/'); i >= 0 {
		return typeURL[:i]
	}
	return ""
}

func mustAnyMessage(a Any) *dynamicpb.Message {
	m, err := NewAnyMessage(a)
	if err != nil {
		panic(err) // type_url/value are always valid ProtoValue constructions
	}
	return m
}

type registryResolver struct {
	reg *protoregistry.Registry
}

func (r registryResolver) FindMessage(name protoreflect.FullName) (*protoreflect.MessageDescriptor, bool) {
	return r.reg.FindMessage(name)
}
