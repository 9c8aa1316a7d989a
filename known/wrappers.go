package known

import (
	"github.com/protoval/dynproto/protojson"
	"github.com/protoval/dynproto/reflect/protoreflect"
	"github.com/protoval/dynproto/types/dynamicpb"
)

// NewWrapperMessage builds a dynamic google.protobuf.<Name>Value message
// wrapping value, which must be a valid singular ProtoValue for the
// corresponding scalar kind (e.g. protoreflect.Int32 for Int32Value).
func NewWrapperMessage(name protoreflect.Name, value protoreflect.ProtoValue) (*dynamicpb.Message, error) {
	desc, ok := WrapperDescriptor(name)
	if !ok {
		return nil, errValidationf("%q is not a wrapper type", name)
	}
	m := dynamicpb.New(desc)
	if err := m.Set("value", value); err != nil {
		return nil, err
	}
	return m, nil
}

// WrapperValue reads the scalar out of a dynamic wrapper message.
func WrapperValue(m *dynamicpb.Message) (protoreflect.ProtoValue, error) {
	return m.GetOrDefault("value")
}

// wrapperHandler implements protojson.WellKnownHandler for every wrapper
// type: its JSON form is simply the JSON form of its one "value" field,
// unwrapped — never an object with a "value" key.
type wrapperHandler struct{}

func (wrapperHandler) MarshalJSON(m *dynamicpb.Message, _ protojson.MarshalOptions) ([]byte, error) {
	return marshalSingleField(m, "value")
}

func (wrapperHandler) UnmarshalJSON(data []byte, m *dynamicpb.Message, _ protojson.UnmarshalOptions) error {
	decoded, err := unmarshalSingleField(data, m.Descriptor(), "value")
	if err != nil {
		return err
	}
	v, err := decoded.GetOrDefault("value")
	if err != nil {
		return err
	}
	return m.Set("value", v)
}
