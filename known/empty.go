package known

import (
	"github.com/protoval/dynproto/protojson"
	"github.com/protoval/dynproto/types/dynamicpb"
)

// NewEmptyMessage builds a dynamic google.protobuf.Empty message.
func NewEmptyMessage() *dynamicpb.Message {
	return dynamicpb.New(EmptyDescriptor())
}

type emptyHandler struct{}

func (emptyHandler) MarshalJSON(*dynamicpb.Message, protojson.MarshalOptions) ([]byte, error) {
	return []byte("{}"), nil
}

func (emptyHandler) UnmarshalJSON(data []byte, _ *dynamicpb.Message, _ protojson.UnmarshalOptions) error {
	if string(data) != "{}" {
		return errValidationf("google.protobuf.Empty expects JSON {}, got %s", data)
	}
	return nil
}
