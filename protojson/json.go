// Package protojson implements the canonical proto3 JSON mapping on top of
// dynamic messages. It deliberately does not go through encoding/json's
// struct marshaling: field order must follow the descriptor's field-number
// order, int64-family values must render as JSON strings, and well-known
// types need mid-walk delegation, none of which fit encoding/json's
// reflection-driven model. Instead it walks the message directly, building
// a minimal text form with its own writer and scanner.
package protojson

import (
	"github.com/protoval/dynproto/reflect/protoreflect"
	"github.com/protoval/dynproto/types/dynamicpb"
)

// WellKnownHandler hooks a well-known type's canonical JSON textual form
// into the codec. The `known` package implements this interface; protojson
// only depends on the interface shape, to avoid an import cycle (known
// needs to marshal/unmarshal ordinary dynamic messages via protojson for
// some of its own conversions, such as Struct/Value).
type WellKnownHandler interface {
	MarshalJSON(m *dynamicpb.Message, o MarshalOptions) ([]byte, error)
	UnmarshalJSON(data []byte, m *dynamicpb.Message, o UnmarshalOptions) error
}

// Resolver looks up message descriptors by full name (for Any's type_url
// resolution, in particular). protojson carries it in its options for
// well-known handlers and does not consult it itself.
type Resolver interface {
	FindMessage(name protoreflect.FullName) (*protoreflect.MessageDescriptor, bool)
}

// MarshalOptions controls Marshal's behavior.
type MarshalOptions struct {
	// EmitUnpopulated emits fields at their default value instead of omitting
	// them.
	EmitUnpopulated bool
	// UseProtoNames emits each field under its declared proto name instead of
	// its json_name/camelCase default.
	UseProtoNames bool
	// Indent, if non-empty, is used to pretty-print nested structures one
	// level per repetition of Indent. Empty means compact output.
	Indent string
	// Resolver looks up message descriptors by full name for the
	// well-known handlers that need it (Any). Well-known-type delegation
	// itself is governed by Handlers alone.
	Resolver Resolver
	// Handlers maps a message full_name to the well-known handler that
	// should render/parse it instead of the generic field walk.
	Handlers map[protoreflect.FullName]WellKnownHandler
}

// UnmarshalOptions controls Unmarshal's behavior.
type UnmarshalOptions struct {
	// IgnoreUnknownFields discards JSON object keys with no matching field
	// instead of failing.
	IgnoreUnknownFields bool
	Resolver            Resolver
	Handlers            map[protoreflect.FullName]WellKnownHandler
}

func (o MarshalOptions) handlerFor(name protoreflect.FullName) (WellKnownHandler, bool) {
	h, ok := o.Handlers[name]
	return h, ok
}

func (o UnmarshalOptions) handlerFor(name protoreflect.FullName) (WellKnownHandler, bool) {
	h, ok := o.Handlers[name]
	return h, ok
}
