package known

import (
	"github.com/protoval/dynproto/protojson"
	"github.com/protoval/dynproto/reflect/protoreflect"
	"github.com/protoval/dynproto/reflect/protoregistry"
)

// Handlers builds the full well-known-type handler set, keyed by full_name,
// ready to plug into protojson.MarshalOptions.Handlers /
// protojson.UnmarshalOptions.Handlers. reg is used only by the Any handler,
// to resolve a type_url's suffix to a descriptor; every other well-known
// type is self-contained.
func Handlers(reg *protoregistry.Registry) map[protoreflect.FullName]protojson.WellKnownHandler {
	h := map[protoreflect.FullName]protojson.WellKnownHandler{
		"google.protobuf.Timestamp": timestampHandler{},
		"google.protobuf.Duration":  durationHandler{},
		"google.protobuf.Empty":     emptyHandler{},
		"google.protobuf.FieldMask": fieldMaskHandler{},
		"google.protobuf.Struct":    structHandler{},
		"google.protobuf.Value":     valueHandler{},
		"google.protobuf.ListValue": listValueHandler{},
	}
	for _, wk := range wrapperKinds {
		h[protoreflect.FullName("google.protobuf.")+protoreflect.FullName(wk.name)] = wrapperHandler{}
	}
	// anyHandler closes over h itself so that nested payloads which are
	// themselves well-known types (an Any wrapping a Timestamp, say) render
	// through the same handler set rather than a generic field walk.
	h["google.protobuf.Any"] = &anyHandler{reg: reg, handlers: h}
	return h
}

// MarshalOptions returns protojson.MarshalOptions wired with every
// well-known-type handler and a resolver backed by reg.
func MarshalOptions(reg *protoregistry.Registry) protojson.MarshalOptions {
	return protojson.MarshalOptions{Resolver: registryResolver{reg}, Handlers: Handlers(reg)}
}

// UnmarshalOptions returns protojson.UnmarshalOptions wired the same way as
// MarshalOptions.
func UnmarshalOptions(reg *protoregistry.Registry) protojson.UnmarshalOptions {
	return protojson.UnmarshalOptions{Resolver: registryResolver{reg}, Handlers: Handlers(reg)}
}
