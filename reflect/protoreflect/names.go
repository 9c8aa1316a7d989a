// Package protoreflect defines the descriptor model and the typed runtime
// value model (ProtoValue) used throughout dynproto. It has no knowledge of
// the wire or JSON formats, nor of any particular message implementation;
// types/dynamicpb provides the concrete message container, and protodesc
// builds descriptors from descriptorpb bytes.
package protoreflect

import "strings"

// Name is an unqualified (local) identifier, e.g. "Person".
type Name string

// FullName is a fully qualified, dotted identifier, e.g. "example.Person".
type FullName string

// Parent returns the full name of the enclosing scope, or "" if name has no
// dot-separated parent (i.e. it is a top-level package-less name).
func (n FullName) Parent() FullName {
	if i := strings.LastIndexByte(string(n), '.'); i >= 0 {
		return n[:i]
	}
	return ""
}

// Name returns the unqualified, local portion of the full name.
func (n FullName) Name() Name {
	if i := strings.LastIndexByte(string(n), '.'); i >= 0 {
		return Name(n[i+1:])
	}
	return Name(n)
}

// AppendName returns the full name obtained by qualifying this full name
// with a child local name, e.g. FullName("a.b").AppendName("C") == "a.b.C".
func (n FullName) AppendName(name Name) FullName {
	if n == "" {
		return FullName(name)
	}
	return n + "." + FullName(name)
}

// Syntax is the protobuf language version. dynproto only ever handles proto3
// schemas (spec Non-goals exclude proto2 required/group semantics beyond
// byte-level skipping), but the type is kept distinct from a bare bool so
// that a descriptor that declares "proto2" in its FileDescriptorProto can be
// represented as such. protodesc.NewFile accepts "proto2" and records it
// here; it neither rejects such files nor applies proto2 semantics to them.
type Syntax int8

const (
	Proto2 Syntax = iota
	Proto3
)

func (s Syntax) String() string {
	if s == Proto2 {
		return "proto2"
	}
	return "proto3"
}

// Cardinality determines whether a field is singular, optional, or repeated.
type Cardinality int8

const (
	Singular Cardinality = iota
	Optional
	Repeated
)

func (c Cardinality) String() string {
	switch c {
	case Optional:
		return "optional"
	case Repeated:
		return "repeated"
	default:
		return "singular"
	}
}
