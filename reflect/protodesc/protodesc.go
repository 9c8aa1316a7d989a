// Package protodesc converts the canonical descriptorpb wire representation
// of a compiled .proto file (as produced by `protoc --descriptor_set_out`)
// into the protoreflect descriptor model used by the rest of dynproto.
//
// Parsing .proto source itself is out of scope: callers must already hold
// compiled FileDescriptorProto / FileDescriptorSet bytes.
package protodesc

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/protoval/dynproto/internal/errors"
	"github.com/protoval/dynproto/reflect/protoreflect"
)

// NewFileFromBytes unmarshals a single serialized FileDescriptorProto and
// converts it, resolving its dependencies against deps (already-converted
// files, keyed by their declared path).
func NewFileFromBytes(b []byte, deps map[string]*protoreflect.FileDescriptor) (*protoreflect.FileDescriptor, error) {
	fdp := &descriptorpb.FileDescriptorProto{}
	if err := proto.Unmarshal(b, fdp); err != nil {
		return nil, errors.New(errors.Descriptor, "malformed FileDescriptorProto: %v", err)
	}
	return NewFile(fdp, deps)
}

// NewFile converts a single *descriptorpb.FileDescriptorProto to a
// protoreflect.FileDescriptor. Every path named in fdp.GetDependency() must
// have a corresponding, already-converted entry in deps; callers building a
// FileDescriptorSet typically use NewFileSet instead, which resolves the
// dependency order automatically.
func NewFile(fdp *descriptorpb.FileDescriptorProto, deps map[string]*protoreflect.FileDescriptor) (*protoreflect.FileDescriptor, error) {
	syntax := protoreflect.Proto3
	switch fdp.GetSyntax() {
	case "", "proto3":
		syntax = protoreflect.Proto3
	case "proto2":
		syntax = protoreflect.Proto2
	default:
		return nil, errors.New(errors.Descriptor, "unknown syntax %q", fdp.GetSyntax())
	}

	for _, dep := range fdp.GetDependency() {
		if _, ok := deps[dep]; !ok {
			return nil, errors.New(errors.Descriptor, "unresolved dependency %q for file %q", dep, fdp.GetName())
		}
	}

	f := protoreflect.NewFileDescriptor(fdp.GetName(), fdp.GetPackage(), syntax)
	f.Dependencies = append([]string(nil), fdp.GetDependency()...)
	f.Options = fileOptions(fdp.GetOptions())

	for _, mdp := range fdp.GetMessageType() {
		m, err := newMessage(mdp, f.QualifyName(protoreflect.Name(mdp.GetName())), fdp.GetName(), "")
		if err != nil {
			return nil, err
		}
		f.AddMessage(m)
	}
	for _, edp := range fdp.GetEnumType() {
		e, err := newEnum(edp, f.QualifyName(protoreflect.Name(edp.GetName())), fdp.GetName(), "")
		if err != nil {
			return nil, err
		}
		f.AddEnum(e)
	}
	for _, sdp := range fdp.GetService() {
		s, err := newService(sdp, f.QualifyName(protoreflect.Name(sdp.GetName())), fdp.GetName())
		if err != nil {
			return nil, err
		}
		f.AddService(s)
	}

	if err := resolveMessageFieldTypes(f, deps); err != nil {
		return nil, err
	}
	return f, nil
}

// NewFileSetFromBytes unmarshals a serialized FileDescriptorSet and converts
// every file it contains, resolving inter-file dependencies regardless of
// the order files appear in the set. Returns the converted files keyed by
// path.
func NewFileSetFromBytes(b []byte) (map[string]*protoreflect.FileDescriptor, error) {
	fds := &descriptorpb.FileDescriptorSet{}
	if err := proto.Unmarshal(b, fds); err != nil {
		return nil, errors.New(errors.Descriptor, "malformed FileDescriptorSet: %v", err)
	}
	return NewFileSet(fds.GetFile())
}

// NewFileSet converts a list of FileDescriptorProto messages, topologically
// resolving dependency order among them.
func NewFileSet(protos []*descriptorpb.FileDescriptorProto) (map[string]*protoreflect.FileDescriptor, error) {
	byPath := make(map[string]*descriptorpb.FileDescriptorProto, len(protos))
	for _, p := range protos {
		byPath[p.GetName()] = p
	}

	out := make(map[string]*protoreflect.FileDescriptor, len(protos))
	visiting := make(map[string]bool)

	var visit func(path string) error
	visit = func(path string) error {
		if _, done := out[path]; done {
			return nil
		}
		if visiting[path] {
			return errors.New(errors.Descriptor, "dependency cycle involving %q", path)
		}
		p, ok := byPath[path]
		if !ok {
			return errors.New(errors.Descriptor, "missing file %q in set", path)
		}
		visiting[path] = true
		for _, dep := range p.GetDependency() {
			if err := visit(dep); err != nil {
				return err
			}
		}
		visiting[path] = false
		f, err := NewFile(p, out)
		if err != nil {
			return err
		}
		out[path] = f
		return nil
	}

	for _, p := range protos {
		if err := visit(p.GetName()); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func newMessage(mdp *descriptorpb.DescriptorProto, fullName protoreflect.FullName, filePath string, parent protoreflect.FullName) (*protoreflect.MessageDescriptor, error) {
	m := protoreflect.NewMessageDescriptor(protoreflect.Name(mdp.GetName()), fullName, filePath, parent)
	m.Options = messageOptions(mdp.GetOptions())
	if mdp.GetOptions().GetMapEntry() {
		m.MarkMapEntry()
	}
	for _, od := range mdp.GetOneofDecl() {
		m.Oneofs = append(m.Oneofs, od.GetName())
	}
	for _, nmdp := range mdp.GetNestedType() {
		nm, err := newMessage(nmdp, fullName.AppendName(protoreflect.Name(nmdp.GetName())), filePath, fullName)
		if err != nil {
			return nil, err
		}
		m.AddNestedMessage(nm)
	}
	for _, nedp := range mdp.GetEnumType() {
		ne, err := newEnum(nedp, fullName.AppendName(protoreflect.Name(nedp.GetName())), filePath, fullName)
		if err != nil {
			return nil, err
		}
		m.AddNestedEnum(ne)
	}
	// Fields are added here as stubs; their message/enum types are resolved
	// in a second pass (resolveMessageFieldTypes) once every message/enum in
	// the file is known, since a field's type_name may reference a sibling or
	// later-declared type.
	for _, fdp := range mdp.GetField() {
		fd, err := newFieldStub(fdp)
		if err != nil {
			return nil, err
		}
		if err := m.AddField(fd); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func newFieldStub(fdp *descriptorpb.FieldDescriptorProto) (*protoreflect.FieldDescriptor, error) {
	kind := protoreflect.Kind(fdp.GetType())
	cardinality := protoreflect.Singular
	switch fdp.GetLabel() {
	case descriptorpb.FieldDescriptorProto_LABEL_REPEATED:
		cardinality = protoreflect.Repeated
	case descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL:
		cardinality = protoreflect.Optional
	}
	f := protoreflect.NewFieldDescriptor(protoreflect.Name(fdp.GetName()), fdp.GetNumber(), kind, cardinality)
	if fdp.GetJsonName() != "" {
		f.JSONName = fdp.GetJsonName()
	}
	if fdp.GetTypeName() != "" {
		tn := fdp.GetTypeName()
		if len(tn) > 0 && tn[0] == '.' {
			tn = tn[1:]
		}
		f.TypeName = protoreflect.FullName(tn)
	}
	if fdp.OneofIndex != nil {
		f.OneofIndex = int(fdp.GetOneofIndex())
	}
	f.Options = fieldOptions(fdp.GetOptions())
	return f, nil
}

// resolveMessageFieldTypes performs the second pass: now that every message
// in the file (and its dependencies) is known, mark map fields and validate
// that message/enum type_names resolve to something, surfacing
// DescriptorError otherwise.
func resolveMessageFieldTypes(f *protoreflect.FileDescriptor, deps map[string]*protoreflect.FileDescriptor) error {
	lookup := newLookup(f, deps)
	var walk func(m *protoreflect.MessageDescriptor) error
	walk = func(m *protoreflect.MessageDescriptor) error {
		for _, fld := range m.Fields() {
			if fld.Kind == protoreflect.MessageKind || fld.Kind == protoreflect.GroupKind {
				target, ok := lookup.message(fld.TypeName)
				if !ok {
					return errors.WithField(errors.Descriptor, string(fld.Name), "unresolved message type %q", fld.TypeName)
				}
				fld.MessageType = target
				if target.IsMapEntry() {
					fld.IsMap = true
					key, _ := target.FieldByNumber(1)
					val, _ := target.FieldByNumber(2)
					fld.MapEntry = &protoreflect.MapFieldInfo{Key: key, Value: val}
				}
			}
			if fld.Kind == protoreflect.EnumKind {
				target, ok := lookup.enum(fld.TypeName)
				if !ok {
					return errors.WithField(errors.Descriptor, string(fld.Name), "unresolved enum type %q", fld.TypeName)
				}
				fld.EnumType = target
			}
		}
		for _, nm := range m.NestedMessages() {
			if err := walk(nm); err != nil {
				return err
			}
		}
		return nil
	}
	for _, m := range f.Messages() {
		if err := walk(m); err != nil {
			return err
		}
	}
	return nil
}

// lookup resolves full names against the file being built plus its already
// converted dependencies.
type lookup struct {
	messages map[protoreflect.FullName]*protoreflect.MessageDescriptor
	enums    map[protoreflect.FullName]*protoreflect.EnumDescriptor
}

func newLookup(f *protoreflect.FileDescriptor, deps map[string]*protoreflect.FileDescriptor) *lookup {
	l := &lookup{
		messages: map[protoreflect.FullName]*protoreflect.MessageDescriptor{},
		enums:    map[protoreflect.FullName]*protoreflect.EnumDescriptor{},
	}
	l.indexFile(f)
	for _, dep := range deps {
		l.indexFile(dep)
	}
	return l
}

func (l *lookup) indexFile(f *protoreflect.FileDescriptor) {
	var walkM func(m *protoreflect.MessageDescriptor)
	walkM = func(m *protoreflect.MessageDescriptor) {
		l.messages[m.FullName] = m
		for _, nm := range m.NestedMessages() {
			walkM(nm)
		}
		for _, ne := range m.NestedEnums() {
			l.enums[ne.FullName] = ne
		}
	}
	for _, m := range f.Messages() {
		walkM(m)
	}
	for _, e := range f.Enums() {
		l.enums[e.FullName] = e
	}
}

func (l *lookup) message(name protoreflect.FullName) (*protoreflect.MessageDescriptor, bool) {
	m, ok := l.messages[name]
	return m, ok
}

func (l *lookup) enum(name protoreflect.FullName) (*protoreflect.EnumDescriptor, bool) {
	e, ok := l.enums[name]
	return e, ok
}

func newEnum(edp *descriptorpb.EnumDescriptorProto, fullName protoreflect.FullName, filePath string, parent protoreflect.FullName) (*protoreflect.EnumDescriptor, error) {
	e := protoreflect.NewEnumDescriptor(protoreflect.Name(edp.GetName()), fullName, filePath, parent)
	e.Options = enumOptions(edp.GetOptions())
	for _, vdp := range edp.GetValue() {
		if err := e.AddValue(&protoreflect.EnumValue{
			Name:    protoreflect.Name(vdp.GetName()),
			Number:  vdp.GetNumber(),
			Options: enumValueOptions(vdp.GetOptions()),
		}); err != nil {
			return nil, err
		}
	}
	if !e.HasZero() {
		return nil, errors.WithField(errors.Descriptor, string(e.Name), "proto3 enum must declare a value with number 0")
	}
	return e, nil
}

func newService(sdp *descriptorpb.ServiceDescriptorProto, fullName protoreflect.FullName, filePath string) (*protoreflect.ServiceDescriptor, error) {
	s := protoreflect.NewServiceDescriptor(protoreflect.Name(sdp.GetName()), fullName, filePath)
	s.Options = serviceOptions(sdp.GetOptions())
	for _, mdp := range sdp.GetMethod() {
		input := trimLeadingDot(mdp.GetInputType())
		output := trimLeadingDot(mdp.GetOutputType())
		s.AddMethod(&protoreflect.MethodDescriptor{
			Name:            protoreflect.Name(mdp.GetName()),
			InputType:       protoreflect.FullName(input),
			OutputType:      protoreflect.FullName(output),
			ClientStreaming: mdp.GetClientStreaming(),
			ServerStreaming: mdp.GetServerStreaming(),
			Options:         methodOptions(mdp.GetOptions()),
		})
	}
	return s, nil
}

func trimLeadingDot(s string) string {
	if len(s) > 0 && s[0] == '.' {
		return s[1:]
	}
	return s
}

func fileOptions(o *descriptorpb.FileOptions) protoreflect.Options {
	if o == nil {
		return protoreflect.Options{}
	}
	m := protoreflect.Options{}
	if o.JavaPackage != nil {
		m["java_package"] = o.GetJavaPackage()
	}
	if o.GoPackage != nil {
		m["go_package"] = o.GetGoPackage()
	}
	if o.Deprecated != nil {
		m["deprecated"] = o.GetDeprecated()
	}
	return m
}

func messageOptions(o *descriptorpb.MessageOptions) protoreflect.Options {
	if o == nil {
		return protoreflect.Options{}
	}
	m := protoreflect.Options{}
	if o.Deprecated != nil {
		m["deprecated"] = o.GetDeprecated()
	}
	if o.MapEntry != nil {
		m["map_entry"] = o.GetMapEntry()
	}
	return m
}

func fieldOptions(o *descriptorpb.FieldOptions) protoreflect.Options {
	if o == nil {
		return protoreflect.Options{}
	}
	m := protoreflect.Options{}
	if o.Deprecated != nil {
		m["deprecated"] = o.GetDeprecated()
	}
	if o.Packed != nil {
		m["packed"] = o.GetPacked()
	}
	return m
}

func enumOptions(o *descriptorpb.EnumOptions) protoreflect.Options {
	if o == nil {
		return protoreflect.Options{}
	}
	m := protoreflect.Options{}
	if o.Deprecated != nil {
		m["deprecated"] = o.GetDeprecated()
	}
	return m
}

func enumValueOptions(o *descriptorpb.EnumValueOptions) protoreflect.Options {
	if o == nil {
		return protoreflect.Options{}
	}
	m := protoreflect.Options{}
	if o.Deprecated != nil {
		m["deprecated"] = o.GetDeprecated()
	}
	return m
}

func serviceOptions(o *descriptorpb.ServiceOptions) protoreflect.Options {
	if o == nil {
		return protoreflect.Options{}
	}
	m := protoreflect.Options{}
	if o.Deprecated != nil {
		m["deprecated"] = o.GetDeprecated()
	}
	return m
}

func methodOptions(o *descriptorpb.MethodOptions) protoreflect.Options {
	if o == nil {
		return protoreflect.Options{}
	}
	m := protoreflect.Options{}
	if o.Deprecated != nil {
		m["deprecated"] = o.GetDeprecated()
	}
	return m
}

// String returns a human-readable rendering of a file descriptor, useful for
// debugging; not part of the canonical proto3 JSON mapping.
func String(f *protoreflect.FileDescriptor) string {
	return fmt.Sprintf("file %q (package %q, %d messages, %d enums, %d services)",
		f.Name, f.Package, len(f.Messages()), len(f.Enums()), len(f.Services()))
}
