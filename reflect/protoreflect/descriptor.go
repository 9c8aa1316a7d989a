package protoreflect

import (
	"sort"

	"github.com/protoval/dynproto/internal/errors"
)

// FileDescriptor describes a single compiled .proto file.
//
// FileDescriptor and everything it owns is immutable once returned by
// protodesc.NewFile; it is safe for concurrent use by any number of readers
// forever after construction.
type FileDescriptor struct {
	Name         string // path-like, e.g. "example/person.proto"
	Package      string // dotted, possibly empty
	Dependencies []string
	Syntax       Syntax
	Options      Options

	messages map[Name]*MessageDescriptor
	enums    map[Name]*EnumDescriptor
	services map[Name]*ServiceDescriptor
}

// NewFileDescriptor constructs an empty FileDescriptor ready to have
// top-level messages/enums/services added via its Add* methods before being
// sealed by a caller (typically protodesc.NewFile).
func NewFileDescriptor(name, pkg string, syntax Syntax) *FileDescriptor {
	return &FileDescriptor{
		Name:     name,
		Package:  pkg,
		Syntax:   syntax,
		Options:  Options{},
		messages: map[Name]*MessageDescriptor{},
		enums:    map[Name]*EnumDescriptor{},
		services: map[Name]*ServiceDescriptor{},
	}
}

// QualifyName returns the full name of a type named `local` declared at file
// scope: package + "." + local, or just local if package is empty.
func (f *FileDescriptor) QualifyName(local Name) FullName {
	if f.Package == "" {
		return FullName(local)
	}
	return FullName(f.Package) + "." + FullName(local)
}

// AddMessage registers a top-level message descriptor under its local name.
func (f *FileDescriptor) AddMessage(m *MessageDescriptor) {
	f.messages[Name(m.Name)] = m
}

// AddEnum registers a top-level enum descriptor under its local name.
func (f *FileDescriptor) AddEnum(e *EnumDescriptor) {
	f.enums[Name(e.Name)] = e
}

// AddService registers a service descriptor under its local name.
func (f *FileDescriptor) AddService(s *ServiceDescriptor) {
	f.services[Name(s.Name)] = s
}

// Messages returns the top-level messages declared in this file, sorted by
// name for deterministic iteration.
func (f *FileDescriptor) Messages() []*MessageDescriptor {
	out := make([]*MessageDescriptor, 0, len(f.messages))
	for _, m := range f.messages {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Message looks up a top-level message by local name.
func (f *FileDescriptor) Message(name Name) (*MessageDescriptor, bool) {
	m, ok := f.messages[name]
	return m, ok
}

// Enums returns the top-level enums declared in this file, sorted by name.
func (f *FileDescriptor) Enums() []*EnumDescriptor {
	out := make([]*EnumDescriptor, 0, len(f.enums))
	for _, e := range f.enums {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Enum looks up a top-level enum by local name.
func (f *FileDescriptor) Enum(name Name) (*EnumDescriptor, bool) {
	e, ok := f.enums[name]
	return e, ok
}

// Services returns the services declared in this file, sorted by name.
func (f *FileDescriptor) Services() []*ServiceDescriptor {
	out := make([]*ServiceDescriptor, 0, len(f.services))
	for _, s := range f.services {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Service looks up a service by local name.
func (f *FileDescriptor) Service(name Name) (*ServiceDescriptor, bool) {
	s, ok := f.services[name]
	return s, ok
}

// Equal reports structural equality: same name, package, dependencies,
// syntax, options, and recursively equal messages/enums/services.
func (f *FileDescriptor) Equal(o *FileDescriptor) bool {
	if f == o {
		return true
	}
	if f == nil || o == nil {
		return false
	}
	if f.Name != o.Name || f.Package != o.Package || f.Syntax != o.Syntax {
		return false
	}
	if len(f.Dependencies) != len(o.Dependencies) {
		return false
	}
	for i := range f.Dependencies {
		if f.Dependencies[i] != o.Dependencies[i] {
			return false
		}
	}
	if !f.Options.Equal(o.Options) {
		return false
	}
	if len(f.messages) != len(o.messages) || len(f.enums) != len(o.enums) || len(f.services) != len(o.services) {
		return false
	}
	for name, m := range f.messages {
		om, ok := o.messages[name]
		if !ok || !m.Equal(om) {
			return false
		}
	}
	for name, e := range f.enums {
		oe, ok := o.enums[name]
		if !ok || !e.Equal(oe) {
			return false
		}
	}
	for name, s := range f.services {
		osvc, ok := o.services[name]
		if !ok || s.FullName != osvc.FullName || len(s.methods) != len(osvc.methods) || !s.Options.Equal(osvc.Options) {
			return false
		}
		for mname, m := range s.methods {
			om, ok := osvc.methods[mname]
			if !ok || m.InputType != om.InputType || m.OutputType != om.OutputType ||
				m.ClientStreaming != om.ClientStreaming || m.ServerStreaming != om.ServerStreaming || !m.Options.Equal(om.Options) {
				return false
			}
		}
	}
	return true
}

// MessageDescriptor describes a single message type.
type MessageDescriptor struct {
	Name                  Name
	FullName              FullName
	FilePath              string
	ParentMessageFullName FullName // "" unless nested
	Options               Options
	Oneofs                []string // ordered oneof names

	fieldsByNumber map[int32]*FieldDescriptor
	fieldsByName   map[Name]*FieldDescriptor
	nestedMessages map[Name]*MessageDescriptor
	nestedEnums    map[Name]*EnumDescriptor

	// isMapEntry marks a message synthesized by the compiler to represent a
	// map<K,V> field; such messages are never referenced directly by callers.
	isMapEntry bool
}

// NewMessageDescriptor constructs an empty MessageDescriptor; fields and
// nested types are added with AddField/AddNestedMessage/AddNestedEnum before
// the message is handed to callers.
func NewMessageDescriptor(name Name, fullName FullName, filePath string, parent FullName) *MessageDescriptor {
	return &MessageDescriptor{
		Name:                  name,
		FullName:              fullName,
		FilePath:              filePath,
		ParentMessageFullName: parent,
		Options:               Options{},
		fieldsByNumber:        map[int32]*FieldDescriptor{},
		fieldsByName:          map[Name]*FieldDescriptor{},
		nestedMessages:        map[Name]*MessageDescriptor{},
		nestedEnums:           map[Name]*EnumDescriptor{},
	}
}

const reservedFieldRangeStart = 19000
const reservedFieldRangeEnd = 19999

// AddField inserts a field into the message. It enforces spec invariants:
// field numbers are positive, unique, and outside [19000, 19999]; field names
// are unique.
func (m *MessageDescriptor) AddField(f *FieldDescriptor) error {
	if f.Number <= 0 {
		return errors.WithField(errors.Descriptor, string(f.Name), "field number %d must be positive", f.Number)
	}
	if f.Number >= reservedFieldRangeStart && f.Number <= reservedFieldRangeEnd {
		return errors.WithField(errors.Descriptor, string(f.Name), "field number %d is in the reserved range [%d, %d]", f.Number, reservedFieldRangeStart, reservedFieldRangeEnd)
	}
	if _, dup := m.fieldsByNumber[f.Number]; dup {
		return errors.WithField(errors.Descriptor, string(f.Name), "duplicate field number %d", f.Number)
	}
	if _, dup := m.fieldsByName[f.Name]; dup {
		return errors.WithField(errors.Descriptor, string(f.Name), "duplicate field name")
	}
	if (f.Kind == MessageKind || f.Kind == EnumKind || f.Kind == GroupKind) && f.TypeName == "" {
		return errors.WithField(errors.Descriptor, string(f.Name), "kind %s requires a type_name", f.Kind)
	}
	if f.IsMap && f.MapEntry == nil {
		return errors.WithField(errors.Descriptor, string(f.Name), "is_map requires map_entry")
	}
	if f.IsMap && f.MapEntry != nil && !f.MapEntry.Key.Kind.IsValidMapKeyKind() {
		return errors.WithField(errors.Descriptor, string(f.Name), "invalid map key kind %s", f.MapEntry.Key.Kind)
	}
	f.owner = m
	m.fieldsByNumber[f.Number] = f
	m.fieldsByName[f.Name] = f
	return nil
}

// AddNestedMessage registers a nested message type.
func (m *MessageDescriptor) AddNestedMessage(nm *MessageDescriptor) {
	m.nestedMessages[nm.Name] = nm
}

// AddNestedEnum registers a nested enum type.
func (m *MessageDescriptor) AddNestedEnum(ne *EnumDescriptor) {
	m.nestedEnums[ne.Name] = ne
}

// MarkMapEntry flags this message as a generated map-entry message (fields 1
// = key, 2 = value). It is not a public proto type and is excluded from
// normal traversal by callers that care about "real" nested messages.
func (m *MessageDescriptor) MarkMapEntry() { m.isMapEntry = true }

// IsMapEntry reports whether this message is a synthesized map-entry type.
func (m *MessageDescriptor) IsMapEntry() bool { return m.isMapEntry }

// FieldByNumber looks up a field by its wire field number.
func (m *MessageDescriptor) FieldByNumber(n int32) (*FieldDescriptor, bool) {
	f, ok := m.fieldsByNumber[n]
	return f, ok
}

// FieldByName looks up a field by its declared proto name.
func (m *MessageDescriptor) FieldByName(name Name) (*FieldDescriptor, bool) {
	f, ok := m.fieldsByName[name]
	return f, ok
}

// Fields returns every field sorted ascending by field number; this is the
// canonical order the binary codec walks for deterministic output.
func (m *MessageDescriptor) Fields() []*FieldDescriptor {
	out := make([]*FieldDescriptor, 0, len(m.fieldsByNumber))
	for _, f := range m.fieldsByNumber {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// NestedMessage looks up a nested message by local name.
func (m *MessageDescriptor) NestedMessage(name Name) (*MessageDescriptor, bool) {
	nm, ok := m.nestedMessages[name]
	return nm, ok
}

// NestedMessages returns every nested message, sorted by name.
func (m *MessageDescriptor) NestedMessages() []*MessageDescriptor {
	out := make([]*MessageDescriptor, 0, len(m.nestedMessages))
	for _, nm := range m.nestedMessages {
		out = append(out, nm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// NestedEnum looks up a nested enum by local name.
func (m *MessageDescriptor) NestedEnum(name Name) (*EnumDescriptor, bool) {
	ne, ok := m.nestedEnums[name]
	return ne, ok
}

// NestedEnums returns every nested enum, sorted by name.
func (m *MessageDescriptor) NestedEnums() []*EnumDescriptor {
	out := make([]*EnumDescriptor, 0, len(m.nestedEnums))
	for _, ne := range m.nestedEnums {
		out = append(out, ne)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Equal reports structural equality between two message descriptors:
// same names, fields (recursively, matched by number), nested types, and
// options.
func (m *MessageDescriptor) Equal(o *MessageDescriptor) bool {
	if m == o {
		return true
	}
	if m == nil || o == nil {
		return false
	}
	if m.Name != o.Name || m.FullName != o.FullName || m.isMapEntry != o.isMapEntry {
		return false
	}
	if !m.Options.Equal(o.Options) {
		return false
	}
	if len(m.fieldsByNumber) != len(o.fieldsByNumber) {
		return false
	}
	for num, f := range m.fieldsByNumber {
		of, ok := o.fieldsByNumber[num]
		if !ok || !f.Equal(of) {
			return false
		}
	}
	if len(m.nestedMessages) != len(o.nestedMessages) || len(m.nestedEnums) != len(o.nestedEnums) {
		return false
	}
	for name, nm := range m.nestedMessages {
		onm, ok := o.nestedMessages[name]
		if !ok || !nm.Equal(onm) {
			return false
		}
	}
	for name, ne := range m.nestedEnums {
		one, ok := o.nestedEnums[name]
		if !ok || !ne.Equal(one) {
			return false
		}
	}
	return true
}

// MapFieldInfo describes the synthesized key/value fields of a map-entry
// message.
type MapFieldInfo struct {
	Key   *FieldDescriptor
	Value *FieldDescriptor
}

// FieldDescriptor describes a single field of a message.
type FieldDescriptor struct {
	Name        Name
	JSONName    string // NewFieldDescriptor sets it to Name's lowerCamelCase form
	Number      int32
	Kind        Kind
	TypeName    FullName // full name of referenced message/enum; required for message/enum/group kinds
	Cardinality Cardinality
	IsMap       bool
	MapEntry    *MapFieldInfo // non-nil iff IsMap
	OneofIndex  int           // -1 if not part of a oneof
	Default     *ProtoValue   // explicit-presence / enum default, optional
	Options     Options

	// MessageType and EnumType hold the resolved descriptor a message/group
	// or enum kind field's TypeName refers to. protodesc.resolveMessageFieldTypes
	// populates these once every type in the file set is known; a field never
	// reaches a caller with TypeName set but these left nil.
	MessageType *MessageDescriptor
	EnumType    *EnumDescriptor

	owner *MessageDescriptor
}

// NewFieldDescriptor constructs a field descriptor with JSONName set to
// name's lowerCamelCase form.
func NewFieldDescriptor(name Name, number int32, kind Kind, cardinality Cardinality) *FieldDescriptor {
	return &FieldDescriptor{
		Name:        name,
		JSONName:    ToCamelCase(string(name)),
		Number:      number,
		Kind:        kind,
		Cardinality: cardinality,
		OneofIndex:  -1,
		Options:     Options{},
	}
}

// ContainingMessage returns the message this field belongs to, or nil if the
// field has not yet been added to a message via MessageDescriptor.AddField.
func (f *FieldDescriptor) ContainingMessage() *MessageDescriptor { return f.owner }

// IsRepeated reports whether the field has list semantics (and is not itself
// a map field, which also has Cardinality == Repeated at the wire level but
// exposes map semantics to callers).
func (f *FieldDescriptor) IsRepeated() bool {
	return f.Cardinality == Repeated && !f.IsMap
}

// InOneof reports whether this field is a member of a oneof group.
func (f *FieldDescriptor) InOneof() bool { return f.OneofIndex >= 0 }

// IsScalar reports whether the field's kind is a scalar (proxies Kind.IsScalar).
func (f *FieldDescriptor) IsScalar() bool { return f.Kind.IsScalar() }

// IsNumeric reports whether the field's kind is numeric (proxies Kind.IsNumeric).
func (f *FieldDescriptor) IsNumeric() bool { return f.Kind.IsNumeric() }

// Equal reports structural equality of two field descriptors.
func (f *FieldDescriptor) Equal(o *FieldDescriptor) bool {
	if f == o {
		return true
	}
	if f == nil || o == nil {
		return false
	}
	if f.Name != o.Name || f.Number != o.Number || f.Kind != o.Kind ||
		f.TypeName != o.TypeName || f.Cardinality != o.Cardinality ||
		f.IsMap != o.IsMap || f.OneofIndex != o.OneofIndex {
		return false
	}
	return f.Options.Equal(o.Options)
}

// ToCamelCase converts a snake_case proto field name to the lowerCamelCase
// form used as the default JSON name, per the proto3 JSON mapping.
func ToCamelCase(s string) string {
	var b []byte
	upperNext := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '_' {
			upperNext = true
			continue
		}
		if upperNext && c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		upperNext = false
		b = append(b, c)
	}
	return string(b)
}

// EnumValue describes a single named, numbered constant of an enum.
type EnumValue struct {
	Name    Name
	Number  int32
	Options Options
}

// EnumDescriptor describes an enum type.
type EnumDescriptor struct {
	Name                  Name
	FullName              FullName
	FilePath              string
	ParentMessageFullName FullName
	Options               Options

	valuesByName   map[Name]*EnumValue
	valuesByNumber map[int32]*EnumValue
	orderedNames   []Name // declaration order, for deterministic Values()
}

// NewEnumDescriptor constructs an empty EnumDescriptor ready to have values
// added via AddValue.
func NewEnumDescriptor(name Name, fullName FullName, filePath string, parent FullName) *EnumDescriptor {
	return &EnumDescriptor{
		Name:                  name,
		FullName:              fullName,
		FilePath:              filePath,
		ParentMessageFullName: parent,
		Options:               Options{},
		valuesByName:          map[Name]*EnumValue{},
		valuesByNumber:        map[int32]*EnumValue{},
	}
}

// AddValue registers an enum value. The first value added with number 0
// becomes the proto3 default; duplicate names are rejected, but duplicate
// numbers with distinct names (aliases) are permitted, matching real
// protobuf semantics.
func (e *EnumDescriptor) AddValue(v *EnumValue) error {
	if _, dup := e.valuesByName[v.Name]; dup {
		return errors.WithField(errors.Descriptor, string(v.Name), "duplicate enum value name")
	}
	e.valuesByName[v.Name] = v
	if _, exists := e.valuesByNumber[v.Number]; !exists {
		e.valuesByNumber[v.Number] = v
	}
	e.orderedNames = append(e.orderedNames, v.Name)
	return nil
}

// ByName looks up an enum value by name.
func (e *EnumDescriptor) ByName(name Name) (*EnumValue, bool) {
	v, ok := e.valuesByName[name]
	return v, ok
}

// ByNumber looks up an enum value by number. Unknown numbers (those not
// declared in the descriptor but legally encountered on the wire) are not
// found here; callers preserve them numerically without a name.
func (e *EnumDescriptor) ByNumber(n int32) (*EnumValue, bool) {
	v, ok := e.valuesByNumber[n]
	return v, ok
}

// Values returns every declared enum value in declaration order.
func (e *EnumDescriptor) Values() []*EnumValue {
	out := make([]*EnumValue, len(e.orderedNames))
	for i, name := range e.orderedNames {
		out[i] = e.valuesByName[name]
	}
	return out
}

// HasZero reports whether the value with number 0 exists, as required by
// proto3.
func (e *EnumDescriptor) HasZero() bool {
	_, ok := e.valuesByNumber[0]
	return ok
}

// Equal reports structural equality of two enum descriptors.
func (e *EnumDescriptor) Equal(o *EnumDescriptor) bool {
	if e == o {
		return true
	}
	if e == nil || o == nil {
		return false
	}
	if e.Name != o.Name || e.FullName != o.FullName {
		return false
	}
	if len(e.valuesByName) != len(o.valuesByName) {
		return false
	}
	for name, v := range e.valuesByName {
		ov, ok := o.valuesByName[name]
		if !ok || v.Number != ov.Number || !v.Options.Equal(ov.Options) {
			return false
		}
	}
	return e.Options.Equal(o.Options)
}

// MethodDescriptor describes a single RPC method. Method descriptors are
// descriptive only; the codec never interprets them.
type MethodDescriptor struct {
	Name             Name
	InputType        FullName
	OutputType       FullName
	ClientStreaming  bool
	ServerStreaming  bool
	Options          Options
}

// ServiceDescriptor describes an RPC service.
type ServiceDescriptor struct {
	Name     Name
	FullName FullName
	FilePath string
	Options  Options

	methods        map[Name]*MethodDescriptor
	orderedMethods []Name
}

// NewServiceDescriptor constructs an empty ServiceDescriptor.
func NewServiceDescriptor(name Name, fullName FullName, filePath string) *ServiceDescriptor {
	return &ServiceDescriptor{
		Name:     name,
		FullName: fullName,
		FilePath: filePath,
		Options:  Options{},
		methods:  map[Name]*MethodDescriptor{},
	}
}

// AddMethod registers a method in declaration order.
func (s *ServiceDescriptor) AddMethod(m *MethodDescriptor) {
	s.methods[m.Name] = m
	s.orderedMethods = append(s.orderedMethods, m.Name)
}

// Method looks up a method by name.
func (s *ServiceDescriptor) Method(name Name) (*MethodDescriptor, bool) {
	m, ok := s.methods[name]
	return m, ok
}

// Methods returns every method in declaration order.
func (s *ServiceDescriptor) Methods() []*MethodDescriptor {
	out := make([]*MethodDescriptor, len(s.orderedMethods))
	for i, name := range s.orderedMethods {
		out[i] = s.methods[name]
	}
	return out
}
