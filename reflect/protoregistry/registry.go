// Package protoregistry provides TypeRegistry, a concurrent-safe index of
// descriptors keyed by file path and by fully qualified type name.
//
// Readers may query concurrently without blocking each other; writers
// serialize through an exclusive gate, and a concurrent reader never
// observes a partially registered file.
package protoregistry

import (
	"sync"

	"github.com/protoval/dynproto/internal/errors"
	"github.com/protoval/dynproto/reflect/protoreflect"
)

// entryKind distinguishes what a full-name index slot holds.
type entryKind int8

const (
	entryMessage entryKind = iota
	entryEnum
	entryService
)

type entry struct {
	kind    entryKind
	message *protoreflect.MessageDescriptor
	enum    *protoreflect.EnumDescriptor
	service *protoreflect.ServiceDescriptor
}

// Registry indexes files and the types declared within them.
//
// A Registry is safe for concurrent use: RegisterFile takes an exclusive
// lock; every lookup takes a shared lock, so any number of readers may
// proceed together and never observe a registration in progress.
type Registry struct {
	mu       sync.RWMutex
	files    map[string]*protoreflect.FileDescriptor
	byName   map[protoreflect.FullName]*entry
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		files:  map[string]*protoreflect.FileDescriptor{},
		byName: map[protoreflect.FullName]*entry{},
	}
}

// GlobalFiles is a convenience shared default registry. No component in the
// core requires it; the facade and every lower-level package accept an
// explicit *Registry everywhere.
var GlobalFiles = NewRegistry()

// RegisterFile registers f and indexes every message (including nested),
// enum (including nested), and service it declares.
//
// Every file named in f.Dependencies must already be registered; registering
// a file whose dependency is missing fails with DescriptorError (atomic
// multi-file registration is provided by RegisterFileSet).
//
// Registering a file byte-for-byte identical (per FileDescriptor.Equal) to
// one already registered at the same path is a no-op that returns nil.
// Registering a file, or any type within it, that conflicts by name with a
// non-identical existing entry fails with NameConflict and leaves the
// registry entirely unchanged.
func (r *Registry) RegisterFile(f *protoreflect.FileDescriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerFileLocked(f)
}

func (r *Registry) registerFileLocked(f *protoreflect.FileDescriptor) error {
	if existing, ok := r.files[f.Name]; ok {
		if existing.Equal(f) {
			return nil
		}
		return errors.New(errors.NameConflict, "file %q already registered with a different descriptor", f.Name)
	}
	for _, dep := range f.Dependencies {
		if _, ok := r.files[dep]; !ok {
			return errors.New(errors.Descriptor, "cannot register %q: dependency %q is not registered", f.Name, dep)
		}
	}

	// Stage every new entry before mutating the live index, so a conflict
	// discovered partway through leaves the registry untouched.
	staged := map[protoreflect.FullName]*entry{}
	var collectMessage func(m *protoreflect.MessageDescriptor) error
	collectMessage = func(m *protoreflect.MessageDescriptor) error {
		if err := stage(r.byName, staged, m.FullName, &entry{kind: entryMessage, message: m}, func(e *entry) bool {
			return e.kind == entryMessage && e.message.Equal(m)
		}); err != nil {
			return err
		}
		for _, nm := range m.NestedMessages() {
			if err := collectMessage(nm); err != nil {
				return err
			}
		}
		for _, ne := range m.NestedEnums() {
			if err := stage(r.byName, staged, ne.FullName, &entry{kind: entryEnum, enum: ne}, func(e *entry) bool {
				return e.kind == entryEnum && e.enum.Equal(ne)
			}); err != nil {
				return err
			}
		}
		return nil
	}
	for _, m := range f.Messages() {
		if err := collectMessage(m); err != nil {
			return err
		}
	}
	for _, e := range f.Enums() {
		if err := stage(r.byName, staged, e.FullName, &entry{kind: entryEnum, enum: e}, func(x *entry) bool {
			return x.kind == entryEnum && x.enum.Equal(e)
		}); err != nil {
			return err
		}
	}
	for _, s := range f.Services() {
		if err := stage(r.byName, staged, s.FullName, &entry{kind: entryService, service: s}, func(x *entry) bool {
			return x.kind == entryService && x.service == s // services have no Equal; identity-only
		}); err != nil {
			return err
		}
	}

	r.files[f.Name] = f
	for name, e := range staged {
		r.byName[name] = e
	}
	return nil
}

// stage records a prospective new entry in staged, unless an identical entry
// already lives in live (in which case it is silently skipped as a no-op),
// or a conflicting entry exists in either live or staged (in which case
// NameConflict is returned).
func stage(live, staged map[protoreflect.FullName]*entry, name protoreflect.FullName, e *entry, sameAs func(*entry) bool) error {
	if existing, ok := live[name]; ok {
		if sameAs(existing) {
			return nil
		}
		return errors.New(errors.NameConflict, "type %q already registered with a different descriptor", name)
	}
	if _, ok := staged[name]; ok {
		return errors.New(errors.NameConflict, "type %q declared twice in the same file set", name)
	}
	staged[name] = e
	return nil
}

// RegisterFileSet registers every file in files atomically: either all
// succeed, or none are applied. Dependency order within the set does not
// matter; use protodesc.NewFileSet to convert the corresponding
// FileDescriptorProtos first.
func (r *Registry) RegisterFileSet(files map[string]*protoreflect.FileDescriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	savedFiles := make(map[string]*protoreflect.FileDescriptor, len(r.files))
	for k, v := range r.files {
		savedFiles[k] = v
	}
	savedByName := make(map[protoreflect.FullName]*entry, len(r.byName))
	for k, v := range r.byName {
		savedByName[k] = v
	}
	rollback := func() { r.files, r.byName = savedFiles, savedByName }

	registered := map[string]bool{}
	remaining := make(map[string]*protoreflect.FileDescriptor, len(files))
	for path, f := range files {
		remaining[path] = f
	}
	for len(remaining) > 0 {
		progressed := false
		for path, f := range remaining {
			ready := true
			for _, dep := range f.Dependencies {
				if _, ok := r.files[dep]; ok {
					continue
				}
				if registered[dep] {
					continue
				}
				if _, ok := files[dep]; ok {
					ready = false
					break
				}
			}
			if !ready {
				continue
			}
			if err := r.registerFileLocked(f); err != nil {
				rollback()
				return err
			}
			registered[path] = true
			delete(remaining, path)
			progressed = true
		}
		if !progressed {
			rollback()
			return errors.New(errors.Descriptor, "unresolvable dependency cycle among files being registered")
		}
	}
	return nil
}

// FindFileByPath returns the file registered at path.
func (r *Registry) FindFileByPath(path string) (*protoreflect.FileDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.files[path]
	return f, ok
}

// RangeFiles calls f for every registered file in an undefined order.
// Returning false from f stops iteration early.
func (r *Registry) RangeFiles(f func(*protoreflect.FileDescriptor) bool) {
	r.mu.RLock()
	snapshot := make([]*protoreflect.FileDescriptor, 0, len(r.files))
	for _, fd := range r.files {
		snapshot = append(snapshot, fd)
	}
	r.mu.RUnlock()
	for _, fd := range snapshot {
		if !f(fd) {
			return
		}
	}
}

// FindMessage looks up a message by full name.
func (r *Registry) FindMessage(name protoreflect.FullName) (*protoreflect.MessageDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byName[name]
	if !ok || e.kind != entryMessage {
		return nil, false
	}
	return e.message, true
}

// FindEnum looks up an enum by full name.
func (r *Registry) FindEnum(name protoreflect.FullName) (*protoreflect.EnumDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byName[name]
	if !ok || e.kind != entryEnum {
		return nil, false
	}
	return e.enum, true
}

// FindService looks up a service by full name.
func (r *Registry) FindService(name protoreflect.FullName) (*protoreflect.ServiceDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byName[name]
	if !ok || e.kind != entryService {
		return nil, false
	}
	return e.service, true
}

// FindAny looks up any type (message, enum, or service) by full name,
// returning the first match without narrowing its kind; callers that know
// what they expect should prefer FindMessage/FindEnum/FindService.
func (r *Registry) FindAny(name protoreflect.FullName) (interface{}, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	switch e.kind {
	case entryMessage:
		return e.message, true
	case entryEnum:
		return e.enum, true
	default:
		return e.service, true
	}
}

// RangeMessages calls f for every registered message in an undefined order.
func (r *Registry) RangeMessages(f func(*protoreflect.MessageDescriptor) bool) {
	r.mu.RLock()
	var snapshot []*protoreflect.MessageDescriptor
	for _, e := range r.byName {
		if e.kind == entryMessage {
			snapshot = append(snapshot, e.message)
		}
	}
	r.mu.RUnlock()
	for _, m := range snapshot {
		if !f(m) {
			return
		}
	}
}
