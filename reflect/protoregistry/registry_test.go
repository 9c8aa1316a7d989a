package protoregistry_test

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/protoval/dynproto/reflect/protoreflect"
	"github.com/protoval/dynproto/reflect/protoregistry"
)

func fileWithMessage(t *testing.T, path, localName string) *protoreflect.FileDescriptor {
	t.Helper()
	f := protoreflect.NewFileDescriptor(path, "example", protoreflect.Proto3)
	md := protoreflect.NewMessageDescriptor(
		protoreflect.Name(localName),
		f.QualifyName(protoreflect.Name(localName)),
		path,
		"",
	)
	f.AddMessage(md)
	return f
}

func TestRegisterFileAndFind(t *testing.T) {
	r := protoregistry.NewRegistry()
	f := fileWithMessage(t, "a.proto", "A")
	if err := r.RegisterFile(f); err != nil {
		t.Fatalf("RegisterFile: %v", err)
	}
	if _, ok := r.FindMessage("example.A"); !ok {
		t.Fatalf("expected to find example.A")
	}
	if _, ok := r.FindFileByPath("a.proto"); !ok {
		t.Fatalf("expected to find a.proto")
	}
}

func TestRegisterFileIdempotent(t *testing.T) {
	r := protoregistry.NewRegistry()
	f := fileWithMessage(t, "a.proto", "A")
	if err := r.RegisterFile(f); err != nil {
		t.Fatalf("first RegisterFile: %v", err)
	}
	if err := r.RegisterFile(f); err != nil {
		t.Fatalf("re-registering identical file should be a no-op, got: %v", err)
	}
}

func TestRegisterFileConflict(t *testing.T) {
	r := protoregistry.NewRegistry()
	f1 := fileWithMessage(t, "a.proto", "A")
	if err := r.RegisterFile(f1); err != nil {
		t.Fatalf("RegisterFile: %v", err)
	}
	f2 := protoreflect.NewFileDescriptor("a.proto", "example", protoreflect.Proto3)
	f2.AddMessage(protoreflect.NewMessageDescriptor("B", f2.QualifyName("B"), "a.proto", ""))
	err := r.RegisterFile(f2)
	if err == nil {
		t.Fatalf("expected NameConflict registering a different descriptor at the same path")
	}
	if !strings.Contains(err.Error(), "already registered") {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := r.FindMessage("example.B"); ok {
		t.Fatalf("conflicting registration must not leak partial state")
	}
}

func TestRegisterFileMissingDependency(t *testing.T) {
	r := protoregistry.NewRegistry()
	f := fileWithMessage(t, "b.proto", "B")
	f.Dependencies = []string{"a.proto"}
	if err := r.RegisterFile(f); err == nil {
		t.Fatalf("expected error for missing dependency")
	}
}

func TestRegisterFileSetResolvesOrder(t *testing.T) {
	r := protoregistry.NewRegistry()
	a := fileWithMessage(t, "a.proto", "A")
	b := fileWithMessage(t, "b.proto", "B")
	b.Dependencies = []string{"a.proto"}

	err := r.RegisterFileSet(map[string]*protoreflect.FileDescriptor{
		"b.proto": b,
		"a.proto": a,
	})
	if err != nil {
		t.Fatalf("RegisterFileSet: %v", err)
	}
	if _, ok := r.FindMessage("example.A"); !ok {
		t.Fatalf("expected example.A registered")
	}
	if _, ok := r.FindMessage("example.B"); !ok {
		t.Fatalf("expected example.B registered")
	}
}

func TestRegisterFileSetCycle(t *testing.T) {
	r := protoregistry.NewRegistry()
	a := fileWithMessage(t, "a.proto", "A")
	a.Dependencies = []string{"b.proto"}
	b := fileWithMessage(t, "b.proto", "B")
	b.Dependencies = []string{"a.proto"}

	err := r.RegisterFileSet(map[string]*protoreflect.FileDescriptor{
		"a.proto": a,
		"b.proto": b,
	})
	if err == nil {
		t.Fatalf("expected cycle detection error")
	}
}

func TestRangeMessages(t *testing.T) {
	r := protoregistry.NewRegistry()
	if err := r.RegisterFile(fileWithMessage(t, "a.proto", "A")); err != nil {
		t.Fatalf("RegisterFile: %v", err)
	}
	if err := r.RegisterFile(fileWithMessage(t, "b.proto", "B")); err != nil {
		t.Fatalf("RegisterFile: %v", err)
	}
	seen := map[protoreflect.FullName]bool{}
	r.RangeMessages(func(m *protoreflect.MessageDescriptor) bool {
		seen[m.FullName] = true
		return true
	})
	if !seen["example.A"] || !seen["example.B"] {
		t.Fatalf("RangeMessages missed entries: %v", seen)
	}
}

// TestConcurrentReadersNeverSeePartialFiles hammers the registry with
// readers while a writer registers files, asserting that once a file is
// visible by path, every type it declares is visible too.
func TestConcurrentReadersNeverSeePartialFiles(t *testing.T) {
	r := protoregistry.NewRegistry()

	const files = 50
	paths := make([]string, files)
	names := make([]protoreflect.FullName, files)
	for i := range paths {
		paths[i] = fmt.Sprintf("f%02d.proto", i)
		names[i] = protoreflect.FullName(fmt.Sprintf("example.M%02d", i))
	}

	done := make(chan struct{})
	var failures atomic.Int32
	const readers = 4
	var wg sync.WaitGroup
	for g := 0; g < readers; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				for i := range paths {
					if _, ok := r.FindFileByPath(paths[i]); !ok {
						continue
					}
					if _, ok := r.FindMessage(names[i]); !ok {
						failures.Add(1)
						return
					}
				}
			}
		}()
	}

	for i := range paths {
		f := fileWithMessage(t, paths[i], fmt.Sprintf("M%02d", i))
		if err := r.RegisterFile(f); err != nil {
			t.Fatalf("RegisterFile(%s): %v", paths[i], err)
		}
	}
	close(done)
	wg.Wait()
	if n := failures.Load(); n != 0 {
		t.Fatalf("%d reader(s) observed a file without its types", n)
	}
}
