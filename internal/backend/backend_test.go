package backend

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/samcharles93/llmodel/pkg/llmodel"
)

type fakeModel struct {
	llmodel.LLModel
	kind string
}

func (f fakeModel) ModelType() string { return f.kind }

var registerFakes = sync.OnceFunc(func() {
	Register(Implementation{
		ModelType:    "Fake",
		BuildVariant: CPU,
		MagicMatch:   func(path string) bool { return strings.HasSuffix(path, ".fake") },
		Construct:    func() llmodel.LLModel { return fakeModel{kind: "Fake"} },
	})
	Register(Implementation{
		ModelType:    "Fake",
		BuildVariant: LlamaCpp,
		MagicMatch:   func(path string) bool { return strings.HasSuffix(path, ".fake") },
		Construct:    func() llmodel.LLModel { return fakeModel{kind: "FakeGPU"} },
	})
})

func TestFind(t *testing.T) {
	registerFakes()

	impl, err := Find("model.fake", "")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if impl.BuildVariant != CPU {
		t.Fatalf("auto should pick the first registered variant, got %s", impl)
	}

	m, impl, err := Construct("model.fake", LlamaCpp)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	if impl.BuildVariant != LlamaCpp || m.ModelType() != "FakeGPU" {
		t.Fatalf("Construct returned %s / %s", impl, m.ModelType())
	}

	if _, err := Find("model.other", Auto); !errors.Is(err, ErrNoImplementation) {
		t.Fatalf("Find on unknown file err = %v", err)
	}
	if _, err := Find("model.fake", "metal"); err == nil {
		t.Fatal("expected error for unknown variant")
	}
}

func TestRegistryQueries(t *testing.T) {
	registerFakes()

	if !IsImplementation() {
		t.Fatal("IsImplementation should be true once registered")
	}
	if !Has(CPU) || !Has(LlamaCpp) {
		t.Fatal("Has missed a registered variant")
	}
	if got := Available(); !strings.Contains(got, CPU) || !strings.Contains(got, LlamaCpp) {
		t.Fatalf("Available = %q", got)
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	registerFakes()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	Register(Implementation{
		ModelType:    "Fake",
		BuildVariant: CPU,
		MagicMatch:   func(string) bool { return false },
		Construct:    func() llmodel.LLModel { return nil },
	})
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{"": Auto, " CPU ": CPU, "llamacpp": LlamaCpp, "auto": Auto}
	for in, want := range tests {
		got, err := Normalize(in)
		if err != nil || got != want {
			t.Errorf("Normalize(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := Normalize("cuda"); err == nil {
		t.Error("expected error for cuda")
	}
}
