package scanner

import (
	"context"
	"testing"

	"TuxLetter/internal/domain"
)

type namedScanner struct {
	name  string
	items int
}

func (n namedScanner) Name() string { return n.name }

func (n namedScanner) Scan(context.Context) (Result, error) {
	return Result{Items: make([]domain.Item, n.items)}, nil
}

func TestRegistryKeepsRegistrationOrder(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(namedScanner{name: "lore"})
	reg.Register(namedScanner{name: "phoronix"})
	reg.Register(namedScanner{name: "linuxcom"})
	reg.Register(namedScanner{name: "phoronix", items: 3})

	names := reg.Names()
	want := []string{"lore", "phoronix", "linuxcom"}
	if len(names) != len(want) {
		t.Fatalf("expected %d names, got %v", len(want), names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], names[i])
		}
	}

	replaced, err := reg.Resolve("phoronix")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if replaced.(namedScanner).items != 3 {
		t.Fatalf("expected replacement scanner to win")
	}

	if got := len(reg.All()); got != 3 {
		t.Fatalf("expected 3 scanners, got %d", got)
	}
}

func TestRegistryResolveUnknown(t *testing.T) {
	t.Parallel()

	if _, err := NewRegistry().Resolve("missing"); err == nil {
		t.Fatal("expected error for unknown scanner")
	}
}
