package tests

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/umlsync/pkg/ports"
)

// DiagramLibraryContractTest is a reusable test suite that verifies if an adapter
// complies with ports.DiagramLibrary. setupData maps IDs to the description text
// already present in the library.
func DiagramLibraryContractTest(t *testing.T, lib ports.DiagramLibrary, setupData map[string]string) {
	t.Helper()
	ctx := context.Background()

	t.Run("Get_Success", func(t *testing.T) {
		for id, expected := range setupData {
			d, err := lib.Get(ctx, id)
			if err != nil {
				t.Fatalf("unexpected error getting diagram %s: %v", id, err)
			}
			if d.Code != expected {
				t.Errorf("code mismatch for %s. got %q, want %q", id, d.Code, expected)
			}
		}
	})

	t.Run("Get_NotFound", func(t *testing.T) {
		_, err := lib.Get(ctx, "non-existent-diagram")
		if !errors.Is(err, ports.ErrDiagramNotFound) {
			t.Errorf("expected ErrDiagramNotFound, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		ids, err := lib.List(ctx)
		if err != nil {
			t.Fatalf("unexpected error listing diagrams: %v", err)
		}
		found := make(map[string]bool)
		for _, id := range ids {
			found[id] = true
		}
		for id := range setupData {
			if !found[id] {
				t.Errorf("expected diagram %s in list, got %v", id, ids)
			}
		}
	})

	t.Run("Save_RoundTrip", func(t *testing.T) {
		d := ports.Diagram{ID: "contract-saved", Title: "Saved", Code: "@startuml\nA -> B: hi\n@enduml"}
		if err := lib.Save(ctx, d); err != nil {
			t.Fatalf("unexpected error saving diagram: %v", err)
		}
		got, err := lib.Get(ctx, d.ID)
		if err != nil {
			t.Fatalf("unexpected error reading saved diagram: %v", err)
		}
		if got.Code != d.Code || got.Title != d.Title {
			t.Errorf("saved diagram mismatch: got %+v", got)
		}
	})
}
