package upload

import (
	"context"
	"fmt"
	"testing"

	"github.com/maauso/efficient-recorder/internal/storage"
)

func newTestRecord(id string) *Record {
	task := NewTask(storage.KindAudio, []byte("x"), "ts")
	task.ID = id
	return NewRecord(task)
}

func TestMemoryHistory_Save(t *testing.T) {
	h := NewMemoryHistory(0)
	ctx := context.Background()
	rec := newTestRecord("a")

	if err := h.Save(ctx, rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	saved, err := h.FindByID(ctx, "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.ID != "a" {
		t.Errorf("expected ID a, got %s", saved.ID)
	}
}

func TestMemoryHistory_Save_Update(t *testing.T) {
	h := NewMemoryHistory(0)
	ctx := context.Background()
	rec := newTestRecord("a")

	_ = h.Save(ctx, rec)
	_ = rec.Start()
	_ = h.Save(ctx, rec)

	saved, _ := h.FindByID(ctx, "a")
	if saved.Status != StatusDelivering {
		t.Errorf("expected status %s, got %s", StatusDelivering, saved.Status)
	}
	if all, _ := h.List(ctx); len(all) != 1 {
		t.Errorf("expected 1 record, got %d", len(all))
	}
}

func TestMemoryHistory_FindByID_NotFound(t *testing.T) {
	h := NewMemoryHistory(0)

	_, err := h.FindByID(context.Background(), "nonexistent")
	if err != ErrRecordNotFound {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestMemoryHistory_SaveStoresClone(t *testing.T) {
	h := NewMemoryHistory(0)
	ctx := context.Background()
	rec := newTestRecord("a")
	_ = h.Save(ctx, rec)

	rec.Location = "mutated"

	saved, _ := h.FindByID(ctx, "a")
	if saved.Location != "" {
		t.Error("external mutation should not affect stored record")
	}
}

func TestMemoryHistory_ListNewestFirst(t *testing.T) {
	h := NewMemoryHistory(0)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		_ = h.Save(ctx, newTestRecord(id))
	}

	list, err := h.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 records, got %d", len(list))
	}
	for i, want := range []string{"c", "b", "a"} {
		if list[i].ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, list[i].ID)
		}
	}
}

func TestMemoryHistory_EvictsOldest(t *testing.T) {
	h := NewMemoryHistory(3)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_ = h.Save(ctx, newTestRecord(fmt.Sprintf("r%d", i)))
	}

	if all, _ := h.List(ctx); len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}
	if _, err := h.FindByID(ctx, "r0"); err != ErrRecordNotFound {
		t.Errorf("expected r0 evicted, got %v", err)
	}
	if _, err := h.FindByID(ctx, "r4"); err != nil {
		t.Errorf("expected r4 present, got %v", err)
	}
}
