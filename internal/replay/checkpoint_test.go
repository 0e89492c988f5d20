package replay

import (
	"context"
	"path/filepath"
	"testing"
)

func TestCheckpointRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	store := NewCheckpointStore(path, true)

	if _, ok, err := store.Load(ctx); err != nil || ok {
		t.Fatalf("expected no checkpoint before first save, ok=%v err=%v", ok, err)
	}

	if err := store.Save(ctx, 12345); err != nil {
		t.Fatalf("save: %v", err)
	}
	last, ok, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok {
		t.Fatalf("expected checkpoint after save")
	}
	if last != 12345 {
		t.Fatalf("last processed block = %d, want 12345", last)
	}

	if err := store.Save(ctx, 67890); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	last, _, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if last != 67890 {
		t.Fatalf("last processed block = %d, want 67890", last)
	}
}

func TestCheckpointDisabled(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	store := NewCheckpointStore(path, false)

	if err := store.Save(ctx, 100); err != nil {
		t.Fatalf("save on disabled store: %v", err)
	}
	if _, ok, err := store.Load(ctx); err != nil || ok {
		t.Fatalf("disabled store should never report a checkpoint, ok=%v err=%v", ok, err)
	}
}

// memoryCursor stands in for a database-backed cursor.
type memoryCursor struct {
	last uint64
	ok   bool
}

func (m *memoryCursor) Load(context.Context) (uint64, bool, error) {
	return m.last, m.ok, nil
}

func (m *memoryCursor) Save(_ context.Context, lastProcessed uint64) error {
	m.last = lastProcessed
	m.ok = true
	return nil
}

func TestResolveStart(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name        string
		cursor      Cursor
		from        uint64
		wantStart   uint64
		wantResumed bool
	}{
		{"nil cursor", nil, 100, 100, false},
		{"empty cursor", &memoryCursor{}, 100, 100, false},
		{"cursor behind start", &memoryCursor{last: 50, ok: true}, 100, 100, false},
		{"cursor at start", &memoryCursor{last: 100, ok: true}, 100, 101, true},
		{"cursor ahead of start", &memoryCursor{last: 150, ok: true}, 100, 151, true},
	}
	for _, tc := range cases {
		start, resumed, err := resolveStart(ctx, tc.cursor, tc.from)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if start != tc.wantStart || resumed != tc.wantResumed {
			t.Fatalf("%s: start=%d resumed=%v, want start=%d resumed=%v", tc.name, start, resumed, tc.wantStart, tc.wantResumed)
		}
	}
}

func TestResolveStartWithFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	store := NewCheckpointStore(path, true)

	if err := store.Save(ctx, 150); err != nil {
		t.Fatalf("save: %v", err)
	}
	start, resumed, err := resolveStart(ctx, store, 100)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !resumed || start != 151 {
		t.Fatalf("start=%d resumed=%v, want 151 resumed", start, resumed)
	}
}
