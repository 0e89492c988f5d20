package postgres

import "context"

// Cursor stores replay progress in the scope_state table, keyed by name,
// so a database-backed run resumes from the same place on any host.
type Cursor struct {
	store *Store
	name  string
}

func (s *Store) Cursor(name string) *Cursor {
	return &Cursor{store: s, name: name}
}

func (c *Cursor) Load(ctx context.Context) (uint64, bool, error) {
	return c.store.LoadState(ctx, c.name)
}

func (c *Cursor) Save(ctx context.Context, lastProcessed uint64) error {
	return c.store.SaveState(ctx, c.name, lastProcessed)
}
