package sections

import "context"

// Repo defines persistence operations for section records.
type Repo interface {
	// Insert stores rec and returns its generated id.
	Insert(ctx context.Context, rec Record) (int64, error)
	// Get returns the record of the given section by id, or ErrNotFound.
	Get(ctx context.Context, section int, id int64) (Record, error)
}
