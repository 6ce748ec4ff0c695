package sections

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu     sync.RWMutex
	nextID map[int]int64
	data   map[int]map[int64][]byte // section -> id -> json record
	now    func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		nextID: make(map[int]int64),
		data:   make(map[int]map[int64][]byte),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Insert assigns the next id of the section's sequence and stores a copy of rec.
func (r *MemoryRepo) Insert(ctx context.Context, rec Record) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	n := rec.Section()
	id := r.nextID[n] + 1
	created := r.now()

	rec.SetRecordID(id)
	setCreatedAt(rec, created)
	raw, err := json.Marshal(rec)
	if err != nil {
		return 0, err
	}
	if r.data[n] == nil {
		r.data[n] = make(map[int64][]byte)
	}
	r.data[n][id] = raw
	r.nextID[n] = id
	return id, nil
}

// Get returns a fresh copy of the stored record.
func (r *MemoryRepo) Get(ctx context.Context, section int, id int64) (Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	raw, ok := r.data[section][id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	rec, err := NewRecord(section)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func setCreatedAt(rec Record, t time.Time) {
	switch r := rec.(type) {
	case *Section1Record:
		r.CreatedAt = &t
	case *Section2Record:
		r.CreatedAt = &t
	case *Section3Record:
		r.CreatedAt = &t
	case *Section4Record:
		r.CreatedAt = &t
	case *Section5Record:
		r.CreatedAt = &t
	}
}

var _ Repo = (*MemoryRepo)(nil)
