// Package memory provides process-local repositories used when no database is
// configured and by tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oksasatya/go-sweet-shop/internal/domain/entity"
	"github.com/oksasatya/go-sweet-shop/internal/domain/repository"
	"github.com/oksasatya/go-sweet-shop/internal/domain/search"
)

type sweetRecord struct {
	mu    sync.Mutex
	sweet entity.Sweet
	// gone is set under mu once the record has been deleted.
	gone bool
}

// SweetRepository keeps sweets in a map. Lock order is collection then
// record, and the collection lock is released before a record lock is held
// for a mutation.
type SweetRepository struct {
	mu      sync.RWMutex
	records map[string]*sweetRecord
	now     func() time.Time
}

func NewSweetRepository() *SweetRepository {
	return &SweetRepository{records: make(map[string]*sweetRecord), now: time.Now}
}

func (r *SweetRepository) lookup(id string) (*sweetRecord, bool) {
	r.mu.RLock()
	rec, ok := r.records[id]
	r.mu.RUnlock()
	return rec, ok
}

func (r *SweetRepository) snapshot() []entity.Sweet {
	r.mu.RLock()
	recs := make([]*sweetRecord, 0, len(r.records))
	for _, rec := range r.records {
		recs = append(recs, rec)
	}
	r.mu.RUnlock()

	out := make([]entity.Sweet, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		if !rec.gone {
			out = append(out, rec.sweet)
		}
		rec.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (r *SweetRepository) List(ctx context.Context) ([]entity.Sweet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.snapshot(), nil
}

func (r *SweetRepository) Find(ctx context.Context, f search.Filter) ([]entity.Sweet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.MatchesNothing() {
		return []entity.Sweet{}, nil
	}
	return search.Apply(f, r.snapshot()), nil
}

func (r *SweetRepository) Create(_ context.Context, s *entity.Sweet) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = r.now().UTC()
	}
	s.Version = 1
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[s.ID] = &sweetRecord{sweet: *s}
	return nil
}

func (r *SweetRepository) GetByID(_ context.Context, id string) (*entity.Sweet, error) {
	rec, ok := r.lookup(id)
	if !ok {
		return nil, entity.ErrSweetNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.gone {
		return nil, entity.ErrSweetNotFound
	}
	s := rec.sweet
	return &s, nil
}

func (r *SweetRepository) Update(_ context.Context, id string, mutate func(*entity.Sweet) error) (*entity.Sweet, error) {
	rec, ok := r.lookup(id)
	if !ok {
		return nil, entity.ErrSweetNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.gone {
		return nil, entity.ErrSweetNotFound
	}
	next := rec.sweet
	if err := mutate(&next); err != nil {
		return nil, err
	}
	next.ID = rec.sweet.ID
	next.CreatedAt = rec.sweet.CreatedAt
	if next.Quantity > entity.MaxQuantity {
		return nil, entity.QuantityRangeError()
	}
	next.Version = rec.sweet.Version + 1
	rec.sweet = next
	return &next, nil
}

func (r *SweetRepository) Delete(_ context.Context, id string) (*entity.Sweet, error) {
	r.mu.Lock()
	rec, ok := r.records[id]
	if ok {
		delete(r.records, id)
	}
	r.mu.Unlock()
	if !ok {
		return nil, entity.ErrSweetNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.gone = true
	s := rec.sweet
	return &s, nil
}

func (r *SweetRepository) AdjustQuantity(_ context.Context, id string, delta int) (*entity.Sweet, error) {
	rec, ok := r.lookup(id)
	if !ok {
		return nil, entity.ErrSweetNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.gone {
		return nil, entity.ErrSweetNotFound
	}
	next := rec.sweet.Quantity + delta
	if next < 0 {
		return nil, entity.ErrOutOfStock
	}
	if next > entity.MaxQuantity {
		return nil, entity.QuantityRangeError()
	}
	rec.sweet.Quantity = next
	rec.sweet.Version++
	s := rec.sweet
	return &s, nil
}

var _ repository.SweetRepository = (*SweetRepository)(nil)
