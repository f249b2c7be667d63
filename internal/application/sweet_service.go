package application

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"io"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-sweet-shop/internal/domain/entity"
	"github.com/oksasatya/go-sweet-shop/internal/domain/repository"
	"github.com/oksasatya/go-sweet-shop/internal/domain/search"
)

var ErrImageStorageUnavailable = errors.New("image storage is not configured")

var stats = expvar.NewMap("sweet_inventory")

// CatalogCache caches the full listing. Implemented by cache.CatalogCache.
type CatalogCache interface {
	Load(ctx context.Context) ([]entity.Sweet, int64, bool, error)
	Store(ctx context.Context, gen int64, sweets []entity.Sweet) error
	Invalidate(ctx context.Context) error
}

// SearchIndex mirrors the catalog into a search engine. Implemented by
// elastic.SweetIndex.
type SearchIndex interface {
	Index(ctx context.Context, s entity.Sweet) error
	Remove(ctx context.Context, id string, version int64) error
	Reindex(ctx context.Context, sweets []entity.Sweet) error
	Search(ctx context.Context, f search.Filter) ([]entity.Sweet, error)
}

// EventPublisher is implemented by helpers.RabbitPublisher.
type EventPublisher interface {
	PublishJSON(ctx context.Context, msgType string, body any) error
}

// ImageStore is implemented by gcs.ImageStore.
type ImageStore interface {
	Upload(ctx context.Context, sweetID, filename, contentType string, r io.Reader) (string, error)
}

type SweetService struct {
	repo   repository.SweetRepository
	logger *logrus.Logger

	cache          CatalogCache
	index          SearchIndex
	searchViaIndex bool
	events         EventPublisher
	images         ImageStore

	// indexFailures counts failed index writes; indexSynced holds its value
	// at the last complete rebuild, or -1 before the first one. The index
	// answers searches only while the two are equal.
	indexFailures atomic.Int64
	indexSynced   atomic.Int64

	sideEffectTimeout time.Duration
	now               func() time.Time
}

type SweetOption func(*SweetService)

func WithCatalogCache(c CatalogCache) SweetOption {
	return func(s *SweetService) { s.cache = c }
}

// WithSearchIndex keeps idx in sync with every mutation. When useForSearch is
// set, Search queries idx once RebuildIndex has succeeded, and falls back to
// the repository while the index may be missing writes or is failing.
func WithSearchIndex(idx SearchIndex, useForSearch bool) SweetOption {
	return func(s *SweetService) {
		s.index = idx
		s.searchViaIndex = useForSearch
	}
}

func WithEventPublisher(p EventPublisher) SweetOption {
	return func(s *SweetService) { s.events = p }
}

func WithImageStore(st ImageStore) SweetOption {
	return func(s *SweetService) { s.images = st }
}

func WithClock(now func() time.Time) SweetOption {
	return func(s *SweetService) { s.now = now }
}

func NewSweetService(repo repository.SweetRepository, logger *logrus.Logger, opts ...SweetOption) *SweetService {
	s := &SweetService{
		repo:              repo,
		logger:            logger,
		sideEffectTimeout: 3 * time.Second,
		now:               time.Now,
	}
	s.indexSynced.Store(-1)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the whole catalog, served from the cache when it holds the
// current generation.
func (s *SweetService) List(ctx context.Context) ([]entity.Sweet, error) {
	var (
		gen      int64
		storable bool
	)
	if s.cache != nil {
		cached, g, ok, err := s.cache.Load(ctx)
		switch {
		case err != nil:
			s.logger.WithError(err).Warn("catalog cache load failed")
		case ok:
			stats.Add("cache_hits", 1)
			return cached, nil
		default:
			stats.Add("cache_misses", 1)
			gen, storable = g, true
		}
	}

	sweets, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sweets: %w", err)
	}
	if storable {
		if err := s.cache.Store(ctx, gen, sweets); err != nil {
			s.logger.WithError(err).Warn("catalog cache store failed")
		}
	}
	return sweets, nil
}

func (s *SweetService) Search(ctx context.Context, p search.Params) ([]entity.Sweet, error) {
	f, err := search.Build(p)
	if err != nil {
		return nil, err
	}
	if f.MatchesNothing() {
		return []entity.Sweet{}, nil
	}
	if s.indexReady() {
		found, err := s.index.Search(ctx, f)
		if err == nil {
			return found, nil
		}
		s.logger.WithError(err).Warn("search index query failed, using store")
	}
	found, err := s.repo.Find(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("search sweets: %w", err)
	}
	return found, nil
}

func (s *SweetService) indexReady() bool {
	return s.searchViaIndex && s.index != nil && s.indexSynced.Load() == s.indexFailures.Load()
}

// RebuildIndex loads the whole catalog into the search index. Searches go
// to the index only after a rebuild that no failed index write overlapped.
func (s *SweetService) RebuildIndex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, nil
	}
	failures := s.indexFailures.Load()
	sweets, err := s.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list sweets: %w", err)
	}
	if err := s.index.Reindex(ctx, sweets); err != nil {
		return 0, fmt.Errorf("reindex sweets: %w", err)
	}
	s.indexSynced.Store(failures)
	return len(sweets), nil
}

// KeepIndexFresh retries RebuildIndex every interval while the index is
// behind the store. It returns when ctx is done.
func (s *SweetService) KeepIndexFresh(ctx context.Context, interval time.Duration) {
	if !s.searchViaIndex || s.index == nil {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if s.indexReady() {
				continue
			}
			if n, err := s.RebuildIndex(ctx); err != nil {
				s.logger.WithError(err).Warn("search index rebuild failed")
			} else {
				s.logger.WithField("sweets", n).Info("search index rebuilt")
			}
		}
	}
}

func requiredFields(names []string) map[string]string {
	fields := make(map[string]string, len(names))
	for _, n := range names {
		fields[n] = "is required"
	}
	return fields
}

// Add creates a sweet from in. Quantity defaults to 0.
func (s *SweetService) Add(ctx context.Context, in entity.SweetPatch) (*entity.Sweet, error) {
	ctx = context.WithoutCancel(ctx)
	if missing := in.Missing(); len(missing) > 0 {
		return nil, entity.NewValidationError("Please add all required fields", requiredFields(missing))
	}
	var sweet entity.Sweet
	if err := in.Apply(&sweet); err != nil {
		return nil, err
	}
	if err := sweet.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, &sweet); err != nil {
		return nil, fmt.Errorf("create sweet: %w", err)
	}
	s.afterMutation(ctx, entity.EventSweetCreated, sweet)
	return &sweet, nil
}

// Update merges patch over the stored record and revalidates the result.
func (s *SweetService) Update(ctx context.Context, id string, patch entity.SweetPatch) (*entity.Sweet, error) {
	ctx = context.WithoutCancel(ctx)
	updated, err := s.repo.Update(ctx, id, func(sw *entity.Sweet) error {
		if err := patch.Apply(sw); err != nil {
			return err
		}
		return sw.Validate()
	})
	if err != nil {
		return nil, err
	}
	s.afterMutation(ctx, entity.EventSweetUpdated, *updated)
	return updated, nil
}

// Delete removes the sweet and returns its id.
func (s *SweetService) Delete(ctx context.Context, id string) (string, error) {
	ctx = context.WithoutCancel(ctx)
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return "", err
	}
	s.afterMutation(ctx, entity.EventSweetDeleted, *deleted)
	return deleted.ID, nil
}

// Purchase takes exactly one unit out of stock.
func (s *SweetService) Purchase(ctx context.Context, id string) (*entity.Sweet, error) {
	ctx = context.WithoutCancel(ctx)
	sweet, err := s.repo.AdjustQuantity(ctx, id, -1)
	if err != nil {
		if errors.Is(err, entity.ErrOutOfStock) {
			stats.Add("purchases_out_of_stock", 1)
		}
		return nil, err
	}
	stats.Add("purchases", 1)
	s.afterMutation(ctx, entity.EventSweetPurchased, *sweet)
	return sweet, nil
}

// Restock adds amount units. amount must be a positive whole number; a total
// above entity.MaxQuantity is rejected by the store.
func (s *SweetService) Restock(ctx context.Context, id string, amount float64) (*entity.Sweet, error) {
	ctx = context.WithoutCancel(ctx)
	if math.IsNaN(amount) || amount != math.Trunc(amount) || amount <= 0 || amount > entity.MaxQuantity {
		return nil, entity.NewValidationError("Please provide a valid quantity to restock", map[string]string{
			"quantity": fmt.Sprintf("must be a whole number between 1 and %d", entity.MaxQuantity),
		})
	}
	sweet, err := s.repo.AdjustQuantity(ctx, id, int(amount))
	if err != nil {
		return nil, err
	}
	stats.Add("restocks", 1)
	s.afterMutation(ctx, entity.EventSweetRestocked, *sweet)
	return sweet, nil
}

// UploadImage stores an image object and points the sweet's image at it.
func (s *SweetService) UploadImage(ctx context.Context, id, filename, contentType string, r io.Reader) (*entity.Sweet, error) {
	ctx = context.WithoutCancel(ctx)
	if s.images == nil {
		return nil, ErrImageStorageUnavailable
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	url, err := s.images.Upload(ctx, id, filename, contentType, r)
	if err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}
	return s.Update(ctx, id, entity.SweetPatch{Image: &url})
}

// afterMutation runs the best-effort side effects of a committed change.
// Failures are logged and never change the result of the operation.
func (s *SweetService) afterMutation(ctx context.Context, eventType string, sweet entity.Sweet) {
	ctx, cancel := context.WithTimeout(ctx, s.sideEffectTimeout)
	defer cancel()
	log := s.logger.WithFields(logrus.Fields{"event": eventType, "sweet_id": sweet.ID})

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			stats.Add("side_effect_failures", 1)
			log.WithError(err).Warn("catalog cache invalidate failed")
		}
	}
	if s.index != nil {
		var err error
		if eventType == entity.EventSweetDeleted {
			err = s.index.Remove(ctx, sweet.ID, sweet.Version)
		} else {
			err = s.index.Index(ctx, sweet)
		}
		if err != nil {
			s.indexFailures.Add(1)
			stats.Add("side_effect_failures", 1)
			log.WithError(err).Warn("search index sync failed, searches use the store until the next rebuild")
		}
	}
	if s.events != nil {
		ev := entity.NewStockEvent(eventType, sweet, s.now())
		if err := s.events.PublishJSON(ctx, eventType, ev); err != nil {
			stats.Add("side_effect_failures", 1)
			log.WithError(err).Warn("stock event publish failed")
		}
	}
}

// SeedCatalog adds every item whose name is not in the catalog yet and
// returns how many were added.
func (s *SweetService) SeedCatalog(ctx context.Context, items []entity.SweetPatch) (int, error) {
	existing, err := s.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list sweets: %w", err)
	}
	names := make(map[string]struct{}, len(existing))
	for _, sw := range existing {
		names[strings.ToLower(sw.Name)] = struct{}{}
	}
	added := 0
	for _, item := range items {
		if item.Name == nil {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(*item.Name))
		if _, ok := names[key]; ok {
			continue
		}
		if _, err := s.Add(ctx, item); err != nil {
			return added, fmt.Errorf("seed %q: %w", *item.Name, err)
		}
		names[key] = struct{}{}
		added++
	}
	return added, nil
}
