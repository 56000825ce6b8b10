package geocode

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mmcloughlin/geohash"

	"github.com/Rodovar-GPS/GPS/internal/geo"
)

const (
	// cacheTTL is how long a reverse lookup stays valid.
	cacheTTL = 24 * time.Hour

	// cacheQueryTimeout is the deadline for each cache read/write.
	cacheQueryTimeout = 5 * time.Second

	// geohashPrecision 7 is a cell of roughly 150 m, close enough that a
	// truck moving inside it is still on the same street.
	geohashPrecision = 7
)

// CacheStore persists reverse lookups keyed by geohash cell.
type CacheStore interface {
	// GetAddress returns the cached address for cell, or (nil, nil) when
	// there is no entry younger than the TTL.
	GetAddress(ctx context.Context, cell string) (*Address, error)

	// SetAddress upserts the address for cell.
	SetAddress(ctx context.Context, cell string, addr *Address) error
}

// Logger is a printf-style logging function.
type Logger func(format string, args ...any)

// CachedGeocoder caches Reverse results of another Geocoder. Search is
// passed through untouched.
type CachedGeocoder struct {
	inner      Geocoder
	store      CacheStore
	logger     Logger
	onHit      func()
	afterStore func()
}

// CachedGeocoderOption configures a CachedGeocoder.
type CachedGeocoderOption func(*CachedGeocoder)

// WithLogger sets the logger used when an async cache write fails.
func WithLogger(l Logger) CachedGeocoderOption {
	return func(g *CachedGeocoder) { g.logger = l }
}

// WithHitCounter sets a callback invoked on every cache hit.
func WithHitCounter(fn func()) CachedGeocoderOption {
	return func(g *CachedGeocoder) { g.onHit = fn }
}

// withAfterStore is a test hook run after each async store attempt.
func withAfterStore(fn func()) CachedGeocoderOption {
	return func(g *CachedGeocoder) { g.afterStore = fn }
}

// NewCachedGeocoder wraps inner with a cache-aside layer backed by store.
func NewCachedGeocoder(inner Geocoder, store CacheStore, opts ...CachedGeocoderOption) *CachedGeocoder {
	g := &CachedGeocoder{inner: inner, store: store}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Search delegates to the wrapped geocoder.
func (g *CachedGeocoder) Search(ctx context.Context, query string) (geo.Coordinate, error) {
	return g.inner.Search(ctx, query)
}

// Reverse serves from the cache when possible and stores misses
// asynchronously.
func (g *CachedGeocoder) Reverse(ctx context.Context, c geo.Coordinate) (*Address, error) {
	cell := Cell(c)

	cached, err := g.store.GetAddress(ctx, cell)
	if err != nil && g.logger != nil {
		g.logger("geocode: cache: read failed (cell=%s): %v", cell, err)
	}
	if cached != nil {
		if g.onHit != nil {
			g.onHit()
		}
		return cached, nil
	}

	addr, err := g.inner.Reverse(ctx, c)
	if err != nil {
		return nil, err
	}

	stored := *addr
	go func() {
		storeCtx, cancel := context.WithTimeout(context.Background(), cacheQueryTimeout)
		defer cancel()

		if err := g.store.SetAddress(storeCtx, cell, &stored); err != nil && g.logger != nil {
			g.logger("geocode: cache: async write failed (cell=%s): %v", cell, err)
		}
		if g.afterStore != nil {
			g.afterStore()
		}
	}()

	return addr, nil
}

// Cell returns the geohash cell used as the cache key for c.
func Cell(c geo.Coordinate) string {
	return geohash.EncodeWithPrecision(c.Lat, c.Lng, geohashPrecision)
}

// --- pgx-backed CacheStore ---

type pgCacheStore struct {
	pool *pgxpool.Pool
}

// NewPgCacheStore creates a CacheStore on the reverse_geocode_cache table.
func NewPgCacheStore(pool *pgxpool.Pool) CacheStore {
	return &pgCacheStore{pool: pool}
}

func (s *pgCacheStore) GetAddress(ctx context.Context, cell string) (*Address, error) {
	ctx, cancel := context.WithTimeout(ctx, cacheQueryTimeout)
	defer cancel()

	const q = `
		SELECT address, city, state
		FROM reverse_geocode_cache
		WHERE cell = $1
		  AND computed_at > $2`

	var a Address
	err := s.pool.QueryRow(ctx, q, cell, time.Now().Add(-cacheTTL)).Scan(&a.Road, &a.City, &a.State)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("geocode: cache: get: %w", err)
	}
	return &a, nil
}

func (s *pgCacheStore) SetAddress(ctx context.Context, cell string, addr *Address) error {
	ctx, cancel := context.WithTimeout(ctx, cacheQueryTimeout)
	defer cancel()

	const q = `
		INSERT INTO reverse_geocode_cache (cell, address, city, state, computed_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (cell)
		DO UPDATE SET
			address     = EXCLUDED.address,
			city        = EXCLUDED.city,
			state       = EXCLUDED.state,
			computed_at = EXCLUDED.computed_at`

	if _, err := s.pool.Exec(ctx, q, cell, addr.Road, addr.City, addr.State); err != nil {
		return fmt.Errorf("geocode: cache: set: %w", err)
	}
	return nil
}

// --- in-memory CacheStore ---

type memEntry struct {
	addr       Address
	computedAt time.Time
}

type memCacheStore struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	now     func() time.Time
}

// NewMemCacheStore returns a process-local CacheStore.
func NewMemCacheStore() CacheStore {
	return &memCacheStore{entries: make(map[string]memEntry), now: time.Now}
}

func (s *memCacheStore) GetAddress(_ context.Context, cell string) (*Address, error) {
	s.mu.RLock()
	e, ok := s.entries[cell]
	s.mu.RUnlock()
	if !ok || s.now().Sub(e.computedAt) >= cacheTTL {
		return nil, nil
	}
	a := e.addr
	return &a, nil
}

func (s *memCacheStore) SetAddress(_ context.Context, cell string, addr *Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[cell] = memEntry{addr: *addr, computedAt: s.now()}
	return nil
}
