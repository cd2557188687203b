package bookstore

import (
	"errors"
	"sync"
	"time"

	"arbitrage-analytics/internal/metricsserver"
	"arbitrage-analytics/internal/models"
	"arbitrage-analytics/pkg/utils"
)

// ErrUnknownKey is returned when an update references a BookKey that was
// never registered at startup.
var ErrUnknownKey = errors.New("bookstore: unknown book key")

// Store holds every live order book behind a single coarse read/write
// lock ("book lock" in the concurrency model). Writers (the feed
// normalizer) take it exclusively for the duration of one Apply; readers
// take it shared and must release it before acquiring any other lock.
type Store struct {
	mu              sync.RWMutex
	books           map[models.BookKey]*Book
	freshnessWindow time.Duration
	log             *utils.Logger
}

// NewStore creates a Store with one empty Book per key in keys. A
// freshnessWindow <= 0 falls back to the package default
// (FreshnessWindow, 30s).
func NewStore(keys []models.BookKey, freshnessWindow time.Duration) *Store {
	if freshnessWindow <= 0 {
		freshnessWindow = FreshnessWindow
	}
	s := &Store{
		books:           make(map[models.BookKey]*Book, len(keys)),
		freshnessWindow: freshnessWindow,
		log:             utils.L().WithComponent("bookstore"),
	}
	for _, k := range keys {
		s.books[k] = newBook()
	}
	return s
}

// Apply applies one canonical update to the book it targets. Unknown keys
// are rejected and logged; the store is otherwise never mutated by a
// rejected update.
func (s *Store) Apply(u models.BookUpdate) error {
	now := u.IngestAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.books[u.Key]
	if !ok {
		s.log.Warn("update for unknown book key", utils.String("key", u.Key.String()))
		return ErrUnknownKey
	}

	switch u.Kind {
	case models.KindSnapshot:
		b.applySnapshot(u, now)
	default:
		b.applyDelta(u, now)
	}

	metricsserver.BookUpdatesTotal.WithLabelValues(
		string(u.Key.Venue), string(u.Key.Asset), string(u.Key.Market), u.Kind.String(),
	).Inc()

	if !b.valid() {
		s.log.Warn("book failed validity invariant after apply",
			utils.String("key", u.Key.String()))
	}
	return nil
}

// Keys returns the fixed set of live book keys.
func (s *Store) Keys() []models.BookKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.BookKey, 0, len(s.books))
	for k := range s.books {
		out = append(out, k)
	}
	return out
}

// SnapshotResult is the consistent point-in-time view C3 returns for one
// key. Fresh/Valid/Mid are computed under a single acquisition of the book
// lock so the tuple is internally consistent.
type SnapshotResult struct {
	Key        models.BookKey
	Found      bool
	BestBid    float64
	HasBid     bool
	BestAsk    float64
	HasAsk     bool
	Mid        float64
	AgeSeconds float64
	Fresh      bool
	Valid      bool
	Bids       []models.PriceLevel
	Asks       []models.PriceLevel
	LastUpdate time.Time
}

// Snapshot returns the current (best_bid, best_ask, age, fresh, valid,
// top_N) tuple for key under a single acquisition of the book lock. A
// missing key yields a sentinel Found=false result; Snapshot never panics.
func (s *Store) Snapshot(key models.BookKey, depth int, now time.Time) SnapshotResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.books[key]
	if !ok {
		return SnapshotResult{Key: key, Found: false}
	}

	bid, okB := b.bestBid()
	ask, okA := b.bestAsk()
	res := SnapshotResult{
		Key:        key,
		Found:      true,
		BestBid:    bid,
		HasBid:     okB,
		BestAsk:    ask,
		HasAsk:     okA,
		Mid:        b.mid(),
		AgeSeconds: now.Sub(b.LastUpdate).Seconds(),
		Fresh:      b.fresh(now, s.freshnessWindow),
		Valid:      b.valid(),
		Bids:       b.Bids.levels(true, depth),
		Asks:       b.Asks.levels(false, depth),
		LastUpdate: b.LastUpdate,
	}
	return res
}

// SnapshotAll returns a Snapshot for every live key, for use by the
// orchestrator's periodic analytic cycle.
func (s *Store) SnapshotAll(depth int, now time.Time) []SnapshotResult {
	s.mu.RLock()
	keys := make([]models.BookKey, 0, len(s.books))
	for k := range s.books {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	out := make([]SnapshotResult, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.Snapshot(k, depth, now))
	}
	return out
}
