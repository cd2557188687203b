// Package bookstore implements the Book Store (C1) and Snapshot Reader (C3)
// components: the canonical per-key order books, a single coarse lock
// guarding them, and consistent point-in-time read views.
package bookstore

import (
	"math"
	"sort"
	"time"

	"arbitrage-analytics/internal/models"
)

// FreshnessWindow is the age beyond which a book is considered stale and
// excluded from analyzer inputs.
const FreshnessWindow = 30 * time.Second

// ValidSpreadPct is the maximum (best_ask-best_bid)/best_bid ratio a book
// may have and still be considered valid.
const ValidSpreadPct = 0.01

// SideBook is a price->quantity map for one side of one book. No
// zero-quantity entries are ever stored.
type SideBook map[float64]float64

func (s SideBook) upsert(price, qty float64) {
	if qty <= 0 {
		delete(s, price)
		return
	}
	s[price] = qty
}

// best returns the extreme price of the side: the maximum for bids, the
// minimum for asks. ok is false when the side is empty.
func (s SideBook) best(wantMax bool) (price float64, ok bool) {
	for p := range s {
		if !ok || (wantMax && p > price) || (!wantMax && p < price) {
			price, ok = p, true
		}
	}
	return price, ok
}

// levels returns up to depth (price, quantity) pairs ordered ascending
// (asks) or descending (bids). depth <= 0 means "all levels".
func (s SideBook) levels(descending bool, depth int) []models.PriceLevel {
	prices := make([]float64, 0, len(s))
	for p := range s {
		prices = append(prices, p)
	}
	if descending {
		sort.Sort(sort.Reverse(sort.Float64Slice(prices)))
	} else {
		sort.Float64s(prices)
	}
	if depth > 0 && depth < len(prices) {
		prices = prices[:depth]
	}
	out := make([]models.PriceLevel, len(prices))
	for i, p := range prices {
		out[i] = models.PriceLevel{Price: p, Quantity: s[p]}
	}
	return out
}

// Book is one live order book: two side books plus the ingestion time of
// the last applied update.
type Book struct {
	Bids       SideBook
	Asks       SideBook
	LastUpdate time.Time
}

func newBook() *Book {
	return &Book{Bids: SideBook{}, Asks: SideBook{}}
}

func (b *Book) applySnapshot(u models.BookUpdate, now time.Time) {
	b.Bids = SideBook{}
	b.Asks = SideBook{}
	for _, lvl := range u.Bids {
		if lvl.Quantity > 0 {
			b.Bids.upsert(lvl.Price, lvl.Quantity)
		}
	}
	for _, lvl := range u.Asks {
		if lvl.Quantity > 0 {
			b.Asks.upsert(lvl.Price, lvl.Quantity)
		}
	}
	b.LastUpdate = now
}

func (b *Book) applyDelta(u models.BookUpdate, now time.Time) {
	for _, lvl := range u.Bids {
		b.Bids.upsert(lvl.Price, lvl.Quantity)
	}
	for _, lvl := range u.Asks {
		b.Asks.upsert(lvl.Price, lvl.Quantity)
	}
	b.LastUpdate = now
}

// bestBid / bestAsk return the book's extreme prices. ok is false when the
// respective side is empty.
func (b *Book) bestBid() (float64, bool) { return b.Bids.best(true) }
func (b *Book) bestAsk() (float64, bool) { return b.Asks.best(false) }

// mid returns (best_bid+best_ask)/2, or NaN if either side is empty.
func (b *Book) mid() float64 {
	bid, okB := b.bestBid()
	ask, okA := b.bestAsk()
	if !okB || !okA {
		return math.NaN()
	}
	return (bid + ask) / 2
}

// fresh reports whether the book was updated within window of now.
func (b *Book) fresh(now time.Time, window time.Duration) bool {
	return now.Sub(b.LastUpdate) < window
}

// valid reports whether the book satisfies the crossed-book and
// max-spread invariants. An empty side is never valid.
func (b *Book) valid() bool {
	bid, okB := b.bestBid()
	ask, okA := b.bestAsk()
	if !okB || !okA || bid == 0 {
		return false
	}
	return bid < ask && (ask-bid)/bid <= ValidSpreadPct
}
