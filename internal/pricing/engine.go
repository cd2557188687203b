// Package pricing implements the Synthetic Pricing Engine (C4): a periodic
// loop that computes cost-of-carry fair futures and funding-implied
// synthetic spot prices for every (venue, asset) pair with both legs live.
package pricing

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"arbitrage-analytics/internal/bookstore"
	"arbitrage-analytics/internal/models"
	"arbitrage-analytics/pkg/utils"
)

// Tau is the fixed time-to-expiry (in years) used by the cost-of-carry
// formula. Hardcoded per an open design question: whether it should derive
// from a calendar instrument's actual expiry is left unresolved upstream.
const Tau = 0.25

// Config holds the engine's tunables. DefaultConfig returns the defaults;
// New uses the given Config as is, except that Run falls back to a 1s
// interval when CalculationInterval is not positive.
type Config struct {
	CalculationInterval time.Duration
	RiskFreeRate         float64
	DefaultFundingRate   float64
	MinMispricingPct     float64
	MaxMispricingPct     float64
}

// DefaultConfig returns the spec-mandated defaults.
func DefaultConfig() Config {
	return Config{
		CalculationInterval: time.Second,
		RiskFreeRate:         0.05,
		DefaultFundingRate:   1e-4,
		MinMispricingPct:     0.01,
		MaxMispricingPct:     5.0,
	}
}

type fundingKey struct {
	venue models.Venue
	asset models.Asset
}

// Engine is C4. It reads (venue, asset) spot/futures mids from a book
// store and publishes SyntheticPrice entries under its own lock.
type Engine struct {
	store  *bookstore.Store
	cfg    Config
	log    *utils.Logger

	mu      sync.RWMutex
	prices  map[string]models.SyntheticPrice // keyed by "venue:asset:instrument_type"
	funding sync.Map                          // fundingKey -> float64
}

// New builds an Engine reading from store with the given config.
func New(store *bookstore.Store, cfg Config) *Engine {
	return &Engine{
		store:  store,
		cfg:    cfg,
		log:    utils.L().WithComponent("pricing"),
		prices: make(map[string]models.SyntheticPrice),
	}
}

// SetFundingRate overrides the default funding rate for one (venue, asset).
func (e *Engine) SetFundingRate(venue models.Venue, asset models.Asset, rate float64) {
	e.funding.Store(fundingKey{venue, asset}, rate)
}

func (e *Engine) fundingRate(venue models.Venue, asset models.Asset) float64 {
	if v, ok := e.funding.Load(fundingKey{venue, asset}); ok {
		return v.(float64)
	}
	return e.cfg.DefaultFundingRate
}

// Run executes the periodic pricing loop until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	interval := e.cfg.CalculationInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Tick(time.Now().UTC())
		}
	}
}

// Tick runs one computation pass over every venue/asset pair that has both
// a spot and a futures book.
func (e *Engine) Tick(now time.Time) {
	assets := []models.Asset{models.AssetBTC, models.AssetETH}
	venues := []models.Venue{models.VenueBinance, models.VenueBybit, models.VenueOKX}

	type computed struct {
		mapKey string
		price  models.SyntheticPrice
	}
	var out []computed

	for _, venue := range venues {
		for _, asset := range assets {
			spotKey := models.BookKey{Venue: venue, Asset: asset, Market: models.MarketSpot}
			futKey := models.BookKey{Venue: venue, Asset: asset, Market: models.MarketFutures}

			// Acquire the book lock (inside Snapshot), copy locals, release it,
			// before ever touching this engine's own lock.
			spotSnap := e.store.Snapshot(spotKey, 0, now)
			futSnap := e.store.Snapshot(futKey, 0, now)
			if !spotSnap.Found || !futSnap.Found || !spotSnap.Fresh || !futSnap.Fresh {
				continue
			}
			if math.IsNaN(spotSnap.Mid) || math.IsNaN(futSnap.Mid) {
				continue
			}

			spotMid, futMid := spotSnap.Mid, futSnap.Mid
			funding := e.fundingRate(venue, asset)

			fairFuture := spotMid * math.Exp(e.cfg.RiskFreeRate*Tau)
			futVsSpot := e.build(venue, asset, models.InstrumentFuturesVsSpot, futMid, fairFuture, funding, now)
			out = append(out, computed{mapKeyFor(venue, asset, models.InstrumentFuturesVsSpot), futVsSpot})

			syntheticSpot := futMid * (1 - funding)
			spotVsPerp := e.build(venue, asset, models.InstrumentSpotVsPerpetual, spotMid, syntheticSpot, funding, now)
			out = append(out, computed{mapKeyFor(venue, asset, models.InstrumentSpotVsPerpetual), spotVsPerp})
		}
	}

	e.mu.Lock()
	for _, c := range out {
		e.prices[c.mapKey] = c.price
	}
	e.mu.Unlock()
}

func mapKeyFor(v models.Venue, a models.Asset, it models.InstrumentType) string {
	return string(v) + ":" + string(a) + ":" + string(it)
}

func (e *Engine) build(venue models.Venue, asset models.Asset, it models.InstrumentType, real, synthetic, funding float64, now time.Time) models.SyntheticPrice {
	mispricing := 0.0
	if synthetic != 0 {
		mispricing = (real - synthetic) / synthetic * 100
	}
	abs := math.Abs(mispricing)
	valid := abs >= e.cfg.MinMispricingPct && abs <= e.cfg.MaxMispricingPct
	return models.SyntheticPrice{
		Real:           real,
		Synthetic:      synthetic,
		MispricingPct:  mispricing,
		FundingRate:    funding,
		Venue:          venue,
		Asset:          asset,
		InstrumentType: it,
		T:              now,
		Valid:          valid,
	}
}

// GetOpportunities returns every currently valid synthetic price, sorted by
// |mispricing_pct| descending.
func (e *Engine) GetOpportunities() []models.SyntheticPrice {
	e.mu.RLock()
	out := make([]models.SyntheticPrice, 0, len(e.prices))
	for _, p := range e.prices {
		if p.Valid {
			out = append(out, p)
		}
	}
	e.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return math.Abs(out[i].MispricingPct) > math.Abs(out[j].MispricingPct)
	})
	return out
}
