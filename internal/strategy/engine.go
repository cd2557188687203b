// Package strategy implements the Multi-Leg Strategy Engine (C7): it holds
// the latest observed (spot, futures) pair per (venue, asset) and derives
// calendar-spread, synthetic-replication, and butterfly opportunities from
// it.
package strategy

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"arbitrage-analytics/internal/models"
)

// Tau matches the pricing engine's fixed time-to-expiry assumption.
const Tau = 0.25

// Engine is C7. latest holds the most recent RealMarketData per
// (venue, asset), guarded by its own lock.
type Engine struct {
	mu     sync.RWMutex
	latest map[models.BookKey]models.RealMarketData
}

// New builds an empty Engine.
func New() *Engine {
	return &Engine{latest: make(map[models.BookKey]models.RealMarketData)}
}

// Update records the latest spot/futures observation for (venue, asset).
func (e *Engine) Update(venue models.Venue, asset models.Asset, spot, futures float64, t time.Time) {
	if spot <= 0 {
		return
	}
	basisBps := (futures - spot) / spot * 10000
	basisPct := basisBps / 100
	impliedVol := clamp(math.Abs(basisPct)/math.Sqrt(Tau)*100, 15, 150)

	key := models.BookKey{Venue: venue, Asset: asset}
	rec := models.RealMarketData{
		Venue: venue, Asset: asset,
		Spot: spot, Futures: futures,
		BasisBps:            basisBps,
		ImpliedVolFromBasis: impliedVol,
		T:                   t,
	}

	e.mu.Lock()
	e.latest[key] = rec
	e.mu.Unlock()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ScanAll runs every generator over the current RealMarketData set and
// returns the combined, expected-profit-descending result.
func (e *Engine) ScanAll(now time.Time) []models.Opportunity {
	e.mu.RLock()
	records := make([]models.RealMarketData, 0, len(e.latest))
	for _, r := range e.latest {
		records = append(records, r)
	}
	e.mu.RUnlock()

	var out []models.Opportunity
	for _, r := range records {
		if o, ok := calendarSpread(r, now); ok {
			out = append(out, o)
		}
		if o, ok := syntheticReplication(r, now); ok {
			out = append(out, o)
		}
		if o, ok := butterfly(r, now); ok {
			out = append(out, o)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ExpectedProfitUSD > out[j].ExpectedProfitUSD })
	return out
}

func calendarSpread(r models.RealMarketData, now time.Time) (models.Opportunity, bool) {
	diff := r.Futures - r.Spot
	if math.Abs(diff) < 1 {
		return models.Opportunity{}, false
	}
	profit := math.Abs(diff) * 0.5
	roi := math.Abs(diff) / r.Spot * 100
	return models.Opportunity{
		Type:              models.OppCalendarSpread,
		PrimaryVenue:      r.Venue,
		Asset:             r.Asset,
		Metric:            roi,
		ExpectedProfitUSD: profit,
		Confidence:        0.80,
		Executable:        true,
		StrategyText:      fmt.Sprintf("calendar spread: perpetual leg + dated-future leg on %s %s (risk 0.40)", r.Venue, r.Asset),
		T:                 now,
	}, true
}

func syntheticReplication(r models.RealMarketData, now time.Time) (models.Opportunity, bool) {
	profit := -1.2 * (r.Futures - r.Spot)
	if profit <= 0 {
		return models.Opportunity{}, false
	}
	roi := profit / r.Spot * 100
	return models.Opportunity{
		Type:              models.OppSyntheticReplication,
		PrimaryVenue:      r.Venue,
		Asset:             r.Asset,
		Metric:            roi,
		ExpectedProfitUSD: profit,
		Confidence:        0.75,
		Executable:        true,
		StrategyText:      fmt.Sprintf("synthetic replication: buy spot + sell perp + short USDT lending on %s %s (risk 0.50)", r.Venue, r.Asset),
		T:                 now,
	}, true
}

// callPremium is the heuristic (non-Black-Scholes) estimate used by the
// butterfly generator: intrinsic value plus a decayed time-value term.
func callPremium(spot, strike, volPct float64) float64 {
	intrinsic := math.Max(spot-strike, 0)
	m := strike / spot
	decay := 1.0
	if math.Abs(m-1) > 0.05 {
		decay = math.Exp(-math.Abs(m-1) * 5)
	}
	timeValue := spot * (volPct / 100) * math.Sqrt(Tau) * 0.4 * decay
	return intrinsic + timeValue
}

func butterfly(r models.RealMarketData, now time.Time) (models.Opportunity, bool) {
	spot := r.Spot
	low := 0.95 * spot
	up := 1.05 * spot

	pLow := callPremium(spot, low, r.ImpliedVolFromBasis)
	pATM := callPremium(spot, spot, r.ImpliedVolFromBasis)
	pUp := callPremium(spot, up, r.ImpliedVolFromBasis)

	net := pLow - 2*pATM + pUp
	maxProfit := (up - spot) - math.Abs(net)
	if maxProfit <= 10 || math.Abs(net) <= 5 {
		return models.Opportunity{}, false
	}

	return models.Opportunity{
		Type:              models.OppButterfly,
		PrimaryVenue:      r.Venue,
		Asset:             r.Asset,
		Metric:            maxProfit,
		ExpectedProfitUSD: maxProfit,
		Confidence:        math.Min(0.80, r.ImpliedVolFromBasis/50),
		Executable:        true,
		StrategyText:      fmt.Sprintf("butterfly: strikes %.2f/%.2f/%.2f on %s %s (risk 0.30, net debit %.2f)", low, spot, up, r.Venue, r.Asset, net),
		T:                 now,
	}, true
}
