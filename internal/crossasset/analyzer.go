// Package crossasset implements the Cross-Asset Analyzer (C6): a per-venue
// BTC/ETH ratio history, an exponentially weighted fair-value ratio, and
// two opportunity families: cross-exchange ratio spreads and intra-venue
// mean reversion.
package crossasset

import (
	"math"
	"sort"
	"sync"
	"time"

	"arbitrage-analytics/internal/models"
)

// Config holds the analyzer's tunables.
type Config struct {
	HistoryWindow       int
	MinRatioSpreadPct   float64
	MaxRatioSpreadPct   float64
	EWMAAlpha           float64
}

// DefaultConfig returns the spec-mandated defaults.
func DefaultConfig() Config {
	return Config{HistoryWindow: 20, MinRatioSpreadPct: 0.01, MaxRatioSpreadPct: 2.0, EWMAAlpha: 0.2}
}

type venueState struct {
	mu      sync.Mutex
	btc     float64
	eth     float64
	history []models.RatioPoint
}

// Analyzer is C6. Each venue keeps its own state under its own lock.
type Analyzer struct {
	cfg    Config
	mu     sync.RWMutex
	venues map[models.Venue]*venueState
}

// New builds an Analyzer with the given config.
func New(cfg Config) *Analyzer {
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 20
	}
	if cfg.EWMAAlpha <= 0 {
		cfg.EWMAAlpha = 0.2
	}
	return &Analyzer{cfg: cfg, venues: make(map[models.Venue]*venueState)}
}

func (a *Analyzer) stateFor(venue models.Venue) *venueState {
	a.mu.RLock()
	v, ok := a.venues[venue]
	a.mu.RUnlock()
	if ok {
		return v
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if v, ok = a.venues[venue]; ok {
		return v
	}
	v = &venueState{}
	a.venues[venue] = v
	return v
}

// UpdateAssetPrice records the latest price for (venue, asset). Once both
// BTC and ETH are known for a venue, a new RatioPoint is appended. Prices
// that are not strictly positive are ignored.
func (a *Analyzer) UpdateAssetPrice(venue models.Venue, asset models.Asset, price float64, t time.Time) {
	if price <= 0 {
		return
	}
	v := a.stateFor(venue)

	v.mu.Lock()
	defer v.mu.Unlock()
	switch asset {
	case models.AssetBTC:
		v.btc = price
	case models.AssetETH:
		v.eth = price
	}
	if v.btc > 0 && v.eth > 0 {
		v.history = append(v.history, models.NewRatioPoint(v.btc, v.eth, t))
		if len(v.history) > a.cfg.HistoryWindow {
			v.history = v.history[len(v.history)-a.cfg.HistoryWindow:]
		}
	}
}

// currentRatio returns the most recent ratio for venue.
func (v *venueState) currentRatio() (float64, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.history) == 0 {
		return 0, false
	}
	return v.history[len(v.history)-1].Ratio, true
}

// fairRatio computes the EWMA fair-value ratio (alpha-weighted, most recent
// heaviest) over the venue's history. ok is false with fewer than 2 points.
func (v *venueState) fairRatio(alpha float64) (float64, bool) {
	v.mu.Lock()
	history := make([]models.RatioPoint, len(v.history))
	copy(history, v.history)
	v.mu.Unlock()

	n := len(history)
	if n < 2 {
		return 0, false
	}

	var weightedSum, weightSum float64
	for i, p := range history {
		w := math.Pow(alpha, float64(n-1-i))
		weightedSum += w * p.Ratio
		weightSum += w
	}
	return weightedSum / weightSum, true
}

// Scan emits cross-exchange ratio-spread and intra-venue mean-reversion
// opportunities, sorted by metric descending.
func (a *Analyzer) Scan(now time.Time) []models.Opportunity {
	a.mu.RLock()
	venues := make([]models.Venue, 0, len(a.venues))
	states := make(map[models.Venue]*venueState, len(a.venues))
	for v, s := range a.venues {
		venues = append(venues, v)
		states[v] = s
	}
	a.mu.RUnlock()

	var out []models.Opportunity
	out = append(out, a.scanCrossExchange(venues, states, now)...)
	out = append(out, a.scanIntraVenue(venues, states, now)...)

	sort.Slice(out, func(i, j int) bool { return out[i].Metric > out[j].Metric })
	return out
}

func (a *Analyzer) scanCrossExchange(venues []models.Venue, states map[models.Venue]*venueState, now time.Time) []models.Opportunity {
	var out []models.Opportunity
	for i := 0; i < len(venues); i++ {
		for j := i + 1; j < len(venues); j++ {
			v1, v2 := venues[i], venues[j]
			r1, ok1 := states[v1].currentRatio()
			r2, ok2 := states[v2].currentRatio()
			if !ok1 || !ok2 {
				continue
			}

			primary, secondary, rPrimary := v1, v2, r1
			if r2 < r1 {
				primary, secondary, rPrimary = v2, v1, r2
			}
			if rPrimary == 0 {
				continue
			}
			spreadPct := math.Abs(r1-r2) / rPrimary * 100
			if spreadPct < a.cfg.MinRatioSpreadPct || spreadPct > a.cfg.MaxRatioSpreadPct {
				continue
			}

			btcPrimary, _ := states[primary].btcSnapshot()
			btcSecondary, _ := states[secondary].btcSnapshot()
			minBTC := math.Min(btcPrimary, btcSecondary)

			out = append(out, models.Opportunity{
				Type:              models.OppCrossExchangeRatio,
				PrimaryVenue:      primary,
				SecondaryVenue:    secondary,
				Asset:             models.AssetBTC,
				Metric:            spreadPct,
				MetricThreshold:   a.cfg.MinRatioSpreadPct,
				ExpectedProfitUSD: spreadPct * minBTC * 0.01,
				Confidence:        math.Min(0.8, 0.5+spreadPct/0.2),
				Executable:        true,
				StrategyText:      "Buy BTC/primary + Sell ETH/primary; Sell BTC/secondary + Buy ETH/secondary",
				T:                 now,
			})
		}
	}
	return out
}

func (v *venueState) btcSnapshot() (float64, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.btc, v.btc > 0
}

func (a *Analyzer) scanIntraVenue(venues []models.Venue, states map[models.Venue]*venueState, now time.Time) []models.Opportunity {
	var out []models.Opportunity
	for _, venue := range venues {
		s := states[venue]
		current, okC := s.currentRatio()
		fair, okF := s.fairRatio(a.cfg.EWMAAlpha)
		if !okC || !okF || fair == 0 {
			continue
		}
		deviationPct := math.Abs(current-fair) / fair * 100
		if deviationPct < a.cfg.MinRatioSpreadPct {
			continue
		}

		direction := "ratio above fair value: sell BTC, buy ETH"
		if current < fair {
			direction = "ratio below fair value: buy BTC, sell ETH"
		}

		btc, _ := s.btcSnapshot()
		out = append(out, models.Opportunity{
			Type:              models.OppIntraVenueReversion,
			PrimaryVenue:      venue,
			Asset:             models.AssetBTC,
			Metric:            deviationPct,
			MetricThreshold:   a.cfg.MinRatioSpreadPct,
			ExpectedProfitUSD: deviationPct * btc * 0.005,
			Confidence:        math.Min(0.85, 0.4+deviationPct/0.1),
			Executable:        true,
			StrategyText:      direction,
			T:                 now,
		})
	}
	return out
}
