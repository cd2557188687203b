// Package volatility implements the Volatility Analyzer (C5): a rolling
// per-(venue,asset) history of spot/futures observations, realized and
// basis-implied volatility estimates, and basis-deviation opportunities.
package volatility

import (
	"math"
	"sort"
	"sync"
	"time"

	"arbitrage-analytics/internal/models"
)

// minuteScaling annualizes a per-minute standard deviation assuming
// 525,600 one-minute samples per year.
var minuteScaling = math.Sqrt(525600)

// Config holds the analyzer's tunables.
type Config struct {
	HistoryWindow    int
	MinVolSpreadBps  float64
	MaxVolSpreadBps  float64
}

// DefaultConfig returns the spec-mandated defaults.
func DefaultConfig() Config {
	return Config{HistoryWindow: 30, MinVolSpreadBps: 20, MaxVolSpreadBps: 500}
}

// Estimate is the current per-key derived volatility snapshot.
type Estimate struct {
	RealizedVol           float64
	BasisImpliedVolProxy  float64
	VolRiskPremium        float64
	Confidence            float64
}

type keyHistory struct {
	mu     sync.Mutex
	points []models.MarketDataPoint
}

// Analyzer is C5. Each key keeps its own lock; no lock is ever held across
// an allocation wait.
type Analyzer struct {
	cfg      Config
	mu       sync.RWMutex // guards the histories map itself, not its contents
	histories map[models.BookKey]*keyHistory
}

// New builds an Analyzer with the given config.
func New(cfg Config) *Analyzer {
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 30
	}
	return &Analyzer{cfg: cfg, histories: make(map[models.BookKey]*keyHistory)}
}

func (a *Analyzer) historyFor(key models.BookKey) *keyHistory {
	a.mu.RLock()
	h, ok := a.histories[key]
	a.mu.RUnlock()
	if ok {
		return h
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if h, ok = a.histories[key]; ok {
		return h
	}
	h = &keyHistory{}
	a.histories[key] = h
	return h
}

// Update appends a new (spot, futures) observation for key, evicting the
// oldest point once the history exceeds the configured window.
func (a *Analyzer) Update(key models.BookKey, spot, futures float64, t time.Time) {
	h := a.historyFor(key)
	point := models.NewMarketDataPoint(spot, futures, t)

	h.mu.Lock()
	h.points = append(h.points, point)
	if len(h.points) > a.cfg.HistoryWindow {
		h.points = h.points[len(h.points)-a.cfg.HistoryWindow:]
	}
	h.mu.Unlock()
}

// Estimate computes the current realized/implied volatility estimate for
// key from its history. ok is false if fewer than 3 points are present.
func (a *Analyzer) Estimate(key models.BookKey) (Estimate, bool) {
	h := a.historyFor(key)
	h.mu.Lock()
	points := make([]models.MarketDataPoint, len(h.points))
	copy(points, h.points)
	h.mu.Unlock()

	if len(points) < 3 {
		return Estimate{}, false
	}

	logReturns := make([]float64, 0, len(points)-1)
	basisDiffs := make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		if points[i-1].Spot > 0 && points[i].Spot > 0 {
			logReturns = append(logReturns, math.Log(points[i].Spot/points[i-1].Spot))
		}
		basisDiffs = append(basisDiffs, points[i].BasisBps-points[i-1].BasisBps)
	}

	realized := math.Min(stdev(logReturns)*minuteScaling*100, 200)
	implied := math.Min(stdev(basisDiffs)*minuteScaling*0.1, 150)

	return Estimate{
		RealizedVol:          realized,
		BasisImpliedVolProxy: implied,
		VolRiskPremium:       implied - realized,
		Confidence:           math.Min(0.95, float64(len(points))/10),
	}, true
}

func stdev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	var sumSq float64
	for _, x := range xs {
		d := x - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)))
}

// latest returns the most recent MarketDataPoint for key, if any.
func (a *Analyzer) latest(key models.BookKey) (models.MarketDataPoint, bool) {
	h := a.historyFor(key)
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.points) == 0 {
		return models.MarketDataPoint{}, false
	}
	return h.points[len(h.points)-1], true
}

// Scan iterates every tracked key and emits a basis-deviation opportunity
// for each whose current |basis_bps| falls in
// [MinVolSpreadBps, MaxVolSpreadBps]. Results are sorted by |basis_bps|
// descending.
func (a *Analyzer) Scan(now time.Time) []models.Opportunity {
	a.mu.RLock()
	keys := make([]models.BookKey, 0, len(a.histories))
	for k := range a.histories {
		keys = append(keys, k)
	}
	a.mu.RUnlock()

	var out []models.Opportunity
	for _, key := range keys {
		point, ok := a.latest(key)
		if !ok {
			continue
		}
		abs := math.Abs(point.BasisBps)
		if abs < a.cfg.MinVolSpreadBps || abs > a.cfg.MaxVolSpreadBps {
			continue
		}

		strategy := "sell futures, buy spot"
		if point.BasisBps < 0 {
			strategy = "sell spot, buy futures"
		}

		out = append(out, models.Opportunity{
			Type:              models.OppBasisDeviation,
			PrimaryVenue:      key.Venue,
			Asset:             key.Asset,
			Metric:            point.BasisBps,
			MetricThreshold:   a.cfg.MinVolSpreadBps,
			ExpectedProfitUSD: abs * point.Spot * 5e-5,
			Confidence:        0.6,
			Executable:        true,
			StrategyText:      strategy,
			T:                 now,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return math.Abs(out[i].Metric) > math.Abs(out[j].Metric)
	})
	return out
}
