// Package engine implements the Scheduler/Orchestrator (C9): one goroutine
// per feed source, the synthetic pricing engine's periodic loop, and a
// main analytic cycle that drives the analyzers and reports the risk
// manager's metrics.
// Shutdown is a single context cancellation; every loop drains and exits
// at its next boundary, grounded on the teacher's Engine.Run/drainChannels
// pattern.
package engine

import (
	"context"
	"sync"
	"time"

	"arbitrage-analytics/internal/bookstore"
	"arbitrage-analytics/internal/crossasset"
	"arbitrage-analytics/internal/feednormalizer"
	"arbitrage-analytics/internal/feedsource"
	"arbitrage-analytics/internal/metricsserver"
	"arbitrage-analytics/internal/models"
	"arbitrage-analytics/internal/pricing"
	"arbitrage-analytics/internal/risk"
	"arbitrage-analytics/internal/strategy"
	"arbitrage-analytics/internal/volatility"
	"arbitrage-analytics/pkg/utils"
)

// analyticCycleInterval is the main loop's tick period.
const analyticCycleInterval = 50 * time.Millisecond

// Config holds the orchestrator's wiring parameters.
type Config struct {
	Keys            []models.BookKey
	Pricing         pricing.Config
	Volatility      volatility.Config
	CrossAsset      crossasset.Config
	FreshnessWindow time.Duration
	RawChanSize     int
}

// DefaultConfig returns a Config covering the reference 12-key deployment.
func DefaultConfig() Config {
	return Config{
		Keys:            ReferenceKeys(),
		Pricing:         pricing.DefaultConfig(),
		Volatility:      volatility.DefaultConfig(),
		CrossAsset:      crossasset.DefaultConfig(),
		FreshnessWindow: bookstore.FreshnessWindow,
		RawChanSize:     4096,
	}
}

// ReferenceKeys returns the fixed 12-key set: 3 venues x 2 assets x 2
// market types.
func ReferenceKeys() []models.BookKey {
	venues := []models.Venue{models.VenueBinance, models.VenueBybit, models.VenueOKX}
	assets := []models.Asset{models.AssetBTC, models.AssetETH}
	markets := []models.MarketType{models.MarketSpot, models.MarketFutures}

	keys := make([]models.BookKey, 0, len(venues)*len(assets)*len(markets))
	for _, v := range venues {
		for _, a := range assets {
			for _, m := range markets {
				keys = append(keys, models.BookKey{Venue: v, Asset: a, Market: m})
			}
		}
	}
	return keys
}

// Orchestrator is C9: it owns the book store, every analyzer, the risk
// manager, and the concurrent feed/pricing tasks.
type Orchestrator struct {
	cfg   Config
	store *bookstore.Store

	pricingEngine *pricing.Engine
	volAnalyzer   *volatility.Analyzer
	crossAsset    *crossasset.Analyzer
	strategyEng   *strategy.Engine
	riskMgr       *risk.Manager

	log *utils.Logger

	tickCounter uint64
}

// New builds an Orchestrator wired with fresh analyzer instances over a
// new book store covering cfg.Keys.
func New(cfg Config, riskMgr *risk.Manager) *Orchestrator {
	store := bookstore.NewStore(cfg.Keys, cfg.FreshnessWindow)
	return &Orchestrator{
		cfg:           cfg,
		store:         store,
		pricingEngine: pricing.New(store, cfg.Pricing),
		volAnalyzer:   volatility.New(cfg.Volatility),
		crossAsset:    crossasset.New(cfg.CrossAsset),
		strategyEng:   strategy.New(),
		riskMgr:       riskMgr,
		log:           utils.L().WithComponent("engine"),
	}
}

// Store returns the orchestrator's book store, for use by feed consumers.
func (o *Orchestrator) Store() *bookstore.Store { return o.store }

// Run starts every feed source, the pricing engine's periodic loop, and
// the main analytic cycle, blocking until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) {
	raw := make(chan feedsource.RawPayload, o.cfg.RawChanSize)

	var wg sync.WaitGroup
	for _, key := range o.cfg.Keys {
		key := key
		src := feedsource.NewForKey(key)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := src.Run(ctx, raw); err != nil && ctx.Err() == nil {
				o.log.Error("feed source exited", utils.String("key", key.String()), utils.Err(err))
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		o.normalizeLoop(ctx, raw)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		o.pricingEngine.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		o.analyticCycle(ctx)
	}()

	<-ctx.Done()
	wg.Wait()
	o.drain(raw)
}

// normalizeLoop drains raw payloads, normalizes them, and applies the
// result to the book store. Parse failures are logged and otherwise
// ignored; they never tear down the producing connection.
func (o *Orchestrator) normalizeLoop(ctx context.Context, raw <-chan feedsource.RawPayload) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-raw:
			update, err := feednormalizer.Normalize(payload.Key, payload.Body, payload.ReceivedAt)
			if err != nil {
				metricsserver.FeedParseErrorsTotal.WithLabelValues(string(payload.Key.Venue)).Inc()
				o.log.Debug("dropped malformed feed payload",
					utils.String("key", payload.Key.String()), utils.Err(err))
				continue
			}
			if update == nil {
				continue // control-channel payload: nothing to apply
			}
			if err := o.store.Apply(*update); err != nil {
				o.log.Debug("dropped update for unknown key",
					utils.String("key", payload.Key.String()))
			}
		}
	}
}

// analyticCycle runs the ~50ms main loop: every 10 ticks it feeds the
// latest mids to the analyzers, every 50 ticks it logs a risk summary,
// and roughly every 30s it logs a performance report.
func (o *Orchestrator) analyticCycle(ctx context.Context) {
	ticker := time.NewTicker(analyticCycleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			tickStart := time.Now()
			o.tickCounter++

			if o.tickCounter%10 == 0 {
				o.feedAnalyzers(now)
			}
			if o.tickCounter%50 == 0 {
				o.logRiskSummary()
			}
			if o.tickCounter%600 == 0 { // 600 * 50ms = 30s
				o.logPerformanceReport()
			}

			metricsserver.AnalyticCycleLatency.Observe(float64(time.Since(tickStart).Microseconds()) / 1000)
		}
	}
}

func (o *Orchestrator) feedAnalyzers(now time.Time) {
	snaps := o.store.SnapshotAll(0, now)
	byKey := make(map[models.BookKey]bookstore.SnapshotResult, len(snaps))
	for _, s := range snaps {
		byKey[s.Key] = s
	}

	venues := []models.Venue{models.VenueBinance, models.VenueBybit, models.VenueOKX}
	assets := []models.Asset{models.AssetBTC, models.AssetETH}

	for _, venue := range venues {
		for _, asset := range assets {
			spot, okSpot := byKey[models.BookKey{Venue: venue, Asset: asset, Market: models.MarketSpot}]
			fut, okFut := byKey[models.BookKey{Venue: venue, Asset: asset, Market: models.MarketFutures}]
			if !okSpot || !okFut || !spot.Fresh || !fut.Fresh || !spot.Valid || !fut.Valid {
				continue
			}
			o.volAnalyzer.Update(spot.Key, spot.Mid, fut.Mid, now)
			o.strategyEng.Update(venue, asset, spot.Mid, fut.Mid, now)
			o.crossAsset.UpdateAssetPrice(venue, asset, spot.Mid, now)
		}
	}
}

func (o *Orchestrator) logRiskSummary() {
	if o.riskMgr == nil {
		return
	}
	m := o.riskMgr.Metrics()
	metricsserver.DailyPnl.Set(m.DailyPnl)
	o.log.Info("risk summary",
		utils.Float64("total_exposure", m.TotalExposure),
		utils.Float64("available_capital", m.AvailableCapital),
		utils.Float64("daily_pnl", m.DailyPnl),
		utils.Int("total_trades", m.TotalTrades),
	)
}

func (o *Orchestrator) logPerformanceReport() {
	pricingOpps := o.pricingEngine.GetOpportunities()
	volOpps := o.volAnalyzer.Scan(time.Now())
	crossOpps := o.crossAsset.Scan(time.Now())
	strategyOpps := o.strategyEng.ScanAll(time.Now())

	for _, opps := range [][]models.Opportunity{volOpps, crossOpps, strategyOpps} {
		for _, opp := range opps {
			metricsserver.OpportunitiesEmittedTotal.WithLabelValues(string(opp.Type)).Inc()
		}
	}

	o.log.Info("performance report",
		utils.Int("synthetic_prices_valid", len(pricingOpps)),
		utils.Int("volatility_opportunities", len(volOpps)),
		utils.Int("cross_asset_opportunities", len(crossOpps)),
		utils.Int("strategy_opportunities", len(strategyOpps)),
	)
}

// drain empties any buffered raw payloads left in flight at shutdown.
func (o *Orchestrator) drain(raw chan feedsource.RawPayload) {
	for {
		select {
		case <-raw:
		default:
			return
		}
	}
}
