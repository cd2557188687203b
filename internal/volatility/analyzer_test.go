package volatility

import (
	"math"
	"testing"
	"time"

	"arbitrage-analytics/internal/models"
)

func btcBinance() models.BookKey {
	return models.BookKey{Venue: models.VenueBinance, Asset: models.AssetBTC, Market: models.MarketSpot}
}

func TestEstimateRequiresThreePoints(t *testing.T) {
	a := New(DefaultConfig())
	key := btcBinance()
	now := time.Now()

	a.Update(key, 30000, 30100, now)
	a.Update(key, 30010, 30110, now.Add(time.Minute))
	if _, ok := a.Estimate(key); ok {
		t.Error("expected no estimate with fewer than 3 points")
	}

	a.Update(key, 30020, 30120, now.Add(2*time.Minute))
	est, ok := a.Estimate(key)
	if !ok {
		t.Fatal("expected an estimate with 3 points")
	}
	if est.RealizedVol < 0 || est.RealizedVol > 200 {
		t.Errorf("realized vol out of bounds: %v", est.RealizedVol)
	}
	if est.Confidence != math.Min(0.95, 0.3) {
		t.Errorf("unexpected confidence: %v", est.Confidence)
	}
}

func TestHistoryWindowEviction(t *testing.T) {
	cfg := Config{HistoryWindow: 3, MinVolSpreadBps: 20, MaxVolSpreadBps: 500}
	a := New(cfg)
	key := btcBinance()
	now := time.Now()

	for i := 0; i < 10; i++ {
		a.Update(key, 30000+float64(i), 30100+float64(i), now.Add(time.Duration(i)*time.Minute))
	}

	h := a.historyFor(key)
	h.mu.Lock()
	n := len(h.points)
	h.mu.Unlock()
	if n != 3 {
		t.Errorf("expected history capped at 3, got %d", n)
	}
}

func TestScanEmitsBasisDeviationWithinRange(t *testing.T) {
	a := New(DefaultConfig())
	key := btcBinance()
	now := time.Now()

	// basis_bps = (30150-30000)/30000*10000 = 50 bps, within [20,500].
	a.Update(key, 30000, 30150, now)

	opps := a.Scan(now)
	if len(opps) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(opps))
	}
	if opps[0].Type != models.OppBasisDeviation {
		t.Errorf("unexpected opportunity type: %v", opps[0].Type)
	}
	if opps[0].StrategyText != "sell futures, buy spot" {
		t.Errorf("unexpected strategy text for positive basis: %q", opps[0].StrategyText)
	}
}

func TestScanSkipsOutOfRangeBasis(t *testing.T) {
	a := New(DefaultConfig())
	key := btcBinance()
	now := time.Now()

	// basis_bps = (30001-30000)/30000*10000 ~= 0.33 bps, below the 20 bps floor.
	a.Update(key, 30000, 30001, now)
	if opps := a.Scan(now); len(opps) != 0 {
		t.Errorf("expected no opportunities for sub-threshold basis, got %+v", opps)
	}
}
