package strategy

import (
	"testing"
	"time"

	"arbitrage-analytics/internal/models"
)

func TestCalendarSpreadRequiresMinimumDiff(t *testing.T) {
	e := New()
	now := time.Now()
	e.Update(models.VenueBinance, models.AssetBTC, 30000, 30000.5, now)

	for _, o := range e.ScanAll(now) {
		if o.Type == models.OppCalendarSpread {
			t.Fatal("expected no calendar spread for a sub-$1 diff")
		}
	}
}

func TestCalendarSpreadEmitted(t *testing.T) {
	e := New()
	now := time.Now()
	e.Update(models.VenueBinance, models.AssetBTC, 30000, 30150, now)

	found := false
	for _, o := range e.ScanAll(now) {
		if o.Type == models.OppCalendarSpread {
			found = true
			if o.ExpectedProfitUSD != 75 {
				t.Errorf("expected profit 75, got %v", o.ExpectedProfitUSD)
			}
		}
	}
	if !found {
		t.Fatal("expected a calendar spread opportunity")
	}
}

func TestSyntheticReplicationRequiresPositiveProfit(t *testing.T) {
	e := New()
	now := time.Now()
	// futures > spot makes -1.2*(fut-spot) negative.
	e.Update(models.VenueBinance, models.AssetBTC, 30000, 30150, now)

	for _, o := range e.ScanAll(now) {
		if o.Type == models.OppSyntheticReplication {
			t.Fatal("expected no synthetic replication when futures > spot")
		}
	}
}

// TestButterflyNotEmittedScenario checks the suppression case: spot 30000
// with futures 31500 puts the basis-implied vol at its 150 cap, where the
// net premium is about -2482, larger in size than the 1500 wing width, so
// max profit is negative and no butterfly is emitted.
func TestButterflyNotEmittedScenario(t *testing.T) {
	e := New()
	now := time.Now()
	e.Update(models.VenueBinance, models.AssetBTC, 30000, 31500, now)

	for _, o := range e.ScanAll(now) {
		if o.Type == models.OppButterfly {
			t.Fatalf("expected butterfly to be suppressed, got %+v", o)
		}
	}
}

func TestScanAllSortedByExpectedProfitDesc(t *testing.T) {
	e := New()
	now := time.Now()
	e.Update(models.VenueBinance, models.AssetBTC, 30000, 30150, now)
	e.Update(models.VenueBybit, models.AssetETH, 2000, 2050, now)

	opps := e.ScanAll(now)
	for i := 1; i < len(opps); i++ {
		if opps[i].ExpectedProfitUSD > opps[i-1].ExpectedProfitUSD {
			t.Fatalf("expected descending expected_profit order: %+v", opps)
		}
	}
}
