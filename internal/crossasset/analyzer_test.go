package crossasset

import (
	"math"
	"testing"
	"time"

	"arbitrage-analytics/internal/models"
)

// TestCrossExchangeRatioSpread reproduces the spec scenario: BTC=30000 on
// Binance, ETH=2000 on Binance, BTC=30300 on Bybit, ETH=2000 on Bybit.
func TestCrossExchangeRatioSpread(t *testing.T) {
	a := New(DefaultConfig())
	now := time.Now()

	a.UpdateAssetPrice(models.VenueBinance, models.AssetBTC, 30000, now)
	a.UpdateAssetPrice(models.VenueBinance, models.AssetETH, 2000, now)
	a.UpdateAssetPrice(models.VenueBybit, models.AssetBTC, 30300, now)
	a.UpdateAssetPrice(models.VenueBybit, models.AssetETH, 2000, now)

	opps := a.Scan(now)
	var found *models.Opportunity
	for i := range opps {
		if opps[i].Type == models.OppCrossExchangeRatio {
			found = &opps[i]
		}
	}
	if found == nil {
		t.Fatal("expected a cross-exchange ratio opportunity")
	}
	if found.PrimaryVenue != models.VenueBinance {
		t.Errorf("expected primary venue to be the lower-ratio venue (Binance), got %v", found.PrimaryVenue)
	}
	if math.Abs(found.Metric-1.0) > 0.01 {
		t.Errorf("expected spread_pct approx 1.0, got %v", found.Metric)
	}
}

func TestIntraVenueMeanReversionRequiresTwoPoints(t *testing.T) {
	a := New(DefaultConfig())
	now := time.Now()

	a.UpdateAssetPrice(models.VenueBinance, models.AssetBTC, 30000, now)
	a.UpdateAssetPrice(models.VenueBinance, models.AssetETH, 2000, now)

	opps := a.Scan(now)
	for _, o := range opps {
		if o.Type == models.OppIntraVenueReversion {
			t.Fatal("expected no intra-venue opportunity with only 1 ratio point")
		}
	}
}

func TestUpdateIgnoresNonPositivePrice(t *testing.T) {
	a := New(DefaultConfig())
	now := time.Now()
	a.UpdateAssetPrice(models.VenueBinance, models.AssetBTC, -5, now)

	s := a.stateFor(models.VenueBinance)
	if btc, ok := s.btcSnapshot(); ok || btc != 0 {
		t.Errorf("expected non-positive price to be ignored, got btc=%v ok=%v", btc, ok)
	}
}

func TestScanSortedByMetricDescending(t *testing.T) {
	a := New(DefaultConfig())
	now := time.Now()

	a.UpdateAssetPrice(models.VenueBinance, models.AssetBTC, 30000, now)
	a.UpdateAssetPrice(models.VenueBinance, models.AssetETH, 2000, now)
	a.UpdateAssetPrice(models.VenueBybit, models.AssetBTC, 30900, now)
	a.UpdateAssetPrice(models.VenueBybit, models.AssetETH, 2000, now)
	a.UpdateAssetPrice(models.VenueOKX, models.AssetBTC, 30150, now)
	a.UpdateAssetPrice(models.VenueOKX, models.AssetETH, 2000, now)

	opps := a.Scan(now)
	for i := 1; i < len(opps); i++ {
		if opps[i].Metric > opps[i-1].Metric {
			t.Fatalf("opportunities not sorted by metric descending: %+v", opps)
		}
	}
}
