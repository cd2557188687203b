package pricing

import (
	"math"
	"testing"
	"time"

	"arbitrage-analytics/internal/bookstore"
	"arbitrage-analytics/internal/models"
)

func seedBook(t *testing.T, store *bookstore.Store, key models.BookKey, mid float64, now time.Time) {
	t.Helper()
	err := store.Apply(models.BookUpdate{
		Key:  key,
		Kind: models.KindSnapshot,
		Bids: []models.PriceLevel{{Price: mid - 0.5, Quantity: 1}},
		Asks: []models.PriceLevel{{Price: mid + 0.5, Quantity: 1}},
		IngestAt: now,
	})
	if err != nil {
		t.Fatalf("seed apply: %v", err)
	}
}

// TestFuturesVsSpotMispricing reproduces the spec scenario: spot mid
// 30000, futures mid 30150, r=0.05, tau=0.25.
func TestFuturesVsSpotMispricing(t *testing.T) {
	spotKey := models.BookKey{Venue: models.VenueBinance, Asset: models.AssetBTC, Market: models.MarketSpot}
	futKey := models.BookKey{Venue: models.VenueBinance, Asset: models.AssetBTC, Market: models.MarketFutures}
	store := bookstore.NewStore([]models.BookKey{spotKey, futKey}, 0)
	now := time.Now().UTC()

	seedBook(t, store, spotKey, 30000, now)
	seedBook(t, store, futKey, 30150, now)

	eng := New(store, DefaultConfig())
	eng.Tick(now)

	opps := eng.GetOpportunities()
	var found *models.SyntheticPrice
	for i := range opps {
		if opps[i].Venue == models.VenueBinance && opps[i].Asset == models.AssetBTC && opps[i].InstrumentType == models.InstrumentFuturesVsSpot {
			found = &opps[i]
		}
	}
	if found == nil {
		t.Fatal("expected a valid futures_vs_spot entry")
	}
	wantSynthetic := 30000 * math.Exp(0.05*0.25)
	if math.Abs(found.Synthetic/wantSynthetic-1) > 1e-9 {
		t.Errorf("synthetic mismatch: got %v want %v", found.Synthetic, wantSynthetic)
	}
	if math.Abs(found.MispricingPct-(-0.749)) > 0.01 {
		t.Errorf("mispricing_pct = %v, want approx -0.749", found.MispricingPct)
	}
	if !found.Valid {
		t.Error("expected entry to be valid")
	}
}

func TestOpportunitiesSortedByAbsMispricingDesc(t *testing.T) {
	keys := []models.BookKey{
		{Venue: models.VenueBinance, Asset: models.AssetBTC, Market: models.MarketSpot},
		{Venue: models.VenueBinance, Asset: models.AssetBTC, Market: models.MarketFutures},
		{Venue: models.VenueBybit, Asset: models.AssetETH, Market: models.MarketSpot},
		{Venue: models.VenueBybit, Asset: models.AssetETH, Market: models.MarketFutures},
	}
	store := bookstore.NewStore(keys, 0)
	now := time.Now().UTC()
	seedBook(t, store, keys[0], 30000, now)
	seedBook(t, store, keys[1], 30500, now)
	seedBook(t, store, keys[2], 2000, now)
	seedBook(t, store, keys[3], 2010, now)

	eng := New(store, DefaultConfig())
	eng.Tick(now)

	opps := eng.GetOpportunities()
	for i := 1; i < len(opps); i++ {
		if math.Abs(opps[i].MispricingPct) > math.Abs(opps[i-1].MispricingPct) {
			t.Fatalf("opportunities not sorted descending by |mispricing_pct|: %+v", opps)
		}
	}
}

func TestStaleBookExcludedFromTick(t *testing.T) {
	spotKey := models.BookKey{Venue: models.VenueBinance, Asset: models.AssetBTC, Market: models.MarketSpot}
	futKey := models.BookKey{Venue: models.VenueBinance, Asset: models.AssetBTC, Market: models.MarketFutures}
	store := bookstore.NewStore([]models.BookKey{spotKey, futKey}, 0)
	now := time.Now().UTC()

	seedBook(t, store, spotKey, 30000, now.Add(-45*time.Second))
	seedBook(t, store, futKey, 30150, now)

	eng := New(store, DefaultConfig())
	eng.Tick(now)

	if len(eng.GetOpportunities()) != 0 {
		t.Error("expected no opportunities when the spot leg is stale")
	}
}
