package engine

import (
	"testing"
	"time"

	"arbitrage-analytics/internal/feedsource"
	"arbitrage-analytics/internal/models"
	"arbitrage-analytics/internal/risk"
)

func TestReferenceKeysCoversTwelveCombinations(t *testing.T) {
	keys := ReferenceKeys()
	if len(keys) != 12 {
		t.Fatalf("expected 12 reference keys, got %d", len(keys))
	}
	seen := make(map[models.BookKey]bool)
	for _, k := range keys {
		if seen[k] {
			t.Fatalf("duplicate key: %+v", k)
		}
		seen[k] = true
	}
}

func TestFeedAnalyzersPopulatesAnalyzersFromFreshValidBooks(t *testing.T) {
	cfg := DefaultConfig()
	o := New(cfg, risk.New(risk.DefaultConfig()))
	now := time.Now().UTC()

	spotKey := models.BookKey{Venue: models.VenueBinance, Asset: models.AssetBTC, Market: models.MarketSpot}
	futKey := models.BookKey{Venue: models.VenueBinance, Asset: models.AssetBTC, Market: models.MarketFutures}

	_ = o.store.Apply(models.BookUpdate{
		Key: spotKey, Kind: models.KindSnapshot,
		Bids: []models.PriceLevel{{Price: 29999.5, Quantity: 1}},
		Asks: []models.PriceLevel{{Price: 30000.5, Quantity: 1}},
		IngestAt: now,
	})
	_ = o.store.Apply(models.BookUpdate{
		Key: futKey, Kind: models.KindSnapshot,
		Bids: []models.PriceLevel{{Price: 30149.5, Quantity: 1}},
		Asks: []models.PriceLevel{{Price: 30150.5, Quantity: 1}},
		IngestAt: now,
	})

	o.feedAnalyzers(now)

	opps := o.volAnalyzer.Scan(now)
	if len(opps) == 0 {
		t.Fatal("expected volatility analyzer to have received a fresh basis observation")
	}
}

func TestDrainEmptiesBufferedPayloads(t *testing.T) {
	cfg := DefaultConfig()
	o := New(cfg, nil)

	ch := make(chan feedsource.RawPayload, 4)
	ch <- feedsource.RawPayload{}
	ch <- feedsource.RawPayload{}

	o.drain(ch)

	select {
	case <-ch:
		t.Fatal("expected channel to be empty after drain")
	default:
	}
}
