package bookstore

import (
	"math"
	"testing"
	"time"

	"arbitrage-analytics/internal/models"
)

func testKey() models.BookKey {
	return models.BookKey{Venue: models.VenueBinance, Asset: models.AssetBTC, Market: models.MarketSpot}
}

func lvl(price, qty float64) models.PriceLevel { return models.PriceLevel{Price: price, Quantity: qty} }

// TestApplyBinanceDelta reproduces the scenario from the spec: a delta on
// top of a pre-seeded book must upsert, zero-out removals, and leave
// untouched levels alone.
func TestApplyBinanceDelta(t *testing.T) {
	key := testKey()
	store := NewStore([]models.BookKey{key}, 0)
	now := time.Now().UTC()

	seed := models.BookUpdate{
		Key:  key,
		Kind: models.KindSnapshot,
		Bids: []models.PriceLevel{lvl(29999, 5), lvl(30000, 0.5)},
		Asks: []models.PriceLevel{lvl(30010, 1)},
		IngestAt: now,
	}
	if err := store.Apply(seed); err != nil {
		t.Fatalf("seed apply: %v", err)
	}

	delta := models.BookUpdate{
		Key:  key,
		Kind: models.KindDelta,
		Bids: []models.PriceLevel{lvl(30000, 1), lvl(29999, 0)},
		Asks: []models.PriceLevel{lvl(30010, 2)},
		IngestAt: now.Add(time.Millisecond),
	}
	if err := store.Apply(delta); err != nil {
		t.Fatalf("delta apply: %v", err)
	}

	snap := store.Snapshot(key, 0, now.Add(time.Millisecond))
	if len(snap.Bids) != 1 || snap.Bids[0].Price != 30000 || snap.Bids[0].Quantity != 1 {
		t.Errorf("expected single bid {30000,1}, got %+v", snap.Bids)
	}
	if len(snap.Asks) != 1 || snap.Asks[0].Price != 30010 || snap.Asks[0].Quantity != 2 {
		t.Errorf("expected single ask {30010,2}, got %+v", snap.Asks)
	}
}

// TestSnapshotStaleBook reproduces scenario 6: a book last updated 45s ago
// must report fresh=false.
func TestSnapshotStaleBook(t *testing.T) {
	key := testKey()
	store := NewStore([]models.BookKey{key}, 0)
	now := time.Now().UTC()

	_ = store.Apply(models.BookUpdate{
		Key: key, Kind: models.KindSnapshot,
		Bids: []models.PriceLevel{lvl(100, 1)}, Asks: []models.PriceLevel{lvl(101, 1)},
		IngestAt: now.Add(-45 * time.Second),
	})

	snap := store.Snapshot(key, 0, now)
	if snap.Fresh {
		t.Error("expected fresh=false for a book last updated 45s ago")
	}
}

// TestSnapshotRespectsConfiguredFreshnessWindow checks that a Store built
// with a non-default freshness window uses it instead of the package
// default.
func TestSnapshotRespectsConfiguredFreshnessWindow(t *testing.T) {
	key := testKey()
	store := NewStore([]models.BookKey{key}, 5*time.Second)
	now := time.Now().UTC()

	_ = store.Apply(models.BookUpdate{
		Key: key, Kind: models.KindSnapshot,
		Bids: []models.PriceLevel{lvl(100, 1)}, Asks: []models.PriceLevel{lvl(101, 1)},
		IngestAt: now.Add(-10 * time.Second),
	})

	if store.Snapshot(key, 0, now).Fresh {
		t.Error("expected fresh=false 10s after an update under a 5s freshness window")
	}
}

func TestApplyUnknownKeyRejected(t *testing.T) {
	store := NewStore([]models.BookKey{testKey()}, 0)
	other := models.BookKey{Venue: models.VenueOKX, Asset: models.AssetETH, Market: models.MarketFutures}

	err := store.Apply(models.BookUpdate{Key: other, Kind: models.KindSnapshot})
	if err != ErrUnknownKey {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
}

func TestMidUndefinedWhenSideEmpty(t *testing.T) {
	key := testKey()
	store := NewStore([]models.BookKey{key}, 0)
	now := time.Now().UTC()

	_ = store.Apply(models.BookUpdate{
		Key: key, Kind: models.KindSnapshot,
		Bids: []models.PriceLevel{lvl(100, 1)},
		IngestAt: now,
	})

	snap := store.Snapshot(key, 0, now)
	if !math.IsNaN(snap.Mid) {
		t.Errorf("expected NaN mid with empty ask side, got %v", snap.Mid)
	}

	_ = store.Apply(models.BookUpdate{
		Key: key, Kind: models.KindDelta,
		Asks: []models.PriceLevel{lvl(102, 1)},
		IngestAt: now,
	})
	snap = store.Snapshot(key, 0, now)
	if math.IsNaN(snap.Mid) {
		t.Fatal("expected a defined mid once both sides are present")
	}
	if !(snap.BestBid < snap.Mid && snap.Mid < snap.BestAsk) {
		t.Errorf("expected best_bid < mid < best_ask, got %v < %v < %v", snap.BestBid, snap.Mid, snap.BestAsk)
	}
}

func TestValiditySpreadInvariant(t *testing.T) {
	key := testKey()
	store := NewStore([]models.BookKey{key}, 0)
	now := time.Now().UTC()

	// 2% spread exceeds the 1% validity threshold.
	_ = store.Apply(models.BookUpdate{
		Key: key, Kind: models.KindSnapshot,
		Bids: []models.PriceLevel{lvl(100, 1)},
		Asks: []models.PriceLevel{lvl(102, 1)},
		IngestAt: now,
	})
	if store.Snapshot(key, 0, now).Valid {
		t.Error("expected valid=false when spread exceeds 1%")
	}

	_ = store.Apply(models.BookUpdate{
		Key: key, Kind: models.KindSnapshot,
		Bids: []models.PriceLevel{lvl(100, 1)},
		Asks: []models.PriceLevel{lvl(100.5, 1)},
		IngestAt: now,
	})
	if !store.Snapshot(key, 0, now).Valid {
		t.Error("expected valid=true for a 0.5% spread")
	}
}

func TestSnapshotAllCoversEveryKey(t *testing.T) {
	keys := []models.BookKey{
		{Venue: models.VenueBinance, Asset: models.AssetBTC, Market: models.MarketSpot},
		{Venue: models.VenueBybit, Asset: models.AssetETH, Market: models.MarketFutures},
	}
	store := NewStore(keys, 0)
	results := store.SnapshotAll(5, time.Now().UTC())
	if len(results) != len(keys) {
		t.Fatalf("expected %d snapshots, got %d", len(keys), len(results))
	}
}

// TestOrderedLevels checks that bid/ask iteration is monotonic in the
// required direction regardless of insertion order.
func TestOrderedLevels(t *testing.T) {
	key := testKey()
	store := NewStore([]models.BookKey{key}, 0)
	now := time.Now().UTC()

	_ = store.Apply(models.BookUpdate{
		Key: key, Kind: models.KindSnapshot,
		Bids: []models.PriceLevel{lvl(99, 1), lvl(101, 1), lvl(100, 1)},
		Asks: []models.PriceLevel{lvl(105, 1), lvl(103, 1), lvl(104, 1)},
		IngestAt: now,
	})

	snap := store.Snapshot(key, 0, now)
	for i := 1; i < len(snap.Bids); i++ {
		if snap.Bids[i].Price > snap.Bids[i-1].Price {
			t.Fatalf("bids not descending: %+v", snap.Bids)
		}
	}
	for i := 1; i < len(snap.Asks); i++ {
		if snap.Asks[i].Price < snap.Asks[i-1].Price {
			t.Fatalf("asks not ascending: %+v", snap.Asks)
		}
	}
}
