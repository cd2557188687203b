// Package feednormalizer implements the Feed Normalizer (C2): translating
// each venue's raw WebSocket payload into the canonical BookUpdate the book
// store consumes. Parsing never panics; a malformed or unrecognized payload
// is dropped and reported through ErrUnrecognizedDialect or a parse error,
// never propagated past this boundary.
package feednormalizer

import (
	"errors"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"

	"arbitrage-analytics/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrUnrecognizedDialect is returned when a payload matches none of the
// known venue shapes.
var ErrUnrecognizedDialect = errors.New("feednormalizer: unrecognized dialect")

// rawLevel is the two-element [price_string, qty_string, ...] shape shared
// by every supported venue.
type rawLevel []string

func (l rawLevel) toPriceLevel() (models.PriceLevel, bool) {
	if len(l) < 2 {
		return models.PriceLevel{}, false
	}
	price, err := strconv.ParseFloat(l[0], 64)
	if err != nil {
		return models.PriceLevel{}, false
	}
	qty, err := strconv.ParseFloat(l[1], 64)
	if err != nil {
		return models.PriceLevel{}, false
	}
	return models.PriceLevel{Price: price, Quantity: qty}, true
}

func toPriceLevels(raw []rawLevel) []models.PriceLevel {
	out := make([]models.PriceLevel, 0, len(raw))
	for _, r := range raw {
		if pl, ok := r.toPriceLevel(); ok {
			out = append(out, pl)
		}
	}
	return out
}

// binancePayload is Binance's depth-update shape: top-level "b"/"a" arrays,
// always treated as deltas.
type binancePayload struct {
	Bids []rawLevel `json:"b"`
	Asks []rawLevel `json:"a"`
}

// bybitPayload is Bybit's orderbook envelope: topic/type plus a nested
// data object carrying the same b/a level arrays.
type bybitPayload struct {
	Topic string `json:"topic"`
	Type  string `json:"type"`
	Data  struct {
		Bids []rawLevel `json:"b"`
		Asks []rawLevel `json:"a"`
	} `json:"data"`
}

// okxBook is one element of OKX's "data" array.
type okxBook struct {
	Bids []rawLevel `json:"bids"`
	Asks []rawLevel `json:"asks"`
}

// okxPayload is OKX's public books-channel envelope: a "data" array of
// okxBook entries, always treated as a snapshot (see the open-question
// decisions in DESIGN.md).
type okxPayload struct {
	Data []okxBook `json:"data"`
}

// Normalize parses one raw payload for the venue implied by key and
// returns the canonical BookUpdate it represents, or nil when the payload
// carries no book data (heartbeats, subscribe acks). Parse failures are
// non-fatal: they return a nil update and a non-nil error: the caller must
// drop the payload, bump a counter, and keep the connection open.
func Normalize(key models.BookKey, body []byte, receivedAt time.Time) (*models.BookUpdate, error) {
	switch key.Venue {
	case models.VenueBinance:
		return normalizeBinance(key, body, receivedAt)
	case models.VenueBybit:
		return normalizeBybit(key, body, receivedAt)
	case models.VenueOKX:
		return normalizeOKX(key, body, receivedAt)
	default:
		return nil, ErrUnrecognizedDialect
	}
}

func normalizeBinance(key models.BookKey, body []byte, receivedAt time.Time) (*models.BookUpdate, error) {
	var p binancePayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	if len(p.Bids) == 0 && len(p.Asks) == 0 {
		return nil, nil
	}
	return &models.BookUpdate{
		Key:      key,
		Kind:     models.KindDelta,
		Bids:     toPriceLevels(p.Bids),
		Asks:     toPriceLevels(p.Asks),
		IngestAt: receivedAt,
	}, nil
}

func normalizeBybit(key models.BookKey, body []byte, receivedAt time.Time) (*models.BookUpdate, error) {
	var p bybitPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	if p.Topic == "" {
		// Control-channel payload (subscribe ack, pong): nothing to apply.
		return nil, nil
	}
	kind := models.KindDelta
	if p.Type == "snapshot" {
		kind = models.KindSnapshot
	}
	return &models.BookUpdate{
		Key:      key,
		Kind:     kind,
		Bids:     toPriceLevels(p.Data.Bids),
		Asks:     toPriceLevels(p.Data.Asks),
		IngestAt: receivedAt,
	}, nil
}

func normalizeOKX(key models.BookKey, body []byte, receivedAt time.Time) (*models.BookUpdate, error) {
	var p okxPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	if len(p.Data) == 0 {
		return nil, nil
	}
	book := p.Data[0]
	return &models.BookUpdate{
		Key:      key,
		Kind:     models.KindSnapshot,
		Bids:     toPriceLevels(book.Bids),
		Asks:     toPriceLevels(book.Asks),
		IngestAt: receivedAt,
	}, nil
}
