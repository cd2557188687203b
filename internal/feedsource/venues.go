package feedsource

import (
	"github.com/gorilla/websocket"

	"arbitrage-analytics/internal/models"
)

// Public order-book WebSocket endpoints, one per venue/market combination.
// Grounded on the teacher's exchange package connection constants.
const (
	binanceSpotWS    = "wss://stream.binance.com:9443/ws"
	binanceFuturesWS = "wss://fstream.binance.com/ws"
	bybitSpotWS      = "wss://stream.bybit.com/v5/public/spot"
	bybitLinearWS    = "wss://stream.bybit.com/v5/public/linear"
	okxPublicWS      = "wss://ws.okx.com:8443/ws/v5/public"
)

func urlFor(key models.BookKey) string {
	switch key.Venue {
	case models.VenueBinance:
		if key.Market == models.MarketFutures {
			return binanceFuturesWS
		}
		return binanceSpotWS
	case models.VenueBybit:
		if key.Market == models.MarketFutures {
			return bybitLinearWS
		}
		return bybitSpotWS
	default:
		return okxPublicWS
	}
}

// NewForKey builds the venue-appropriate Source for key, wiring in the
// correct URL and subscribe-message dialect.
func NewForKey(key models.BookKey) Source {
	return NewWSSource(key, urlFor(key), subscribeFor(key))
}

func subscribeFor(key models.BookKey) SubscribeFunc {
	switch key.Venue {
	case models.VenueBinance:
		return func(conn *websocket.Conn, key models.BookKey) error {
			stream := symbolLower(key) + "@depth"
			return conn.WriteJSON(map[string]interface{}{
				"method": "SUBSCRIBE",
				"params": []string{stream},
				"id":     1,
			})
		}
	case models.VenueBybit:
		return func(conn *websocket.Conn, key models.BookKey) error {
			return conn.WriteJSON(map[string]interface{}{
				"op":   "subscribe",
				"args": []string{"orderbook.50." + key.Symbol()},
			})
		}
	default: // OKX
		return func(conn *websocket.Conn, key models.BookKey) error {
			channel := "books"
			instType := "SPOT"
			if key.Market == models.MarketFutures {
				instType = "SWAP"
			}
			return conn.WriteJSON(map[string]interface{}{
				"op": "subscribe",
				"args": []map[string]string{
					{"channel": channel, "instType": instType, "instId": key.Symbol()},
				},
			})
		}
	}
}

func symbolLower(key models.BookKey) string {
	s := key.Symbol()
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
