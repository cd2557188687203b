// Package feedsource connects to each venue's public order-book WebSocket
// channel and forwards raw payloads to the feed normalizer. Grounded on
// the teacher's WSReconnectManager: exponential backoff reconnect and a
// dedicated read goroutine, generalized from a
// private-trading connection to a public market-data one (no auth, no
// resubscription of order-placement channels).
package feedsource

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"arbitrage-analytics/internal/models"
	"arbitrage-analytics/pkg/ratelimit"
	"arbitrage-analytics/pkg/retry"
	"arbitrage-analytics/pkg/utils"
)

// RawPayload is one undecoded message received from a venue connection,
// stamped with the BookKey it was received under.
type RawPayload struct {
	Key        models.BookKey
	Body       []byte
	ReceivedAt time.Time
}

// Source runs a single venue/market WebSocket connection until ctx is
// cancelled, pushing every received payload to out. Implementations must
// never block indefinitely on out; out is buffered by the caller.
type Source interface {
	Run(ctx context.Context, out chan<- RawPayload) error
}

// ReconnectConfig mirrors the teacher's WSReconnectConfig shape.
type ReconnectConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	ConnectTimeout time.Duration
	PingInterval time.Duration
}

// DefaultReconnectConfig reproduces the teacher's 2s/4s/8s/16s backoff
// ladder.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		InitialDelay:   2 * time.Second,
		MaxDelay:       16 * time.Second,
		Multiplier:     2.0,
		ConnectTimeout: 10 * time.Second,
		PingInterval:   30 * time.Second,
	}
}

// SubscribeFunc writes whatever subscribe message a venue expects for key
// onto a freshly dialed connection.
type SubscribeFunc func(conn *websocket.Conn, key models.BookKey) error

// WSSource is a generic Source backed by gorilla/websocket, parameterized
// by URL and subscribe behavior so every venue connector shares one
// reconnect/read loop.
type WSSource struct {
	Venue     models.Venue
	Key       models.BookKey
	URL       string
	Subscribe SubscribeFunc
	Reconnect ReconnectConfig
	Limiter   *ratelimit.RateLimiter

	log *utils.Logger
}

// NewWSSource builds a WSSource for one (key, URL) pair with the spec's
// default reconnect ladder and a conservative dial rate limit.
func NewWSSource(key models.BookKey, url string, subscribe SubscribeFunc) *WSSource {
	return &WSSource{
		Venue:     key.Venue,
		Key:       key,
		URL:       url,
		Subscribe: subscribe,
		Reconnect: DefaultReconnectConfig(),
		Limiter:   ratelimit.NewRateLimiter(1, 2),
		log:       utils.L().WithComponent("feedsource").WithExchange(string(key.Venue)),
	}
}

// Run dials, reads, and on any disconnect reconnects with exponential
// backoff, until ctx is cancelled. The wait before each reconnect starts
// at Reconnect.InitialDelay and grows by Reconnect.Multiplier up to
// Reconnect.MaxDelay; it is not reset after a successful connection.
func (s *WSSource) Run(ctx context.Context, out chan<- RawPayload) error {
	delay := s.Reconnect.InitialDelay
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.Limiter.Wait(ctx); err != nil {
			return err
		}

		err := s.connectAndRead(ctx, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			s.log.Warn("feed connection lost, reconnecting", utils.Err(err))
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = time.Duration(float64(delay) * s.Reconnect.Multiplier)
		if delay > s.Reconnect.MaxDelay {
			delay = s.Reconnect.MaxDelay
		}
	}
}

func (s *WSSource) connectAndRead(ctx context.Context, out chan<- RawPayload) error {
	dialCtx, cancel := context.WithTimeout(ctx, s.Reconnect.ConnectTimeout)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: s.Reconnect.ConnectTimeout}
	conn, _, err := dialer.DialContext(dialCtx, s.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.URL, err)
	}
	defer conn.Close()

	if s.Subscribe != nil {
		if err := s.Subscribe(conn, s.Key); err != nil {
			return fmt.Errorf("subscribe %s: %w", s.Key, err)
		}
	}

	s.log.Info("feed connected", utils.String("url", s.URL))

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		conn.Close()
		close(done)
	}()

	for {
		_, body, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		select {
		case out <- RawPayload{Key: s.Key, Body: body, ReceivedAt: time.Now().UTC()}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// DialOnce checks that url accepts a WebSocket connection, retrying the
// dial through pkg/retry with NetworkConfig (up to 4 attempts), and closes
// the connection on success. It is independent of the long-lived Run loop
// above.
func DialOnce(ctx context.Context, url string) error {
	return retry.Do(ctx, func() error {
		dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
		conn, _, err := dialer.DialContext(ctx, url, nil)
		if err != nil {
			return err
		}
		return conn.Close()
	}, retry.NetworkConfig())
}
