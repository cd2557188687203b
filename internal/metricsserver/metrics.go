// Package metricsserver exposes the engine's Prometheus metrics and a
// liveness endpoint over HTTP, grounded on the teacher's bot/metrics.go
// (metric shapes) and api/routes.go (gorilla/mux + promhttp wiring).
package metricsserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"arbitrage-analytics/pkg/utils"
)

const namespace = "arbitrage_analytics"

var (
	// BookUpdatesTotal counts applied book updates per venue/asset/market.
	BookUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bookstore",
			Name:      "updates_total",
			Help:      "Total number of book updates applied.",
		},
		[]string{"venue", "asset", "market", "kind"},
	)

	// FeedParseErrorsTotal counts non-fatal parse failures per venue.
	FeedParseErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feednormalizer",
			Name:      "parse_errors_total",
			Help:      "Total number of payloads dropped due to parse failures.",
		},
		[]string{"venue"},
	)

	// OpportunitiesEmittedTotal counts opportunities emitted by each analyzer.
	OpportunitiesEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "opportunities_emitted_total",
			Help:      "Total number of opportunities emitted, by type.",
		},
		[]string{"type"},
	)

	// RiskRejectionsTotal counts signals rejected by the risk manager, by reason.
	RiskRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "rejections_total",
			Help:      "Total number of trade signals rejected, by reason.",
		},
		[]string{"reason"},
	)

	// AnalyticCycleLatency tracks the wall-clock duration of one analytic
	// cycle tick.
	AnalyticCycleLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "analytic_cycle_latency_ms",
			Help:      "Time to run one analytic-cycle tick in milliseconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50},
		},
	)

	// DailyPnl reports the risk manager's running daily P&L.
	DailyPnl = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "daily_pnl_usd",
			Help:      "Current daily realized P&L in USD.",
		},
	)
)

// Server is a small gorilla/mux HTTP server exposing /metrics and
// /healthz.
type Server struct {
	addr string
	log  *utils.Logger
	srv  *http.Server
}

// New builds a Server bound to addr (e.g. ":9090").
func New(addr string) *Server {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", healthzHandler).Methods(http.MethodGet)

	return &Server{
		addr: addr,
		log:  utils.L().WithComponent("metricsserver"),
		srv:  &http.Server{Addr: addr, Handler: router},
	}
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// Run starts the HTTP server and blocks until ctx is cancelled, then
// shuts the server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("metrics server listening", utils.String("addr", s.addr))
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
