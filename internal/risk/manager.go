// Package risk implements the Risk Manager (C8): trade-signal admission
// under capital/exposure/confidence constraints, position tracking, and
// aggregate P&L. Structurally grounded on the teacher's margin/limits
// risk manager, generalized from live-exchange margin checks to a
// capital-fraction sizing model appropriate for an analytics-only engine.
package risk

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"arbitrage-analytics/internal/metricsserver"
	"arbitrage-analytics/internal/models"
	"arbitrage-analytics/pkg/utils"
)

// Config holds the manager's admission and sizing parameters.
type Config struct {
	MaxRiskPerTrade    float64
	MaxTotalExposure   float64
	MaxSinglePosition  float64
	StopLossPct        float64
	TakeProfitPct      float64
	MaxDailyLoss       float64
	InitialCapital     float64
	MinTradeSize       float64
	MaxLeverage        float64
	MinProfitThreshold float64
	MinConfidence      float64
}

// DefaultConfig returns the spec-mandated defaults.
func DefaultConfig() Config {
	return Config{
		MaxRiskPerTrade:    0.01,
		MaxTotalExposure:   0.20,
		MaxSinglePosition:  0.05,
		StopLossPct:        0.02,
		TakeProfitPct:      0.05,
		MaxDailyLoss:       0.05,
		InitialCapital:     10000,
		MinTradeSize:       0.001,
		MaxLeverage:        3,
		MinProfitThreshold: 0.0005,
		MinConfidence:      0.7,
	}
}

// Signal is one candidate trade presented to the risk manager by an
// analyzer (C5/C6/C7).
type Signal struct {
	StrategyID     string
	Venue          models.Venue
	Instrument     string
	Side           string
	Price          float64
	ExpectedProfit float64
	Confidence     float64
}

// Manager is C8. It never calls into the book store while holding its own
// lock.
type Manager struct {
	cfg Config
	log *utils.Logger

	mu              sync.Mutex
	positions       map[string]*models.Position
	dailyPnl        float64
	totalTrades     int
	winningTrades   int
	emergencyStopped bool
}

// New builds a Manager with the given config.
func New(cfg Config) *Manager {
	return &Manager{
		cfg:       cfg,
		log:       utils.L().WithComponent("risk"),
		positions: make(map[string]*models.Position),
	}
}

// totalExposureLocked sums |qty*current_price| over active positions.
// Callers must hold mu.
func (m *Manager) totalExposureLocked() float64 {
	var exposure float64
	for _, p := range m.positions {
		if !p.Active {
			continue
		}
		v := p.Qty * p.CurrentPrice
		if v < 0 {
			v = -v
		}
		exposure += v
	}
	return exposure
}

func (m *Manager) unrealizedLocked() float64 {
	var sum float64
	for _, p := range m.positions {
		if p.Active {
			sum += p.Unrealized
		}
	}
	return sum
}

// EvaluateOpportunity decides whether to admit sig and, if so, the
// position size to take. It never panics; rejections return (false, 0,
// reason).
func (m *Manager) EvaluateOpportunity(sig Signal) (approved bool, size float64, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	reject := func(reason string) (bool, float64, string) {
		metricsserver.RiskRejectionsTotal.WithLabelValues(reason).Inc()
		return false, 0, reason
	}

	if m.emergencyStopped {
		return reject("emergency stop engaged")
	}
	if sig.ExpectedProfit < m.cfg.MinProfitThreshold {
		return reject("expected profit below minimum threshold")
	}
	if sig.Confidence < m.cfg.MinConfidence {
		return reject("confidence below minimum threshold")
	}
	if m.dailyPnl < -m.cfg.MaxDailyLoss*m.cfg.InitialCapital {
		return reject("daily loss limit reached")
	}
	if sig.Price <= 0 {
		return reject("invalid price")
	}

	riskAmount := m.cfg.InitialCapital * m.cfg.MaxRiskPerTrade
	stopPrice := sig.Price * (1 - m.cfg.StopLossPct)
	priceDiff := sig.Price - stopPrice
	if priceDiff < 0 {
		priceDiff = -priceDiff
	}
	if priceDiff == 0 {
		return reject("zero stop distance")
	}

	size = riskAmount / priceDiff

	maxBySingle := m.cfg.MaxSinglePosition * m.cfg.InitialCapital / sig.Price
	if size > maxBySingle {
		size = maxBySingle
	}
	if size < m.cfg.MinTradeSize {
		size = m.cfg.MinTradeSize
	}

	exposure := m.totalExposureLocked()
	maxExposure := m.cfg.MaxTotalExposure * m.cfg.InitialCapital
	if exposure+size*sig.Price > maxExposure {
		headroom := maxExposure - exposure
		if headroom <= 0 {
			return reject("total exposure limit reached")
		}
		size = headroom / sig.Price
		if size < m.cfg.MinTradeSize {
			return reject("remaining exposure headroom below minimum trade size")
		}
	}

	availableCapital := m.cfg.InitialCapital + m.unrealizedLocked() - exposure
	if size*sig.Price > availableCapital {
		return reject("insufficient available capital")
	}
	if size*sig.Price > m.cfg.MaxSinglePosition*m.cfg.InitialCapital {
		return reject("exceeds max single position")
	}

	return true, size, ""
}

// OpenPosition records a new position at the fill price. If sig carries
// no StrategyID, one is generated so the caller can still track the
// resulting position.
func (m *Manager) OpenPosition(sig Signal, qty float64, now time.Time) string {
	if sig.StrategyID == "" {
		sig.StrategyID = uuid.New().String()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[sig.StrategyID] = &models.Position{
		StrategyID:   sig.StrategyID,
		Venue:        sig.Venue,
		Instrument:   sig.Instrument,
		Side:         sig.Side,
		EntryPrice:   sig.Price,
		CurrentPrice: sig.Price,
		Qty:          qty,
		TEntry:       now,
		Active:       true,
	}
	return sig.StrategyID
}

// UpdatePositions refreshes CurrentPrice/Unrealized for every active
// position whose instrument appears in priceByInstrument.
func (m *Manager) UpdatePositions(priceByInstrument map[string]float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.positions {
		if !p.Active {
			continue
		}
		price, ok := priceByInstrument[p.Instrument]
		if !ok {
			continue
		}
		p.CurrentPrice = price
		p.Unrealized = (price - p.EntryPrice) * p.Qty
	}
}

// ClosePosition marks a position inactive, records its realized P&L, and
// updates the daily aggregate.
func (m *Manager) ClosePosition(strategyID string, exitPrice float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[strategyID]
	if !ok || !p.Active {
		return
	}
	p.Realized = (exitPrice - p.EntryPrice) * p.Qty
	p.CurrentPrice = exitPrice
	p.Unrealized = 0
	p.Active = false

	m.dailyPnl += p.Realized
	m.totalTrades++
	if p.Realized > 0 {
		m.winningTrades++
	}
}

// TriggerEmergencyStop engages the sticky emergency stop; no further
// opportunities are admitted until ResetEmergencyStop is called.
func (m *Manager) TriggerEmergencyStop() {
	m.mu.Lock()
	m.emergencyStopped = true
	m.mu.Unlock()
	m.log.Warn("emergency stop engaged")
}

// ResetEmergencyStop clears the sticky emergency stop.
func (m *Manager) ResetEmergencyStop() {
	m.mu.Lock()
	m.emergencyStopped = false
	m.mu.Unlock()
}

// Metrics recomputes the risk manager's current RiskMetrics.
func (m *Manager) Metrics() models.RiskMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	exposure := m.totalExposureLocked()
	unrealized := m.unrealizedLocked()
	winRate := 0.0
	avgProfit := 0.0
	if m.totalTrades > 0 {
		winRate = float64(m.winningTrades) / float64(m.totalTrades)
		avgProfit = m.dailyPnl / float64(m.totalTrades)
	}

	return models.RiskMetrics{
		TotalCapital:      m.cfg.InitialCapital,
		AvailableCapital:  m.cfg.InitialCapital + unrealized - exposure,
		TotalExposure:     exposure,
		DailyPnl:          m.dailyPnl,
		TotalTrades:       m.totalTrades,
		WinningTrades:     m.winningTrades,
		WinRate:           winRate,
		AvgProfitPerTrade: avgProfit,
	}
}
