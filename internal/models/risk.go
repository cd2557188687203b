package models

import "time"

// Position is one open (or previously open) risk-gated position. Terminated
// positions are retained with Active=false for metrics.
type Position struct {
	StrategyID    string
	Venue         Venue
	Instrument    string
	Side          string // "long" or "short"
	EntryPrice    float64
	CurrentPrice  float64
	Qty           float64
	Unrealized    float64
	Realized      float64
	TEntry        time.Time
	Active        bool
}

// RiskMetrics summarizes the risk manager's book as of the last read.
type RiskMetrics struct {
	TotalCapital      float64
	AvailableCapital  float64
	TotalExposure     float64
	DailyPnl          float64
	MaxDrawdown       float64
	TotalTrades       int
	WinningTrades     int
	WinRate           float64
	AvgProfitPerTrade float64
}
