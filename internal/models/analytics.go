package models

import "time"

// MarketDataPoint is one (spot, futures) observation used by the volatility
// analyzer to track realized/implied vol and the basis between the two.
type MarketDataPoint struct {
	Spot     float64
	Futures  float64
	BasisBps float64
	T        time.Time
}

// NewMarketDataPoint computes BasisBps from spot/futures and stamps T.
func NewMarketDataPoint(spot, futures float64, t time.Time) MarketDataPoint {
	basis := 0.0
	if spot != 0 {
		basis = (futures - spot) / spot * 10000
	}
	return MarketDataPoint{Spot: spot, Futures: futures, BasisBps: basis, T: t}
}

// RatioPoint is one BTC/ETH price ratio observation on a given venue.
type RatioPoint struct {
	BTC   float64
	ETH   float64
	Ratio float64
	T     time.Time
}

// NewRatioPoint computes Ratio = btc/eth and stamps T.
func NewRatioPoint(btc, eth float64, t time.Time) RatioPoint {
	ratio := 0.0
	if eth != 0 {
		ratio = btc / eth
	}
	return RatioPoint{BTC: btc, ETH: eth, Ratio: ratio, T: t}
}

// InstrumentType distinguishes the two synthetic pricing variants C4 computes.
type InstrumentType string

const (
	InstrumentFuturesVsSpot     InstrumentType = "futures_vs_spot"
	InstrumentSpotVsPerpetual   InstrumentType = "spot_vs_perpetual"
)

// SyntheticPrice is one fair-value computation from the synthetic pricing
// engine (C4): a real leg, a synthetic replicator, and the mispricing
// between them.
type SyntheticPrice struct {
	Real           float64
	Synthetic      float64
	MispricingPct  float64
	FundingRate    float64
	Venue          Venue
	Asset          Asset
	InstrumentType InstrumentType
	T              time.Time
	Valid          bool
}

// OpportunityType tags which analyzer produced an Opportunity.
type OpportunityType string

const (
	OppBasisDeviation       OpportunityType = "basis_deviation"
	OppCrossExchangeRatio   OpportunityType = "cross_exchange_ratio"
	OppIntraVenueReversion  OpportunityType = "intra_venue_reversion"
	OppCalendarSpread       OpportunityType = "calendar_spread"
	OppSyntheticReplication OpportunityType = "synthetic_replication"
	OppButterfly            OpportunityType = "butterfly"
)

// Opportunity is the common envelope every analyzer (C5, C6, C7) emits.
type Opportunity struct {
	Type              OpportunityType
	PrimaryVenue      Venue
	SecondaryVenue    Venue // zero value ("") when not applicable
	Asset             Asset
	Metric            float64
	MetricThreshold   float64
	ExpectedProfitUSD float64
	Confidence        float64
	Executable        bool
	StrategyText      string
	T                 time.Time
}

// RealMarketData is the latest observed (spot, futures) pair for one
// (venue, asset), used by the multi-leg strategy engine (C7).
type RealMarketData struct {
	Venue               Venue
	Asset               Asset
	Spot                float64
	Futures             float64
	BasisBps            float64
	ImpliedVolFromBasis float64
	T                   time.Time
}
