package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"arbitrage-analytics/internal/config"
	"arbitrage-analytics/internal/crossasset"
	"arbitrage-analytics/internal/engine"
	"arbitrage-analytics/internal/metricsserver"
	"arbitrage-analytics/internal/pricing"
	"arbitrage-analytics/internal/risk"
	"arbitrage-analytics/internal/volatility"
	"arbitrage-analytics/pkg/utils"
)

func main() {
	cfg := config.Load()

	log := utils.InitGlobalLogger(utils.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}).WithComponent("main")

	riskMgr := risk.New(risk.Config{
		MaxRiskPerTrade:    cfg.Risk.MaxRiskPerTrade,
		MaxTotalExposure:   cfg.Risk.MaxTotalExposure,
		MaxSinglePosition:  cfg.Risk.MaxSinglePosition,
		StopLossPct:        cfg.Risk.StopLossPct,
		TakeProfitPct:      cfg.Risk.TakeProfitPct,
		MaxDailyLoss:       cfg.Risk.MaxDailyLoss,
		InitialCapital:     cfg.Risk.InitialCapital,
		MinTradeSize:       cfg.Risk.MinTradeSize,
		MaxLeverage:        cfg.Risk.MaxLeverage,
		MinProfitThreshold: cfg.Risk.MinProfitThreshold,
		MinConfidence:      cfg.Risk.MinConfidence,
	})

	engineCfg := engine.DefaultConfig()
	engineCfg.Pricing = pricing.Config{
		CalculationInterval: time.Duration(cfg.Pricing.CalculationIntervalMs) * time.Millisecond,
		RiskFreeRate:        cfg.Pricing.RiskFreeRate,
		DefaultFundingRate:  cfg.Pricing.DefaultFundingRate,
		MinMispricingPct:    cfg.Pricing.MinMispricingPct,
		MaxMispricingPct:    cfg.Pricing.MaxMispricingPct,
	}
	engineCfg.Volatility = volatility.Config{
		HistoryWindow:   cfg.Pricing.HistoryWindowVol,
		MinVolSpreadBps: cfg.Pricing.MinVolSpreadBps,
		MaxVolSpreadBps: cfg.Pricing.MaxVolSpreadBps,
	}
	engineCfg.CrossAsset = crossasset.Config{
		HistoryWindow:     cfg.Pricing.HistoryWindowRatio,
		MinRatioSpreadPct: cfg.Pricing.MinRatioSpreadPct,
		MaxRatioSpreadPct: cfg.Pricing.MaxRatioSpreadPct,
		EWMAAlpha:         crossasset.DefaultConfig().EWMAAlpha,
	}
	engineCfg.FreshnessWindow = time.Duration(cfg.Pricing.FreshnessWindowS) * time.Second

	orchestrator := engine.New(engineCfg, riskMgr)
	metrics := metricsserver.New(cfg.Metrics.Addr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		orchestrator.Run(ctx)
		close(done)
	}()

	go func() {
		if err := metrics.Run(ctx); err != nil {
			log.Error("metrics server exited", utils.Err(err))
		}
	}()

	log.Info("arbitrage analytics engine started", utils.String("metrics_addr", cfg.Metrics.Addr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutdown signal received")
	cancel()
	<-done

	log.Info("engine stopped")
}
