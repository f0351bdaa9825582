package engine

import (
	"context"

	"go.uber.org/fx"

	"trade_engine/internal/eligibility"
	"trade_engine/internal/exchange"
	"trade_engine/internal/history"
	"trade_engine/internal/journal"
	"trade_engine/internal/lifecycle"
	"trade_engine/internal/modules/config"
	healthsvc "trade_engine/internal/modules/health/service"
	"trade_engine/internal/notify"
	"trade_engine/internal/performance"
	"trade_engine/internal/portfolio"
	"trade_engine/internal/regime"
	"trade_engine/internal/risk"
	"trade_engine/internal/strategy"
	"trade_engine/pkg/db"
	"trade_engine/pkg/logger"
)

func Module() fx.Option {
	return fx.Module("engine",
		fx.Provide(
			func(cfg *config.Config) *history.Cache {
				return history.NewCache(cfg.HistoryCapacity)
			},
			func(cfg *config.Config) *regime.Detector {
				return regime.NewDetector(regime.Config{
					MinWindow:     cfg.RegimeMinWindow,
					TrendSlopeMin: cfg.TrendSlopeMin,
					RangeVolMax:   cfg.RangeVolMax,
				})
			},
			func(cfg *config.Config) *eligibility.Filter {
				return eligibility.NewFilter(eligibility.Config{
					MinPrice:     cfg.MinPrice,
					MinVolume24h: cfg.MinVolume24h,
					MaxSpreadPct: cfg.MaxSpreadPct,
					Denylist:     cfg.Denylist,
				})
			},
			func(cfg *config.Config) *risk.Manager {
				return risk.NewManager(risk.Config{
					RiskPct:          cfg.RiskPct,
					MaxOpenPositions: cfg.MaxOpenPositions,
					DailyLossPct:     cfg.DailyLossPct,
					CapitalFloorUSD:  cfg.CapitalFloorUSD,
					ExposurePct:      cfg.ExposurePct,
				})
			},
			func(cfg *config.Config) *portfolio.Portfolio {
				return portfolio.New(cfg.StartCash)
			},
			func(cfg *config.Config, adapter exchange.Adapter, pf *portfolio.Portfolio) *lifecycle.Machine {
				return lifecycle.NewMachine(adapter, pf, lifecycle.Config{
					FeePct:       cfg.FeePct,
					EntryTimeout: cfg.EntryTimeout,
					ExitTimeout:  cfg.ExitTimeout,
					ROI:          lifecycle.NewROITable(cfg.ROI),
				})
			},
			performance.NewTracker,
			func(txm db.TxManager) *journal.Journal { return journal.New(txm) },
			notify.New,
			func(
				cfg *config.Config,
				cache *history.Cache,
				detector *regime.Detector,
				filter *eligibility.Filter,
				router *strategy.Router,
				riskMgr *risk.Manager,
				pf *portfolio.Portfolio,
				machine *lifecycle.Machine,
				adapter exchange.Adapter,
				md exchange.MarketData,
				tracker *performance.Tracker,
				jrnl *journal.Journal,
				notifier notify.Notifier,
				health *healthsvc.State,
			) *Engine {
				return New(Deps{
					Cfg:      cfg,
					Cache:    cache,
					Detector: detector,
					Filter:   filter,
					Router:   router,
					RiskMgr:  riskMgr,
					Pf:       pf,
					Machine:  machine,
					Adapter:  adapter,
					MD:       md,
					Tracker:  tracker,
					Journal:  jrnl,
					Notifier: notifier,
					Health:   health,
				})
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, e *Engine, jrnl *journal.Journal, ctx context.Context) {
			var cancel context.CancelFunc
			lc.Append(fx.Hook{
				OnStart: func(startCtx context.Context) error {
					if err := jrnl.Migrate(startCtx); err != nil {
						return err
					}
					var runCtx context.Context
					runCtx, cancel = context.WithCancel(ctx)
					go func() {
						if err := e.Run(runCtx); err != nil && runCtx.Err() == nil {
							logger.Fatal("engine stopped: %v", err)
						}
					}()
					return nil
				},
				OnStop: func(context.Context) error {
					if cancel != nil {
						cancel()
					}
					return nil
				},
			})
		}),
	)
}
