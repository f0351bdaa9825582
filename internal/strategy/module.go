package strategy

import (
	"go.uber.org/fx"

	"trade_engine/internal/models"
	"trade_engine/internal/modules/config"
)

func Module() fx.Option {
	return fx.Module("strategy",
		fx.Provide(
			func(cfg *config.Config) *Router {
				r := NewRouter()

				breakout := NewBreakout(BreakoutConfig{
					Stds:     cfg.BreakoutStds,
					VolFloor: cfg.BreakoutVolFloor,
					StopPct:  cfg.StopPct,
					Window:   cfg.HistoryWindow,
				})
				meanrev := NewMeanRev(MeanRevConfig{
					Stds:    cfg.MeanRevStds,
					StopPct: cfg.StopPct,
					Window:  cfg.HistoryWindow,
				})
				rangefade := NewRangeFade(RangeFadeConfig{
					Stds:    cfg.RangeFadeStds,
					StopPct: cfg.StopPct,
					Window:  cfg.HistoryWindow,
				})

				// тренд — пробой; боковик — сначала fade от границ, потом meanrev;
				// нейтральный — только meanrev
				r.Register(models.RegimeTrending, breakout)
				r.Register(models.RegimeRanging, rangefade)
				r.Register(models.RegimeRanging, meanrev)
				r.Register(models.RegimeNeutral, meanrev)

				return r
			},
		),
	)
}
