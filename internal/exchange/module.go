package exchange

import (
	"go.uber.org/fx"

	"trade_engine/internal/modules/config"
)

func Module() fx.Option {
	return fx.Module("exchange",
		fx.Provide(
			func(cfg *config.Config) *Paper {
				return NewPaper(cfg.StartCash, cfg.FeePct)
			},
			func(p *Paper) Adapter { return p },
			NewFeed,
			func(f *Feed) MarketData { return f },
		),
	)
}
