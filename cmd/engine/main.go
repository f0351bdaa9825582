package main

import (
	"context"
	"log"

	"go.uber.org/fx"

	"trade_engine/internal/engine"
	"trade_engine/internal/exchange"
	"trade_engine/internal/modules/config"
	"trade_engine/internal/modules/health"
	"trade_engine/internal/modules/postgres"
	"trade_engine/internal/strategy"
	"trade_engine/pkg/logger"
	"trade_engine/pkg/tracing"
)

func main() {
	if err := logger.Init(); err != nil {
		log.Fatal(err)
	}

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		config.Module(),
		postgres.Module(),
		exchange.Module(),
		strategy.Module(),
		health.Module(),
		engine.Module(),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config) {
			if cfg.Jaeger.Host == "" {
				return
			}
			_, closeTracer, err := tracing.InitTracer(tracing.Config{
				Host: cfg.Jaeger.Host,
				Port: cfg.Jaeger.Port,
			})
			if err != nil {
				logger.Error("jaeger init: %v", err)
				return
			}
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					closeTracer()
					return nil
				},
			})
		}),
	)
	app.Run()
}
