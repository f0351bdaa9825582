package postgres

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"trade_engine/internal/modules/config"
	"trade_engine/pkg/db"
)

// Module поднимает пул к Postgres и отдаёт менеджер транзакций.
func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(
			func(ctx context.Context, cfg *config.Config) (*db.PgTxManager, error) {
				poolMaster, err := db.NewPool(ctx, db.PoolConfig{
					DSN: cfg.DB,
				})
				if err != nil {
					return nil, fmt.Errorf("failed to create poolMaster: %w", err)
				}

				err = poolMaster.Ping(ctx)
				if err != nil {
					return nil, err
				}

				return db.NewPgTxManager(poolMaster), nil
			},
			func(m *db.PgTxManager) db.TxManager { return m },
		),
	)
}
