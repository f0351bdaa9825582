package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"

	"trade_engine/internal/models"
	"trade_engine/pkg/db"
)

// Journal пишет закрытые сделки и снапшоты режима в Postgres.
// Только запись после факта: исполнение от журнала не зависит.
type Journal struct {
	db db.TxManager
}

func New(txm db.TxManager) *Journal {
	return &Journal{db: txm}
}

// Migrate создаёт таблицы журнала, если их ещё нет.
func (j *Journal) Migrate(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("journal.Migrate: %w", err)
		}
	}()
	return j.db.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			CREATE TABLE IF NOT EXISTS trade_log (
				id            BIGINT PRIMARY KEY,
				pair          TEXT NOT NULL,
				strategy      TEXT NOT NULL,
				side          TEXT NOT NULL,
				entry_price   DOUBLE PRECISION NOT NULL,
				exit_price    DOUBLE PRECISION NOT NULL,
				qty           DOUBLE PRECISION NOT NULL,
				pnl           DOUBLE PRECISION NOT NULL,
				pnl_pct       DOUBLE PRECISION NOT NULL,
				risked_usd    DOUBLE PRECISION NOT NULL,
				exit_reason   TEXT NOT NULL,
				entry_regime  TEXT NOT NULL,
				exit_regime   TEXT NOT NULL,
				regime_changed BOOLEAN NOT NULL,
				opened_at     TIMESTAMPTZ NOT NULL,
				closed_at     TIMESTAMPTZ NOT NULL,
				balance_after DOUBLE PRECISION NOT NULL,
				details       JSONB
			)`)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			CREATE TABLE IF NOT EXISTS regime_snapshots (
				id         BIGSERIAL PRIMARY KEY,
				pair       TEXT NOT NULL,
				regime     TEXT NOT NULL,
				direction  TEXT NOT NULL,
				confidence DOUBLE PRECISION NOT NULL,
				slope      DOUBLE PRECISION NOT NULL,
				stddev     DOUBLE PRECISION NOT NULL,
				taken_at   TIMESTAMPTZ NOT NULL
			)`)
		return err
	})
}

type tradeDetails struct {
	EntryOrderID string  `json:"entry_order_id"`
	ExitOrderID  string  `json:"exit_order_id"`
	DurationMin  float64 `json:"duration_min"`
}

// InsertClosed пишет одну закрытую сделку вместе с балансом после закрытия.
func (j *Journal) InsertClosed(ctx context.Context, t models.Trade, balanceAfter float64) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("journal.InsertClosed: %w", err)
		}
	}()

	details, err := sonic.Marshal(tradeDetails{
		EntryOrderID: t.EntryOrderID,
		ExitOrderID:  t.ExitOrderID,
		DurationMin:  t.DurationMinutes(),
	})
	if err != nil {
		return err
	}

	return j.db.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO trade_log (
				id, pair, strategy, side, entry_price, exit_price, qty,
				pnl, pnl_pct, risked_usd, exit_reason,
				entry_regime, exit_regime, regime_changed,
				opened_at, closed_at, balance_after, details
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
			ON CONFLICT (id) DO NOTHING`,
			t.ID, t.Pair, string(t.Strategy), string(t.Side),
			t.EntryPrice, t.ExitPrice, t.Qty,
			t.Pnl, t.PnlPct(), t.RiskedUSD, string(t.Reason),
			string(t.EntryRegime), string(t.ExitRegime), t.EntryRegime != t.ExitRegime,
			t.OpenedAt, t.ClosedAt, balanceAfter, details,
		)
		return err
	})
}

// SnapshotRegime сохраняет текущую оценку режима по паре.
func (j *Journal) SnapshotRegime(ctx context.Context, pair string, reg models.Regime, direction models.Side, confidence, slope, stddev float64) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("journal.SnapshotRegime: %w", err)
		}
	}()
	return j.db.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO regime_snapshots (pair, regime, direction, confidence, slope, stddev, taken_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			pair, string(reg), string(direction), confidence, slope, stddev, time.Now().UTC(),
		)
		return err
	})
}
