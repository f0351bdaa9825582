package engine

import (
	"context"
	"math"
	"time"

	"trade_engine/pkg/logger"
)

// reconcileLoop сверяет внутренний портфель с балансом адаптера.
// Расхождение по количеству выводит пару из торговли до ручного
// разбирательства; кэш сверяется только при пустом портфеле, так как
// зеркало шорта на бумажном счёте двигает кэш иначе, чем леджер.
func (e *Engine) reconcileLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.ReconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.reconcile(ctx)
		}
	}
}

func (e *Engine) reconcile(ctx context.Context) {
	bal, err := e.adapter.Balance(ctx)
	if err != nil {
		logger.Error("[RECON] баланс недоступен: %v", err)
		return
	}

	tol := e.cfg.ReconcileTolerancePct / 100
	positions := e.pf.Positions()

	for _, pos := range positions {
		if e.machine.Busy(pos.Pair) && !e.machine.SettledAt(pos.Pair) {
			// ордер в полёте, количество ещё догоняет
			continue
		}
		got := math.Abs(bal.Positions[pos.Pair])
		want := pos.Qty
		if want == 0 {
			continue
		}
		if math.Abs(got-want)/want > tol {
			e.haltPair(pos.Pair, "qty mismatch")
			e.notifier.Sendf(ctx, "🛑 расхождение по %s: у нас %.8f, на счёте %.8f — пара остановлена",
				pos.Pair, want, got)
		}
	}

	if len(positions) == 0 && !e.machine.AnyPending() {
		want := e.pf.View().Cash
		if want > 0 && math.Abs(bal.Cash-want)/want > tol {
			logger.Warn("[RECON] кэш разошёлся: леджер %.2f, счёт %.2f", want, bal.Cash)
			e.notifier.Sendf(ctx, "⚠️ кэш разошёлся: леджер %.2f$, счёт %.2f$", want, bal.Cash)
		}
	}
}
