package engine

import (
	"context"
	"fmt"
	"time"

	"trade_engine/pkg/logger"
)

// refreshWatchlist забирает топ по объёму и отбрасывает запрещённые пары.
func (e *Engine) refreshWatchlist(ctx context.Context) error {
	top, err := e.md.TopByVolume(ctx, e.cfg.WatchTopN)
	if err != nil {
		return fmt.Errorf("watchlist: %w", err)
	}

	denied := make(map[string]struct{}, len(e.cfg.Denylist))
	for _, p := range e.cfg.Denylist {
		denied[p] = struct{}{}
	}

	out := make([]string, 0, len(top))
	for _, p := range top {
		if _, bad := denied[p]; bad {
			continue
		}
		out = append(out, p)
	}

	e.mu.Lock()
	changed := e.watchlist != nil && !equalPairs(e.watchlist, out)
	e.watchlist = out
	e.mu.Unlock()

	if changed {
		// intake пересоберёт подписку под новый состав пар
		select {
		case e.resub <- struct{}{}:
		default:
		}
	}

	logger.Info("[WATCH] вселенная обновлена: %d пар (отброшено %d)", len(out), len(top)-len(out))
	return nil
}

func equalPairs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (e *Engine) watchlistLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.WatchRefresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.refreshWatchlist(ctx); err != nil {
				logger.Error("[WATCH] обновление не удалось: %v", err)
			}
		}
	}
}
