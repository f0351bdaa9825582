package engine

import (
	"context"
	"fmt"
	"sync"

	"trade_engine/pkg/logger"
)

// Warmup прогревает кэш истории по REST, чтобы детектор режима не ждал
// полного окна после старта.
func (e *Engine) Warmup(ctx context.Context) error {
	pairs := e.pairs()
	if len(pairs) == 0 {
		return nil
	}

	need := e.cfg.HistoryWindow + 5
	logger.Info("🔥 REST warmup start: pairs=%d candles=%d", len(pairs), need)

	// ограничитель параллелизма, чтобы не словить rate limit
	sem := make(chan struct{}, 8)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		loaded   int
	)
	for _, pair := range pairs {
		pair := pair
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			candles, err := e.md.Candles(ctx, pair, need)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("warmup %s: %w", pair, err)
				}
				mu.Unlock()
				return
			}
			for _, c := range candles {
				e.cache.Record(pair, c)
			}
			mu.Lock()
			loaded++
			mu.Unlock()
		}()
	}
	wg.Wait()

	logger.Info("🔥 REST warmup done: %d/%d pairs", loaded, len(pairs))
	return firstErr
}
