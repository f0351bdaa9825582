package engine

import (
	"context"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"

	"trade_engine/internal/eligibility"
	"trade_engine/internal/exchange"
	"trade_engine/internal/history"
	"trade_engine/internal/journal"
	"trade_engine/internal/lifecycle"
	"trade_engine/internal/models"
	"trade_engine/internal/modules/config"
	healthsvc "trade_engine/internal/modules/health/service"
	"trade_engine/internal/notify"
	"trade_engine/internal/performance"
	"trade_engine/internal/portfolio"
	"trade_engine/internal/regime"
	"trade_engine/internal/risk"
	"trade_engine/internal/strategy"
	"trade_engine/pkg/logger"
)

// Engine связывает весь конвейер: поток котировок → кэш истории →
// режим → стратегия → риск → машина ордеров. Портфель мутирует только
// машина, всё остальное читает.
type Engine struct {
	cfg *config.Config

	cache    *history.Cache
	detector *regime.Detector
	filter   *eligibility.Filter
	router   *strategy.Router
	riskMgr  *risk.Manager
	pf       *portfolio.Portfolio
	machine  *lifecycle.Machine

	adapter exchange.Adapter
	sink    exchange.PriceSink // бумажный счёт исполняет лимитки по живым ценам
	md      exchange.MarketData

	tracker  *performance.Tracker
	journal  *journal.Journal // наблюдатель: движок нил-безопасен к его отсутствию
	notifier notify.Notifier
	health   *healthsvc.State

	resub      chan struct{} // сигнал intake пересобрать подписку
	retryDelay time.Duration // пауза между повторами стартовых запросов

	mu         sync.RWMutex
	watchlist  []string
	lastSnap   map[string]models.MarketSnapshot
	lastRegime map[string]models.Regime
	halted     map[string]string // pair -> причина остановки
}

type Deps struct {
	Cfg      *config.Config
	Cache    *history.Cache
	Detector *regime.Detector
	Filter   *eligibility.Filter
	Router   *strategy.Router
	RiskMgr  *risk.Manager
	Pf       *portfolio.Portfolio
	Machine  *lifecycle.Machine
	Adapter  exchange.Adapter
	MD       exchange.MarketData
	Tracker  *performance.Tracker
	Journal  *journal.Journal
	Notifier notify.Notifier
	Health   *healthsvc.State
}

func New(d Deps) *Engine {
	e := &Engine{
		cfg:        d.Cfg,
		cache:      d.Cache,
		detector:   d.Detector,
		filter:     d.Filter,
		router:     d.Router,
		riskMgr:    d.RiskMgr,
		pf:         d.Pf,
		machine:    d.Machine,
		adapter:    d.Adapter,
		md:         d.MD,
		tracker:    d.Tracker,
		journal:    d.Journal,
		notifier:   d.Notifier,
		health:     d.Health,
		resub:      make(chan struct{}, 1),
		retryDelay: 2 * time.Second,
		lastSnap:   make(map[string]models.MarketSnapshot),
		lastRegime: make(map[string]models.Regime),
		halted:     make(map[string]string),
	}
	// бумажный адаптер исполняет лимитки только когда видит рынок
	e.sink, _ = d.Adapter.(exchange.PriceSink)
	e.machine.OnClose(e.onTradeClosed)
	return e
}

// Run — главный цикл. Блокируется до отмены контекста.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.bootstrapWatchlist(ctx); err != nil {
		return err
	}
	if err := e.Warmup(ctx); err != nil {
		// прогрев не критичен, часть пар просто подождёт окна
		logger.Warn("[ENGINE] warmup неполный: %v", err)
	}

	go e.intake(ctx)
	go e.watchlistLoop(ctx)
	go e.reconcileLoop(ctx)

	e.health.SetReady(true)
	e.notifier.Sendf(ctx, "🚀 движок запущен: pairs=%d tick=%s", len(e.pairs()), e.cfg.TickInterval)

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.health.SetReady(false)
			return ctx.Err()
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// bootstrapWatchlist повторяет стартовую выборку вселенной: фид на старте
// может быть недоступен, это транзиент, а не повод ронять процесс.
func (e *Engine) bootstrapWatchlist(ctx context.Context) error {
	for {
		err := e.refreshWatchlist(ctx)
		if err == nil {
			return nil
		}
		logger.Warn("[ENGINE] стартовый watchlist: %v, повтор через %s", err, e.retryDelay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.retryDelay):
		}
	}
}

// intake держит подписку на поток котировок и пересобирает её, когда
// ротация watchlist меняет состав пар.
func (e *Engine) intake(ctx context.Context) {
	for {
		subCtx, cancel := context.WithCancel(ctx)
		ch, err := e.md.Snapshots(subCtx, e.universe())
		if err != nil {
			cancel()
			e.health.SetWSConnected(false)
			logger.Error("[ENGINE] поток котировок не поднялся: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(e.retryDelay):
			}
			continue
		}
		e.health.SetWSConnected(true)

	consume:
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case <-e.resub:
				break consume // состав пар сменился — новая подписка
			case snap, ok := <-ch:
				if !ok {
					e.health.SetWSConnected(false)
					break consume
				}
				e.onSnapshot(snap)
			}
		}
		cancel()
	}
}

// onSnapshot — единая точка приёма котировки: кэш истории, последний
// снимок для тика и цена для исполнения лимиток на бумажном счёте.
func (e *Engine) onSnapshot(snap models.MarketSnapshot) {
	e.cache.Record(snap.Pair, snap)
	e.mu.Lock()
	e.lastSnap[snap.Pair] = snap
	e.mu.Unlock()
	if e.sink != nil {
		e.sink.MarkPrice(snap.Pair, snap.Price)
	}
}

type proposal struct {
	sig  models.Signal
	snap models.MarketSnapshot
}

// tick — один проход по вселенной. Пары оцениваются параллельно,
// решения по входу принимаются последовательно: риск смотрит на
// портфель после каждого одобрения.
func (e *Engine) tick(ctx context.Context) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "engine.tick")
	defer span.Finish()

	e.mu.RLock()
	snaps := make(map[string]models.MarketSnapshot, len(e.lastSnap))
	for p, s := range e.lastSnap {
		snaps[p] = s
	}
	e.mu.RUnlock()
	pairs := e.universe()

	var (
		wg    sync.WaitGroup
		pmu   sync.Mutex
		props []proposal
	)
	for _, pair := range pairs {
		snap, ok := snaps[pair]
		if !ok {
			continue
		}
		wg.Add(1)
		go func(pair string, snap models.MarketSnapshot) {
			defer wg.Done()
			if p, ok := e.evalPair(ctx, pair, snap); ok {
				pmu.Lock()
				props = append(props, p)
				pmu.Unlock()
			}
		}(pair, snap)
	}
	wg.Wait()

	// входы последовательно: каждое одобрение меняет картину для следующего
	for _, p := range props {
		dec := e.riskMgr.Evaluate(p.sig, e.pf.View(), e.machine.Pending())
		if !dec.Approved {
			logger.Info("[RISK] %s %s отклонено: %s", p.sig.Pair, p.sig.Side, dec.Reason)
			continue
		}
		if err := e.machine.OpenFromDecision(ctx, p.sig, dec); err != nil {
			logger.Error("[ENGINE] вход не размещён %s: %v", p.sig.Pair, err)
			continue
		}
		logger.Info("[ENTRY] %s %s qty=%.6f px=%.6f stop=%.6f (%s)",
			p.sig.Pair, p.sig.Side, dec.Qty, dec.EntryPrice, dec.StopPrice, p.sig.Strategy)
		e.notifier.Sendf(ctx, "📥 вход %s %s @ %.6f qty=%.6f [%s/%s]",
			p.sig.Pair, p.sig.Side, dec.EntryPrice, dec.Qty, p.sig.Strategy, p.sig.Regime)
	}

	v := e.pf.View()
	e.health.TouchTick(time.Now())
	e.health.SetOpenCount(v.OpenCount)
	e.health.SetHaltedPairs(e.haltedCount())
	span.SetTag("open", v.OpenCount)
	span.SetTag("equity", v.Equity)
}

// evalPair классифицирует режим и либо ведёт существующий слот,
// либо предлагает новый вход.
func (e *Engine) evalPair(ctx context.Context, pair string, snap models.MarketSnapshot) (proposal, bool) {
	hist, err := e.cache.History(pair, e.cfg.HistoryWindow)
	if err != nil || len(hist) == 0 {
		return proposal{}, false
	}
	res := e.detector.Classify(hist)
	e.noteRegime(ctx, pair, res)

	if e.machine.Busy(pair) {
		e.machine.Step(ctx, pair, snap, res.Regime)
		return proposal{}, false
	}

	if _, halted := e.isHalted(pair); halted {
		return proposal{}, false
	}
	if !e.filter.Eligible(snap) {
		return proposal{}, false
	}

	// последний элемент — живой снапшот: tail отдаёт свежий срез, мутировать можно
	hist[len(hist)-1] = snap

	sig, ok := e.router.Route(res.Regime, hist)
	if !ok {
		return proposal{}, false
	}
	sig.Pair = pair
	sig.Price = snap.Price
	return proposal{sig: sig, snap: snap}, true
}

// noteRegime пишет снапшот при смене режима пары.
func (e *Engine) noteRegime(ctx context.Context, pair string, res regime.Result) {
	e.mu.Lock()
	prev, seen := e.lastRegime[pair]
	e.lastRegime[pair] = res.Regime
	e.mu.Unlock()
	if e.journal == nil || (seen && prev == res.Regime) {
		return
	}
	go func() {
		if err := e.journal.SnapshotRegime(ctx, pair, res.Regime, res.Direction, res.Confidence, res.Slope, res.Stddev); err != nil {
			logger.Error("[JOURNAL] снапшот режима %s: %v", pair, err)
		}
	}()
}

// onTradeClosed — наблюдатели: трекер, журнал, уведомление.
// Сбой любого из них не трогает исполнение.
func (e *Engine) onTradeClosed(t models.Trade, equityAfter float64) {
	e.tracker.OnTradeClosed(t, equityAfter)

	emoji := "✅"
	if t.Pnl < 0 {
		emoji = "🔻"
	}
	logger.Info("[CLOSE] %s %s pnl=%.2f (%.2f%%) reason=%s equity=%.2f",
		t.Pair, t.Strategy, t.Pnl, t.PnlPct(), t.Reason, equityAfter)
	e.notifier.Sendf(context.Background(), "%s %s закрыт: pnl=%.2f$ (%.2f%%) %s, баланс %.2f$",
		emoji, t.Pair, t.Pnl, t.PnlPct(), t.Reason, equityAfter)

	if e.journal != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := e.journal.InsertClosed(ctx, t, equityAfter); err != nil {
				logger.Error("[JOURNAL] запись сделки: %v", err)
			}
		}()
	}
}

func (e *Engine) pairs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.watchlist...)
}

// universe — пары к обработке на тике: watchlist плюс все пары с активным
// слотом. Ротация вселенной не бросает открытую сделку без ведения —
// её стоп и ROI-выход проверяются до самого закрытия.
func (e *Engine) universe() []string {
	out := e.pairs()
	seen := make(map[string]struct{}, len(out))
	for _, p := range out {
		seen[p] = struct{}{}
	}
	for _, p := range e.machine.Pairs() {
		if _, ok := seen[p]; !ok {
			out = append(out, p)
		}
	}
	return out
}

func (e *Engine) isHalted(pair string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.halted[pair]
	return r, ok
}

func (e *Engine) haltPair(pair, reason string) {
	e.mu.Lock()
	e.halted[pair] = reason
	e.mu.Unlock()
	logger.Info("[HALT] %s: %s", pair, reason)
}

func (e *Engine) haltedCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.halted)
}
