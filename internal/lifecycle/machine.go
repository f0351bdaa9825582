package lifecycle

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"trade_engine/internal/exchange"
	"trade_engine/internal/models"
	"trade_engine/internal/portfolio"
	"trade_engine/internal/risk"
	"trade_engine/pkg/logger"
)

// ClosedHook вызывается после закрытия сделки (трекер, журнал, нотификации).
// Ошибки и паники хука не должны останавливать торговлю — хук зовётся
// через emitClosed с recover.
type ClosedHook func(t models.Trade, equityAfter float64)

type Config struct {
	FeePct       float64
	EntryTimeout time.Duration
	ExitTimeout  time.Duration
	ROI          ROITable
}

// slot — состояние жизненного цикла по одной паре. Пока слот существует,
// новые сигналы по паре не принимаются.
type slot struct {
	state     models.SlotState
	signal    models.Signal
	entry     *models.Order
	exit      *models.Order
	trade     *models.Trade
	stopPrice float64
	riskedUSD float64
	entryFee  float64
	exitWhy   models.ExitReason
}

// Machine ведёт каждую заявку/сделку через вход, таймаут, выход, стоп и ROI.
// Одна пара — один слот. На тик — не больше одного обращения к адаптеру
// на заявку; блокирующий I/O никогда не под локом портфеля.
type Machine struct {
	mu    sync.Mutex
	slots map[string]*slot

	adapter exchange.Adapter
	pf      *portfolio.Portfolio
	cfg     Config

	onClose  ClosedHook
	tradeSeq atomic.Int64
	now      func() time.Time
}

func NewMachine(adapter exchange.Adapter, pf *portfolio.Portfolio, cfg Config) *Machine {
	return &Machine{
		slots:   make(map[string]*slot),
		adapter: adapter,
		pf:      pf,
		cfg:     cfg,
		now:     time.Now,
	}
}

// SetClock подменяет источник времени (тесты таймаутов и ROI).
func (m *Machine) SetClock(now func() time.Time) { m.now = now }

func (m *Machine) OnClose(h ClosedHook) { m.onClose = h }

// Busy — по паре уже есть заявка или открытая сделка.
func (m *Machine) Busy(pair string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.slots[pair]
	return ok
}

// PendingEntries — сколько слотов ждут исполнения входа.
// Учитываются в лимите позиций, чтобы два тика не передобавили позиций.
func (m *Machine) PendingEntries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.slots {
		if s.state == models.SlotPendingEntry {
			n++
		}
	}
	return n
}

// Pending — сколько входов в полёте и какой нотиональ под них обещан.
// Риск-чек резервирует этот капитал до того, как исполнение дойдёт до леджера.
func (m *Machine) Pending() risk.Pending {
	m.mu.Lock()
	defer m.mu.Unlock()
	var p risk.Pending
	for _, s := range m.slots {
		if s.state == models.SlotPendingEntry {
			p.Count++
			p.Notional += s.entry.Qty * s.entry.Price
		}
	}
	return p
}

// SlotCount — всего активных слотов.
func (m *Machine) SlotCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}

// Pairs — пары с активным слотом. Движок обязан вести их каждый тик,
// даже если ротация watchlist пару уже выкинула.
func (m *Machine) Pairs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.slots))
	for p := range m.slots {
		out = append(out, p)
	}
	return out
}

// SettledAt — у пары нет ордера в полёте (слот в Open либо слота нет).
func (m *Machine) SettledAt(pair string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[pair]
	return !ok || s.state == models.SlotOpen
}

// AnyPending — есть ли хоть один ордер в полёте.
func (m *Machine) AnyPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.slots {
		if s.state == models.SlotPendingEntry || s.state == models.SlotPendingExit {
			return true
		}
	}
	return false
}

// OpenFromDecision отправляет лимитный вход по одобренному решению и
// заводит слот PendingEntry. Леджер здесь не трогаем: деньги двигаются
// только после подтверждённого исполнения.
func (m *Machine) OpenFromDecision(ctx context.Context, sig models.Signal, dec risk.Decision) error {
	if !dec.Approved {
		return errors.New("decision is not approved")
	}
	if m.Busy(sig.Pair) {
		return errors.New("slot already exists for " + sig.Pair)
	}

	s := &slot{
		state:     models.SlotPendingEntry,
		signal:    sig,
		stopPrice: dec.StopPrice,
		riskedUSD: dec.RiskedUSD,
		entry: &models.Order{
			Pair:      sig.Pair,
			Side:      sig.Side,
			Type:      models.OrderLimit,
			Price:     dec.EntryPrice,
			Qty:       dec.Qty,
			CreatedAt: m.now(),
			Deadline:  m.now().Add(m.cfg.EntryTimeout),
		},
	}

	// сабмит — вне каких-либо локов
	id, err := m.adapter.SubmitOrder(ctx, exchange.OrderReq{
		Pair:  sig.Pair,
		Side:  sig.Side,
		Type:  models.OrderLimit,
		Price: dec.EntryPrice,
		Qty:   dec.Qty,
	})
	switch {
	case errors.Is(err, exchange.ErrOrderRejected):
		// площадка отказала — no-op, пара остаётся в работе
		logger.Info("[%s] entry rejected by venue", sig.Pair)
		return err
	case err != nil:
		// связь оборвалась: заявка могла уйти. Слот заводим без id —
		// на следующем тике пересабмитим/разрулим.
		log.Printf("[LIFECYCLE] %s entry submit ambiguous: %v", sig.Pair, err)
	default:
		s.entry.ID = id
	}

	m.mu.Lock()
	m.slots[sig.Pair] = s
	m.mu.Unlock()
	return nil
}

// Step двигает слот пары на один тик. Вызывается движком последовательно
// по парам; адаптерные вызовы происходят здесь, мутации леджера — только
// короткими секциями внутри portfolio.
func (m *Machine) Step(ctx context.Context, pair string, snap models.MarketSnapshot, reg models.Regime) {
	m.mu.Lock()
	s, ok := m.slots[pair]
	m.mu.Unlock()
	if !ok {
		return
	}

	switch s.state {
	case models.SlotPendingEntry:
		m.stepPendingEntry(ctx, pair, s)
	case models.SlotOpen:
		m.stepOpen(ctx, pair, s, snap, reg)
	case models.SlotPendingExit:
		m.stepPendingExit(ctx, pair, s, snap, reg)
	}
}

func (m *Machine) dropSlot(pair string) {
	m.mu.Lock()
	delete(m.slots, pair)
	m.mu.Unlock()
}

func (m *Machine) stepPendingEntry(ctx context.Context, pair string, s *slot) {
	// неподтверждённая отправка — пробуем ещё раз
	if s.entry.ID == "" {
		id, err := m.adapter.SubmitOrder(ctx, exchange.OrderReq{
			Pair:  pair,
			Side:  s.entry.Side,
			Type:  models.OrderLimit,
			Price: s.entry.Price,
			Qty:   s.entry.Qty,
		})
		if errors.Is(err, exchange.ErrOrderRejected) {
			m.dropSlot(pair)
			return
		}
		if err != nil {
			return // всё ещё недоступен, следующий тик
		}
		s.entry.ID = id
		return
	}

	st, err := m.adapter.OrderStatus(ctx, s.entry.ID)
	if err != nil {
		return // транзиент — состояние не трогаем
	}

	switch st {
	case exchange.FillFilled:
		m.onEntryFilled(pair, s)
	case exchange.FillCancelled:
		m.dropSlot(pair)
	default:
		// висим: не исполнилось — проверяем таймаут входа
		if m.now().After(s.entry.Deadline) {
			ok, err := m.adapter.CancelOrder(ctx, s.entry.ID)
			if err != nil {
				return
			}
			if !ok {
				// отменить не успели — скорее всего уже исполнилась,
				// увидим fill на следующем тике
				return
			}
			s.state = models.SlotCancelledTimeout
			log.Printf("[LIFECYCLE] %s entry timeout, cancelled", pair)
			m.dropSlot(pair) // пара снова в работе со следующего тика
		}
	}
}

func (m *Machine) onEntryFilled(pair string, s *slot) {
	fillPx := s.entry.Price
	fee := s.entry.Qty * fillPx * m.cfg.FeePct / 100.0

	pos := models.Position{
		Pair:    pair,
		Side:    s.entry.Side,
		Qty:     s.entry.Qty,
		Entry:   fillPx,
		LastPx:  fillPx,
		Updated: m.now(),
	}
	if err := m.pf.OpenPosition(pos, fee); err != nil {
		// сюда попадать не должны: риск-чек прошёл до сабмита
		logger.Error("[%s] open position failed after fill: %v", pair, err)
		m.dropSlot(pair)
		return
	}

	s.entryFee = fee
	s.trade = &models.Trade{
		ID:           m.tradeSeq.Add(1),
		Pair:         pair,
		Strategy:     s.signal.Strategy,
		Side:         s.entry.Side,
		EntryOrderID: s.entry.ID,
		EntryPrice:   fillPx,
		Qty:          s.entry.Qty,
		RiskedUSD:    s.riskedUSD,
		OpenedAt:     m.now(),
		EntryRegime:  s.signal.Regime,
	}
	s.state = models.SlotOpen
	log.Printf("[LIFECYCLE] %s OPEN %s qty=%.6f @ %.6f stop=%.6f",
		pair, s.entry.Side, s.entry.Qty, fillPx, s.stopPrice)
}

// netProfitFrac — профит сделки в долях с поправкой на комиссии обеих ног.
func (m *Machine) netProfitFrac(s *slot, px float64) float64 {
	entry := s.trade.EntryPrice
	if entry <= 0 {
		return 0
	}
	gross := (px - entry) / entry
	if s.trade.Side == models.SideSell {
		gross = -gross
	}
	return gross - 2*m.cfg.FeePct/100.0
}

func (m *Machine) stopBreached(s *slot, px float64) bool {
	if s.stopPrice <= 0 {
		return false
	}
	if s.trade.Side == models.SideSell {
		return px >= s.stopPrice
	}
	return px <= s.stopPrice
}

func (m *Machine) stepOpen(ctx context.Context, pair string, s *slot, snap models.MarketSnapshot, reg models.Regime) {
	m.pf.MarkPrice(pair, snap.Price, snap.Time)

	// 1. Стоплосс всегда в приоритете над ROI, даже если сработали оба.
	if m.stopBreached(s, snap.Price) {
		exitSide := oppositeSide(s.trade.Side)
		id, err := m.adapter.SubmitOrder(ctx, exchange.OrderReq{
			Pair:  pair,
			Side:  exitSide,
			Type:  models.OrderMarket,
			Price: snap.Price,
			Qty:   s.trade.Qty,
		})
		if err != nil {
			// стоп не ушёл — остаёмся Open, повтор на следующем тике
			logger.Error("[%s] stoploss submit failed: %v", pair, err)
			return
		}
		// рыночный выход считаем исполненным немедленно
		s.exit = &models.Order{ID: id, Pair: pair, Side: exitSide, Type: models.OrderMarket, Price: snap.Price, Qty: s.trade.Qty}
		m.closeTrade(pair, s, snap.Price, models.ExitStoploss, reg)
		return
	}

	// 2. ROI-таблица: побеждает самый большой порог времени, который прошёл.
	required, ok := m.cfg.ROI.Required(m.now().Sub(s.trade.OpenedAt))
	if !ok {
		return
	}
	if m.netProfitFrac(s, snap.Price)*100 < required {
		return
	}

	exitSide := oppositeSide(s.trade.Side)
	id, err := m.adapter.SubmitOrder(ctx, exchange.OrderReq{
		Pair:  pair,
		Side:  exitSide,
		Type:  models.OrderLimit,
		Price: snap.Price,
		Qty:   s.trade.Qty,
	})
	if err != nil {
		return // не страшно, попробуем на следующем тике
	}
	s.exit = &models.Order{
		ID:        id,
		Pair:      pair,
		Side:      exitSide,
		Type:      models.OrderLimit,
		Price:     snap.Price,
		Qty:       s.trade.Qty,
		CreatedAt: m.now(),
		Deadline:  m.now().Add(m.cfg.ExitTimeout),
	}
	s.exitWhy = models.ExitROI
	s.state = models.SlotPendingExit
	log.Printf("[LIFECYCLE] %s ROI exit submitted @ %.6f (need %.2f%%)", pair, snap.Price, required)
}

func (m *Machine) stepPendingExit(ctx context.Context, pair string, s *slot, snap models.MarketSnapshot, reg models.Regime) {
	m.pf.MarkPrice(pair, snap.Price, snap.Time)

	st, err := m.adapter.OrderStatus(ctx, s.exit.ID)
	if err != nil {
		return
	}

	switch st {
	case exchange.FillFilled:
		m.closeTrade(pair, s, s.exit.Price, s.exitWhy, reg)
	case exchange.FillCancelled:
		// кто-то снял заявку — немедленно перевыставляем по свежей цене:
		// открытая позиция не должна висеть без активной попытки выхода
		m.replaceExit(ctx, pair, s, snap.Price)
	default:
		if m.now().After(s.exit.Deadline) {
			ok, err := m.adapter.CancelOrder(ctx, s.exit.ID)
			if err != nil {
				return
			}
			if !ok {
				return // успела исполниться — следующий тик увидит fill
			}
			m.replaceExit(ctx, pair, s, snap.Price)
		}
	}
}

// replaceExit — self-loop PendingExit: та же сделка, новый лимит по рынку.
func (m *Machine) replaceExit(ctx context.Context, pair string, s *slot, px float64) {
	id, err := m.adapter.SubmitOrder(ctx, exchange.OrderReq{
		Pair:  pair,
		Side:  s.exit.Side,
		Type:  models.OrderLimit,
		Price: px,
		Qty:   s.trade.Qty,
	})
	if err != nil {
		logger.Error("[%s] exit replace failed: %v", pair, err)
		return // остаёмся PendingExit со старыми данными, повтор дальше
	}
	s.exit = &models.Order{
		ID:        id,
		Pair:      pair,
		Side:      s.exit.Side,
		Type:      models.OrderLimit,
		Price:     px,
		Qty:       s.trade.Qty,
		CreatedAt: m.now(),
		Deadline:  m.now().Add(m.cfg.ExitTimeout),
	}
	log.Printf("[LIFECYCLE] %s exit replaced @ %.6f", pair, px)
}

func (m *Machine) closeTrade(pair string, s *slot, exitPx float64, why models.ExitReason, reg models.Regime) {
	exitFee := s.trade.Qty * exitPx * m.cfg.FeePct / 100.0
	pnl, err := m.pf.ClosePosition(pair, exitPx, exitFee, s.entryFee)
	if err != nil {
		logger.Error("[%s] close position failed: %v", pair, err)
		m.dropSlot(pair)
		return
	}

	t := *s.trade
	t.ExitPrice = exitPx
	t.Pnl = pnl
	t.ClosedAt = m.now()
	t.Reason = why
	t.ExitRegime = reg
	if s.exit != nil {
		t.ExitOrderID = s.exit.ID
	}

	s.state = models.SlotClosed
	m.dropSlot(pair)
	log.Printf("[LIFECYCLE] %s CLOSED %s pnl=%.4f reason=%s", pair, t.Side, pnl, why)

	m.emitClosed(t)
}

// emitClosed зовёт хук наблюдателей. Падение трекера/журнала не должно
// останавливать торговлю — ловим и логируем.
func (m *Machine) emitClosed(t models.Trade) {
	if m.onClose == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("trade-closed hook panic: %v", r)
		}
	}()
	m.onClose(t, m.pf.View().Equity)
}

func oppositeSide(s models.Side) models.Side {
	if s == models.SideBuy {
		return models.SideSell
	}
	return models.SideBuy
}
