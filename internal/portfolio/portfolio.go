package portfolio

import (
	"fmt"
	"sync"
	"time"

	"trade_engine/internal/models"
)

// View — согласованный снимок леджера для риск-менеджера и трекера.
// Считается под одним локом, поля не расходятся между собой.
type View struct {
	Cash           float64
	Equity         float64 // cash + рыночная стоимость позиций
	OpenCount      int
	OpenNotional   float64
	DailyRealized  float64
	DayStartEquity float64
}

// Portfolio — единственный владелец денег и открытых позиций.
// Все мутации идут через методы под одним мьютексом; стратегии и трекер
// сюда напрямую не ходят. Никакого I/O под локом.
type Portfolio struct {
	mu        sync.Mutex
	cash      float64
	positions map[string]models.Position

	dailyRealized  float64
	dayStartEquity float64
	day            time.Time // UTC-дата для дневного лимита

	now func() time.Time
}

func New(startCash float64) *Portfolio {
	p := &Portfolio{
		cash:      startCash,
		positions: make(map[string]models.Position),
		now:       time.Now,
	}
	p.dayStartEquity = startCash
	p.day = dateOf(p.now())
	return p
}

// SetClock подменяет источник времени (тесты дневного лимита).
func (p *Portfolio) SetClock(now func() time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.now = now
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// rollover — новый UTC-день: фиксируем утренний equity, обнуляем дневной pnl.
// Вызывается только под локом.
func (p *Portfolio) rollover() {
	today := dateOf(p.now())
	if today.After(p.day) {
		p.day = today
		p.dayStartEquity = p.equityLocked()
		p.dailyRealized = 0
	}
}

func (p *Portfolio) equityLocked() float64 {
	eq := p.cash
	for _, pos := range p.positions {
		eq += pos.Value()
	}
	return eq
}

func (p *Portfolio) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rollover()

	v := View{
		Cash:           p.cash,
		DailyRealized:  p.dailyRealized,
		DayStartEquity: p.dayStartEquity,
	}
	for _, pos := range p.positions {
		v.OpenCount++
		v.OpenNotional += pos.Value()
	}
	v.Equity = p.cash + v.OpenNotional
	return v
}

// MarkPrice обновляет последнюю цену позиции (mark-to-market).
func (p *Portfolio) MarkPrice(pair string, px float64, t time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[pair]
	if !ok {
		return
	}
	pos.LastPx = px
	pos.Updated = t
	p.positions[pair] = pos
}

// OpenPosition дебетует кэш (notional + комиссия) и добавляет позицию.
// Кэш не может уйти в минус — иначе отказ без мутации.
func (p *Portfolio) OpenPosition(pos models.Position, fee float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rollover()

	if _, ok := p.positions[pos.Pair]; ok {
		return fmt.Errorf("position already open for %s", pos.Pair)
	}
	cost := pos.Qty*pos.Entry + fee
	if cost > p.cash {
		return fmt.Errorf("insufficient cash: need %.2f have %.2f", cost, p.cash)
	}
	p.cash -= cost
	if pos.LastPx == 0 {
		pos.LastPx = pos.Entry
	}
	p.positions[pos.Pair] = pos
	return nil
}

// ClosePosition кредитует кэш стоимостью позиции по цене выхода минус
// комиссия выхода, убирает позицию и возвращает реализованный pnl с учётом
// комиссий обеих ног (входная была списана с кэша при открытии).
func (p *Portfolio) ClosePosition(pair string, exitPx, exitFee, entryFee float64) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rollover()

	pos, ok := p.positions[pair]
	if !ok {
		return 0, fmt.Errorf("no open position for %s", pair)
	}
	credit := pos.ValueAt(exitPx) - exitFee
	p.cash += credit
	delete(p.positions, pair)

	var gross float64
	if pos.Side == models.SideSell {
		gross = (pos.Entry - exitPx) * pos.Qty
	} else {
		gross = (exitPx - pos.Entry) * pos.Qty
	}
	pnl := gross - exitFee - entryFee
	p.dailyRealized += pnl
	return pnl, nil
}

// Position — копия позиции по паре.
func (p *Portfolio) Position(pair string) (models.Position, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.positions[pair]
	return pos, ok
}

// Positions — снимок всех открытых позиций (для сверки и health).
func (p *Portfolio) Positions() map[string]models.Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]models.Position, len(p.positions))
	for k, v := range p.positions {
		out[k] = v
	}
	return out
}
