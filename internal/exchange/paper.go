package exchange

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"trade_engine/internal/models"
)

// Paper — исполняющий адаптер без биржи: рыночные заявки наполняются сразу
// по своей цене, лимитные — когда рынок пересекает цену заявки.
// Держит зеркальный кэш-баланс с той же моделью комиссий, что и леджер,
// чтобы сверка балансов имела что сверять.
type Paper struct {
	mu     sync.Mutex
	orders map[string]*paperOrder
	cash   float64
	pos    map[string]float64 // pair -> qty
	feePct float64
	seq    atomic.Int64
}

type paperOrder struct {
	req    OrderReq
	status FillStatus
	placed time.Time
}

func NewPaper(startCash, feePct float64) *Paper {
	return &Paper{
		orders: make(map[string]*paperOrder),
		pos:    make(map[string]float64),
		cash:   startCash,
		feePct: feePct,
	}
}

func (p *Paper) SubmitOrder(ctx context.Context, req OrderReq) (string, error) {
	if req.Qty <= 0 || req.Price <= 0 {
		return "", ErrOrderRejected
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	id := fmt.Sprintf("paper-%d", p.seq.Add(1))
	o := &paperOrder{req: req, status: FillOpen, placed: time.Now()}
	p.orders[id] = o

	if req.Type == models.OrderMarket {
		p.fillLocked(o)
	}
	return id, nil
}

func (p *Paper) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	o, ok := p.orders[orderID]
	if !ok {
		return false, ErrUnknownOrder
	}
	if o.status == FillFilled {
		return false, nil // успели исполниться — отменять нечего
	}
	o.status = FillCancelled
	return true, nil
}

func (p *Paper) OrderStatus(ctx context.Context, orderID string) (FillStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	o, ok := p.orders[orderID]
	if !ok {
		return "", ErrUnknownOrder
	}
	return o.status, nil
}

func (p *Paper) Balance(ctx context.Context) (Balance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := Balance{Cash: p.cash, Positions: make(map[string]float64, len(p.pos))}
	for k, v := range p.pos {
		out.Positions[k] = v
	}
	return out, nil
}

// MarkPrice скармливает адаптеру свежую цену: открытые лимитки,
// которые рынок пересёк, исполняются.
func (p *Paper) MarkPrice(pair string, px float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, o := range p.orders {
		if o.status != FillOpen || o.req.Pair != pair || o.req.Type != models.OrderLimit {
			continue
		}
		crossed := (o.req.Side == models.SideBuy && px <= o.req.Price) ||
			(o.req.Side == models.SideSell && px >= o.req.Price)
		if crossed {
			p.fillLocked(o)
		}
	}
}

func (p *Paper) fillLocked(o *paperOrder) {
	o.status = FillFilled
	notional := o.req.Qty * o.req.Price
	fee := notional * p.feePct / 100.0
	if o.req.Side == models.SideBuy {
		p.cash -= notional + fee
		p.pos[o.req.Pair] += o.req.Qty
	} else {
		p.cash += notional - fee
		p.pos[o.req.Pair] -= o.req.Qty
	}
	if p.pos[o.req.Pair] == 0 {
		delete(p.pos, o.req.Pair)
	}
}
