package exchange

import (
	"context"
	"errors"

	"trade_engine/internal/models"
)

var (
	// ErrAdapterUnavailable — транзиент: биржа/фид недоступны.
	// Тик по затронутым парам пропускается, состояние не мутируется.
	ErrAdapterUnavailable = errors.New("adapter unavailable")
	// ErrOrderRejected — площадка отказала в заявке. Не фатально,
	// пара остаётся в работе на следующий тик.
	ErrOrderRejected = errors.New("order rejected by venue")
	// ErrUnknownOrder — заявка с таким id площадке неизвестна.
	ErrUnknownOrder = errors.New("unknown order")
)

// FillStatus — статус заявки глазами площадки.
type FillStatus string

const (
	FillOpen      FillStatus = "open"
	FillPartial   FillStatus = "partial"
	FillFilled    FillStatus = "filled"
	FillCancelled FillStatus = "cancelled"
)

type OrderReq struct {
	Pair  string
	Side  models.Side
	Type  models.OrderType
	Price float64
	Qty   float64
}

type Balance struct {
	Cash      float64
	Positions map[string]float64 // pair -> qty
}

// Adapter — узкий интерфейс исполнения. Всё, что ядро знает о бирже.
type Adapter interface {
	SubmitOrder(ctx context.Context, req OrderReq) (string, error)
	CancelOrder(ctx context.Context, orderID string) (bool, error)
	OrderStatus(ctx context.Context, orderID string) (FillStatus, error)
	Balance(ctx context.Context) (Balance, error)
}

// PriceSink реализуют адаптеры, которым нужно видеть рынок, чтобы
// исполнять лимитки (бумажный счёт). Живой фид скармливается сюда же,
// куда и в кэш истории.
type PriceSink interface {
	MarkPrice(pair string, px float64)
}

// MarketData — поставщик снапшотов и состава watchlist.
type MarketData interface {
	// Snapshots — поток наблюдений по подписанным парам.
	Snapshots(ctx context.Context, pairs []string) (<-chan models.MarketSnapshot, error)
	// TopByVolume — топ-N инструментов площадки по суточному объёму.
	TopByVolume(ctx context.Context, n int) ([]string, error)
	// Candles — недавняя история для прогрева кэша перед стартом.
	Candles(ctx context.Context, pair string, n int) ([]models.MarketSnapshot, error)
}
