package eligibility

import "trade_engine/internal/models"

// RejectReason — почему инструмент не допущен к оценке.
type RejectReason string

const (
	ReasonNone      RejectReason = ""
	ReasonDenylist  RejectReason = "denylist"
	ReasonLowPrice  RejectReason = "low_price"
	ReasonLowVolume RejectReason = "low_volume"
	ReasonWideSpred RejectReason = "wide_spread"
)

type Config struct {
	MinPrice     float64
	MinVolume24h float64
	MaxSpreadPct float64
	Denylist     []string
}

// Filter — чистый предикат над снапшотом. Отсекает дохлые рынки до того,
// как их увидят режим и стратегии.
type Filter struct {
	cfg    Config
	denied map[string]struct{}
}

func NewFilter(cfg Config) *Filter {
	denied := make(map[string]struct{}, len(cfg.Denylist))
	for _, p := range cfg.Denylist {
		denied[p] = struct{}{}
	}
	return &Filter{cfg: cfg, denied: denied}
}

func (f *Filter) Check(s models.MarketSnapshot) RejectReason {
	if _, ok := f.denied[s.Pair]; ok {
		return ReasonDenylist
	}
	if s.Price < f.cfg.MinPrice {
		return ReasonLowPrice
	}
	if s.Volume24h < f.cfg.MinVolume24h {
		return ReasonLowVolume
	}
	if f.cfg.MaxSpreadPct > 0 && s.SpreadPct() > f.cfg.MaxSpreadPct {
		return ReasonWideSpred
	}
	return ReasonNone
}

func (f *Filter) Eligible(s models.MarketSnapshot) bool {
	return f.Check(s) == ReasonNone
}
