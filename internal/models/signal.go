package models

// Side как в раннере: "BUY"/"SELL" или пустая строка.
type Side string

const (
	SideNone Side = ""
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Regime — классификация поведения рынка за последнее окно.
type Regime string

const (
	RegimeTrending Regime = "trending"
	RegimeRanging  Regime = "ranging"
	RegimeNeutral  Regime = "neutral"
)

type StrategyType string

const (
	StrategyMeanRev   StrategyType = "meanrev"
	StrategyBreakout  StrategyType = "breakout"
	StrategyRangeFade StrategyType = "rangefade"
)

// Signal — ответ стратегии. Ещё не просчитан по риску и не имеет размера.
type Signal struct {
	Pair       string
	Side       Side // BUY / SELL / ""
	Price      float64
	Strategy   StrategyType
	StopPct    float64 // например 10.0 => стоп на -10% от входа
	Confidence float64 // 0..1, сила отклонения
	Regime     Regime  // режим на момент генерации
	Reason     string
}
