package lifecycle

import (
	"sort"
	"time"
)

// ROIStep: после AfterMin минут удержания выходим, если профит не меньше MinProfitPct.
type ROIStep struct {
	AfterMin     int
	MinProfitPct float64
}

// ROITable — расписание минимального профита по времени удержания.
// Применяется самый большой порог времени, который уже прошёл.
type ROITable []ROIStep

// NewROITable строит таблицу из конфигной мапы {минуты: проценты}.
func NewROITable(m map[int]float64) ROITable {
	t := make(ROITable, 0, len(m))
	for min, pct := range m {
		t = append(t, ROIStep{AfterMin: min, MinProfitPct: pct})
	}
	sort.Slice(t, func(i, j int) bool { return t[i].AfterMin < t[j].AfterMin })
	return t
}

// Required — минимальный профит для текущей длительности удержания.
// ok=false, если таблица пуста или ни один порог ещё не наступил.
func (t ROITable) Required(held time.Duration) (float64, bool) {
	mins := int(held.Minutes())
	best := -1
	for i, step := range t {
		if mins >= step.AfterMin {
			best = i
		}
	}
	if best < 0 {
		return 0, false
	}
	return t[best].MinProfitPct, true
}
