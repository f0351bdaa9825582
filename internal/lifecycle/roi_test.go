package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func defaultROI() ROITable {
	return NewROITable(map[int]float64{0: 4.0, 30: 2.0, 60: 1.0})
}

func TestROITable_Required(t *testing.T) {
	roi := defaultROI()

	cases := []struct {
		name string
		held time.Duration
		want float64
	}{
		{"fresh trade needs 4%", 5 * time.Minute, 4.0},
		{"after 30m needs 2%", 35 * time.Minute, 2.0},
		{"exactly at threshold", 30 * time.Minute, 2.0},
		{"after 60m needs 1%", 2 * time.Hour, 1.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := roi.Required(tc.held)
			assert.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestROITable_NoThresholdReached(t *testing.T) {
	roi := NewROITable(map[int]float64{30: 2.0})

	_, ok := roi.Required(10 * time.Minute)
	assert.False(t, ok, "до первого порога выход по ROI не рассматривается")
}

func TestROITable_Empty(t *testing.T) {
	_, ok := ROITable{}.Required(time.Hour)
	assert.False(t, ok)
}

func TestNewROITable_SortsThresholds(t *testing.T) {
	roi := NewROITable(map[int]float64{60: 1.0, 0: 4.0, 30: 2.0})

	got, ok := roi.Required(45 * time.Minute)
	assert.True(t, ok)
	assert.Equal(t, 2.0, got, "побеждает самый большой прошедший порог, не порядок мапы")
}
