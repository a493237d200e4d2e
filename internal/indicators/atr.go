package indicators

import (
	"fmt"
	"math"
	"strings"

	"github.com/ducminhle1904/gap-atr-backtest/pkg/types"
)

// Smoothing selects how true ranges are averaged
type Smoothing string

const (
	// SmoothingSimple is a plain moving average over the last period true ranges
	SmoothingSimple Smoothing = "sma"
	// SmoothingWilder seeds with the simple average, then applies Wilder's recursion
	SmoothingWilder Smoothing = "wilder"
)

// ATR represents the Average True Range technical indicator.
// It is fed one bar at a time and costs O(1) per update.
type ATR struct {
	period    int
	smoothing Smoothing

	window []float64 // ring buffer of the last period true ranges
	pos    int
	sum    float64
	count  int

	prevClose float64
	value     float64
}

// NewATR creates a simple-average ATR
func NewATR(period int) (*ATR, error) {
	return NewATRWithSmoothing(period, SmoothingSimple)
}

// ParseSmoothing validates a smoothing name, empty means sma
func ParseSmoothing(s string) (Smoothing, error) {
	switch Smoothing(strings.ToLower(s)) {
	case "", SmoothingSimple:
		return SmoothingSimple, nil
	case SmoothingWilder:
		return SmoothingWilder, nil
	default:
		return "", fmt.Errorf("unknown ATR smoothing %q", s)
	}
}

// NewATRWithSmoothing creates an ATR with the given smoothing
func NewATRWithSmoothing(period int, smoothing Smoothing) (*ATR, error) {
	if period <= 0 {
		return nil, fmt.Errorf("ATR period must be positive, got %d", period)
	}
	if smoothing == "" {
		smoothing = SmoothingSimple
	}
	if smoothing != SmoothingSimple && smoothing != SmoothingWilder {
		return nil, fmt.Errorf("unknown ATR smoothing %q", smoothing)
	}
	return &ATR{
		period:    period,
		smoothing: smoothing,
		window:    make([]float64, period),
	}, nil
}

// Update folds the next bar in and returns the current value. The value is
// only meaningful when ready is true.
func (a *ATR) Update(bar types.OHLCV) (float64, bool) {
	tr := bar.High - bar.Low
	if a.count > 0 {
		tr = TrueRange(bar, a.prevClose)
	}
	a.prevClose = bar.Close
	a.count++

	if a.smoothing == SmoothingWilder && a.count > a.period {
		n := float64(a.period)
		a.value = (a.value*(n-1) + tr) / n
		return a.value, true
	}

	a.sum += tr - a.window[a.pos]
	a.window[a.pos] = tr
	a.pos = (a.pos + 1) % a.period

	if !a.Ready() {
		return 0, false
	}
	a.value = a.sum / float64(a.period)
	return a.value, true
}

// TrueRange = max(high-low, |high-prevClose|, |low-prevClose|)
func TrueRange(bar types.OHLCV, prevClose float64) float64 {
	hl := bar.High - bar.Low
	hc := math.Abs(bar.High - prevClose)
	lc := math.Abs(bar.Low - prevClose)
	return math.Max(hl, math.Max(hc, lc))
}

// Ready reports whether period bars have been seen
func (a *ATR) Ready() bool {
	return a.count >= a.period
}

// Value returns the last value and whether it is defined
func (a *ATR) Value() (float64, bool) {
	if !a.Ready() {
		return 0, false
	}
	return a.value, true
}

// Period returns the averaging window length
func (a *ATR) Period() int {
	return a.period
}

// Count returns the number of bars seen
func (a *ATR) Count() int {
	return a.count
}

// Smoothing returns the averaging mode
func (a *ATR) Smoothing() Smoothing {
	return a.smoothing
}

// Reset clears all state
func (a *ATR) Reset() {
	for i := range a.window {
		a.window[i] = 0
	}
	a.pos = 0
	a.sum = 0
	a.count = 0
	a.prevClose = 0
	a.value = 0
}
