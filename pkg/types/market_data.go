package types

import (
	"fmt"
	"math"
	"time"
)

type OHLCV struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp time.Time
}

// AssetSeries is the ordered bar history of a single asset. It is built once
// before a run and is not modified while the simulation replays it.
type AssetSeries struct {
	Symbol string
	Bars   []OHLCV
}

// NewAssetSeries copies bars into a new series after checking that the
// timestamps are strictly increasing. Out-of-order data is rejected, never sorted.
func NewAssetSeries(symbol string, bars []OHLCV) (AssetSeries, error) {
	if err := ValidateTimeSequence(bars); err != nil {
		return AssetSeries{}, fmt.Errorf("%s: %w", symbol, err)
	}
	owned := make([]OHLCV, len(bars))
	copy(owned, bars)
	return AssetSeries{Symbol: symbol, Bars: owned}, nil
}

// Len returns the number of bars in the series
func (s AssetSeries) Len() int {
	return len(s.Bars)
}

// First returns the timestamp of the first bar, zero for an empty series
func (s AssetSeries) First() time.Time {
	if len(s.Bars) == 0 {
		return time.Time{}
	}
	return s.Bars[0].Timestamp
}

// Last returns the timestamp of the last bar, zero for an empty series
func (s AssetSeries) Last() time.Time {
	if len(s.Bars) == 0 {
		return time.Time{}
	}
	return s.Bars[len(s.Bars)-1].Timestamp
}

// ValidateTimeSequence ensures timestamps are strictly increasing.
func ValidateTimeSequence(bars []OHLCV) error {
	for i := 1; i < len(bars); i++ {
		prev, curr := bars[i-1].Timestamp, bars[i].Timestamp
		if curr.Equal(prev) {
			return fmt.Errorf("duplicate timestamp at index %d: %s", i, curr.Format(time.RFC3339))
		}
		if curr.Before(prev) {
			return fmt.Errorf("data not in chronological order at index %d: %s comes after %s",
				i, curr.Format(time.RFC3339), prev.Format(time.RFC3339))
		}
	}
	return nil
}

// Finite reports whether every price and the volume are real numbers
func (c OHLCV) Finite() bool {
	for _, v := range [...]float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ValidatePrices rejects bars with a non-finite field or a non-positive close.
// Open, high and low may be zero for close-only series.
func ValidatePrices(bars []OHLCV) error {
	for i, bar := range bars {
		if !bar.Finite() {
			return fmt.Errorf("non-finite value at index %d", i)
		}
		if bar.Close <= 0 {
			return fmt.Errorf("non-positive close (%.4f) at index %d", bar.Close, i)
		}
	}
	return nil
}
