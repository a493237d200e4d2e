package data

import (
	"fmt"
	"time"

	bterrors "github.com/ducminhle1904/gap-atr-backtest/internal/errors"
	"github.com/ducminhle1904/gap-atr-backtest/pkg/types"
)

// FilterByDateRange keeps bars with start <= timestamp <= end. A zero bound
// is open on that side.
func FilterByDateRange(data []types.OHLCV, start, end time.Time) []types.OHLCV {
	if len(data) == 0 || (start.IsZero() && end.IsZero()) {
		return data
	}

	var filtered []types.OHLCV
	for _, candle := range data {
		if !start.IsZero() && candle.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && candle.Timestamp.After(end) {
			continue
		}
		filtered = append(filtered, candle)
	}
	return filtered
}

// FilterByPeriod filters data to the trailing period ending at the last bar
func FilterByPeriod(data []types.OHLCV, period time.Duration) []types.OHLCV {
	if period <= 0 || len(data) == 0 {
		return data
	}
	cutoff := data[len(data)-1].Timestamp.Add(-period)
	for i, candle := range data {
		if !candle.Timestamp.Before(cutoff) {
			return data[i:]
		}
	}
	return nil
}

// ValidateBars checks prices and strict time ordering. Ordering problems
// are reported as DATA_ORDERING so the asset is rejected, never re-sorted.
func ValidateBars(symbol string, data []types.OHLCV) error {
	if err := types.ValidatePrices(data); err != nil {
		return bterrors.Wrap(err, bterrors.ErrorCategoryInvalidData, "data", "validate").WithSymbol(symbol)
	}
	for i, candle := range data {
		if candle.Open <= 0 || candle.High <= 0 || candle.Low <= 0 || candle.Close <= 0 {
			return bterrors.Newf(bterrors.ErrorCategoryInvalidData, "data", "validate",
				"non-positive price at index %d", i).WithSymbol(symbol)
		}
		if candle.High < candle.Low {
			return bterrors.Newf(bterrors.ErrorCategoryInvalidData, "data", "validate",
				"high (%.4f) below low (%.4f) at index %d", candle.High, candle.Low, i).WithSymbol(symbol)
		}
	}
	if err := types.ValidateTimeSequence(data); err != nil {
		return bterrors.Wrap(err, bterrors.ErrorCategoryDataOrdering, "data", "validate").WithSymbol(symbol)
	}
	return nil
}

// ParseTrailingPeriod parses period strings like "7d", "30d", "180d" or a Go duration
func ParseTrailingPeriod(s string) (time.Duration, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%dd", &n); err == nil && n > 0 && fmt.Sprintf("%dd", n) == s {
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid period %q", s)
	}
	return d, nil
}
