package indicators

import (
	"testing"
	"time"

	"github.com/ducminhle1904/gap-atr-backtest/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bar(i int, o, h, l, c float64) types.OHLCV {
	return types.OHLCV{
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour),
		Open:      o,
		High:      h,
		Low:       l,
		Close:     c,
		Volume:    1000,
	}
}

// generateTestData builds bars whose true range is always 2
func generateTestData(count int) []types.OHLCV {
	data := make([]types.OHLCV, count)
	for i := 0; i < count; i++ {
		base := 100.0 + float64(i)*0.5
		data[i] = bar(i, base, base+1, base-1, base)
	}
	return data
}

func TestNewATR_InvalidParams(t *testing.T) {
	_, err := NewATR(0)
	assert.Error(t, err)

	_, err = NewATRWithSmoothing(14, "ema")
	assert.Error(t, err)

	atr, err := NewATRWithSmoothing(14, "")
	require.NoError(t, err)
	assert.Equal(t, SmoothingSimple, atr.Smoothing())
}

func TestATR_NotReadyDuringWarmup(t *testing.T) {
	atr, err := NewATR(5)
	require.NoError(t, err)

	data := generateTestData(5)
	for i := 0; i < 4; i++ {
		v, ready := atr.Update(data[i])
		assert.False(t, ready, "bar %d", i)
		assert.Equal(t, 0.0, v)
	}
	_, ok := atr.Value()
	assert.False(t, ok)

	v, ready := atr.Update(data[4])
	assert.True(t, ready)
	assert.InDelta(t, 2.0, v, 1e-9)
	assert.Equal(t, 5, atr.Count())
}

func TestATR_UsesPreviousCloseForGaps(t *testing.T) {
	atr, err := NewATR(2)
	require.NoError(t, err)

	atr.Update(bar(0, 100, 101, 99, 100)) // TR 2
	v, ready := atr.Update(bar(1, 110, 111, 109, 110))
	require.True(t, ready)
	// TR = max(2, |111-100|, |109-100|) = 11
	assert.InDelta(t, (2.0+11.0)/2, v, 1e-9)
}

func TestATR_RollingWindow(t *testing.T) {
	atr, err := NewATR(3)
	require.NoError(t, err)

	bars := []types.OHLCV{
		bar(0, 10, 11, 9, 10),  // 2
		bar(1, 10, 12, 9, 10),  // 3
		bar(2, 10, 14, 10, 10), // 4
		bar(3, 10, 11, 10, 10), // 1
	}
	var v float64
	for _, b := range bars {
		v, _ = atr.Update(b)
	}
	assert.InDelta(t, (3.0+4.0+1.0)/3, v, 1e-9)
}

func TestATR_Wilder(t *testing.T) {
	atr, err := NewATRWithSmoothing(2, SmoothingWilder)
	require.NoError(t, err)

	atr.Update(bar(0, 10, 11, 9, 10))       // 2
	v, _ := atr.Update(bar(1, 10, 13, 9, 10)) // 4 -> seed 3
	assert.InDelta(t, 3.0, v, 1e-9)

	v, ready := atr.Update(bar(2, 10, 10.5, 9.5, 10)) // 1
	assert.True(t, ready)
	assert.InDelta(t, (3.0*1+1.0)/2, v, 1e-9)
}

func TestATR_Reset(t *testing.T) {
	atr, err := NewATR(3)
	require.NoError(t, err)
	for _, b := range generateTestData(5) {
		atr.Update(b)
	}
	require.True(t, atr.Ready())

	atr.Reset()
	assert.False(t, atr.Ready())
	assert.Equal(t, 0, atr.Count())
	assert.Equal(t, 3, atr.Period())
}

func TestTrueRange(t *testing.T) {
	assert.Equal(t, 5.0, TrueRange(bar(0, 0, 105, 102, 103), 100))
	assert.Equal(t, 4.0, TrueRange(bar(0, 0, 104, 100, 103), 101))
	assert.Equal(t, 6.0, TrueRange(bar(0, 0, 98, 96, 97), 102))
}
