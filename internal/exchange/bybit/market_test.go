package bybit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeExchange serves an hourly series the way /v5/market/kline does:
// inclusive range, newest first, capped at limit
type fakeExchange struct {
	bars  []time.Time
	calls int
}

func newFakeExchange(n int) *fakeExchange {
	f := &fakeExchange{}
	for i := 0; i < n; i++ {
		f.bars = append(f.bars, base.Add(time.Duration(i)*time.Hour))
	}
	return f
}

func (f *fakeExchange) call(_ context.Context, params map[string]interface{}) (interface{}, error) {
	f.calls++
	start := time.UnixMilli(params["start"].(int64)).UTC()
	end := time.UnixMilli(params["end"].(int64)).UTC()
	limit := params["limit"].(int)

	list := [][]string{}
	for i := len(f.bars) - 1; i >= 0 && len(list) < limit; i-- {
		ts := f.bars[i]
		if ts.Before(start) || ts.After(end) {
			continue
		}
		p := fmt.Sprintf("%d", 100+i)
		list = append(list, []string{fmt.Sprintf("%d", ts.UnixMilli()), p, p, p, p, "1", "100"})
	}
	return &bybit_api.ServerResponse{
		RetCode: 0,
		RetMsg:  "OK",
		Result:  map[string]interface{}{"symbol": "BTCUSDT", "category": "spot", "list": list},
	}, nil
}

func testClient(caller klineCaller) *Client {
	retry := RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}
	c := NewClient(Config{Testnet: true, Retry: &retry})
	c.klines = caller
	return c
}

func TestParseKlineResponse(t *testing.T) {
	resp := &bybit_api.ServerResponse{
		RetCode: 0,
		Result: map[string]interface{}{
			"list": [][]string{
				{"1704070800000", "101", "103", "100", "102", "12.5", "1275"},
				{"1704067200000", "100", "101", "99", "101", "10", "1000"},
				{"short"},
			},
		},
	}
	klines, err := parseKlineResponse(resp)
	require.NoError(t, err)
	require.Len(t, klines, 2)

	assert.Equal(t, base.Add(time.Hour), klines[0].StartTime)
	assert.Equal(t, 102.0, klines[0].ClosePrice)
	bar := klines[1].ToOHLCV()
	assert.Equal(t, base, bar.Timestamp)
	assert.Equal(t, 99.0, bar.Low)
	assert.Equal(t, 10.0, bar.Volume)
}

func TestParseKlineResponse_APIError(t *testing.T) {
	_, err := parseKlineResponse(&bybit_api.ServerResponse{RetCode: ErrCodeSymbolNotFound, RetMsg: "not found"})
	var bybitErr *BybitError
	require.True(t, errors.As(err, &bybitErr))
	assert.Equal(t, ErrCodeSymbolNotFound, bybitErr.Code)

	_, err = parseKlineResponse("nope")
	assert.Error(t, err)
}

func TestGetKlineRange_PagesAndSorts(t *testing.T) {
	fake := newFakeExchange(2500)
	c := testClient(fake.call)

	end := base.Add(2499 * time.Hour)
	klines, err := c.GetKlineRange(context.Background(), "spot", "BTCUSDT", Interval1h, base, end)
	require.NoError(t, err)

	require.Len(t, klines, 2500)
	assert.Equal(t, 3, fake.calls)
	for i := 1; i < len(klines); i++ {
		assert.True(t, klines[i].StartTime.After(klines[i-1].StartTime))
	}
	assert.Equal(t, base, klines[0].StartTime)
	assert.Equal(t, end, klines[len(klines)-1].StartTime)
}

func TestGetKlineRange_EmptyRange(t *testing.T) {
	c := testClient(newFakeExchange(1).call)
	_, err := c.GetKlineRange(context.Background(), "spot", "BTCUSDT", Interval1h, base, base)
	assert.Error(t, err)
}

func TestGetKlines_RetriesRateLimit(t *testing.T) {
	fake := newFakeExchange(10)
	failures := 1
	c := testClient(func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		if failures > 0 {
			failures--
			return &bybit_api.ServerResponse{RetCode: ErrCodeRateLimitExceeded, RetMsg: "too many visits"}, nil
		}
		return fake.call(ctx, params)
	})

	start, end := base, base.Add(9*time.Hour)
	klines, err := c.GetKlines(context.Background(), KlineParams{Symbol: "BTCUSDT", Interval: Interval1h, Start: &start, End: &end})
	require.NoError(t, err)
	assert.Len(t, klines, 10)
}

func TestGetKlines_DoesNotRetryPermanentErrors(t *testing.T) {
	calls := 0
	c := testClient(func(context.Context, map[string]interface{}) (interface{}, error) {
		calls++
		return &bybit_api.ServerResponse{RetCode: ErrCodeInvalidParameter, RetMsg: "bad symbol"}, nil
	})
	_, err := c.GetKlines(context.Background(), KlineParams{Symbol: "NOPE"})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestParseInterval(t *testing.T) {
	tests := map[string]KlineInterval{"1h": Interval1h, "60": Interval1h, "4H": Interval4h, "1d": Interval1d, "D": Interval1d}
	for in, want := range tests {
		got, err := ParseInterval(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseInterval("7m")
	assert.Error(t, err)
}

func TestRetryWithConfig_StopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RetryWithConfig(ctx, func() error { return nil }, DefaultRetryConfig())
	assert.ErrorIs(t, err, context.Canceled)
}
