package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	"github.com/ducminhle1904/gap-atr-backtest/pkg/types"
)

// KlineInterval represents the time interval for kline data
type KlineInterval string

const (
	Interval1m  KlineInterval = "1"
	Interval5m  KlineInterval = "5"
	Interval15m KlineInterval = "15"
	Interval30m KlineInterval = "30"
	Interval1h  KlineInterval = "60"
	Interval2h  KlineInterval = "120"
	Interval4h  KlineInterval = "240"
	Interval6h  KlineInterval = "360"
	Interval12h KlineInterval = "720"
	Interval1d  KlineInterval = "D"
	Interval1w  KlineInterval = "W"
)

// maxKlineLimit is the page size cap of /v5/market/kline
const maxKlineLimit = 1000

var intervalAliases = map[string]KlineInterval{
	"1m": Interval1m, "5m": Interval5m, "15m": Interval15m, "30m": Interval30m,
	"1h": Interval1h, "2h": Interval2h, "4h": Interval4h, "6h": Interval6h, "12h": Interval12h,
	"1d": Interval1d, "d": Interval1d, "1w": Interval1w, "w": Interval1w,
}

// ParseInterval accepts "1h" style names as well as native Bybit codes ("60", "D")
func ParseInterval(s string) (KlineInterval, error) {
	s = strings.TrimSpace(s)
	if iv, ok := intervalAliases[strings.ToLower(s)]; ok {
		return iv, nil
	}
	for _, iv := range intervalAliases {
		if string(iv) == strings.ToUpper(s) {
			return iv, nil
		}
	}
	return "", fmt.Errorf("unsupported kline interval %q", s)
}

// Kline represents a single kline/candlestick data point
type Kline struct {
	StartTime  time.Time
	OpenPrice  float64
	HighPrice  float64
	LowPrice   float64
	ClosePrice float64
	Volume     float64
	Turnover   float64
}

// ToOHLCV converts the kline to the backtester bar type
func (k Kline) ToOHLCV() types.OHLCV {
	return types.OHLCV{
		Timestamp: k.StartTime,
		Open:      k.OpenPrice,
		High:      k.HighPrice,
		Low:       k.LowPrice,
		Close:     k.ClosePrice,
		Volume:    k.Volume,
	}
}

// KlineParams holds parameters for fetching kline data
type KlineParams struct {
	Category string        // "spot", "linear", "inverse"
	Symbol   string        // Trading pair symbol (e.g., "BTCUSDT")
	Interval KlineInterval // Time interval
	Start    *time.Time    // Start time (optional)
	End      *time.Time    // End time (optional)
	Limit    int           // Number of records to return (max 1000, default 200)
}

// GetKlines fetches one page of klines. Bybit returns them newest first.
func (c *Client) GetKlines(ctx context.Context, params KlineParams) ([]Kline, error) {
	if params.Category == "" {
		params.Category = "spot"
	}
	if params.Limit == 0 {
		params.Limit = 200
	}
	if params.Limit > maxKlineLimit {
		params.Limit = maxKlineLimit
	}

	reqParams := map[string]interface{}{
		"category": params.Category,
		"symbol":   params.Symbol,
		"interval": string(params.Interval),
		"limit":    params.Limit,
	}
	if params.Start != nil {
		reqParams["start"] = params.Start.UnixMilli()
	}
	if params.End != nil {
		reqParams["end"] = params.End.UnixMilli()
	}

	var klines []Kline
	err := c.Retry(ctx, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		result, err := c.klines(ctx, reqParams)
		if err != nil {
			return fmt.Errorf("failed to get klines: %w", err)
		}
		klines, err = parseKlineResponse(result)
		return err
	})
	if err != nil {
		return nil, WrapAPIError("get klines "+params.Symbol, err)
	}
	return klines, nil
}

// GetKlineRange pages backwards from end until start is covered and returns
// the klines in ascending time order without duplicates.
func (c *Client) GetKlineRange(ctx context.Context, category, symbol string, interval KlineInterval, start, end time.Time) ([]Kline, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("empty range %s - %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	var all []Kline
	cursor := end
	for {
		from, to := start, cursor
		page, err := c.GetKlines(ctx, KlineParams{
			Category: category,
			Symbol:   symbol,
			Interval: interval,
			Start:    &from,
			End:      &to,
			Limit:    maxKlineLimit,
		})
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)

		oldest := page[0].StartTime
		for _, k := range page[1:] {
			if k.StartTime.Before(oldest) {
				oldest = k.StartTime
			}
		}
		if len(page) < maxKlineLimit || !oldest.After(start) {
			break
		}
		cursor = oldest.Add(-time.Millisecond)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].StartTime.Before(all[j].StartTime) })
	out := all[:0]
	for i, k := range all {
		if i > 0 && k.StartTime.Equal(all[i-1].StartTime) {
			continue
		}
		out = append(out, k)
	}
	return out, nil
}

// parseKlineResponse parses the API response into Kline structs
func parseKlineResponse(response interface{}) ([]Kline, error) {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return nil, fmt.Errorf("invalid response type %T", response)
	}
	if err := ParseAPIError(serverResp.RetCode, serverResp.RetMsg); err != nil {
		return nil, err
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	var klineResult struct {
		Symbol   string     `json:"symbol"`
		Category string     `json:"category"`
		List     [][]string `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &klineResult); err != nil {
		return nil, fmt.Errorf("failed to unmarshal kline result: %w", err)
	}

	klines := make([]Kline, 0, len(klineResult.List))
	for _, item := range klineResult.List {
		if len(item) < 7 {
			continue
		}
		// [startTime, openPrice, highPrice, lowPrice, closePrice, volume, turnover]
		ms, err := strconv.ParseInt(item[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid kline start time %q: %w", item[0], err)
		}
		values := make([]float64, 6)
		for i := range values {
			v, err := strconv.ParseFloat(item[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("invalid kline field %d %q: %w", i+1, item[i+1], err)
			}
			values[i] = v
		}
		klines = append(klines, Kline{
			StartTime:  time.UnixMilli(ms).UTC(),
			OpenPrice:  values[0],
			HighPrice:  values[1],
			LowPrice:   values[2],
			ClosePrice: values[3],
			Volume:     values[4],
			Turnover:   values[5],
		})
	}
	return klines, nil
}
