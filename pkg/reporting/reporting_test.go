package reporting

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ducminhle1904/gap-atr-backtest/internal/backtest"
	bterrors "github.com/ducminhle1904/gap-atr-backtest/internal/errors"
	"github.com/ducminhle1904/gap-atr-backtest/internal/notifications"
	"github.com/ducminhle1904/gap-atr-backtest/internal/portfolio"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func sampleResults() *backtest.BacktestResults {
	equity := []float64{100000, 110000, 95000, 105000}
	curve := make([]portfolio.EquityPoint, len(equity))
	for i, e := range equity {
		curve[i] = portfolio.EquityPoint{
			Index:     i,
			Timestamp: t0.Add(time.Duration(i) * time.Hour),
			Cash:      d(e),
			Holdings:  decimal.Zero,
			Equity:    d(e),
		}
	}
	r := &backtest.BacktestResults{
		Symbols:      []string{"BTC-USD", "ETH-USD"},
		StartTime:    t0,
		EndTime:      t0.Add(3 * time.Hour),
		Steps:        4,
		Config:       backtest.DefaultConfig(),
		StartBalance: 100000,
		Trades: []portfolio.Trade{
			{
				Symbol: "BTC-USD", EntryTime: t0, ExitTime: t0.Add(time.Hour), EntryIndex: 0, ExitIndex: 1,
				EntryPrice: d(100), ExitPrice: d(110), Size: d(10), Commission: d(2.1), PnL: d(97.9),
			},
			{
				Symbol: "ETH-USD", EntryTime: t0.Add(time.Hour), ExitTime: t0.Add(2 * time.Hour), EntryIndex: 1, ExitIndex: 2,
				EntryPrice: d(50), ExitPrice: d(45), Size: d(20), Commission: d(1.9), PnL: d(-101.9),
			},
		},
		EquityCurve: curve,
		OpenPositions: []portfolio.Holding{
			{Symbol: "BTC-USD", Size: d(1), EntryPrice: d(120), EntryNotional: d(120), EntryTime: t0.Add(3 * time.Hour), EntryIndex: 3},
		},
		Skipped: map[bterrors.ErrorCategory]int{bterrors.ErrorCategoryInsufficientFunds: 2},
	}
	r.UpdateMetrics()
	r.EndBalance = 105000
	r.FinalCash = 105000
	return r
}

func TestConsoleSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf, 5)
	require.NoError(t, sink.Publish(context.Background(), sampleResults()))

	out := buf.String()
	assert.Contains(t, out, "BACKTEST RESULTS")
	assert.Contains(t, out, "BTC-USD, ETH-USD")
	assert.Contains(t, out, "13.64%")
	assert.Contains(t, out, "5.00%")
	assert.Contains(t, out, "OPEN POSITIONS")
	assert.Contains(t, out, "LAST 2 TRADES")
	assert.Contains(t, out, "INSUFFICIENT_FUNDS=2")

	assert.Error(t, sink.Publish(context.Background(), nil))
}

func TestConsoleSinkHidesTrades(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewConsoleSink(&buf, 0).Publish(context.Background(), sampleResults()))
	assert.NotContains(t, buf.String(), "TRADES")
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVSink(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewCSVSink(dir).Publish(context.Background(), sampleResults()))

	trades := readCSV(t, filepath.Join(dir, TradesCSVFile))
	require.Len(t, trades, 4) // header, two trades, summary
	assert.Equal(t, "Symbol", trades[0][0])
	assert.Equal(t, "BTC-USD", trades[1][0])
	assert.Equal(t, "W", trades[1][11])
	assert.Equal(t, "L", trades[2][11])
	assert.Equal(t, "SUMMARY", trades[3][0])
	assert.Contains(t, trades[3][11], "max_drawdown=13.64%")

	equity := readCSV(t, filepath.Join(dir, EquityCSVFile))
	require.Len(t, equity, 5)
	assert.Equal(t, "95000.00000000", equity[3][4])
}

func TestJSONSink(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewJSONSink(dir).Publish(context.Background(), sampleResults()))

	data, err := os.ReadFile(filepath.Join(dir, SummaryJSONFile))
	require.NoError(t, err)
	var got RunSummary
	require.NoError(t, json.Unmarshal(data, &got))

	assert.InDelta(t, 13.636, got.Performance.MaxDrawdownPct, 0.01)
	assert.InDelta(t, 5.0, got.Performance.TotalReturnPct, 1e-9)
	assert.Equal(t, []string{"BTC-USD", "ETH-USD"}, got.Symbols)
	assert.Equal(t, 14, got.Parameters.ATRPeriod)
	assert.Equal(t, "on_top", got.Parameters.CommissionMode)
	assert.Equal(t, 2, got.TotalTrades)
	require.Len(t, got.OpenPositions, 1)
	assert.Equal(t, "120", got.OpenPositions[0].EntryPrice)
	assert.Equal(t, 2, got.Skipped["INSUFFICIENT_FUNDS"])
	require.NotNil(t, got.ProfitFactor)

	_, err = os.Stat(filepath.Join(dir, SummaryJSONFile+".tmp"))
	assert.True(t, os.IsNotExist(err), "temp file is renamed away")
}

func TestRunSummaryUnboundedProfitFactor(t *testing.T) {
	r := sampleResults()
	r.ProfitFactor = math.Inf(1)
	s := NewRunSummary(r)
	assert.Nil(t, s.ProfitFactor)

	_, err := json.Marshal(s)
	assert.NoError(t, err)
}

func TestExcelSink(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewExcelSink(dir).Publish(context.Background(), sampleResults()))

	fx, err := excelize.OpenFile(filepath.Join(dir, WorkbookFile))
	require.NoError(t, err)
	defer fx.Close()

	assert.Equal(t, []string{SummarySheet, TradesSheet, EquitySheet, AssetsSheet}, fx.GetSheetList())

	trades, err := fx.GetRows(TradesSheet)
	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.Equal(t, "ETH-USD", trades[2][0])

	equity, err := fx.GetRows(EquitySheet)
	require.NoError(t, err)
	assert.Len(t, equity, 5)

	assets, err := fx.GetRows(AssetsSheet)
	require.NoError(t, err)
	require.Len(t, assets, 3)
	assert.Equal(t, "BTC-USD", assets[1][0])

	summary, err := fx.GetRows(SummarySheet)
	require.NoError(t, err)
	assert.Equal(t, "RUN", summary[0][0])
}

func TestStatsByAsset(t *testing.T) {
	r := sampleResults()
	r.Symbols = append(r.Symbols, "SOL-USD")
	stats := StatsByAsset(r)
	require.Len(t, stats, 3)

	assert.Equal(t, 1, stats[0].Trades)
	assert.Equal(t, 1, stats[0].Wins)
	assert.True(t, stats[0].PnL.Equal(d(97.9)))
	assert.Equal(t, 0, stats[1].Wins)
	assert.Less(t, stats[1].WorstPct, 0.0)

	assert.Equal(t, "SOL-USD", stats[2].Symbol)
	assert.Equal(t, 0, stats[2].Trades)
	assert.Equal(t, 0.0, stats[2].BestPct)
}

type recordingPoster struct {
	embeds []notifications.Embed
}

func (p *recordingPoster) PostEmbeds(_ context.Context, embeds ...notifications.Embed) error {
	p.embeds = append(p.embeds, embeds...)
	return nil
}

func TestNotifySink(t *testing.T) {
	poster := &recordingPoster{}
	sink := NewNotifySink(poster)
	sink.now = func() time.Time { return t0 }

	require.NoError(t, sink.Publish(context.Background(), sampleResults()))
	require.Len(t, poster.embeds, 1)
	e := poster.embeds[0]
	assert.Equal(t, notifications.ColorGreen, e.Color)
	assert.Equal(t, "2024-01-01T00:00:00Z", e.Timestamp)
	assert.Equal(t, "5.00%", e.Fields[2].Value)

	losing := sampleResults()
	losing.TotalReturnPct = -3
	assert.Equal(t, notifications.ColorRed, SummaryEmbed(losing, t0).Color)
}

type stubSink struct {
	name   string
	err    error
	called bool
}

func (s *stubSink) Name() string { return s.name }

func (s *stubSink) Publish(context.Context, *backtest.BacktestResults) error {
	s.called = true
	return s.err
}

func TestReportingManagerContinuesAfterFailure(t *testing.T) {
	bad := &stubSink{name: "bad", err: errors.New("disk full")}
	good := &stubSink{name: "good"}
	m := NewReportingManager(nil, bad, good)

	err := m.ReportResults(context.Background(), sampleResults())
	require.Error(t, err)
	assert.ErrorIs(t, err, bterrors.ErrReporting)
	assert.Contains(t, err.Error(), "disk full")
	assert.True(t, good.called)
}

func TestReportingManagerFromConfig(t *testing.T) {
	dir := t.TempDir()
	extra := &stubSink{name: "extra"}
	m := NewReportingManagerFromConfig(ReportingConfig{JSONEnabled: true, CSVEnabled: true, ExcelEnabled: true}, dir, nil, extra)
	assert.Equal(t, []string{"json", "csv", "excel", "extra"}, m.Sinks())

	require.NoError(t, m.ReportResults(context.Background(), sampleResults()))
	for _, f := range []string{SummaryJSONFile, TradesCSVFile, EquityCSVFile, WorkbookFile} {
		assert.FileExists(t, filepath.Join(dir, f))
	}
}

func TestRunDir(t *testing.T) {
	p := NewDefaultPathManager("")
	now := time.Date(2024, 3, 5, 6, 7, 8, 0, time.UTC)
	assert.Equal(t, filepath.Join("results", "BTC-USD_1h_20240305-060708"), p.RunDir([]string{"btc-usd"}, "1H", now))
	assert.Equal(t, filepath.Join("results", "MULTI3_unknown_20240305-060708"), p.RunDir([]string{"a", "b", "c"}, "", now))
	assert.Equal(t, filepath.Join("results", "UNKNOWN_1h_20240305-060708"), p.RunDir(nil, "1h", now))

	dir := t.TempDir()
	require.NoError(t, p.EnsureDirectoryExists(filepath.Join(dir, "a", "b", "file.csv")))
	assert.DirExists(t, filepath.Join(dir, "a", "b"))
}
