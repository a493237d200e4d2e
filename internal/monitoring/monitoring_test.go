package monitoring

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	bterrors "github.com/ducminhle1904/gap-atr-backtest/internal/errors"
	"github.com/ducminhle1904/gap-atr-backtest/internal/portfolio"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func buy(symbol string, notional float64) portfolio.Fill {
	return portfolio.Fill{
		Symbol:     symbol,
		Side:       portfolio.SideBuy,
		Size:       decimal.NewFromInt(1),
		Price:      decimal.NewFromFloat(notional),
		Notional:   decimal.NewFromFloat(notional),
		Commission: decimal.NewFromFloat(notional * 0.001),
		Timestamp:  t0,
	}
}

func TestRecorderFillsAndTrades(t *testing.T) {
	r := NewRecorder("test")

	r.OnFill(buy("BTC-USD", 80000))
	r.OnFill(buy("ETH-USD", 16000))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fillsTotal.WithLabelValues("BTC-USD", "BUY")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.openPositions))
	assert.InDelta(t, 96.0, testutil.ToFloat64(r.commissionPaid), 1e-9)

	sell := buy("BTC-USD", 88000)
	sell.Side = portfolio.SideSell
	r.OnFill(sell)
	r.OnTradeClosed(portfolio.Trade{
		Symbol: "BTC-USD", EntryPrice: decimal.NewFromInt(80000), ExitPrice: decimal.NewFromInt(88000),
		Size: decimal.NewFromInt(1), PnL: decimal.NewFromInt(7832),
	})
	assert.Equal(t, 1.0, testutil.ToFloat64(r.openPositions))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.tradesClosed.WithLabelValues("BTC-USD", "win")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.tradesClosed.WithLabelValues("BTC-USD", "loss")))
}

func TestRecorderSkipsByCategory(t *testing.T) {
	r := NewRecorder("test")
	r.OnSkip("BTC-USD", 3, bterrors.New(bterrors.ErrorCategoryInsufficientFunds, "executor", "buy", "no cash"))
	r.OnSkip("ETH-USD", 4, bterrors.New(bterrors.ErrorCategoryInsufficientFunds, "executor", "buy", "no cash"))
	r.OnSkip("SOL-USD", 5, errors.New("plain"))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.skipsTotal.WithLabelValues("INSUFFICIENT_FUNDS")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.skipsTotal.WithLabelValues("UNKNOWN")))

	st := r.Health().Status()
	require.Len(t, st.RecentSkips, 3)
	assert.Contains(t, st.RecentSkips[0], "BTC-USD@3")
}

func TestRecorderEquity(t *testing.T) {
	r := NewRecorder("test")
	r.OnEquity(portfolio.EquityPoint{
		Index: 0, Timestamp: t0,
		Cash: decimal.NewFromInt(20000), Holdings: decimal.NewFromInt(80000), Equity: decimal.NewFromInt(100000),
	})
	r.OnEquity(portfolio.EquityPoint{
		Index: 1, Timestamp: t0.Add(time.Hour),
		Cash: decimal.NewFromInt(20000), Holdings: decimal.NewFromInt(90000), Equity: decimal.NewFromInt(110000),
	})
	assert.Equal(t, 110000.0, testutil.ToFloat64(r.equity))
	assert.Equal(t, 20000.0, testutil.ToFloat64(r.cash))
	assert.Equal(t, 90000.0, testutil.ToFloat64(r.holdings))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.stepsTotal))

	st := r.Health().Status()
	assert.Equal(t, 2, st.Steps)
	assert.Equal(t, t0.Add(time.Hour), st.SimTime)
	assert.Equal(t, "running", st.Status)
}

func TestRecorderExposition(t *testing.T) {
	r := NewRecorder("expo")
	r.OnFill(buy("BTC-USD", 1000))

	expected := `
# HELP gap_backtest_fills_total Executed fills by symbol and side
# TYPE gap_backtest_fills_total counter
gap_backtest_fills_total{run="expo",side="BUY",symbol="BTC-USD"} 1
`
	require.NoError(t, testutil.GatherAndCompare(r.Registry(), strings.NewReader(expected), "gap_backtest_fills_total"))
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder("file")
	r.OnFill(buy("BTC-USD", 1000))

	path := filepath.Join(t.TempDir(), "gap_backtest.prom")
	require.NoError(t, r.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `gap_backtest_fills_total{run="file",side="BUY",symbol="BTC-USD"} 1`)
}

func TestMuxEndpoints(t *testing.T) {
	r := NewRecorder("http")
	r.OnEquity(portfolio.EquityPoint{Index: 4, Timestamp: t0, Equity: decimal.NewFromInt(1)})
	srv := httptest.NewServer(r.Mux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	var st HealthStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, 5, st.Steps)
}

func TestHealthFinish(t *testing.T) {
	h := NewHealthChecker()
	h.Finish(nil)
	assert.Equal(t, "finished", h.Status().Status)

	h = NewHealthChecker()
	h.Finish(errors.New("boom"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "boom")
}

func TestHealthKeepsRecentSkips(t *testing.T) {
	h := NewHealthChecker()
	for i := 0; i < maxRecentSkips+5; i++ {
		h.RecordSkip("BTC-USD", i, errors.New("x"))
	}
	skips := h.Status().RecentSkips
	require.Len(t, skips, maxRecentSkips)
	assert.Contains(t, skips[0], "BTC-USD@5")
}
