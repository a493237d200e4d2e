package monitoring

import (
	"net/http"
	"sync"

	bterrors "github.com/ducminhle1904/gap-atr-backtest/internal/errors"
	"github.com/ducminhle1904/gap-atr-backtest/internal/portfolio"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gap_backtest"

// Recorder turns engine events into Prometheus metrics. It owns its registry
// so several runs in one process never collide.
type Recorder struct {
	registry *prometheus.Registry
	health   *HealthChecker

	fillsTotal     *prometheus.CounterVec
	fillNotional   *prometheus.HistogramVec
	commissionPaid prometheus.Counter
	tradesClosed   *prometheus.CounterVec
	tradeReturn    prometheus.Histogram
	skipsTotal     *prometheus.CounterVec
	equity         prometheus.Gauge
	cash           prometheus.Gauge
	holdings       prometheus.Gauge
	stepsTotal     prometheus.Counter
	openPositions  prometheus.Gauge

	mu   sync.Mutex
	open map[string]struct{}
}

// NewRecorder creates a recorder labelled with the run name
func NewRecorder(run string) *Recorder {
	constLabels := prometheus.Labels{"run": run}
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		health:   NewHealthChecker(),
		open:     make(map[string]struct{}),

		fillsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "fills_total",
			Help: "Executed fills by symbol and side", ConstLabels: constLabels,
		}, []string{"symbol", "side"}),
		fillNotional: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "fill_notional",
			Help:    "Distribution of fill notionals",
			Buckets: prometheus.ExponentialBuckets(100, 4, 8), ConstLabels: constLabels,
		}, []string{"symbol"}),
		commissionPaid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "commission_paid_total",
			Help: "Commission debited across all fills", ConstLabels: constLabels,
		}),
		tradesClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "trades_closed_total",
			Help: "Closed round trips by symbol and outcome", ConstLabels: constLabels,
		}, []string{"symbol", "outcome"}),
		tradeReturn: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "trade_return_pct",
			Help:    "Net return of closed trades in percent",
			Buckets: []float64{-20, -10, -5, -2, 0, 2, 5, 10, 20, 50}, ConstLabels: constLabels,
		}),
		skipsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "skipped_total",
			Help: "Skipped entries by error category", ConstLabels: constLabels,
		}, []string{"category"}),
		equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "equity",
			Help: "Total equity at the latest step", ConstLabels: constLabels,
		}),
		cash: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "cash",
			Help: "Free cash at the latest step", ConstLabels: constLabels,
		}),
		holdings: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "holdings_value",
			Help: "Marked value of open positions at the latest step", ConstLabels: constLabels,
		}),
		stepsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "steps_total",
			Help: "Simulation steps processed", ConstLabels: constLabels,
		}),
		openPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "open_positions",
			Help: "Number of open positions", ConstLabels: constLabels,
		}),
	}
	r.registry.MustRegister(
		r.fillsTotal, r.fillNotional, r.commissionPaid,
		r.tradesClosed, r.tradeReturn, r.skipsTotal,
		r.equity, r.cash, r.holdings, r.stepsTotal, r.openPositions,
	)
	return r
}

// Registry exposes the recorder's registry
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Health returns the run status tracker fed by this recorder
func (r *Recorder) Health() *HealthChecker { return r.health }

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// WriteTextfile dumps the registry for the node exporter textfile collector
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

// OnFill records a buy or sell
func (r *Recorder) OnFill(fill portfolio.Fill) {
	r.fillsTotal.WithLabelValues(fill.Symbol, string(fill.Side)).Inc()
	r.fillNotional.WithLabelValues(fill.Symbol).Observe(fill.Notional.InexactFloat64())
	r.commissionPaid.Add(fill.Commission.InexactFloat64())

	r.mu.Lock()
	if fill.Side == portfolio.SideBuy {
		r.open[fill.Symbol] = struct{}{}
	} else {
		delete(r.open, fill.Symbol)
	}
	r.openPositions.Set(float64(len(r.open)))
	r.mu.Unlock()

	r.health.RecordFill(fill.Timestamp)
}

// OnTradeClosed records the outcome of a round trip
func (r *Recorder) OnTradeClosed(trade portfolio.Trade) {
	outcome := "loss"
	if trade.PnL.IsPositive() {
		outcome = "win"
	}
	r.tradesClosed.WithLabelValues(trade.Symbol, outcome).Inc()
	r.tradeReturn.Observe(trade.ReturnPct())
}

// OnSkip counts a rejected entry by its error category
func (r *Recorder) OnSkip(symbol string, barIndex int, err error) {
	cat, ok := bterrors.CategoryOf(err)
	if !ok {
		cat = "UNKNOWN"
	}
	r.skipsTotal.WithLabelValues(string(cat)).Inc()
	r.health.RecordSkip(symbol, barIndex, err)
}

// OnEquity updates the account gauges once per step
func (r *Recorder) OnEquity(point portfolio.EquityPoint) {
	r.stepsTotal.Inc()
	r.equity.Set(point.Equity.InexactFloat64())
	r.cash.Set(point.Cash.InexactFloat64())
	r.holdings.Set(point.Holdings.InexactFloat64())
	r.health.RecordStep(point.Index, point.Timestamp)
}
