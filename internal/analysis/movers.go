package analysis

import (
	"sort"

	"github.com/ducminhle1904/gap-atr-backtest/pkg/types"
)

// Timeframe is a lookback measured in bars
type Timeframe struct {
	Label string
	Bars  int
}

// DefaultTimeframes are lookbacks over hourly bars
func DefaultTimeframes() []Timeframe {
	return []Timeframe{
		{Label: "6h", Bars: 6},
		{Label: "1d", Bars: 24},
		{Label: "1w", Bars: 168},
		{Label: "2w", Bars: 336},
		{Label: "1mo", Bars: 720},
		{Label: "2mo", Bars: 1440},
	}
}

// Mover holds the trailing returns of one asset
type Mover struct {
	Symbol    string
	Name      string
	Price     float64
	Volume24h float64 // mean volume of the last 24 bars times the latest price
	Returns   map[string]float64
	// Short lists timeframes longer than the available history; their return is 0
	Short []string
}

// ComputeMover measures the return over each timeframe against the close
// tf.Bars bars before the end of the series
func ComputeMover(series types.AssetSeries, name string, timeframes []Timeframe) (Mover, bool) {
	n := series.Len()
	if n == 0 {
		return Mover{}, false
	}
	price := series.Bars[n-1].Close
	m := Mover{
		Symbol:  series.Symbol,
		Name:    name,
		Price:   price,
		Returns: make(map[string]float64, len(timeframes)),
	}

	window := 24
	if n < window {
		window = n
	}
	vol := 0.0
	for _, b := range series.Bars[n-window:] {
		vol += b.Volume
	}
	m.Volume24h = vol / float64(window) * price

	for _, tf := range timeframes {
		if tf.Bars <= 0 || n < tf.Bars {
			m.Returns[tf.Label] = 0
			m.Short = append(m.Short, tf.Label)
			continue
		}
		past := series.Bars[n-tf.Bars].Close
		if past <= 0 {
			m.Returns[tf.Label] = 0
			continue
		}
		m.Returns[tf.Label] = (price - past) / past * 100
	}
	return m, true
}

// TopMovers returns the n best performers over the labelled timeframe
func TopMovers(movers []Mover, label string, n int) []Mover {
	sorted := make([]Mover, len(movers))
	copy(sorted, movers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Returns[label] > sorted[j].Returns[label]
	})
	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
