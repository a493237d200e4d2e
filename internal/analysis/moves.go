package analysis

import (
	"math"
	"sort"
	"time"

	"github.com/ducminhle1904/gap-atr-backtest/pkg/types"
)

// Move is the close-to-close change of one bar
type Move struct {
	Timestamp time.Time
	Close     float64
	PrevClose float64
	PctChange float64 // percent
}

// Gap is the fractional close-to-close change, computed the way the gap
// strategy computes its entry signal
func (m Move) Gap() float64 {
	return (m.Close - m.PrevClose) / m.PrevClose
}

// Bucket counts moves whose absolute size falls in [Low, High). A move that
// lands exactly on an edge is counted once, in the bucket above it, so bucket
// counts always sum to the number of moves at or above the first edge.
type Bucket struct {
	Low   float64
	High  float64 // +Inf for the open-ended bucket
	Count int
}

// Options tunes AnalyzeMoves
type Options struct {
	MoveThresholdPct float64 // large move cut-off in percent
	GapThreshold     float64 // entry gap as a fraction
	TopN             int
	Buckets          []float64 // bucket edges in percent, the last bucket is open ended
	CountLevels      []float64 // report counts of |change| strictly above each level
}

// DefaultOptions matches the gap strategy defaults: 5% moves, 0.05 gaps
func DefaultOptions() Options {
	return Options{
		MoveThresholdPct: 5,
		GapThreshold:     0.05,
		TopN:             5,
		Buckets:          []float64{5, 10, 15, 20},
		CountLevels:      []float64{1, 2, 3, 4, 5},
	}
}

// MoveStats summarises the close-to-close moves of one asset
type MoveStats struct {
	Symbol     string
	Bars       int
	Changes    int
	LargeMoves int
	TopMoves   []Move
	Buckets    []Bucket

	MeanAbsChange float64
	MaxAbsChange  float64
	CountsAbove   map[float64]int

	GapEntries int
	TopGaps    []Move
}

// AnalyzeMoves computes move statistics for a series. The first bar has no
// previous close and contributes no change.
func AnalyzeMoves(series types.AssetSeries, opts Options) MoveStats {
	stats := MoveStats{
		Symbol:      series.Symbol,
		Bars:        series.Len(),
		CountsAbove: make(map[float64]int, len(opts.CountLevels)),
	}
	for _, lvl := range opts.CountLevels {
		stats.CountsAbove[lvl] = 0
	}
	stats.Buckets = makeBuckets(opts.Buckets)

	moves := Changes(series.Bars)
	stats.Changes = len(moves)
	if len(moves) == 0 {
		return stats
	}

	var large, gaps []Move
	sumAbs := 0.0
	for _, m := range moves {
		abs := math.Abs(m.PctChange)
		sumAbs += abs
		stats.MaxAbsChange = math.Max(stats.MaxAbsChange, abs)

		if abs >= opts.MoveThresholdPct {
			large = append(large, m)
		}
		for _, lvl := range opts.CountLevels {
			if abs > lvl {
				stats.CountsAbove[lvl]++
			}
		}
		for i := range stats.Buckets {
			if abs >= stats.Buckets[i].Low && abs < stats.Buckets[i].High {
				stats.Buckets[i].Count++
				break
			}
		}
		if m.Gap() >= opts.GapThreshold {
			gaps = append(gaps, m)
		}
	}
	stats.MeanAbsChange = sumAbs / float64(len(moves))
	stats.LargeMoves = len(large)
	stats.TopMoves = topByChange(large, opts.TopN)
	stats.GapEntries = len(gaps)
	stats.TopGaps = topByChange(gaps, opts.TopN)
	return stats
}

// Changes returns the close-to-close moves of bars, skipping bars whose
// previous close is not positive
func Changes(bars []types.OHLCV) []Move {
	if len(bars) < 2 {
		return nil
	}
	out := make([]Move, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		if prev <= 0 {
			continue
		}
		out = append(out, Move{
			Timestamp: bars[i].Timestamp,
			Close:     bars[i].Close,
			PrevClose: prev,
			PctChange: (bars[i].Close - prev) / prev * 100,
		})
	}
	return out
}

func makeBuckets(edges []float64) []Bucket {
	if len(edges) == 0 {
		return nil
	}
	out := make([]Bucket, len(edges))
	for i, lo := range edges {
		hi := math.Inf(1)
		if i+1 < len(edges) {
			hi = edges[i+1]
		}
		out[i] = Bucket{Low: lo, High: hi}
	}
	return out
}

// topByChange returns the n largest signed changes, earliest first on ties
func topByChange(moves []Move, n int) []Move {
	if n <= 0 || len(moves) == 0 {
		return nil
	}
	sorted := make([]Move, len(moves))
	copy(sorted, moves)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PctChange > sorted[j].PctChange
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
