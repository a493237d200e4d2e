package backtest

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/ducminhle1904/gap-atr-backtest/pkg/types"
	"go.uber.org/zap"
)

// SweepJob is one parameter combination to simulate
type SweepJob struct {
	ID     string
	Config Config
}

// SweepResult is the outcome of one SweepJob
type SweepResult struct {
	ID       string
	Config   Config
	Results  *BacktestResults
	Duration time.Duration
	Error    error
}

// SweepGrid lists the values tried for each swept parameter. Empty lists
// keep the base value.
type SweepGrid struct {
	GapThresholds  []float64
	ATRMultipliers []float64
	ATRPeriods     []int
}

// Jobs expands the grid over base in a fixed order
func (g SweepGrid) Jobs(base Config) []SweepJob {
	gaps := g.GapThresholds
	if len(gaps) == 0 {
		gaps = []float64{base.Strategy.GapThreshold}
	}
	mults := g.ATRMultipliers
	if len(mults) == 0 {
		mults = []float64{base.Strategy.ATRMultiplier}
	}
	periods := g.ATRPeriods
	if len(periods) == 0 {
		periods = []int{base.ATRPeriod}
	}

	jobs := make([]SweepJob, 0, len(gaps)*len(mults)*len(periods))
	for _, gap := range gaps {
		for _, mult := range mults {
			for _, period := range periods {
				cfg := base
				cfg.Strategy.GapThreshold = gap
				cfg.Strategy.ATRMultiplier = mult
				cfg.ATRPeriod = period
				jobs = append(jobs, SweepJob{
					ID:     fmt.Sprintf("gap=%.4f_mult=%.2f_atr=%d", gap, mult, period),
					Config: cfg,
				})
			}
		}
	}
	return jobs
}

// WorkerPool runs independent backtests in parallel. Each job owns its engine
// and ledger; only the read-only bar series are shared.
type WorkerPool struct {
	workerCount int
	series      []types.AssetSeries
	log         *zap.Logger
}

// NewWorkerPool creates a pool over the given series. workerCount <= 0 uses
// one worker per CPU.
func NewWorkerPool(workerCount int, series []types.AssetSeries, log *zap.Logger) *WorkerPool {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &WorkerPool{workerCount: workerCount, series: series, log: log}
}

// Run executes every job and returns results in job order. Cancelling ctx
// stops dispatching; jobs that never ran carry ctx's error.
func (wp *WorkerPool) Run(ctx context.Context, jobs []SweepJob) []SweepResult {
	results := make([]SweepResult, len(jobs))
	jobQueue := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < wp.workerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobQueue {
				results[i] = wp.processJob(jobs[i])
			}
		}()
	}

	dispatched := 0
dispatch:
	for i := range jobs {
		if ctx.Err() != nil {
			break
		}
		select {
		case jobQueue <- i:
			dispatched++
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobQueue)
	wg.Wait()

	for i := dispatched; i < len(jobs); i++ {
		results[i] = SweepResult{ID: jobs[i].ID, Config: jobs[i].Config, Error: ctx.Err()}
	}
	return results
}

// processJob runs a single backtest job on its own engine
func (wp *WorkerPool) processJob(job SweepJob) SweepResult {
	start := time.Now()
	result := SweepResult{ID: job.ID, Config: job.Config}

	engine, err := NewBacktestEngine(job.Config, wp.log.Named("sweep").With(zap.String("job", job.ID)))
	if err != nil {
		result.Error = err
		return result
	}
	for _, s := range wp.series {
		if err := engine.AddSeries(s); err != nil {
			result.Error = err
			return result
		}
	}
	result.Results, result.Error = engine.Run()
	result.Duration = time.Since(start)
	return result
}

// RankByReturn sorts successful results by total return, best first. Ties
// keep job order.
func RankByReturn(results []SweepResult) []SweepResult {
	ranked := make([]SweepResult, 0, len(results))
	for _, r := range results {
		if r.Error == nil && r.Results != nil {
			ranked = append(ranked, r)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Results.TotalReturnPct > ranked[j].Results.TotalReturnPct
	})
	return ranked
}
