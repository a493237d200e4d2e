package reporting

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/ducminhle1904/gap-atr-backtest/internal/backtest"
)

// RunSummary is the JSON document written for every run
type RunSummary struct {
	Symbols     []string                    `json:"symbols"`
	StartTime   time.Time                   `json:"start_time"`
	EndTime     time.Time                   `json:"end_time"`
	Steps       int                         `json:"steps"`
	Parameters  RunParameters               `json:"parameters"`
	Performance backtest.PerformanceSummary `json:"performance"`

	StartBalance        float64  `json:"start_balance"`
	EndBalance          float64  `json:"end_balance"`
	FinalCash           float64  `json:"final_cash"`
	TotalCommission     float64  `json:"total_commission"`
	AnnualizedReturnPct float64  `json:"annualized_return_pct"`
	SharpeRatio         float64  `json:"sharpe_ratio"`
	ProfitFactor        *float64 `json:"profit_factor"` // null when unbounded
	WinRate             float64  `json:"win_rate_pct"`
	MaxExposure         float64  `json:"max_exposure"`
	AvgExposure         float64  `json:"avg_exposure"`

	TotalTrades   int            `json:"total_trades"`
	WinningTrades int            `json:"winning_trades"`
	LosingTrades  int            `json:"losing_trades"`
	OpenPositions []OpenPosition `json:"open_positions"`
	Skipped       map[string]int `json:"skipped,omitempty"`
}

// RunParameters echoes the engine settings of the run
type RunParameters struct {
	InitialCash    float64 `json:"initial_cash"`
	Commission     float64 `json:"commission"`
	CommissionMode string  `json:"commission_mode"`
	RiskFraction   float64 `json:"risk_fraction"`
	GapThreshold   float64 `json:"gap_threshold"`
	ATRPeriod      int     `json:"atr_period"`
	ATRMultiplier  float64 `json:"atr_multiplier"`
	ATRSmoothing   string  `json:"atr_smoothing"`
	Termination    string  `json:"termination"`
}

// OpenPosition is a holding still open at the end of the run
type OpenPosition struct {
	Symbol     string    `json:"symbol"`
	EntryTime  time.Time `json:"entry_time"`
	EntryPrice string    `json:"entry_price"`
	Size       string    `json:"size"`
}

// NewRunSummary flattens results into the JSON document
func NewRunSummary(r *backtest.BacktestResults) RunSummary {
	cfg := r.Config
	s := RunSummary{
		Symbols:   r.Symbols,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		Steps:     r.Steps,
		Parameters: RunParameters{
			InitialCash:    cfg.InitialCash,
			Commission:     cfg.CommissionRate,
			CommissionMode: string(cfg.CommissionMode),
			RiskFraction:   cfg.RiskFraction,
			GapThreshold:   cfg.Strategy.GapThreshold,
			ATRPeriod:      cfg.ATRPeriod,
			ATRMultiplier:  cfg.Strategy.ATRMultiplier,
			ATRSmoothing:   string(cfg.ATRSmoothing),
			Termination:    string(cfg.Termination),
		},
		Performance:         r.Summary(),
		StartBalance:        r.StartBalance,
		EndBalance:          r.EndBalance,
		FinalCash:           r.FinalCash,
		TotalCommission:     r.TotalCommission,
		AnnualizedReturnPct: r.AnnualizedReturnPct,
		SharpeRatio:         r.SharpeRatio,
		WinRate:             r.WinRate,
		MaxExposure:         r.MaxExposure,
		AvgExposure:         r.AvgExposure,
		TotalTrades:         r.TotalTrades,
		WinningTrades:       r.WinningTrades,
		LosingTrades:        r.LosingTrades,
		OpenPositions:       make([]OpenPosition, 0, len(r.OpenPositions)),
	}
	if !math.IsInf(r.ProfitFactor, 0) && !math.IsNaN(r.ProfitFactor) {
		pf := r.ProfitFactor
		s.ProfitFactor = &pf
	}
	for _, h := range r.OpenPositions {
		s.OpenPositions = append(s.OpenPositions, OpenPosition{
			Symbol:     h.Symbol,
			EntryTime:  h.EntryTime,
			EntryPrice: h.EntryPrice.String(),
			Size:       h.Size.String(),
		})
	}
	if len(r.Skipped) > 0 {
		s.Skipped = make(map[string]int, len(r.Skipped))
		for cat, n := range r.Skipped {
			s.Skipped[string(cat)] = n
		}
	}
	return s
}

// JSONSink writes summary.json into a directory
type JSONSink struct {
	dir string
}

// NewJSONSink creates a JSON sink writing into dir
func NewJSONSink(dir string) *JSONSink {
	return &JSONSink{dir: dir}
}

func (s *JSONSink) Name() string { return "json" }

func (s *JSONSink) Publish(_ context.Context, results *backtest.BacktestResults) error {
	if results == nil {
		return fmt.Errorf("json: nil results")
	}
	return WriteJSONFile(filepath.Join(s.dir, SummaryJSONFile), NewRunSummary(results))
}

// WriteJSONFile marshals v with indentation and replaces path atomically
func WriteJSONFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	// Write to temporary file first
	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to commit %s: %w", path, err)
	}
	return nil
}
