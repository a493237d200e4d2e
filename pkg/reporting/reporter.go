package reporting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ducminhle1904/gap-atr-backtest/internal/backtest"
	bterrors "github.com/ducminhle1904/gap-atr-backtest/internal/errors"
	"github.com/ducminhle1904/gap-atr-backtest/internal/logger"
	"go.uber.org/zap"
)

// ReportingManager publishes results to every configured sink. A failing
// sink does not stop the others.
type ReportingManager struct {
	sinks []Sink
	log   *zap.Logger
}

// NewReportingManager creates a manager over the given sinks
func NewReportingManager(log *zap.Logger, sinks ...Sink) *ReportingManager {
	return &ReportingManager{sinks: sinks, log: logger.OrNop(log)}
}

// NewReportingManagerFromConfig builds the console and file sinks cfg
// enables, writing files under runDir. Extra sinks are appended.
func NewReportingManagerFromConfig(cfg ReportingConfig, runDir string, log *zap.Logger, extra ...Sink) *ReportingManager {
	var sinks []Sink
	if cfg.ConsoleEnabled {
		sinks = append(sinks, NewConsoleSink(cfg.ConsoleWriter, 10))
	}
	if cfg.JSONEnabled {
		sinks = append(sinks, NewJSONSink(runDir))
	}
	if cfg.CSVEnabled {
		sinks = append(sinks, NewCSVSink(runDir))
	}
	if cfg.ExcelEnabled {
		sinks = append(sinks, NewExcelSink(runDir))
	}
	sinks = append(sinks, extra...)
	return NewReportingManager(log, sinks...)
}

// Sinks returns the sink names in publish order
func (m *ReportingManager) Sinks() []string {
	names := make([]string, len(m.sinks))
	for i, s := range m.sinks {
		names[i] = s.Name()
	}
	return names
}

// ReportResults publishes to each sink in order and joins the failures
func (m *ReportingManager) ReportResults(ctx context.Context, results *backtest.BacktestResults) error {
	var errs []error
	for _, s := range m.sinks {
		start := time.Now()
		if err := s.Publish(ctx, results); err != nil {
			m.log.Warn("sink failed", zap.String("sink", s.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		m.log.Debug("published results", zap.String("sink", s.Name()), zap.Duration("took", time.Since(start)))
	}
	if len(errs) == 0 {
		return nil
	}
	return bterrors.Wrap(errors.Join(errs...), bterrors.ErrorCategoryReporting, "reporting", "publish")
}
