package data

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	bterrors "github.com/ducminhle1904/gap-atr-backtest/internal/errors"
	"github.com/ducminhle1904/gap-atr-backtest/internal/logger"
	"github.com/ducminhle1904/gap-atr-backtest/pkg/types"
	"go.uber.org/zap"
)

var fallbackLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// CSVProvider reads one CSV file per symbol from a directory
type CSVProvider struct {
	dataDir string
	format  *CSVColumnMapping
	locator FileLocator
	log     *zap.Logger
}

// NewCSVProvider creates a provider that detects the column layout from the
// header: two columns mean price-only files, anything else the default OHLCV layout.
func NewCSVProvider(dataDir string, log *zap.Logger) *CSVProvider {
	return &CSVProvider{
		dataDir: dataDir,
		locator: NewDefaultFileLocator(),
		log:     logger.OrNop(log),
	}
}

// NewCSVProviderWithFormat creates a new CSV data provider with a fixed format
func NewCSVProviderWithFormat(dataDir string, format CSVColumnMapping, log *zap.Logger) *CSVProvider {
	p := NewCSVProvider(dataDir, log)
	p.format = &format
	return p
}

// GetName returns the name of the data provider
func (p *CSVProvider) GetName() string {
	return "csv"
}

// FetchBars loads the symbol's file and keeps the bars inside [start, end]
func (p *CSVProvider) FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]types.OHLCV, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := p.locator.FindDataFile(p.dataDir, symbol)
	if path == "" {
		return nil, bterrors.Newf(bterrors.ErrorCategoryDataUnavailable, "csv", "fetch",
			"no data file in %s", p.dataDir).WithSymbol(symbol)
	}
	bars, err := p.LoadFile(path)
	if err != nil {
		return nil, bterrors.Wrap(err, bterrors.ErrorCategoryDataUnavailable, "csv", "fetch").WithSymbol(symbol)
	}
	return FilterByDateRange(bars, start, end), nil
}

// LoadFile parses a CSV file. Malformed rows are logged and skipped; row
// order is preserved as written.
func (p *CSVProvider) LoadFile(filename string) ([]types.OHLCV, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", filename, err)
	}
	defer file.Close()
	return p.parse(file, filename)
}

func (p *CSVProvider) parse(r io.Reader, name string) ([]types.OHLCV, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	format := DefaultCSVFormat
	if p.format != nil {
		format = *p.format
	} else if len(header) < DefaultCSVFormat.MinColumns {
		format = PriceOnlyCSVFormat
	}

	var data []types.OHLCV
	lineNum := 1
	skipped := 0
	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("error reading CSV at line %d: %w", lineNum+1, err)
		}
		lineNum++

		candle, err := parseRecord(record, format)
		if err != nil {
			skipped++
			p.log.Warn("skipping malformed row",
				zap.String("file", name),
				zap.Int("line", lineNum),
				zap.Error(err))
			continue
		}
		data = append(data, candle)
	}

	p.log.Debug("csv loaded",
		zap.String("file", name),
		zap.Int("bars", len(data)),
		zap.Int("skipped", skipped))
	return data, nil
}

func parseRecord(record []string, format CSVColumnMapping) (types.OHLCV, error) {
	if len(record) < format.MinColumns {
		return types.OHLCV{}, fmt.Errorf("expected %d columns, got %d", format.MinColumns, len(record))
	}

	timestamp, err := parseTimestamp(record[format.TimestampCol], format.DateFormat)
	if err != nil {
		return types.OHLCV{}, err
	}

	field := func(col int, name string) (float64, error) {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s %q", name, record[col])
		}
		return v, nil
	}

	var c types.OHLCV
	c.Timestamp = timestamp
	if c.Open, err = field(format.OpenCol, "open"); err != nil {
		return types.OHLCV{}, err
	}
	if c.High, err = field(format.HighCol, "high"); err != nil {
		return types.OHLCV{}, err
	}
	if c.Low, err = field(format.LowCol, "low"); err != nil {
		return types.OHLCV{}, err
	}
	if c.Close, err = field(format.CloseCol, "close"); err != nil {
		return types.OHLCV{}, err
	}
	if format.VolumeCol >= 0 && format.VolumeCol < len(record) {
		if c.Volume, err = field(format.VolumeCol, "volume"); err != nil {
			return types.OHLCV{}, err
		}
	}

	if !c.Finite() {
		return types.OHLCV{}, fmt.Errorf("non-finite value")
	}
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return types.OHLCV{}, fmt.Errorf("non-positive price")
	}
	if c.High < c.Low || c.High < c.Open || c.High < c.Close || c.Low > c.Open || c.Low > c.Close {
		return types.OHLCV{}, fmt.Errorf("inconsistent high/low")
	}
	return c, nil
}

// parseTimestamp tries layout, a few common layouts, then unix seconds or milliseconds
func parseTimestamp(s, layout string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if layout != "" {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	for _, l := range fallbackLayouts {
		if ts, err := time.Parse(l, s); err == nil {
			return ts, nil
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e11 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}
