package data

import (
	"context"
	"time"

	"github.com/ducminhle1904/gap-atr-backtest/pkg/types"
)

// BarProvider loads the historical bars of one asset. Bars come back in
// ascending time order; an empty result means the asset has no data.
type BarProvider interface {
	// FetchBars returns the bars of symbol in [start, end]. Zero bounds are open.
	FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]types.OHLCV, error)

	// GetName returns the name of the data provider
	GetName() string
}

// DataCache interface for caching loaded data
type DataCache interface {
	// Get retrieves data from cache if available
	Get(key string) ([]types.OHLCV, bool)

	// Set stores data in cache
	Set(key string, data []types.OHLCV)

	// Clear removes all cached data
	Clear()

	// Size returns the number of cached entries
	Size() int
}

// CSVColumnMapping defines the column positions for different CSV formats.
// Open, high and low may point at the close column for price-only files.
type CSVColumnMapping struct {
	TimestampCol int
	OpenCol      int
	HighCol      int
	LowCol       int
	CloseCol     int
	VolumeCol    int // -1 when the file has no volume
	MinColumns   int
	DateFormat   string
}

// Predefined CSV formats
var (
	DefaultCSVFormat = CSVColumnMapping{
		TimestampCol: 0,
		OpenCol:      1,
		HighCol:      2,
		LowCol:       3,
		CloseCol:     4,
		VolumeCol:    5,
		MinColumns:   6,
		DateFormat:   "2006-01-02 15:04:05",
	}

	// PriceOnlyCSVFormat reads "timestamp,price_usd" files from the hourly fetcher
	PriceOnlyCSVFormat = CSVColumnMapping{
		TimestampCol: 0,
		OpenCol:      1,
		HighCol:      1,
		LowCol:       1,
		CloseCol:     1,
		VolumeCol:    -1,
		MinColumns:   2,
		DateFormat:   "2006-01-02 15:04:05",
	}
)

// FileLocator finds the data file of a symbol
type FileLocator interface {
	// FindDataFile returns the first existing candidate path, or "" if none
	FindDataFile(dataRoot, symbol string) string
}
