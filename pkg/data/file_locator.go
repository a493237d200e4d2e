package data

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultFileLocator looks for, in order:
//
//	<root>/<SYMBOL>.csv
//	<root>/<symbol>.csv
//	<root>/<symbol with - as _>_hourly_data.csv
//	<root>/<SYMBOL>/candles.csv
type DefaultFileLocator struct{}

// NewDefaultFileLocator creates a new default file locator
func NewDefaultFileLocator() *DefaultFileLocator {
	return &DefaultFileLocator{}
}

// Candidates lists the paths tried for symbol
func (f *DefaultFileLocator) Candidates(dataRoot, symbol string) []string {
	upper := strings.ToUpper(symbol)
	lower := strings.ToLower(symbol)
	return []string{
		filepath.Join(dataRoot, upper+".csv"),
		filepath.Join(dataRoot, lower+".csv"),
		filepath.Join(dataRoot, strings.ReplaceAll(lower, "-", "_")+"_hourly_data.csv"),
		filepath.Join(dataRoot, upper, "candles.csv"),
	}
}

// FindDataFile returns the first candidate that exists, or ""
func (f *DefaultFileLocator) FindDataFile(dataRoot, symbol string) string {
	for _, path := range f.Candidates(dataRoot, symbol) {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}
