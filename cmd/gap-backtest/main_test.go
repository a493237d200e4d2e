package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ducminhle1904/gap-atr-backtest/pkg/config"
	"github.com/ducminhle1904/gap-atr-backtest/pkg/reporting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseFlags(t *testing.T, args ...string) (*flag.FlagSet, *BacktestFlags) {
	t.Helper()
	fs := flag.NewFlagSet(AppName, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	f := NewBacktestFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs, f
}

func TestApplyOnlyExplicitFlags(t *testing.T) {
	fs, f := parseFlags(t, "-symbols", "btc-usd, eth-usd", "-gap", "0.08", "-excel", "-data-root", "bars")

	cfg := config.Default()
	cfg.ATRMultiplier = 2.5
	f.Apply(fs, cfg)

	assert.Equal(t, []string{"BTC-USD", "ETH-USD"}, cfg.Symbols)
	assert.Equal(t, 0.08, cfg.GapThreshold)
	assert.Equal(t, "bars", cfg.DataDir)
	assert.True(t, cfg.Output.Excel)
	assert.Equal(t, 2.5, cfg.ATRMultiplier, "unset flag keeps the file value")
}

func TestConsoleOnlyDisablesFileSinks(t *testing.T) {
	fs, f := parseFlags(t, "-json", "-csv", "-console-only")
	cfg := config.Default()
	f.Apply(fs, cfg)

	assert.True(t, cfg.Output.Console)
	assert.False(t, cfg.Output.JSON)
	assert.False(t, cfg.Output.CSV)
}

func TestSweepGrid(t *testing.T) {
	_, f := parseFlags(t, "-sweep-gaps", "0.03, 0.05", "-sweep-periods", "7,14")
	assert.True(t, f.Sweeping())

	grid, err := f.SweepGrid()
	require.NoError(t, err)
	assert.Equal(t, []float64{0.03, 0.05}, grid.GapThresholds)
	assert.Empty(t, grid.ATRMultipliers)
	assert.Equal(t, []int{7, 14}, grid.ATRPeriods)

	_, f = parseFlags(t, "-sweep-mults", "2,x")
	assert.Error(t, f.Validate())

	_, f = parseFlags(t)
	assert.False(t, f.Sweeping())
	assert.NoError(t, f.Validate())
}

func TestValidateRejectsBadPeriod(t *testing.T) {
	_, f := parseFlags(t, "-period", "soon")
	err := f.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "soon")
}

// writeBars writes an hourly CSV where a 10% jump at bar 8 triggers an
// entry and a slide from bar 12 hits the stop
func writeBars(t *testing.T, dir, symbol string, base float64) {
	t.Helper()
	closes := []float64{100, 100.5, 101, 100.8, 101.2, 101, 101.4, 101.2, 111.3, 112, 113, 112.5, 100, 99, 98}
	var b strings.Builder
	b.WriteString("timestamp,open,high,low,close,volume\n")
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		c = c * base / 100
		fmt.Fprintf(&b, "%s,%.4f,%.4f,%.4f,%.4f,%d\n",
			t0.Add(time.Duration(i)*time.Hour).Format("2006-01-02 15:04:05"), c, c*1.005, c*0.995, c, 1000+i)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, symbol+".csv"), []byte(b.String()), 0644))
}

func TestRunWritesSummary(t *testing.T) {
	dataDir := t.TempDir()
	outDir := t.TempDir()
	writeBars(t, dataDir, "AAA-USD", 100)
	writeBars(t, dataDir, "BBB-USD", 50)

	var stdout bytes.Buffer
	err := run([]string{
		"-env", filepath.Join(dataDir, "missing.env"),
		"-data-root", dataDir,
		"-symbols", "AAA-USD,BBB-USD,ZZZ-USD",
		"-atr-period", "3",
		"-json",
		"-output", outDir,
	}, &stdout)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "AAA-USD")

	matches, err := filepath.Glob(filepath.Join(outDir, "*", reporting.SummaryJSONFile))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	raw, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	var summary reporting.RunSummary
	require.NoError(t, json.Unmarshal(raw, &summary))
	assert.Equal(t, []string{"AAA-USD", "BBB-USD"}, summary.Symbols, "missing asset is dropped")
	assert.Equal(t, 2, summary.TotalTrades)
}

func TestRunSweep(t *testing.T) {
	dataDir := t.TempDir()
	outDir := t.TempDir()
	writeBars(t, dataDir, "AAA-USD", 100)

	var stdout bytes.Buffer
	err := run([]string{
		"-env", filepath.Join(dataDir, "missing.env"),
		"-data-root", dataDir,
		"-symbols", "AAA-USD",
		"-atr-period", "3",
		"-sweep-gaps", "0.05,0.2",
		"-workers", "2",
		"-output", outDir,
	}, &stdout)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "PARAMETER SWEEP")

	matches, err := filepath.Glob(filepath.Join(outDir, "*", SweepJSONFile))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	var entries []reporting.SweepEntry
	raw, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &entries))
	require.Len(t, entries, 2)
	// the 5% threshold takes one losing trade, so the idle 20% run ranks first
	assert.Equal(t, 0.2, entries[0].GapThreshold)
	assert.Equal(t, 0, entries[0].Trades)
	assert.Equal(t, 0.05, entries[1].GapThreshold)
	assert.Equal(t, 1, entries[1].Trades)
	assert.Less(t, entries[1].TotalReturnPct, 0.0)
}

func TestRunFailsWithoutData(t *testing.T) {
	dir := t.TempDir()
	err := run([]string{
		"-env", filepath.Join(dir, "missing.env"),
		"-data-root", dir,
		"-symbols", "NONE-USD",
	}, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no asset has usable data")
}
