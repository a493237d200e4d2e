package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ducminhle1904/gap-atr-backtest/internal/backtest"
	bterrors "github.com/ducminhle1904/gap-atr-backtest/internal/errors"
	"github.com/ducminhle1904/gap-atr-backtest/internal/execution"
	"github.com/ducminhle1904/gap-atr-backtest/internal/indicators"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *BacktestConfig {
	cfg := Default()
	cfg.Symbols = []string{"BTC-USD", "ETH-USD"}
	return cfg
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 100000.0, cfg.InitialCash)
	assert.Equal(t, 0.001, cfg.Commission)
	assert.Equal(t, 0.05, cfg.GapThreshold)
	assert.Equal(t, 14, cfg.ATRPeriod)
	assert.Equal(t, 3.0, cfg.ATRMultiplier)
	assert.Equal(t, 0.8, cfg.RiskFraction)
	assert.Equal(t, SourceCSV, cfg.Source)
	assert.True(t, cfg.Output.Console)
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	body := `{"symbols": ["SOL-USD"], "gap_threshold": 0.08, "output": {"excel": true}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"SOL-USD"}, cfg.Symbols)
	assert.Equal(t, 0.08, cfg.GapThreshold)
	assert.Equal(t, 14, cfg.ATRPeriod, "missing fields keep defaults")
	assert.Equal(t, 100000.0, cfg.InitialCash)
	assert.True(t, cfg.Output.Excel)
	require.NoError(t, cfg.Validate())
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	_, err = LoadFile(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cfg.json")
	cfg := validConfig()
	cfg.Termination = "shortest"
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *BacktestConfig)
	}{
		{"no symbols", func(c *BacktestConfig) { c.Symbols = nil }},
		{"blank symbol", func(c *BacktestConfig) { c.Symbols = []string{"BTC-USD", " "} }},
		{"unknown source", func(c *BacktestConfig) { c.Source = "ftp" }},
		{"csv without dir", func(c *BacktestConfig) { c.DataDir = "" }},
		{"zero cash", func(c *BacktestConfig) { c.InitialCash = 0 }},
		{"negative commission", func(c *BacktestConfig) { c.Commission = -0.01 }},
		{"huge commission", func(c *BacktestConfig) { c.Commission = 0.5 }},
		{"bad commission mode", func(c *BacktestConfig) { c.CommissionMode = "inside" }},
		{"zero risk", func(c *BacktestConfig) { c.RiskFraction = 0 }},
		{"risk above one", func(c *BacktestConfig) { c.RiskFraction = 1.5 }},
		{"zero gap", func(c *BacktestConfig) { c.GapThreshold = 0 }},
		{"zero atr period", func(c *BacktestConfig) { c.ATRPeriod = 0 }},
		{"zero multiplier", func(c *BacktestConfig) { c.ATRMultiplier = 0 }},
		{"bad smoothing", func(c *BacktestConfig) { c.ATRSmoothing = "ema" }},
		{"bad termination", func(c *BacktestConfig) { c.Termination = "longest" }},
		{"bad start", func(c *BacktestConfig) { c.Start = "yesterday" }},
		{"end before start", func(c *BacktestConfig) { c.Start, c.End = "2024-02-01", "2024-01-01" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, bterrors.ErrConfig)
		})
	}

	t.Run("symbol list instead of symbols", func(t *testing.T) {
		cfg := validConfig()
		cfg.Symbols = nil
		cfg.SymbolList = "top_crypto_list.csv"
		assert.NoError(t, cfg.Validate())
	})
}

func TestDates(t *testing.T) {
	cfg := validConfig()
	cfg.Start = "2024-01-01"
	cfg.End = "2024-01-31"

	start, err := cfg.StartTime()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), start)

	end, err := cfg.EndTime()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC), end)

	cfg.Start = "2024-01-01T12:00:00Z"
	start, err = cfg.StartTime()
	require.NoError(t, err)
	assert.Equal(t, 12, start.Hour())

	cfg.End = ""
	end, err = cfg.EndTime()
	require.NoError(t, err)
	assert.True(t, end.IsZero())
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"GAPBT_SYMBOLS":       "btc-usd, eth-usd,,",
		"GAPBT_SOURCE":        "bybit",
		"GAPBT_GAP_THRESHOLD": "0.07",
		"GAPBT_ATR_PERIOD":    "20",
		"GAPBT_TESTNET":       "true",
		"GAPBT_OUTPUT_DIR":    "out",
		"GAPBT_START":         "  ",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	cfg.Start = "2024-01-01"
	require.NoError(t, cfg.applyEnv(lookup))
	assert.Equal(t, []string{"BTC-USD", "ETH-USD"}, cfg.Symbols)
	assert.Equal(t, SourceBybit, cfg.Source)
	assert.Equal(t, 0.07, cfg.GapThreshold)
	assert.Equal(t, 20, cfg.ATRPeriod)
	assert.True(t, cfg.Testnet)
	assert.Equal(t, "out", cfg.Output.Dir)
	assert.Equal(t, "2024-01-01", cfg.Start, "blank values do not override")

	env["GAPBT_ATR_PERIOD"] = "twenty"
	assert.Error(t, Default().applyEnv(lookup))
}

func TestLoadSecrets(t *testing.T) {
	env := map[string]string{
		EnvDiscordWebhook: "https://discord.example/hook",
		EnvBybitAPIKey:    "key",
		EnvLogLevel:       "debug",
		EnvTelegramChatID: "42",
	}
	s := loadSecrets(func(k string) string { return env[k] })
	assert.Equal(t, "https://discord.example/hook", s.DiscordWebhookURL)
	assert.Equal(t, "key", s.BybitAPIKey)
	assert.Empty(t, s.BybitAPISecret)
	assert.Equal(t, "debug", s.LogLevel)
	assert.Equal(t, "42", s.TelegramChatID)
	assert.Empty(t, s.TelegramToken)
}

func TestToEngineConfig(t *testing.T) {
	cfg := validConfig()
	cfg.CommissionMode = "net_of_fee"
	cfg.ATRSmoothing = "wilder"
	cfg.Termination = "shortest"
	cfg.GapThreshold = 0.06
	cfg.ATRMultiplier = 2.5

	ec := cfg.ToEngineConfig()
	assert.Equal(t, 100000.0, ec.InitialCash)
	assert.Equal(t, 0.001, ec.CommissionRate)
	assert.Equal(t, execution.CommissionNetOfFee, ec.CommissionMode)
	assert.Equal(t, indicators.SmoothingWilder, ec.ATRSmoothing)
	assert.Equal(t, backtest.TerminateShortest, ec.Termination)
	assert.Equal(t, 0.06, ec.Strategy.GapThreshold)
	assert.Equal(t, 2.5, ec.Strategy.ATRMultiplier)
	assert.Equal(t, 14, ec.ATRPeriod)

	_, err := backtest.NewBacktestEngine(ec, nil)
	assert.NoError(t, err)
}

func TestSplitSymbols(t *testing.T) {
	assert.Equal(t, []string{"BTC", "ETH"}, SplitSymbols(" btc ,eth,"))
	assert.Nil(t, SplitSymbols(""))
}

func TestProviderOptions(t *testing.T) {
	cfg := Default()
	cfg.Source = SourceBybit
	cfg.Category = "linear"
	cfg.Testnet = true

	opts := cfg.ProviderOptions(Secrets{BybitAPIKey: "k", BybitAPISecret: "s"}, nil)
	assert.Equal(t, SourceBybit, opts.Source)
	assert.Equal(t, DefaultDataRoot, opts.DataDir)
	assert.Equal(t, "1h", opts.Interval)
	assert.Equal(t, "linear", opts.Category)
	assert.True(t, opts.Testnet)
	assert.Equal(t, "k", opts.APIKey)
	assert.Equal(t, "s", opts.APISecret)
}
