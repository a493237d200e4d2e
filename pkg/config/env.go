package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment variable names. Secrets never live in the JSON file.
const (
	EnvPrefix         = "GAPBT_"
	EnvDiscordWebhook = "DISCORD_WEBHOOK_URL"
	EnvBybitAPIKey    = "BYBIT_API_KEY"
	EnvBybitAPISecret = "BYBIT_API_SECRET"
	EnvLogLevel       = "LOG_LEVEL"
	EnvTelegramToken  = "TELEGRAM_BOT_TOKEN"
	EnvTelegramChatID = "TELEGRAM_CHAT_ID"
)

// Secrets holds credentials and other values read only from the environment
type Secrets struct {
	DiscordWebhookURL string
	BybitAPIKey       string
	BybitAPISecret    string
	LogLevel          string
	TelegramToken     string
	TelegramChatID    string
}

// LoadSecrets reads secrets from the process environment
func LoadSecrets() Secrets {
	return loadSecrets(os.Getenv)
}

func loadSecrets(getenv func(string) string) Secrets {
	return Secrets{
		DiscordWebhookURL: getenv(EnvDiscordWebhook),
		BybitAPIKey:       getenv(EnvBybitAPIKey),
		BybitAPISecret:    getenv(EnvBybitAPISecret),
		LogLevel:          getenv(EnvLogLevel),
		TelegramToken:     getenv(EnvTelegramToken),
		TelegramChatID:    getenv(EnvTelegramChatID),
	}
}

// ApplyEnv overrides fields from GAPBT_* variables in the process environment
func (c *BacktestConfig) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *BacktestConfig) applyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return "", false
		}
		v = strings.TrimSpace(v)
		return v, v != ""
	}

	if v, ok := get("SYMBOLS"); ok {
		c.Symbols = SplitSymbols(v)
	}
	strs := map[string]*string{
		"SYMBOL_LIST":     &c.SymbolList,
		"SOURCE":          &c.Source,
		"DATA_DIR":        &c.DataDir,
		"INTERVAL":        &c.Interval,
		"CATEGORY":        &c.Category,
		"START":           &c.Start,
		"END":             &c.End,
		"COMMISSION_MODE": &c.CommissionMode,
		"ATR_SMOOTHING":   &c.ATRSmoothing,
		"TERMINATION":     &c.Termination,
		"OUTPUT_DIR":      &c.Output.Dir,
	}
	for name, dst := range strs {
		if v, ok := get(name); ok {
			*dst = v
		}
	}

	floats := map[string]*float64{
		"INITIAL_CASH":   &c.InitialCash,
		"COMMISSION":     &c.Commission,
		"RISK_FRACTION":  &c.RiskFraction,
		"GAP_THRESHOLD":  &c.GapThreshold,
		"ATR_MULTIPLIER": &c.ATRMultiplier,
	}
	for name, dst := range floats {
		v, ok := get(name)
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s%s=%q: %w", EnvPrefix, name, v, err)
		}
		*dst = f
	}

	ints := map[string]*int{
		"ATR_PERIOD": &c.ATRPeriod,
		"TOP_N":      &c.TopN,
	}
	for name, dst := range ints {
		v, ok := get(name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s=%q: %w", EnvPrefix, name, v, err)
		}
		*dst = n
	}

	if v, ok := get("TESTNET"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sTESTNET=%q: %w", EnvPrefix, v, err)
		}
		c.Testnet = b
	}
	return nil
}

// SplitSymbols parses a comma separated symbol list, dropping blanks
func SplitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToUpper(part))
		}
	}
	return out
}
