package bybit

import (
	"context"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
)

// klineCaller performs one /v5/market/kline request
type klineCaller func(ctx context.Context, params map[string]interface{}) (interface{}, error)

// Client wraps the Bybit API client for market data downloads
type Client struct {
	httpClient *bybit_api.Client
	klines     klineCaller
	retry      RetryConfig
	limiter    *RateLimiter
	testnet    bool
}

// Config holds the configuration for the Bybit client. Market data is
// public, so the key pair may be empty.
type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
	BaseURL   string // overrides Testnet when set
	Retry     *RetryConfig
	// RequestsPerSecond caps kline requests, DefaultRequestsPerSecond when <= 0
	RequestsPerSecond int
}

// NewClient creates a new Bybit client
func NewClient(config Config) *Client {
	baseURL := config.BaseURL
	if baseURL == "" {
		if config.Testnet {
			baseURL = bybit_api.TESTNET
		} else {
			baseURL = bybit_api.MAINNET
		}
	}

	httpClient := bybit_api.NewBybitHttpClient(
		config.APIKey,
		config.APISecret,
		bybit_api.WithBaseURL(baseURL),
	)

	retry := DefaultRetryConfig()
	if config.Retry != nil {
		retry = *config.Retry
	}

	rps := config.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}

	c := &Client{
		httpClient: httpClient,
		retry:      retry,
		limiter:    NewRateLimiter(rps, rps),
		testnet:    config.Testnet,
	}
	c.klines = func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		res, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketKline(ctx)
		if err != nil {
			return nil, err
		}
		return res, nil
	}
	return c
}

// IsTestnet returns whether the client is configured for testnet
func (c *Client) IsTestnet() bool {
	return c.testnet
}

// GetEnvironment returns a string describing the current environment
func (c *Client) GetEnvironment() string {
	if c.testnet {
		return "testnet"
	}
	return "mainnet"
}
