package core

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Default endpoints.
const (
	SpotURL          = "https://api.binance.com"
	SpotWSAPIURL     = "wss://ws-api.binance.com:443/ws-api/v3"
	SpotStreamURL    = "wss://stream.binance.com:9443"
	TestnetURL       = "https://testnet.binance.vision"
	TestnetWSAPIURL  = "wss://ws-api.testnet.binance.vision/ws-api/v3"
	TestnetStreamURL = "wss://stream.testnet.binance.vision"
	FuturesURL       = "https://fapi.binance.com"
	FuturesWSAPIURL  = "wss://ws-fapi.binance.com/ws-fapi/v1"
	FuturesStreamURL = "wss://fstream.binance.com"
)

// Key types accepted by Config.KeyType.
const (
	KeyTypeHMAC    = "hmac"
	KeyTypeRSA     = "rsa"
	KeyTypeEd25519 = "ed25519"
)

// ReconnectConfig controls automatic websocket reconnection. It is off unless Enabled is set.
type ReconnectConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" envconfig:"ENABLED"`
	// MaxAttempts of 0 retries until Close is called.
	MaxAttempts int           `json:"max_attempts" yaml:"max_attempts" envconfig:"MAX_ATTEMPTS" validate:"min=0"`
	BaseWait    time.Duration `json:"base_wait" yaml:"base_wait" envconfig:"BASE_WAIT" validate:"min=0"`
	MaxWait     time.Duration `json:"max_wait" yaml:"max_wait" envconfig:"MAX_WAIT" validate:"min=0"`
}

// Config contains every setting shared by the REST, websocket API and stream clients.
type Config struct {
	BaseURL   string `json:"base_url" yaml:"base_url" envconfig:"BASE_URL" validate:"required,url"`
	WSAPIURL  string `json:"ws_api_url" yaml:"ws_api_url" envconfig:"WS_API_URL" validate:"omitempty,url"`
	StreamURL string `json:"stream_url" yaml:"stream_url" envconfig:"STREAM_URL" validate:"omitempty,url"`

	APIKey string `json:"api_key" yaml:"api_key" envconfig:"API_KEY"`
	// SecretKey is used when KeyType is hmac.
	SecretKey string `json:"-" yaml:"secret_key" envconfig:"SECRET_KEY"`
	// PrivateKeyPath points at a PEM or OpenSSH key when KeyType is rsa or ed25519.
	PrivateKeyPath       string `json:"private_key_path" yaml:"private_key_path" envconfig:"PRIVATE_KEY_PATH"`
	PrivateKeyPassphrase string `json:"-" yaml:"private_key_passphrase" envconfig:"PRIVATE_KEY_PASSPHRASE"`
	KeyType              string `json:"key_type" yaml:"key_type" envconfig:"KEY_TYPE" validate:"omitempty,oneof=hmac rsa ed25519"`

	Timeout time.Duration `json:"timeout" yaml:"timeout" envconfig:"TIMEOUT" validate:"min=1ms"`
	// RecvWindow in milliseconds. Zero leaves it out of signed requests.
	RecvWindow     int64 `json:"recv_window" yaml:"recv_window" envconfig:"RECV_WINDOW" validate:"min=0,max=60000"`
	ShowLimitUsage bool  `json:"show_limit_usage" yaml:"show_limit_usage" envconfig:"SHOW_LIMIT_USAGE"`

	// RateLimitRequests of 0 disables client-side pacing.
	RateLimitRequests int           `json:"rate_limit_requests" yaml:"rate_limit_requests" envconfig:"RATE_LIMIT_REQUESTS" validate:"min=0"`
	RateLimitPeriod   time.Duration `json:"rate_limit_period" yaml:"rate_limit_period" envconfig:"RATE_LIMIT_PERIOD" validate:"min=0"`
	// OrderRateLimit of 0 disables pacing of order placement and cancellation.
	OrderRateLimit       int           `json:"order_rate_limit" yaml:"order_rate_limit" envconfig:"ORDER_RATE_LIMIT" validate:"min=0"`
	OrderRateLimitPeriod time.Duration `json:"order_rate_limit_period" yaml:"order_rate_limit_period" envconfig:"ORDER_RATE_LIMIT_PERIOD" validate:"min=0"`

	CircuitBreakerEnabled          bool          `json:"circuit_breaker_enabled" yaml:"circuit_breaker_enabled" envconfig:"CIRCUIT_BREAKER_ENABLED"`
	CircuitBreakerFailThreshold    int           `json:"circuit_breaker_fail_threshold" yaml:"circuit_breaker_fail_threshold" envconfig:"CIRCUIT_BREAKER_FAIL_THRESHOLD"`
	CircuitBreakerSuccessThreshold int           `json:"circuit_breaker_success_threshold" yaml:"circuit_breaker_success_threshold" envconfig:"CIRCUIT_BREAKER_SUCCESS_THRESHOLD"`
	CircuitBreakerTimeout          time.Duration `json:"circuit_breaker_timeout" yaml:"circuit_breaker_timeout" envconfig:"CIRCUIT_BREAKER_TIMEOUT"`

	Reconnect    ReconnectConfig `json:"reconnect" yaml:"reconnect" envconfig:"RECONNECT"`
	PingInterval time.Duration   `json:"ping_interval" yaml:"ping_interval" envconfig:"PING_INTERVAL" validate:"min=0"`

	LogLevel  string `json:"log_level" yaml:"log_level" envconfig:"LOG_LEVEL" validate:"omitempty,oneof=trace debug info warn error disabled"`
	LogFormat string `json:"log_format" yaml:"log_format" envconfig:"LOG_FORMAT" validate:"omitempty,oneof=console json"`
	LogFile   string `json:"log_file" yaml:"log_file" envconfig:"LOG_FILE"`
}

// DefaultConfig returns a spot mainnet configuration.
// Default values: 10s timeout, 5000ms recvWindow, pacing and circuit breaker off,
// reconnect off with 1s-30s backoff prepared, 3 minute ping interval.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:   SpotURL,
		WSAPIURL:  SpotWSAPIURL,
		StreamURL: SpotStreamURL,
		KeyType:   KeyTypeHMAC,

		Timeout:    10 * time.Second,
		RecvWindow: 5000,

		RateLimitPeriod:      time.Minute,
		OrderRateLimitPeriod: 10 * time.Second,

		CircuitBreakerFailThreshold:    5,
		CircuitBreakerSuccessThreshold: 2,
		CircuitBreakerTimeout:          30 * time.Second,

		Reconnect: ReconnectConfig{
			MaxAttempts: 10,
			BaseWait:    time.Second,
			MaxWait:     30 * time.Second,
		},
		PingInterval: 3 * time.Minute,

		LogLevel:  "info",
		LogFormat: "console",
	}
}

// TestnetConfig returns DefaultConfig pointed at the spot testnet.
func TestnetConfig() *Config {
	c := DefaultConfig()
	c.BaseURL = TestnetURL
	c.WSAPIURL = TestnetWSAPIURL
	c.StreamURL = TestnetStreamURL
	return c
}

// FuturesConfig returns DefaultConfig pointed at USDⓈ-M futures.
func FuturesConfig() *Config {
	c := DefaultConfig()
	c.BaseURL = FuturesURL
	c.WSAPIURL = FuturesWSAPIURL
	c.StreamURL = FuturesStreamURL
	return c
}

var validate = validator.New()

// Validate checks field constraints and the cross-field rules validator tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.RateLimitRequests > 0 && c.RateLimitPeriod <= 0 {
		return errors.New("RateLimitPeriod must be positive when RateLimitRequests is set")
	}
	if c.OrderRateLimit > 0 && c.OrderRateLimitPeriod <= 0 {
		return errors.New("OrderRateLimitPeriod must be positive when OrderRateLimit is set")
	}
	if c.CircuitBreakerEnabled {
		if c.CircuitBreakerFailThreshold <= 0 {
			return errors.New("CircuitBreakerFailThreshold must be positive when enabled")
		}
		if c.CircuitBreakerSuccessThreshold <= 0 {
			return errors.New("CircuitBreakerSuccessThreshold must be positive when enabled")
		}
		if c.CircuitBreakerTimeout <= 0 {
			return errors.New("CircuitBreakerTimeout must be positive when enabled")
		}
	}
	if c.Reconnect.Enabled && c.Reconnect.BaseWait <= 0 {
		return errors.New("Reconnect.BaseWait must be positive when enabled")
	}
	return nil
}

// LoadConfig reads a YAML file on top of DefaultConfig and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c := DefaultConfig()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return c, nil
}

// FromEnv fills DefaultConfig from environment variables named PREFIX_FIELD,
// for example BINANCE_API_KEY or BINANCE_RECONNECT_ENABLED.
func FromEnv(prefix string) (*Config, error) {
	c := DefaultConfig()
	if err := envconfig.Process(prefix, c); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return c, nil
}

// WithCredentials sets an HMAC key pair and returns the config for chaining.
func (c *Config) WithCredentials(apiKey, secretKey string) *Config {
	c.APIKey = apiKey
	c.SecretKey = secretKey
	c.KeyType = KeyTypeHMAC
	return c
}

// WithPrivateKey sets an asymmetric key file and returns the config for chaining.
func (c *Config) WithPrivateKey(apiKey, keyType, path, passphrase string) *Config {
	c.APIKey = apiKey
	c.KeyType = keyType
	c.PrivateKeyPath = path
	c.PrivateKeyPassphrase = passphrase
	return c
}

// WithBaseURL sets the REST base URL and returns the config for chaining.
func (c *Config) WithBaseURL(url string) *Config {
	c.BaseURL = url
	return c
}

// WithTimeout sets the request timeout and returns the config for chaining.
func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.Timeout = timeout
	return c
}

// WithRecvWindow sets the recvWindow in milliseconds and returns the config for chaining.
func (c *Config) WithRecvWindow(ms int64) *Config {
	c.RecvWindow = ms
	return c
}

// WithShowLimitUsage toggles rate-limit usage reporting and returns the config for chaining.
func (c *Config) WithShowLimitUsage(show bool) *Config {
	c.ShowLimitUsage = show
	return c
}

// WithRateLimit sets client-side pacing and returns the config for chaining.
func (c *Config) WithRateLimit(requests int, period time.Duration) *Config {
	c.RateLimitRequests = requests
	c.RateLimitPeriod = period
	return c
}

// WithOrderRateLimit paces endpoints that place or cancel orders and returns the config for chaining.
func (c *Config) WithOrderRateLimit(orders int, period time.Duration) *Config {
	c.OrderRateLimit = orders
	c.OrderRateLimitPeriod = period
	return c
}

// WithCircuitBreaker enables the breaker and returns the config for chaining.
func (c *Config) WithCircuitBreaker(failThreshold, successThreshold int, timeout time.Duration) *Config {
	c.CircuitBreakerEnabled = true
	c.CircuitBreakerFailThreshold = failThreshold
	c.CircuitBreakerSuccessThreshold = successThreshold
	c.CircuitBreakerTimeout = timeout
	return c
}

// WithReconnect sets the websocket reconnection policy and returns the config for chaining.
func (c *Config) WithReconnect(rc ReconnectConfig) *Config {
	c.Reconnect = rc
	return c
}
