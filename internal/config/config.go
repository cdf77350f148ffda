package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// Defaults applied when the corresponding environment variable is unset.
const (
	DefaultDestinationEndpoint = "https://api.mock-destination-chain.com/submit"
	DefaultAPIKey              = "default-secret-key"
	DefaultPollInterval        = 15 * time.Second
	DefaultConfirmations       = 12
	DefaultMaxBlockRange       = 5000
	DefaultRelayMaxAttempts    = 5
	DefaultRelayTimeout        = 10 * time.Second
	DefaultRecoveryCooldown    = 30 * time.Second
	DefaultRelayConcurrency    = 1
)

// Config holds all runtime settings, sourced from the environment.
type Config struct {
	SourceRPCURL          string
	BridgeContractAddress common.Address

	DestinationEndpoint string
	APIKey              string

	StartBlock    uint64
	PollInterval  time.Duration
	Confirmations uint64
	MaxBlockRange uint64

	// DBPath selects the sqlite file backing the cursor and the
	// processed set. Empty keeps both in memory for the process
	// lifetime.
	DBPath string

	RelayMaxAttempts int
	RelayTimeout     time.Duration
	RelayConcurrency int
	RecoveryCooldown time.Duration

	LogLevel  string
	LogFormat string
}

// FromEnv loads an optional .env file, reads settings from the
// environment, and validates them.
func FromEnv(envPath string) (*Config, error) {
	if err := loadDotEnv(envPath); err != nil {
		return nil, err
	}

	cfg := &Config{
		SourceRPCURL:        os.Getenv("SOURCE_RPC_URL"),
		DestinationEndpoint: envString("DESTINATION_API_ENDPOINT", DefaultDestinationEndpoint),
		APIKey:              envString("API_KEY", DefaultAPIKey),
		DBPath:              os.Getenv("DB_PATH"),
		LogLevel:            envString("LOG_LEVEL", "info"),
		LogFormat:           envString("LOG_FORMAT", "text"),
	}

	addr := os.Getenv("BRIDGE_CONTRACT_ADDRESS")
	if addr == "" {
		return nil, errors.New("BRIDGE_CONTRACT_ADDRESS is required")
	}
	if !common.IsHexAddress(addr) {
		return nil, fmt.Errorf("BRIDGE_CONTRACT_ADDRESS %q is not a valid address", addr)
	}
	cfg.BridgeContractAddress = common.HexToAddress(addr)

	var err error
	if cfg.StartBlock, err = envUint("START_BLOCK", 0); err != nil {
		return nil, err
	}
	if cfg.Confirmations, err = envUint("BLOCK_CONFIRMATIONS", DefaultConfirmations); err != nil {
		return nil, err
	}
	if cfg.MaxBlockRange, err = envUint("MAX_BLOCK_RANGE", DefaultMaxBlockRange); err != nil {
		return nil, err
	}
	if cfg.PollInterval, err = envSeconds("POLL_INTERVAL_SECONDS", DefaultPollInterval); err != nil {
		return nil, err
	}
	if cfg.RelayTimeout, err = envSeconds("RELAY_TIMEOUT_SECONDS", DefaultRelayTimeout); err != nil {
		return nil, err
	}
	if cfg.RecoveryCooldown, err = envSeconds("RECOVERY_COOLDOWN_SECONDS", DefaultRecoveryCooldown); err != nil {
		return nil, err
	}
	if cfg.RelayMaxAttempts, err = envInt("RELAY_MAX_ATTEMPTS", DefaultRelayMaxAttempts); err != nil {
		return nil, err
	}
	if cfg.RelayConcurrency, err = envInt("RELAY_CONCURRENCY", DefaultRelayConcurrency); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate performs small, direct checks on the assembled config.
func (c *Config) Validate() error {
	if c.SourceRPCURL == "" {
		return errors.New("SOURCE_RPC_URL is required")
	}
	if _, err := url.Parse(c.DestinationEndpoint); err != nil {
		return fmt.Errorf("DESTINATION_API_ENDPOINT invalid: %w", err)
	}
	if c.MaxBlockRange == 0 {
		return errors.New("MAX_BLOCK_RANGE must be greater than zero")
	}
	if c.PollInterval <= 0 {
		return errors.New("POLL_INTERVAL_SECONDS must be greater than zero")
	}
	if c.RelayMaxAttempts <= 0 {
		return errors.New("RELAY_MAX_ATTEMPTS must be greater than zero")
	}
	if c.RelayConcurrency <= 0 {
		return errors.New("RELAY_CONCURRENCY must be greater than zero")
	}
	return nil
}

func loadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err == nil {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envUint(key string, fallback uint64) (uint64, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s=%q: %w", key, v, err)
	}
	return n, nil
}

func envInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s=%q: %w", key, v, err)
	}
	return n, nil
}

func envSeconds(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s=%q: %w", key, v, err)
	}
	return time.Duration(n) * time.Second, nil
}
