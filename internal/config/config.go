package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvFileVariable names the environment variable pointing at a dotenv file.
const EnvFileVariable = "ENV_FILE_TO_READ"

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	NodeURL              string
	LogLevel             string
	MaxBlockAge          time.Duration
	BlockRefreshInterval time.Duration
	CommitmentLevel      string
	PoAHeaders           bool
	MetricsHost          string
	MetricsPort          int
	ABIsPath             string
	UseMulticall3        bool
	Multicall3Address    string
	MetricsConfigPath    string
	AddressBookPath      string
	MaxConcurrentCalls   int
	MaxCallsPerSecond    float64
	ExitOnBlockError     bool
	MaxRetries           int
	RetryBackoff         time.Duration
}

// Load merges the env file, config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	if err := loadEnvFile(flags); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	v.SetDefault("max-block-age", 60*time.Second)
	v.SetDefault("block-refresh-interval", 30*time.Second)
	v.SetDefault("block-commitment-level", "finalized")
	v.SetDefault("poa-headers", false)
	v.SetDefault("metrics-host", "")
	v.SetDefault("metrics-port", 8000)
	v.SetDefault("abis-path", "./abis")
	v.SetDefault("use-multicall3", false)
	v.SetDefault("multicall3-address", "0xcA11bde05977b3631167028862bE2a173976CA11")
	v.SetDefault("metrics-config-path", "./metrics.yaml")
	v.SetDefault("max-concurrent-calls", 4)
	v.SetDefault("max-calls-per-second", 0)
	v.SetDefault("exit-on-block-error", true)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	maxBlockAge, err := getDuration(v, "max-block-age")
	if err != nil {
		return Config{}, err
	}
	refresh, err := getDuration(v, "block-refresh-interval")
	if err != nil {
		return Config{}, err
	}
	backoff, err := getDuration(v, "retry-backoff")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		NodeURL:              v.GetString("node-https-url"),
		LogLevel:             v.GetString("log-level"),
		MaxBlockAge:          maxBlockAge,
		BlockRefreshInterval: refresh,
		CommitmentLevel:      strings.ToLower(strings.TrimSpace(v.GetString("block-commitment-level"))),
		PoAHeaders:           v.GetBool("poa-headers"),
		MetricsHost:          v.GetString("metrics-host"),
		MetricsPort:          v.GetInt("metrics-port"),
		ABIsPath:             v.GetString("abis-path"),
		UseMulticall3:        v.GetBool("use-multicall3"),
		Multicall3Address:    v.GetString("multicall3-address"),
		MetricsConfigPath:    v.GetString("metrics-config-path"),
		AddressBookPath:      v.GetString("address-book-path"),
		MaxConcurrentCalls:   v.GetInt("max-concurrent-calls"),
		MaxCallsPerSecond:    v.GetFloat64("max-calls-per-second"),
		ExitOnBlockError:     v.GetBool("exit-on-block-error"),
		MaxRetries:           v.GetInt("max-retries"),
		RetryBackoff:         backoff,
	}

	return cfg, nil
}

// Validate checks the values the run command needs before polling.
func (c Config) Validate() error {
	var errs []error
	if c.NodeURL == "" {
		errs = append(errs, errors.New("node-https-url is required"))
	}
	if c.MaxBlockAge <= 0 {
		errs = append(errs, errors.New("max-block-age must be positive"))
	}
	if c.BlockRefreshInterval <= 0 {
		errs = append(errs, errors.New("block-refresh-interval must be positive"))
	}
	if c.MaxConcurrentCalls < 1 {
		errs = append(errs, errors.New("max-concurrent-calls must be at least 1"))
	}
	if c.MaxCallsPerSecond < 0 {
		errs = append(errs, errors.New("max-calls-per-second must not be negative"))
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid metrics-port %d", c.MetricsPort))
	}
	return errors.Join(errs...)
}

// loadEnvFile loads a dotenv file named by the env-file flag or ENV_FILE_TO_READ.
// Variables already present in the environment win.
func loadEnvFile(flags *pflag.FlagSet) error {
	path := os.Getenv(EnvFileVariable)
	if flags != nil {
		if flag := flags.Lookup("env-file"); flag != nil && flag.Value.String() != "" {
			path = flag.Value.String()
		}
	}
	if path == "" {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("env file %s not found", path)
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}
