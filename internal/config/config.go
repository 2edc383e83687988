package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// MinWindow is the floor for the flush window. Shorter windows multiply
// exhausted-window volume without adding billing resolution.
const MinWindow = time.Hour

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL            string
	Protocol          string
	FromBlock         uint64
	ToBlock           uint64
	AssetsFile        string
	BatchSize         uint64
	Window            time.Duration
	MaxCatchupWindows int
	PGDSN             string
	SnapshotFile      string
	Checkpoint        string
	CheckpointEnabled bool
	PriceAPI          string
	PriceAPIKey       string
	PriceRate         float64
	MaxRetries        int
	RetryBackoff      time.Duration
	Sink              string
	Out               string
	CollectorURL      string
	FlushSize         int
	FlushInterval     time.Duration
	LogLevel          string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := newViper()

	v.SetDefault("protocol", "erc20")
	v.SetDefault("batch-size", uint64(2000))
	v.SetDefault("window", time.Hour)
	v.SetDefault("max-catchup-windows", 0)
	v.SetDefault("checkpoint", "./data/checkpoint.json")
	v.SetDefault("checkpoint-enabled", true)
	v.SetDefault("price-rate", 2.0)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("sink", "jsonl")
	v.SetDefault("out", "./data/records.jsonl")
	v.SetDefault("flush-size", 500)
	v.SetDefault("flush-interval", time.Minute)
	v.SetDefault("log-level", "info")

	if err := bindAndRead(v, cfgFile, flags); err != nil {
		return Config{}, err
	}

	cfg := Config{
		RPCURL:            v.GetString("rpc"),
		Protocol:          v.GetString("protocol"),
		FromBlock:         v.GetUint64("from"),
		ToBlock:           v.GetUint64("to"),
		AssetsFile:        v.GetString("assets"),
		BatchSize:         v.GetUint64("batch-size"),
		Window:            v.GetDuration("window"),
		MaxCatchupWindows: v.GetInt("max-catchup-windows"),
		PGDSN:             v.GetString("pg-dsn"),
		SnapshotFile:      v.GetString("snapshot-file"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		PriceAPI:          v.GetString("price-api"),
		PriceAPIKey:       v.GetString("price-api-key"),
		PriceRate:         v.GetFloat64("price-rate"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		Sink:              v.GetString("sink"),
		Out:               v.GetString("out"),
		CollectorURL:      v.GetString("collector-url"),
		FlushSize:         v.GetInt("flush-size"),
		FlushInterval:     v.GetDuration("flush-interval"),
		LogLevel:          v.GetString("log-level"),
	}

	if cfg.Window < MinWindow {
		return Config{}, fmt.Errorf("window %s below minimum %s", cfg.Window, MinWindow)
	}

	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

func bindAndRead(v *viper.Viper, cfgFile string, flags *pflag.FlagSet) error {
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}
