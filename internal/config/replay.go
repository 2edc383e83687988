package config

import (
	"time"

	"github.com/spf13/pflag"
)

// ReplayConfig holds configuration for offline replay of normalized events.
type ReplayConfig struct {
	Protocol          string
	ChainID           uint64
	Input             string
	AssetsFile        string
	Window            time.Duration
	MaxCatchupWindows int
	PGDSN             string
	SnapshotFile      string
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

// LoadReplay merges config file, environment variables, and flags into
// ReplayConfig. Replay accepts sub-hour windows: reprocessing test fixtures
// should not be bound by the production floor.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v := newViper()

	v.SetDefault("protocol", "erc20")
	v.SetDefault("window", time.Hour)
	v.SetDefault("max-catchup-windows", 0)
	v.SetDefault("price-rate", 2.0)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("sink", "jsonl")
	v.SetDefault("out", "./data/records.jsonl")
	v.SetDefault("flush-size", 500)
	v.SetDefault("flush-interval", time.Minute)
	v.SetDefault("log-level", "info")

	if err := bindAndRead(v, cfgFile, flags); err != nil {
		return ReplayConfig{}, err
	}

	return ReplayConfig{
		Protocol:          v.GetString("protocol"),
		ChainID:           v.GetUint64("chain-id"),
		Input:             v.GetString("in"),
		AssetsFile:        v.GetString("assets"),
		Window:            v.GetDuration("window"),
		MaxCatchupWindows: v.GetInt("max-catchup-windows"),
		PGDSN:             v.GetString("pg-dsn"),
		SnapshotFile:      v.GetString("snapshot-file"),
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
	}, nil
}
