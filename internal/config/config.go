package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	Store       string
	StateFile   string
	PebbleDir   string
	PgDSN       string
	PoolName    string
	PoolAccount string
	PeerAsset   string
	AssetSymbol string
	AssetName   string
	ReserveX    int64
	ReserveY    int64
	Listen      string
	LogLevel    string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("POOLD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("store", "file")
	v.SetDefault("state-file", "./data/pair_state.json")
	v.SetDefault("pebble-dir", "./data/pebble")
	v.SetDefault("pool-name", "default")
	v.SetDefault("reserve-x", int64(100000))
	v.SetDefault("reserve-y", int64(100000))
	v.SetDefault("asset-symbol", "POOLX")
	v.SetDefault("asset-name", "Pool Asset X")
	v.SetDefault("listen", ":8080")
	v.SetDefault("log-level", "info")

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

	cfg := Config{
		Store:       v.GetString("store"),
		StateFile:   v.GetString("state-file"),
		PebbleDir:   v.GetString("pebble-dir"),
		PgDSN:       v.GetString("pg-dsn"),
		PoolName:    v.GetString("pool-name"),
		PoolAccount: v.GetString("pool-account"),
		PeerAsset:   v.GetString("peer-asset"),
		AssetSymbol: v.GetString("asset-symbol"),
		AssetName:   v.GetString("asset-name"),
		ReserveX:    v.GetInt64("reserve-x"),
		ReserveY:    v.GetInt64("reserve-y"),
		Listen:      v.GetString("listen"),
		LogLevel:    v.GetString("log-level"),
	}

	return cfg, nil
}
