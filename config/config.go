package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Game     GameConfig     `mapstructure:"game"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	// Driver selects the backend: "gorm" (default) or "pq" for the raw
	// database/sql implementation.
	Driver string `mapstructure:"driver"`
}

// GameConfig carries the tunables shared by all game variants plus the
// Flag-specific betting window.
type GameConfig struct {
	MinEntry          int64         `mapstructure:"min_entry"`
	HouseFeePercent   int           `mapstructure:"house_fee_percent"`
	EntryWindow       time.Duration `mapstructure:"entry_window"`
	ActionWindow      time.Duration `mapstructure:"action_window"`
	CountdownDelay    time.Duration `mapstructure:"countdown_delay"`
	BettingWindow     time.Duration `mapstructure:"betting_window"`
	ScanInterval      time.Duration `mapstructure:"scan_interval"`
	SessionTTL        time.Duration `mapstructure:"session_ttl"`
	FinishedRetention time.Duration `mapstructure:"finished_retention"`
	CleanupDelay      time.Duration `mapstructure:"cleanup_delay"`
	StaleGameGrace    time.Duration `mapstructure:"stale_game_grace"`

	Commission CommissionConfig `mapstructure:"commission"`
}

type CommissionConfig struct {
	// HouseFeeRate is taken from the house fee when the starter is linked
	// to a merchant, credited immediately.
	HouseFeeRate float64 `mapstructure:"house_fee_rate"`
	// MerchantRate and UserRate apply to tagged-credit consumption and
	// mature after MatureDelay.
	MerchantRate  float64       `mapstructure:"merchant_rate"`
	UserRate      float64       `mapstructure:"user_rate"`
	MatureDelay   time.Duration `mapstructure:"mature_delay"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	SweepBatch    int           `mapstructure:"sweep_batch"`
}

func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()

	setDefaults()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}

func setDefaults() {
	viper.SetDefault("game.min_entry", 1)
	viper.SetDefault("game.house_fee_percent", 10)
	viper.SetDefault("game.entry_window", "30s")
	viper.SetDefault("game.action_window", "20s")
	viper.SetDefault("game.countdown_delay", "3s")
	viper.SetDefault("game.betting_window", "45s")
	viper.SetDefault("game.scan_interval", "1s")
	viper.SetDefault("game.session_ttl", "1h")
	viper.SetDefault("game.finished_retention", "60s")
	viper.SetDefault("game.cleanup_delay", "2s")
	viper.SetDefault("game.stale_game_grace", "120s")
	viper.SetDefault("game.commission.house_fee_rate", 0.1)
	viper.SetDefault("game.commission.merchant_rate", 0.02)
	viper.SetDefault("game.commission.user_rate", 0.02)
	viper.SetDefault("game.commission.mature_delay", "24h")
	viper.SetDefault("game.commission.sweep_interval", "1h")
	viper.SetDefault("game.commission.sweep_batch", 100)
}
