package config

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the node and the CLI.
type Config struct {
	Node     Node     `mapstructure:"node"`
	Ledger   Ledger   `mapstructure:"ledger"`
	Trading  Trading  `mapstructure:"trading"`
	Client   Client   `mapstructure:"client"`
	Logger   Logger   `mapstructure:"logger"`
	Database Database `mapstructure:"database"`
}

// Node holds the configuration for the HTTP node API.
type Node struct {
	Port         int     `mapstructure:"port"`
	ReadTimeout  int     `mapstructure:"read_timeout"`
	WriteTimeout int     `mapstructure:"write_timeout"`
	Airdrop      Airdrop `mapstructure:"airdrop"`
}

// Airdrop configures the devnet faucet endpoint.
type Airdrop struct {
	Enabled        bool    `mapstructure:"enabled"`
	MaxLamports    uint64  `mapstructure:"max_lamports"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Ledger holds the configuration of the account store and program.
type Ledger struct {
	ProgramID           string           `mapstructure:"program_id"`
	LamportsPerByteYear uint64           `mapstructure:"lamports_per_byte_year"`
	Genesis             []GenesisAccount `mapstructure:"genesis"`
}

// GenesisAccount is an account funded when the database is first created.
type GenesisAccount struct {
	Address  string `mapstructure:"address"`
	Lamports uint64 `mapstructure:"lamports"`
}

// Trading holds the configuration for the bot program rules.
type Trading struct {
	// EnforceRiskBound rejects risk percentages above 100 at creation.
	EnforceRiskBound bool `mapstructure:"enforce_risk_bound"`
}

// Client holds the configuration for botctl talking to a node.
type Client struct {
	BaseURL        string  `mapstructure:"base_url"`
	Keypair        string  `mapstructure:"keypair"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	MaxRetries     int     `mapstructure:"max_retries"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level       string   `mapstructure:"level"`
	Format      string   `mapstructure:"format"`
	OutputPaths []string `mapstructure:"output_paths"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// DefaultProgramID is the address the bot program is deployed under.
const DefaultProgramID = "AaT7QFrQd49Lf2T6UkjrGp7pSW3KvCTQwCLJTPuHUBV9"

// LoadConfig reads configuration from file or environment variables.
// A .env file in the working directory is loaded first; it never overrides
// variables that are already set. A missing config file is not an error.
func LoadConfig(path string) (config Config, err error) {
	if _, statErr := os.Stat(".env"); statErr == nil {
		if err = godotenv.Load(".env"); err != nil {
			return
		}
	}

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Allow environment variables to override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("node.port", 8899)
	v.SetDefault("node.read_timeout", 10)
	v.SetDefault("node.write_timeout", 10)
	v.SetDefault("node.airdrop.enabled", false)
	v.SetDefault("node.airdrop.max_lamports", 5_000_000_000) // 5 SOL
	v.SetDefault("node.airdrop.rate_limit", 1)
	v.SetDefault("node.airdrop.rate_limit_burst", 5)

	v.SetDefault("ledger.program_id", DefaultProgramID)
	v.SetDefault("ledger.lamports_per_byte_year", 3480)

	v.SetDefault("trading.enforce_risk_bound", true)

	v.SetDefault("client.base_url", "http://localhost:8899")
	v.SetDefault("client.keypair", "id.json")
	v.SetDefault("client.rate_limit", 10) // requests per second
	v.SetDefault("client.rate_limit_burst", 5)
	v.SetDefault("client.max_retries", 3)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output_paths", []string{"stderr"})

	v.SetDefault("database.dsn", "botledger.db")
}
