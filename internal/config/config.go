package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gregtusar/simfeed/pkg/feed"
	"github.com/gregtusar/simfeed/pkg/secrets"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Feed    feed.Config   `mapstructure:"feed"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Client  ClientConfig  `mapstructure:"client"`
	Logging LoggingConfig `mapstructure:"logging"`
	GCP     GCPConfig     `mapstructure:"gcp"`
}

type ServerConfig struct {
	Port         int     `mapstructure:"port"`
	ReadTimeout  int     `mapstructure:"read_timeout"`
	WriteTimeout int     `mapstructure:"write_timeout"`
	OrderRate    float64 `mapstructure:"order_rate"`
	OrderBurst   int     `mapstructure:"order_burst"`
}

type AuthConfig struct {
	// Enabled requires a signed bearer token on order placement.
	Enabled bool `mapstructure:"enabled"`

	KeyName       string `mapstructure:"key_name"`        // subject claim the client signs with
	PublicKeyPEM  string `mapstructure:"public_key_pem"`  // server: EC public key in PEM format
	PrivateKeyPEM string `mapstructure:"private_key_pem"` // client: EC private key in PEM format
}

type ClientConfig struct {
	ServerURL      string `mapstructure:"server_url"`
	ReconnectDelay int    `mapstructure:"reconnect_delay"`
	MaxReconnects  int    `mapstructure:"max_reconnects"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

type GCPConfig struct {
	ProjectID       string              `mapstructure:"project_id"`
	UseSecrets      bool                `mapstructure:"use_secrets"`
	CredentialsFile string              `mapstructure:"credentials_file"`
	SecretNames     secrets.SecretNames `mapstructure:"secret_names"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/simfeed")
	}

	// Read environment variables, e.g. SIMFEED_FEED_TICK_PERIOD
	v.SetEnvPrefix("SIMFEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; use defaults and environment
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Override with environment variables if set
	overrideFromEnv(&config)

	// Load secrets from GCP if enabled
	if config.GCP.UseSecrets && config.GCP.ProjectID != "" {
		ctx := context.Background()
		logger := logrus.New()
		if err := loadSecretsFromGCP(ctx, &config, logger); err != nil {
			return nil, fmt.Errorf("error loading secrets from GCP: %w", err)
		}
	}

	if err := config.Feed.Validate(); err != nil {
		return nil, fmt.Errorf("invalid feed configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 15)
	v.SetDefault("server.order_rate", 5.0)
	v.SetDefault("server.order_burst", 10)

	// Feed defaults
	d := feed.DefaultConfig()
	v.SetDefault("feed.symbol", d.Symbol)
	v.SetDefault("feed.start_price", d.StartPrice)
	v.SetDefault("feed.price_precision", d.PricePrecision)
	v.SetDefault("feed.tick_period", d.TickPeriod)
	v.SetDefault("feed.candle_period", d.CandlePeriod)
	v.SetDefault("feed.max_ticks", d.MaxTicks)
	v.SetDefault("feed.max_trades", d.MaxTrades)
	v.SetDefault("feed.max_candles", d.MaxCandles)
	v.SetDefault("feed.book_depth", d.BookDepth)
	v.SetDefault("feed.seed_ticks", d.SeedTicks)
	v.SetDefault("feed.seed_candle_size", d.SeedCandleSize)
	v.SetDefault("feed.seed_trades", d.SeedTrades)
	v.SetDefault("feed.trade_probability", d.TradeProbability)
	v.SetDefault("feed.initial_volume", d.InitialVolume)
	v.SetDefault("feed.volume_increment", d.VolumeIncrement)
	v.SetDefault("feed.random_seed", d.RandomSeed)

	v.SetDefault("feed.noise.micro", d.Noise.Micro)
	v.SetDefault("feed.noise.small", d.Noise.Small)
	v.SetDefault("feed.noise.medium", d.Noise.Medium)
	v.SetDefault("feed.noise.shock", d.Noise.Shock)
	v.SetDefault("feed.noise.shock_probability", d.Noise.ShockProbability)
	v.SetDefault("feed.noise.drift", d.Noise.Drift)

	v.SetDefault("feed.book.spread_base", d.Book.SpreadBase)
	v.SetDefault("feed.book.spread_jitter", d.Book.SpreadJitter)
	v.SetDefault("feed.book.qty_min", d.Book.QtyMin)
	v.SetDefault("feed.book.qty_max", d.Book.QtyMax)

	v.SetDefault("feed.trade.price_jitter", d.Trade.PriceJitter)
	v.SetDefault("feed.trade.qty_min", d.Trade.QtyMin)
	v.SetDefault("feed.trade.qty_max", d.Trade.QtyMax)

	v.SetDefault("feed.candle.min_ticks", d.Candle.MinTicks)
	v.SetDefault("feed.candle.volume_min", d.Candle.VolumeMin)
	v.SetDefault("feed.candle.volume_max", d.Candle.VolumeMax)

	// Auth defaults
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.key_name", "simfeed-client")
	v.SetDefault("auth.public_key_pem", "")
	v.SetDefault("auth.private_key_pem", "")

	// Client defaults
	v.SetDefault("client.server_url", "http://localhost:8080")
	v.SetDefault("client.reconnect_delay", 5)
	v.SetDefault("client.max_reconnects", 10)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")

	// GCP defaults
	v.SetDefault("gcp.use_secrets", false)
	v.SetDefault("gcp.project_id", "")
	v.SetDefault("gcp.credentials_file", "")

	// Secret name defaults
	secretNames := secrets.DefaultSecretNames()
	v.SetDefault("gcp.secret_names.auth_public_key", secretNames.AuthPublicKey)
	v.SetDefault("gcp.secret_names.auth_private_key", secretNames.AuthPrivateKey)
}

func overrideFromEnv(config *Config) {
	// Signing keys are usually too long for a yaml file
	if publicKey := os.Getenv("SIMFEED_AUTH_PUBLIC_KEY"); publicKey != "" {
		config.Auth.PublicKeyPEM = publicKey
	}
	if privateKey := os.Getenv("SIMFEED_AUTH_PRIVATE_KEY"); privateKey != "" {
		config.Auth.PrivateKeyPEM = privateKey
	}

	// GCP configuration from environment
	if projectID := os.Getenv("GCP_PROJECT_ID"); projectID != "" {
		config.GCP.ProjectID = projectID
	}
	if useSecrets := os.Getenv("GCP_USE_SECRETS"); useSecrets == "true" {
		config.GCP.UseSecrets = true
	}
	if credentials := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credentials != "" && config.GCP.CredentialsFile == "" {
		config.GCP.CredentialsFile = credentials
	}
}

func loadSecretsFromGCP(ctx context.Context, config *Config, logger *logrus.Logger) error {
	secretManager, err := secrets.NewGCPSecretManager(ctx, config.GCP.ProjectID, config.GCP.CredentialsFile, logger)
	if err != nil {
		return fmt.Errorf("failed to create secret manager: %w", err)
	}
	defer secretManager.Close()

	// Only load secrets if they're not already set
	if config.Auth.PublicKeyPEM == "" {
		config.Auth.PublicKeyPEM = secretManager.GetSecretWithDefault(ctx,
			config.GCP.SecretNames.AuthPublicKey, "")
	}
	if config.Auth.PrivateKeyPEM == "" {
		config.Auth.PrivateKeyPEM = secretManager.GetSecretWithDefault(ctx,
			config.GCP.SecretNames.AuthPrivateKey, "")
	}

	logger.Info("Successfully loaded secrets from GCP Secret Manager")
	return nil
}
