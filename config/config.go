package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Cipher   CipherConfig   `mapstructure:"cipher"`
	OTP      OTPConfig      `mapstructure:"otp"`
	Fraud    FraudConfig    `mapstructure:"fraud"`
	Provider ProviderConfig `mapstructure:"provider"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

// CipherConfig parameterizes the balance cipher.
// Pepper is a server-side secret mixed into every derived key. LegacySalt
// is the fixed salt older wallets were encrypted under; it is used for
// fallback decryption only, never for new writes.
type CipherConfig struct {
	Pepper            string `mapstructure:"pepper"`
	KDFIterations     int    `mapstructure:"kdf_iterations"`
	LegacySaltHex     string `mapstructure:"legacy_salt"`
	ServiceCredential string `mapstructure:"service_credential"`
}

type OTPConfig struct {
	TTL         time.Duration `mapstructure:"ttl"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	CodeLength  int           `mapstructure:"code_length"`
	LockoutFor  time.Duration `mapstructure:"lockout_for"`
}

type FraudConfig struct {
	VelocityWindow      time.Duration `mapstructure:"velocity_window"`
	VelocityThreshold   int           `mapstructure:"velocity_threshold"`
	DeviationMultiplier int64         `mapstructure:"deviation_multiplier"`
	GeoIPDBPath         string        `mapstructure:"geoip_db_path"`
}

type ProviderConfig struct {
	Name          string `mapstructure:"name"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: WV_ (Wallet Vault).
// Nested keys use underscore: WV_DATABASE_HOST, WV_CIPHER_PEPPER, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "wallet_vault")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "wallet-vault")
	v.SetDefault("cipher.pepper", "")
	v.SetDefault("cipher.kdf_iterations", 150000)
	v.SetDefault("cipher.legacy_salt", "")
	v.SetDefault("cipher.service_credential", "")
	v.SetDefault("otp.ttl", "5m")
	v.SetDefault("otp.max_attempts", 3)
	v.SetDefault("otp.code_length", 6)
	v.SetDefault("otp.lockout_for", "15m")
	v.SetDefault("fraud.velocity_window", "10m")
	v.SetDefault("fraud.velocity_threshold", 5)
	v.SetDefault("fraud.deviation_multiplier", 3)
	v.SetDefault("fraud.geoip_db_path", "")
	v.SetDefault("provider.name", "extpay")
	v.SetDefault("provider.webhook_secret", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: WV_DATABASE_HOST -> database.host
	v.SetEnvPrefix("WV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
