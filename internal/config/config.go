// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Twilio     TwilioConfig     `mapstructure:"twilio"`
	GenAI      GenAIConfig      `mapstructure:"genai"`
	FollowUp   FollowUpConfig   `mapstructure:"followup"`
	Middleware MiddlewareConfig `mapstructure:"middleware"`
}

type ServerConfig struct {
	Port         string `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type TwilioConfig struct {
	AccountSID     string               `mapstructure:"account_sid"`
	AuthToken      string               `mapstructure:"auth_token"`
	FromNumber     string               `mapstructure:"from_number"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

type CircuitBreakerConfig struct {
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"`
	Timeout          int     `mapstructure:"timeout"`
	FailureRatio     float64 `mapstructure:"failure_ratio"`
	ConsecutiveFails uint32  `mapstructure:"consecutive_fails"`
}

type GenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	Timeout int    `mapstructure:"timeout"`
}

// FollowUpConfig controls the escalation workflow. Delay is the fixed window
// a contact has to reply before the single reminder goes out.
type FollowUpConfig struct {
	Delay      time.Duration `mapstructure:"delay"`
	AckMessage string        `mapstructure:"ack_message"`
}

type MiddlewareConfig struct {
	RateLimit      int      `mapstructure:"rate_limit"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst"`
	EnableCORS     bool     `mapstructure:"enable_cors"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", 10)
	viper.SetDefault("server.write_timeout", 10)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("twilio.circuit_breaker.max_requests", 3)
	viper.SetDefault("twilio.circuit_breaker.interval", 60)
	viper.SetDefault("twilio.circuit_breaker.timeout", 60)
	viper.SetDefault("twilio.circuit_breaker.failure_ratio", 0.6)
	viper.SetDefault("twilio.circuit_breaker.consecutive_fails", 5)
	viper.SetDefault("genai.model", "gpt-4o-mini")
	viper.SetDefault("genai.timeout", 30)
	viper.SetDefault("followup.delay", "20m")
	viper.SetDefault("followup.ack_message", "Merci pour votre message! Nous vous répondrons sous peu.")
	viper.SetDefault("middleware.rate_limit", 100)
	viper.SetDefault("middleware.rate_limit_burst", 1000)
	viper.SetDefault("middleware.enable_cors", true)
	viper.SetDefault("middleware.allowed_origins", []string{"*"})

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	viper.AutomaticEnv()

	// Secrets are supplied through the environment rather than the file.
	_ = viper.BindEnv("twilio.account_sid", "TWILIO_ACCOUNT_SID")
	_ = viper.BindEnv("twilio.auth_token", "TWILIO_AUTH_TOKEN")
	_ = viper.BindEnv("twilio.from_number", "TWILIO_FROM_NUMBER")
	_ = viper.BindEnv("genai.api_key", "OPENAI_API_KEY")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.FollowUp.Delay <= 0 {
		return nil, fmt.Errorf("followup.delay must be positive, got %s", config.FollowUp.Delay)
	}

	return &config, nil
}

// GetDSN returns PostgreSQL connection string.
func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}
