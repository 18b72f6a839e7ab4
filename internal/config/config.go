package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`

	Rooms     RoomsConfig     `mapstructure:"rooms" yaml:"rooms"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
	Provider  ProviderConfig  `mapstructure:"provider" yaml:"provider"`
}

// RoomsConfig tunes the in-memory room registry.
type RoomsConfig struct {
	IdleTTL         time.Duration `mapstructure:"idle_ttl" yaml:"idle_ttl"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
	MaxMessages     int           `mapstructure:"max_messages" yaml:"max_messages"`
	MaxMessageChars int           `mapstructure:"max_message_chars" yaml:"max_message_chars"`
	Shards          int           `mapstructure:"shards" yaml:"shards"`
}

// RateLimitConfig is a per-client token bucket. RPS <= 0 disables limiting.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps" yaml:"rps"`
	Burst int     `mapstructure:"burst" yaml:"burst"`
}

// ProviderConfig points at an OpenAI-compatible speech/translation API.
// An empty APIKey disables the translate and transcribe endpoints.
type ProviderConfig struct {
	BaseURL         string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey          string        `mapstructure:"api_key" yaml:"api_key"`
	TranslateModel  string        `mapstructure:"translate_model" yaml:"translate_model"`
	TranscribeModel string        `mapstructure:"transcribe_model" yaml:"transcribe_model"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxAttempts     int           `mapstructure:"max_attempts" yaml:"max_attempts"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",
		DatabasePath:      "voicelink.db",
		JWTSecret:         "change-me",
		JWTIssuer:         "voicelink",
		JWTAudience:       "voicelink",
		JWTTTL:            24 * time.Hour,
		Rooms: RoomsConfig{
			IdleTTL:         30 * time.Minute,
			SweepInterval:   30 * time.Second,
			MaxMessages:     200,
			MaxMessageChars: 4000,
			Shards:          32,
		},
		RateLimit: RateLimitConfig{
			RPS:   20,
			Burst: 40,
		},
		Provider: ProviderConfig{
			BaseURL:         "https://api.mistral.ai",
			TranslateModel:  "mistral-large-latest",
			TranscribeModel: "voxtral-mini-latest",
			Timeout:         30 * time.Second,
			MaxAttempts:     3,
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Addr == "":
		return errInvalid("addr is required")
	case c.JWTSecret == "":
		return errInvalid("jwt_secret is required")
	case c.Rooms.IdleTTL <= 0:
		return errInvalid("rooms.idle_ttl must be positive")
	case c.Rooms.SweepInterval <= 0:
		return errInvalid("rooms.sweep_interval must be positive")
	case c.Rooms.MaxMessages <= 0:
		return errInvalid("rooms.max_messages must be positive")
	case c.Rooms.Shards <= 0:
		return errInvalid("rooms.shards must be positive")
	}
	return nil
}

type configError string

func (e configError) Error() string { return "invalid config: " + string(e) }

func errInvalid(msg string) error { return configError(msg) }
