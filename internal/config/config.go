package config

import "time"

// Config holds server configuration values.
type Config struct {
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
	Store  StoreConfig  `mapstructure:"store" yaml:"store"`
	Redis  RedisConfig  `mapstructure:"redis" yaml:"redis"`
	Kafka  KafkaConfig  `mapstructure:"kafka" yaml:"kafka"`
	Media  MediaConfig  `mapstructure:"media" yaml:"media"`
	Auth   AuthConfig   `mapstructure:"auth" yaml:"auth"`
	Live   LiveConfig   `mapstructure:"live" yaml:"live"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	// AuthRatePerSec limits signup/login/OTP attempts server-wide; 0 disables.
	AuthRatePerSec float64 `mapstructure:"auth_rate_per_sec" yaml:"auth_rate_per_sec"`
	AuthBurst      int     `mapstructure:"auth_burst" yaml:"auth_burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // console or json
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Driver        string `mapstructure:"driver" yaml:"driver"` // sqlite or mongo
	SQLitePath    string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	MongoURI      string `mapstructure:"mongo_uri" yaml:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database" yaml:"mongo_database"`
}

// RedisConfig configures the event cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr" yaml:"addr"`
	Password string        `mapstructure:"password" yaml:"password"`
	DB       int           `mapstructure:"db" yaml:"db"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// KafkaConfig configures OTP mail delivery. Without brokers mails are logged.
type KafkaConfig struct {
	Brokers  []string `mapstructure:"brokers" yaml:"brokers"`
	OTPTopic string   `mapstructure:"otp_topic" yaml:"otp_topic"`
}

// MediaConfig configures cover image storage.
type MediaConfig struct {
	Driver    string   `mapstructure:"driver" yaml:"driver"` // local or s3
	LocalDir  string   `mapstructure:"local_dir" yaml:"local_dir"`
	PublicURL string   `mapstructure:"public_url" yaml:"public_url"`
	MaxWidth  int      `mapstructure:"max_width" yaml:"max_width"`
	MaxBytes  int64    `mapstructure:"max_bytes" yaml:"max_bytes"`
	S3        S3Config `mapstructure:"s3" yaml:"s3"`
}

// S3Config holds configuration for S3-compatible storage.
type S3Config struct {
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	Region          string `mapstructure:"region" yaml:"region"`
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style" yaml:"use_path_style"`
	PublicURL       string `mapstructure:"public_url" yaml:"public_url"`
}

// AuthConfig configures tokens and OTP signup.
type AuthConfig struct {
	JWTSecret    string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer    string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience  string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	TokenTTL     time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
	CookieName   string        `mapstructure:"cookie_name" yaml:"cookie_name"`
	CookieSecure bool          `mapstructure:"cookie_secure" yaml:"cookie_secure"`
	OTPTTL       time.Duration `mapstructure:"otp_ttl" yaml:"otp_ttl"`
}

// LiveConfig configures the live attendance socket.
type LiveConfig struct {
	ResetOnStart    bool          `mapstructure:"reset_on_start" yaml:"reset_on_start"`
	OpTimeout       time.Duration `mapstructure:"op_timeout" yaml:"op_timeout"`
	ClientBuffer    int           `mapstructure:"client_buffer" yaml:"client_buffer"`
	RatePerSec      float64       `mapstructure:"rate_per_sec" yaml:"rate_per_sec"`
	Burst           int           `mapstructure:"burst" yaml:"burst"`
	MaxMessageBytes int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   5 * time.Second,
			AllowedOrigins:    []string{"http://localhost:5173"},
			AuthRatePerSec:    5,
			AuthBurst:         10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Store: StoreConfig{
			Driver:        "sqlite",
			SQLitePath:    "eventlify.db",
			MongoDatabase: "eventlify",
		},
		Redis: RedisConfig{
			TTL: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			OTPTopic: "eventlify.mail.otp",
		},
		Media: MediaConfig{
			Driver:    "local",
			LocalDir:  "uploads",
			PublicURL: "/uploads",
			MaxWidth:  1600,
			MaxBytes:  10 << 20,
			S3: S3Config{
				Region: "us-east-1",
			},
		},
		Auth: AuthConfig{
			JWTSecret:   "change-me",
			JWTIssuer:   "eventlify",
			JWTAudience: "eventlify-web",
			TokenTTL:    7 * 24 * time.Hour,
			CookieName:  "token",
			OTPTTL:      10 * time.Minute,
		},
		Live: LiveConfig{
			ResetOnStart:    true,
			OpTimeout:       5 * time.Second,
			ClientBuffer:    32,
			RatePerSec:      20,
			Burst:           40,
			MaxMessageBytes: 4096,
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// Only the settings exposed as command-line flags are considered.
func (c *Config) UpdateFrom(other Config) {
	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
	if other.Server.ReadHeaderTimeout != 0 {
		c.Server.ReadHeaderTimeout = other.Server.ReadHeaderTimeout
	}
	if other.Server.ShutdownTimeout != 0 {
		c.Server.ShutdownTimeout = other.Server.ShutdownTimeout
	}
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.Store.Driver != "" {
		c.Store.Driver = other.Store.Driver
	}
	if other.Store.SQLitePath != "" {
		c.Store.SQLitePath = other.Store.SQLitePath
	}
}
