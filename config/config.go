package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "USER_ADMIN"

type Config struct {
	WSURL                string        `mapstructure:"ws_url"`
	APIURL               string        `mapstructure:"api_url"`
	AuthURL              string        `mapstructure:"auth_url"`
	ReconnectInterval    time.Duration `mapstructure:"reconnect_interval"`
	MaxReconnectAttempts int           `mapstructure:"max_reconnect_attempts"`
	Debug                bool          `mapstructure:"debug"`

	HTTP    HTTPConfig    `mapstructure:"http"`
	Log     LogConfig     `mapstructure:"log"`
	AMQP    AMQPConfig    `mapstructure:"amqp"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Breaker BreakerConfig `mapstructure:"breaker"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Otel    OtelConfig    `mapstructure:"otel"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text | json
	Otel   bool   `mapstructure:"otel"`
}

// AMQPConfig enables forwarding of recorded events to a broker when URL is set.
type AMQPConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type AuthConfig struct {
	TokenFile string `mapstructure:"token_file"`
}

type BreakerConfig struct {
	MaxFailures uint32        `mapstructure:"max_failures"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type CacheConfig struct {
	Size int `mapstructure:"size"`
}

// OtelConfig selects where spans and bridged log records go.
type OtelConfig struct {
	Exporter string `mapstructure:"exporter"` // none | stdout | otlp
	Endpoint string `mapstructure:"endpoint"` // host:port of the OTLP/HTTP collector
	Insecure bool   `mapstructure:"insecure"`
}

const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// SlogLevel maps the configured level name to slog, defaulting to info.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ws_url", "ws://localhost:8080/ws/users")
	v.SetDefault("api_url", "http://localhost:8080/api")
	v.SetDefault("auth_url", "http://localhost:8080/auth")
	v.SetDefault("reconnect_interval", 3*time.Second)
	v.SetDefault("max_reconnect_attempts", 5)
	v.SetDefault("debug", false)

	v.SetDefault("http.addr", "127.0.0.1:8090")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.otel", false)

	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.exchange", "user-admin.events")

	v.SetDefault("auth.token_file", ".user-admin-token")

	v.SetDefault("breaker.max_failures", 5)
	v.SetDefault("breaker.timeout", 30*time.Second)

	v.SetDefault("cache.size", 256)

	v.SetDefault("otel.exporter", ExporterNone)
	v.SetDefault("otel.endpoint", "")
	v.SetDefault("otel.insecure", false)
}

// Flags returns the override flag set. Only flags marked Changed take
// precedence over file and environment values.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("user-admin-client", pflag.ContinueOnError)
	fs.String("ws_url", "", "WebSocket endpoint of the notification hub")
	fs.String("api_url", "", "Base URL of the user REST resource")
	fs.String("auth_url", "", "Base URL of the login endpoint")
	fs.Duration("reconnect_interval", 0, "Delay between reconnection attempts")
	fs.Int("max_reconnect_attempts", 0, "Reconnection budget")
	fs.Bool("debug", false, "Verbose connection logging")
	fs.String("http.addr", "", "Listen address of the local API")
	fs.String("log.level", "", "Log level: debug, info, warn, error")
	fs.String("otel.exporter", "", "Telemetry exporter: none, stdout, otlp")
	return fs
}

// Loader reads layered configuration: defaults, YAML file, USER_ADMIN_*
// environment, then changed flags.
type Loader struct {
	v    *viper.Viper
	file string

	mu      sync.Mutex
	current *Config
}

func NewLoader(file string, flags *pflag.FlagSet) (*Loader, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("user-admin")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// an explicit file must exist; the implicit one is optional
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	return &Loader{v: v, file: v.ConfigFileUsed()}, nil
}

// Load decodes the current layered values.
func (l *Loader) Load() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.current = &cfg
	l.mu.Unlock()
	return &cfg, nil
}

// File is the config file in use, empty when running on defaults.
func (l *Loader) File() string { return l.file }

// Watch calls fn with the freshly decoded config every time the file changes.
// Invalid edits are logged and skipped. It is a no-op without a config file.
func (l *Loader) Watch(logger *slog.Logger, fn func(prev, next *Config)) {
	if l.file == "" {
		return
	}

	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		l.mu.Lock()
		prev := l.current
		l.mu.Unlock()

		next, err := l.Load()
		if err != nil {
			logger.Warn("CONFIG_RELOAD_FAILED", "file", e.Name, "error", err)
			return
		}
		logger.Info("CONFIG_RELOADED", "file", e.Name, "op", e.Op.String())
		fn(prev, next)
	})
	l.v.WatchConfig()
}

func (c *Config) Validate() error {
	if c.WSURL == "" {
		return errors.New("config: ws_url is required")
	}
	if !strings.HasPrefix(c.WSURL, "ws://") && !strings.HasPrefix(c.WSURL, "wss://") {
		return fmt.Errorf("config: ws_url must use ws:// or wss://, got %q", c.WSURL)
	}
	if c.MaxReconnectAttempts < 0 {
		return fmt.Errorf("config: max_reconnect_attempts must not be negative, got %d", c.MaxReconnectAttempts)
	}
	switch c.Otel.Exporter {
	case "", ExporterNone, ExporterStdout, ExporterOTLP:
	default:
		return fmt.Errorf("config: unknown otel.exporter %q", c.Otel.Exporter)
	}
	if c.Log.Otel && (c.Otel.Exporter == "" || c.Otel.Exporter == ExporterNone) {
		return errors.New("config: log.otel requires otel.exporter stdout or otlp")
	}
	return nil
}

// LoadConfig is the one-shot form used by commands that do not hot reload.
func LoadConfig(file string, flags *pflag.FlagSet) (*Config, error) {
	l, err := NewLoader(file, flags)
	if err != nil {
		return nil, err
	}
	return l.Load()
}
