package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	require.Equal(t, "ws://localhost:8080/ws/users", cfg.WSURL)
	require.Equal(t, 3*time.Second, cfg.ReconnectInterval)
	require.Equal(t, 5, cfg.MaxReconnectAttempts)
	require.False(t, cfg.Debug)
	require.Equal(t, uint32(5), cfg.Breaker.MaxFailures)
	require.Equal(t, slog.LevelInfo, cfg.Log.SlogLevel())
}

func TestLoadConfig_Layering(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
ws_url: ws://file.example/ws
max_reconnect_attempts: 2
log:
  level: debug
`), 0o600))

	t.Setenv("USER_ADMIN_WS_URL", "wss://env.example/ws")

	fs := Flags()
	require.NoError(t, fs.Parse([]string{"--max_reconnect_attempts=7"}))

	cfg, err := LoadConfig(file, fs)
	require.NoError(t, err)

	require.Equal(t, "wss://env.example/ws", cfg.WSURL)
	require.Equal(t, 7, cfg.MaxReconnectAttempts)
	require.Equal(t, slog.LevelDebug, cfg.Log.SlogLevel())
	// unchanged flags do not shadow defaults
	require.Equal(t, 3*time.Second, cfg.ReconnectInterval)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{WSURL: "http://nope"}
	require.Error(t, cfg.Validate())

	cfg = &Config{WSURL: "ws://ok", MaxReconnectAttempts: -1}
	require.Error(t, cfg.Validate())

	cfg = &Config{WSURL: "wss://ok"}
	require.NoError(t, cfg.Validate())

	cfg = &Config{WSURL: "wss://ok", Otel: OtelConfig{Exporter: "jaeger"}}
	require.Error(t, cfg.Validate())

	// bridged logs need somewhere to go
	cfg = &Config{WSURL: "wss://ok", Log: LogConfig{Otel: true}}
	require.Error(t, cfg.Validate())

	cfg = &Config{WSURL: "wss://ok", Log: LogConfig{Otel: true}, Otel: OtelConfig{Exporter: ExporterStdout}}
	require.NoError(t, cfg.Validate())
}

func TestLoader_WatchReloads(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(file, []byte("log:\n  level: info\n"), 0o600))

	l, err := NewLoader(file, nil)
	require.NoError(t, err)
	_, err = l.Load()
	require.NoError(t, err)

	levels := make(chan slog.Level, 4)
	l.Watch(slog.Default(), func(_, next *Config) {
		levels <- next.Log.SlogLevel()
	})

	require.NoError(t, os.WriteFile(file, []byte("log:\n  level: error\n"), 0o600))

	require.Eventually(t, func() bool {
		for {
			select {
			case lvl := <-levels:
				if lvl == slog.LevelError {
					return true
				}
			default:
				return false
			}
		}
	}, 5*time.Second, 20*time.Millisecond)
}
