package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/urfave/cli/v2"

	"github.com/webitel/user-admin-client/config"
	"github.com/webitel/user-admin-client/infra/client/users"
	"github.com/webitel/user-admin-client/internal/tui"
)

const (
	ServiceName      = "user-admin-client"
	ServiceNamespace = "webitel"
)

var (
	version        = "0.0.0"
	commit         = "hash"
	commitDate     = time.Now().String()
	branch         = "branch"
	buildTimestamp = ""
)

func Run() error {
	app := &cli.App{
		Name:    ServiceName,
		Usage:   "Admin client for the user notification hub",
		Version: fmt.Sprintf("%s (%s, %s)", version, commit, branch),
		Flags:   configFlags(),
		Commands: []*cli.Command{
			watchCmd(),
			dashboardCmd(),
			loginCmd(),
			usersCmd(),
		},
	}

	return app.Run(os.Args)
}

// configFlags are shared by every command; they override file and env values.
func configFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config_file", Usage: "Path to the configuration file"},
		&cli.StringFlag{Name: "ws_url", Usage: "WebSocket endpoint of the notification hub"},
		&cli.StringFlag{Name: "api_url", Usage: "Base URL of the user REST resource"},
		&cli.StringFlag{Name: "auth_url", Usage: "Base URL of the login endpoint"},
		&cli.DurationFlag{Name: "reconnect_interval", Usage: "Delay between reconnection attempts"},
		&cli.IntFlag{Name: "max_reconnect_attempts", Usage: "Reconnection budget"},
		&cli.BoolFlag{Name: "debug", Usage: "Verbose connection logging"},
		&cli.StringFlag{Name: "http.addr", Usage: "Listen address of the local API"},
		&cli.StringFlag{Name: "log.level", Usage: "Log level: debug, info, warn, error"},
		&cli.StringFlag{Name: "otel.exporter", Usage: "Telemetry exporter: none, stdout, otlp"},
	}
}

// loader maps the flags the user actually passed onto the config override set.
func loader(c *cli.Context) (*config.Loader, error) {
	fs := config.Flags()
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil || !c.IsSet(f.Name) {
			return
		}
		err = fs.Set(f.Name, c.String(f.Name))
	})
	if err != nil {
		return nil, fmt.Errorf("flags: %w", err)
	}
	return config.NewLoader(c.String("config_file"), fs)
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	l, err := loader(c)
	if err != nil {
		return nil, err
	}
	return l.Load()
}

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:    "watch",
		Aliases: []string{"w"},
		Usage:   "Keep the hub connection open and serve the local API",
		Action: func(c *cli.Context) error {
			l, err := loader(c)
			if err != nil {
				return err
			}
			cfg, err := l.Load()
			if err != nil {
				return err
			}
			app := NewApp(cfg, l)

			if err := app.Start(c.Context); err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			slog.Info("Shutting down...")
			return app.Stop(context.Background())
		},
	}
}

func dashboardCmd() *cli.Command {
	return &cli.Command{
		Name:  "dashboard",
		Usage: "Terminal view of a running watch process",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "consumer", Value: "dashboard", Usage: "Consumer whose unread events are shown"},
			&cli.DurationFlag{Name: "refresh", Value: tui.DefaultRefresh, Usage: "Refresh interval"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			// the terminal belongs to termui; keep logs off it
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			src := tui.NewAPISource("http://"+cfg.HTTP.Addr, c.String("consumer"), &http.Client{Timeout: 5 * time.Second})
			return tui.NewDashboard(src, c.Duration("refresh"), logger).Run(ctx)
		},
	}
}

func loginCmd() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Obtain an access token and store it for later calls",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Required: true},
			&cli.StringFlag{Name: "password", Aliases: []string{"p"}, EnvVars: []string{"USER_ADMIN_PASSWORD"}, Required: true},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			auth := users.NewAuthClient(cfg.AuthURL, &http.Client{Timeout: 15 * time.Second})
			token, err := auth.Login(c.Context, c.String("username"), c.String("password"))
			if err != nil {
				return cli.Exit(users.Classify(err), 1)
			}

			store := users.NewFileStore(cfg.Auth.TokenFile)
			if err := store.Save(token); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Logged in, token stored in %s\n", store.Path())
			return nil
		},
	}
}
