package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"vidpullgo/internal/auth"
	"vidpullgo/internal/catalog"
	"vidpullgo/internal/config"
	"vidpullgo/internal/download"
	"vidpullgo/internal/handler"
	"vidpullgo/internal/metrics"
	"vidpullgo/internal/orchestrator"
	"vidpullgo/internal/storage"
	"vidpullgo/internal/websocket"
)

const (
	exitFatal  = 1
	exitConfig = 2
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	if err := newRootCommand().Execute(); err != nil {
		code := exitFatal
		var ee *exitError
		if errors.As(err, &ee) {
			code = ee.code
		}
		os.Exit(code)
	}
}

func newRootCommand() *cobra.Command {
	v := config.New()
	var configFile string

	cmd := &cobra.Command{
		Use:           "vidpull",
		Short:         "Download every video from the media library into a local directory",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ReadFile(v, configFile); err != nil {
				fmt.Fprintln(os.Stderr, err)
				return &exitError{code: exitConfig, err: err}
			}
			cfg, err := config.Load(v)
			if err != nil {
				fmt.Fprintln(os.Stderr, "invalid configuration:", err)
				return &exitError{code: exitConfig, err: err}
			}
			SetupLogger(cfg.LogLevel, cfg.LogFormat)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := run(ctx, cfg); err != nil {
				slog.Error("Run failed", "error", err)
				return &exitError{code: exitFatal, err: err}
			}
			return nil
		},
	}

	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &exitError{code: exitConfig, err: err}
	})

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "config file (yaml or json)")
	flags.String("dir", "", "download directory")
	flags.String("data-dir", "", "directory for run history")
	flags.Int("batch-size", 0, "items downloaded concurrently per batch")
	flags.Int("page-size", 0, "items requested per catalog page (max 100)")
	flags.String("log-level", "", "DEBUG, INFO, WARN or ERROR")
	flags.String("log-format", "", "text or json")
	flags.String("credentials", "", "OAuth client secrets file")
	flags.String("token", "", "stored OAuth token file")
	flags.String("status-addr", "", "serve status, metrics and progress websocket on this address")
	flags.Duration("fetch-timeout", 0, "per video transfer timeout (0 = none)")

	bindFlags(v, cmd, map[string]string{
		"dir":           "download_dir",
		"data-dir":      "data_dir",
		"batch-size":    "batch_size",
		"page-size":     "page_size",
		"log-level":     "log_level",
		"log-format":    "log_format",
		"credentials":   "credentials_file",
		"token":         "token_file",
		"status-addr":   "status_addr",
		"fetch-timeout": "fetch_timeout",
	})
	return cmd
}

// bindFlags only binds flags the user actually set so that unset flags do
// not shadow env and file values with their zero defaults.
func bindFlags(v *viper.Viper, cmd *cobra.Command, keys map[string]string) {
	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		for flag, key := range keys {
			if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
				v.Set(key, f.Value.String())
			}
		}
	}
}

func run(ctx context.Context, cfg config.Config) error {
	creds, err := newCredentials(ctx, cfg)
	if err != nil {
		return err
	}

	store, err := storage.New(cfg.DataDir)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}

	observers := orchestrator.Observers{orchestrator.NewLogObserver(slog.Default()), store, m}

	if cfg.StatusAddr != "" {
		hub := websocket.NewHub()
		hubCtx, cancelHub := context.WithCancel(context.Background())
		hubDone := make(chan struct{})
		go func() {
			hub.Run(hubCtx)
			close(hubDone)
		}()
		defer func() {
			cancelHub()
			<-hubDone
		}()
		observers = append(observers, hub)

		server := &http.Server{Addr: cfg.StatusAddr, Handler: handler.NewRouter(store, hub, reg)}
		go func() {
			slog.Info("Status server starting", "addr", cfg.StatusAddr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("Status server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				slog.Error("Status server forced to shutdown", "error", err)
			}
		}()
	}

	orch := orchestrator.New(
		catalog.New(cfg.CatalogURL, creds, cfg.CatalogTimeout),
		download.New(cfg.FetchTimeout),
		orchestrator.Options{
			BatchSize: cfg.BatchSize,
			PageSize:  cfg.PageSize,
			Observer:  observers,
		},
	)

	counters, err := orch.Run(ctx, cfg.DownloadDir)
	fmt.Printf("Total videos downloaded: %d, files skipped: %d, failed: %d\n",
		counters.Downloaded, counters.Skipped, counters.Failed)
	if catalog.IsUnauthorized(err) {
		return fmt.Errorf("%w: the access token was rejected, refresh %s or re-authorize", err, cfg.TokenFile)
	}
	return err
}

func newCredentials(ctx context.Context, cfg config.Config) (*auth.Provider, error) {
	if cfg.AccessToken != "" {
		return auth.NewStatic(cfg.AccessToken), nil
	}
	return auth.NewFromFiles(context.WithoutCancel(ctx), cfg.CredentialsFile, cfg.TokenFile)
}

func SetupLogger(level slog.Level, format string) {
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	default:
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: "2006-01-02 15:04:05",
			AddSource:  level == slog.LevelDebug,
		})
	}

	slog.SetDefault(slog.New(handler))
}
