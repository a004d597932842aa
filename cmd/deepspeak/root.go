package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/rhuss/deepspeak/pkg/config"
	"github.com/rhuss/deepspeak/pkg/debug"
	"github.com/rhuss/deepspeak/pkg/deepseek"
	"github.com/rhuss/deepspeak/pkg/observability"
)

// app holds state shared by all subcommands.
type app struct {
	configPath  string
	envFile     string
	logLevel    string
	debugCats   string
	metricsAddr string

	cfg        *config.Config
	client     *deepseek.Client
	metricsSrv *http.Server
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "deepspeak",
		Short:         "A command-line client for the DeepSeek chat API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.shutdown()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file path")
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: ERROR, WARN, INFO, DEBUG, TRACE")
	flags.StringVar(&a.debugCats, "debug", "", "debug categories: client, streaming, config, cli, all")
	flags.StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	root.AddCommand(
		newSetupCmd(a),
		newModelsCmd(a),
		newChatCmd(a),
		newReplCmd(a),
	)

	return root
}

// init loads .env and config, configures logging and starts the metrics
// endpoint when requested.
func (a *app) init(cmd *cobra.Command) error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", a.envFile, err)
		}
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.debugCats != "" {
		cfg.Logging.Debug = a.debugCats
	}
	if a.metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = a.metricsAddr
	}
	a.cfg = cfg

	debug.Init(debug.Options{
		Categories: cfg.Logging.Debug,
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cmd.ErrOrStderr(),
	})
	debug.Log("cli", "configuration loaded",
		"base_url", cfg.API.BaseURL,
		"model", cfg.Defaults.Model,
		"timeout", cfg.API.Timeout.String(),
	)

	if cfg.Metrics.Enabled {
		return a.startMetrics(cfg.Metrics.Addr)
	}
	return nil
}

// apiClient returns the shared client, creating it on first use.
func (a *app) apiClient() (*deepseek.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	if a.cfg.API.APIKey == "" {
		return nil, fmt.Errorf("no API key configured; run 'deepspeak setup' or set %s", config.EnvAPIKey)
	}

	cc := a.cfg.ClientConfig()
	cc.WrapTransport = observability.InstrumentRoundTripper

	c, err := deepseek.New(cc)
	if err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}
	a.client = c
	return c, nil
}

func (a *app) startMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	a.metricsSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := a.metricsSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	slog.Info("serving metrics", "addr", ln.Addr().String())
	return nil
}

func (a *app) shutdown() error {
	var errs []error
	if a.client != nil {
		errs = append(errs, a.client.Close())
	}
	if a.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs = append(errs, a.metricsSrv.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
