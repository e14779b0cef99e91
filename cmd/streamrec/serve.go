package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"streamrec"
	"streamrec/internal/history/clickhouse"
	"streamrec/internal/logger"
	"streamrec/internal/registry"
	storefactory "streamrec/internal/store/factory"
)

func newServeCmd() *cobra.Command {
	var f ServeFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the recording daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(f)
		},
	}
	cmd.Flags().StringVarP(&f.ConfigPath, "config", "c", "streamrec.toml", "path to TOML config")
	cmd.Flags().StringVar(&f.Listen, "listen", "", "API listen address (overrides config)")
	cmd.Flags().StringVar(&f.MetricsListen, "metrics-listen", "", "metrics listen address (overrides config)")
	return cmd
}

func runServe(f ServeFlags) error {
	fc, err := streamrec.LoadConfig(f.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(logger.New(fc.LogLevel))
	mgr := streamrec.NewWithLogLevel(fc.LogLevel)
	mgr.SetDefaults(fc.RecorderDefaults())

	if fc.StoreDSN != "" {
		st, err := storefactory.NewFromDSN(fc.StoreDSN)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = st.EnsureSchema(ctx)
		cancel()
		if err != nil {
			return fmt.Errorf("ensure store schema: %w", err)
		}
		defer func() { _ = st.Close() }()
		mgr.SetStore(st)
	}

	if fc.HistoryAddr != "" {
		table := fc.HistoryTable
		if table == "" {
			table = "recording_history"
		}
		sink, err := clickhouse.New(fc.HistoryAddr, table)
		if err != nil {
			return fmt.Errorf("open history sink: %w", err)
		}
		defer func() { _ = sink.Close() }()
		mgr.SetHistorySink(sink)
	}

	specs, err := fc.Specs()
	if err != nil {
		return err
	}
	for _, s := range specs {
		if err := mgr.Register(s); err != nil {
			return fmt.Errorf("register stream %s: %w", s.Name, err)
		}
		if err := mgr.StartRecording(s.Name); err != nil {
			slog.Warn("failed to start configured stream", "name", s.Name, "err", err)
		}
	}

	var regClient *registry.Client
	if fc.RegistryURL != "" {
		regClient = mgr.NewRegistryClient(fc.RegistryURL)
	}

	listen := f.Listen
	if listen == "" {
		listen = fc.Listen
	}
	if listen == "" {
		listen = ":8080"
	}
	srv, err := streamrec.NewHTTPServer(listen, "/api", mgr, regClient)
	if err != nil {
		return fmt.Errorf("start API server: %w", err)
	}
	slog.Info("API server listening", "addr", listen)

	metricsListen := f.MetricsListen
	if metricsListen == "" {
		metricsListen = fc.MetricsListen
	}
	if metricsListen != "" {
		if err := streamrec.RegisterMetricsDefault(); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		go func() {
			if err := streamrec.ServeMetrics(metricsListen); err != nil {
				slog.Error("metrics server stopped", "err", err)
			}
		}()
		slog.Info("metrics server listening", "addr", metricsListen)
	}

	// Block until a shutdown signal, then stop every live session so their
	// segments get merged before exit.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig.String())

	mgr.StopAll()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	return nil
}
