package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"notewatch/internal/anomaly"
	"notewatch/internal/casenotes"
	"notewatch/internal/config"
	"notewatch/internal/db"
	"notewatch/internal/logging"
	"notewatch/internal/workspace"
)

// app holds what a single command invocation needs. The store and
// service are opened on first use so that ad hoc commands never touch the
// database.
type app struct {
	layout     *workspace.Layout
	configPath string
	cfg        *config.Config
	base       *zap.Logger
	logger     *zap.Logger
	detector   *anomaly.Detector

	store   *db.Store
	svc     *casenotes.Service
	metrics *http.Server
	closed  bool
}

func newApp() (*app, error) {
	var (
		layout *workspace.Layout
		err    error
	)
	if workspaceDir != "" {
		layout, err = workspace.EnsureAt(workspaceDir)
	} else {
		layout, err = workspace.EnsureDefault()
	}
	if err != nil {
		return nil, fmt.Errorf("workspace initialization failed: %w", err)
	}

	path := configPath
	if path == "" {
		path = layout.ConfigPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}

	logger, err := logging.New(cfg, verbose)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	detector, err := anomaly.NewDetector(anomaly.Config{
		Threshold:   cfg.Anomaly.Threshold,
		MaxFeatures: cfg.Anomaly.MaxFeatures,
	})
	if err != nil {
		return nil, err
	}

	r := &app{
		layout:     layout,
		configPath: path,
		cfg:        cfg,
		base:       logger,
		logger:     logger.Named("cli"),
		detector:   detector,
	}
	if cfg.Metrics.Addr != "" {
		r.serveMetrics(cfg.Metrics.Addr)
	}
	logger.Debug("configuration loaded",
		zap.String("config", path),
		zap.Float64("threshold", cfg.Anomaly.Threshold),
		zap.Int("history_window", cfg.Anomaly.HistoryWindow),
	)
	return r, nil
}

func (r *app) service() (*casenotes.Service, error) {
	if r.svc != nil {
		return r.svc, nil
	}
	store, err := db.Open(r.cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	r.store = store
	r.svc = casenotes.NewService(store, r.detector, r.base, casenotes.Options{
		HistoryWindow: r.cfg.Anomaly.HistoryWindow,
		MaxLength:     r.cfg.Notes.MaxLength,
		Workers:       r.cfg.Pipeline.Workers,
	})
	return r.svc, nil
}

func (r *app) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	r.metrics = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := r.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Warn("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	r.logger.Info("serving metrics", zap.String("addr", addr))
}

func (r *app) close() {
	if r.closed {
		return
	}
	r.closed = true
	if r.svc != nil {
		r.svc.Wait()
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.logger.Warn("close database", zap.Error(err))
		}
	}
	if r.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = r.metrics.Shutdown(ctx)
		cancel()
	}
	_ = r.base.Sync()
}
