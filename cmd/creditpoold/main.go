package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"creditpool/config"
	"creditpool/observability/logging"
	"creditpool/rpc"
	"creditpool/rpc/middleware"
	"creditpool/storage/poolstore"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "path to creditpoold config (TOML)")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		os.Stderr.WriteString("load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger := logging.Setup("creditpoold", cfg.Env)
	logger.Info("configuration loaded", "config", cfg.Sanitized())

	store, err := poolstore.New(cfg.StoragePath, nil)
	if err != nil {
		logger.Error("open store", "path", cfg.StoragePath, "err", err)
		os.Exit(1)
	}
	defer store.Close()

	book, err := store.RestoreBook()
	if err != nil {
		logger.Error("restore balances", "err", err)
		os.Exit(1)
	}

	server, err := rpc.NewServer(rpc.Config{
		Auth: middleware.AuthConfig{
			Enabled:    cfg.Auth.Enabled,
			HMACSecret: cfg.Auth.HMACSecret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
		},
		RateLimit: middleware.RateLimit{
			Enabled:           cfg.RateLimit.Enabled,
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
		},
		Params: cfg.Pool,
		Model:  cfg.Interest,
	}, book, store, logger)
	if err != nil {
		logger.Error("construct server", "err", err)
		os.Exit(1)
	}
	if err := server.Restore(); err != nil {
		logger.Error("restore pools", "err", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Listen)
		errCh <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error("shutdown", "err", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("serve", "err", err)
			os.Exit(1)
		}
	}
}
