package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"call-insights-go/internal/api"
	"call-insights-go/internal/app"
	"call-insights-go/internal/config"
	"call-insights-go/internal/logger"
)

func main() {
	_ = godotenv.Load() // loads .env

	cfg, err := config.Load()
	if err != nil {
		logger.New().WithError(err).Fatal("invalid configuration")
	}
	log := logger.NewWith(cfg.Environment, cfg.LogLevel)
	log.WithField("service", "call-insights-go").Info("starting service")

	ctx := context.Background()
	a, err := app.New(ctx, cfg, log.WithComponent("app"))
	if err != nil {
		log.WithError(err).Fatal("failed to build pipeline")
	}

	if err := a.Ready(ctx); err != nil {
		// serve anyway; /readyz reports the same until ingest has run
		log.WithError(err).Warn("collections not ready")
	}

	srv := api.New(a.Pipeline, a.Ready, cfg.RequestTimeout, log).WithEvaluator(a.Judge)

	addr := fmt.Sprintf(":%s", cfg.Port)
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}
	log.WithField("addr", addr).Info("listening")
	if err := serve(httpSrv, a); err != nil {
		log.WithError(err).Fatal("server terminated")
	}
}

// serve runs srv until it stops and always closes store before returning,
// so the caller can exit without running deferred calls.
func serve(srv *http.Server, store io.Closer) error {
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	if cerr := store.Close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("close store: %w", cerr))
	}
	return err
}
