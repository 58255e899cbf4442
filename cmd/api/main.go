package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/budgetbook/internal/api/handlers"
	"github.com/dvloznov/budgetbook/internal/api/middleware"
	"github.com/dvloznov/budgetbook/internal/fx"
	infraBQ "github.com/dvloznov/budgetbook/internal/infra/bigquery"
	"github.com/dvloznov/budgetbook/internal/logger"
	"github.com/dvloznov/budgetbook/internal/reconcile"
	"github.com/dvloznov/budgetbook/internal/report"
)

func main() {
	var (
		port    = flag.String("port", "8080", "HTTP server port")
		project = flag.String("project", os.Getenv("BQ_PROJECT"), "BigQuery project id (or set BQ_PROJECT)")
		dataset = flag.String("dataset", os.Getenv("BQ_DATASET"), "BigQuery dataset id (or set BQ_DATASET)")
		fxTTL   = flag.Duration("fx-ttl", fx.DefaultTTL, "freshness window for cached FX rates")
	)
	flag.Parse()

	log := logger.New()

	if *project == "" || *dataset == "" {
		log.Fatal().Msg("BigQuery project and dataset are required")
	}
	cfg := infraBQ.Config{ProjectID: *project, DatasetID: *dataset}

	ctx := context.Background()
	client, err := bigquery.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	accounts := infraBQ.NewAccountRepositoryWithClient(client, cfg)
	transactions := infraBQ.NewTransactionRepositoryWithClient(client, cfg)
	ledger := infraBQ.NewLedgerRepositoryWithClient(client, cfg)
	fxCache := infraBQ.NewFxCacheRepositoryWithClient(client, cfg)

	resolver := fx.NewResolver(fx.NewERAPIProvider(), fxCache, fx.Config{TTL: *fxTTL})
	builder := report.NewBuilder(accounts, transactions, ledger, resolver)
	engine := reconcile.NewEngine(accounts, transactions, builder)

	mux := http.NewServeMux()
	handlers.NewReportsHandler(builder, engine, log).Register(mux)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	handler := middleware.Chain(mux,
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Logger(log),
		middleware.CORS,
	)

	srv := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
