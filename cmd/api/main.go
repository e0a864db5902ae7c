package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/clearledger/reconcile/internal/config"
	"github.com/clearledger/reconcile/internal/database"
	reconHttp "github.com/clearledger/reconcile/internal/http"
	matchingHandler "github.com/clearledger/reconcile/internal/http/matching"
	sessionHandler "github.com/clearledger/reconcile/internal/http/session"
	"github.com/clearledger/reconcile/internal/matching"
	ruleStore "github.com/clearledger/reconcile/internal/matching/store"
	"github.com/clearledger/reconcile/internal/session"
	sessionStore "github.com/clearledger/reconcile/internal/session/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := database.New(context.Background(), cfg.ConnectionString())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	engineCfg := matching.DefaultConfig()
	engineCfg.BatchThreshold = cfg.Matching.BatchThreshold
	engineCfg.SuggestionThreshold = cfg.Matching.SuggestionThreshold
	engineCfg.Workers = cfg.Matching.Workers

	var (
		engine          = matching.NewEngine(engineCfg, slog.Default())
		matchingService = matching.NewService(engine, ruleStore.New(db))
		sessionService  = session.NewService(sessionStore.New(db), matchingService, slog.Default())
	)

	var (
		sessionH  = sessionHandler.NewHandler(sessionService)
		matchingH = matchingHandler.NewHandler(matchingService)
	)

	router := reconHttp.New(sessionH, matchingH)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	slog.Info("starting server", "port", server.Addr)

	if err := server.ListenAndServe(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
