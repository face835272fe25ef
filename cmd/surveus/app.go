package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/surveus/surveus/internal/collect"
	"github.com/surveus/surveus/internal/config"
	"github.com/surveus/surveus/internal/decision"
	"github.com/surveus/surveus/internal/forms"
	"github.com/surveus/surveus/internal/genai"
	"github.com/surveus/surveus/internal/mailer"
	"github.com/surveus/surveus/internal/pipeline"
	"github.com/surveus/surveus/internal/provision"
	"github.com/surveus/surveus/internal/question"
	"github.com/surveus/surveus/internal/storage"
)

// app bundles the wired pipeline for one process.
type app struct {
	cfg    config.Config
	store  *storage.Store
	runner *pipeline.Runner
	logger *slog.Logger
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return logger
}

// newApp loads config, validates it for the mode, and wires storage, the
// provider clients, and the pipeline runner. Components a mode never touches
// are left nil: fetch runs without OpenAI or Resend, and serve runs without
// Resend if no key is configured.
func newApp(ctx context.Context, mode string) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	logger := newLogger(cfg)

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	formsClient, err := forms.NewClient(ctx, cfg.Google.CredentialsFile)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating forms client: %w", err)
	}

	var generator pipeline.Generator
	if cfg.OpenAI.APIKey != "" {
		genaiClient := genai.NewClientWithBaseURL(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL)
		generator = question.NewGenerator(genaiClient)
	}

	var notifier pipeline.Notifier
	if cfg.Resend.APIKey != "" {
		notifier = mailer.NewClient(cfg.Resend.APIKey, cfg.Resend.From)
	}

	provisioner := provision.NewProvisioner(formsClient, store, cfg.Google.OperatorEmail)
	collector := collect.NewCollector(formsClient, store)

	runner := pipeline.NewRunner(
		store,
		store,
		decision.NewEvaluator(),
		generator,
		provisioner,
		store,
		notifier,
		collector,
		logger,
	)

	return &app{
		cfg:    cfg,
		store:  store,
		runner: runner,
		logger: logger,
	}, nil
}
