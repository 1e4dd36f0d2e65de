package main

import (
	"flag"
	"log"
	"os"
	"time"

	"bitunix-tradezella-sync/internal/api"
	"bitunix-tradezella-sync/internal/config"
	"bitunix-tradezella-sync/internal/core"
	"bitunix-tradezella-sync/internal/export"
	"bitunix-tradezella-sync/internal/logger"
	"bitunix-tradezella-sync/internal/metrics"
	"bitunix-tradezella-sync/internal/model"
	"bitunix-tradezella-sync/internal/repository"
	"bitunix-tradezella-sync/internal/service"
)

func main() {
	outputFlag := flag.String("output", "", "CSV file to append new trades to (overrides OUTPUT_FILE)")
	flag.Parse()

	logger.Init()
	logger.Info("Starting Bitunix -> TradeZella Trade Sync...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *outputFlag != "" {
		cfg.OutputFile = *outputFlag
	}

	logger.Info("Configuration loaded successfully",
		"credentials_file", cfg.CredentialsFile,
		"state_file", cfg.StateFile,
		"output_file", cfg.OutputFile,
		"base_url", cfg.BaseURL,
		"page_size", cfg.PageSize,
		"retry_max_attempts", cfg.RetryMaxAttempts,
	)

	creds, err := config.LoadCredentials(cfg.CredentialsFile)
	if err != nil {
		log.Fatalf("Failed to load credentials: %v", err)
	}
	startMs, err := creds.StartTimeMs()
	if err != nil {
		log.Fatalf("Failed to parse start_time: %v", err)
	}

	report := metrics.NewRunReport(cfg)

	// One retry policy shared by every history request
	retry := api.NewRetryPolicy(
		cfg.RetryMaxAttempts,
		time.Duration(cfg.RetryMinDelayMs)*time.Millisecond,
		time.Duration(cfg.RetryMaxDelayMs)*time.Millisecond,
		cfg.RetryFactor,
	)
	retry.OnRetry = func(attempt int, delay time.Duration, err error) {
		report.RetryAttempt()
		logger.Warn("⚠️ Transient upstream error, retrying",
			"attempt", attempt,
			"delay", delay.String(),
			"error", err,
		)
	}

	// Initialize Bitunix API Client
	client := api.NewBitunixClient(creds.APIKey, creds.SecretKey, retry)
	client.BaseURL = cfg.BaseURL
	client.PageSize = cfg.PageSize
	client.Client.Timeout = time.Duration(cfg.HTTPTimeoutSec) * time.Second
	client.Report = report

	// Initialize Repositories
	storage := repository.NewStorage()
	stateRepo := repository.NewStateRepository(storage, cfg.StateFile)

	// Services
	exporter := export.NewExporter(cfg.OutputFile)
	telegramService := service.NewTelegramService(cfg)

	engine := core.NewEngine(cfg, client, stateRepo, exporter, telegramService, report,
		model.Watermark{LastTime: startMs})

	if err := engine.Run(); err != nil {
		logger.Error("Sync run failed", "error", err)
		os.Exit(1)
	}
}
