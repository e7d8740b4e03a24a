package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rewired-gh/velofeed/internal/alerts"
	"github.com/rewired-gh/velofeed/internal/config"
	"github.com/rewired-gh/velofeed/internal/contracts"
	"github.com/rewired-gh/velofeed/internal/gbfs"
	"github.com/rewired-gh/velofeed/internal/jcdecaux"
	"github.com/rewired-gh/velofeed/internal/logger"
	"github.com/rewired-gh/velofeed/internal/scheduler"
	"github.com/rewired-gh/velofeed/internal/storage"
	"github.com/rewired-gh/velofeed/internal/telegram"
)

var configPath = flag.String("config", "", "Path to configuration file (environment only when empty)")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	if *configPath != "" {
		logger.Info("Configuration loaded from %s", *configPath)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.Open(ctx, cfg.Storage.Driver, cfg.Storage.DBPath, cfg.Storage.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()
	logger.Info("Alert store ready (driver: %s)", cfg.Storage.Driver)

	client, err := jcdecaux.NewClient(
		cfg.JCDecaux.BaseURL,
		cfg.JCDecaux.APIKey,
		cfg.JCDecaux.Timeout,
		jcdecaux.ClientConfig{
			UserAgent:           cfg.JCDecaux.UserAgent,
			AbuseContact:        cfg.JCDecaux.AbuseContact,
			MaxIdleConns:        cfg.JCDecaux.MaxIdleConns,
			MaxIdleConnsPerHost: cfg.JCDecaux.MaxIdleConnsPerHost,
			IdleConnTimeout:     cfg.JCDecaux.IdleConnTimeout,
		},
	)
	if err != nil {
		logger.Fatal("Failed to initialize JCDecaux client: %v", err)
	}

	cities := contracts.New(client.ListCities)
	go func() {
		list, err := cities.ListCities(ctx)
		if err != nil {
			logger.Warn("Failed to preload contracts: %v", err)
			return
		}
		if missing := gbfs.MissingTimezones(list); len(missing) > 0 {
			logger.Warn("No timezone for contracts %v, their system_information feed will fail", missing)
		}
	}()

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		telegramClient.SetAlertLookup(store)
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	if telegramClient != nil {
		telegramClient.ListenForCommands(ctx)
	}

	var wg sync.WaitGroup

	if cfg.Server.Enabled {
		srv := gbfs.New(cfg.Server.PublicURL, cities, client, store)
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("Serving GBFS feeds on %s", cfg.Server.Address)
			if err := srv.Run(ctx, cfg.Server.Address); err != nil {
				logger.Error("GBFS server stopped: %v", err)
				cancel()
			}
		}()
	}

	if cfg.Alerts.Enabled {
		reconciler := alerts.NewReconciler(client, store)
		sched := scheduler.New(cities, reconciler,
			scheduler.WithWorkers(cfg.Alerts.Workers),
			scheduler.WithReportHook(newReportHandler(telegramClient)),
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			sched.Run(ctx)
		}()
	} else {
		logger.Info("Alert reconciliation disabled")
	}

	wg.Wait()
	logger.Info("Service stopped")
}

// newReportHandler forwards pass results to Telegram: newly opened outages on
// every pass, the first failure of a failing streak, and the recovery after it.
func newReportHandler(telegramClient *telegram.Client) func(scheduler.Report, error) {
	consecutiveFailures := 0

	return func(report scheduler.Report, err error) {
		if err == nil {
			err = passError(report)
		}

		if err != nil {
			consecutiveFailures++
			if consecutiveFailures == 1 && telegramClient != nil {
				if sendErr := telegramClient.SendError(err); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
		} else {
			if consecutiveFailures > 0 && telegramClient != nil {
				if sendErr := telegramClient.SendRecovery(consecutiveFailures); sendErr != nil {
					logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
				}
			}
			consecutiveFailures = 0
		}

		if telegramClient == nil {
			return
		}
		if opened := report.Opened(); len(opened) > 0 {
			if sendErr := telegramClient.SendEpisodes(opened); sendErr != nil {
				logger.Error("Failed to send Telegram notification: %v", sendErr)
			}
		}
	}
}

// passError reports a pass in which every city failed. Partial failures are
// logged per city by the scheduler and do not count as a failing pass.
func passError(report scheduler.Report) error {
	failed := report.Failed()
	if len(failed) == 0 || len(failed) < len(report.Outcomes) {
		return nil
	}
	return fmt.Errorf("all %d cities failed, first: %s: %w", len(failed), failed[0].City, failed[0].Err)
}
