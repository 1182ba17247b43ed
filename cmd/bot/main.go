package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"hr_assistant_bot/internal/access"
	"hr_assistant_bot/internal/config"
	"hr_assistant_bot/internal/feature/application"
	"hr_assistant_bot/internal/feature/meeting"
	"hr_assistant_bot/internal/feature/user"
	"hr_assistant_bot/internal/health"
	"hr_assistant_bot/internal/logging"
	"hr_assistant_bot/internal/notify"
	"hr_assistant_bot/internal/store"
	"hr_assistant_bot/internal/telegram"
)

const (
	storageOpenTimeout      = 10 * time.Second
	storageCloseTimeout     = 5 * time.Second
	telegramShutdownTimeout = 10 * time.Second
	healthShutdownTimeout   = 5 * time.Second
	notifyDrainTimeout      = 90 * time.Second
)

func main() {
	configOnly := flag.Bool("config-only", false, "load and print configuration then exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("configuration error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg)
	if err != nil {
		logging.Error("logger setup error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "logger setup error: %v\n", err)
		os.Exit(1)
	}

	if *configOnly {
		logging.Info("configuration check", logging.Fields{"event": "config_only"})
		fmt.Println("configuration check: ok")
		fmt.Println(config.FormatRedacted(cfg))
		return
	}

	logging.WithContext(logging.Context{Event: "startup"}).
		WithField("backend", cfg.StorageBackend).
		Info("configuration loaded")

	openCtx, cancelOpen := context.WithTimeout(context.Background(), storageOpenTimeout)
	backend, err := store.Open(openCtx, cfg)
	cancelOpen()
	if err != nil {
		logger.WithError(err).Error("storage setup error")
		fmt.Fprintf(os.Stderr, "storage setup error: %v\n", err)
		os.Exit(1)
	}

	logger.WithFields(logging.Fields{
		"event":   "storage_ready",
		"backend": backend.Name,
	}).Info("storage opened")

	mailer, err := notify.NewMailer(cfg, logger)
	if err != nil {
		closeBackend(backend, logger)
		logger.WithError(err).Error("mailer setup error")
		fmt.Fprintf(os.Stderr, "mailer setup error: %v\n", err)
		os.Exit(1)
	}

	policy := access.NewPolicy(cfg.PrivilegedHandles)
	registrar := user.NewRegistrar(backend.Users, logger)
	dialog := application.NewDialog(registrar, backend.Applications, logger)
	catalog := application.NewCatalog(backend.Applications, policy, logger)
	statsProvider := store.NewStatsProvider(backend.Users, backend.Applications)

	tgClient, err := telegram.NewClient(cfg, logger,
		telegram.WithUserRegistrar(registrar),
		telegram.WithApplicationDialog(dialog),
		telegram.WithCatalog(catalog),
		telegram.WithResumeStorage(cfg.ResumeDir, mailer),
		telegram.WithMeetingGenerator(meeting.NewGenerator(cfg.MeetingBaseURL)),
		telegram.WithStatsProvider(statsProvider),
		telegram.WithAccessPolicy(policy),
	)
	if err != nil {
		closeBackend(backend, logger)
		logger.WithError(err).Error("telegram client setup error")
		fmt.Fprintf(os.Stderr, "telegram client setup error: %v\n", err)
		os.Exit(1)
	}

	logger.WithField("event", "telegram_ready").Info("telegram client initialized")

	healthServer := health.NewServer(cfg.HTTPPort, backend, logger)
	go func() {
		if err := healthServer.ListenAndServe(); err != nil {
			logger.WithError(err).Error("health server error")
		}
	}()

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telegramCtx, cancelTelegram := context.WithCancel(context.Background())
	tgDone := make(chan struct{})

	go func() {
		tgClient.Start(telegramCtx)
		close(tgDone)
	}()

	select {
	case <-signalCtx.Done():
		logger.WithField("event", "shutdown_signal").Info("received termination signal, stopping telegram polling")
	case <-tgDone:
		logger.WithField("event", "telegram_stopped_early").Warn("telegram client stopped before shutdown signal")
	}

	cancelTelegram()

	waitCtx, cancelWait := context.WithTimeout(context.Background(), telegramShutdownTimeout)
	select {
	case <-tgDone:
	case <-waitCtx.Done():
		logger.WithField("event", "telegram_shutdown_timeout").Warn("timed out waiting for telegram client to stop")
	}
	cancelWait()

	drained := make(chan struct{})
	go func() {
		tgClient.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(notifyDrainTimeout):
		logger.WithField("event", "notify_drain_timeout").Warn("timed out waiting for résumé notifications")
	}

	healthCtx, cancelHealth := context.WithTimeout(context.Background(), healthShutdownTimeout)
	if err := healthServer.Shutdown(healthCtx); err != nil {
		logger.WithError(err).Error("health server shutdown error")
	}
	cancelHealth()

	closeBackend(backend, logger)

	logger.WithField("event", "shutdown_complete").Info("shutdown complete")
}

func closeBackend(backend *store.Backend, logger *logrus.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), storageCloseTimeout)
	defer cancel()

	if err := backend.Close(ctx); err != nil {
		logger.WithError(err).Error("storage close error")
		return
	}
	logger.WithField("event", "storage_closed").Info("storage closed")
}
