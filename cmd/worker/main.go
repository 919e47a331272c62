package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"prospect_intake_backend/internal/alerts"
	"prospect_intake_backend/internal/events"
	"prospect_intake_backend/internal/evolution"
	"prospect_intake_backend/internal/followup"
	"prospect_intake_backend/internal/history"
	requestsrepo "prospect_intake_backend/internal/requests/repository"
	"prospect_intake_backend/internal/salesbuilder"
	"prospect_intake_backend/internal/scheduler"
	"prospect_intake_backend/platform/config"
	"prospect_intake_backend/platform/db"
	"prospect_intake_backend/platform/logger"
)

// The worker process consumes queued follow-up tasks: it polls the
// qualification job for each accepted lead and dispatches the resulting
// WhatsApp messages. It shares the database and Redis with the api process
// but serves no HTTP traffic.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting worker", "env", cfg.Env, "queue", cfg.AsynqQueueName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	eventBus := events.NewInMemoryBus(log)

	mailer := alerts.NewMailer(cfg, log)
	mailer.RegisterHandlers(eventBus)

	creds := salesbuilder.NewEnvCredentials(cfg.GetSalesBuilderTokenEnvVar())
	taskClient := salesbuilder.NewClient(cfg, creds, log)
	poller := salesbuilder.NewPoller(taskClient, creds, cfg, log)

	var gateway evolution.MessagingGateway = evolution.NewClient(cfg, log)
	if !gateway.IsConfigured() {
		log.Warn("evolution gateway not configured; flows will end in evolution_config_missing")
		gateway = evolution.NoopGateway{}
	}

	records := requestsrepo.New(pool)
	recorder := history.NewRecorder(pool, cfg, log)
	dispatcher := followup.NewDispatcher(gateway, records, recorder, cfg, log)
	runner := followup.NewRunner(records, poller, dispatcher, eventBus, log)

	worker, err := scheduler.NewWorker(cfg, runner, log)
	if err != nil {
		log.Error("failed to initialize worker", "error", err)
		panic("failed to initialize worker: " + err.Error())
	}

	worker.Run(ctx)

	// Give in-flight event handlers a moment to finish after shutdown.
	time.Sleep(200 * time.Millisecond)
	log.Info("worker stopped")
}
