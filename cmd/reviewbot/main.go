package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/zoff-tech/reviewbot/pkg/broker"
	"github.com/zoff-tech/reviewbot/pkg/config"
	"github.com/zoff-tech/reviewbot/pkg/idempotency"
	"github.com/zoff-tech/reviewbot/pkg/interaction"
	"github.com/zoff-tech/reviewbot/pkg/logging"
	"github.com/zoff-tech/reviewbot/pkg/processor"
	"github.com/zoff-tech/reviewbot/pkg/retry"
	"github.com/zoff-tech/reviewbot/pkg/server"
	"github.com/zoff-tech/reviewbot/pkg/slackapi"
	"github.com/zoff-tech/reviewbot/pkg/store"
	"github.com/zoff-tech/reviewbot/pkg/telemetry"
	"github.com/zoff-tech/reviewbot/pkg/worker"
	"github.com/zoff-tech/reviewbot/pkg/writer"
	"github.com/zoff-tech/reviewbot/schema"
)

func main() {
	// Load configuration from file or environment
	cfg, err := config.LoadFromFile("./cmd/reviewbot")
	if err != nil {
		log.Fatal("Error loading configuration: ", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatal("Failed to initialize logger: ", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("reviewbot stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Settings, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Observability, logger)
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer shutdownTelemetry(context.Background())

	db, err := store.NewDatabase(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if cfg.Database.Migrate {
		if err := store.Migrate(db, logger); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
	}

	tx := store.NewTxManager(db)
	inboxRepo := store.NewPostgresInboxRepository(tx)
	outboxRepo := store.NewPostgresOutboxRepository(tx)

	tokens, closeTokens, err := store.NewTeamTokenRepository(ctx, cfg.Tokens, tx)
	if err != nil {
		return fmt.Errorf("initialize token store: %w", err)
	}
	defer closeTokens(context.Background()) //nolint:errcheck

	mb, err := broker.NewBroker(ctx, &cfg.Broker, logger)
	if err != nil {
		return fmt.Errorf("initialize broker: %w", err)
	}
	defer mb.Close()

	keys, err := idempotency.NewKeyGenerator()
	if err != nil {
		return err
	}

	engineOpts := []processor.Option{
		processor.WithPolicy(retry.Policy{
			MaxAttempts:     cfg.Retry.MaxAttempts,
			InitialInterval: cfg.Retry.InitialInterval,
			Multiplier:      cfg.Retry.Multiplier,
			MaxInterval:     cfg.Retry.MaxInterval,
		}),
		processor.WithProcessingTimeout(cfg.ProcessingTimeout),
		processor.WithMaxReasonLength(cfg.FailureReasonMaxLength),
		processor.WithLogger(logger),
	}
	if cfg.Broker.Type != "none" {
		engineOpts = append(engineOpts,
			processor.WithDeadLetterPublisher(broker.NewDeadLetterPublisher(mb, cfg.Broker.DeadLetterTopic, logger)))
	}

	// Handlers are registered on the router once the outbox writer exists.
	router := interaction.NewRouter(logger)
	sender := slackapi.NewSender(logger, slackapi.WithAPIURL(cfg.Slack.APIURL))

	dispatcher := processor.NewDispatcher(logger,
		processor.NewInboxEngine(processor.QueueInboxBlockActions,
			inboxRepo.Queue(schema.InteractionBlockActions), router.BlockActions(), tx, engineOpts...),
		processor.NewInboxEngine(processor.QueueInboxViewSubmission,
			inboxRepo.Queue(schema.InteractionViewSubmission), router.ViewSubmissions(), tx, engineOpts...),
		processor.NewOutboxEngine(outboxRepo, tokens, sender, engineOpts...),
	)

	outboxTrigger := writer.NewImmediateTrigger(dispatcher, tx,
		writer.WithBatchSize(processor.QueueOutbox, cfg.Outbox.BatchSize),
		writer.WithTriggerLogger(logger))
	inboxTrigger := writer.NewImmediateTrigger(dispatcher, tx,
		writer.WithBatchSize(processor.QueueInboxBlockActions, cfg.Inbox.BlockActions.BatchSize),
		writer.WithBatchSize(processor.QueueInboxViewSubmission, cfg.Inbox.ViewSubmission.BatchSize),
		writer.WithAsync(),
		writer.WithTriggerLogger(logger))

	outboxWriter := writer.NewOutboxWriter(outboxRepo, keys, outboxTrigger, logger)
	inboxWriter := writer.NewInboxWriter(inboxRepo, keys, inboxTrigger, logger)

	ack := interaction.NewAcknowledger(outboxWriter)
	for _, id := range cfg.Slack.AckActions {
		router.OnAction(id, ack.Action(cfg.Slack.AckText))
	}
	for _, id := range cfg.Slack.AckViews {
		router.OnView(id, ack.View(cfg.Slack.AckText))
	}

	scheduler := worker.NewScheduler(dispatcher, logger,
		queueSchedule(processor.QueueInboxBlockActions, cfg.Inbox.BlockActions),
		queueSchedule(processor.QueueInboxViewSubmission, cfg.Inbox.ViewSubmission),
		queueSchedule(processor.QueueOutbox, cfg.Outbox),
	)
	if err := scheduler.Start(ctx); err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      server.New(cfg.Slack.SigningSecret, inboxWriter, db, logger).Routes(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("address", cfg.HTTP.Address))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			logger.Error("http server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", zap.Error(err))
	}
	if err := scheduler.Shutdown(shutdownCtx); err != nil {
		logger.Error("scheduler shutdown", zap.Error(err))
	}
	inboxTrigger.Wait()
	outboxTrigger.Wait()

	logger.Info("reviewbot stopped")
	return nil
}

func queueSchedule(kind processor.QueueKind, s config.WorkerSettings) worker.Queue {
	return worker.Queue{
		Kind:      kind,
		Enabled:   s.Enabled,
		Interval:  s.PollInterval,
		BatchSize: s.BatchSize,
	}
}
