package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leadflow/crm-backend/internal/config"
	"github.com/leadflow/crm-backend/internal/notification"
	"github.com/leadflow/crm-backend/internal/push"
	"github.com/leadflow/crm-backend/internal/queue"
	"github.com/leadflow/crm-backend/internal/worker"
	"github.com/leadflow/crm-backend/pkg/fcm"
	"github.com/leadflow/crm-backend/shared/logger"
	"github.com/leadflow/crm-backend/shared/postgresql"
	"github.com/leadflow/crm-backend/shared/rabbitmq"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := logger.New(&logger.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		Output:       cfg.Logging.Output,
		EnableSource: cfg.Logging.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	dbClient, err := postgresql.NewClient(&postgresql.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	rabbitClient, err := rabbitmq.NewClient(&rabbitmq.Config{
		Host:              cfg.RabbitMQ.Host,
		Port:              cfg.RabbitMQ.Port,
		User:              cfg.RabbitMQ.User,
		Password:          cfg.RabbitMQ.Password,
		VHost:             cfg.RabbitMQ.VHost,
		ExchangeName:      cfg.RabbitMQ.Exchange.Name,
		ExchangeType:      cfg.RabbitMQ.Exchange.Type,
		ExchangeDurable:   cfg.RabbitMQ.Exchange.Durable,
		QueueName:         cfg.RabbitMQ.Queue.Name,
		QueueDurable:      cfg.RabbitMQ.Queue.Durable,
		RoutingKey:        cfg.RabbitMQ.RoutingKey,
		RetryAttempts:     cfg.RabbitMQ.Connection.RetryAttempts,
		RetryInterval:     cfg.RabbitMQ.Connection.RetryInterval,
		Heartbeat:         cfg.RabbitMQ.Connection.Heartbeat,
		ConnectionTimeout: cfg.RabbitMQ.Connection.ConnectionTimeout,
	}, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	jobStore := queue.NewStore(dbClient.GetDB(), appLogger.Logger)
	tokenStore := push.NewStore(dbClient.GetDB())
	pushAdapter := push.NewAdapter(initPushSender(cfg, appLogger.Logger), tokenStore, appLogger.Logger)

	notifyStore := notification.NewStore(dbClient.GetDB())
	dispatcher := worker.NewDispatcher(
		notification.NewDealWonHandler(notifyStore, pushAdapter, appLogger.Logger),
		notification.NewTaskAssignedHandler(notifyStore, pushAdapter, appLogger.Logger),
		notification.NewLeadConvertedHandler(notifyStore, pushAdapter, appLogger.Logger),
		appLogger.Logger,
	)

	workerInstance := worker.NewWorker(&worker.Config{
		Logger:            appLogger.Logger,
		Store:             jobStore,
		RabbitClient:      rabbitClient,
		Dispatcher:        dispatcher,
		Concurrency:       cfg.Worker.Concurrency,
		PrefetchCount:     cfg.RabbitMQ.Consumer.PrefetchCount,
		JobTimeout:        cfg.Worker.JobTimeout,
		HeartbeatInterval: cfg.Worker.HeartbeatInterval,
		RetryBaseDelay:    cfg.Queue.RetryBaseDelay,
	})

	scheduler := queue.NewScheduler(jobStore, rabbitClient, queue.SchedulerConfig{
		PollInterval: cfg.Queue.PollInterval,
		BatchSize:    cfg.Queue.PollBatchSize,
		LeaseTimeout: cfg.Queue.LeaseTimeout,
	}, appLogger.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go scheduler.Run(ctx)

	errChan := make(chan error, 1)
	go func() {
		if err := workerInstance.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	appLogger.Info("Worker service started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		appLogger.Error("Worker error",
			slog.Any("error", err),
		)
		return err
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		workerInstance.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// initPushSender wires the FCM client, or a no-op sender when push delivery
// is disabled (local development without Firebase credentials).
func initPushSender(cfg *config.Config, logger *slog.Logger) push.Sender {
	if !cfg.Push.Enabled {
		logger.Warn("Push delivery disabled, using no-op sender")
		return nopSender{}
	}

	tokenSource := fcm.TokenSourceFunc(func(ctx context.Context) (string, error) {
		token := os.Getenv("FCM_ACCESS_TOKEN")
		if token == "" {
			return "", fmt.Errorf("FCM_ACCESS_TOKEN is not set")
		}
		return token, nil
	})

	return fcm.NewClient(cfg.Push.FCMProjectID, tokenSource, fcm.WithTimeout(cfg.Push.RequestTimeout))
}

type nopSender struct{}

func (nopSender) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	return nil
}
