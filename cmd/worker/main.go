// Worker consumes domain events from Kafka and persists them to audit_logs.
// Set KAFKA_BROKERS, EVENTS_KAFKA_TOPIC and KAFKA_GROUP_ID; the JWT secrets are required by config but unused.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"swadharma/backend/internal/audit"
	auditrepo "swadharma/backend/internal/audit/repository"
	"swadharma/backend/internal/config"
	"swadharma/backend/internal/db"
	"swadharma/backend/internal/logger"
	"swadharma/backend/internal/telemetry/consumer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zlog, err := logger.Init(logger.Config{Level: cfg.LogLevel, Dev: cfg.LogDev})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	brokers := cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		zlog.Fatal("worker: KAFKA_BROKERS is required")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal("worker: database open failed", zap.Error(err))
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := consumer.NewKafkaConsumer(brokers, cfg.EventsKafkaTopic, cfg.KafkaGroupID, zlog.Named("consumer"))
	defer c.Close()

	sink := audit.NewLogger(auditrepo.NewSQLRepository(conn), zlog.Named("audit"))
	zlog.Info("worker: consuming",
		zap.String("topic", cfg.EventsKafkaTopic),
		zap.String("group", cfg.KafkaGroupID))
	if err := c.Run(ctx, sink); err != nil {
		zlog.Error("worker: stopped with error", zap.Error(err))
		return
	}
	zlog.Info("worker: stopped")
}
