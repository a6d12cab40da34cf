package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"swadharma/backend/internal/audit"
	auditrepo "swadharma/backend/internal/audit/repository"
	"swadharma/backend/internal/config"
	"swadharma/backend/internal/db"
	"swadharma/backend/internal/logger"
	"swadharma/backend/internal/server"
	"swadharma/backend/internal/server/middleware"
	"swadharma/backend/internal/telemetry"
	otelsetup "swadharma/backend/internal/telemetry/otel"
	"swadharma/backend/internal/telemetry/producer"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.OTLPInsecure)
	if err != nil {
		zlog.Fatal("otel setup failed", zap.Error(err))
	}
	providers.SetGlobal()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal("database open failed", zap.Error(err))
	}
	defer conn.Close()

	emitters := telemetry.MultiEmitter{otelsetup.NewEventEmitter(providers.LoggerProvider)}
	var kafka *producer.KafkaProducer
	if brokers := cfg.KafkaBrokersList(); len(brokers) > 0 {
		kafka = producer.NewKafkaProducer(brokers, cfg.EventsKafkaTopic)
		emitters = append(emitters, kafka)
		zlog.Info("publishing events to kafka", zap.Strings("brokers", brokers), zap.String("topic", cfg.EventsKafkaTopic))
	} else {
		// Without a broker there is no worker, so events go straight to the audit table.
		emitters = append(emitters, audit.NewLogger(auditrepo.NewSQLRepository(conn), zlog.Named("audit")))
	}
	events := telemetry.NewPublisher(emitters, zlog.Named("events"), middleware.ClientIP)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app, err := server.Build(ctx, cfg, conn, events, reg, zlog)
	if err != nil {
		zlog.Fatal("wiring failed", zap.Error(err))
	}

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zlog.Info("http server listening", zap.String("addr", cfg.HTTPAddr), zap.String("env", cfg.Env))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("http serve failed", zap.Error(err))
		}
	}()

	var grpcSrv *grpc.Server
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			zlog.Fatal("grpc listen failed", zap.Error(err))
		}
		hs := app.Health.NewGRPCHealth(ctx)
		go app.Health.Watch(ctx, hs, 10*time.Second, zlog.Named("health"))
		grpcSrv = server.NewGRPCServer(hs)
		go func() {
			zlog.Info("grpc health listening", zap.String("addr", cfg.GRPCAddr))
			if err := grpcSrv.Serve(lis); err != nil {
				zlog.Error("grpc serve failed", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	zlog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("http shutdown failed", zap.Error(err))
	}
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	// Let in-flight async emits finish before closing their sinks.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if kafka != nil {
		if err := kafka.Close(); err != nil {
			zlog.Warn("kafka producer close failed", zap.Error(err))
		}
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		zlog.Warn("otel shutdown failed", zap.Error(err))
	}
	zlog.Info("stopped")
}
