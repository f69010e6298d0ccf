package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/remsfal/remsfal-backend-sub003/internal/cache"
	"github.com/remsfal/remsfal-backend-sub003/internal/cassandra"
	"github.com/remsfal/remsfal-backend-sub003/internal/client"
	"github.com/remsfal/remsfal-backend-sub003/internal/config"
	"github.com/remsfal/remsfal-backend-sub003/internal/handler"
	"github.com/remsfal/remsfal-backend-sub003/internal/mq"
	"github.com/remsfal/remsfal-backend-sub003/internal/repository"
	"github.com/remsfal/remsfal-backend-sub003/internal/service"
	pkgjwt "github.com/remsfal/remsfal-backend-sub003/pkg/jwt"
	pkglog "github.com/remsfal/remsfal-backend-sub003/pkg/log"
	"github.com/remsfal/remsfal-backend-sub003/pkg/middleware"
	"github.com/remsfal/remsfal-backend-sub003/pkg/storage"
)

const serviceName = "issue-chat-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		ServiceName: serviceName,
	})
	l := pkglog.L()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cassandra
	cassandraClient, err := cassandra.NewClient(cfg.Cassandra)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to connect to cassandra")
	}
	defer cassandraClient.Close()
	if err := cassandraClient.EnsureSchema(); err != nil {
		l.Fatal().Err(err).Msg("failed to ensure cassandra schema")
	}
	l.Info().Strs("hosts", cfg.Cassandra.Hosts).Str("keyspace", cfg.Cassandra.Keyspace).Msg("connected to cassandra")

	sessionRepo := repository.NewCassandraSessionRepository(cassandraClient)
	messageRepo := repository.NewCassandraMessageRepository(cassandraClient)

	// Redis participant cache; the service runs uncached if Redis is down.
	var participantCache cache.ParticipantCache
	if redisCache, err := cache.NewRedisParticipantCache(cfg.Redis, serviceName); err != nil {
		l.Warn().Err(err).Msg("redis unavailable, participant cache disabled")
	} else {
		participantCache = redisCache
		defer redisCache.Close()
	}

	// Blob storage
	store, err := newStorage(ctx, cfg.Storage)
	if err != nil {
		l.Fatal().Err(err).Str("type", cfg.Storage.Type).Msg("failed to initialise storage")
	}
	l.Info().Str("type", cfg.Storage.Type).Str("bucket", store.Bucket()).Msg("storage initialised")

	fileGateway := service.NewFileGateway(store, cfg.Storage.URLTTL)

	// Kafka producer for OCR requests
	publisher, err := mq.NewKafkaOcrPublisher(cfg.Kafka.Brokers, cfg.Kafka.OcrRequestTopic)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to create kafka producer")
	}
	defer publisher.Close()

	// Services
	sessionService := service.NewSessionService(sessionRepo, messageRepo, participantCache, cfg.Redis.CacheTTL)
	messageService := service.NewMessageService(messageRepo, fileGateway, publisher)

	// Kafka consumer for OCR results; the message service applies them.
	ocrHandler, ok := messageService.(mq.OcrResultHandler)
	if !ok {
		l.Fatal().Msg("message service does not handle ocr results")
	}
	consumer, err := mq.NewKafkaOcrConsumer(cfg.Kafka.Brokers, cfg.Kafka.OcrResultTopic, cfg.Kafka.GroupID, ocrHandler)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to create kafka consumer")
	}
	if err := consumer.Start(ctx); err != nil {
		l.Fatal().Err(err).Msg("failed to start kafka consumer")
	}

	// Auth and permission layer
	publicKey, err := os.ReadFile(cfg.Auth.PublicKeyFile)
	if err != nil {
		l.Fatal().Err(err).Str("file", cfg.Auth.PublicKeyFile).Msg("failed to read jwt public key")
	}
	validator, err := pkgjwt.NewValidator(publicKey, cfg.Auth.Issuer)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to create jwt validator")
	}
	authMiddleware := middleware.NewAuthMiddleware(validator)
	permissionClient := client.NewPermissionClient(cfg.Permission.BaseURL, cfg.Permission.CacheTTL)

	// HTTP server
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(pkglog.GinMiddleware(l))

	httpHandler := handler.NewHTTPHandler(sessionService, messageService, fileGateway, permissionClient, authMiddleware)
	httpHandler.RegisterRoutes(engine)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: engine,
	}

	go func() {
		l.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	l.Info().Msg("shutting down")

	cancel()
	if err := consumer.Close(); err != nil {
		l.Error().Err(err).Msg("failed to close kafka consumer")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error().Err(err).Msg("http server shutdown failed")
	}

	l.Info().Msg("shutdown complete")
}

func newStorage(ctx context.Context, cfg config.StorageConfig) (storage.Storage, error) {
	switch cfg.Type {
	case "s3":
		return storage.NewS3Storage(ctx, cfg.S3)
	case "minio":
		return storage.NewMinIOStorage(ctx, cfg.MinIO)
	case "local":
		return storage.NewLocalStorage(cfg.Local)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
