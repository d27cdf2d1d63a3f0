package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/barbershop-booking/internal/config"
	"github.com/barbershop-booking/internal/domain"
	"github.com/barbershop-booking/internal/infrastructure/dynamo"
	jwtinfra "github.com/barbershop-booking/internal/infrastructure/jwt"
	"github.com/barbershop-booking/internal/infrastructure/llm"
	"github.com/barbershop-booking/internal/infrastructure/redisbus"
	s3infra "github.com/barbershop-booking/internal/infrastructure/s3"
	"github.com/barbershop-booking/internal/infrastructure/sns"
	"github.com/barbershop-booking/internal/queue"
	transporthttp "github.com/barbershop-booking/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()
	if cfg.AppEnv == "production" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		log.Fatalf("dynamodb client: %v", err)
	}
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		log.Fatalf("jwt provider: %v", err)
	}

	s3Client, err := s3infra.NewClient(ctx, cfg)
	if err != nil {
		log.Fatalf("s3 client: %v", err)
	}

	publisher, err := sns.NewPublisher(ctx, cfg)
	if err != nil {
		log.Fatalf("sns publisher: %v", err)
	}
	if cfg.SNSPlatformApplicationARN == "" {
		log.Println("WARN: SNS_PLATFORM_APPLICATION_ARN not set, push relay deliveries will fail")
	}

	appointmentRepo := dynamo.NewAppointmentRepo(dynamoClient, cfg.DynamoTables.Appointments)
	hub := queue.NewHub(appointmentRepo, cfg.Location())

	var bus *redisbus.Bus
	if cfg.RedisAddr != "" {
		bus = redisbus.NewBus(redisbus.NewClient(cfg.RedisAddr), cfg.RedisChannel, slog.Default())
		if err := bus.Ping(ctx); err != nil {
			log.Printf("WARN: redis not reachable, queue changes stay in-process: %v", err)
			bus = nil
		}
	}

	deps := &transporthttp.Deps{
		UserRepo:         dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users),
		DeviceRepo:       dynamo.NewDeviceRepo(dynamoClient, cfg.DynamoTables.Devices),
		NotificationRepo: dynamo.NewNotificationRepo(dynamoClient, cfg.DynamoTables.Notifications),
		AppointmentRepo:  appointmentRepo,
		CatalogRepo:      dynamo.NewCatalogRepo(dynamoClient, cfg.DynamoTables.Catalog),
		Images:           s3infra.NewStore(s3Client, cfg.S3BucketName),
		Publisher:        publisher,
		JWTProvider:      jwtProvider,
		LLM:              llm.NewClient(cfg.LLMEndpoint, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMTimeout),
		Hub:              hub,
		Bus:              bus,
	}

	go func() {
		if err := hub.Run(ctx, cfg.QueueRefreshInterval); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("queue hub stopped: %v", err)
		}
	}()
	if bus != nil {
		// Bookings made through other replicas reach this hub over Redis.
		go func() {
			err := bus.Subscribe(ctx, func(c redisbus.Change) {
				hub.QueueChanged(ctx, domain.Appointment{AppointmentID: c.AppointmentID, Date: c.Date})
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("queue change subscription stopped: %v", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
