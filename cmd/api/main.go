package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"auth-api/internal/config"
	"auth-api/internal/db"
	"auth-api/internal/email"
	apihttp "auth-api/internal/http"
	"auth-api/internal/queue"
	"auth-api/internal/repository"
	"auth-api/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	userRepo := repository.NewPgUserRepository(pool)

	sender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		gomailSender, err := email.NewGomailSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			sender = gomailSender
		}
	}

	var otpLimiter service.OTPRateLimiter
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			otpLimiter = service.NewRedisOTPRateLimiter(redisClient, 10*time.Minute, 3)
		}
		cancel()
	}

	var welcome service.WelcomePublisher
	if cfg.KafkaBroker != "" {
		producer := queue.NewProducer(cfg.KafkaBroker, cfg.KafkaTopic, cfg.KafkaUsername, cfg.KafkaPassword)
		defer producer.Close()
		welcome = producer
	}

	jwtSvc := service.NewJWTService(cfg.JWTSecret, time.Duration(cfg.SessionTTLHours)*time.Hour)
	authSvc := service.NewAuthService(logger, userRepo, sender, welcome, otpLimiter)

	authHandler := apihttp.NewAuthHandler(logger, authSvc, jwtSvc, cfg.IsProduction())
	userHandler := apihttp.NewUserHandler(logger, authSvc)
	router := apihttp.NewRouter(logger, authHandler, userHandler, jwtSvc, cfg.CORSOrigins)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
