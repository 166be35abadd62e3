package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"auth-api/internal/email"
	"auth-api/internal/queue"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// workerConfig junta solo lo que el worker necesita: broker y SMTP.
type workerConfig struct {
	KafkaBroker   string `env:"KAFKA_BROKER,required"`
	KafkaTopic    string `env:"KAFKA_TOPIC" envDefault:"auth.welcome-email"`
	KafkaGroupID  string `env:"KAFKA_GROUP_ID" envDefault:"mailworker"`
	KafkaUsername string `env:"KAFKA_USERNAME"`
	KafkaPassword string `env:"KAFKA_PASSWORD"`

	SMTPHost     string `env:"SMTP_HOST,required"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM,required"`
	SMTPFromName string `env:"SMTP_FROM_NAME"`
}

type welcomeMailer struct {
	sender email.Sender
}

func (w *welcomeMailer) HandleWelcome(ctx context.Context, evt queue.WelcomeEmailEvent) error {
	return w.sender.SendWelcome(ctx, evt.Email, evt.Name)
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	var cfg workerConfig
	if err := env.Parse(&cfg); err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sender, err := email.NewGomailSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName)
	if err != nil {
		logger.Fatal("smtp sender init failed", zap.Error(err))
	}

	consumer := queue.NewConsumer(
		cfg.KafkaBroker,
		cfg.KafkaTopic,
		cfg.KafkaGroupID,
		cfg.KafkaUsername,
		cfg.KafkaPassword,
		&welcomeMailer{sender: sender},
		logger,
	)
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("mailworker listening", zap.String("topic", cfg.KafkaTopic))

	if err := consumer.Listen(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("consumer error", zap.Error(err))
	}
}
