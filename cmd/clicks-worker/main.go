package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/rabbitmq/amqp091-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/mvolkov/linkcut/internal/clicks"
	"github.com/mvolkov/linkcut/internal/config"
	applog "github.com/mvolkov/linkcut/internal/logger"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		slog.Warn(".env file not found, relying on env vars", "err", err)
	}

	applog.InitFromEnv()
	cfg := config.Load()

	db, err := gorm.Open(postgres.Open(cfg.DBURL), &gorm.Config{
		TranslateError: true,
		Logger:         applog.NewGormLogger(cfg.GormLogLevel),
	})
	if err != nil {
		slog.Error("Unable to connect to database", "err", err)
		os.Exit(1)
	}

	rabbitConn, err := amqp091.Dial(cfg.RabbitURL)
	if err != nil {
		slog.Error("Unable to connect to RabbitMQ", "err", err)
		os.Exit(1)
	}
	defer rabbitConn.Close()

	rabbitCH, err := rabbitConn.Channel()
	if err != nil {
		slog.Error("Unable to open RabbitMQ channel", "err", err)
		os.Exit(1)
	}
	defer rabbitCH.Close()

	if err := clicks.DeclareQueue(rabbitCH, cfg.ClickQueue); err != nil {
		slog.Error("Failed to declare click queue", "err", err)
		os.Exit(1)
	}

	// Prefetch matches the worker batch size so a full batch is always in
	// flight before the previous one is acked.
	if err := rabbitCH.Qos(clicks.DefaultBatchSize, 0, false); err != nil {
		slog.Error("Failed to set QoS", "err", err)
		os.Exit(1)
	}

	msgs, err := rabbitCH.Consume(cfg.ClickQueue, "", false, false, false, false, nil)
	if err != nil {
		slog.Error("Failed to register consumer", "err", err)
		os.Exit(1)
	}

	slog.Info("Clicks worker started, waiting for events", "queue", cfg.ClickQueue)
	clicks.NewWorker(db).Run(msgs)
	slog.Info("Clicks worker stopped")
}
