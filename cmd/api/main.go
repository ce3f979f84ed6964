package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/mvolkov/linkcut/internal/auth"
	"github.com/mvolkov/linkcut/internal/cache"
	"github.com/mvolkov/linkcut/internal/clicks"
	"github.com/mvolkov/linkcut/internal/config"
	"github.com/mvolkov/linkcut/internal/httpapi"
	applog "github.com/mvolkov/linkcut/internal/logger"
	"github.com/mvolkov/linkcut/internal/shortcode"
	"github.com/mvolkov/linkcut/internal/shortener"
	"github.com/mvolkov/linkcut/internal/store"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		slog.Warn(".env file not found, relying on env vars", "err", err)
	}

	applog.InitFromEnv()
	cfg := config.Load()
	ctx := context.Background()

	db, err := gorm.Open(postgres.Open(cfg.DBURL), &gorm.Config{
		TranslateError: true,
		Logger:         applog.NewGormLogger(cfg.GormLogLevel),
	})
	if err != nil {
		slog.Error("Unable to connect to database", "err", err)
		os.Exit(1)
	}

	linkStore := store.New(db)
	if err := linkStore.AutoMigrate(); err != nil {
		slog.Error("Migration failed", "err", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		// A dead cache costs latency, not availability; start anyway.
		slog.Warn("Redis unreachable at startup, serving from store only", "err", err)
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

	accounts := auth.New(linkStore)
	svc := shortener.New(linkStore, cache.New(rdb), shortcode.New(cfg.CodeLength), cfg.CacheTTL)
	publisher := clicks.NewPublisher(rabbitCH, cfg.ClickQueue)
	handler := httpapi.New(svc, accounts, accounts, linkStore, publisher, cfg.AppDomain)

	app := fiber.New()
	app.Use(applog.FiberMiddleware())
	app.Use(cors.New())
	handler.Routes(app)

	slog.Info("Starting API service", "addr", cfg.ListenAddr)
	if err := app.Listen(cfg.ListenAddr); err != nil {
		slog.Error("API service failed", "err", err)
		os.Exit(1)
	}
}
