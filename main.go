package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"authkit/internal/api"
	"authkit/internal/config"
	"authkit/internal/database"
	"authkit/internal/logger"
	"authkit/internal/middleware"
	"authkit/internal/rbac"
	"authkit/internal/service"
	"authkit/internal/token"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.NewConfig()
	slogger := logger.New(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := database.NewDatabase()
	if err := db.Connect(ctx, cfg.Database.ConnString()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	var denyList token.DenyList = token.NewMemoryDenyList()
	var cache rbac.Cache = rbac.NoopCache{}
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to ping redis: %v", err)
		}
		denyList = token.NewRedisDenyList(redisClient)
		cache = rbac.NewRedisCache(redisClient, 5*time.Minute, slogger)
		slogger.Info("redis connected", "addr", cfg.Redis.Addr)
	}

	tokens := token.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, denyList)
	resolver := rbac.NewResolver(&db, cache)
	accounts := service.NewAccountService(&db, tokens, cfg.Auth, slogger)
	assignments := service.NewAssignmentService(&db, resolver, slogger)

	handler := api.NewHandler(&db, resolver, accounts, assignments, tokens, slogger)

	app := fiber.New(fiber.Config{
		AppName:      "authkit",
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})
	app.Use(recover.New())
	app.Use(middleware.Logger())

	handler.RegisterRoutes(app, cfg.Server)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		slogger.Info("shutting down")
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	slogger.Info("server starting", "addr", cfg.Server.Addr())
	if err := app.Listen(cfg.Server.Addr()); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
