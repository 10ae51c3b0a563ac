package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"zephyr-router/internal/config"
	"zephyr-router/internal/engine"
	"zephyr-router/internal/handlers"
	"zephyr-router/internal/health"
	"zephyr-router/internal/idempotency"
	"zephyr-router/internal/processor"
	"zephyr-router/internal/routing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Could not load configuration: %v", err)
	}

	fleet := processor.DefaultFleet()
	processorIDs := make([]string, 0, len(fleet))
	for _, proc := range fleet {
		processorIDs = append(processorIDs, proc.ID)
	}

	registry := health.NewRegistry(processorIDs, cfg.WindowSize, cfg.HealthThreshold, cfg.DegradedThreshold)
	rng := processor.NewLockedRand(cfg.Seed)

	router, err := routing.New(fleet, registry, rng, cfg.ProbeInterval)
	if err != nil {
		log.Fatalf("Could not build router: %v", err)
	}

	ctx := context.Background()
	var store idempotency.Store = idempotency.NewMemoryStore()
	var rdb *redis.Client
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   0,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("Could not connect to Redis: %v", err)
		}
		store = idempotency.NewRedisStore(rdb)
		log.Infof("Using Redis idempotency store at %s", addr)
	}

	routingEngine := engine.New(cfg, fleet, registry, router, store, rng)
	h := &handlers.Handlers{Engine: routingEngine}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: false,
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
	})

	app.Post("/transactions", h.TransactionHandler)
	app.Get("/health", h.HealthHandler)
	app.Post("/simulate/outage/:id", h.SimulateOutageHandler)
	app.Post("/simulate/recover/:id", h.SimulateRecoverHandler)
	app.Post("/simulate/reset", h.SimulateResetHandler)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := app.Listen(":8000"); err != nil {
			log.Errorf("Error starting server: %v", err)
		}
	}()

	<-c

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer func() {
		if rdb != nil {
			if err := rdb.Close(); err != nil {
				log.Errorf("Error closing Redis client: %v", err)
			}
		}
		cancel()
	}()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Errorf("Error during server shutdown: %v", err)
	}
}
