package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/panjf2000/ants/v2"
	"github.com/passbi/subway_path/internal/api"
	"github.com/passbi/subway_path/internal/cache"
	"github.com/passbi/subway_path/internal/config"
	"github.com/passbi/subway_path/internal/db"
	"github.com/passbi/subway_path/internal/graph"
	"github.com/passbi/subway_path/internal/middleware"
	"github.com/passbi/subway_path/internal/routing"
	"github.com/passbi/subway_path/internal/store"
)

func main() {
	log.Println("Starting subway path API server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	pool, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()
	log.Println("✓ Database connection established")

	checks := map[string]api.HealthCheck{
		"database": func(ctx context.Context) error { return db.HealthCheck(ctx, pool) },
	}

	var pathCache api.PathCache
	var redisCache *cache.Cache
	if cfg.Redis.Enabled {
		redisCache, err = cache.New(ctx, cfg.Redis)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisCache.Close()
		pathCache = redisCache
		checks["redis"] = redisCache.HealthCheck
		log.Println("✓ Redis connection established")
	} else {
		log.Println("Redis disabled, path cache off")
	}

	st := store.New(pool)
	network, err := graph.LoadNetwork(ctx, st, routing.WeightFuncs())
	if err != nil {
		log.Fatalf("Failed to load subway network: %v", err)
	}
	log.Println("✓ Subway network loaded into memory")

	workers, err := ants.NewPool(cfg.Workers.PoolSize)
	if err != nil {
		log.Fatalf("Failed to create worker pool: %v", err)
	}
	defer workers.Release()

	app := fiber.New(fiber.Config{
		AppName:      "Subway Path API",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorHandler: customErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	if cfg.RateLimit.Enabled {
		if redisCache == nil {
			log.Fatal("Rate limiting requires Redis")
		}
		app.Use(middleware.RateLimitMiddleware(middleware.RedisCounter(redisCache.Client()), cfg.RateLimit.PerSecond))
		log.Printf("✓ Rate limit: %d requests/second per client", cfg.RateLimit.PerSecond)
	}

	handler := api.NewHandler(routing.NewRouter(network), pathCache, workers, checks).
		WithDetail("last_import", func(ctx context.Context) (interface{}, error) {
			return st.LastImport(ctx)
		})
	if redisCache != nil {
		handler.WithDetail("cache", func(ctx context.Context) (interface{}, error) {
			return redisCache.Stats(), nil
		})
	}
	handler.Register(app)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "endpoint not found",
		})
	})

	addr := fmt.Sprintf(":%s", cfg.Server.Port)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down gracefully...")
		if err := app.ShutdownWithTimeout(cfg.Server.ShutdownTimeout); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}()

	log.Printf("Server listening on http://localhost%s", addr)
	log.Printf("Path search: http://localhost%s/v1/path?from=A&to=B&type=shortest-distance", addr)
	log.Printf("Health check: http://localhost%s/health", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// customErrorHandler handles errors returned from handlers
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	log.Printf("Error: %v", err)

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
