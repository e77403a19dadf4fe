package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/oarkflow/ip"
	"github.com/oarkflow/log"

	"github.com/makaronz/threatguard"
)

// escalatingLimiter is the demo rate-limit collaborator: addresses the
// engine escalates get a tight token bucket enforced before the guard.
type escalatingLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	logger  *log.Logger
}

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

const (
	escalatedCapacity = 10
	escalatedRefill   = time.Minute
)

func newEscalatingLimiter(logger *log.Logger) *escalatingLimiter {
	return &escalatingLimiter{buckets: make(map[string]*bucket), logger: logger}
}

func (l *escalatingLimiter) EscalateRateLimit(address string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.buckets[address]; !exists {
		l.buckets[address] = &bucket{tokens: escalatedCapacity, lastRefill: time.Now()}
		l.logger.Warn().Str("ip", address).Msg("rate limit escalated")
	}
	return nil
}

func (l *escalatingLimiter) allow(address string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, exists := l.buckets[address]
	if !exists {
		return true
	}
	now := time.Now()
	b.tokens += now.Sub(b.lastRefill).Seconds() * escalatedCapacity / escalatedRefill.Seconds()
	if b.tokens > escalatedCapacity {
		b.tokens = escalatedCapacity
	}
	b.lastRefill = now
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

func main() {
	var (
		port       = flag.String("port", "3000", "listen port")
		patternDir = flag.String("patterns", "", "pattern override directory")
		archiveDSN = flag.String("archive", "", "sqlite DSN for the durable event archive")
	)
	flag.Parse()

	ip.Init()

	logger := log.DefaultLogger

	var archive *threatguard.EventArchive
	if *archiveDSN != "" {
		var err error
		archive, err = threatguard.OpenEventArchive(*archiveDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open event archive")
		}
	}

	metrics := threatguard.NewInMemoryMetrics()
	limiter := newEscalatingLimiter(&logger)
	engine := threatguard.New(threatguard.Config{
		PatternDir:    *patternDir,
		WatchPatterns: *patternDir != "",
		Escalator:     limiter,
		Metrics:       metrics,
		Archive:       archive,
		Logger:        &logger,
	})
	if err := engine.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start engine")
	}
	defer engine.Stop()

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})
	app.Use(cors.New())
	app.Use(func(c *fiber.Ctx) error {
		if !limiter.allow(threatguard.ClientIP(c)) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
			})
		}
		return c.Next()
	})
	app.Use(threatguard.Middleware(engine, threatguard.MiddlewareOptions{}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Post("/login", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "accepted"})
	})

	admin := app.Group("/admin")
	admin.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(engine.Statistics())
	})
	admin.Get("/events", func(c *fiber.Ctx) error {
		return c.JSON(engine.Events(threatguard.EventFilter{
			Type:          threatguard.EventType(c.Query("type")),
			Severity:      threatguard.Severity(c.Query("severity")),
			SourceAddress: c.Query("ip"),
			UserID:        c.Query("user"),
		}))
	})
	admin.Post("/block", func(c *fiber.Ctx) error {
		var body struct {
			Address string `json:"address"`
			Reason  string `json:"reason"`
		}
		if err := c.BodyParser(&body); err != nil || body.Address == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "address is required"})
		}
		return c.JSON(engine.BlockIP(body.Address, body.Reason))
	})
	admin.Get("/blocked/:ip", func(c *fiber.Ctx) error {
		addr := c.Params("ip")
		return c.JSON(fiber.Map{
			"address":    addr,
			"blocked":    engine.IsIPBlocked(addr),
			"reputation": engine.Reputation(addr),
		})
	})
	admin.Get("/metrics", func(c *fiber.Ctx) error {
		c.Set("Content-Type", "text/plain; version=0.0.4")
		return c.SendString(metrics.ExportPrometheus())
	})

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-shutdown
		fmt.Println("\nShutting down gracefully...")
		if err := app.Shutdown(); err != nil {
			logger.Error().Err(err).Msg("error shutting down server")
		}
	}()

	logger.Info().Str("port", *port).Msg("threatguard demo listening")
	if err := app.Listen(":" + *port); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}
