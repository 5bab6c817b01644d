package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/etag"
	"github.com/gofiber/utils"

	"mobileapps_backend/internals/configs"
	database "mobileapps_backend/internals/databases"
	"mobileapps_backend/internals/features/mobileapps/notifications"
	orgService "mobileapps_backend/internals/features/organizations/service"
	themeService "mobileapps_backend/internals/features/themes/service"
	helper "mobileapps_backend/internals/helpers"
	"mobileapps_backend/internals/helpers/metrics"
	"mobileapps_backend/internals/helpers/queue"
	"mobileapps_backend/internals/helpers/secret"
	"mobileapps_backend/internals/helpers/storage"
	middlewares "mobileapps_backend/internals/middlewares"
	routes "mobileapps_backend/internals/route"
)

func main() {
	configs.LoadEnv()
	settings, err := configs.Load()
	if err != nil {
		log.Fatalf("❌ settings: %v", err)
	}

	app := fiber.New(fiber.Config{
		JSONEncoder:             sonic.Marshal,
		JSONDecoder:             sonic.Unmarshal,
		DisableStartupMessage:   true,
		ErrorHandler:            helper.FromFiberError,
		BodyLimit:               int(settings.ThemeImages.Limits.MaxBytes)*2 + 1<<20,
		ProxyHeader:             fiber.HeaderXForwardedFor,
		EnableTrustedProxyCheck: true,
		TrustedProxies:          []string{"0.0.0.0/0"},
	})

	app.Use(compress.New(compress.Config{Level: compress.LevelDefault}))
	app.Use(etag.New())

	// Request-ID + timing
	app.Use(func(c *fiber.Ctx) error {
		id := c.Get("X-Request-ID")
		if id == "" {
			id = utils.UUID()
		}
		c.Set("X-Request-ID", id)
		c.Locals("reqid", id)
		start := time.Now()
		ctx, cancel := context.WithTimeout(c.Context(), 30*time.Second)
		defer cancel()
		c.SetUserContext(ctx)
		err := c.Next()
		log.Printf("[REQ] id=%s %s %s status=%d dur=%s", id, c.Method(), c.OriginalURL(), c.Response().StatusCode(), time.Since(start))
		return err
	})

	middlewares.SetupMiddlewares(app)

	// DB connect + pool + schema + warm-up
	database.ConnectDB()
	database.TunePool()
	if err := database.Migrate(database.DB); err != nil {
		log.Fatalf("❌ migrate: %v", err)
	}
	database.WarmUpQueries()

	cipher, err := secret.NewCipher(settings.CredentialSecret)
	if err != nil {
		log.Fatalf("❌ credential cipher: %v", err)
	}

	q, err := openQueue(settings.Queue)
	if err != nil {
		log.Fatalf("❌ queue: %v", err)
	}

	workerCtx, stopWorker := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		w := notifications.NewWorker(q, cipher, notifications.NewUrbanAirship())
		if err := w.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[WORKER] stopped: %v", err)
		}
	}()

	themes := themeService.NewThemeService(database.DB, settings.ThemeImages, orgService.NewMembership(database.DB))
	reaper, err := startReaper(settings, themes)
	if err != nil {
		log.Fatalf("❌ image reaper: %v", err)
	}

	routes.SetupRoutes(app, routes.Deps{
		DB:        database.DB,
		JWTSecret: settings.JWTSecret,
		Validate:  helper.NewValidator(),
		Cipher:    cipher,
		Queue:     q,
		Themes:    themes,
	})

	app.Server().ReadTimeout = 15 * time.Second
	app.Server().WriteTimeout = 30 * time.Second
	app.Server().IdleTimeout = 90 * time.Second

	go func() {
		log.Printf("✅ Listening on :%s", settings.Port)
		if err := app.Listen("0.0.0.0:" + settings.Port); err != nil {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown: HTTP first, then background jobs, then the pool
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = app.ShutdownWithContext(ctx)

	stopWorker()
	select {
	case <-workerDone:
	case <-ctx.Done():
	}
	reaper.Stop(ctx)
	if err := q.Close(); err != nil {
		log.Printf("[WARN] queue close: %v", err)
	}

	if sqlDB, err := database.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func openQueue(s configs.QueueSettings) (queue.Queue, error) {
	switch s.Backend {
	case "redis":
		log.Printf("[INFO] notification queue: redis stream %s (group %s)", s.Stream, s.Group)
		rs, err := queue.NewRedisStream(queue.RedisConfig{
			Addr:     s.Redis.Addr,
			Password: s.Redis.Password,
			DB:       s.Redis.DB,
			Stream:   s.Stream,
			Group:    s.Group,
			Consumer: s.Consumer,
			MaxLen:   100000,
		})
		if err != nil {
			return nil, err
		}
		return rs, nil
	case "memory", "":
		log.Println("[WARN] notification queue: in-memory, pending tasks are lost on restart")
		return queue.NewMemory(1024), nil
	}
	return nil, errors.New("unknown QUEUE_BACKEND " + s.Backend)
}

func startReaper(s configs.Settings, themes *themeService.ThemeService) (*storage.Reaper, error) {
	backend, err := storage.Open(s.ThemeImages.Backend)
	if err != nil {
		return nil, err
	}
	r := &storage.Reaper{
		Backend: backend,
		Keep:    themes.ReferencedNames,
		Config: storage.ReaperConfig{
			Schedule: s.Reaper.Schedule,
			Grace:    s.Reaper.Grace,
			DryRun:   s.Reaper.DryRun,
		},
		Deleted: func(n int) { metrics.ImageOrphansReaped.Add(float64(n)) },
	}
	return r, r.Start()
}
