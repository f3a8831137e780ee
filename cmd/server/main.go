package main

import (
	"context"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/taskstream/backend/api/handler"
	"github.com/taskstream/backend/internal/config"
	"github.com/taskstream/backend/internal/infrastructure/monitor"
	"github.com/taskstream/backend/internal/infrastructure/notify"
	pgInfra "github.com/taskstream/backend/internal/infrastructure/postgres"
	redisInfra "github.com/taskstream/backend/internal/infrastructure/redis"
	"github.com/taskstream/backend/internal/middleware"
	"github.com/taskstream/backend/internal/router"
	"github.com/taskstream/backend/internal/services"
	"github.com/taskstream/backend/internal/services/lifecycle"
	"github.com/taskstream/backend/pkg/httpcontext"
	"github.com/taskstream/backend/pkg/logger"
	"github.com/taskstream/backend/realtime"
	"github.com/taskstream/backend/repository/postgres"
	redisRepo "github.com/taskstream/backend/repository/redis"
	authUC "github.com/taskstream/backend/usecase/auth"
	taskUC "github.com/taskstream/backend/usecase/task"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
		zapLogger.Fatal("migrations failed", zap.Error(err))
	}

	pool, err := pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("postgres connection failed", zap.Error(err))
	}
	manager.Register("postgres", func(ctx context.Context) error {
		pool.Close()
		return nil
	})

	redisClient, err := redisInfra.NewClient(cfg.Redis)
	if err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	manager.Register("redis", func(ctx context.Context) error {
		return redisClient.Close()
	})

	inbox, err := notify.Open(cfg.Notify.Path, "notifications")
	if err != nil {
		zapLogger.Fatal("failed to open notification inbox", zap.Error(err))
	}
	manager.Register("inbox", func(ctx context.Context) error {
		return inbox.Close()
	})

	mon := monitor.New(pool, redisClient, inbox, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	retention := services.NewRetentionService(inbox, zapLogger, services.RetentionConfig{
		Retention: cfg.Notify.Retention,
		Interval:  cfg.Notify.PruneInterval,
	})
	retention.Start()
	manager.Register("retention", func(ctx context.Context) error {
		retention.Stop(ctx)
		return nil
	})

	hub := realtime.NewHub(cfg.Realtime.SendBuffer, zapLogger)
	events := realtime.NewRouter(hub, inbox, zapLogger)

	userRepo := postgres.NewUserRepository(pool)
	taskRepo := postgres.NewTaskRepository(pool)
	sessionRepo := redisRepo.NewSessionRepository(redisClient, cfg.Session.TTL)

	authUseCase := authUC.New(userRepo, sessionRepo, zapLogger)
	taskUseCase := taskUC.New(taskRepo, userRepo, events, zapLogger)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Auth:   apiHandler.NewAuthHandler(authUseCase, ctxAdapter, zapLogger, cfg.Session.TTL),
		User:   apiHandler.NewUserHandler(authUseCase, ctxAdapter, zapLogger),
		Task:   apiHandler.NewTaskHandler(taskUseCase, ctxAdapter, zapLogger),
		Stream: apiHandler.NewStreamHandler(hub, taskUseCase, ctxAdapter, zapLogger, cfg.Realtime.Keepalive),
		Health: apiHandler.NewHealthHandler(mon, hub, ctxAdapter, zapLogger),
	}

	authMiddleware := middleware.JWTAuth(cfg.JWT.Secret, authUseCase, zapLogger)
	r := router.New(handlers, authMiddleware)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.Shutdown()
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
