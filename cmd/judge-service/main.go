package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"olymp/internal/common/cache"
	"olymp/internal/common/db"
	commonmw "olymp/internal/common/http/middleware"
	"olymp/internal/common/mq"
	"olymp/internal/common/storage"
	"olymp/internal/judge/controller"
	"olymp/internal/judge/repository"
	"olymp/internal/judge/sandbox"
	"olymp/internal/judge/service"
	"olymp/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/judge_service.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := run(appCfg); err != nil {
		logger.Error(context.Background(), "judge service stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(appCfg *AppConfig) error {
	redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
	if err != nil {
		return fmt.Errorf("init redis failed: %w", err)
	}
	defer func() {
		_ = redisCache.Close()
	}()

	var mqClient *mq.KafkaQueue
	var publisher repository.StatusEventPublisher
	if appCfg.Kafka.enabled() {
		mqClient, err = mq.NewKafkaQueue(appCfg.Kafka.toMQConfig())
		if err != nil {
			return fmt.Errorf("init kafka failed: %w", err)
		}
		defer func() {
			_ = mqClient.Close()
		}()
		publisher = repository.NewMQStatusEventPublisher(mqClient, appCfg.Status.FinalTopic)
	}

	var archive service.RunArchiver
	if appCfg.Database.Enabled() {
		database, err := db.Open(appCfg.Database)
		if err != nil {
			return fmt.Errorf("init database failed: %w", err)
		}
		defer func() {
			_ = database.Close()
		}()
		runArchive := repository.NewRunArchive(database)
		if err := runArchive.EnsureSchema(context.Background()); err != nil {
			return fmt.Errorf("init run archive failed: %w", err)
		}
		archive = runArchive
		logger.Info(context.Background(), "run archive enabled", zap.String("driver", database.Driver()))
	}

	var reports service.ReportKeeper
	if appCfg.Storage.Enabled() {
		objects, err := storage.NewMinIOStorage(appCfg.Storage)
		if err != nil {
			return fmt.Errorf("init object storage failed: %w", err)
		}
		reportStore := repository.NewReportStore(objects, appCfg.Storage.Bucket)
		if err := reportStore.Init(context.Background()); err != nil {
			return fmt.Errorf("init report storage failed: %w", err)
		}
		reports = reportStore
		logger.Info(context.Background(), "report storage enabled", zap.String("bucket", appCfg.Storage.Bucket))
	}

	worker, err := sandbox.NewFromConfig(appCfg.Config)
	if err != nil {
		return fmt.Errorf("init judge worker failed: %w", err)
	}
	statusRepo := repository.NewStatusRepository(redisCache, appCfg.Status.TTL)
	judgeSvc, err := service.NewService(service.Config{
		Judge:          worker,
		StatusRepo:     statusRepo,
		Publisher:      publisher,
		Locker:         repository.NewProblemLock(redisCache, appCfg.Problems.LockTTL, 0),
		Archive:        archive,
		Reports:        reports,
		Limits:         appCfg.Judge.Limits().String(),
		ProblemsRoot:   appCfg.Problems.Root,
		SolutionPrefix: appCfg.Judge.SolutionPrefix,
		RunTimeout:     appCfg.Worker.Timeout,
		StatusTimeout:  appCfg.Status.Timeout,
		QueueWait:      appCfg.Worker.QueueWait,
		WorkerPoolSize: appCfg.Worker.PoolSize,
	})
	if err != nil {
		return fmt.Errorf("init judge service failed: %w", err)
	}
	worker.SetStatusReporter(judgeSvc)

	if mqClient != nil {
		err = mqClient.SubscribeWithOptions(context.Background(), appCfg.Kafka.RunTopic, judgeSvc.HandleMessage, appCfg.Kafka.subscribeOptions())
		if err != nil {
			return fmt.Errorf("subscribe kafka failed: %w", err)
		}
		if err := mqClient.Start(); err != nil {
			return fmt.Errorf("start kafka consumer failed: %w", err)
		}
		logger.Info(context.Background(), "run consumer started", zap.String("topic", appCfg.Kafka.RunTopic))
	}

	httpServer := buildHTTPServer(appCfg.Server, judgeSvc)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("init http listener failed: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "judge http server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
	if mqClient != nil {
		_ = mqClient.Stop()
	}
	if err := judgeSvc.Shutdown(ctx); err != nil {
		logger.Warn(context.Background(), "runs cancelled at shutdown", zap.Error(err))
	}
	return nil
}

func buildHTTPServer(cfg ServerConfig, svc controller.RunService) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(requestLogger())

	controller.NewJudgeController(svc).Register(router)

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		logger.Info(
			c.Request.Context(),
			"request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
