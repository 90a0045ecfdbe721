package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fadilmartias/resume-insight/internal/bootstrap"
	"github.com/fadilmartias/resume-insight/internal/config"
	"github.com/fadilmartias/resume-insight/internal/domain/fiber/handler"
	"github.com/fadilmartias/resume-insight/internal/logger"
	"github.com/fadilmartias/resume-insight/internal/middleware"
	"github.com/fadilmartias/resume-insight/internal/notify"
	"github.com/fadilmartias/resume-insight/internal/repository"
	"github.com/fadilmartias/resume-insight/internal/service"
	"github.com/fadilmartias/resume-insight/internal/storage"
	"github.com/fadilmartias/resume-insight/internal/usecase"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/pprof"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Could not load .env file")
	}

	appConfig := config.LoadAppConfig()
	zlog := logger.New(appConfig.LogLevel, appConfig.LogFormat)
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, policy := bootstrap.NewDispatcher(config.LoadDispatcherConfig(), zlog)
	defer d.Close()

	llm, gemini, err := bootstrap.NewCompleter(ctx, bootstrap.LLMConfigs{
		LLM:        config.LoadLLMConfig(),
		OpenRouter: config.LoadOpenRouterConfig(),
		Gemini:     config.LoadGeminiConfig(),
	}, d, policy, zlog)
	if err != nil {
		zlog.Fatal("llm client", zap.Error(err))
	}

	cache, closeCache := bootstrap.NewCache(ctx, config.LoadRedisConfig(), zlog)
	defer func() { _ = closeCache() }()
	search := service.NewSearchService(config.LoadSearchConfig(), cache, d, policy, zlog)

	dbConfig := config.LoadDBConfig()
	if !dbConfig.Enabled() {
		zlog.Fatal("DB_HOST and DB_NAME are required")
	}
	db, err := bootstrap.ConnectDB(dbConfig, appConfig, zlog)
	if err != nil {
		zlog.Fatal("database", zap.Error(err))
	}
	taskRepo := repository.NewAnalysisTaskRepository(db)
	jobRepo := repository.NewJobListingRepository(db)

	store, err := storage.New(ctx, config.LoadStorageConfig(), appConfig.UploadDir)
	if err != nil {
		zlog.Fatal("storage", zap.Error(err))
	}

	notifier, err := notify.New(config.LoadBrokerConfig(), zlog)
	if err != nil {
		zlog.Warn("status updates disabled", zap.Error(err))
		notifier = notify.NopNotifier{}
	}
	defer func() { _ = notifier.Close() }()

	uc := usecase.NewAnalysisUsecase(usecase.Deps{
		Tasks:     taskRepo,
		Jobs:      jobRepo,
		Store:     store,
		Extractor: bootstrap.NewExtractor(ctx, zlog),
		Agents:    bootstrap.NewAgents(llm, config.LoadLLMConfig(), search, gemini, jobRepo, zlog),
		Notifier:  notifier,
		Stats:     d,
		Log:       zlog,
	})

	maxUpload := int64(appConfig.MaxUploadMB) << 20
	app := fiber.New(fiber.Config{
		AppName:   appConfig.Name,
		BodyLimit: int(maxUpload) + 1<<20,
		ErrorHandler: func(ctx *fiber.Ctx, err error) error {
			// Status code defaults to 500
			code := fiber.StatusInternalServerError

			// Retrieve the custom status code if it's a *fiber.Error
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}

			message := err.Error()
			if message == "" {
				message = "Internal Server Error"
			}

			return ctx.Status(code).JSON(fiber.Map{"success": false, "message": message})
		},
	})
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
	}))
	app.Use(recover.New(recover.Config{
		EnableStackTrace: appConfig.Env != "production",
	}))
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(pprof.New(pprof.Config{
		Next: func(c *fiber.Ctx) bool {
			return appConfig.Env == "production"
		},
	}))
	app.Use(healthcheck.New())
	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))
	app.Use(middleware.RateLimiter(50, 1*time.Minute))

	handler.NewAnalysisHandler(uc, handler.Config{
		MaxUploadBytes: maxUpload,
		AnalyzeMax:     5,
		AnalyzeWindow:  time.Minute,
	}).RegisterRoutes(app)

	go func() {
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				zlog.Debug("runtime", zap.Int("goroutines", runtime.NumGoroutine()))
			}
		}
	}()

	listenErr := make(chan error, 1)
	go func() {
		zlog.Info("server running", zap.String("port", appConfig.Port), zap.String("env", appConfig.Env))
		listenErr <- app.Listen(appConfig.Port)
	}()

	select {
	case err := <-listenErr:
		zlog.Error("server stopped", zap.Error(err))
	case <-ctx.Done():
		zlog.Info("shutting down")
	}

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		zlog.Warn("http shutdown", zap.Error(err))
	}
	// Give in-flight analyses a chance to finish before cancelling them.
	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := uc.Wait(drainCtx); err != nil {
		zlog.Warn("cancelling running analyses", zap.Error(err))
	}
	closeCtx, cancelClose := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelClose()
	if err := uc.Close(closeCtx); err != nil {
		zlog.Warn("analyses still running at exit", zap.Error(err))
	}
}
