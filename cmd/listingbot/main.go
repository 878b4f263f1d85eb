// Package main is the entrypoint of the listing relay bot.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"

	"github.com/vroommarket/listingbot/internal/bot"
	"github.com/vroommarket/listingbot/internal/bot/handlers"
	"github.com/vroommarket/listingbot/internal/bot/tasks"
	"github.com/vroommarket/listingbot/internal/config"
	"github.com/vroommarket/listingbot/internal/database"
	"github.com/vroommarket/listingbot/internal/extractor"
	"github.com/vroommarket/listingbot/internal/gemini"
	"github.com/vroommarket/listingbot/internal/idgen"
	"github.com/vroommarket/listingbot/internal/ingest"
	"github.com/vroommarket/listingbot/internal/logger"
	"github.com/vroommarket/listingbot/internal/media"
	"github.com/vroommarket/listingbot/internal/metrics"
	"github.com/vroommarket/listingbot/internal/pairer"
	"github.com/vroommarket/listingbot/internal/pipeline"
	"github.com/vroommarket/listingbot/internal/retry"
	"github.com/vroommarket/listingbot/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run wires every component, runs the bot until ctx is cancelled and
// returns the process exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	markup := pipeline.NewMarkup(loadMarkup(ctx, store, cfg.Pipeline.MarkupPercent, log))
	metrics.MarkupPercent.Set(markup.Get())

	policy := func(name string, callTimeout time.Duration) *retry.Policy {
		return retry.New(name, retry.Config{
			MaxAttempts:     cfg.Retry.MaxAttempts,
			BaseDelay:       cfg.Retry.BaseDelay,
			MaxDelay:        cfg.Retry.MaxDelay,
			CallTimeout:     callTimeout,
			BreakerFailures: cfg.Retry.BreakerFailures,
			BreakerTimeout:  cfg.Retry.BreakerTimeout,
		}, log)
	}

	gemClient, err := gemini.NewClient(ctx, cfg.Gemini, log)
	if err != nil {
		log.Error("Failed to initialize Gemini client", "error", err)
		return 1
	}

	mediaStore, err := media.NewCloudinaryStore(cfg.Cloudinary, policy("cloudinary", cfg.Pipeline.CallTimeout), log)
	if err != nil {
		log.Error("Failed to initialize media store", "error", err)
		return 1
	}

	hDeps := handlers.HandlerDeps{
		Logger: log,
		Config: cfg,
		Store:  store,
		Markup: markup,
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(handlers.NewSourceRecorder(hDeps)),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	cfg.Telegram.BotInfo, err = tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return 1
	}
	log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

	if err := os.MkdirAll(cfg.Ingest.TempDir, 0o755); err != nil {
		log.Error("Failed to create temp directory", "path", cfg.Ingest.TempDir, "error", err)
		return 1
	}

	downloader := telegram.NewDownloader(tg, nil, policy("telegram-download", cfg.Pipeline.CallTimeout), log)
	orchestrator := pipeline.New(pipeline.Deps{
		Logger:       log,
		Extractor:    extractor.New(time.Now),
		IDs:          idgen.New(store),
		OCR:          gemClient,
		Rewriter:     gemClient,
		Media:        mediaStore,
		Publisher:    telegram.NewPublisher(tg, cfg.Telegram.TargetChatID, log),
		Store:        store,
		Markup:       markup,
		RewriteRetry: policy("gemini-rewrite", cfg.Gemini.Timeout),
		OCRRetry:     policy("gemini-ocr", cfg.Gemini.Timeout),
	}, pipeline.Options{
		Workers:     cfg.Pipeline.Workers,
		CallTimeout: cfg.Pipeline.CallTimeout,
		Footer:      cfg.Pipeline.Footer,
	})

	ingestSvc := ingest.New(
		store,
		pairer.New(downloader, cfg.Ingest.TempDir, cfg.Ingest.MaxPhotos, log),
		orchestrator,
		ingest.Options{
			ChatID:      cfg.Telegram.SourceChatID,
			Limit:       cfg.Ingest.Limit,
			StartFromID: cfg.Ingest.StartFromID,
			ReadLimit:   cfg.Ingest.ReadLimit,
		},
		log,
	)

	hDeps.Ingest = ingestSvc
	if err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllCommands(hDeps)); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}

	tDeps := tasks.TaskDeps{
		Logger: log,
		Store:  store,
		Ingest: ingestSvc,
		Config: cfg,
	}
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Addr, log)
	}

	app := bot.NewBot(log, tg, sched, metricsServer)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	// Manual runs save published listings with a detached context; the
	// database must outlive them.
	ingestSvc.Wait()

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}

// loadMarkup prefers the markup persisted by /markup over the configured one.
func loadMarkup(ctx context.Context, store database.Store, fallback float64, log *slog.Logger) float64 {
	raw, ok, err := store.GetSetting(ctx, database.SettingMarkupPercent)
	if err != nil {
		log.Warn("Failed to read persisted markup, using config", "error", err)
		return fallback
	}
	if !ok {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || pipeline.ValidateMarkup(v) != nil {
		log.Warn("Ignoring invalid persisted markup", "value", raw)
		return fallback
	}
	log.Info("Using persisted markup", "percent", v)
	return v
}
