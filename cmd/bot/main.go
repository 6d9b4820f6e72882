package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/expense-bot/internal/bot"
	"github.com/xaenox/expense-bot/internal/classifier"
	"github.com/xaenox/expense-bot/internal/export"
	"github.com/xaenox/expense-bot/internal/metrics"
	"github.com/xaenox/expense-bot/internal/session"
	"github.com/xaenox/expense-bot/internal/storage"
	"github.com/xaenox/expense-bot/pkg/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to the YAML config file")
	flag.Parse()

	// Bootstrap logger until the configured one exists
	boot, _ := zap.NewProduction()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		boot.Fatal("Failed to load config", zap.Error(err), zap.String("path", *configPath))
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		boot.Fatal("Failed to build logger", zap.Error(err))
	}
	defer logger.Sync()

	location, err := cfg.Expenses.Location()
	if err != nil {
		logger.Fatal("Invalid timezone", zap.Error(err), zap.String("timezone", cfg.Expenses.Timezone))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	var store storage.Storage
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL storage")
		dbConfig := storage.DatabaseConfig{
			Host:         cfg.Database.Host,
			Port:         cfg.Database.Port,
			User:         cfg.Database.User,
			Password:     cfg.Database.Password,
			DBName:       cfg.Database.DBName,
			SSLMode:      cfg.Database.SSLMode,
			MaxOpenConns: cfg.Database.MaxOpenConns,
		}
		store, err = storage.NewPostgresStorage(ctx, dbConfig, logger)
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	m := metrics.New()

	sessions := session.NewStore(cfg.Expenses.SessionTTL)
	janitor := session.NewJanitor(sessions, cfg.Expenses.CleanupInterval, logger)
	janitor.OnSweep = func(live int) { m.PendingSessions.Set(float64(live)) }

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal("Failed to create Telegram client", zap.Error(err))
	}
	api.Debug = cfg.Telegram.Debug
	logger.Info("Authorized on account", zap.String("username", api.Self.UserName))

	b := bot.New(bot.Deps{
		API:        bot.Throttle(api, cfg.Telegram.SendRate, cfg.Telegram.SendBurst),
		Storage:    store,
		Sessions:   sessions,
		Classifier: newClassifier(cfg, logger),
		Metrics:    m,
		Logger:     logger,
	}, bot.Options{
		Categories: cfg.Expenses.Categories,
		Location:   location,
		TempDir:    cfg.Expenses.TempDir,
		Chart:      export.PieChart{Width: cfg.Chart.Width, Height: cfg.Chart.Height},
	})

	if err := b.RegisterCommands(); err != nil {
		// Commands still work without the client side menu
		logger.Warn("Failed to register commands", zap.Error(err))
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = cfg.Telegram.Timeout
	updates := api.GetUpdatesChan(u)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return b.Run(gctx, updates)
	})

	g.Go(func() error {
		<-gctx.Done()
		api.StopReceivingUpdates()
		return nil
	})

	g.Go(func() error {
		return janitor.Run(gctx)
	})

	if cfg.Metrics.Addr != "" {
		srv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           metricsMux(m, store),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			logger.Info("Serving metrics", zap.String("addr", cfg.Metrics.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	logger.Info("Bot started", zap.Strings("categories", cfg.Expenses.Categories))

	if err := g.Wait(); err != nil {
		logger.Error("Bot stopped with error", zap.Error(err))
		return
	}
	logger.Info("Bot stopped")
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// newClassifier prefers the OpenAI model when a key is configured.
func newClassifier(cfg *config.Config, logger *zap.Logger) classifier.Classifier {
	keywords := classifier.NewKeywordClassifier(nil)
	if !cfg.Classifier.Enabled || cfg.OpenAI.APIKey == "" {
		logger.Info("Using keyword classifier")
		return keywords
	}

	logger.Info("Using GPT classifier", zap.String("model", cfg.OpenAI.Model))
	return classifier.NewGPTClassifier(classifier.GPTConfig{
		APIKey:        cfg.OpenAI.APIKey,
		BaseURL:       cfg.OpenAI.BaseURL,
		Model:         cfg.OpenAI.Model,
		MaxTokens:     cfg.OpenAI.MaxTokens,
		Temperature:   cfg.OpenAI.Temperature,
		MinConfidence: cfg.Classifier.MinConfidence,
	}, keywords, logger)
}

func metricsMux(m *metrics.Metrics, store storage.Storage) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(r.Context()); err != nil {
			http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	return mux
}
