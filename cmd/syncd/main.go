package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"coinsync/internal/broker"
	"coinsync/internal/config"
	"coinsync/internal/history"
	"coinsync/internal/models"
	"coinsync/internal/repository"
	"coinsync/internal/sync"
	"coinsync/pkg/utils"

	_ "github.com/lib/pq"
)

func main() {
	// .env необязателен: в контейнере конфигурация приходит окружением
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := utils.InitLogger(utils.LoggerConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		FilePath:   cfg.Logging.FilePath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	db, err := initDatabase(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("Connected to database", zap.String("dsn", cfg.Database.DSNWithoutPassword()))

	// Репозитории
	exchangeRepo := repository.NewExchangeRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	pairRepo := repository.NewPairRepository(db)
	positionRepo := repository.NewPositionRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	tradeRepo := repository.NewTradeRepository(db)
	runRepo := repository.NewSyncRunRepository(db)
	historyRepo := repository.NewCoinHistoryRepository(db)

	// Адаптеры бирж и расшифровка учётных данных
	registry := broker.NewRegistry()

	creds, err := sync.NewCredentialStore(cfg.Security.EncryptionPassphrase, cfg.Security.EncryptionSalt)
	if err != nil {
		logger.Fatal("Failed to derive encryption key", zap.Error(err))
	}

	breaker := sync.NewBreaker(accountRepo, cfg.Sync.BreakerThreshold)

	// Синхронизаторы
	actualizer := sync.NewOrdersStatusActualizer(registry, orderRepo, creds)
	pairsSync := sync.NewPairsSynchronizer(registry, pairRepo, runRepo)
	positionsSync := sync.NewPositionsSynchronizer(registry, accountRepo, positionRepo, pairRepo, runRepo, creds, breaker)
	ordersSync := sync.NewOrdersSynchronizer(registry, accountRepo, orderRepo, pairRepo, runRepo, creds, actualizer)
	tradesSync := sync.NewTradesSynchronizer(registry, accountRepo, tradeRepo, orderRepo, pairRepo, runRepo, creds)

	historySync := history.NewSynchronizer(
		history.NewFetcher(history.WithPageLimit(cfg.History.PageLimit)),
		historyRepo,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Циклы синхронизации
	forEachExchange := func(name string, fn func(context.Context, *models.Exchange) error) {
		exchanges, err := exchangeRepo.GetAll()
		if err != nil {
			logger.Error("Failed to list exchanges", zap.String("sync", name), zap.Error(err))
			return
		}
		for _, exchange := range exchanges {
			if ctx.Err() != nil {
				return
			}
			if err := fn(ctx, exchange); err != nil {
				logger.Error("Sync failed",
					zap.String("sync", name),
					zap.String("exchange", exchange.Name),
					zap.Error(err),
				)
			}
		}
	}

	go runLoop(ctx, cfg.Sync.PairsInterval, func() {
		forEachExchange("pairs", pairsSync.SyncExchange)
	})
	go runLoop(ctx, cfg.Sync.PositionsInterval, func() {
		forEachExchange("positions", positionsSync.SyncExchange)
	})
	go runLoop(ctx, cfg.Sync.OrdersInterval, func() {
		forEachExchange("orders", ordersSync.SyncExchange)
		// Пропавшие из снимков ордера проверяются сразу после обхода
		actualizer.Flush(ctx)
	})
	go runLoop(ctx, cfg.Sync.TradesInterval, func() {
		forEachExchange("trades", tradesSync.SyncExchange)
	})
	go runLoop(ctx, cfg.History.Interval, func() {
		historySync.SyncCoins(ctx, historyCoins(cfg, positionRepo, logger))
	})

	// Служебный HTTP: метрики и проверка живости
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, pingCancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer pingCancel()

		if err := db.PingContext(pingCtx); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	}).Methods(http.MethodGet)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	broker.CloseSharedClient()
	logger.Info("Exited")
}

// runLoop выполняет задачу сразу и далее по тикеру до отмены контекста
func runLoop(ctx context.Context, interval time.Duration, task func()) {
	task()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			task()
		}
	}
}

// historyCoins объединяет базовый набор монет с монетами открытых позиций
func historyCoins(cfg *config.Config, positions *repository.PositionRepository, logger *zap.Logger) []string {
	seen := make(map[string]bool, len(cfg.History.Coins))
	coins := make([]string, 0, len(cfg.History.Coins))
	for _, coin := range cfg.History.Coins {
		if !seen[coin] {
			seen[coin] = true
			coins = append(coins, coin)
		}
	}

	held, err := positions.DistinctCoins()
	if err != nil {
		logger.Error("Failed to list position coins", zap.Error(err))
		return coins
	}
	for _, coin := range held {
		if !seen[coin] {
			seen[coin] = true
			coins = append(coins, coin)
		}
	}

	return coins
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
