package sync

import (
	"time"

	"coinsync/internal/broker"
	"coinsync/internal/models"
	"coinsync/internal/repository"
)

// Интерфейсы хранилищ, используемые синхронизаторами. Узкие интерфейсы
// позволяют подменять репозитории моками в тестах.

// AccountStore определяет интерфейс репозитория аккаунтов
type AccountStore interface {
	GetActiveByExchange(exchangeID int) ([]*models.Account, error)
	IncrementFailures(id int) (int, error)
	ResetFailures(id int) error
	Deactivate(id int, reason string, at time.Time) error
}

// PositionStore определяет интерфейс репозитория позиций
type PositionStore interface {
	ReplaceSnapshot(exchangeID, accountID int, positions []*models.Position, syncedAt time.Time) error
}

// OrderStore определяет интерфейс репозитория ордеров
type OrderStore interface {
	Upsert(order *models.Order, syncedAt time.Time) error
	GetActive(accountID int) ([]*models.Order, error)
	GetByOID(exchangeID, accountID int, oid string) (*models.Order, error)
	UpdateStatus(id int, status string, filledQty, executedPrice float64, syncedAt time.Time) error
}

// TradeStore определяет интерфейс репозитория сделок
type TradeStore interface {
	Upsert(trade *models.Trade) (bool, error)
}

// PairStore определяет интерфейс репозитория пар
type PairStore interface {
	Upsert(pair *models.Pair) error
	GetByExchange(exchangeID int) ([]*models.Pair, error)
	IDsBySymbol(exchangeID int) (map[string]int, error)
	MarkOutdated(exchangeID int, activeSymbols []string) (int64, error)
}

// RunStore определяет интерфейс репозитория запусков синхронизаций
type RunStore interface {
	Begin(syncType string, accountID int, startedAt time.Time) (int, error)
	Succeed(id int, finishedAt time.Time) error
	Fail(id int, errMessage, trace string, finishedAt time.Time) error
}

// BrokerSource выдаёт адаптер биржи по имени
type BrokerSource interface {
	For(name string) (broker.Broker, error)
}

// Проверяем, что реальные репозитории реализуют интерфейсы
var _ AccountStore = (*repository.AccountRepository)(nil)
var _ PositionStore = (*repository.PositionRepository)(nil)
var _ OrderStore = (*repository.OrderRepository)(nil)
var _ TradeStore = (*repository.TradeRepository)(nil)
var _ PairStore = (*repository.PairRepository)(nil)
var _ RunStore = (*repository.SyncRunRepository)(nil)
var _ BrokerSource = (*broker.Registry)(nil)
