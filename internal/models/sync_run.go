package models

import "time"

// SyncRun - запись о запуске синхронизации (операционная видимость,
// не бизнес-состояние). Планировщик принимает решения о retry/backoff
// по итогам запусков, ядро их только фиксирует.
type SyncRun struct {
	ID         int        `json:"id" db:"id"`
	Type       string     `json:"type" db:"type"` // positions, orders, trades, pairs
	AccountID  int        `json:"account_id" db:"account_id"`
	State      string     `json:"state" db:"state"`
	Error      string     `json:"error,omitempty" db:"error"`
	Trace      string     `json:"trace,omitempty" db:"trace"`
	StartedAt  time.Time  `json:"started_at" db:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" db:"finished_at"`
}

// Типы синхронизаций
const (
	SyncTypePositions = "positions"
	SyncTypeOrders    = "orders"
	SyncTypeTrades    = "trades"
	SyncTypePairs     = "pairs"
)

// Состояния запуска синхронизации
const (
	SyncStateRunning   = "running"
	SyncStateSucceeded = "succeeded"
	SyncStateFailed    = "failed"
)
