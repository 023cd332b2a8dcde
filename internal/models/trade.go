package models

import "time"

// Trade представляет сделку (исполнение) аккаунта.
//
// Натуральный ключ: (exchange_id, account_id, oid, params_digest).
// Дайджест параметров нужен потому, что биржа может переиспользовать
// идентификатор сделки для разных исполнений одного ордера.
// Повторная вставка существующей сделки игнорируется.
type Trade struct {
	ID           int       `json:"id" db:"id"`
	UserID       int       `json:"user_id" db:"user_id"`
	ExchangeID   int       `json:"exchange_id" db:"exchange_id"`
	AccountID    int       `json:"account_id" db:"account_id"`
	PairID       int       `json:"pair_id" db:"pair_id"`
	OrderID      *int      `json:"order_id,omitempty" db:"order_id"` // nil если ордер неизвестен локально
	OID          string    `json:"oid" db:"oid"`
	ParamsDigest string    `json:"params_digest" db:"params_digest"`
	Kind         string    `json:"kind" db:"kind"` // trade
	Op           string    `json:"op" db:"op"`     // buy, sell
	Qty          float64   `json:"qty" db:"qty"`
	Price        float64   `json:"price" db:"price"`
	Timestamp    time.Time `json:"timestamp" db:"timestamp"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
