package models

import "time"

// Position представляет баланс одной монеты на аккаунте.
//
// Натуральный ключ: (exchange_id, account_id, coin).
// Актуальный снимок хранится в таблице positions (одна строка на монету,
// заменяется целиком при каждой синхронизации), история - в append-only
// таблице position_history (одна строка на синхронизацию).
// Замена снимка и запись истории выполняются в одной транзакции.
type Position struct {
	ID         int        `json:"id" db:"id"`
	UserID     int        `json:"user_id" db:"user_id"`
	ExchangeID int        `json:"exchange_id" db:"exchange_id"`
	AccountID  int        `json:"account_id" db:"account_id"`
	Coin       string     `json:"coin" db:"coin"`
	Total      float64    `json:"total" db:"total"`
	Available  float64    `json:"available" db:"available"`
	OnOrders   float64    `json:"on_orders" db:"on_orders"`
	USDValue   *float64   `json:"usd_value,omitempty" db:"usd_value"` // nil = неконвертируемая монета
	BTCValue   *float64   `json:"btc_value,omitempty" db:"btc_value"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}
