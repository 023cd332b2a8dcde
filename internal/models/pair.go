package models

import "time"

// Pair представляет торговую пару биржи.
//
// Symbol - канонический символ (BASE_QUOTE, например BTC_LTC),
// ExID - нативный символ биржи (BTC-LTC у Bittrex, LTCBTC у HitBTC).
// Канонический символ уникален в пределах биржи.
//
// Пара, пропавшая из свежего листинга биржи, помечается outdated=true,
// но никогда не удаляется (append-only история валидности).
type Pair struct {
	ID              int       `json:"id" db:"id"`
	ExchangeID      int       `json:"exchange_id" db:"exchange_id"`
	Symbol          string    `json:"symbol" db:"symbol"`
	ExID            string    `json:"ex_id" db:"ex_id"`
	BaseCoin        string    `json:"base_coin" db:"base_coin"`   // валюта котировки (BTC в BTC_LTC)
	QuoteCoin       string    `json:"quote_coin" db:"quote_coin"` // торгуемый актив (LTC в BTC_LTC)
	Last            float64   `json:"last" db:"last"`
	Bid             float64   `json:"bid" db:"bid"`
	Ask             float64   `json:"ask" db:"ask"`
	High            float64   `json:"high" db:"high"`
	Low             float64   `json:"low" db:"low"`
	Open            float64   `json:"open" db:"open"`
	Volume          float64   `json:"volume" db:"volume"`
	BaseVolume      float64   `json:"base_volume" db:"base_volume"`
	QuoteVolume     float64   `json:"quote_volume" db:"quote_volume"`
	ChangePercent   float64   `json:"change_percent" db:"change_percent"`
	MakerFee        float64   `json:"maker_fee" db:"maker_fee"` // в процентах
	TakerFee        float64   `json:"taker_fee" db:"taker_fee"` // в процентах
	AmountPrecision int       `json:"amount_precision" db:"amount_precision"`
	PricePrecision  int       `json:"price_precision" db:"price_precision"`
	Enabled         bool      `json:"enabled" db:"enabled"`
	Outdated        bool      `json:"outdated" db:"outdated"`
	ActualizedAt    time.Time `json:"actualized_at" db:"actualized_at"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}
