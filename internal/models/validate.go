package models

import (
	"fmt"
	"regexp"
	"strings"
)

// Валидация записей перед upsert'ом.
//
// Политика строгая: первая невалидная запись делает невалидной всю партию.
// Невалидная запись означает дефект маппинга или контракта данных,
// который нельзя маскировать частичной синхронизацией.

// ValidationError - ошибка валидации записи. Фатальна для всей партии,
// пробрасывается вызывающему коду (в отличие от транспортных ошибок).
type ValidationError struct {
	Entity string // position, order, trade, pair
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: field %q %s", e.Entity, e.Field, e.Reason)
}

var coinPattern = regexp.MustCompile(`^[A-Z0-9]{2,12}$`)

// ValidCoin проверяет код монеты (BTC, USDT, ...)
func ValidCoin(coin string) bool {
	return coinPattern.MatchString(coin)
}

// ValidatePosition проверяет позицию перед сохранением
func ValidatePosition(p *Position) error {
	switch {
	case p.ExchangeID <= 0:
		return &ValidationError{Entity: "position", Field: "exchange_id", Reason: "must be positive"}
	case p.AccountID <= 0:
		return &ValidationError{Entity: "position", Field: "account_id", Reason: "must be positive"}
	case !ValidCoin(p.Coin):
		return &ValidationError{Entity: "position", Field: "coin", Reason: "has invalid format"}
	case p.Total < 0:
		return &ValidationError{Entity: "position", Field: "total", Reason: "must not be negative"}
	case p.Available < 0:
		return &ValidationError{Entity: "position", Field: "available", Reason: "must not be negative"}
	case p.OnOrders < 0:
		return &ValidationError{Entity: "position", Field: "on_orders", Reason: "must not be negative"}
	case p.UpdatedAt.IsZero():
		return &ValidationError{Entity: "position", Field: "updated_at", Reason: "must be set"}
	}
	return nil
}

// ValidateOrder проверяет ордер перед сохранением
func ValidateOrder(o *Order) error {
	switch {
	case o.ExchangeID <= 0:
		return &ValidationError{Entity: "order", Field: "exchange_id", Reason: "must be positive"}
	case o.AccountID <= 0:
		return &ValidationError{Entity: "order", Field: "account_id", Reason: "must be positive"}
	case o.PairID <= 0:
		return &ValidationError{Entity: "order", Field: "pair_id", Reason: "must be positive"}
	case strings.TrimSpace(o.OID) == "":
		return &ValidationError{Entity: "order", Field: "oid", Reason: "must not be empty"}
	case o.Op != OrderOpBuy && o.Op != OrderOpSell:
		return &ValidationError{Entity: "order", Field: "op", Reason: "must be buy or sell"}
	case !validOrderStatus(o.Status):
		return &ValidationError{Entity: "order", Field: "status", Reason: "is unknown"}
	case o.Qty <= 0:
		return &ValidationError{Entity: "order", Field: "qty", Reason: "must be positive"}
	case o.FilledQty < 0 || o.FilledQty > o.Qty:
		return &ValidationError{Entity: "order", Field: "filled_qty", Reason: "must be within [0, qty]"}
	case o.Price < 0:
		return &ValidationError{Entity: "order", Field: "price", Reason: "must not be negative"}
	case o.Timestamp.IsZero():
		return &ValidationError{Entity: "order", Field: "timestamp", Reason: "must be set"}
	}
	return nil
}

// ValidateTrade проверяет сделку перед сохранением
func ValidateTrade(t *Trade) error {
	switch {
	case t.ExchangeID <= 0:
		return &ValidationError{Entity: "trade", Field: "exchange_id", Reason: "must be positive"}
	case t.AccountID <= 0:
		return &ValidationError{Entity: "trade", Field: "account_id", Reason: "must be positive"}
	case t.PairID <= 0:
		return &ValidationError{Entity: "trade", Field: "pair_id", Reason: "must be positive"}
	case strings.TrimSpace(t.OID) == "":
		return &ValidationError{Entity: "trade", Field: "oid", Reason: "must not be empty"}
	case t.ParamsDigest == "":
		return &ValidationError{Entity: "trade", Field: "params_digest", Reason: "must not be empty"}
	case t.Op != OrderOpBuy && t.Op != OrderOpSell:
		return &ValidationError{Entity: "trade", Field: "op", Reason: "must be buy or sell"}
	case t.Qty <= 0:
		return &ValidationError{Entity: "trade", Field: "qty", Reason: "must be positive"}
	case t.Price < 0:
		return &ValidationError{Entity: "trade", Field: "price", Reason: "must not be negative"}
	case t.Timestamp.IsZero():
		return &ValidationError{Entity: "trade", Field: "timestamp", Reason: "must be set"}
	}
	return nil
}

// ValidatePair проверяет пару перед сохранением
func ValidatePair(p *Pair) error {
	switch {
	case p.ExchangeID <= 0:
		return &ValidationError{Entity: "pair", Field: "exchange_id", Reason: "must be positive"}
	case strings.TrimSpace(p.Symbol) == "":
		return &ValidationError{Entity: "pair", Field: "symbol", Reason: "must not be empty"}
	case strings.TrimSpace(p.ExID) == "":
		return &ValidationError{Entity: "pair", Field: "ex_id", Reason: "must not be empty"}
	case !ValidCoin(p.BaseCoin):
		return &ValidationError{Entity: "pair", Field: "base_coin", Reason: "has invalid format"}
	case !ValidCoin(p.QuoteCoin):
		return &ValidationError{Entity: "pair", Field: "quote_coin", Reason: "has invalid format"}
	case p.Last < 0:
		return &ValidationError{Entity: "pair", Field: "last", Reason: "must not be negative"}
	case p.Volume < 0:
		return &ValidationError{Entity: "pair", Field: "volume", Reason: "must not be negative"}
	}
	return nil
}

func validOrderStatus(status string) bool {
	switch status {
	case OrderStatusOpen, OrderStatusPartial, OrderStatusFilled, OrderStatusCancelled, OrderStatusNotFound:
		return true
	}
	return false
}
