package models

import "time"

// Order представляет ордер аккаунта.
//
// Натуральный ключ: (exchange_id, account_id, oid), где oid - идентификатор
// ордера на бирже. Запись обновляется только если входящий updated_at
// строго больше сохранённого, при этом статус partial не понижается
// обратно до open (биржа, повторно сообщающая "открыт", не стирает
// наблюдение частичного исполнения).
type Order struct {
	ID            int       `json:"id" db:"id"`
	UserID        int       `json:"user_id" db:"user_id"`
	ExchangeID    int       `json:"exchange_id" db:"exchange_id"`
	AccountID     int       `json:"account_id" db:"account_id"`
	PairID        int       `json:"pair_id" db:"pair_id"`
	OID           string    `json:"oid" db:"oid"`
	Kind          string    `json:"kind" db:"kind"` // order
	Op            string    `json:"op" db:"op"`     // buy, sell
	Status        string    `json:"status" db:"status"`
	Qty           float64   `json:"qty" db:"qty"`
	FilledQty     float64   `json:"filled_qty" db:"filled_qty"`
	Price         float64   `json:"price" db:"price"`
	ExecutedPrice float64   `json:"executed_price" db:"executed_price"`
	Timestamp     time.Time `json:"timestamp" db:"timestamp"` // время размещения на бирже
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Статусы ордера
const (
	OrderStatusOpen      = "open"
	OrderStatusPartial   = "partial"
	OrderStatusFilled    = "filled"
	OrderStatusCancelled = "cancelled"
	OrderStatusNotFound  = "not_found"
)

// ActiveOrderStatuses - статусы, при которых ордер считается активным
// локально. Активный ордер, пропавший из свежего снимка открытых ордеров,
// подлежит внеочередной проверке статуса.
var ActiveOrderStatuses = []string{OrderStatusOpen, OrderStatusPartial}

// TerminalOrderStatus возвращает true для конечных статусов
func TerminalOrderStatus(status string) bool {
	return status == OrderStatusFilled || status == OrderStatusCancelled || status == OrderStatusNotFound
}

// Операции ордера
const (
	OrderOpBuy  = "buy"
	OrderOpSell = "sell"
)
