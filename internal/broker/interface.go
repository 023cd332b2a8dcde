// Package broker предоставляет унифицированный интерфейс для работы с биржами.
package broker

import (
	"context"
	"time"
)

// Broker определяет единый набор операций, реализуемый каждым адаптером биржи.
//
// Адаптер логически не хранит состояние аккаунта: учётные данные передаются
// аргументом в каждый вызов и нигде не кешируются. Единственное внутреннее
// состояние адаптера - кеш листинга пар с коротким TTL.
type Broker interface {
	// Name возвращает имя биржи
	Name() string

	// Pairs возвращает полный листинг пар биржи: канонический символ -> пара.
	// Результат кешируется адаптером на короткий период.
	Pairs(ctx context.Context) (map[string]*Pair, error)

	// Book возвращает стакан ордеров для канонического символа
	Book(ctx context.Context, symbol string) (*Book, error)

	// TradeHistory возвращает публичную историю сделок по паре
	TradeHistory(ctx context.Context, symbol string) (*TradeHistoryResult, error)

	// Balance возвращает балансы всех монет аккаунта
	Balance(ctx context.Context, creds Credentials) (*BalanceResult, error)

	// OpenOrders возвращает открытые ордера аккаунта.
	// Ошибка API фиксируется в результате (Status/Error), а не возвращается.
	OpenOrders(ctx context.Context, creds Credentials, filter *AccountFilter) (*OpenOrdersResult, error)

	// Trades возвращает историю сделок аккаунта.
	// Ошибка API фиксируется в результате (Status/Error), а не возвращается.
	Trades(ctx context.Context, creds Credentials, filter *AccountFilter) (*TradesResult, error)

	// OrderInfo возвращает сведения об одном ордере
	OrderInfo(ctx context.Context, creds Credentials, params OrderInfoParams) (*OrderInfo, error)

	// Buy размещает лимитный ордер на покупку
	Buy(ctx context.Context, creds Credentials, params OrderParams) (*OrderOperation, error)

	// Sell размещает лимитный ордер на продажу
	Sell(ctx context.Context, creds Credentials, params OrderParams) (*OrderOperation, error)

	// Cancel отменяет ордер по его биржевому идентификатору
	Cancel(ctx context.Context, creds Credentials, oid string) (*OrderOperation, error)
}

// Credentials - API ключи аккаунта. Передаются в каждый вызов,
// никогда не логируются и не сохраняются в адаптере.
type Credentials struct {
	Key    string
	Secret string
}

// Valid возвращает true если оба токена заданы
func (c Credentials) Valid() bool {
	return c.Key != "" && c.Secret != ""
}

// AccountFilter ограничивает выборку ордеров/сделок набором канонических символов
type AccountFilter struct {
	Pairs []string
}

// Match возвращает true если символ проходит фильтр (nil фильтр пропускает всё)
func (f *AccountFilter) Match(symbol string) bool {
	if f == nil || len(f.Pairs) == 0 {
		return true
	}
	for _, s := range f.Pairs {
		if s == symbol {
			return true
		}
	}
	return false
}

// OrderParams - параметры размещения лимитного ордера
type OrderParams struct {
	Pair  string  // канонический символ
	Limit float64 // лимитная цена
	Qty   float64 // количество
}

// OrderInfoParams - параметры запроса сведений об ордере
type OrderInfoParams struct {
	OID  string
	Pair string
	Op   string
}

// Статусы операций с аккаунтом
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Pair - пара из листинга биржи в каноническом представлении
type Pair struct {
	Symbol        string    `json:"symbol"`     // канонический символ (BTC_LTC)
	Exchange      string    `json:"exchange"`
	ExID          string    `json:"ex_id"`      // нативный символ биржи
	BaseCoin      string    `json:"base_coin"`  // валюта котировки
	QuoteCoin     string    `json:"quote_coin"` // торгуемый актив
	Last          float64   `json:"last"`
	Bid           float64   `json:"bid"`
	Ask           float64   `json:"ask"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Open          float64   `json:"open"`
	Volume        float64   `json:"volume"`
	BaseVolume    float64   `json:"base_volume"`
	QuoteVolume   float64   `json:"quote_volume"`
	ChangePercent float64   `json:"change_percent"`
	Fees          Fees      `json:"fees"`
	Precision     Precision `json:"precision"`
	Enabled       bool      `json:"enabled"`
	ActualizedAt  time.Time `json:"actualized_at"`
}

// Fees - комиссии биржи в процентах
type Fees struct {
	Maker float64 `json:"maker"`
	Taker float64 `json:"taker"`
}

// Precision - точность количеств и цен (знаков после запятой)
type Precision struct {
	Amount int `json:"amount"`
	Price  int `json:"price"`
}

// Balance - баланс одной монеты аккаунта
type Balance struct {
	Coin      string   `json:"coin"`
	Total     float64  `json:"total"`
	Available float64  `json:"available"`
	OnOrders  float64  `json:"on_orders"`
	USDValue  *float64 `json:"usd_value,omitempty"` // заполняется конвертером, nil = неконвертируемо
	BTCValue  *float64 `json:"btc_value,omitempty"`
}

// BalanceResult - результат запроса балансов
type BalanceResult struct {
	Account  string              `json:"account"` // API ключ аккаунта
	Exchange string              `json:"exchange"`
	Balance  map[string]*Balance `json:"balance"` // монета -> баланс
}

// OpenOrder - открытый ордер аккаунта
type OpenOrder struct {
	Symbol    string    `json:"symbol"`
	Kind      string    `json:"kind"` // order
	OID       string    `json:"oid"`
	Op        string    `json:"op"` // buy, sell
	Qty       float64   `json:"qty"`
	FilledQty float64   `json:"filled_qty"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// Partial возвращает true если ордер частично исполнен
func (o *OpenOrder) Partial() bool {
	return o.FilledQty > 0
}

// OpenOrdersResult - результат запроса открытых ордеров
type OpenOrdersResult struct {
	Account  string       `json:"account"`
	Exchange string       `json:"exchange"`
	Orders   []*OpenOrder `json:"orders"`
	Status   string       `json:"status"`
	Error    *Error       `json:"error,omitempty"`
}

// Trade - сделка аккаунта
type Trade struct {
	Symbol    string    `json:"symbol"`
	Kind      string    `json:"kind"` // trade
	OID       string    `json:"oid"`
	Op        string    `json:"op"` // buy, sell
	Qty       float64   `json:"qty"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// TradesResult - результат запроса сделок аккаунта
type TradesResult struct {
	Account  string   `json:"account"`
	Exchange string   `json:"exchange"`
	Trades   []*Trade `json:"trades"`
	Status   string   `json:"status"`
	Error    *Error   `json:"error,omitempty"`
}

// OrderInfo - сведения об одном ордере
type OrderInfo struct {
	Account     string  `json:"account"`
	Exchange    string  `json:"exchange"`
	OID         string  `json:"oid"`
	Qty         float64 `json:"qty"`
	Price       float64 `json:"price"`
	FilledQty   float64 `json:"filled_qty"`
	FilledPrice float64 `json:"filled_price"`
	Active      bool    `json:"active"`
}

// DetailedStatus выводит локальный статус ордера из сведений биржи
func (i *OrderInfo) DetailedStatus() string {
	if i.Active {
		if i.FilledQty > 0 {
			return "partial"
		}
		return "open"
	}
	if i.Qty > 0 && i.FilledQty >= i.Qty {
		return "filled"
	}
	return "cancelled"
}

// OrderOperation - результат размещения/отмены ордера
type OrderOperation struct {
	Account  string `json:"account"`
	Exchange string `json:"exchange"`
	OID      string `json:"oid"`
	Status   string `json:"status"`
	Error    *Error `json:"error,omitempty"`
}

// Book - стакан ордеров
type Book struct {
	Symbol   string       `json:"symbol"`
	Exchange string       `json:"exchange"`
	Bids     []*BookEntry `json:"bids"` // по убыванию цены
	Asks     []*BookEntry `json:"asks"` // по возрастанию цены
}

// BookEntry - уровень стакана
type BookEntry struct {
	Price float64 `json:"price"`
	Qty   float64 `json:"qty"`
	Value float64 `json:"value"` // price * qty
}

// HistoryTrade - сделка из публичной истории пары
type HistoryTrade struct {
	TradeNo   string    `json:"trade_no"`
	Qty       float64   `json:"qty"`
	Price     float64   `json:"price"`
	Value     float64   `json:"value"`
	Direction string    `json:"direction"` // bid, ask
	Timestamp time.Time `json:"timestamp"`
}

// TradeHistoryResult - публичная история сделок по паре
type TradeHistoryResult struct {
	Symbol   string          `json:"symbol"`
	Exchange string          `json:"exchange"`
	History  []*HistoryTrade `json:"history"`
}
