package broker

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	stdjson "encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"coinsync/pkg/ratelimit"
	"coinsync/pkg/retry"
	"coinsync/pkg/utils"
)

const (
	bittrexName    = "bittrex"
	bittrexBaseURL = "https://bittrex.com/api/v1.1"

	bittrexPairsCachePeriod = 15 * time.Second

	// Фиксированная тарифная сетка v1.1
	bittrexMakerFee = 0.25
	bittrexTakerFee = 0.25

	bittrexAmountPrecision = 8
	bittrexPricePrecision  = 8
)

// Bittrex реализует интерфейс Broker для биржи Bittrex (API v1.1).
//
// Нативный символ - дефисное соединение "BASE-QUOTE" (BTC-LTC).
// Подписанные запросы несут apikey и строго возрастающий nonce в
// параметрах, подпись HMAC-SHA512 от полного URL - в заголовке apisign.
type Bittrex struct {
	baseURL string
	client  *http.Client
	limiter *ratelimit.RateLimiter
	log     *zap.Logger

	pairsMu       sync.Mutex
	pairsCache    map[string]*Pair
	pairsCachedAt time.Time
}

// NewBittrex создает новый адаптер Bittrex поверх общего HTTP клиента
func NewBittrex() *Bittrex {
	return newBittrex(bittrexBaseURL, SharedHTTPClient())
}

// newBittrex позволяет подменить базовый URL и клиент в тестах
func newBittrex(baseURL string, client *http.Client) *Bittrex {
	return &Bittrex{
		baseURL: baseURL,
		client:  client,
		limiter: ratelimit.NewRateLimiter(5, 10),
		log:     zap.L().Named(bittrexName),
	}
}

// Name возвращает имя биржи
func (b *Bittrex) Name() string {
	return bittrexName
}

// ============================================================
// Транспорт
// ============================================================

// bittrexEnvelope - конверт всех ответов v1.1
type bittrexEnvelope struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	Result  stdjson.RawMessage `json:"result"`
}

// request выполняет публичный запрос и возвращает поле result
func (b *Bittrex) request(ctx context.Context, method, endpoint string, params url.Values) ([]byte, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := b.baseURL + "/" + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return nil, err
	}

	return b.do(req)
}

// authorizedRequest выполняет подписанный запрос.
// Канон подписи: базовый путь + путь метода + отсортированные
// form-encoded параметры (включая apikey и nonce), HMAC-SHA512 от
// полной строки URL секретом аккаунта.
func (b *Bittrex) authorizedRequest(ctx context.Context, creds Credentials, endpoint string, params url.Values) ([]byte, error) {
	if !creds.Valid() {
		return nil, ErrCredentialsMissing
	}

	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("apikey", creds.Key)
	params.Set("nonce", utils.Nonce())

	// url.Values.Encode сортирует ключи - порядок параметров в подписи
	// и в запросе совпадает
	reqURL := b.baseURL + "/" + endpoint + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apisign", bittrexSign(reqURL, creds.Secret))

	return b.do(req)
}

// bittrexSign вычисляет HMAC-SHA512 подпись строки запроса
func bittrexSign(payload, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func (b *Bittrex) do(req *http.Request) ([]byte, error) {
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := APIRequestError{Exchange: bittrexName, Status: resp.StatusCode, Body: string(body)}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, &AuthError{APIRequestError: apiErr}
		}
		return nil, &apiErr
	}

	var envelope bittrexEnvelope
	if err := decodeJSON(body, &envelope); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", bittrexName, err)
	}

	if !envelope.Success {
		apiErr := APIRequestError{Exchange: bittrexName, Status: resp.StatusCode, Body: envelope.Message}
		if strings.Contains(strings.ToUpper(envelope.Message), "APIKEY_INVALID") ||
			strings.Contains(strings.ToUpper(envelope.Message), "INVALID_SIGNATURE") {
			return nil, &AuthError{APIRequestError: apiErr}
		}
		return nil, &apiErr
	}

	return []byte(envelope.Result), nil
}

// ============================================================
// Трансляция символов
// ============================================================

// parseBittrexSymbol разбирает нативный символ "BTC-LTC"
func parseBittrexSymbol(symbol string) (baseCoin, quoteCoin string, err error) {
	parts := strings.Split(symbol, "-")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", &SymbolError{Exchange: bittrexName, Symbol: symbol}
	}
	return strings.ToUpper(parts[0]), strings.ToUpper(parts[1]), nil
}

// toBittrexSymbol строит нативный символ из канонического
func toBittrexSymbol(symbol string) (string, error) {
	baseCoin, quoteCoin, err := ParseSymbol(symbol)
	if err != nil {
		return "", &SymbolError{Exchange: bittrexName, Symbol: symbol}
	}
	return baseCoin + "-" + quoteCoin, nil
}

// ============================================================
// Публичные операции
// ============================================================

type bittrexMarketSummary struct {
	MarketName string   `json:"MarketName"`
	High       *float64 `json:"High"`
	Low        *float64 `json:"Low"`
	Volume     *float64 `json:"Volume"`
	Last       *float64 `json:"Last"`
	BaseVolume *float64 `json:"BaseVolume"`
	Bid        *float64 `json:"Bid"`
	Ask        *float64 `json:"Ask"`
	PrevDay    *float64 `json:"PrevDay"`
}

// Pairs возвращает полный листинг пар. Снимок заменяет внутренний кеш
// целиком; кеш живёт bittrexPairsCachePeriod.
func (b *Bittrex) Pairs(ctx context.Context) (map[string]*Pair, error) {
	b.pairsMu.Lock()
	defer b.pairsMu.Unlock()

	if b.pairsCache != nil && time.Since(b.pairsCachedAt) < bittrexPairsCachePeriod {
		return b.pairsCache, nil
	}

	var raw []byte
	err := retry.Do(ctx, func() error {
		var reqErr error
		raw, reqErr = b.request(ctx, http.MethodGet, "public/getmarketsummaries", nil)
		return reqErr
	}, publicRetryConfig())
	if err != nil {
		return nil, err
	}

	var summaries []bittrexMarketSummary
	if err := decodeJSON(raw, &summaries); err != nil {
		return nil, fmt.Errorf("%s: decode market summaries: %w", bittrexName, err)
	}

	fetchedAt := time.Now().UTC()
	pairs := make(map[string]*Pair, len(summaries))

	for _, summary := range summaries {
		baseCoin, quoteCoin, err := parseBittrexSymbol(summary.MarketName)
		if err != nil {
			return nil, err
		}

		symbol := BuildSymbol(baseCoin, quoteCoin)
		open := floatOr(summary.PrevDay, 0)
		last := floatOr(summary.Last, 0)
		volume := floatOr(summary.Volume, 0)

		pairs[symbol] = &Pair{
			Symbol:        symbol,
			Exchange:      bittrexName,
			ExID:          summary.MarketName,
			BaseCoin:      baseCoin,
			QuoteCoin:     quoteCoin,
			Last:          last,
			Bid:           floatOr(summary.Bid, 0),
			Ask:           floatOr(summary.Ask, 0),
			High:          floatOr(summary.High, 0),
			Low:           floatOr(summary.Low, 0),
			Open:          open,
			Volume:        volume,
			BaseVolume:    floatOr(summary.BaseVolume, 0),
			QuoteVolume:   volume,
			ChangePercent: calcChangePercent(open, last),
			Fees:          Fees{Maker: bittrexMakerFee, Taker: bittrexTakerFee},
			Precision:     Precision{Amount: bittrexAmountPrecision, Price: bittrexPricePrecision},
			Enabled:       volume > 0,
			ActualizedAt:  fetchedAt,
		}
	}

	b.pairsCache = pairs
	b.pairsCachedAt = fetchedAt
	return pairs, nil
}

type bittrexBookEntry struct {
	Quantity *float64 `json:"Quantity"`
	Rate     *float64 `json:"Rate"`
}

type bittrexBook struct {
	Buy  []bittrexBookEntry `json:"buy"`
	Sell []bittrexBookEntry `json:"sell"`
}

// Book возвращает стакан ордеров по каноническому символу
func (b *Bittrex) Book(ctx context.Context, symbol string) (*Book, error) {
	exchangeSymbol, err := toBittrexSymbol(symbol)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("market", exchangeSymbol)
	params.Set("type", "both")

	var raw []byte
	err = retry.Do(ctx, func() error {
		var reqErr error
		raw, reqErr = b.request(ctx, http.MethodGet, "public/getorderbook", params)
		return reqErr
	}, publicRetryConfig())
	if err != nil {
		return nil, err
	}

	var rawBook bittrexBook
	if err := decodeJSON(raw, &rawBook); err != nil {
		return nil, fmt.Errorf("%s: decode order book: %w", bittrexName, err)
	}

	book := &Book{Symbol: symbol, Exchange: bittrexName}
	for _, entry := range rawBook.Buy {
		book.Bids = append(book.Bids, newBookEntry(floatOr(entry.Rate, 0), floatOr(entry.Quantity, 0)))
	}
	for _, entry := range rawBook.Sell {
		book.Asks = append(book.Asks, newBookEntry(floatOr(entry.Rate, 0), floatOr(entry.Quantity, 0)))
	}

	sortBook(book)
	return book, nil
}

type bittrexPublicTrade struct {
	ID        int64    `json:"Id"`
	TimeStamp string   `json:"TimeStamp"`
	Quantity  *float64 `json:"Quantity"`
	Price     *float64 `json:"Price"`
	Total     *float64 `json:"Total"`
	OrderType string   `json:"OrderType"`
}

// TradeHistory возвращает публичную историю сделок по паре
func (b *Bittrex) TradeHistory(ctx context.Context, symbol string) (*TradeHistoryResult, error) {
	exchangeSymbol, err := toBittrexSymbol(symbol)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("market", exchangeSymbol)

	var raw []byte
	err = retry.Do(ctx, func() error {
		var reqErr error
		raw, reqErr = b.request(ctx, http.MethodGet, "public/getmarkethistory", params)
		return reqErr
	}, publicRetryConfig())
	if err != nil {
		return nil, err
	}

	var rawTrades []bittrexPublicTrade
	if err := decodeJSON(raw, &rawTrades); err != nil {
		return nil, fmt.Errorf("%s: decode market history: %w", bittrexName, err)
	}

	result := &TradeHistoryResult{Symbol: symbol, Exchange: bittrexName}
	for _, trade := range rawTrades {
		direction, err := bittrexDirection(trade.OrderType)
		if err != nil {
			return nil, err
		}

		timestamp, err := parseBittrexTime(trade.TimeStamp)
		if err != nil {
			return nil, err
		}

		result.History = append(result.History, &HistoryTrade{
			TradeNo:   fmt.Sprintf("%d", trade.ID),
			Qty:       floatOr(trade.Quantity, 0),
			Price:     floatOr(trade.Price, 0),
			Value:     floatOr(trade.Total, 0),
			Direction: direction,
			Timestamp: timestamp,
		})
	}

	return result, nil
}

// ============================================================
// Операции с аккаунтом
// ============================================================

type bittrexBalance struct {
	Currency  string   `json:"Currency"`
	Balance   *float64 `json:"Balance"`
	Available *float64 `json:"Available"`
}

// Balance возвращает балансы всех монет аккаунта
func (b *Bittrex) Balance(ctx context.Context, creds Credentials) (*BalanceResult, error) {
	raw, err := b.authorizedRequest(ctx, creds, "account/getbalances", nil)
	if err != nil {
		return nil, err
	}

	var rawBalances []bittrexBalance
	if err := decodeJSON(raw, &rawBalances); err != nil {
		return nil, fmt.Errorf("%s: decode balances: %w", bittrexName, err)
	}

	balance := make(map[string]*Balance, len(rawBalances))
	for _, item := range rawBalances {
		coin := strings.ToUpper(item.Currency)
		total := floatOr(item.Balance, 0)
		available := floatOr(item.Available, 0)

		balance[coin] = &Balance{
			Coin:      coin,
			Total:     total,
			Available: available,
			OnOrders:  total - available,
		}
	}

	return &BalanceResult{
		Account:  creds.Key,
		Exchange: bittrexName,
		Balance:  balance,
	}, nil
}

type bittrexOpenOrder struct {
	OrderUuid         string   `json:"OrderUuid"`
	Exchange          string   `json:"Exchange"`
	OrderType         string   `json:"OrderType"`
	Quantity          *float64 `json:"Quantity"`
	QuantityRemaining *float64 `json:"QuantityRemaining"`
	Limit             *float64 `json:"Limit"`
	Opened            string   `json:"Opened"`
}

// OpenOrders возвращает открытые ордера аккаунта.
// Транспортные ошибки и ошибки API не пробрасываются: они фиксируются
// в результате, чтобы вызывающий синхронизатор сам решал их судьбу.
func (b *Bittrex) OpenOrders(ctx context.Context, creds Credentials, filter *AccountFilter) (*OpenOrdersResult, error) {
	result := &OpenOrdersResult{
		Account:  creds.Key,
		Exchange: bittrexName,
		Orders:   []*OpenOrder{},
	}

	raw, err := b.authorizedRequest(ctx, creds, "market/getopenorders", nil)
	if err != nil {
		b.log.Error("open orders request failed", zap.Error(err))
		result.Status = StatusError
		result.Error = ErrorFor(err)
		return result, nil
	}

	var rawOrders []bittrexOpenOrder
	if err := decodeJSON(raw, &rawOrders); err != nil {
		result.Status = StatusError
		result.Error = ErrorFor(fmt.Errorf("%s: decode open orders: %w", bittrexName, err))
		return result, nil
	}

	for _, order := range rawOrders {
		baseCoin, quoteCoin, err := parseBittrexSymbol(order.Exchange)
		if err != nil {
			b.log.Error("open orders mapping failed", zap.Error(err))
			result.Status = StatusError
			result.Error = ErrorFor(err)
			return result, nil
		}

		op, err := bittrexOrderOp(order.OrderType)
		if err != nil {
			result.Status = StatusError
			result.Error = ErrorFor(err)
			return result, nil
		}

		timestamp, err := parseBittrexTime(order.Opened)
		if err != nil {
			result.Status = StatusError
			result.Error = ErrorFor(err)
			return result, nil
		}

		symbol := BuildSymbol(baseCoin, quoteCoin)
		if !filter.Match(symbol) {
			continue
		}

		qty := floatOr(order.Quantity, 0)
		remaining := floatOr(order.QuantityRemaining, 0)

		result.Orders = append(result.Orders, &OpenOrder{
			Symbol:    symbol,
			Kind:      "order",
			OID:       order.OrderUuid,
			Op:        op,
			Qty:       qty,
			FilledQty: qty - remaining,
			Price:     floatOr(order.Limit, 0),
			Timestamp: timestamp,
		})
	}

	result.Status = StatusOK
	return result, nil
}

type bittrexHistoryOrder struct {
	OrderUuid         string   `json:"OrderUuid"`
	Exchange          string   `json:"Exchange"`
	TimeStamp         string   `json:"TimeStamp"`
	OrderType         string   `json:"OrderType"`
	Limit             *float64 `json:"Limit"`
	Quantity          *float64 `json:"Quantity"`
	QuantityRemaining *float64 `json:"QuantityRemaining"`
	PricePerUnit      *float64 `json:"PricePerUnit"`
}

// Trades возвращает сделки аккаунта (исполненная часть истории ордеров).
// Записи с нулевым исполнением пропускаются.
func (b *Bittrex) Trades(ctx context.Context, creds Credentials, filter *AccountFilter) (*TradesResult, error) {
	result := &TradesResult{
		Account:  creds.Key,
		Exchange: bittrexName,
		Trades:   []*Trade{},
	}

	raw, err := b.authorizedRequest(ctx, creds, "account/getorderhistory", nil)
	if err != nil {
		b.log.Error("trades request failed", zap.Error(err))
		result.Status = StatusError
		result.Error = ErrorFor(err)
		return result, nil
	}

	var rawOrders []bittrexHistoryOrder
	if err := decodeJSON(raw, &rawOrders); err != nil {
		result.Status = StatusError
		result.Error = ErrorFor(fmt.Errorf("%s: decode order history: %w", bittrexName, err))
		return result, nil
	}

	for _, order := range rawOrders {
		qty := floatOr(order.Quantity, 0)
		remaining := floatOr(order.QuantityRemaining, 0)
		executedQty := qty - remaining
		if executedQty == 0 {
			continue
		}

		baseCoin, quoteCoin, err := parseBittrexSymbol(order.Exchange)
		if err != nil {
			b.log.Error("trades mapping failed", zap.Error(err))
			result.Status = StatusError
			result.Error = ErrorFor(err)
			return result, nil
		}

		op, err := bittrexOrderOp(order.OrderType)
		if err != nil {
			result.Status = StatusError
			result.Error = ErrorFor(err)
			return result, nil
		}

		timestamp, err := parseBittrexTime(order.TimeStamp)
		if err != nil {
			result.Status = StatusError
			result.Error = ErrorFor(err)
			return result, nil
		}

		symbol := BuildSymbol(baseCoin, quoteCoin)
		if !filter.Match(symbol) {
			continue
		}

		price := floatOr(order.PricePerUnit, floatOr(order.Limit, 0))

		result.Trades = append(result.Trades, &Trade{
			Symbol:    symbol,
			Kind:      "trade",
			OID:       order.OrderUuid,
			Op:        op,
			Qty:       executedQty,
			Price:     price,
			Timestamp: timestamp,
		})
	}

	result.Status = StatusOK
	return result, nil
}

type bittrexOrder struct {
	OrderUuid         string   `json:"OrderUuid"`
	Quantity          *float64 `json:"Quantity"`
	QuantityRemaining *float64 `json:"QuantityRemaining"`
	Limit             *float64 `json:"Limit"`
	IsOpen            bool     `json:"IsOpen"`
}

// OrderInfo возвращает сведения об одном ордере
func (b *Bittrex) OrderInfo(ctx context.Context, creds Credentials, params OrderInfoParams) (*OrderInfo, error) {
	reqParams := url.Values{}
	reqParams.Set("uuid", params.OID)

	raw, err := b.authorizedRequest(ctx, creds, "account/getorder", reqParams)
	if err != nil {
		return nil, err
	}

	var order bittrexOrder
	if err := decodeJSON(raw, &order); err != nil {
		return nil, fmt.Errorf("%s: decode order: %w", bittrexName, err)
	}

	qty := floatOr(order.Quantity, 0)
	price := floatOr(order.Limit, 0)

	return &OrderInfo{
		Account:     creds.Key,
		Exchange:    bittrexName,
		OID:         params.OID,
		Qty:         qty,
		Price:       price,
		FilledQty:   qty - floatOr(order.QuantityRemaining, 0),
		FilledPrice: price,
		Active:      order.IsOpen,
	}, nil
}

// Buy размещает лимитный ордер на покупку
func (b *Bittrex) Buy(ctx context.Context, creds Credentials, params OrderParams) (*OrderOperation, error) {
	return b.createOrder(ctx, creds, "market/buylimit", params)
}

// Sell размещает лимитный ордер на продажу
func (b *Bittrex) Sell(ctx context.Context, creds Credentials, params OrderParams) (*OrderOperation, error) {
	return b.createOrder(ctx, creds, "market/selllimit", params)
}

type bittrexOrderRef struct {
	Uuid string `json:"uuid"`
}

func (b *Bittrex) createOrder(ctx context.Context, creds Credentials, endpoint string, params OrderParams) (*OrderOperation, error) {
	operation := &OrderOperation{Account: creds.Key, Exchange: bittrexName}

	exchangeSymbol, err := toBittrexSymbol(params.Pair)
	if err != nil {
		operation.Status = StatusError
		operation.Error = ErrorFor(err)
		return operation, nil
	}

	reqParams := url.Values{}
	reqParams.Set("market", exchangeSymbol)
	reqParams.Set("rate", formatCurrency(utils.RoundToPrecision(params.Limit, bittrexPricePrecision)))
	reqParams.Set("quantity", formatCurrency(utils.RoundToPrecision(params.Qty, bittrexAmountPrecision)))

	raw, err := b.authorizedRequest(ctx, creds, endpoint, reqParams)
	if err != nil {
		operation.Status = StatusError
		operation.Error = ErrorFor(err)
		return operation, nil
	}

	var ref bittrexOrderRef
	if err := decodeJSON(raw, &ref); err != nil {
		operation.Status = StatusError
		operation.Error = ErrorFor(fmt.Errorf("%s: decode order ref: %w", bittrexName, err))
		return operation, nil
	}

	operation.OID = ref.Uuid
	operation.Status = StatusOK
	return operation, nil
}

// Cancel отменяет ордер по его биржевому идентификатору
func (b *Bittrex) Cancel(ctx context.Context, creds Credentials, oid string) (*OrderOperation, error) {
	operation := &OrderOperation{Account: creds.Key, Exchange: bittrexName}

	reqParams := url.Values{}
	reqParams.Set("uuid", oid)

	if _, err := b.authorizedRequest(ctx, creds, "market/cancel", reqParams); err != nil {
		operation.Status = StatusError
		operation.Error = ErrorFor(err)
		return operation, nil
	}

	operation.OID = oid
	operation.Status = StatusOK
	return operation, nil
}

// ============================================================
// Маппинг значений v1.1
// ============================================================

// bittrexOrderOp переводит нативный тип ордера в каноническую операцию
func bittrexOrderOp(orderType string) (string, error) {
	switch strings.ToUpper(orderType) {
	case "LIMIT_BUY", "BUY":
		return "buy", nil
	case "LIMIT_SELL", "SELL":
		return "sell", nil
	}
	return "", fmt.Errorf("%s: unknown order type %q", bittrexName, orderType)
}

// bittrexDirection переводит сторону публичной сделки в bid/ask
func bittrexDirection(orderType string) (string, error) {
	switch strings.ToUpper(orderType) {
	case "BUY":
		return "bid", nil
	case "SELL":
		return "ask", nil
	}
	return "", fmt.Errorf("%s: unknown trade direction %q", bittrexName, orderType)
}

// parseBittrexTime разбирает метки времени v1.1 (без зоны, UTC,
// опциональные доли секунды)
func parseBittrexTime(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02T15:04:05.999999999", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: parse time %q: %w", bittrexName, s, err)
	}
	return t.UTC(), nil
}
