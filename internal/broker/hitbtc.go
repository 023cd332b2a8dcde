package broker

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
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
	hitbtcName    = "hitbtc"
	hitbtcBaseURL = "https://api.hitbtc.com/api/2"

	hitbtcPairsCachePeriod = 15 * time.Second
)

// hitbtcPricingCoins - известные валюты котировки для разбора слитных
// нативных символов (ETHBTC = актив ETH + котировка BTC). Порядок важен:
// более длинные суффиксы проверяются первыми.
var hitbtcPricingCoins = []string{
	"USDT", "TUSD", "USDC", "EURS", "DAI",
	"BTC", "ETH", "EOS", "USD", "EUR", "GBP",
}

// HitBTC реализует интерфейс Broker для биржи HitBTC (API v2).
//
// Нативный символ - слитная конкатенация в обратном порядке относительно
// канонического: сначала актив, затем валюта котировки (LTCBTC = BTC_LTC).
// Подписанные запросы несут ключ, миллисекундный nonce и HMAC-SHA256
// подпись канонической строки запроса в заголовках.
type HitBTC struct {
	baseURL string
	client  *http.Client
	limiter *ratelimit.RateLimiter
	log     *zap.Logger

	pairsMu       sync.Mutex
	pairsCache    map[string]*Pair
	pairsCachedAt time.Time
}

// NewHitBTC создает новый адаптер HitBTC поверх общего HTTP клиента
func NewHitBTC() *HitBTC {
	return newHitBTC(hitbtcBaseURL, SharedHTTPClient())
}

// newHitBTC позволяет подменить базовый URL и клиент в тестах
func newHitBTC(baseURL string, client *http.Client) *HitBTC {
	return &HitBTC{
		baseURL: baseURL,
		client:  client,
		limiter: ratelimit.NewRateLimiter(10, 20),
		log:     zap.L().Named(hitbtcName),
	}
}

// Name возвращает имя биржи
func (h *HitBTC) Name() string {
	return hitbtcName
}

// ============================================================
// Транспорт
// ============================================================

type hitbtcAPIError struct {
	Error struct {
		Code        int    `json:"code"`
		Message     string `json:"message"`
		Description string `json:"description"`
	} `json:"error"`
}

// request выполняет публичный запрос
func (h *HitBTC) request(ctx context.Context, method, endpoint string, params url.Values) ([]byte, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := h.baseURL + "/" + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return nil, err
	}

	return h.do(req)
}

// authorizedRequest выполняет подписанный запрос.
// Подпись: HMAC-SHA256 от "METHOD /path?query nonce" секретом аккаунта;
// ключ, nonce и подпись уходят в заголовках.
func (h *HitBTC) authorizedRequest(ctx context.Context, creds Credentials, method, endpoint string, params url.Values) ([]byte, error) {
	if !creds.Valid() {
		return nil, ErrCredentialsMissing
	}

	if err := h.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	path := "/" + endpoint
	query := ""
	if len(params) > 0 {
		query = params.Encode() // сортировка ключей внутри Encode
		path += "?" + query
	}

	nonce := utils.NonceMillis()
	payload := method + " " + path + " " + nonce

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-Key", creds.Key)
	req.Header.Set("X-Nonce", nonce)
	req.Header.Set("X-Signature", hitbtcSign(payload, creds.Secret))

	return h.do(req)
}

// hitbtcSign вычисляет HMAC-SHA256 подпись канонической строки запроса
func hitbtcSign(payload, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func (h *HitBTC) do(req *http.Request) ([]byte, error) {
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := APIRequestError{Exchange: hitbtcName, Status: resp.StatusCode, Body: string(body)}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, &AuthError{APIRequestError: apiErr}
		}
		return nil, &apiErr
	}

	// Часть ошибок API приходит со статусом 200 и полем error в теле
	var failure hitbtcAPIError
	if err := decodeJSON(body, &failure); err == nil && failure.Error.Code != 0 {
		return nil, &APIRequestError{Exchange: hitbtcName, Status: resp.StatusCode, Body: failure.Error.Message}
	}

	return body, nil
}

// ============================================================
// Трансляция символов
// ============================================================

// parseHitbtcSymbol разбирает слитный нативный символ по таблице
// известных валют котировки (суффикс - котировка, префикс - актив)
func parseHitbtcSymbol(symbol string) (baseCoin, quoteCoin string, err error) {
	s := strings.ToUpper(symbol)
	for _, pricing := range hitbtcPricingCoins {
		if len(s) > len(pricing) && strings.HasSuffix(s, pricing) {
			return pricing, s[:len(s)-len(pricing)], nil
		}
	}
	return "", "", &SymbolError{Exchange: hitbtcName, Symbol: symbol}
}

// toHitbtcSymbol строит нативный символ из канонического
func toHitbtcSymbol(symbol string) (string, error) {
	baseCoin, quoteCoin, err := ParseSymbol(symbol)
	if err != nil {
		return "", &SymbolError{Exchange: hitbtcName, Symbol: symbol}
	}
	return quoteCoin + baseCoin, nil
}

// ============================================================
// Публичные операции
// ============================================================

type hitbtcSymbol struct {
	ID                   string `json:"id"`
	BaseCurrency         string `json:"baseCurrency"`  // актив
	QuoteCurrency        string `json:"quoteCurrency"` // валюта котировки
	QuantityIncrement    string `json:"quantityIncrement"`
	TickSize             string `json:"tickSize"`
	TakeLiquidityRate    string `json:"takeLiquidityRate"`
	ProvideLiquidityRate string `json:"provideLiquidityRate"`
}

type hitbtcTicker struct {
	Symbol      string  `json:"symbol"`
	Ask         *string `json:"ask"`
	Bid         *string `json:"bid"`
	Last        *string `json:"last"`
	Open        *string `json:"open"`
	Low         *string `json:"low"`
	High        *string `json:"high"`
	Volume      *string `json:"volume"`
	VolumeQuote *string `json:"volumeQuote"`
}

// Pairs возвращает полный листинг пар: метаданные символов плюс тикеры.
// Снимок заменяет внутренний кеш целиком.
func (h *HitBTC) Pairs(ctx context.Context) (map[string]*Pair, error) {
	h.pairsMu.Lock()
	defer h.pairsMu.Unlock()

	if h.pairsCache != nil && time.Since(h.pairsCachedAt) < hitbtcPairsCachePeriod {
		return h.pairsCache, nil
	}

	var symbolsRaw, tickersRaw []byte
	err := retry.Do(ctx, func() error {
		var reqErr error
		symbolsRaw, reqErr = h.request(ctx, http.MethodGet, "public/symbol", nil)
		return reqErr
	}, publicRetryConfig())
	if err != nil {
		return nil, err
	}

	err = retry.Do(ctx, func() error {
		var reqErr error
		tickersRaw, reqErr = h.request(ctx, http.MethodGet, "public/ticker", nil)
		return reqErr
	}, publicRetryConfig())
	if err != nil {
		return nil, err
	}

	var symbols []hitbtcSymbol
	if err := decodeJSON(symbolsRaw, &symbols); err != nil {
		return nil, fmt.Errorf("%s: decode symbols: %w", hitbtcName, err)
	}

	var tickers []hitbtcTicker
	if err := decodeJSON(tickersRaw, &tickers); err != nil {
		return nil, fmt.Errorf("%s: decode tickers: %w", hitbtcName, err)
	}

	tickerByID := make(map[string]*hitbtcTicker, len(tickers))
	for i := range tickers {
		tickerByID[tickers[i].Symbol] = &tickers[i]
	}

	fetchedAt := time.Now().UTC()
	pairs := make(map[string]*Pair, len(symbols))

	for _, meta := range symbols {
		baseCoin := strings.ToUpper(meta.QuoteCurrency) // котировка
		quoteCoin := strings.ToUpper(meta.BaseCurrency) // актив
		if baseCoin == "" || quoteCoin == "" {
			return nil, &SymbolError{Exchange: hitbtcName, Symbol: meta.ID}
		}

		symbol := BuildSymbol(baseCoin, quoteCoin)

		var last, bid, ask, high, low, open, volume, volumeQuote float64
		if ticker := tickerByID[meta.ID]; ticker != nil {
			last = parseCurrency(stringOr(ticker.Last))
			bid = parseCurrency(stringOr(ticker.Bid))
			ask = parseCurrency(stringOr(ticker.Ask))
			high = parseCurrency(stringOr(ticker.High))
			low = parseCurrency(stringOr(ticker.Low))
			open = parseCurrency(stringOr(ticker.Open))
			volume = parseCurrency(stringOr(ticker.Volume))
			volumeQuote = parseCurrency(stringOr(ticker.VolumeQuote))
		}

		pairs[symbol] = &Pair{
			Symbol:        symbol,
			Exchange:      hitbtcName,
			ExID:          meta.ID,
			BaseCoin:      baseCoin,
			QuoteCoin:     quoteCoin,
			Last:          last,
			Bid:           bid,
			Ask:           ask,
			High:          high,
			Low:           low,
			Open:          open,
			Volume:        volume,
			BaseVolume:    volumeQuote,
			QuoteVolume:   volume,
			ChangePercent: calcChangePercent(open, last),
			Fees: Fees{
				Maker: parseCurrency(meta.ProvideLiquidityRate) * 100,
				Taker: parseCurrency(meta.TakeLiquidityRate) * 100,
			},
			Precision: Precision{
				Amount: decimalPlaces(meta.QuantityIncrement),
				Price:  decimalPlaces(meta.TickSize),
			},
			Enabled:      volume > 0,
			ActualizedAt: fetchedAt,
		}
	}

	h.pairsCache = pairs
	h.pairsCachedAt = fetchedAt
	return pairs, nil
}

type hitbtcBookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type hitbtcBook struct {
	Bid []hitbtcBookLevel `json:"bid"`
	Ask []hitbtcBookLevel `json:"ask"`
}

// Book возвращает стакан ордеров по каноническому символу
func (h *HitBTC) Book(ctx context.Context, symbol string) (*Book, error) {
	exchangeSymbol, err := toHitbtcSymbol(symbol)
	if err != nil {
		return nil, err
	}

	var raw []byte
	err = retry.Do(ctx, func() error {
		var reqErr error
		raw, reqErr = h.request(ctx, http.MethodGet, "public/orderbook/"+exchangeSymbol, nil)
		return reqErr
	}, publicRetryConfig())
	if err != nil {
		return nil, err
	}

	var rawBook hitbtcBook
	if err := decodeJSON(raw, &rawBook); err != nil {
		return nil, fmt.Errorf("%s: decode order book: %w", hitbtcName, err)
	}

	book := &Book{Symbol: symbol, Exchange: hitbtcName}
	for _, level := range rawBook.Bid {
		book.Bids = append(book.Bids, newBookEntry(parseCurrency(level.Price), parseCurrency(level.Size)))
	}
	for _, level := range rawBook.Ask {
		book.Asks = append(book.Asks, newBookEntry(parseCurrency(level.Price), parseCurrency(level.Size)))
	}

	sortBook(book)
	return book, nil
}

type hitbtcPublicTrade struct {
	ID        int64  `json:"id"`
	Price     string `json:"price"`
	Quantity  string `json:"quantity"`
	Side      string `json:"side"`
	Timestamp string `json:"timestamp"`
}

// TradeHistory возвращает публичную историю сделок по паре
func (h *HitBTC) TradeHistory(ctx context.Context, symbol string) (*TradeHistoryResult, error) {
	exchangeSymbol, err := toHitbtcSymbol(symbol)
	if err != nil {
		return nil, err
	}

	var raw []byte
	err = retry.Do(ctx, func() error {
		var reqErr error
		raw, reqErr = h.request(ctx, http.MethodGet, "public/trades/"+exchangeSymbol, nil)
		return reqErr
	}, publicRetryConfig())
	if err != nil {
		return nil, err
	}

	var rawTrades []hitbtcPublicTrade
	if err := decodeJSON(raw, &rawTrades); err != nil {
		return nil, fmt.Errorf("%s: decode trades: %w", hitbtcName, err)
	}

	result := &TradeHistoryResult{Symbol: symbol, Exchange: hitbtcName}
	for _, trade := range rawTrades {
		timestamp, err := parseHitbtcTime(trade.Timestamp)
		if err != nil {
			return nil, err
		}

		price := parseCurrency(trade.Price)
		qty := parseCurrency(trade.Quantity)

		direction := "bid"
		if strings.EqualFold(trade.Side, "sell") {
			direction = "ask"
		}

		result.History = append(result.History, &HistoryTrade{
			TradeNo:   fmt.Sprintf("%d", trade.ID),
			Qty:       qty,
			Price:     price,
			Value:     price * qty,
			Direction: direction,
			Timestamp: timestamp,
		})
	}

	return result, nil
}

// ============================================================
// Операции с аккаунтом
// ============================================================

type hitbtcBalance struct {
	Currency  string `json:"currency"`
	Available string `json:"available"`
	Reserved  string `json:"reserved"`
}

// Balance возвращает балансы всех монет аккаунта
func (h *HitBTC) Balance(ctx context.Context, creds Credentials) (*BalanceResult, error) {
	raw, err := h.authorizedRequest(ctx, creds, http.MethodGet, "trading/balance", nil)
	if err != nil {
		return nil, err
	}

	var rawBalances []hitbtcBalance
	if err := decodeJSON(raw, &rawBalances); err != nil {
		return nil, fmt.Errorf("%s: decode balances: %w", hitbtcName, err)
	}

	balance := make(map[string]*Balance, len(rawBalances))
	for _, item := range rawBalances {
		coin := strings.ToUpper(item.Currency)
		available := parseCurrency(item.Available)
		reserved := parseCurrency(item.Reserved)

		balance[coin] = &Balance{
			Coin:      coin,
			Total:     available + reserved,
			Available: available,
			OnOrders:  reserved,
		}
	}

	return &BalanceResult{
		Account:  creds.Key,
		Exchange: hitbtcName,
		Balance:  balance,
	}, nil
}

type hitbtcOrder struct {
	ClientOrderID string `json:"clientOrderId"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Status        string `json:"status"`
	Quantity      string `json:"quantity"`
	CumQuantity   string `json:"cumQuantity"`
	Price         string `json:"price"`
	CreatedAt     string `json:"createdAt"`
}

// OpenOrders возвращает открытые ордера аккаунта
func (h *HitBTC) OpenOrders(ctx context.Context, creds Credentials, filter *AccountFilter) (*OpenOrdersResult, error) {
	result := &OpenOrdersResult{
		Account:  creds.Key,
		Exchange: hitbtcName,
		Orders:   []*OpenOrder{},
	}

	raw, err := h.authorizedRequest(ctx, creds, http.MethodGet, "order", nil)
	if err != nil {
		h.log.Error("open orders request failed", zap.Error(err))
		result.Status = StatusError
		result.Error = ErrorFor(err)
		return result, nil
	}

	var rawOrders []hitbtcOrder
	if err := decodeJSON(raw, &rawOrders); err != nil {
		result.Status = StatusError
		result.Error = ErrorFor(fmt.Errorf("%s: decode open orders: %w", hitbtcName, err))
		return result, nil
	}

	for _, order := range rawOrders {
		baseCoin, quoteCoin, err := parseHitbtcSymbol(order.Symbol)
		if err != nil {
			h.log.Error("open orders mapping failed", zap.Error(err))
			result.Status = StatusError
			result.Error = ErrorFor(err)
			return result, nil
		}

		timestamp, err := parseHitbtcTime(order.CreatedAt)
		if err != nil {
			result.Status = StatusError
			result.Error = ErrorFor(err)
			return result, nil
		}

		symbol := BuildSymbol(baseCoin, quoteCoin)
		if !filter.Match(symbol) {
			continue
		}

		result.Orders = append(result.Orders, &OpenOrder{
			Symbol:    symbol,
			Kind:      "order",
			OID:       order.ClientOrderID,
			Op:        strings.ToLower(order.Side),
			Qty:       parseCurrency(order.Quantity),
			FilledQty: parseCurrency(order.CumQuantity),
			Price:     parseCurrency(order.Price),
			Timestamp: timestamp,
		})
	}

	result.Status = StatusOK
	return result, nil
}

type hitbtcAccountTrade struct {
	ID            int64  `json:"id"`
	ClientOrderID string `json:"clientOrderId"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Quantity      string `json:"quantity"`
	Price         string `json:"price"`
	Timestamp     string `json:"timestamp"`
}

// Trades возвращает историю сделок аккаунта
func (h *HitBTC) Trades(ctx context.Context, creds Credentials, filter *AccountFilter) (*TradesResult, error) {
	result := &TradesResult{
		Account:  creds.Key,
		Exchange: hitbtcName,
		Trades:   []*Trade{},
	}

	raw, err := h.authorizedRequest(ctx, creds, http.MethodGet, "history/trades", nil)
	if err != nil {
		h.log.Error("trades request failed", zap.Error(err))
		result.Status = StatusError
		result.Error = ErrorFor(err)
		return result, nil
	}

	var rawTrades []hitbtcAccountTrade
	if err := decodeJSON(raw, &rawTrades); err != nil {
		result.Status = StatusError
		result.Error = ErrorFor(fmt.Errorf("%s: decode trades: %w", hitbtcName, err))
		return result, nil
	}

	for _, trade := range rawTrades {
		qty := parseCurrency(trade.Quantity)
		if qty == 0 {
			continue
		}

		baseCoin, quoteCoin, err := parseHitbtcSymbol(trade.Symbol)
		if err != nil {
			h.log.Error("trades mapping failed", zap.Error(err))
			result.Status = StatusError
			result.Error = ErrorFor(err)
			return result, nil
		}

		timestamp, err := parseHitbtcTime(trade.Timestamp)
		if err != nil {
			result.Status = StatusError
			result.Error = ErrorFor(err)
			return result, nil
		}

		symbol := BuildSymbol(baseCoin, quoteCoin)
		if !filter.Match(symbol) {
			continue
		}

		result.Trades = append(result.Trades, &Trade{
			Symbol:    symbol,
			Kind:      "trade",
			OID:       trade.ClientOrderID,
			Op:        strings.ToLower(trade.Side),
			Qty:       qty,
			Price:     parseCurrency(trade.Price),
			Timestamp: timestamp,
		})
	}

	result.Status = StatusOK
	return result, nil
}

// OrderInfo возвращает сведения об одном ордере
func (h *HitBTC) OrderInfo(ctx context.Context, creds Credentials, params OrderInfoParams) (*OrderInfo, error) {
	reqParams := url.Values{}
	reqParams.Set("clientOrderId", params.OID)

	raw, err := h.authorizedRequest(ctx, creds, http.MethodGet, "history/order", reqParams)
	if err != nil {
		return nil, err
	}

	var orders []hitbtcOrder
	if err := decodeJSON(raw, &orders); err != nil {
		return nil, fmt.Errorf("%s: decode order: %w", hitbtcName, err)
	}
	if len(orders) == 0 {
		return nil, &APIRequestError{Exchange: hitbtcName, Status: http.StatusNotFound, Body: "order not found"}
	}

	order := orders[0]
	return &OrderInfo{
		Account:     creds.Key,
		Exchange:    hitbtcName,
		OID:         params.OID,
		Qty:         parseCurrency(order.Quantity),
		Price:       parseCurrency(order.Price),
		FilledQty:   parseCurrency(order.CumQuantity),
		FilledPrice: parseCurrency(order.Price),
		Active:      hitbtcOrderActive(order.Status),
	}, nil
}

// Buy размещает лимитный ордер на покупку
func (h *HitBTC) Buy(ctx context.Context, creds Credentials, params OrderParams) (*OrderOperation, error) {
	return h.createOrder(ctx, creds, "buy", params)
}

// Sell размещает лимитный ордер на продажу
func (h *HitBTC) Sell(ctx context.Context, creds Credentials, params OrderParams) (*OrderOperation, error) {
	return h.createOrder(ctx, creds, "sell", params)
}

func (h *HitBTC) createOrder(ctx context.Context, creds Credentials, side string, params OrderParams) (*OrderOperation, error) {
	operation := &OrderOperation{Account: creds.Key, Exchange: hitbtcName}

	exchangeSymbol, err := toHitbtcSymbol(params.Pair)
	if err != nil {
		operation.Status = StatusError
		operation.Error = ErrorFor(err)
		return operation, nil
	}

	reqParams := url.Values{}
	reqParams.Set("symbol", exchangeSymbol)
	reqParams.Set("side", side)
	reqParams.Set("type", "limit")
	reqParams.Set("quantity", formatCurrency(params.Qty))
	reqParams.Set("price", formatCurrency(params.Limit))

	raw, err := h.authorizedRequest(ctx, creds, http.MethodPost, "order", reqParams)
	if err != nil {
		operation.Status = StatusError
		operation.Error = ErrorFor(err)
		return operation, nil
	}

	var order hitbtcOrder
	if err := decodeJSON(raw, &order); err != nil {
		operation.Status = StatusError
		operation.Error = ErrorFor(fmt.Errorf("%s: decode order: %w", hitbtcName, err))
		return operation, nil
	}

	operation.OID = order.ClientOrderID
	operation.Status = StatusOK
	return operation, nil
}

// Cancel отменяет ордер по его биржевому идентификатору
func (h *HitBTC) Cancel(ctx context.Context, creds Credentials, oid string) (*OrderOperation, error) {
	operation := &OrderOperation{Account: creds.Key, Exchange: hitbtcName}

	if _, err := h.authorizedRequest(ctx, creds, http.MethodDelete, "order/"+oid, nil); err != nil {
		operation.Status = StatusError
		operation.Error = ErrorFor(err)
		return operation, nil
	}

	operation.OID = oid
	operation.Status = StatusOK
	return operation, nil
}

// ============================================================
// Маппинг значений v2
// ============================================================

// hitbtcOrderActive возвращает true для статусов, при которых ордер
// ещё может исполняться
func hitbtcOrderActive(status string) bool {
	switch status {
	case "new", "suspended", "partiallyFilled":
		return true
	}
	return false
}

// parseHitbtcTime разбирает метки времени v2 (RFC3339)
func parseHitbtcTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: parse time %q: %w", hitbtcName, s, err)
	}
	return t.UTC(), nil
}

// stringOr возвращает значение указателя или пустую строку при null
func stringOr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// decimalPlaces считает количество значащих знаков после запятой
// в строковом шаге цены/количества ("0.001" -> 3)
func decimalPlaces(step string) int {
	idx := strings.IndexByte(step, '.')
	if idx < 0 {
		return 0
	}
	fraction := strings.TrimRight(step[idx+1:], "0")
	return len(fraction)
}
