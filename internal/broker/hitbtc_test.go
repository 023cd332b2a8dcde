package broker

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testHitBTC(server *httptest.Server) *HitBTC {
	return newHitBTC(server.URL, server.Client())
}

// TestHitbtcParseSymbol проверяет разбор слитных символов по таблице
// валют котировки
func TestHitbtcParseSymbol(t *testing.T) {
	tests := []struct {
		symbol    string
		baseCoin  string
		quoteCoin string
		wantErr   bool
	}{
		{symbol: "LTCBTC", baseCoin: "BTC", quoteCoin: "LTC"},
		{symbol: "ETHUSDT", baseCoin: "USDT", quoteCoin: "ETH"},
		// длинный суффикс побеждает короткий: USDT, а не USD
		{symbol: "BTCUSDT", baseCoin: "USDT", quoteCoin: "BTC"},
		{symbol: "BTCUSD", baseCoin: "USD", quoteCoin: "BTC"},
		{symbol: "ltcbtc", baseCoin: "BTC", quoteCoin: "LTC"},
		// символ из одной только котировки не разбирается
		{symbol: "BTC", wantErr: true},
		{symbol: "LTCDOGE", wantErr: true},
		{symbol: "", wantErr: true},
	}

	for _, tt := range tests {
		baseCoin, quoteCoin, err := parseHitbtcSymbol(tt.symbol)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseHitbtcSymbol(%s) expected error", tt.symbol)
			}
			var symErr *SymbolError
			if !errors.As(err, &symErr) {
				t.Errorf("parseHitbtcSymbol(%s) error type = %T", tt.symbol, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseHitbtcSymbol(%s) failed: %v", tt.symbol, err)
			continue
		}
		if baseCoin != tt.baseCoin || quoteCoin != tt.quoteCoin {
			t.Errorf("parseHitbtcSymbol(%s) = (%s, %s), want (%s, %s)",
				tt.symbol, baseCoin, quoteCoin, tt.baseCoin, tt.quoteCoin)
		}
	}
}

// TestHitbtcSymbolRoundTrip проверяет обратимость трансляции символов
func TestHitbtcSymbolRoundTrip(t *testing.T) {
	for _, symbol := range []string{"BTC_LTC", "USDT_ETH", "USD_BTC"} {
		native, err := toHitbtcSymbol(symbol)
		if err != nil {
			t.Fatalf("toHitbtcSymbol(%s) failed: %v", symbol, err)
		}

		baseCoin, quoteCoin, err := parseHitbtcSymbol(native)
		if err != nil {
			t.Fatalf("parseHitbtcSymbol(%s) failed: %v", native, err)
		}
		if got := BuildSymbol(baseCoin, quoteCoin); got != symbol {
			t.Errorf("round trip %s -> %s -> %s", symbol, native, got)
		}
	}
}

// TestHitbtcDecimalPlaces проверяет подсчет точности из шага цены
func TestHitbtcDecimalPlaces(t *testing.T) {
	tests := []struct {
		step string
		want int
	}{
		{step: "0.001", want: 3},
		{step: "0.000000001", want: 9},
		{step: "1", want: 0},
		{step: "0.0100", want: 2},
		{step: "10.0", want: 0},
	}

	for _, tt := range tests {
		if got := decimalPlaces(tt.step); got != tt.want {
			t.Errorf("decimalPlaces(%s) = %d, want %d", tt.step, got, tt.want)
		}
	}
}

// TestHitbtcOrderActive проверяет таблицу активных статусов ордера
func TestHitbtcOrderActive(t *testing.T) {
	active := map[string]bool{
		"new":             true,
		"suspended":       true,
		"partiallyFilled": true,
		"filled":          false,
		"canceled":        false,
		"expired":         false,
		"":                false,
	}

	for status, want := range active {
		if got := hitbtcOrderActive(status); got != want {
			t.Errorf("hitbtcOrderActive(%q) = %v, want %v", status, got, want)
		}
	}
}

// TestHitbtcPairs проверяет слияние метаданных символов с тикерами
func TestHitbtcPairs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/public/symbol":
			fmt.Fprint(w, `[
				{"id":"LTCBTC","baseCurrency":"LTC","quoteCurrency":"BTC",
				 "quantityIncrement":"0.1","tickSize":"0.00001",
				 "takeLiquidityRate":"0.001","provideLiquidityRate":"-0.0001"},
				{"id":"ETHUSD","baseCurrency":"ETH","quoteCurrency":"USD",
				 "quantityIncrement":"0.0001","tickSize":"0.01",
				 "takeLiquidityRate":"0.002","provideLiquidityRate":"0.001"}
			]`)
		case "/public/ticker":
			fmt.Fprint(w, `[
				{"symbol":"LTCBTC","ask":"0.0051","bid":"0.0049","last":"0.005",
				 "open":"0.004","low":"0.0049","high":"0.0055","volume":"120.5","volumeQuote":"0.6"},
				{"symbol":"ETHUSD","ask":null,"bid":null,"last":null,
				 "open":null,"low":null,"high":null,"volume":"0","volumeQuote":"0"}
			]`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	h := testHitBTC(server)

	pairs, err := h.Pairs(context.Background())
	if err != nil {
		t.Fatalf("Pairs failed: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("pairs = %d, want 2", len(pairs))
	}

	ltc := pairs["BTC_LTC"]
	if ltc == nil {
		t.Fatal("BTC_LTC missing from listing")
	}
	if ltc.ExID != "LTCBTC" {
		t.Errorf("ex_id = %s, want LTCBTC", ltc.ExID)
	}
	if ltc.BaseCoin != "BTC" || ltc.QuoteCoin != "LTC" {
		t.Errorf("coins = %s/%s, want BTC/LTC", ltc.BaseCoin, ltc.QuoteCoin)
	}
	if ltc.Last != 0.005 || ltc.Volume != 120.5 {
		t.Errorf("ticker fields = last %g volume %g", ltc.Last, ltc.Volume)
	}
	// ставки комиссий приходят долями, храним проценты
	if ltc.Fees.Taker != 0.1 || ltc.Fees.Maker != -0.01 {
		t.Errorf("fees = %+v", ltc.Fees)
	}
	if ltc.Precision.Amount != 1 || ltc.Precision.Price != 5 {
		t.Errorf("precision = %+v", ltc.Precision)
	}
	if !ltc.Enabled {
		t.Error("pair with volume must be enabled")
	}

	eth := pairs["USD_ETH"]
	if eth == nil {
		t.Fatal("USD_ETH missing from listing")
	}
	if eth.Enabled {
		t.Error("pair without volume must be disabled")
	}
	if eth.Last != 0 {
		t.Errorf("null ticker fields must map to zero, got %g", eth.Last)
	}
}

// TestHitbtcBalanceSigning проверяет канон подписи подписанных запросов
func TestHitbtcBalanceSigning(t *testing.T) {
	creds := Credentials{Key: "test-key", Secret: "test-secret"}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != creds.Key {
			t.Errorf("X-API-Key = %s, want %s", r.Header.Get("X-API-Key"), creds.Key)
		}

		nonce := r.Header.Get("X-Nonce")
		if nonce == "" {
			t.Error("X-Nonce is missing")
		}

		// Подпись: HMAC-SHA256 от "METHOD /path?query nonce"
		payload := r.Method + " " + r.URL.RequestURI() + " " + nonce
		mac := hmac.New(sha256.New, []byte(creds.Secret))
		mac.Write([]byte(payload))
		expected := hex.EncodeToString(mac.Sum(nil))

		if r.Header.Get("X-Signature") != expected {
			t.Errorf("X-Signature = %s, want %s", r.Header.Get("X-Signature"), expected)
		}

		fmt.Fprint(w, `[
			{"currency":"BTC","available":"1.0","reserved":"0.5"},
			{"currency":"eth","available":"10","reserved":"0"}
		]`)
	}))
	defer server.Close()

	h := testHitBTC(server)

	result, err := h.Balance(context.Background(), creds)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}

	btc := result.Balance["BTC"]
	if btc == nil {
		t.Fatal("BTC balance missing")
	}
	if btc.Total != 1.5 || btc.Available != 1.0 || btc.OnOrders != 0.5 {
		t.Errorf("BTC balance = %+v", btc)
	}
	if result.Balance["ETH"] == nil {
		t.Error("coin codes must be upper cased")
	}
}

// TestHitbtcBalanceRequiresCredentials проверяет отказ без ключей
func TestHitbtcBalanceRequiresCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not be sent without credentials")
	}))
	defer server.Close()

	h := testHitBTC(server)

	_, err := h.Balance(context.Background(), Credentials{Key: "only-key"})
	if !errors.Is(err, ErrCredentialsMissing) {
		t.Errorf("error = %v, want ErrCredentialsMissing", err)
	}
}

// TestHitbtcOpenOrders проверяет маппинг открытых ордеров
func TestHitbtcOpenOrders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/order" {
			t.Errorf("path = %s", r.URL.Path)
		}
		fmt.Fprint(w, `[
			{"clientOrderId":"oid-1","symbol":"LTCBTC","side":"BUY","status":"new",
			 "quantity":"5","cumQuantity":"0","price":"0.005","createdAt":"2019-03-14T20:00:00.000Z"},
			{"clientOrderId":"oid-2","symbol":"ETHUSD","side":"sell","status":"partiallyFilled",
			 "quantity":"2","cumQuantity":"1.5","price":"140.5","createdAt":"2019-03-14T21:00:00.000Z"}
		]`)
	}))
	defer server.Close()

	h := testHitBTC(server)

	result, err := h.OpenOrders(context.Background(), Credentials{Key: "k", Secret: "s"}, nil)
	if err != nil {
		t.Fatalf("OpenOrders failed: %v", err)
	}
	if result.Status != StatusOK {
		t.Fatalf("status = %s, want ok", result.Status)
	}
	if len(result.Orders) != 2 {
		t.Fatalf("orders = %d, want 2", len(result.Orders))
	}

	first := result.Orders[0]
	if first.Symbol != "BTC_LTC" || first.Op != "buy" || first.Partial() {
		t.Errorf("first order = %+v", first)
	}

	second := result.Orders[1]
	if second.Symbol != "USD_ETH" || second.FilledQty != 1.5 || !second.Partial() {
		t.Errorf("second order = %+v", second)
	}
}

// TestHitbtcOpenOrdersAPIError проверяет упаковку ошибки API в результат.
// Часть ошибок HitBTC приходит со статусом 200 и полем error в теле.
func TestHitbtcOpenOrdersAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"code":1003,"message":"Action is forbidden for this API key"}}`)
	}))
	defer server.Close()

	h := testHitBTC(server)

	result, err := h.OpenOrders(context.Background(), Credentials{Key: "bad", Secret: "bad"}, nil)
	if err != nil {
		t.Fatalf("OpenOrders must not return transport error, got: %v", err)
	}
	if result.Status != StatusError {
		t.Fatalf("status = %s, want error", result.Status)
	}
	if result.Error == nil || result.Error.Code != "api_request_error" {
		t.Errorf("error = %+v, want api_request_error", result.Error)
	}
}

// TestHitbtcTrades проверяет маппинг сделок аккаунта
func TestHitbtcTrades(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"id":1001,"clientOrderId":"oid-1","symbol":"LTCBTC","side":"buy",
			 "quantity":"2","price":"0.0049","timestamp":"2019-03-14T20:00:00.000Z"},
			{"id":1002,"clientOrderId":"oid-2","symbol":"LTCBTC","side":"sell",
			 "quantity":"0","price":"0.005","timestamp":"2019-03-14T21:00:00.000Z"}
		]`)
	}))
	defer server.Close()

	h := testHitBTC(server)

	result, err := h.Trades(context.Background(), Credentials{Key: "k", Secret: "s"}, nil)
	if err != nil {
		t.Fatalf("Trades failed: %v", err)
	}
	if len(result.Trades) != 1 {
		t.Fatalf("trades = %d, want 1 (zero quantity skipped)", len(result.Trades))
	}

	trade := result.Trades[0]
	if trade.OID != "oid-1" || trade.Op != "buy" || trade.Qty != 2 || trade.Price != 0.0049 {
		t.Errorf("trade = %+v", trade)
	}
}

// TestHitbtcOrderInfo проверяет сведения об ордере и его отсутствие
func TestHitbtcOrderInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("clientOrderId") {
		case "oid-1":
			fmt.Fprint(w, `[
				{"clientOrderId":"oid-1","symbol":"LTCBTC","side":"buy","status":"filled",
				 "quantity":"2","cumQuantity":"2","price":"0.005","createdAt":"2019-03-14T20:00:00.000Z"}
			]`)
		default:
			fmt.Fprint(w, `[]`)
		}
	}))
	defer server.Close()

	h := testHitBTC(server)
	creds := Credentials{Key: "k", Secret: "s"}

	info, err := h.OrderInfo(context.Background(), creds, OrderInfoParams{OID: "oid-1"})
	if err != nil {
		t.Fatalf("OrderInfo failed: %v", err)
	}
	if info.FilledQty != 2 || info.Active {
		t.Errorf("info = %+v", info)
	}
	if info.DetailedStatus() != "filled" {
		t.Errorf("detailed status = %s, want filled", info.DetailedStatus())
	}

	// Пустой ответ истории означает что ордер не найден
	_, err = h.OrderInfo(context.Background(), creds, OrderInfoParams{OID: "oid-gone"})
	var apiErr *APIRequestError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want APIRequestError", err)
	}
	if apiErr.Status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", apiErr.Status)
	}
}
