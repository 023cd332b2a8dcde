package broker

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testBittrex(server *httptest.Server) *Bittrex {
	return newBittrex(server.URL, server.Client())
}

func bittrexSuccess(result string) string {
	return fmt.Sprintf(`{"success":true,"message":"","result":%s}`, result)
}

// TestBittrexParseSymbol проверяет разбор нативных дефисных символов
func TestBittrexParseSymbol(t *testing.T) {
	tests := []struct {
		symbol    string
		baseCoin  string
		quoteCoin string
		wantErr   bool
	}{
		{symbol: "BTC-LTC", baseCoin: "BTC", quoteCoin: "LTC"},
		{symbol: "usdt-btc", baseCoin: "USDT", quoteCoin: "BTC"},
		{symbol: "BTCLTC", wantErr: true},
		{symbol: "BTC-", wantErr: true},
		{symbol: "-LTC", wantErr: true},
	}

	for _, tt := range tests {
		baseCoin, quoteCoin, err := parseBittrexSymbol(tt.symbol)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseBittrexSymbol(%s) expected error", tt.symbol)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseBittrexSymbol(%s) failed: %v", tt.symbol, err)
			continue
		}
		if baseCoin != tt.baseCoin || quoteCoin != tt.quoteCoin {
			t.Errorf("parseBittrexSymbol(%s) = (%s, %s), want (%s, %s)",
				tt.symbol, baseCoin, quoteCoin, tt.baseCoin, tt.quoteCoin)
		}
	}
}

// TestBittrexPairs проверяет маппинг листинга в канонические пары
func TestBittrexPairs(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/public/getmarketsummaries" {
			t.Errorf("path = %s", r.URL.Path)
		}
		fmt.Fprint(w, bittrexSuccess(`[
			{"MarketName":"BTC-LTC","High":0.0055,"Low":0.0049,"Volume":120.5,"Last":0.005,
			 "BaseVolume":0.6,"Bid":0.0049,"Ask":0.0051,"PrevDay":0.004},
			{"MarketName":"USDT-BTC","High":21000,"Low":19000,"Volume":0,"Last":20000,
			 "BaseVolume":0,"Bid":19990,"Ask":20010,"PrevDay":20000}
		]`))
	}))
	defer server.Close()

	b := testBittrex(server)

	pairs, err := b.Pairs(context.Background())
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
	if ltc.ExID != "BTC-LTC" {
		t.Errorf("ex_id = %s, want BTC-LTC", ltc.ExID)
	}
	if ltc.BaseCoin != "BTC" || ltc.QuoteCoin != "LTC" {
		t.Errorf("coins = %s/%s, want BTC/LTC", ltc.BaseCoin, ltc.QuoteCoin)
	}
	if !ltc.Enabled {
		t.Error("pair with volume must be enabled")
	}
	if ltc.Fees.Taker != bittrexTakerFee {
		t.Errorf("taker fee = %g, want %g", ltc.Fees.Taker, bittrexTakerFee)
	}
	// (0.005 - 0.004) / 0.004 * 100
	if ltc.ChangePercent < 24.9 || ltc.ChangePercent > 25.1 {
		t.Errorf("change percent = %g, want 25", ltc.ChangePercent)
	}

	if pairs["USDT_BTC"].Enabled {
		t.Error("pair without volume must be disabled")
	}

	// Повторный вызов идёт из кеша
	if _, err := b.Pairs(context.Background()); err != nil {
		t.Fatalf("cached Pairs failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("requests = %d, want 1 (second call cached)", calls)
	}
}

// TestBittrexBalanceSigning проверяет канон подписи подписанных запросов
func TestBittrexBalanceSigning(t *testing.T) {
	creds := Credentials{Key: "test-key", Secret: "test-secret"}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("apikey") != creds.Key {
			t.Errorf("apikey = %s, want %s", r.URL.Query().Get("apikey"), creds.Key)
		}
		if r.URL.Query().Get("nonce") == "" {
			t.Error("nonce is missing")
		}

		// Подпись: HMAC-SHA512 от полного URL запроса
		fullURL := "http://" + r.Host + r.URL.RequestURI()
		mac := hmac.New(sha512.New, []byte(creds.Secret))
		mac.Write([]byte(fullURL))
		expected := hex.EncodeToString(mac.Sum(nil))

		if r.Header.Get("apisign") != expected {
			t.Errorf("apisign = %s, want %s", r.Header.Get("apisign"), expected)
		}

		fmt.Fprint(w, bittrexSuccess(`[
			{"Currency":"BTC","Balance":1.5,"Available":1.0},
			{"Currency":"ltc","Balance":10,"Available":10}
		]`))
	}))
	defer server.Close()

	b := testBittrex(server)

	result, err := b.Balance(context.Background(), creds)
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
	if result.Balance["LTC"] == nil {
		t.Error("coin codes must be upper cased")
	}
}

// TestBittrexBalanceRequiresCredentials проверяет отказ без ключей
func TestBittrexBalanceRequiresCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not be sent without credentials")
	}))
	defer server.Close()

	b := testBittrex(server)

	_, err := b.Balance(context.Background(), Credentials{})
	if !errors.Is(err, ErrCredentialsMissing) {
		t.Errorf("error = %v, want ErrCredentialsMissing", err)
	}
}

// TestBittrexOpenOrders проверяет маппинг открытых ордеров и частичного исполнения
func TestBittrexOpenOrders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, bittrexSuccess(`[
			{"OrderUuid":"uuid-1","Exchange":"BTC-LTC","OrderType":"LIMIT_BUY",
			 "Quantity":5,"QuantityRemaining":5,"Limit":0.005,"Opened":"2019-03-14T20:00:00.12"},
			{"OrderUuid":"uuid-2","Exchange":"BTC-LTC","OrderType":"LIMIT_SELL",
			 "Quantity":2,"QuantityRemaining":0.5,"Limit":0.006,"Opened":"2019-03-14T21:00:00.5"}
		]`))
	}))
	defer server.Close()

	b := testBittrex(server)

	result, err := b.OpenOrders(context.Background(), Credentials{Key: "k", Secret: "s"}, nil)
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
	if first.Symbol != "BTC_LTC" || first.Op != "buy" || first.FilledQty != 0 {
		t.Errorf("first order = %+v", first)
	}
	if first.Partial() {
		t.Error("untouched order must not be partial")
	}

	second := result.Orders[1]
	if second.FilledQty != 1.5 {
		t.Errorf("filled qty = %g, want 1.5", second.FilledQty)
	}
	if !second.Partial() {
		t.Error("order with fills must be partial")
	}
}

// TestBittrexOpenOrdersAPIError проверяет что ошибка API упаковывается в результат
func TestBittrexOpenOrdersAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":false,"message":"APIKEY_INVALID","result":null}`)
	}))
	defer server.Close()

	b := testBittrex(server)

	result, err := b.OpenOrders(context.Background(), Credentials{Key: "bad", Secret: "bad"}, nil)
	if err != nil {
		t.Fatalf("OpenOrders must not return transport error, got: %v", err)
	}
	if result.Status != StatusError {
		t.Fatalf("status = %s, want error", result.Status)
	}
	if result.Error == nil || result.Error.Code != "auth_error" {
		t.Errorf("error = %+v, want auth_error", result.Error)
	}
}

// TestBittrexTradesSkipsUnfilled проверяет что неисполненные ордера
// не превращаются в сделки
func TestBittrexTradesSkipsUnfilled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, bittrexSuccess(`[
			{"OrderUuid":"uuid-1","Exchange":"BTC-LTC","TimeStamp":"2019-03-14T20:00:00",
			 "OrderType":"LIMIT_BUY","Limit":0.005,"Quantity":2,"QuantityRemaining":0,"PricePerUnit":0.0049},
			{"OrderUuid":"uuid-2","Exchange":"BTC-LTC","TimeStamp":"2019-03-14T21:00:00",
			 "OrderType":"LIMIT_SELL","Limit":0.006,"Quantity":3,"QuantityRemaining":3,"PricePerUnit":null}
		]`))
	}))
	defer server.Close()

	b := testBittrex(server)

	result, err := b.Trades(context.Background(), Credentials{Key: "k", Secret: "s"}, nil)
	if err != nil {
		t.Fatalf("Trades failed: %v", err)
	}
	if len(result.Trades) != 1 {
		t.Fatalf("trades = %d, want 1 (unfilled skipped)", len(result.Trades))
	}

	trade := result.Trades[0]
	if trade.OID != "uuid-1" || trade.Qty != 2 || trade.Price != 0.0049 {
		t.Errorf("trade = %+v", trade)
	}
}

// TestBittrexOrderInfo проверяет сведения об ордере
func TestBittrexOrderInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("uuid") != "uuid-1" {
			t.Errorf("uuid = %s", r.URL.Query().Get("uuid"))
		}
		fmt.Fprint(w, bittrexSuccess(`{"OrderUuid":"uuid-1","Quantity":2,"QuantityRemaining":0.5,"Limit":0.005,"IsOpen":true}`))
	}))
	defer server.Close()

	b := testBittrex(server)

	info, err := b.OrderInfo(context.Background(), Credentials{Key: "k", Secret: "s"}, OrderInfoParams{OID: "uuid-1"})
	if err != nil {
		t.Fatalf("OrderInfo failed: %v", err)
	}

	if info.FilledQty != 1.5 || !info.Active {
		t.Errorf("info = %+v", info)
	}
	if info.DetailedStatus() != "partial" {
		t.Errorf("detailed status = %s, want partial", info.DetailedStatus())
	}
}

// TestBittrexServerError проверяет маппинг HTTP статусов в типизированные ошибки
func TestBittrexServerError(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantAuth bool
	}{
		{name: "internal error", status: http.StatusInternalServerError},
		{name: "unauthorized", status: http.StatusUnauthorized, wantAuth: true},
		{name: "forbidden", status: http.StatusForbidden, wantAuth: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			b := testBittrex(server)

			_, err := b.OrderInfo(context.Background(), Credentials{Key: "k", Secret: "s"}, OrderInfoParams{OID: "x"})
			if err == nil {
				t.Fatal("expected error")
			}

			if IsAuthError(err) != tt.wantAuth {
				t.Errorf("IsAuthError = %v, want %v (err: %v)", IsAuthError(err), tt.wantAuth, err)
			}
		})
	}
}
