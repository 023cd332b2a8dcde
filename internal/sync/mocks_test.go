package sync

import (
	"context"
	"testing"
	"time"

	"coinsync/internal/broker"
	"coinsync/internal/models"
	"coinsync/internal/repository"
	"coinsync/pkg/crypto"
)

// testCredentials создает хранилище кредов и аккаунт с зашифрованными ключами
func testCredentials(t *testing.T) (*CredentialStore, *models.Account) {
	t.Helper()

	store, err := NewCredentialStore("test-passphrase", "test-salt")
	if err != nil {
		t.Fatalf("NewCredentialStore failed: %v", err)
	}

	key, err := crypto.DeriveKey("test-passphrase", "test-salt")
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}

	encKey, err := crypto.Encrypt("api-key", key)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	encSecret, err := crypto.Encrypt("api-secret", key)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	account := &models.Account{
		ID:              7,
		UserID:          1,
		ExchangeID:      1,
		EncryptedKey:    encKey,
		EncryptedSecret: encSecret,
	}

	return store, account
}

// Простые моки хранилищ для тестов синхронизаторов. Каждый мок хранит
// состояние в памяти и фиксирует вызовы; поведение переопределяется
// функциональными полями.

type fakeAccountStore struct {
	accounts    []*models.Account
	failures    map[int]int
	deactivated map[int]string
	resets      int
}

func newFakeAccountStore(accounts ...*models.Account) *fakeAccountStore {
	return &fakeAccountStore{
		accounts:    accounts,
		failures:    make(map[int]int),
		deactivated: make(map[int]string),
	}
}

func (s *fakeAccountStore) GetActiveByExchange(exchangeID int) ([]*models.Account, error) {
	var out []*models.Account
	for _, a := range s.accounts {
		if a.ExchangeID == exchangeID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeAccountStore) IncrementFailures(id int) (int, error) {
	s.failures[id]++
	return s.failures[id], nil
}

func (s *fakeAccountStore) ResetFailures(id int) error {
	s.failures[id] = 0
	s.resets++
	return nil
}

func (s *fakeAccountStore) Deactivate(id int, reason string, at time.Time) error {
	if _, ok := s.deactivated[id]; !ok {
		s.deactivated[id] = reason
	}
	return nil
}

type fakeOrderStore struct {
	upserted []*models.Order
	active   []*models.Order
	byOID    map[string]*models.Order
	updates  []string // "id:status"
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{byOID: make(map[string]*models.Order)}
}

func (s *fakeOrderStore) Upsert(order *models.Order, syncedAt time.Time) error {
	s.upserted = append(s.upserted, order)
	return nil
}

func (s *fakeOrderStore) GetActive(accountID int) ([]*models.Order, error) {
	return s.active, nil
}

func (s *fakeOrderStore) GetByOID(exchangeID, accountID int, oid string) (*models.Order, error) {
	order, ok := s.byOID[oid]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return order, nil
}

func (s *fakeOrderStore) UpdateStatus(id int, status string, filledQty, executedPrice float64, syncedAt time.Time) error {
	s.updates = append(s.updates, status)
	return nil
}

type fakeTradeStore struct {
	upserted []*models.Trade
	existing map[string]bool // params_digest уже вставлен
}

func newFakeTradeStore() *fakeTradeStore {
	return &fakeTradeStore{existing: make(map[string]bool)}
}

func (s *fakeTradeStore) Upsert(trade *models.Trade) (bool, error) {
	s.upserted = append(s.upserted, trade)
	if s.existing[trade.ParamsDigest] {
		return false, nil
	}
	s.existing[trade.ParamsDigest] = true
	return true, nil
}

type fakePairStore struct {
	pairs    []*models.Pair
	ids      map[string]int
	upserted []*models.Pair
	outdated []string
}

func (s *fakePairStore) Upsert(pair *models.Pair) error {
	s.upserted = append(s.upserted, pair)
	return nil
}

func (s *fakePairStore) GetByExchange(exchangeID int) ([]*models.Pair, error) {
	return s.pairs, nil
}

func (s *fakePairStore) IDsBySymbol(exchangeID int) (map[string]int, error) {
	return s.ids, nil
}

func (s *fakePairStore) MarkOutdated(exchangeID int, activeSymbols []string) (int64, error) {
	s.outdated = activeSymbols
	return 0, nil
}

type fakePositionStore struct {
	snapshots [][]*models.Position
}

func (s *fakePositionStore) ReplaceSnapshot(exchangeID, accountID int, positions []*models.Position, syncedAt time.Time) error {
	s.snapshots = append(s.snapshots, positions)
	return nil
}

type fakeRunStore struct {
	began     []string
	succeeded int
	failed    []string
}

func (s *fakeRunStore) Begin(syncType string, accountID int, startedAt time.Time) (int, error) {
	s.began = append(s.began, syncType)
	return len(s.began), nil
}

func (s *fakeRunStore) Succeed(id int, finishedAt time.Time) error {
	s.succeeded++
	return nil
}

func (s *fakeRunStore) Fail(id int, errMessage, trace string, finishedAt time.Time) error {
	s.failed = append(s.failed, errMessage)
	return nil
}

// fakeBroker реализует broker.Broker с подменяемыми ответами
type fakeBroker struct {
	name         string
	pairs        map[string]*broker.Pair
	pairsErr     error
	balance      *broker.BalanceResult
	balanceErr   error
	balanceCalls int
	openOrders   *broker.OpenOrdersResult
	ordersErr    error
	ordersCalls  int
	trades       *broker.TradesResult
	tradesErr    error
	tradesCalls  int
	orderInfo    *broker.OrderInfo
	infoErr      error
	infoCalls    []string // oid каждого вызова OrderInfo
}

func (b *fakeBroker) Name() string { return b.name }

func (b *fakeBroker) Pairs(ctx context.Context) (map[string]*broker.Pair, error) {
	return b.pairs, b.pairsErr
}

func (b *fakeBroker) Book(ctx context.Context, symbol string) (*broker.Book, error) {
	return nil, nil
}

func (b *fakeBroker) TradeHistory(ctx context.Context, symbol string) (*broker.TradeHistoryResult, error) {
	return nil, nil
}

func (b *fakeBroker) Balance(ctx context.Context, creds broker.Credentials) (*broker.BalanceResult, error) {
	b.balanceCalls++
	return b.balance, b.balanceErr
}

func (b *fakeBroker) OpenOrders(ctx context.Context, creds broker.Credentials, filter *broker.AccountFilter) (*broker.OpenOrdersResult, error) {
	b.ordersCalls++
	return b.openOrders, b.ordersErr
}

func (b *fakeBroker) Trades(ctx context.Context, creds broker.Credentials, filter *broker.AccountFilter) (*broker.TradesResult, error) {
	b.tradesCalls++
	return b.trades, b.tradesErr
}

func (b *fakeBroker) OrderInfo(ctx context.Context, creds broker.Credentials, params broker.OrderInfoParams) (*broker.OrderInfo, error) {
	b.infoCalls = append(b.infoCalls, params.OID)
	return b.orderInfo, b.infoErr
}

func (b *fakeBroker) Buy(ctx context.Context, creds broker.Credentials, params broker.OrderParams) (*broker.OrderOperation, error) {
	return nil, nil
}

func (b *fakeBroker) Sell(ctx context.Context, creds broker.Credentials, params broker.OrderParams) (*broker.OrderOperation, error) {
	return nil, nil
}

func (b *fakeBroker) Cancel(ctx context.Context, creds broker.Credentials, oid string) (*broker.OrderOperation, error) {
	return nil, nil
}

type fakeBrokerSource struct {
	broker broker.Broker
}

func (s *fakeBrokerSource) For(name string) (broker.Broker, error) {
	return s.broker, nil
}

// fakeVerifier фиксирует запланированные на проверку ордера
type fakeVerifier struct {
	scheduled []string
}

func (v *fakeVerifier) Schedule(exchange *models.Exchange, account *models.Account, order *models.Order) {
	v.scheduled = append(v.scheduled, order.OID)
}
