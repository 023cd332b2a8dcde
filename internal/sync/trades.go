package sync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"coinsync/internal/broker"
	"coinsync/internal/models"
	"coinsync/internal/repository"
	"coinsync/pkg/crypto"
)

// TradesSynchronizer догружает сделки (исполнения) аккаунта.
//
// Сделки вставляются идемпотентно: натуральный ключ включает дайджест
// параметров, поэтому повторный запуск над той же историей ничего не
// дублирует. Сделка привязывается к локальному ордеру по oid, если он
// известен; otherwise order_id остаётся NULL.
type TradesSynchronizer struct {
	brokers  BrokerSource
	accounts AccountStore
	trades   TradeStore
	orders   OrderStore
	pairs    PairStore
	runs     RunStore
	creds    *CredentialStore
	log      *zap.Logger
}

// NewTradesSynchronizer создает синхронизатор сделок
func NewTradesSynchronizer(
	brokers BrokerSource,
	accounts AccountStore,
	trades TradeStore,
	orders OrderStore,
	pairs PairStore,
	runs RunStore,
	creds *CredentialStore,
) *TradesSynchronizer {
	return &TradesSynchronizer{
		brokers:  brokers,
		accounts: accounts,
		trades:   trades,
		orders:   orders,
		pairs:    pairs,
		runs:     runs,
		creds:    creds,
		log:      zap.L().Named("sync.trades"),
	}
}

// SyncExchange синхронизирует сделки всех активных аккаунтов биржи
func (s *TradesSynchronizer) SyncExchange(ctx context.Context, exchange *models.Exchange) error {
	accounts, err := s.accounts.GetActiveByExchange(exchange.ID)
	if err != nil {
		return err
	}

	for _, account := range accounts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.SyncAccount(ctx, exchange, account); err != nil {
			s.log.Error("trades sync failed",
				zap.Int("account_id", account.ID),
				zap.String("exchange", exchange.Name),
				zap.Error(err),
			)
		}
	}

	return nil
}

// SyncAccount синхронизирует сделки одного аккаунта
func (s *TradesSynchronizer) SyncAccount(ctx context.Context, exchange *models.Exchange, account *models.Account) error {
	t := newTracker(s.runs, models.SyncTypeTrades, account.ID, s.log)

	if account.Deactivated() {
		t.fail(ErrAccountDeactivated)
		return ErrAccountDeactivated
	}

	result, err := s.fetchTrades(ctx, exchange, account)
	if err != nil {
		t.fail(err)
		return err
	}

	t.to(StateValidating)

	pairIDs, err := s.pairs.IDsBySymbol(exchange.ID)
	if err != nil {
		t.fail(err)
		return err
	}

	trades, err := s.buildTrades(exchange, account, result, pairIDs)
	if err != nil {
		ValidationRejects.WithLabelValues(models.SyncTypeTrades).Inc()
		t.fail(err)
		return err
	}

	t.to(StateUpserting)

	inserted := 0
	for _, trade := range trades {
		ok, err := s.trades.Upsert(trade)
		if err != nil {
			t.fail(err)
			return err
		}
		if ok {
			inserted++
		}
	}

	t.succeed()
	s.log.Info("trades synced",
		zap.Int("account_id", account.ID),
		zap.String("exchange", exchange.Name),
		zap.Int("fetched", len(trades)),
		zap.Int("inserted", inserted),
	)

	return nil
}

// fetchTrades запрашивает историю сделок аккаунта у биржи
func (s *TradesSynchronizer) fetchTrades(ctx context.Context, exchange *models.Exchange, account *models.Account) (*broker.TradesResult, error) {
	b, err := s.brokers.For(exchange.Name)
	if err != nil {
		return nil, err
	}

	creds, err := s.creds.Decrypt(account)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	result, err := b.Trades(ctx, creds, nil)
	BrokerRequestDuration.WithLabelValues(exchange.Name, "trades").Observe(time.Since(started).Seconds())
	if err != nil {
		return nil, err
	}

	if result.Status == broker.StatusError {
		return nil, fmt.Errorf("trades request: %s", result.Error.Message)
	}

	return result, nil
}

// buildTrades преобразует и валидирует сделки из ответа биржи.
// Сделка с неизвестным локально символом отбрасывается (лог + метрика).
func (s *TradesSynchronizer) buildTrades(exchange *models.Exchange, account *models.Account, result *broker.TradesResult, pairIDs map[string]int) ([]*models.Trade, error) {
	trades := make([]*models.Trade, 0, len(result.Trades))

	for _, item := range result.Trades {
		pairID, known := pairIDs[item.Symbol]
		if !known {
			RecordUnresolvedSymbol(exchange.Name, models.SyncTypeTrades)
			s.log.Warn("trade dropped: unknown symbol",
				zap.String("exchange", exchange.Name),
				zap.String("symbol", item.Symbol),
				zap.String("oid", item.OID),
			)
			continue
		}

		trade := &models.Trade{
			UserID:       account.UserID,
			ExchangeID:   exchange.ID,
			AccountID:    account.ID,
			PairID:       pairID,
			OrderID:      s.resolveOrder(exchange, account, item.OID),
			OID:          item.OID,
			ParamsDigest: tradeDigest(item),
			Kind:         item.Kind,
			Op:           item.Op,
			Qty:          item.Qty,
			Price:        item.Price,
			Timestamp:    item.Timestamp,
		}

		if err := models.ValidateTrade(trade); err != nil {
			return nil, err
		}

		trades = append(trades, trade)
	}

	return trades, nil
}

// resolveOrder ищет локальный ордер с тем же oid; nil если не найден
func (s *TradesSynchronizer) resolveOrder(exchange *models.Exchange, account *models.Account, oid string) *int {
	order, err := s.orders.GetByOID(exchange.ID, account.ID, oid)
	if err != nil {
		if !errors.Is(err, repository.ErrOrderNotFound) {
			s.log.Warn("order lookup failed",
				zap.String("oid", oid),
				zap.Error(err),
			)
		}
		return nil
	}
	return &order.ID
}

// tradeDigest строит дайджест исполнения. Биржи переиспользуют oid для
// разных исполнений одного ордера, поэтому ключ дедупликации включает
// параметры сделки.
func tradeDigest(item *broker.Trade) string {
	return crypto.ParamsDigest(map[string]string{
		"oid":       item.OID,
		"op":        item.Op,
		"qty":       strconv.FormatFloat(item.Qty, 'f', -1, 64),
		"price":     strconv.FormatFloat(item.Price, 'f', -1, 64),
		"timestamp": strconv.FormatInt(item.Timestamp.UnixMilli(), 10),
	})
}
