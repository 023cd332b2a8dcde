package sync

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"coinsync/internal/broker"
	"coinsync/internal/models"
)

// StatusVerifier принимает ордера на внеочередную проверку статуса.
// Планирование производится ровно один раз на ордер за запуск
// синхронизации; дедупликацию повторных планирований обеспечивает
// реализация.
type StatusVerifier interface {
	Schedule(exchange *models.Exchange, account *models.Account, order *models.Order)
}

// OrdersSynchronizer сверяет открытые ордера аккаунта с биржей.
//
// Снимок открытых ордеров идемпотентно вливается в локальное хранилище.
// Локально активный ордер (open/partial), отсутствующий в свежем
// снимке, не закрывается вслепую: его терминальное состояние неизвестно,
// поэтому он передаётся верификатору для точечной проверки.
// Ордер с нетранслируемым символом отбрасывается с логом и метрикой,
// не прерывая батч.
type OrdersSynchronizer struct {
	brokers  BrokerSource
	accounts AccountStore
	orders   OrderStore
	pairs    PairStore
	runs     RunStore
	creds    *CredentialStore
	verifier StatusVerifier
	log      *zap.Logger
}

// NewOrdersSynchronizer создает синхронизатор ордеров
func NewOrdersSynchronizer(
	brokers BrokerSource,
	accounts AccountStore,
	orders OrderStore,
	pairs PairStore,
	runs RunStore,
	creds *CredentialStore,
	verifier StatusVerifier,
) *OrdersSynchronizer {
	return &OrdersSynchronizer{
		brokers:  brokers,
		accounts: accounts,
		orders:   orders,
		pairs:    pairs,
		runs:     runs,
		creds:    creds,
		verifier: verifier,
		log:      zap.L().Named("sync.orders"),
	}
}

// SyncExchange синхронизирует ордера всех активных аккаунтов биржи
func (s *OrdersSynchronizer) SyncExchange(ctx context.Context, exchange *models.Exchange) error {
	accounts, err := s.accounts.GetActiveByExchange(exchange.ID)
	if err != nil {
		return err
	}

	for _, account := range accounts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.SyncAccount(ctx, exchange, account); err != nil {
			s.log.Error("orders sync failed",
				zap.Int("account_id", account.ID),
				zap.String("exchange", exchange.Name),
				zap.Error(err),
			)
		}
	}

	return nil
}

// SyncAccount синхронизирует ордера одного аккаунта
func (s *OrdersSynchronizer) SyncAccount(ctx context.Context, exchange *models.Exchange, account *models.Account) error {
	t := newTracker(s.runs, models.SyncTypeOrders, account.ID, s.log)

	if account.Deactivated() {
		t.fail(ErrAccountDeactivated)
		return ErrAccountDeactivated
	}

	result, err := s.fetchOpenOrders(ctx, exchange, account)
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

	orders, err := s.buildOrders(exchange, account, result, pairIDs)
	if err != nil {
		ValidationRejects.WithLabelValues(models.SyncTypeOrders).Inc()
		t.fail(err)
		return err
	}

	t.to(StateUpserting)

	syncedAt := time.Now().UTC()
	seen := make(map[string]bool, len(orders))
	for _, order := range orders {
		if err := s.orders.Upsert(order, syncedAt); err != nil {
			t.fail(err)
			return err
		}
		seen[order.OID] = true
	}

	if err := s.scheduleStale(exchange, account, seen); err != nil {
		t.fail(err)
		return err
	}

	t.succeed()
	s.log.Info("orders synced",
		zap.Int("account_id", account.ID),
		zap.String("exchange", exchange.Name),
		zap.Int("orders", len(orders)),
	)

	return nil
}

// fetchOpenOrders запрашивает открытые ордера у биржи
func (s *OrdersSynchronizer) fetchOpenOrders(ctx context.Context, exchange *models.Exchange, account *models.Account) (*broker.OpenOrdersResult, error) {
	b, err := s.brokers.For(exchange.Name)
	if err != nil {
		return nil, err
	}

	creds, err := s.creds.Decrypt(account)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	result, err := b.OpenOrders(ctx, creds, nil)
	BrokerRequestDuration.WithLabelValues(exchange.Name, "open_orders").Observe(time.Since(started).Seconds())
	if err != nil {
		return nil, err
	}

	// Ошибка API упакована в результат, не в error
	if result.Status == broker.StatusError {
		return nil, fmt.Errorf("open orders request: %s", result.Error.Message)
	}

	return result, nil
}

// buildOrders преобразует и валидирует снимок открытых ордеров.
// Ордер с неизвестным локально символом отбрасывается (лог + метрика).
func (s *OrdersSynchronizer) buildOrders(exchange *models.Exchange, account *models.Account, result *broker.OpenOrdersResult, pairIDs map[string]int) ([]*models.Order, error) {
	orders := make([]*models.Order, 0, len(result.Orders))

	for _, item := range result.Orders {
		pairID, known := pairIDs[item.Symbol]
		if !known {
			RecordUnresolvedSymbol(exchange.Name, models.SyncTypeOrders)
			s.log.Warn("order dropped: unknown symbol",
				zap.String("exchange", exchange.Name),
				zap.String("symbol", item.Symbol),
				zap.String("oid", item.OID),
			)
			continue
		}

		status := models.OrderStatusOpen
		if item.Partial() {
			status = models.OrderStatusPartial
		}

		order := &models.Order{
			UserID:     account.UserID,
			ExchangeID: exchange.ID,
			AccountID:  account.ID,
			PairID:     pairID,
			OID:        item.OID,
			Kind:       item.Kind,
			Op:         item.Op,
			Status:     status,
			Qty:        item.Qty,
			FilledQty:  item.FilledQty,
			Price:      item.Price,
			Timestamp:  item.Timestamp,
		}

		if err := models.ValidateOrder(order); err != nil {
			return nil, err
		}

		orders = append(orders, order)
	}

	return orders, nil
}

// scheduleStale передаёт верификатору локально активные ордера,
// пропавшие из свежего снимка
func (s *OrdersSynchronizer) scheduleStale(exchange *models.Exchange, account *models.Account, seen map[string]bool) error {
	if s.verifier == nil {
		return nil
	}

	active, err := s.orders.GetActive(account.ID)
	if err != nil {
		return err
	}

	for _, order := range active {
		if seen[order.OID] {
			continue
		}

		StaleOrdersScheduled.WithLabelValues(exchange.Name).Inc()
		s.log.Info("active order missing from snapshot, scheduling verification",
			zap.Int("order_id", order.ID),
			zap.String("oid", order.OID),
			zap.String("exchange", exchange.Name),
		)
		s.verifier.Schedule(exchange, account, order)
	}

	return nil
}
