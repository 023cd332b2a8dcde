package sync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"coinsync/internal/broker"
	"coinsync/internal/models"
)

// PositionsSynchronizer сверяет балансы аккаунта с биржей.
//
// Запрос баланса заменяет актуальный снимок позиций аккаунта целиком
// (плюс строка истории на каждую монету). Оценка в USD и BTC считается
// здесь, по графу курсов из сохранённых пар: адаптеры бирж возвращают
// только сырые балансы. Итог запроса баланса питает предохранитель.
type PositionsSynchronizer struct {
	brokers   BrokerSource
	accounts  AccountStore
	positions PositionStore
	pairs     PairStore
	runs      RunStore
	creds     *CredentialStore
	breaker   *Breaker
	log       *zap.Logger
}

// NewPositionsSynchronizer создает синхронизатор позиций
func NewPositionsSynchronizer(
	brokers BrokerSource,
	accounts AccountStore,
	positions PositionStore,
	pairs PairStore,
	runs RunStore,
	creds *CredentialStore,
	breaker *Breaker,
) *PositionsSynchronizer {
	return &PositionsSynchronizer{
		brokers:   brokers,
		accounts:  accounts,
		positions: positions,
		pairs:     pairs,
		runs:      runs,
		creds:     creds,
		breaker:   breaker,
		log:       zap.L().Named("sync.positions"),
	}
}

// SyncExchange синхронизирует позиции всех активных аккаунтов биржи
func (s *PositionsSynchronizer) SyncExchange(ctx context.Context, exchange *models.Exchange) error {
	accounts, err := s.accounts.GetActiveByExchange(exchange.ID)
	if err != nil {
		return err
	}

	for _, account := range accounts {
		if err := ctx.Err(); err != nil {
			return err
		}
		// Ошибка одного аккаунта не прерывает обход остальных
		if err := s.SyncAccount(ctx, exchange, account); err != nil {
			s.log.Error("positions sync failed",
				zap.Int("account_id", account.ID),
				zap.String("exchange", exchange.Name),
				zap.Error(err),
			)
		}
	}

	return nil
}

// SyncAccount синхронизирует позиции одного аккаунта
func (s *PositionsSynchronizer) SyncAccount(ctx context.Context, exchange *models.Exchange, account *models.Account) error {
	t := newTracker(s.runs, models.SyncTypePositions, account.ID, s.log)

	if account.Deactivated() {
		t.fail(ErrAccountDeactivated)
		return ErrAccountDeactivated
	}

	result, err := s.fetchBalance(ctx, exchange, account)
	if err != nil {
		t.fail(err)
		return err
	}

	t.to(StateValidating)

	syncedAt := time.Now().UTC()
	positions, err := s.buildPositions(exchange, account, result, syncedAt)
	if err != nil {
		ValidationRejects.WithLabelValues(models.SyncTypePositions).Inc()
		t.fail(err)
		return err
	}

	t.to(StateUpserting)

	if err := s.positions.ReplaceSnapshot(exchange.ID, account.ID, positions, syncedAt); err != nil {
		t.fail(err)
		return err
	}

	t.succeed()
	s.log.Info("positions synced",
		zap.Int("account_id", account.ID),
		zap.String("exchange", exchange.Name),
		zap.Int("coins", len(positions)),
	)

	return nil
}

// fetchBalance запрашивает балансы и фиксирует итог в предохранителе
func (s *PositionsSynchronizer) fetchBalance(ctx context.Context, exchange *models.Exchange, account *models.Account) (*broker.BalanceResult, error) {
	b, err := s.brokers.For(exchange.Name)
	if err != nil {
		return nil, err
	}

	creds, err := s.creds.Decrypt(account)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	result, err := b.Balance(ctx, creds)
	BrokerRequestDuration.WithLabelValues(exchange.Name, "balance").Observe(time.Since(started).Seconds())

	if err != nil {
		if _, berr := s.breaker.RecordFailure(account, exchange.Name, err); berr != nil {
			s.log.Error("breaker update failed", zap.Int("account_id", account.ID), zap.Error(berr))
		}
		return nil, err
	}

	if err := s.breaker.RecordSuccess(account); err != nil {
		s.log.Error("breaker reset failed", zap.Int("account_id", account.ID), zap.Error(err))
	}

	return result, nil
}

// buildPositions преобразует и валидирует балансы, оценивая их
// в USD и BTC по графу курсов биржи
func (s *PositionsSynchronizer) buildPositions(exchange *models.Exchange, account *models.Account, balance *broker.BalanceResult, syncedAt time.Time) ([]*models.Position, error) {
	storedPairs, err := s.pairs.GetByExchange(exchange.ID)
	if err != nil {
		return nil, err
	}
	converter := BuildConverter(storedPairs)

	positions := make([]*models.Position, 0, len(balance.Balance))
	for _, item := range balance.Balance {
		if item.Total == 0 {
			continue
		}

		position := &models.Position{
			UserID:     account.UserID,
			ExchangeID: exchange.ID,
			AccountID:  account.ID,
			Coin:       item.Coin,
			Total:      item.Total,
			Available:  item.Available,
			OnOrders:   item.OnOrders,
			UpdatedAt:  syncedAt,
		}

		// Неконвертируемая монета хранит NULL вместо нуля
		if usd, ok := converter.ToUSD(item.Total, item.Coin); ok {
			position.USDValue = &usd
		}
		if btc, ok := converter.ToBTC(item.Total, item.Coin); ok {
			position.BTCValue = &btc
		}

		if err := models.ValidatePosition(position); err != nil {
			return nil, err
		}

		positions = append(positions, position)
	}

	return positions, nil
}
