package sync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"coinsync/internal/models"
)

// PairsSynchronizer актуализирует листинг торговых пар биржи.
//
// Синхронизация не привязана к аккаунту: листинг публичный, один на
// биржу. Пары вливаются идемпотентно; пара, пропавшая из свежего
// листинга, помечается outdated, но никогда не удаляется.
type PairsSynchronizer struct {
	brokers BrokerSource
	pairs   PairStore
	runs    RunStore
	log     *zap.Logger
}

// NewPairsSynchronizer создает синхронизатор пар
func NewPairsSynchronizer(brokers BrokerSource, pairs PairStore, runs RunStore) *PairsSynchronizer {
	return &PairsSynchronizer{
		brokers: brokers,
		pairs:   pairs,
		runs:    runs,
		log:     zap.L().Named("sync.pairs"),
	}
}

// SyncExchange загружает листинг биржи и вливает его в хранилище
func (s *PairsSynchronizer) SyncExchange(ctx context.Context, exchange *models.Exchange) error {
	t := newTracker(s.runs, models.SyncTypePairs, 0, s.log)

	b, err := s.brokers.For(exchange.Name)
	if err != nil {
		t.fail(err)
		return err
	}

	started := time.Now()
	listing, err := b.Pairs(ctx)
	BrokerRequestDuration.WithLabelValues(exchange.Name, "pairs").Observe(time.Since(started).Seconds())
	if err != nil {
		t.fail(err)
		return err
	}

	t.to(StateValidating)

	pairs := make([]*models.Pair, 0, len(listing))
	for _, item := range listing {
		pair := &models.Pair{
			ExchangeID:      exchange.ID,
			Symbol:          item.Symbol,
			ExID:            item.ExID,
			BaseCoin:        item.BaseCoin,
			QuoteCoin:       item.QuoteCoin,
			Last:            item.Last,
			Bid:             item.Bid,
			Ask:             item.Ask,
			High:            item.High,
			Low:             item.Low,
			Open:            item.Open,
			Volume:          item.Volume,
			BaseVolume:      item.BaseVolume,
			QuoteVolume:     item.QuoteVolume,
			ChangePercent:   item.ChangePercent,
			MakerFee:        item.Fees.Maker,
			TakerFee:        item.Fees.Taker,
			AmountPrecision: item.Precision.Amount,
			PricePrecision:  item.Precision.Price,
			Enabled:         item.Enabled,
			ActualizedAt:    item.ActualizedAt,
		}

		if err := models.ValidatePair(pair); err != nil {
			ValidationRejects.WithLabelValues(models.SyncTypePairs).Inc()
			t.fail(err)
			return err
		}

		pairs = append(pairs, pair)
	}

	t.to(StateUpserting)

	activeSymbols := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		if err := s.pairs.Upsert(pair); err != nil {
			t.fail(err)
			return err
		}
		activeSymbols = append(activeSymbols, pair.Symbol)
	}

	outdated, err := s.pairs.MarkOutdated(exchange.ID, activeSymbols)
	if err != nil {
		t.fail(err)
		return err
	}

	t.succeed()
	s.log.Info("pairs synced",
		zap.String("exchange", exchange.Name),
		zap.Int("pairs", len(pairs)),
		zap.Int64("marked_outdated", outdated),
	)

	return nil
}
