package history

import (
	"context"
	"time"

	"go.uber.org/zap"

	"coinsync/internal/models"
	"coinsync/internal/repository"
)

// Store определяет интерфейс хранилища исторических точек
type Store interface {
	InsertBatch(points []*models.CoinHistoryPoint) (int64, error)
	LatestTimestamp(coin string) (time.Time, bool, error)
}

var _ Store = (*repository.CoinHistoryRepository)(nil)

// Synchronizer дозагружает историю цен для набора монет.
//
// Для каждой монеты: читает watermark из хранилища, забирает свечи
// от текущего момента назад до watermark и вставляет их. Частичный
// результат неудачной загрузки тоже сохраняется: повторный запуск
// продолжит с нового watermark.
type Synchronizer struct {
	fetcher *Fetcher
	store   Store
	log     *zap.Logger
}

// NewSynchronizer создает синхронизатор истории
func NewSynchronizer(fetcher *Fetcher, store Store) *Synchronizer {
	return &Synchronizer{
		fetcher: fetcher,
		store:   store,
		log:     zap.L().Named("history.sync"),
	}
}

// SyncCoin дозагружает историю одной монеты.
// Возвращает количество вставленных точек.
func (s *Synchronizer) SyncCoin(ctx context.Context, coin string) (int64, error) {
	watermark, _, err := s.store.LatestTimestamp(coin)
	if err != nil {
		return 0, err
	}

	points, fetchErr := s.fetcher.Fetch(ctx, coin, watermark)

	var inserted int64
	if len(points) > 0 {
		inserted, err = s.store.InsertBatch(points)
		if err != nil {
			return inserted, err
		}
	}

	if fetchErr != nil {
		return inserted, fetchErr
	}

	s.log.Info("coin history synced",
		zap.String("coin", coin),
		zap.Int("fetched", len(points)),
		zap.Int64("inserted", inserted),
	)

	return inserted, nil
}

// SyncCoins дозагружает историю набора монет. Ошибка одной монеты
// логируется и не мешает остальным.
func (s *Synchronizer) SyncCoins(ctx context.Context, coins []string) {
	for _, coin := range coins {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.SyncCoin(ctx, coin); err != nil {
			s.log.Error("coin history sync failed",
				zap.String("coin", coin),
				zap.Error(err),
			)
		}
	}
}
