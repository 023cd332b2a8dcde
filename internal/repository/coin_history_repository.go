package repository

import (
	"database/sql"
	"time"

	"coinsync/internal/models"
)

// CoinHistoryRepository - работа с таблицей coin_history.
//
// История цен append-only: точка по ключу (coin, timestamp) вставляется
// один раз и не изменяется, дубликат игнорируется. Watermark (самая
// поздняя сохранённая точка) определяет, до какого момента листать
// страницы назад во времени при дозагрузке.
type CoinHistoryRepository struct {
	db *sql.DB
}

// NewCoinHistoryRepository создает новый экземпляр репозитория
func NewCoinHistoryRepository(db *sql.DB) *CoinHistoryRepository {
	return &CoinHistoryRepository{db: db}
}

// InsertBatch вставляет пачку точек, дубликаты игнорируются.
// Возвращает количество фактически вставленных точек.
func (r *CoinHistoryRepository) InsertBatch(points []*models.CoinHistoryPoint) (int64, error) {
	query := `
		INSERT INTO coin_history (coin, timestamp, open, high, low, close,
		                          volume_from, volume_to, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (coin, timestamp) DO NOTHING`

	var inserted int64
	for _, point := range points {
		result, err := r.db.Exec(
			query,
			point.Coin,
			point.Timestamp,
			point.Open,
			point.High,
			point.Low,
			point.Close,
			point.VolumeFrom,
			point.VolumeTo,
		)
		if err != nil {
			return inserted, err
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return inserted, err
		}
		inserted += rowsAffected
	}

	return inserted, nil
}

// LatestTimestamp возвращает watermark дозагрузки - метку самой
// поздней сохранённой точки монеты. ok=false если истории ещё нет
// (тогда дозагрузка идёт до исчерпания данных источника).
func (r *CoinHistoryRepository) LatestTimestamp(coin string) (time.Time, bool, error) {
	query := `SELECT MAX(timestamp) FROM coin_history WHERE coin = $1`

	var latest sql.NullTime
	if err := r.db.QueryRow(query, coin).Scan(&latest); err != nil {
		return time.Time{}, false, err
	}

	if !latest.Valid {
		return time.Time{}, false, nil
	}

	return latest.Time, true, nil
}

// GetRange возвращает точки монеты за период (по убыванию времени)
func (r *CoinHistoryRepository) GetRange(coin string, from, to time.Time) ([]*models.CoinHistoryPoint, error) {
	query := `
		SELECT id, coin, timestamp, open, high, low, close,
		       volume_from, volume_to, created_at
		FROM coin_history
		WHERE coin = $1 AND timestamp >= $2 AND timestamp <= $3
		ORDER BY timestamp DESC`

	rows, err := r.db.Query(query, coin, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []*models.CoinHistoryPoint
	for rows.Next() {
		point := &models.CoinHistoryPoint{}
		err := rows.Scan(
			&point.ID,
			&point.Coin,
			&point.Timestamp,
			&point.Open,
			&point.High,
			&point.Low,
			&point.Close,
			&point.VolumeFrom,
			&point.VolumeTo,
			&point.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		points = append(points, point)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return points, nil
}
