package repository

import (
	"database/sql"
	"time"

	"github.com/lib/pq"

	"coinsync/internal/models"
)

// PositionRepository - работа с таблицами positions и position_history.
//
// Таблица positions хранит актуальный снимок балансов (одна строка на
// монету аккаунта), position_history - append-only историю снимков.
// Снимок аккаунта заменяется целиком в одной транзакции: upsert живых
// монет, удаление пропавших, запись истории. Повторное применение
// того же снимка не изменяет данные (защита от гонки со старыми
// результатами по updated_at).
type PositionRepository struct {
	db *sql.DB
}

// NewPositionRepository создает новый экземпляр репозитория
func NewPositionRepository(db *sql.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// ReplaceSnapshot атомарно заменяет снимок балансов аккаунта.
//
// syncedAt - момент получения данных от биржи; снимок с более старым
// syncedAt, пришедший после более свежего, не перезапишет данные.
func (r *PositionRepository) ReplaceSnapshot(exchangeID, accountID int, positions []*models.Position, syncedAt time.Time) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	upsertQuery := `
		INSERT INTO positions (user_id, exchange_id, account_id, coin,
		                       total, available, on_orders, usd_value, btc_value,
		                       created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (exchange_id, account_id, coin) DO UPDATE SET
			total = EXCLUDED.total,
			available = EXCLUDED.available,
			on_orders = EXCLUDED.on_orders,
			usd_value = EXCLUDED.usd_value,
			btc_value = EXCLUDED.btc_value,
			updated_at = EXCLUDED.updated_at
		WHERE EXCLUDED.updated_at > positions.updated_at`

	coins := make([]string, 0, len(positions))
	for _, position := range positions {
		coins = append(coins, position.Coin)

		_, err := tx.Exec(
			upsertQuery,
			position.UserID,
			exchangeID,
			accountID,
			position.Coin,
			position.Total,
			position.Available,
			position.OnOrders,
			position.USDValue,
			position.BTCValue,
			syncedAt,
		)
		if err != nil {
			return err
		}
	}

	// Монеты, пропавшие из свежего снимка, удаляются из актуальной
	// таблицы (история остаётся)
	deleteQuery := `
		DELETE FROM positions
		WHERE exchange_id = $1 AND account_id = $2
		  AND NOT (coin = ANY($3))
		  AND updated_at < $4`

	if _, err := tx.Exec(deleteQuery, exchangeID, accountID, pq.Array(coins), syncedAt); err != nil {
		return err
	}

	historyQuery := `
		INSERT INTO position_history (user_id, exchange_id, account_id, coin,
		                              total, available, on_orders, usd_value, btc_value,
		                              synced_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())`

	for _, position := range positions {
		_, err := tx.Exec(
			historyQuery,
			position.UserID,
			exchangeID,
			accountID,
			position.Coin,
			position.Total,
			position.Available,
			position.OnOrders,
			position.USDValue,
			position.BTCValue,
			syncedAt,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// DistinctCoins возвращает монеты, по которым есть хоть одна позиция
func (r *PositionRepository) DistinctCoins() ([]string, error) {
	query := `SELECT DISTINCT coin FROM positions ORDER BY coin`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var coins []string
	for rows.Next() {
		var coin string
		if err := rows.Scan(&coin); err != nil {
			return nil, err
		}
		coins = append(coins, coin)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return coins, nil
}

// GetByAccount возвращает актуальный снимок балансов аккаунта
func (r *PositionRepository) GetByAccount(accountID int) ([]*models.Position, error) {
	query := `
		SELECT id, user_id, exchange_id, account_id, coin,
		       total, available, on_orders, usd_value, btc_value,
		       created_at, updated_at
		FROM positions
		WHERE account_id = $1
		ORDER BY coin`

	rows, err := r.db.Query(query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []*models.Position
	for rows.Next() {
		position := &models.Position{}
		err := rows.Scan(
			&position.ID,
			&position.UserID,
			&position.ExchangeID,
			&position.AccountID,
			&position.Coin,
			&position.Total,
			&position.Available,
			&position.OnOrders,
			&position.USDValue,
			&position.BTCValue,
			&position.CreatedAt,
			&position.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		positions = append(positions, position)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return positions, nil
}
