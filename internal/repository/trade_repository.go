package repository

import (
	"database/sql"
	"time"

	"coinsync/internal/models"
)

// TradeRepository - работа с таблицей trades.
//
// Натуральный ключ: (exchange_id, account_id, oid, params_digest).
// Сделки неизменяемы: повторная вставка существующей сделки
// игнорируется (ON CONFLICT DO NOTHING).
type TradeRepository struct {
	db *sql.DB
}

// NewTradeRepository создает новый экземпляр репозитория
func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Upsert вставляет сделку; дубликат по натуральному ключу игнорируется.
// Возвращает true если строка была вставлена.
func (r *TradeRepository) Upsert(trade *models.Trade) (bool, error) {
	query := `
		INSERT INTO trades (user_id, exchange_id, account_id, pair_id, order_id,
		                    oid, params_digest, kind, op, qty, price, timestamp,
		                    created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		ON CONFLICT (exchange_id, account_id, oid, params_digest) DO NOTHING`

	result, err := r.db.Exec(
		query,
		trade.UserID,
		trade.ExchangeID,
		trade.AccountID,
		trade.PairID,
		trade.OrderID,
		trade.OID,
		trade.ParamsDigest,
		trade.Kind,
		trade.Op,
		trade.Qty,
		trade.Price,
		trade.Timestamp,
	)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

// GetByAccount возвращает сделки аккаунта за период
func (r *TradeRepository) GetByAccount(accountID int, from, to time.Time) ([]*models.Trade, error) {
	query := `
		SELECT id, user_id, exchange_id, account_id, pair_id, order_id,
		       oid, params_digest, kind, op, qty, price, timestamp,
		       created_at, updated_at
		FROM trades
		WHERE account_id = $1 AND timestamp >= $2 AND timestamp <= $3
		ORDER BY timestamp DESC`

	rows, err := r.db.Query(query, accountID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*models.Trade
	for rows.Next() {
		trade := &models.Trade{}
		err := rows.Scan(
			&trade.ID,
			&trade.UserID,
			&trade.ExchangeID,
			&trade.AccountID,
			&trade.PairID,
			&trade.OrderID,
			&trade.OID,
			&trade.ParamsDigest,
			&trade.Kind,
			&trade.Op,
			&trade.Qty,
			&trade.Price,
			&trade.Timestamp,
			&trade.CreatedAt,
			&trade.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return trades, nil
}
