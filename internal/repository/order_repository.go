package repository

import (
	"database/sql"
	"errors"
	"time"

	"coinsync/internal/models"
)

// Ошибки репозитория ордеров
var (
	ErrOrderNotFound = errors.New("order not found")
)

// OrderRepository - работа с таблицей orders.
//
// Натуральный ключ: (exchange_id, account_id, oid). Upsert идемпотентен:
// строка обновляется только если входящий updated_at строго больше
// сохранённого. Статус partial не понижается обратно до open - биржа,
// повторно сообщающая "открыт", не стирает наблюдение частичного
// исполнения.
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository создает новый экземпляр репозитория
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Upsert вставляет или обновляет ордер, возвращает его ID.
//
// updated_at хранит время синхронизации, а не время изменения данных:
// неизменившийся снимок всё равно продвигает updated_at вперёд. Сравнение
// EXCLUDED.updated_at защищает от перезаписи свежей записи отставшим
// конкурентным запуском, а не от повторного штампа времени.
func (r *OrderRepository) Upsert(order *models.Order, syncedAt time.Time) error {
	query := `
		INSERT INTO orders (user_id, exchange_id, account_id, pair_id, oid, kind, op,
		                    status, qty, filled_qty, price, executed_price, timestamp,
		                    created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), $14)
		ON CONFLICT (exchange_id, account_id, oid) DO UPDATE SET
			status = CASE
				WHEN orders.status = 'partial' AND EXCLUDED.status = 'open'
				THEN orders.status
				ELSE EXCLUDED.status
			END,
			qty = EXCLUDED.qty,
			filled_qty = EXCLUDED.filled_qty,
			price = EXCLUDED.price,
			executed_price = EXCLUDED.executed_price,
			timestamp = EXCLUDED.timestamp,
			updated_at = EXCLUDED.updated_at
		WHERE EXCLUDED.updated_at > orders.updated_at
		RETURNING id`

	err := r.db.QueryRow(
		query,
		order.UserID,
		order.ExchangeID,
		order.AccountID,
		order.PairID,
		order.OID,
		order.Kind,
		order.Op,
		order.Status,
		order.Qty,
		order.FilledQty,
		order.Price,
		order.ExecutedPrice,
		order.Timestamp,
		syncedAt,
	).Scan(&order.ID)

	if err != nil {
		// Устаревший снимок: WHERE отсёк обновление, RETURNING пуст
		if errors.Is(err, sql.ErrNoRows) {
			return r.db.QueryRow(
				`SELECT id FROM orders WHERE exchange_id = $1 AND account_id = $2 AND oid = $3`,
				order.ExchangeID, order.AccountID, order.OID,
			).Scan(&order.ID)
		}
		return err
	}

	return nil
}

// GetActive возвращает ордера аккаунта в активных статусах (open, partial)
func (r *OrderRepository) GetActive(accountID int) ([]*models.Order, error) {
	query := selectOrderQuery + `
		WHERE account_id = $1 AND status IN ('open', 'partial')
		ORDER BY timestamp`

	return r.queryOrders(query, accountID)
}

// GetByOID возвращает ордер по натуральному ключу
func (r *OrderRepository) GetByOID(exchangeID, accountID int, oid string) (*models.Order, error) {
	query := selectOrderQuery + `
		WHERE exchange_id = $1 AND account_id = $2 AND oid = $3`

	order := &models.Order{}
	err := r.db.QueryRow(query, exchangeID, accountID, oid).Scan(orderScanDest(order)...)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	return order, nil
}

// UpdateStatus обновляет статус ордера по итогам внеочередной проверки.
// Обновление применяется только если syncedAt свежее сохранённого
// updated_at.
func (r *OrderRepository) UpdateStatus(id int, status string, filledQty, executedPrice float64, syncedAt time.Time) error {
	query := `
		UPDATE orders
		SET status = $2, filled_qty = $3, executed_price = $4, updated_at = $5
		WHERE id = $1 AND updated_at < $5`

	_, err := r.db.Exec(query, id, status, filledQty, executedPrice, syncedAt)
	return err
}

const selectOrderQuery = `
	SELECT id, user_id, exchange_id, account_id, pair_id, oid, kind, op,
	       status, qty, filled_qty, price, executed_price, timestamp,
	       created_at, updated_at
	FROM orders`

func orderScanDest(order *models.Order) []interface{} {
	return []interface{}{
		&order.ID,
		&order.UserID,
		&order.ExchangeID,
		&order.AccountID,
		&order.PairID,
		&order.OID,
		&order.Kind,
		&order.Op,
		&order.Status,
		&order.Qty,
		&order.FilledQty,
		&order.Price,
		&order.ExecutedPrice,
		&order.Timestamp,
		&order.CreatedAt,
		&order.UpdatedAt,
	}
}

func (r *OrderRepository) queryOrders(query string, args ...interface{}) ([]*models.Order, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order := &models.Order{}
		if err := rows.Scan(orderScanDest(order)...); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}
