package repository

import (
	"database/sql"
	"errors"

	"coinsync/internal/models"
)

// Ошибки репозитория бирж
var (
	ErrExchangeNotFound = errors.New("exchange not found")
)

// ExchangeRepository - работа с таблицей exchanges
type ExchangeRepository struct {
	db *sql.DB
}

// NewExchangeRepository создает новый экземпляр репозитория
func NewExchangeRepository(db *sql.DB) *ExchangeRepository {
	return &ExchangeRepository{db: db}
}

// GetByName возвращает биржу по имени
func (r *ExchangeRepository) GetByName(name string) (*models.Exchange, error) {
	query := `
		SELECT id, name, created_at, updated_at
		FROM exchanges
		WHERE name = $1`

	exchange := &models.Exchange{}
	err := r.db.QueryRow(query, name).Scan(
		&exchange.ID,
		&exchange.Name,
		&exchange.CreatedAt,
		&exchange.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrExchangeNotFound
		}
		return nil, err
	}

	return exchange, nil
}

// GetByID возвращает биржу по ID
func (r *ExchangeRepository) GetByID(id int) (*models.Exchange, error) {
	query := `
		SELECT id, name, created_at, updated_at
		FROM exchanges
		WHERE id = $1`

	exchange := &models.Exchange{}
	err := r.db.QueryRow(query, id).Scan(
		&exchange.ID,
		&exchange.Name,
		&exchange.CreatedAt,
		&exchange.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrExchangeNotFound
		}
		return nil, err
	}

	return exchange, nil
}

// GetAll возвращает все подключённые биржи
func (r *ExchangeRepository) GetAll() ([]*models.Exchange, error) {
	query := `
		SELECT id, name, created_at, updated_at
		FROM exchanges
		ORDER BY id`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exchanges []*models.Exchange
	for rows.Next() {
		exchange := &models.Exchange{}
		err := rows.Scan(
			&exchange.ID,
			&exchange.Name,
			&exchange.CreatedAt,
			&exchange.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		exchanges = append(exchanges, exchange)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return exchanges, nil
}
