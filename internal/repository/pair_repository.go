package repository

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"coinsync/internal/models"
)

// Ошибки репозитория пар
var (
	ErrPairNotFound = errors.New("pair not found")
)

// PairRepository - работа с таблицей pairs.
//
// Натуральный ключ: (exchange_id, symbol). Идемпотентный upsert:
// существующая строка обновляется только если входящий actualized_at
// строго больше сохранённого. Структурные колонки (ex_id, base_coin,
// quote_coin) после создания не изменяются.
//
// Пары никогда не удаляются: пропавшая из листинга пара помечается
// outdated=true, вернувшаяся - снова outdated=false.
type PairRepository struct {
	db *sql.DB
}

// NewPairRepository создает новый экземпляр репозитория
func NewPairRepository(db *sql.DB) *PairRepository {
	return &PairRepository{db: db}
}

// Upsert вставляет или обновляет пару, возвращает её ID.
// Повторное применение того же снимка не изменяет данные.
func (r *PairRepository) Upsert(pair *models.Pair) error {
	query := `
		INSERT INTO pairs (exchange_id, symbol, ex_id, base_coin, quote_coin,
		                   last, bid, ask, high, low, open, volume, base_volume, quote_volume,
		                   change_percent, maker_fee, taker_fee, amount_precision, price_precision,
		                   enabled, outdated, actualized_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, false, $21, NOW(), NOW())
		ON CONFLICT (exchange_id, symbol) DO UPDATE SET
			last = EXCLUDED.last,
			bid = EXCLUDED.bid,
			ask = EXCLUDED.ask,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			open = EXCLUDED.open,
			volume = EXCLUDED.volume,
			base_volume = EXCLUDED.base_volume,
			quote_volume = EXCLUDED.quote_volume,
			change_percent = EXCLUDED.change_percent,
			maker_fee = EXCLUDED.maker_fee,
			taker_fee = EXCLUDED.taker_fee,
			amount_precision = EXCLUDED.amount_precision,
			price_precision = EXCLUDED.price_precision,
			enabled = EXCLUDED.enabled,
			outdated = false,
			actualized_at = EXCLUDED.actualized_at,
			updated_at = NOW()
		WHERE EXCLUDED.actualized_at > pairs.actualized_at
		RETURNING id`

	err := r.db.QueryRow(
		query,
		pair.ExchangeID,
		pair.Symbol,
		pair.ExID,
		pair.BaseCoin,
		pair.QuoteCoin,
		pair.Last,
		pair.Bid,
		pair.Ask,
		pair.High,
		pair.Low,
		pair.Open,
		pair.Volume,
		pair.BaseVolume,
		pair.QuoteVolume,
		pair.ChangePercent,
		pair.MakerFee,
		pair.TakerFee,
		pair.AmountPrecision,
		pair.PricePrecision,
		pair.Enabled,
		pair.ActualizedAt,
	).Scan(&pair.ID)

	if err != nil {
		// Устаревший снимок: строка существует, но WHERE отсёк обновление
		// и RETURNING не вернул id. Берём существующий id отдельно.
		if errors.Is(err, sql.ErrNoRows) {
			return r.db.QueryRow(
				`SELECT id FROM pairs WHERE exchange_id = $1 AND symbol = $2`,
				pair.ExchangeID, pair.Symbol,
			).Scan(&pair.ID)
		}
		return err
	}

	return nil
}

// GetBySymbol возвращает пару биржи по каноническому символу
func (r *PairRepository) GetBySymbol(exchangeID int, symbol string) (*models.Pair, error) {
	query := selectPairQuery + ` WHERE exchange_id = $1 AND symbol = $2`

	pair := &models.Pair{}
	err := r.db.QueryRow(query, exchangeID, symbol).Scan(pairScanDest(pair)...)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPairNotFound
		}
		return nil, err
	}

	return pair, nil
}

// GetByExchange возвращает все пары биржи (включая outdated)
func (r *PairRepository) GetByExchange(exchangeID int) ([]*models.Pair, error) {
	query := selectPairQuery + ` WHERE exchange_id = $1 ORDER BY symbol`

	rows, err := r.db.Query(query, exchangeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []*models.Pair
	for rows.Next() {
		pair := &models.Pair{}
		if err := rows.Scan(pairScanDest(pair)...); err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return pairs, nil
}

// IDsBySymbol возвращает отображение канонический символ -> id
// для всех пар биржи
func (r *PairRepository) IDsBySymbol(exchangeID int) (map[string]int, error) {
	query := `SELECT symbol, id FROM pairs WHERE exchange_id = $1`

	rows, err := r.db.Query(query, exchangeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]int)
	for rows.Next() {
		var symbol string
		var id int
		if err := rows.Scan(&symbol, &id); err != nil {
			return nil, err
		}
		ids[symbol] = id
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}

// MarkOutdated помечает пары биржи, отсутствующие в свежем листинге.
// Возвращает количество помеченных пар.
func (r *PairRepository) MarkOutdated(exchangeID int, activeSymbols []string) (int64, error) {
	query := `
		UPDATE pairs
		SET outdated = true, updated_at = NOW()
		WHERE exchange_id = $1 AND outdated = false AND NOT (symbol = ANY($2))`

	result, err := r.db.Exec(query, exchangeID, pq.Array(activeSymbols))
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

const selectPairQuery = `
	SELECT id, exchange_id, symbol, ex_id, base_coin, quote_coin,
	       last, bid, ask, high, low, open, volume, base_volume, quote_volume,
	       change_percent, maker_fee, taker_fee, amount_precision, price_precision,
	       enabled, outdated, actualized_at, created_at, updated_at
	FROM pairs`

// pairScanDest возвращает назначения Scan в порядке selectPairQuery
func pairScanDest(pair *models.Pair) []interface{} {
	return []interface{}{
		&pair.ID,
		&pair.ExchangeID,
		&pair.Symbol,
		&pair.ExID,
		&pair.BaseCoin,
		&pair.QuoteCoin,
		&pair.Last,
		&pair.Bid,
		&pair.Ask,
		&pair.High,
		&pair.Low,
		&pair.Open,
		&pair.Volume,
		&pair.BaseVolume,
		&pair.QuoteVolume,
		&pair.ChangePercent,
		&pair.MakerFee,
		&pair.TakerFee,
		&pair.AmountPrecision,
		&pair.PricePrecision,
		&pair.Enabled,
		&pair.Outdated,
		&pair.ActualizedAt,
		&pair.CreatedAt,
		&pair.UpdatedAt,
	}
}
