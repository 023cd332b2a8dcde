package repository

import (
	"database/sql"
	"errors"
	"time"

	"coinsync/internal/models"
)

// Ошибки репозитория аккаунтов
var (
	ErrAccountNotFound = errors.New("account not found")
)

// AccountRepository - работа с таблицей accounts.
//
// Счётчик failures считает подряд идущие неудачные запросы баланса.
// Инкремент и сброс атомарны на уровне SQL, поэтому конкурентные
// синхронизации не теряют обновления счётчика.
type AccountRepository struct {
	db *sql.DB
}

// NewAccountRepository создает новый экземпляр репозитория
func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// GetByID возвращает аккаунт по ID
func (r *AccountRepository) GetByID(id int) (*models.Account, error) {
	query := `
		SELECT id, user_id, exchange_id, encrypted_key, encrypted_secret,
		       failures, deactivated_at, deactivation_reason, created_at, updated_at
		FROM accounts
		WHERE id = $1`

	account := &models.Account{}
	err := r.db.QueryRow(query, id).Scan(
		&account.ID,
		&account.UserID,
		&account.ExchangeID,
		&account.EncryptedKey,
		&account.EncryptedSecret,
		&account.Failures,
		&account.DeactivatedAt,
		&account.DeactivationReason,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	return account, nil
}

// GetActive возвращает все активные (не отключённые) аккаунты
func (r *AccountRepository) GetActive() ([]*models.Account, error) {
	query := `
		SELECT id, user_id, exchange_id, encrypted_key, encrypted_secret,
		       failures, deactivated_at, deactivation_reason, created_at, updated_at
		FROM accounts
		WHERE deactivated_at IS NULL
		ORDER BY id`

	return r.queryAccounts(query)
}

// GetActiveByExchange возвращает активные аккаунты одной биржи
func (r *AccountRepository) GetActiveByExchange(exchangeID int) ([]*models.Account, error) {
	query := `
		SELECT id, user_id, exchange_id, encrypted_key, encrypted_secret,
		       failures, deactivated_at, deactivation_reason, created_at, updated_at
		FROM accounts
		WHERE deactivated_at IS NULL AND exchange_id = $1
		ORDER BY id`

	return r.queryAccounts(query, exchangeID)
}

// IncrementFailures атомарно увеличивает счётчик ошибок и возвращает
// новое значение
func (r *AccountRepository) IncrementFailures(id int) (int, error) {
	query := `
		UPDATE accounts
		SET failures = failures + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING failures`

	var failures int
	err := r.db.QueryRow(query, id).Scan(&failures)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, err
	}

	return failures, nil
}

// ResetFailures сбрасывает счётчик ошибок после успешного запроса баланса
func (r *AccountRepository) ResetFailures(id int) error {
	query := `
		UPDATE accounts
		SET failures = 0, updated_at = NOW()
		WHERE id = $1 AND failures <> 0`

	_, err := r.db.Exec(query, id)
	return err
}

// Deactivate отключает аккаунт с указанием причины.
// Отключённый повторно аккаунт не перезаписывается (момент и причина
// первого отключения сохраняются).
func (r *AccountRepository) Deactivate(id int, reason string, at time.Time) error {
	query := `
		UPDATE accounts
		SET deactivated_at = $2, deactivation_reason = $3, updated_at = NOW()
		WHERE id = $1 AND deactivated_at IS NULL`

	result, err := r.db.Exec(query, id, at, reason)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		// Либо аккаунт не существует, либо уже отключён
		var exists bool
		if err := r.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrAccountNotFound
		}
	}

	return nil
}

// queryAccounts выполняет запрос и сканирует список аккаунтов
func (r *AccountRepository) queryAccounts(query string, args ...interface{}) ([]*models.Account, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account := &models.Account{}
		err := rows.Scan(
			&account.ID,
			&account.UserID,
			&account.ExchangeID,
			&account.EncryptedKey,
			&account.EncryptedSecret,
			&account.Failures,
			&account.DeactivatedAt,
			&account.DeactivationReason,
			&account.CreatedAt,
			&account.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return accounts, nil
}
