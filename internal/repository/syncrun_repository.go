package repository

import (
	"database/sql"
	"time"

	"coinsync/internal/models"
)

// SyncRunRepository - работа с таблицей sync_runs.
//
// Запуски синхронизаций фиксируются для операционной видимости:
// каждый запуск получает строку при старте и закрывается итоговым
// состоянием (succeeded/failed) с ошибкой и трейсом при провале.
type SyncRunRepository struct {
	db *sql.DB
}

// NewSyncRunRepository создает новый экземпляр репозитория
func NewSyncRunRepository(db *sql.DB) *SyncRunRepository {
	return &SyncRunRepository{db: db}
}

// Begin фиксирует старт запуска и возвращает его ID.
// accountID = 0 означает запуск без аккаунта (листинг пар), в таблице
// он хранится как NULL.
func (r *SyncRunRepository) Begin(syncType string, accountID int, startedAt time.Time) (int, error) {
	query := `
		INSERT INTO sync_runs (type, account_id, state, started_at)
		VALUES ($1, NULLIF($2, 0), $3, $4)
		RETURNING id`

	var id int
	err := r.db.QueryRow(query, syncType, accountID, models.SyncStateRunning, startedAt).Scan(&id)
	if err != nil {
		return 0, err
	}

	return id, nil
}

// Succeed закрывает запуск успешным состоянием
func (r *SyncRunRepository) Succeed(id int, finishedAt time.Time) error {
	query := `
		UPDATE sync_runs
		SET state = $2, finished_at = $3
		WHERE id = $1`

	_, err := r.db.Exec(query, id, models.SyncStateSucceeded, finishedAt)
	return err
}

// Fail закрывает запуск провалом с текстом ошибки и трейсом
func (r *SyncRunRepository) Fail(id int, errMessage, trace string, finishedAt time.Time) error {
	query := `
		UPDATE sync_runs
		SET state = $2, error = $3, trace = $4, finished_at = $5
		WHERE id = $1`

	_, err := r.db.Exec(query, id, models.SyncStateFailed, errMessage, trace, finishedAt)
	return err
}

// GetRecent возвращает последние запуски указанного типа
func (r *SyncRunRepository) GetRecent(syncType string, limit int) ([]*models.SyncRun, error) {
	query := `
		SELECT id, type, account_id, state, error, trace, started_at, finished_at
		FROM sync_runs
		WHERE type = $1
		ORDER BY started_at DESC
		LIMIT $2`

	rows, err := r.db.Query(query, syncType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.SyncRun
	for rows.Next() {
		run := &models.SyncRun{}

		// account_id NULL для запусков без аккаунта, error и trace NULL
		// для всех незавершившихся провалом запусков
		var accountID sql.NullInt64
		var errMessage, trace sql.NullString

		err := rows.Scan(
			&run.ID,
			&run.Type,
			&accountID,
			&run.State,
			&errMessage,
			&trace,
			&run.StartedAt,
			&run.FinishedAt,
		)
		if err != nil {
			return nil, err
		}

		run.AccountID = int(accountID.Int64)
		run.Error = errMessage.String
		run.Trace = trace.String
		runs = append(runs, run)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}
