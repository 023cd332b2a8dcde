package sync

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"coinsync/internal/models"
)

// DefaultBreakerThreshold - порог подряд идущих ошибок запроса баланса,
// после которого аккаунт отключается
const DefaultBreakerThreshold = 3

// ErrAccountDeactivated - попытка синхронизации отключённого аккаунта.
// Отключённый аккаунт не порождает ни одного сетевого вызова: запуск
// закрывается провалом ещё до обращения к адаптеру.
var ErrAccountDeactivated = errors.New("account is deactivated")

// Breaker - предохранитель аккаунтов.
//
// Считает подряд идущие неудачные запросы баланса; достижение порога
// отключает аккаунт (протухшие или отозванные ключи не молотят API
// биржи бесконечно). Любой успешный запрос обнуляет счётчик.
// Реактивация - только ручная, внешним процессом.
type Breaker struct {
	accounts  AccountStore
	threshold int
	log       *zap.Logger
}

// NewBreaker создает предохранитель с указанным порогом.
// Порог <= 0 заменяется на DefaultBreakerThreshold.
func NewBreaker(accounts AccountStore, threshold int) *Breaker {
	if threshold <= 0 {
		threshold = DefaultBreakerThreshold
	}
	return &Breaker{
		accounts:  accounts,
		threshold: threshold,
		log:       zap.L().Named("breaker"),
	}
}

// RecordFailure фиксирует неудачный запрос баланса.
// Возвращает true если аккаунт был отключён этим вызовом.
func (b *Breaker) RecordFailure(account *models.Account, exchange string, cause error) (bool, error) {
	failures, err := b.accounts.IncrementFailures(account.ID)
	if err != nil {
		return false, err
	}

	b.log.Warn("balance fetch failed",
		zap.Int("account_id", account.ID),
		zap.String("exchange", exchange),
		zap.Int("failures", failures),
		zap.Error(cause),
	)

	if failures < b.threshold {
		return false, nil
	}

	reason := fmt.Sprintf("balance fetch failed %d times: %v", failures, cause)
	if err := b.accounts.Deactivate(account.ID, reason, time.Now().UTC()); err != nil {
		return false, err
	}

	RecordDeactivation(exchange)
	b.log.Error("account deactivated",
		zap.Int("account_id", account.ID),
		zap.String("exchange", exchange),
		zap.Int("failures", failures),
	)

	return true, nil
}

// RecordSuccess фиксирует успешный запрос баланса и обнуляет счётчик
func (b *Breaker) RecordSuccess(account *models.Account) error {
	return b.accounts.ResetFailures(account.ID)
}
