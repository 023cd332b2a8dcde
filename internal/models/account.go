package models

import "time"

// Account представляет биржевой аккаунт пользователя с API ключами.
// Ключи хранятся зашифрованными (AES-256-GCM) и расшифровываются
// только в момент обращения к бирже.
type Account struct {
	ID                 int        `json:"id" db:"id"`
	UserID             int        `json:"user_id" db:"user_id"`
	ExchangeID         int        `json:"exchange_id" db:"exchange_id"`
	EncryptedKey       string     `json:"-" db:"encrypted_key"`    // зашифрован, не возвращается в JSON
	EncryptedSecret    string     `json:"-" db:"encrypted_secret"` // зашифрован
	Failures           int        `json:"failures" db:"failures"`  // подряд идущие ошибки запроса баланса
	DeactivatedAt      *time.Time `json:"deactivated_at,omitempty" db:"deactivated_at"`
	DeactivationReason string     `json:"deactivation_reason,omitempty" db:"deactivation_reason"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
}

// Deactivated возвращает true если аккаунт отключён.
// Отключённый аккаунт не участвует ни в одной синхронизации
// до ручной реактивации внешним процессом.
func (a *Account) Deactivated() bool {
	return a.DeactivatedAt != nil
}
