package sync

import (
	"fmt"

	"coinsync/internal/broker"
	"coinsync/internal/models"
	"coinsync/pkg/crypto"
)

// CredentialStore расшифровывает API-ключи аккаунтов.
//
// Ключ шифрования выводится из парольной фразы один раз при создании
// и живёт только в памяти процесса. Расшифрованные ключи не кешируются:
// они получаются заново перед каждым обращением к бирже.
type CredentialStore struct {
	key []byte
}

// NewCredentialStore выводит ключ шифрования из парольной фразы
func NewCredentialStore(passphrase, salt string) (*CredentialStore, error) {
	key, err := crypto.DeriveKey(passphrase, salt)
	if err != nil {
		return nil, err
	}
	return &CredentialStore{key: key}, nil
}

// Decrypt возвращает расшифрованные креды аккаунта.
// Аккаунт без сохранённых ключей - ErrCredentialsMissing.
func (c *CredentialStore) Decrypt(account *models.Account) (broker.Credentials, error) {
	if account.EncryptedKey == "" || account.EncryptedSecret == "" {
		return broker.Credentials{}, broker.ErrCredentialsMissing
	}

	key, err := crypto.Decrypt(account.EncryptedKey, c.key)
	if err != nil {
		return broker.Credentials{}, fmt.Errorf("decrypt api key for account %d: %w", account.ID, err)
	}

	secret, err := crypto.Decrypt(account.EncryptedSecret, c.key)
	if err != nil {
		return broker.Credentials{}, fmt.Errorf("decrypt api secret for account %d: %w", account.ID, err)
	}

	return broker.Credentials{Key: key, Secret: secret}, nil
}
