package models

import "time"

// Exchange представляет подключённую биржу
type Exchange struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"` // bittrex, hitbtc
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
