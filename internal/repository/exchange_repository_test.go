package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

// ============================================================
// ExchangeRepository Tests
// ============================================================

func TestExchangeRepositoryGetByName(t *testing.T) {
	tests := []struct {
		name        string
		exchange    string
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError error
	}{
		{
			name:     "existing exchange",
			exchange: "bittrex",
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"id", "name", "created_at", "updated_at"}).
					AddRow(1, "bittrex", time.Now(), time.Now())
				mock.ExpectQuery(`SELECT id, name, created_at, updated_at FROM exchanges`).
					WithArgs("bittrex").
					WillReturnRows(rows)
			},
		},
		{
			name:     "missing exchange",
			exchange: "unknown",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT id, name, created_at, updated_at FROM exchanges`).
					WithArgs("unknown").
					WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at", "updated_at"}))
			},
			expectError: ErrExchangeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewExchangeRepository(db)
			exchange, err := repo.GetByName(tt.exchange)

			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Errorf("expected error %v, got %v", tt.expectError, err)
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if exchange.Name != tt.exchange {
					t.Errorf("expected name=%s, got %s", tt.exchange, exchange.Name)
				}
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestExchangeRepositoryGetAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "name", "created_at", "updated_at"}).
		AddRow(1, "bittrex", time.Now(), time.Now()).
		AddRow(2, "hitbtc", time.Now(), time.Now())
	mock.ExpectQuery(`SELECT id, name, created_at, updated_at FROM exchanges`).
		WillReturnRows(rows)

	repo := NewExchangeRepository(db)
	exchanges, err := repo.GetAll()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(exchanges) != 2 {
		t.Fatalf("expected 2 exchanges, got %d", len(exchanges))
	}
	if exchanges[0].Name != "bittrex" || exchanges[1].Name != "hitbtc" {
		t.Errorf("unexpected order: %s, %s", exchanges[0].Name, exchanges[1].Name)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
