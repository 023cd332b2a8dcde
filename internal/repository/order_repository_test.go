package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"coinsync/internal/models"
)

// ============================================================
// OrderRepository Tests
// ============================================================

func TestNewOrderRepository(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewOrderRepository(db)
	if repo == nil {
		t.Fatal("NewOrderRepository returned nil")
	}
	if repo.db != db {
		t.Error("db not set correctly")
	}
}

func TestOrderRepositoryUpsert(t *testing.T) {
	now := time.Now()
	placedAt := now.Add(-time.Hour)

	order := &models.Order{
		UserID:     1,
		ExchangeID: 2,
		AccountID:  3,
		PairID:     4,
		OID:        "abc-123",
		Kind:       "order",
		Op:         models.OrderOpBuy,
		Status:     models.OrderStatusOpen,
		Qty:        0.5,
		FilledQty:  0,
		Price:      0.0185,
		Timestamp:  placedAt,
	}

	tests := []struct {
		name        string
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError bool
		expectID    int
	}{
		{
			name: "insert returns id",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO orders`).
					WithArgs(1, 2, 3, 4, "abc-123", "order", models.OrderOpBuy,
						models.OrderStatusOpen, 0.5, float64(0), 0.0185, float64(0), placedAt, now).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
			},
			expectID: 7,
		},
		{
			// Конфликт со свежей строкой: WHERE отсекает обновление,
			// id берётся отдельным запросом
			name: "stale snapshot falls back to select",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO orders`).
					WithArgs(1, 2, 3, 4, "abc-123", "order", models.OrderOpBuy,
						models.OrderStatusOpen, 0.5, float64(0), 0.0185, float64(0), placedAt, now).
					WillReturnRows(sqlmock.NewRows([]string{"id"}))
				mock.ExpectQuery(`SELECT id FROM orders`).
					WithArgs(2, 3, "abc-123").
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
			},
			expectID: 7,
		},
		{
			name: "database error",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO orders`).
					WillReturnError(errors.New("database error"))
			},
			expectError: true,
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

			order.ID = 0
			repo := NewOrderRepository(db)
			err = repo.Upsert(order, now)

			if tt.expectError {
				if err == nil {
					t.Error("expected error, got nil")
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if order.ID != tt.expectID {
					t.Errorf("expected ID=%d, got %d", tt.expectID, order.ID)
				}
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestOrderRepositoryGetActive(t *testing.T) {
	now := time.Now()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	columns := []string{
		"id", "user_id", "exchange_id", "account_id", "pair_id", "oid", "kind", "op",
		"status", "qty", "filled_qty", "price", "executed_price", "timestamp",
		"created_at", "updated_at",
	}

	mock.ExpectQuery(`SELECT (.+) FROM orders`).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(1, 1, 2, 3, 4, "oid-1", "order", "buy",
				models.OrderStatusOpen, 0.5, 0.0, 0.0185, 0.0, now, now, now).
			AddRow(2, 1, 2, 3, 4, "oid-2", "order", "sell",
				models.OrderStatusPartial, 1.0, 0.4, 0.02, 0.02, now, now, now))

	repo := NewOrderRepository(db)
	orders, err := repo.GetActive(3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}
	if orders[0].OID != "oid-1" || orders[1].Status != models.OrderStatusPartial {
		t.Errorf("orders scanned incorrectly: %+v", orders)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestOrderRepositoryUpdateStatus(t *testing.T) {
	now := time.Now()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`UPDATE orders`).
		WithArgs(7, models.OrderStatusFilled, 0.5, 0.0185, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewOrderRepository(db)
	if err := repo.UpdateStatus(7, models.OrderStatusFilled, 0.5, 0.0185, now); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
