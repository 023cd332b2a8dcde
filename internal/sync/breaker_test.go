package sync

import (
	"errors"
	"testing"

	"coinsync/internal/models"
)

// TestBreaker_BelowThreshold проверяет что ошибки ниже порога не отключают аккаунт
func TestBreaker_BelowThreshold(t *testing.T) {
	store := newFakeAccountStore()
	breaker := NewBreaker(store, 3)
	account := &models.Account{ID: 7}
	cause := errors.New("timeout")

	for i := 0; i < 2; i++ {
		tripped, err := breaker.RecordFailure(account, "bittrex", cause)
		if err != nil {
			t.Fatalf("RecordFailure failed: %v", err)
		}
		if tripped {
			t.Fatalf("breaker tripped after %d failures, threshold is 3", i+1)
		}
	}

	if len(store.deactivated) != 0 {
		t.Error("account deactivated below threshold")
	}
}

// TestBreaker_TripsAtThreshold проверяет отключение аккаунта на пороге
func TestBreaker_TripsAtThreshold(t *testing.T) {
	store := newFakeAccountStore()
	breaker := NewBreaker(store, 3)
	account := &models.Account{ID: 7}
	cause := errors.New("invalid signature")

	var tripped bool
	for i := 0; i < 3; i++ {
		var err error
		tripped, err = breaker.RecordFailure(account, "bittrex", cause)
		if err != nil {
			t.Fatalf("RecordFailure failed: %v", err)
		}
	}

	if !tripped {
		t.Fatal("breaker did not trip at threshold")
	}

	reason, ok := store.deactivated[7]
	if !ok {
		t.Fatal("account was not deactivated")
	}
	if reason == "" {
		t.Error("deactivation reason is empty")
	}
}

// TestBreaker_SuccessResets проверяет что успех обнуляет счётчик ошибок
func TestBreaker_SuccessResets(t *testing.T) {
	store := newFakeAccountStore()
	breaker := NewBreaker(store, 3)
	account := &models.Account{ID: 7}
	cause := errors.New("timeout")

	breaker.RecordFailure(account, "bittrex", cause)
	breaker.RecordFailure(account, "bittrex", cause)

	if err := breaker.RecordSuccess(account); err != nil {
		t.Fatalf("RecordSuccess failed: %v", err)
	}

	// После сброса счётчик начинается заново
	breaker.RecordFailure(account, "bittrex", cause)
	tripped, _ := breaker.RecordFailure(account, "bittrex", cause)

	if tripped {
		t.Error("breaker tripped despite reset")
	}
	if len(store.deactivated) != 0 {
		t.Error("account deactivated despite reset")
	}
}

// TestBreaker_DefaultThreshold проверяет подстановку порога по умолчанию
func TestBreaker_DefaultThreshold(t *testing.T) {
	breaker := NewBreaker(newFakeAccountStore(), 0)
	if breaker.threshold != DefaultBreakerThreshold {
		t.Errorf("threshold = %d, want %d", breaker.threshold, DefaultBreakerThreshold)
	}
}
