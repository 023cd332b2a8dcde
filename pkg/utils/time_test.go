package utils

import (
	"strconv"
	"sync"
	"testing"
	"time"
)

// ============================================================
// Тесты генераторов nonce
// ============================================================

func TestNonceStrictlyIncreasing(t *testing.T) {
	prev := int64(0)
	for i := 0; i < 10; i++ {
		n, err := strconv.ParseInt(Nonce(), 10, 64)
		if err != nil {
			t.Fatalf("Nonce() вернул не число: %v", err)
		}
		if n <= prev {
			t.Errorf("Nonce() = %d, предыдущий %d: значения должны возрастать", n, prev)
		}
		prev = n
	}
}

func TestNonceMillisStrictlyIncreasing(t *testing.T) {
	prev := int64(0)
	for i := 0; i < 10; i++ {
		n, err := strconv.ParseInt(NonceMillis(), 10, 64)
		if err != nil {
			t.Fatalf("NonceMillis() вернул не число: %v", err)
		}
		if n <= prev {
			t.Errorf("NonceMillis() = %d, предыдущий %d: значения должны возрастать", n, prev)
		}
		prev = n
	}
}

func TestNonceConcurrentUnique(t *testing.T) {
	const goroutines = 20
	const perGoroutine = 10

	var mu sync.Mutex
	seen := make(map[string]bool)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				n := Nonce()
				mu.Lock()
				if seen[n] {
					t.Errorf("Nonce() выдал дубликат %s", n)
				}
				seen[n] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}

// ============================================================
// Тесты конвертации timestamp
// ============================================================

func TestFromUnixMillis(t *testing.T) {
	ms := int64(1700000000000)
	got := FromUnixMillis(ms)

	if got.UnixMilli() != ms {
		t.Errorf("FromUnixMillis(%d).UnixMilli() = %d", ms, got.UnixMilli())
	}
	if got.Location() != time.UTC {
		t.Errorf("FromUnixMillis должен возвращать UTC, получили %v", got.Location())
	}
}
