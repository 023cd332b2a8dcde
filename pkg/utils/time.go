package utils

import (
	"strconv"
	"sync"
	"time"
)

// time.go - утилиты для работы со временем
//
// Назначение:
// Генерация nonce для подписанных запросов к биржам и конвертация
// временных меток Unix.
//
// Функции:
// - Nonce: строго возрастающий nonce в секундах Unix
// - NonceMillis: строго возрастающий nonce в миллисекундах Unix
// - UnixMillis / FromUnixMillis: конвертация миллисекунд Unix
//
// Биржи отклоняют подписанный запрос с nonce, не превышающим nonce
// предыдущего запроса. Системные часы могут отдать одинаковую секунду
// дважды подряд, поэтому генераторы держат последнее выданное значение
// под мьютексом и при совпадении инкрементируют его.

// ============================================================
// Генераторы nonce
// ============================================================

var (
	nonceMu     sync.Mutex
	lastNonce   int64
	lastNonceMs int64
)

// Nonce возвращает строго возрастающий nonce в секундах Unix.
//
// Потокобезопасна: два конкурентных вызова никогда не вернут
// одинаковое значение.
//
// Возвращает: десятичную строку для подстановки в параметры запроса
func Nonce() string {
	nonceMu.Lock()
	defer nonceMu.Unlock()

	now := time.Now().Unix()
	if now <= lastNonce {
		now = lastNonce + 1
	}
	lastNonce = now

	return strconv.FormatInt(now, 10)
}

// NonceMillis возвращает строго возрастающий nonce в миллисекундах Unix.
//
// Используется биржами с миллисекундным разрешением nonce.
func NonceMillis() string {
	nonceMu.Lock()
	defer nonceMu.Unlock()

	now := time.Now().UnixMilli()
	if now <= lastNonceMs {
		now = lastNonceMs + 1
	}
	lastNonceMs = now

	return strconv.FormatInt(now, 10)
}

// ============================================================
// Утилиты для timestamp
// ============================================================

// UnixMillis возвращает текущее время в миллисекундах Unix
func UnixMillis() int64 {
	return time.Now().UnixMilli()
}

// FromUnixMillis конвертирует миллисекунды Unix в time.Time (UTC)
func FromUnixMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
