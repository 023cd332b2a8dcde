package utils

import (
	"math"
)

// math.go - математические утилиты для торговых операций
//
// Назначение:
// Округление цен и объёмов перед отправкой на биржу. Все функции
// являются чистыми (pure functions) без побочных эффектов.
//
// Функции:
// - RoundToPrecision: округление вниз до N знаков после запятой
// - RoundToPrecisionNearest: округление к ближайшему значению
// - RoundToStep: округление вниз до шага цены/количества

// RoundToPrecision округляет значение ВНИЗ до precision знаков после запятой.
//
// Используется для цен и объёмов ордеров. Округление вниз гарантирует,
// что заявка не превысит доступные средства и не нарушит точность биржи.
//
// Параметры:
//   - value: исходное значение
//   - precision: количество знаков после запятой
//
// Возвращает:
//   - Округлённое значение
//   - Если precision < 0, возвращает исходное значение
//
// Примеры:
//   - RoundToPrecision(0.123456789, 8) = 0.12345678
//   - RoundToPrecision(1.999, 2) = 1.99
func RoundToPrecision(value float64, precision int) float64 {
	if precision < 0 {
		return value
	}
	factor := math.Pow(10, float64(precision))
	return math.Floor(value*factor) / factor
}

// RoundToPrecisionNearest округляет к ближайшему значению с precision
// знаками после запятой. Стандартное математическое округление.
func RoundToPrecisionNearest(value float64, precision int) float64 {
	if precision < 0 {
		return value
	}
	factor := math.Pow(10, float64(precision))
	return math.Round(value*factor) / factor
}

// RoundToStep округляет значение ВНИЗ до ближайшего кратного step.
//
// Параметры:
//   - value: исходное значение
//   - step: минимальный шаг изменения цены или объёма на бирже
//
// Возвращает:
//   - Округлённое значение, кратное step
//   - Если step <= 0, возвращает исходное значение
//
// Примеры:
//   - RoundToStep(0.123456, 0.001) = 0.123
//   - RoundToStep(100.5, 1.0) = 100.0
func RoundToStep(value, step float64) float64 {
	if step <= 0 {
		return value
	}
	return math.Floor(value/step) * step
}
