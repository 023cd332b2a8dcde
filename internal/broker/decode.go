package broker

import (
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// Единственное место, где трогаются нетипизированные ответы бирж:
// декодирование в типизированные структуры ответов плюс приведение
// числовых значений, которые биржи отдают то числом, то строкой, то null.

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// parseCurrency разбирает денежное значение из строки
func parseCurrency(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return value
}

// formatCurrency форматирует денежное значение для параметров запроса
// без экспоненциальной нотации (биржи её не принимают)
func formatCurrency(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// floatOr возвращает значение указателя или fallback при null в ответе
func floatOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

// decodeJSON декодирует тело ответа в типизированную структуру
func decodeJSON(data []byte, out interface{}) error {
	return json.Unmarshal(data, out)
}
