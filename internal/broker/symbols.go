package broker

import (
	"strings"
)

// Канонический символ пары: BASE_QUOTE в верхнем регистре, где BASE -
// валюта котировки, QUOTE - торгуемый актив (BTC_LTC = LTC за BTC).
// Построение и разбор - чистые взаимообратные функции без скрытого
// состояния; разбор некорректного символа возвращает ошибку, не nil.

const symbolSeparator = "_"

// BuildSymbol строит канонический символ из кодов монет
func BuildSymbol(baseCoin, quoteCoin string) string {
	return strings.ToUpper(baseCoin) + symbolSeparator + strings.ToUpper(quoteCoin)
}

// ParseSymbol разбирает канонический символ на коды монет
func ParseSymbol(symbol string) (baseCoin, quoteCoin string, err error) {
	parts := strings.Split(symbol, symbolSeparator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", &SymbolError{Exchange: "canonical", Symbol: symbol}
	}
	return strings.ToUpper(parts[0]), strings.ToUpper(parts[1]), nil
}
