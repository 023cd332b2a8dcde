package broker

import (
	"fmt"
	"strings"
)

// SupportedExchanges - список поддерживаемых бирж
var SupportedExchanges = []string{
	"bittrex",
	"hitbtc",
}

// New создает новый адаптер биржи по имени
func New(name string) (Broker, error) {
	switch strings.ToLower(name) {
	case "bittrex":
		return NewBittrex(), nil
	case "hitbtc":
		return NewHitBTC(), nil
	default:
		return nil, fmt.Errorf("unsupported exchange: %s", name)
	}
}

// IsSupported проверяет, поддерживается ли биржа
func IsSupported(name string) bool {
	name = strings.ToLower(name)
	for _, supported := range SupportedExchanges {
		if name == supported {
			return true
		}
	}
	return false
}
