package broker

import (
	"sort"

	"coinsync/pkg/retry"
)

// Общие хелперы адаптеров: свободные функции, без состояния.

// calcChangePercent считает суточное изменение цены в процентах
func calcChangePercent(open, close float64) float64 {
	if open == 0 {
		return 0
	}
	return (close - open) / open * 100
}

// newBookEntry строит уровень стакана с посчитанной стоимостью
func newBookEntry(price, qty float64) *BookEntry {
	return &BookEntry{
		Price: price,
		Qty:   qty,
		Value: price * qty,
	}
}

// sortBook упорядочивает стакан: bids по убыванию цены, asks по возрастанию
func sortBook(book *Book) {
	sort.Slice(book.Bids, func(i, j int) bool {
		return book.Bids[i].Price > book.Bids[j].Price
	})
	sort.Slice(book.Asks, func(i, j int) bool {
		return book.Asks[i].Price < book.Asks[j].Price
	})
}

// publicRetryConfig - retry для идемпотентных публичных запросов.
// Подписанные запросы не повторяются: повтор с тем же nonce бессмыслен,
// а с новым nonce операция может задвоиться.
func publicRetryConfig() retry.Config {
	cfg := retry.ConservativeConfig()
	cfg.RetryIf = retry.IsRetryable
	return cfg
}
