package sync

import (
	"coinsync/internal/convert"
	"coinsync/internal/models"
)

// BuildConverter строит граф курсов из сохранённых пар биржи.
// Участвуют только действующие пары (enabled, не outdated) с ненулевой
// последней ценой.
func BuildConverter(pairs []*models.Pair) *convert.Converter {
	converter := convert.NewConverter()
	for _, pair := range pairs {
		if !pair.Enabled || pair.Outdated {
			continue
		}
		converter.AddRate(pair.BaseCoin, pair.QuoteCoin, pair.Last)
	}
	return converter
}
