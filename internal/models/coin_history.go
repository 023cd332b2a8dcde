package models

import "time"

// CoinHistoryPoint - одна часовая свеча исторических цен монеты
// (цены в USD). Точки дозагружаются назад во времени по watermark
// и никогда не изменяются после вставки.
type CoinHistoryPoint struct {
	ID         int       `json:"id" db:"id"`
	Coin       string    `json:"coin" db:"coin"`
	Timestamp  time.Time `json:"timestamp" db:"timestamp"`
	Open       float64   `json:"open" db:"open"`
	High       float64   `json:"high" db:"high"`
	Low        float64   `json:"low" db:"low"`
	Close      float64   `json:"close" db:"close"`
	VolumeFrom float64   `json:"volume_from" db:"volume_from"`
	VolumeTo   float64   `json:"volume_to" db:"volume_to"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Empty возвращает true для нулевой точки (API отдаёт нулевые свечи
// за периоды до начала торгов монеты)
func (p *CoinHistoryPoint) Empty() bool {
	return p.Open == 0 && p.High == 0 && p.Low == 0 && p.Close == 0 &&
		p.VolumeFrom == 0 && p.VolumeTo == 0
}
