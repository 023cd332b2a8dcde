// Package convert реализует оценку стоимости монет через граф торговых пар.
//
// Каждая пара (BASE_QUOTE, last) - ребро между двумя валютами с курсом
// last (BASE за единицу QUOTE). Граф ненаправленный: курс применим в обе
// стороны (умножением либо делением). Конверсия между валютами без
// прямой пары идёт по кратчайшей (по числу шагов) цепочке пар.
//
// Конвертер - чистая структура без побочных эффектов: отсутствие пути
// сообщается флагом ok, не ошибкой.
package convert

import (
	"strings"
)

// Конвенциональные валюты оценки
const (
	CoinUSD  = "USD"
	CoinUSDT = "USDT"
	CoinBTC  = "BTC"
)

// Converter - граф курсов, построенный из снимка торговых пар.
// Снимок неизменяем после построения, конкурентное чтение безопасно.
type Converter struct {
	rates map[string]map[string]float64 // rates[base][quote] = base за единицу quote
	adj   map[string][]string
}

// NewConverter создает пустой конвертер
func NewConverter() *Converter {
	return &Converter{
		rates: make(map[string]map[string]float64),
		adj:   make(map[string][]string),
	}
}

// AddRate добавляет курс пары: rate единиц baseCoin за единицу quoteCoin.
// Пары с нулевым или отрицательным курсом игнорируются.
func (c *Converter) AddRate(baseCoin, quoteCoin string, rate float64) {
	if rate <= 0 {
		return
	}

	baseCoin = strings.ToUpper(baseCoin)
	quoteCoin = strings.ToUpper(quoteCoin)
	if baseCoin == quoteCoin {
		return
	}

	if c.rates[baseCoin] == nil {
		c.rates[baseCoin] = make(map[string]float64)
	}
	if _, exists := c.rates[baseCoin][quoteCoin]; !exists {
		c.adj[baseCoin] = append(c.adj[baseCoin], quoteCoin)
		c.adj[quoteCoin] = append(c.adj[quoteCoin], baseCoin)
	}
	c.rates[baseCoin][quoteCoin] = rate
}

// Convert пересчитывает amount из валюты from в валюту to.
//
// Возвращает (значение, true) при успехе и (0, false) если валюты
// не связаны ни одной цепочкой пар.
func (c *Converter) Convert(amount float64, from, to string) (float64, bool) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)

	if from == to {
		return amount, true
	}
	// Ноль конвертируем без обращения к графу: нулевая стоимость
	// одинакова в любой валюте, даже неизвестной
	if amount == 0 {
		return 0, true
	}

	path := c.shortestPath(from, to)
	if path == nil {
		return 0, false
	}

	value := amount
	for i := 0; i < len(path)-1; i++ {
		value = c.applyHop(value, path[i], path[i+1])
	}

	return value, true
}

// ToUSD оценивает amount валюты coin в долларах.
// При отсутствии пути до USD пробует USDT (и наоборот): курсы
// стейблкоина и доллара считаются взаимозаменяемыми для оценки.
func (c *Converter) ToUSD(amount float64, coin string) (float64, bool) {
	if value, ok := c.Convert(amount, coin, CoinUSD); ok {
		return value, true
	}
	return c.Convert(amount, coin, CoinUSDT)
}

// ToBTC оценивает amount валюты coin в биткоинах
func (c *Converter) ToBTC(amount float64, coin string) (float64, bool) {
	return c.Convert(amount, coin, CoinBTC)
}

// known возвращает true если валюта участвует хотя бы в одной паре
func (c *Converter) known(coin string) bool {
	return len(c.adj[coin]) > 0
}

// applyHop применяет курс одного ребра пути.
// Ребро from->to: при наличии пары (to, from) курс умножается
// (to за единицу from), иначе берётся обратная пара и курс делится.
func (c *Converter) applyHop(value float64, from, to string) float64 {
	if rate, ok := c.rates[to][from]; ok {
		return value * rate
	}
	if rate, ok := c.rates[from][to]; ok {
		return value / rate
	}
	return 0
}

// shortestPath ищет кратчайший по числу шагов путь BFS'ом.
// Возвращает nil если пути нет.
func (c *Converter) shortestPath(from, to string) []string {
	if !c.known(from) || !c.known(to) {
		return nil
	}

	prev := map[string]string{from: from}
	queue := []string{from}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current == to {
			// Восстанавливаем путь от to к from
			var path []string
			for node := to; ; node = prev[node] {
				path = append([]string{node}, path...)
				if node == from {
					return path
				}
			}
		}

		for _, next := range c.adj[current] {
			if _, visited := prev[next]; visited {
				continue
			}
			prev[next] = current
			queue = append(queue, next)
		}
	}

	return nil
}
