// Package history дозагружает часовые свечи исторических цен монет
// из внешнего агрегатора.
//
// Агрегатор отдаёт страницы от верхней границы назад во времени.
// Дозагрузка листает страницы до watermark (самой поздней локально
// сохранённой точки): `TimeFrom` каждой страницы становится верхней
// границей следующей. API отдаёт нулевые свечи за периоды до начала
// торгов монеты; страница из одних нулей означает, что история
// исчерпана.
package history

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"coinsync/internal/models"
	"coinsync/pkg/retry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Параметры агрегатора по умолчанию
const (
	DefaultEndpoint  = "https://min-api.cryptocompare.com/data/histohour"
	DefaultPageLimit = 2000
	DefaultMarket    = "CCCAGG"

	// Валюта котировки исторических цен
	ConvertTo = "USD"
)

// Fetcher загружает часовые свечи монеты из агрегатора
type Fetcher struct {
	endpoint  string
	pageLimit int
	market    string
	client    *http.Client
	retryCfg  retry.Config
	log       *zap.Logger
}

// FetcherOption настраивает Fetcher
type FetcherOption func(*Fetcher)

// WithEndpoint заменяет адрес агрегатора (для тестов)
func WithEndpoint(endpoint string) FetcherOption {
	return func(f *Fetcher) { f.endpoint = endpoint }
}

// WithPageLimit задает размер страницы
func WithPageLimit(limit int) FetcherOption {
	return func(f *Fetcher) {
		if limit > 0 {
			f.pageLimit = limit
		}
	}
}

// WithHTTPClient заменяет HTTP клиент
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) { f.client = client }
}

// NewFetcher создает загрузчик истории
func NewFetcher(opts ...FetcherOption) *Fetcher {
	cfg := retry.ConservativeConfig()
	cfg.RetryIf = retry.IsRetryable

	f := &Fetcher{
		endpoint:  DefaultEndpoint,
		pageLimit: DefaultPageLimit,
		market:    DefaultMarket,
		client:    &http.Client{Timeout: 30 * time.Second},
		retryCfg:  cfg,
		log:       zap.L().Named("history.fetcher"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// histoPage - одна страница ответа агрегатора
type histoPage struct {
	Response string       `json:"Response"`
	Message  string       `json:"Message"`
	TimeFrom int64        `json:"TimeFrom"`
	TimeTo   int64        `json:"TimeTo"`
	Data     []histoPoint `json:"Data"`
}

type histoPoint struct {
	Time       int64   `json:"time"`
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	VolumeFrom float64 `json:"volumefrom"`
	VolumeTo   float64 `json:"volumeto"`
}

// Fetch загружает свечи монеты от текущего момента назад до watermark.
// Нулевой watermark означает полную загрузку до исчерпания данных.
//
// Ошибка середины обхода не теряет уже накопленные страницы: метод
// возвращает их вместе с ошибкой, вызывающий код сохраняет частичный
// результат. Результат отсортирован по убыванию времени, точки старше
// watermark отброшены.
func (f *Fetcher) Fetch(ctx context.Context, coin string, watermark time.Time) ([]*models.CoinHistoryPoint, error) {
	var points []*models.CoinHistoryPoint

	from := watermark.Unix()
	if watermark.IsZero() {
		from = 0
	}
	upperBound := time.Now().Unix()

	for {
		page, err := f.fetchPage(ctx, coin, upperBound)
		if err != nil {
			// Частичный результат не теряется: накопленные страницы
			// уходят вызывающему вместе с ошибкой
			f.log.Error("history page fetch failed",
				zap.String("coin", coin),
				zap.Int64("to_ts", upperBound),
				zap.Error(err),
			)
			return f.finalize(points, from), err
		}

		if len(page.Data) == 0 {
			break
		}

		good := 0
		for _, raw := range page.Data {
			point := toPoint(coin, raw)
			if point.Empty() {
				continue
			}
			points = append(points, point)
			good++
		}
		// Страница из одних нулевых свечей: торги ещё не начались
		if good == 0 {
			break
		}

		if from > 0 && page.TimeFrom <= from {
			break
		}
		upperBound = page.TimeFrom
	}

	return f.finalize(points, from), nil
}

// fetchPage загружает одну страницу с повторами на транспортных ошибках
func (f *Fetcher) fetchPage(ctx context.Context, coin string, toTs int64) (*histoPage, error) {
	return retry.DoWithResult(ctx, func() (*histoPage, error) {
		params := url.Values{}
		params.Set("fsym", coin)
		params.Set("tsym", ConvertTo)
		params.Set("e", f.market)
		params.Set("limit", strconv.Itoa(f.pageLimit))
		params.Set("toTs", strconv.FormatInt(toTs, 10))

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint+"?"+params.Encode(), nil)
		if err != nil {
			return nil, err
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("history request failed with status %d: %s", resp.StatusCode, body)
		}

		var page histoPage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decode history page: %w", err)
		}

		if page.Response == "Error" {
			return nil, retry.Permanent(fmt.Errorf("history api error: %s", page.Message))
		}

		return &page, nil
	}, f.retryCfg)
}

// finalize отбрасывает точки старше watermark и сортирует по убыванию времени
func (f *Fetcher) finalize(points []*models.CoinHistoryPoint, from int64) []*models.CoinHistoryPoint {
	if from > 0 {
		kept := points[:0]
		for _, p := range points {
			if p.Timestamp.Unix() >= from {
				kept = append(kept, p)
			}
		}
		points = kept
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.After(points[j].Timestamp)
	})

	return points
}

func toPoint(coin string, raw histoPoint) *models.CoinHistoryPoint {
	return &models.CoinHistoryPoint{
		Coin:       coin,
		Timestamp:  time.Unix(raw.Time, 0).UTC(),
		Open:       raw.Open,
		High:       raw.High,
		Low:        raw.Low,
		Close:      raw.Close,
		VolumeFrom: raw.VolumeFrom,
		VolumeTo:   raw.VolumeTo,
	}
}
