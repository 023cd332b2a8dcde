package sync

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"coinsync/internal/broker"
	"coinsync/internal/models"
)

// OrdersStatusActualizer выполняет точечную проверку статусов ордеров,
// пропавших из снимка открытых ордеров.
//
// Запланированный ордер попадает в очередь ровно один раз: повторное
// планирование того же ордера до обработки игнорируется. Обработка
// очереди запускается отдельно от синхронизации (Flush), чтобы не
// растягивать запуск синхронизации точечными запросами к бирже.
type OrdersStatusActualizer struct {
	brokers BrokerSource
	orders  OrderStore
	creds   *CredentialStore
	log     *zap.Logger

	mu      sync.Mutex
	queued  map[int]bool // order.ID -> в очереди
	pending []*staleOrder
}

type staleOrder struct {
	exchange *models.Exchange
	account  *models.Account
	order    *models.Order
}

// NewOrdersStatusActualizer создает актуализатор статусов ордеров
func NewOrdersStatusActualizer(brokers BrokerSource, orders OrderStore, creds *CredentialStore) *OrdersStatusActualizer {
	return &OrdersStatusActualizer{
		brokers: brokers,
		orders:  orders,
		creds:   creds,
		log:     zap.L().Named("sync.actualizer"),
		queued:  make(map[int]bool),
	}
}

// Schedule ставит ордер в очередь проверки. Повторное планирование
// ордера, уже ожидающего проверки, игнорируется.
func (a *OrdersStatusActualizer) Schedule(exchange *models.Exchange, account *models.Account, order *models.Order) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.queued[order.ID] {
		return
	}
	a.queued[order.ID] = true
	a.pending = append(a.pending, &staleOrder{exchange: exchange, account: account, order: order})
}

// Pending возвращает число ордеров в очереди
func (a *OrdersStatusActualizer) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// Flush обрабатывает накопленную очередь. Ошибка проверки одного ордера
// логируется и не мешает остальным; такой ордер остаётся активным
// локально и будет перепланирован следующей синхронизацией.
func (a *OrdersStatusActualizer) Flush(ctx context.Context) {
	a.mu.Lock()
	batch := a.pending
	a.pending = nil
	a.queued = make(map[int]bool)
	a.mu.Unlock()

	for _, item := range batch {
		if ctx.Err() != nil {
			return
		}
		if err := a.verify(ctx, item); err != nil {
			a.log.Error("order status verification failed",
				zap.Int("order_id", item.order.ID),
				zap.String("oid", item.order.OID),
				zap.String("exchange", item.exchange.Name),
				zap.Error(err),
			)
		}
	}
}

// verify запрашивает у биржи сведения об ордере и обновляет локальный статус
func (a *OrdersStatusActualizer) verify(ctx context.Context, item *staleOrder) error {
	b, err := a.brokers.For(item.exchange.Name)
	if err != nil {
		return err
	}

	creds, err := a.creds.Decrypt(item.account)
	if err != nil {
		return err
	}

	started := time.Now()
	info, err := b.OrderInfo(ctx, creds, broker.OrderInfoParams{
		OID: item.order.OID,
		Op:  item.order.Op,
	})
	BrokerRequestDuration.WithLabelValues(item.exchange.Name, "order_info").Observe(time.Since(started).Seconds())

	syncedAt := time.Now().UTC()

	if err != nil {
		// Биржа не знает такой ордер: терминальное состояние not_found
		var apiErr *broker.APIRequestError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return a.orders.UpdateStatus(item.order.ID, models.OrderStatusNotFound,
				item.order.FilledQty, item.order.ExecutedPrice, syncedAt)
		}
		return err
	}

	status := info.DetailedStatus()
	if err := a.orders.UpdateStatus(item.order.ID, status, info.FilledQty, info.FilledPrice, syncedAt); err != nil {
		return err
	}

	a.log.Info("order status actualized",
		zap.Int("order_id", item.order.ID),
		zap.String("oid", item.order.OID),
		zap.String("status", status),
	)

	return nil
}
