package sync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики синхронизации
// ============================================================
//
// Использование:
// - Grafana дашборды (частота и исход запусков, отброшенные символы)
// - Alertmanager (рост ошибок запросов, отключения аккаунтов)

// SyncRunsTotal - количество запусков синхронизаций по типу и исходу
var SyncRunsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "coinsync",
		Subsystem: "sync",
		Name:      "runs_total",
		Help:      "Total number of synchronization runs",
	},
	[]string{"type", "result"}, // result: succeeded, failed
)

// UnresolvedSymbolsDropped - записи, отброшенные из-за символа,
// не транслируемого в каноническую форму или неизвестного локально
var UnresolvedSymbolsDropped = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "coinsync",
		Subsystem: "sync",
		Name:      "unresolved_symbols_dropped_total",
		Help:      "Records dropped because their symbol could not be resolved",
	},
	[]string{"exchange", "type"}, // type: orders, trades
)

// ValidationRejects - батчи, отклонённые валидацией перед записью
var ValidationRejects = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "coinsync",
		Subsystem: "sync",
		Name:      "validation_rejects_total",
		Help:      "Batches rejected by pre-write validation",
	},
	[]string{"type"},
)

// AccountsDeactivated - отключения аккаунтов предохранителем
var AccountsDeactivated = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "coinsync",
		Subsystem: "sync",
		Name:      "accounts_deactivated_total",
		Help:      "Accounts deactivated after consecutive balance failures",
	},
	[]string{"exchange"},
)

// BrokerRequestDuration - длительность запросов к биржам
var BrokerRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "coinsync",
		Subsystem: "broker",
		Name:      "request_duration_seconds",
		Help:      "Duration of exchange API requests",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	},
	[]string{"exchange", "op"},
)

// StaleOrdersScheduled - активные ордера, пропавшие из снимка
// и поставленные на внеочередную проверку статуса
var StaleOrdersScheduled = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "coinsync",
		Subsystem: "sync",
		Name:      "stale_orders_scheduled_total",
		Help:      "Locally active orders missing from a fresh snapshot, scheduled for verification",
	},
	[]string{"exchange"},
)

// RecordRun записывает исход запуска синхронизации
func RecordRun(syncType, result string) {
	SyncRunsTotal.WithLabelValues(syncType, result).Inc()
}

// RecordUnresolvedSymbol записывает отброшенную запись
func RecordUnresolvedSymbol(exchange, recordType string) {
	UnresolvedSymbolsDropped.WithLabelValues(exchange, recordType).Inc()
}

// RecordDeactivation записывает отключение аккаунта
func RecordDeactivation(exchange string) {
	AccountsDeactivated.WithLabelValues(exchange).Inc()
}
