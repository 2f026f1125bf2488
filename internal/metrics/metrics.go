// Package metrics содержит счётчики Prometheus и служебный HTTP-сервер (/metrics, /healthz).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry хранит коллекторы приложения.
var Registry = prometheus.NewRegistry()

var (
	updatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "escrow_bot",
			Subsystem: "bot",
			Name:      "updates_total",
			Help:      "Обработанные апдейты Telegram по типу.",
		},
		[]string{"kind"},
	)

	dealsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "escrow_bot",
			Subsystem: "deals",
			Name:      "created_total",
			Help:      "Созданные сделки.",
		},
	)

	settlements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "escrow_bot",
			Subsystem: "deals",
			Name:      "settlements_total",
			Help:      "Попытки оплаты сделок по результату.",
		},
		[]string{"result"},
	)

	domainErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "escrow_bot",
			Subsystem: "bot",
			Name:      "errors_total",
			Help:      "Ошибки, показанные пользователям, по виду.",
		},
		[]string{"kind"},
	)

	openDeals = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "escrow_bot",
			Subsystem: "deals",
			Name:      "open",
			Help:      "Сделки в реестре.",
		},
	)
)

func init() {
	Registry.MustRegister(
		updatesTotal,
		dealsCreated,
		settlements,
		domainErrors,
		openDeals,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// RecordUpdate учитывает входящий апдейт: "command", "callback", "text", "other".
func RecordUpdate(kind string) {
	updatesTotal.WithLabelValues(kind).Inc()
}

// RecordDealCreated учитывает новую сделку.
func RecordDealCreated() {
	dealsCreated.Inc()
}

// RecordSettlement учитывает исход оплаты: "ok", "insufficient_funds", "not_found", ...
func RecordSettlement(result string) {
	settlements.WithLabelValues(result).Inc()
}

// RecordError учитывает ошибку, дошедшую до пользователя.
func RecordError(kind string) {
	domainErrors.WithLabelValues(kind).Inc()
}

// SetOpenDeals выставляет число сделок в реестре.
func SetOpenDeals(n int) {
	openDeals.Set(float64(n))
}
