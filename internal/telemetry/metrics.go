package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"monitord/internal/alerts"
	"monitord/internal/models"
)

// Metrics exports the engine's own behaviour on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	cycles        prometheus.Counter
	cycleErrors   prometheus.Counter
	cycleDuration prometheus.Histogram
	alertsCreated *prometheus.CounterVec
	deliveries    *prometheus.CounterVec
	activeAlerts  prometheus.Gauge
	metricValue   *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitord_cycles_total",
			Help: "Monitoring cycles run.",
		}),
		cycleErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitord_cycle_errors_total",
			Help: "Monitoring cycles that ended in a recovered failure.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "monitord_cycle_duration_seconds",
			Help:    "Duration of a collect and evaluate cycle.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		alertsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monitord_alerts_created_total",
			Help: "Alerts created by component and severity.",
		}, []string{"component", "severity"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monitord_deliveries_total",
			Help: "Alert deliveries by channel and outcome.",
		}, []string{"channel", "status"}),
		activeAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "monitord_active_alerts",
			Help: "Alerts currently active.",
		}),
		metricValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "monitord_metric_value",
			Help: "Last collected value of each monitored metric.",
		}, []string{"component", "metric"}),
	}
	m.registry.MustRegister(m.cycles, m.cycleErrors, m.cycleDuration, m.alertsCreated, m.deliveries, m.activeAlerts, m.metricValue)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) CycleFinished(d time.Duration, err error) {
	m.cycles.Inc()
	m.cycleDuration.Observe(d.Seconds())
	if err != nil {
		m.cycleErrors.Inc()
	}
}

func (m *Metrics) SnapshotCollected(s models.Snapshot) {
	for component, metrics := range s {
		for name, v := range metrics {
			m.metricValue.WithLabelValues(component, name).Set(v)
		}
	}
}

// AlertEvent is subscribed to the alert manager.
func (m *Metrics) AlertEvent(ev alerts.Event) {
	m.activeAlerts.Set(float64(ev.Active))
	switch ev.Kind {
	case alerts.EventCreated:
		m.alertsCreated.WithLabelValues(ev.Alert.Component, ev.Alert.Severity.String()).Inc()
	case alerts.EventDelivered:
		if ev.Delivery != nil {
			m.deliveries.WithLabelValues(ev.Delivery.Channel.String(), string(ev.Delivery.Status)).Inc()
		}
	case alerts.EventResolved:
	}
}
