package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tinytelemetry/pulse/internal/model"
)

const MetricPrefix = "pulse_"

var eventsRecordedDesc = prometheus.NewDesc(
	MetricPrefix+"events_recorded_total",
	"Number of events recorded by kind",
	[]string{"kind"},
	nil,
)

var activeSourcesDesc = prometheus.NewDesc(
	MetricPrefix+"active_sources",
	"Sources registered or seen in the latest fine-grained window",
	nil,
	nil,
)

var registeredSourcesDesc = prometheus.NewDesc(
	MetricPrefix+"registered_sources",
	"Explicitly registered sources",
	nil,
	nil,
)

var liveRateDesc = prometheus.NewDesc(
	MetricPrefix+"live_event_rate",
	"Events per second over the trailing live window",
	nil,
	nil,
)

var consumerLagDesc = prometheus.NewDesc(
	MetricPrefix+"consumer_lag",
	"Latest known consumer lag",
	[]string{"group", "topic", "partition"},
	nil,
)

// Exporter publishes a querier's state as Prometheus metrics on scrape.
type Exporter struct {
	q model.MetricsQuerier
}

// NewExporter returns an unregistered collector over q.
func NewExporter(q model.MetricsQuerier) *Exporter {
	return &Exporter{q: q}
}

func (e *Exporter) Describe(desc chan<- *prometheus.Desc) {
	desc <- eventsRecordedDesc
	desc <- activeSourcesDesc
	desc <- registeredSourcesDesc
	desc <- liveRateDesc
	desc <- consumerLagDesc
}

func (e *Exporter) Collect(metrics chan<- prometheus.Metric) {
	stats := e.q.Stats()
	metrics <- prometheus.MustNewConstMetric(eventsRecordedDesc, prometheus.CounterValue,
		float64(stats.ServiceEvents), model.SourceServiceLog.String())
	metrics <- prometheus.MustNewConstMetric(eventsRecordedDesc, prometheus.CounterValue,
		float64(stats.BusEvents), model.SourceBusMessage.String())
	metrics <- prometheus.MustNewConstMetric(registeredSourcesDesc, prometheus.GaugeValue,
		float64(stats.RegisteredSources))
	metrics <- prometheus.MustNewConstMetric(activeSourcesDesc, prometheus.GaugeValue,
		float64(len(e.q.ActiveSources())))
	metrics <- prometheus.MustNewConstMetric(liveRateDesc, prometheus.GaugeValue, e.q.LiveRate())

	summary := e.q.BacklogSummary(model.BacklogOpts{})
	for _, tier := range [][]model.BacklogEntry{summary.High, summary.Medium, summary.Low} {
		for _, b := range tier {
			metrics <- prometheus.MustNewConstMetric(consumerLagDesc, prometheus.GaugeValue,
				float64(b.Lag), b.Group, b.Topic, strconv.Itoa(b.Partition))
		}
	}
}
