// Package metrics defines the Prometheus collectors for the relay: queued
// requests, send outcomes per transport, send latency and background tasks.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsQueued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mail_relay_requests_queued_total",
		Help: "Total number of send requests accepted and queued for background delivery",
	})
	RequestsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mail_relay_requests_rejected_total",
		Help: "Total number of send requests rejected before queueing",
	}, []string{"reason"})
	Emails = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mail_relay_emails_total",
		Help: "Total number of background sends by transport and outcome",
	}, []string{"transport", "outcome"})
	SendDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mail_relay_send_duration_seconds",
		Help:    "Duration of background sends, from build to transport completion",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"transport"})
	TasksInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mail_relay_background_tasks_in_flight",
		Help: "Number of background tasks currently running",
	})
)

func init() {
	prometheus.MustRegister(RequestsQueued)
	prometheus.MustRegister(RequestsRejected)
	prometheus.MustRegister(Emails)
	prometheus.MustRegister(SendDuration)
	prometheus.MustRegister(TasksInFlight)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
