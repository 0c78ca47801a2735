// Package monitoring exposes Prometheus metrics for the sync engine.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the engine's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	PollsTotal       *prometheus.CounterVec
	PollDuration     *prometheus.HistogramVec
	MessagesNew      *prometheus.CounterVec
	InboxSize        prometheus.Gauge
	HydrationsTotal  *prometheus.CounterVec
	AccountsCreated  *prometheus.CounterVec
	DeletesTotal     *prometheus.CounterVec
	DownloadsTotal   *prometheus.CounterVec
	SubscribersTotal prometheus.Gauge
}

// NewMetrics registers the collectors on reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in
// tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PollsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempvortex_polls_total",
				Help: "Inbox polls by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		PollDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tempvortex_poll_duration_seconds",
				Help:    "Inbox poll latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		MessagesNew: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempvortex_messages_new_total",
				Help: "Messages seen for the first time",
			},
			[]string{"provider"},
		),
		InboxSize: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "tempvortex_inbox_messages",
				Help: "Messages in the current inbox",
			},
		),
		HydrationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempvortex_hydrations_total",
				Help: "Message content fetches by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		AccountsCreated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempvortex_accounts_created_total",
				Help: "Account creation attempts by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		DeletesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempvortex_deletes_total",
				Help: "Message deletions by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		DownloadsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempvortex_downloads_total",
				Help: "Attachment downloads by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		SubscribersTotal: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "tempvortex_event_subscribers",
				Help: "Connected event stream clients",
			},
		),
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObservePoll records one inbox poll.
func (m *Metrics) ObservePoll(provider string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.PollsTotal.WithLabelValues(provider, outcome(err)).Inc()
	m.PollDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// ObserveInbox records the result of a successful poll.
func (m *Metrics) ObserveInbox(provider string, newCount, size int) {
	if m == nil {
		return
	}
	if newCount > 0 {
		m.MessagesNew.WithLabelValues(provider).Add(float64(newCount))
	}
	m.InboxSize.Set(float64(size))
}

// ObserveHydration records one content fetch.
func (m *Metrics) ObserveHydration(provider string, err error) {
	if m == nil {
		return
	}
	m.HydrationsTotal.WithLabelValues(provider, outcome(err)).Inc()
}

// ObserveAccount records one account creation attempt.
func (m *Metrics) ObserveAccount(provider string, err error) {
	if m == nil {
		return
	}
	m.AccountsCreated.WithLabelValues(provider, outcome(err)).Inc()
}

// ObserveDelete records one delete.
func (m *Metrics) ObserveDelete(provider string, err error) {
	if m == nil {
		return
	}
	m.DeletesTotal.WithLabelValues(provider, outcome(err)).Inc()
}

// ObserveDownload records one attachment download.
func (m *Metrics) ObserveDownload(provider string, err error) {
	if m == nil {
		return
	}
	m.DownloadsTotal.WithLabelValues(provider, outcome(err)).Inc()
}

// SubscriberConnected adjusts the live event stream gauge by delta.
func (m *Metrics) SubscriberConnected(delta int) {
	if m == nil {
		return
	}
	m.SubscribersTotal.Add(float64(delta))
}
