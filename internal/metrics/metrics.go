// Package metrics declares the Prometheus instruments for the bot.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Update handling metrics
var (
	UpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticketline_updates_total",
		Help: "Total number of processed updates by event and success",
	}, []string{"event", "ok"})

	UpdateDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ticketline_update_duration_seconds",
		Help:    "Handler duration per update event",
		Buckets: prometheus.DefBuckets,
	}, []string{"event"})
)

// Directory metrics
var (
	UsersRegistered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ticketline_users_registered_total",
		Help: "Total number of newly registered users",
	})

	WarnsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ticketline_warns_issued_total",
		Help: "Total number of warnings issued",
	})

	BansApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ticketline_bans_applied_total",
		Help: "Total number of bans applied (manual and automatic)",
	})
)

// Relay metrics
var (
	TicketsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ticketline_tickets_opened_total",
		Help: "Total number of support tickets opened",
	})

	MessagesRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticketline_messages_relayed_total",
		Help: "Total number of relayed messages by direction and outcome",
	}, []string{"direction", "outcome"})
)

// Broadcast metrics
var (
	BroadcastRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ticketline_broadcast_runs_total",
		Help: "Total number of completed broadcast runs",
	})

	BroadcastDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticketline_broadcast_deliveries_total",
		Help: "Total number of broadcast deliveries by outcome",
	}, []string{"outcome"})

	BroadcastDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ticketline_broadcast_duration_seconds",
		Help:    "Duration of broadcast runs in seconds",
		Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
	})
)
