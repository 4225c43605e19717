// Package metrics holds the server's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EntriesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wall_entries_created_total",
		Help: "Entries inserted, by scope.",
	}, []string{"scope"})

	EntriesDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wall_entries_deleted_total",
		Help: "Entries soft-deleted, by scope.",
	}, []string{"scope"})

	RequestsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wall_requests_rejected_total",
		Help: "Requests rejected before reaching the database, by reason.",
	}, []string{"reason"})

	StreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wall_stream_clients",
		Help: "Connected change-stream clients.",
	})

	EventsBroadcast = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wall_events_broadcast_total",
		Help: "Change events written to stream clients, by type.",
	}, []string{"type"})
)
