// Package metrics has prometheus metric variables.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Notifications counts webhook notifications by change type,
	// including unrecognized ones.
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailmirror_notifications_total",
			Help: "Provider change notifications processed, by change type.",
		},
		[]string{"change_type"},
	)

	// Broadcasts counts events pushed to the real-time channel.
	Broadcasts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailmirror_broadcasts_total",
			Help: "Events broadcast to connected clients, by event name.",
		},
		[]string{"event"},
	)

	// PersistenceErrors counts store failures that were logged and
	// skipped.
	PersistenceErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailmirror_persistence_errors_total",
			Help: "Store operations that failed and were skipped.",
		},
	)
)
