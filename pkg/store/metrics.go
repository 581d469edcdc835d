package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	upserts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedstore_store_upserts_total",
		Help: "Entity upserts that changed state, by kind.",
	}, []string{"kind"})

	suppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedstore_store_upserts_suppressed_total",
		Help: "Upserts suppressed as structurally equal, by kind.",
	}, []string{"kind"})

	notifications = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedstore_store_notifications_total",
		Help: "Listener callbacks delivered.",
	})

	listenerFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedstore_store_listener_failures_total",
		Help: "Listener callbacks that panicked and were recovered.",
	})

	transactions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedstore_store_transactions_total",
		Help: "Completed store transactions.",
	})

	entities = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "feedstore_store_entities",
		Help: "Entities currently held, by kind.",
	}, []string{"kind"})
)
