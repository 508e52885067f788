package deletion

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nido",
			Subsystem: "account_deletion",
			Name:      "jobs_total",
			Help:      "Terminal and requeue outcomes of deletion job runs.",
		},
		[]string{"outcome"},
	)
	documentsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "nido",
			Subsystem: "account_deletion",
			Name:      "documents_deleted_total",
			Help:      "Documents removed by the deletion worker.",
		},
	)
	blobsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "nido",
			Subsystem: "account_deletion",
			Name:      "blobs_deleted_total",
			Help:      "Blob objects removed by the deletion worker.",
		},
	)
)
