package maintenance

import "github.com/prometheus/client_golang/prometheus"

var (
	integrityRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetsense_integrity_runs_total",
			Help: "Total number of snapshot integrity runs by status.",
		},
		[]string{"status"},
	)
	integrityDatasetsCheckedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sheetsense_integrity_datasets_checked_total",
			Help: "Total number of datasets checked by integrity runs.",
		},
	)
	integrityMissingSnapshotsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sheetsense_integrity_missing_snapshots_total",
			Help: "Total number of datasets found without a snapshot object.",
		},
	)
	integrityPrunedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sheetsense_integrity_pruned_total",
			Help: "Total number of datasets deleted because their snapshot was missing.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		integrityRunsTotal,
		integrityDatasetsCheckedTotal,
		integrityMissingSnapshotsTotal,
		integrityPrunedTotal,
	)
}
