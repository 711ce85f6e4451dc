package infra

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/master-pd/nomi-sub001/middleware/floodguard/domain"
)

var decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "floodguard_decisions_total",
	Help: "Number of flood decisions by outcome",
}, []string{"outcome", "reason"})

var mutesImposedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "floodguard_mutes_imposed_total",
	Help: "Number of mutes imposed by detection reason",
}, []string{"reason"})

var unmutesTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "floodguard_unmutes_total",
	Help: "Number of manual unmutes",
})

var resetsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "floodguard_identity_resets_total",
	Help: "Number of manual identity resets",
})

var trackedGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "floodguard_tracked_identities",
	Help: "Number of identity entries currently held in memory",
})

func observeDecision(dec domain.Decision) {
	if dec.Allowed {
		decisionsTotal.WithLabelValues("allow", "").Inc()
		return
	}
	decisionsTotal.WithLabelValues("block", string(dec.Reason)).Inc()
	if dec.MuteDuration > 0 {
		mutesImposedTotal.WithLabelValues(string(dec.Reason)).Inc()
	}
}
