package attestation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	challengesIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rustchain_attest_challenges_issued_total",
		Help: "Count of issued attestation challenges.",
	})
	submitAcceptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rustchain_attest_accepted_total",
		Help: "Count of accepted attestation submissions.",
	})
	submitRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rustchain_attest_rejected_total",
		Help: "Count of rejected attestation submissions by error code.",
	}, []string{"code"})
)
