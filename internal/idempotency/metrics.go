package idempotency

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var replays = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "scaffold_idempotency_replays_total",
	Help: "Requests answered by replaying a recorded response, by operation.",
}, []string{"operation"})
