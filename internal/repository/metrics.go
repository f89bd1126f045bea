package repository

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scaffold_cache_hits_total",
		Help: "Cache hits by entity and cache kind (record or list).",
	}, []string{"entity", "kind"})

	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scaffold_cache_misses_total",
		Help: "Cache misses by entity and cache kind (record or list).",
	}, []string{"entity", "kind"})
)
