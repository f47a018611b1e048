package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Package-level collectors, registered on the default registry and
// exposed through the shared /metrics endpoint.
var (
	CasesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cloudesk_pipeline_cases_total",
		Help: "Processed cases by query intent",
	}, []string{"intent"})

	CaseDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cloudesk_pipeline_case_duration_seconds",
		Help:    "End-to-end case processing latency",
		Buckets: prometheus.DefBuckets,
	})

	RepliesByMode = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cloudesk_pipeline_replies_total",
		Help: "Replies by source mode (knowledge, model, fallback)",
	}, []string{"mode"})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cloudesk_cache_hits_total",
		Help: "Cache hits by serving tier",
	}, []string{"tier"})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cloudesk_cache_misses_total",
		Help: "Full cache misses that reached the compute function",
	})

	CacheTierFaults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cloudesk_cache_tier_faults_total",
		Help: "Tier faults that degraded a cache tier",
	}, []string{"tier"})

	ModelCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cloudesk_llm_calls_total",
		Help: "Model attempts by model id and outcome",
	}, []string{"model", "outcome"})

	TokensUsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cloudesk_llm_tokens_total",
		Help: "Token usage by kind (prompt, completion)",
	}, []string{"kind"})

	AlertsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cloudesk_notify_alerts_total",
		Help: "Alert dispatch outcomes by channel and status",
	}, []string{"channel", "status"})

	KnowledgeEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cloudesk_knowledge_entries",
		Help: "Entries in the active knowledge index",
	})
)
