package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Ticks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "circuitflow_ticks_total",
		Help: "Total number of scheduler ticks executed.",
	})

	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "circuitflow_tick_duration_ms",
		Help:    "Time spent running the tasks of a single tick in milliseconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50},
	})

	SchedulerPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "circuitflow_scheduler_pending",
		Help: "Tasks waiting for a future tick.",
	})

	Flushes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "circuitflow_flushes_total",
		Help: "Total number of connection flushes delivered to input ports.",
	})

	WritesCoalesced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "circuitflow_writes_coalesced_total",
		Help: "Connection writes absorbed by an already scheduled flush.",
	})

	NodeUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circuitflow_node_updates_total",
		Help: "Total number of node update rule invocations, labelled by node type.",
	}, []string{"node_type"})

	EdgesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "circuitflow_edges_dropped_total",
		Help: "Edges skipped while loading a serialized graph.",
	})

	ScriptJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circuitflow_script_jobs_total",
		Help: "Scripted node calls, labelled by mode and status.",
	}, []string{"mode", "status"})

	StoreOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circuitflow_store_ops_total",
		Help: "Graph store operations, labelled by backend, operation and status.",
	}, []string{"backend", "op", "status"})

	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "circuitflow_sessions_active",
		Help: "Number of live circuit sessions.",
	})

	ScriptQueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "circuitflow_script_queue_utilization_ratio",
		Help: "Current async script queue utilization (0–1).",
	})
)
