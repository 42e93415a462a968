package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	InboundMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "waflow_inbound_messages_total",
		Help: "Inbound webhook messages accepted for processing.",
	})

	FlowRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "waflow_flow_runs_total",
		Help: "Flow interpreter runs by outcome.",
	}, []string{"status"})

	HandoffActivations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "waflow_handoff_activations_total",
		Help: "Conversations handed off to a human agent.",
	})

	SkippedByHandoff = promauto.NewCounter(prometheus.CounterOpts{
		Name: "waflow_messages_skipped_handoff_total",
		Help: "Messages not answered because a human owns the conversation.",
	})
)
