package metrics

import "time"

// Metric names recorded by the buyer.
const (
	StateTransition = "state_transition"
	PurchaseOutcome = "purchase_outcome"
	APIRequest      = "api_request"

	// Latency operations, each labelled with the stage it covers.
	PurchaseLatency = "purchase"
	SearchLatency   = "search"
	ProxyLatency    = "proxy"
)

type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

// OrNoop returns r, or a NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
