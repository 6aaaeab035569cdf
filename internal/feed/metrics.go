package feed

import "time"

// Metrics receives operation outcomes from the store.
type Metrics interface {
	// ObserveOperation records one store operation and how it ended (see Outcome).
	ObserveOperation(op string, outcome string, d time.Duration)

	// SetRecordCount records the collection size after a successful write.
	SetRecordCount(n int)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) ObserveOperation(string, string, time.Duration) {}
func (NopMetrics) SetRecordCount(int)                             {}
