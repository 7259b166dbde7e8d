package kafka

import (
	"sync/atomic"

	"fluxgate/internal/telemetry"
)

// State is the consumer lifecycle:
// Idle -> Subscribed -> Receiving -> Stopping -> Stopped.
type State int32

const (
	StateIdle State = iota
	StateSubscribed
	StateReceiving
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubscribed:
		return "subscribed"
	case StateReceiving:
		return "receiving"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

type stateBox struct{ v atomic.Int32 }

func (b *stateBox) load() State { return State(b.v.Load()) }

func (b *stateBox) store(s State) {
	b.v.Store(int32(s))
	telemetry.ConsumerState.Set(float64(s))
}

// advance moves from one of the allowed states to next.
func (b *stateBox) advance(next State, from ...State) bool {
	for _, f := range from {
		if b.v.CompareAndSwap(int32(f), int32(next)) {
			telemetry.ConsumerState.Set(float64(next))
			return true
		}
	}
	return false
}

// Status is a point-in-time view of a consumer.
type Status struct {
	State    State
	GroupID  string
	ClientID string
	Topics   []string
	Handled  uint64
	Acked    uint64
	// Offsets holds the last acknowledged offset per "topic/partition".
	Offsets map[string]int64
}
