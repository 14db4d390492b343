package sched

import (
	"time"
)

// EventKind classifies scheduler status events.
type EventKind int

const (
	EventEnqueue EventKind = iota
	EventDequeue
	EventSwitch
	EventIdle
	EventMigrate
	EventDrop
)

func (k EventKind) String() string {
	switch k {
	case EventEnqueue:
		return "Enqueue"
	case EventDequeue:
		return "Dequeue"
	case EventSwitch:
		return "Switch"
	case EventIdle:
		return "Idle"
	case EventMigrate:
		return "Migrate"
	case EventDrop:
		return "Drop"
	default:
		return "Unknown"
	}
}

// Event is emitted on every state-changing scheduler operation. For
// migrations CPU is the destination and SrcCPU the origin; otherwise
// SrcCPU equals CPU.
type Event struct {
	Time     time.Time
	Kind     EventKind
	CPU      int
	SrcCPU   int
	TaskID   TaskID
	Vruntime uint64
}

// emit hands the event to the consumer without ever blocking: a slow or
// absent consumer drops events rather than stalling a scheduling tick.
func (m *Manager) emit(ev Event) {
	if !m.running.Load() {
		return
	}
	select {
	case m.events <- ev:
	default:
	}
}
