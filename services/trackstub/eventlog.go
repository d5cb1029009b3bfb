package main

import (
	"sync"

	"github.com/lgreene/tracksim/schemas"
)

// EventLog holds accepted events in memory until the next reset.
type EventLog struct {
	mu     sync.Mutex
	events []schemas.SyntheticEvent
}

func (l *EventLog) Append(e schemas.SyntheticEvent) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return len(l.events)
}

// Reset drops everything and returns how many events were removed.
func (l *EventLog) Reset() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.events)
	l.events = nil
	return n
}

func (l *EventLog) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

func (l *EventLog) Snapshot() []schemas.SyntheticEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]schemas.SyntheticEvent(nil), l.events...)
}
