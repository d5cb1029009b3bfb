package schemas

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// EventType is the kind of user interaction a SyntheticEvent records.
type EventType string

const (
	EventView  EventType = "view"
	EventClick EventType = "click"
	EventHover EventType = "hover"
	EventInput EventType = "input"
)

// EventTypes lists every valid EventType in draw order.
var EventTypes = []EventType{EventView, EventClick, EventHover, EventInput}

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

const (
	MinStayTimeMs = 1000
	MaxStayTimeMs = 300000
)

// CreatedAtLayout is the ISO 8601 layout used for custom_created_at.
const CreatedAtLayout = "2006-01-02T15:04:05.000Z07:00"

// SyntheticEvent is the tracking payload posted for one fabricated interaction.
// Built once per iteration and never mutated afterwards.
type SyntheticEvent struct {
	Type      EventType `json:"type"`
	Target    string    `json:"target"`
	Page      string    `json:"page"`
	StayTime  int64     `json:"stayTime"`  // ms, view only
	Timestamp int64     `json:"timestamp"` // epoch ms

	// Spoofing fields: let the receiver backdate and re-attribute the event.
	MockIP          string      `json:"mock_ip"`
	MockLocation    GeoLocation `json:"mock_location"`
	CustomCreatedAt string      `json:"custom_created_at"`
}

// OccurredAt returns the simulated event time in the offset of CustomCreatedAt,
// falling back to Timestamp in the local zone.
func (e *SyntheticEvent) OccurredAt() time.Time {
	if t, err := time.Parse(time.RFC3339Nano, e.CustomCreatedAt); err == nil && t.UnixMilli() == e.Timestamp {
		return t
	}
	return time.UnixMilli(e.Timestamp)
}

// ParseSyntheticEvent decodes and validates a raw JSON byte slice.
func ParseSyntheticEvent(data []byte) (*SyntheticEvent, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()

	var event SyntheticEvent
	if err := decoder.Decode(&event); err != nil {
		return nil, fmt.Errorf("json decode error: %w", err)
	}

	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	return &event, nil
}

// Validate enforces the payload invariants.
func (e *SyntheticEvent) Validate() error {
	if e.Type == "" {
		return fmt.Errorf("type is required")
	}
	if !e.Type.Valid() {
		return fmt.Errorf("type %q is not one of view, click, hover, input", e.Type)
	}

	// Only clicks have a target.
	if e.Type == EventClick && e.Target == "" {
		return fmt.Errorf("target is required for click events")
	}
	if e.Type != EventClick && e.Target != "" {
		return fmt.Errorf("target must be empty for %s events", e.Type)
	}

	// Only views have a stay time.
	if e.Type == EventView {
		if e.StayTime < MinStayTimeMs || e.StayTime > MaxStayTimeMs {
			return fmt.Errorf("stayTime must be between %d and %d for view events", MinStayTimeMs, MaxStayTimeMs)
		}
	} else if e.StayTime != 0 {
		return fmt.Errorf("stayTime must be 0 for %s events", e.Type)
	}

	if e.Page == "" {
		return fmt.Errorf("page is required")
	}
	if !strings.HasPrefix(e.Page, "/") {
		return fmt.Errorf("page must be an absolute path")
	}

	if e.Timestamp <= 0 {
		return fmt.Errorf("timestamp is required")
	}

	if e.MockIP == "" {
		return fmt.Errorf("mock_ip is required")
	}
	addr, err := netip.ParseAddr(e.MockIP)
	if err != nil || !addr.Is4() {
		return fmt.Errorf("mock_ip must be a dotted IPv4 address")
	}

	if err := e.MockLocation.Validate(); err != nil {
		return fmt.Errorf("mock_location: %w", err)
	}

	if e.CustomCreatedAt == "" {
		return fmt.Errorf("custom_created_at is required")
	}
	createdAt, err := time.Parse(time.RFC3339, e.CustomCreatedAt)
	if err != nil {
		return fmt.Errorf("custom_created_at invalid: %w", err)
	}
	if createdAt.UnixMilli() != e.Timestamp {
		return fmt.Errorf("custom_created_at does not match timestamp")
	}

	return nil
}
