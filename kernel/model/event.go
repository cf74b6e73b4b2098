package model

import "time"

type EventType string

const (
	EventRegistered EventType = "registered"
	EventRemoved    EventType = "removed"
	EventRetagged   EventType = "retagged"
)

// Event records one change to the catalog held by the backend.
type Event struct {
	Type                EventType `json:"type"`
	Owner               string    `json:"owner"`
	ApplianceIdentifier string    `json:"appliance_identifier"`
	ImageListIdentifier string    `json:"image_list_identifier,omitempty"`
	ImageId             string    `json:"image_id"`
	Timestamp           time.Time `json:"timestamp"`
}
