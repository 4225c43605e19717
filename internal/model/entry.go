package model

import "time"

// Entry represents one message-wall submission
type Entry struct {
	ID        string    `json:"id"`
	Scope     string    `json:"scope"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// EventType tags a change event
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"

	// EventReady is the first frame of a change stream. It is sent once the
	// server has registered the subscriber, so no later change is missed.
	EventReady EventType = "ready"
)

// Event is a change notification for a single entry.
// Created and Updated carry the full Entry, Deleted carries only the ID.
type Event struct {
	Type      EventType  `json:"type"`
	Scope     string     `json:"scope"`
	ID        string     `json:"id"`
	Entry     *Entry     `json:"entry,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Created builds a created event for e
func Created(e Entry) Event {
	return Event{Type: EventCreated, Scope: e.Scope, ID: e.ID, Entry: &e}
}

// Updated builds an updated event for e
func Updated(e Entry) Event {
	return Event{Type: EventUpdated, Scope: e.Scope, ID: e.ID, Entry: &e}
}

// Deleted builds a deleted event for id within scope
func Deleted(scope, id string, at time.Time) Event {
	return Event{Type: EventDeleted, Scope: scope, ID: id, DeletedAt: &at}
}
