package model

import "time"

// Status represents the review state of a taxonomy entry.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusApproved
}

// CanApprove reports whether the approve transition is legal from s.
// Only pending entries can be approved.
func (s Status) CanApprove() bool {
	return s == StatusPending
}

// CanDelete reports whether the entry may be removed. Approved entries are
// immutable through the review workflow.
func (s Status) CanDelete() bool {
	return s == StatusPending
}

// TaxonomyEntry is a recorded observation of a location key. Entries are
// created pending when a location first references an unseen key and are
// approved or rejected by an operator.
type TaxonomyEntry struct {
	ID           string    `json:"id"`
	Country      string    `json:"country"`
	City         string    `json:"city,omitempty"`
	Neighborhood string    `json:"neighborhood,omitempty"`
	LocationKey  string    `json:"location_key"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// PendingEntry is a pending taxonomy entry annotated with the number of
// location records that currently reference its key.
type PendingEntry struct {
	TaxonomyEntry
	LocationCount int `json:"location_count"`
}
