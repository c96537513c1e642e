package model

import "time"

// PartType identifies which key segment a correction rule targets.
type PartType string

const (
	PartCountry      PartType = "country"
	PartCity         PartType = "city"
	PartNeighborhood PartType = "neighborhood"
)

// Valid reports whether p is a known part type.
func (p PartType) Valid() bool {
	switch p {
	case PartCountry, PartCity, PartNeighborhood:
		return true
	}
	return false
}

// CorrectionRule maps a misspelled segment value to its canonical form.
// A rule targets exactly one segment position; correction of a key is
// applied per segment, independent of the other segments' values.
type CorrectionRule struct {
	ID             string    `json:"id"`
	IncorrectValue string    `json:"incorrect_value"`
	CorrectValue   string    `json:"correct_value"`
	PartType       PartType  `json:"part_type"`
	CreatedAt      time.Time `json:"created_at"`
}

// LocationSample pairs a location's current key with the key it would hold
// after a proposed correction is applied.
type LocationSample struct {
	CurrentKey   string `json:"current_key"`
	CorrectedKey string `json:"corrected_key"`
}

// CorrectionPreview reports the blast radius of a proposed rule before it
// is committed.
type CorrectionPreview struct {
	PendingTaxonomyCount   int              `json:"pending_taxonomy_count"`
	PendingTaxonomySamples []string         `json:"pending_taxonomy_samples"`
	LocationCount          int              `json:"location_count"`
	LocationSamples        []LocationSample `json:"location_samples"`
}

// CorrectionResult reports what an applied rule changed, for operator
// feedback.
type CorrectionResult struct {
	Correction           CorrectionRule `json:"correction"`
	UpdatedPendingCount  int            `json:"updated_pending_count"`
	UpdatedLocationCount int            `json:"updated_location_count"`
}
