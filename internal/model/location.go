package model

import "time"

// Category classifies a travel location record.
type Category string

const (
	CategoryRestaurant Category = "restaurant"
	CategoryHotel      Category = "hotel"
	CategoryAttraction Category = "attraction"
	CategoryNightlife  Category = "nightlife"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryRestaurant, CategoryHotel, CategoryAttraction, CategoryNightlife:
		return true
	}
	return false
}

// Location is a curated travel-location record. It is owned by the sibling
// location subsystem; this engine only ensures its taxonomy entry exists
// and rewrites its key during retroactive corrections.
type Location struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    Category  `json:"category"`
	LocationKey string    `json:"location_key"`
	CreatedAt   time.Time `json:"created_at"`
}
