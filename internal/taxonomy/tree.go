// Package taxonomy maintains the pending/approved review workflow for
// observed location keys and folds approved entries into the
// country > city > neighborhood hierarchy the browse UIs consume.
package taxonomy

import (
	"github.com/tripatlas/curator/internal/locationkey"
	"github.com/tripatlas/curator/internal/model"
)

// Country is a top-level node of the location hierarchy.
type Country struct {
	Code   string  `json:"code"`
	Label  string  `json:"label"`
	Cities []*City `json:"cities"`
}

// City is a second-level node of the location hierarchy.
type City struct {
	Value         string          `json:"value"`
	Label         string          `json:"label"`
	Neighborhoods []*Neighborhood `json:"neighborhoods"`
}

// Neighborhood is a leaf of the location hierarchy.
type Neighborhood struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// BuildTree folds a flat list of taxonomy entries into the nested
// hierarchy. Nodes are deduplicated by raw segment value (case-sensitive)
// and keep first-seen labels; output follows first-seen insertion order.
// Callers that need sorted output must sort explicitly.
func BuildTree(entries []model.TaxonomyEntry) []*Country {
	var countries []*Country
	countryIdx := make(map[string]*Country)
	cityIdx := make(map[string]map[string]*City)

	upsertCountry := func(code string) *Country {
		if c, ok := countryIdx[code]; ok {
			return c
		}
		c := &Country{Code: code, Label: locationkey.FormatLabel(code)}
		countryIdx[code] = c
		cityIdx[code] = make(map[string]*City)
		countries = append(countries, c)
		return c
	}

	upsertCity := func(country *Country, value string) *City {
		if c, ok := cityIdx[country.Code][value]; ok {
			return c
		}
		c := &City{Value: value, Label: locationkey.FormatLabel(value)}
		cityIdx[country.Code][value] = c
		country.Cities = append(country.Cities, c)
		return c
	}

	for _, e := range entries {
		country := upsertCountry(e.Country)
		if e.City == "" {
			continue
		}
		city := upsertCity(country, e.City)
		if e.Neighborhood == "" {
			continue
		}
		if !hasNeighborhood(city, e.Neighborhood) {
			city.Neighborhoods = append(city.Neighborhoods, &Neighborhood{
				Value: e.Neighborhood,
				Label: locationkey.FormatLabel(e.Neighborhood),
			})
		}
	}
	return countries
}

func hasNeighborhood(city *City, value string) bool {
	for _, n := range city.Neighborhoods {
		if n.Value == value {
			return true
		}
	}
	return false
}
