package store

import (
	"strings"

	"github.com/tripatlas/curator/internal/model"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike escapes LIKE metacharacters in a rule value. Patterns built
// here are always used with ESCAPE '\'.
func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}

// likePattern builds the LIKE pattern that selects keys affected by a
// correction of value at the given segment position:
//
//	country:      value%      (the country segment is always first)
//	city:         %|%value%   (value anywhere after the first separator)
//	neighborhood: %|value     (key ends in |value)
//
// The city and neighborhood forms are substring matches, not anchored
// segment matches: a city rule for "lima" also selects
// "peru|cusco|san-lima". Operators are expected to run a preview before
// committing a rule; see DESIGN.md.
func likePattern(value string, part model.PartType) string {
	v := escapeLike(value)
	switch part {
	case model.PartCountry:
		return v + "%"
	case model.PartCity:
		return "%|%" + v + "%"
	case model.PartNeighborhood:
		return "%|" + v
	}
	return v
}
