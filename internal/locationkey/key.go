// Package locationkey parses and formats the pipe-delimited hierarchical
// location keys produced by the geocoding pipeline: "country",
// "country|city", or "country|city|neighborhood".
package locationkey

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Separator joins key segments in stored form.
const Separator = "|"

// MaxSegments is the deepest supported hierarchy level.
const MaxSegments = 3

var titleCaser = cases.Title(language.English)

// Key is a parsed location key. City and Neighborhood are empty when the
// key does not reach that level; a neighborhood never exists without a city.
type Key struct {
	Country      string
	City         string
	Neighborhood string
}

// Parse splits a raw key into its segments. It returns false on empty
// input, more than three segments, an empty segment, or segment characters
// outside lowercase ASCII letters, digits, and hyphens.
func Parse(raw string) (*Key, bool) {
	if raw == "" {
		return nil, false
	}
	segments := strings.Split(raw, Separator)
	if len(segments) > MaxSegments {
		return nil, false
	}
	for _, seg := range segments {
		if !validSegment(seg) {
			return nil, false
		}
	}

	k := &Key{Country: segments[0]}
	if len(segments) > 1 {
		k.City = segments[1]
	}
	if len(segments) > 2 {
		k.Neighborhood = segments[2]
	}
	return k, true
}

func validSegment(seg string) bool {
	if seg == "" {
		return false
	}
	for _, r := range seg {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-':
		default:
			return false
		}
	}
	return true
}

// Segments returns the present segments in order, without trailing blanks.
func (k *Key) Segments() []string {
	segs := []string{k.Country}
	if k.City != "" {
		segs = append(segs, k.City)
	}
	if k.Neighborhood != "" {
		segs = append(segs, k.Neighborhood)
	}
	return segs
}

// String rebuilds the stored pipe-delimited form.
func (k *Key) String() string {
	return strings.Join(k.Segments(), Separator)
}

// Display renders the key for humans: title-cased segments with hyphens
// expanded to spaces, joined by " > " ("peru|lima" -> "Peru > Lima").
func (k *Key) Display() string {
	segs := k.Segments()
	labels := make([]string, len(segs))
	for i, seg := range segs {
		labels[i] = FormatLabel(seg)
	}
	return strings.Join(labels, " > ")
}

// FormatLabel converts a kebab-case segment value to a display label.
func FormatLabel(segment string) string {
	return titleCaser.String(strings.ReplaceAll(segment, "-", " "))
}

// InScope reports whether key equals parent or sits below it in the
// hierarchy. The check is over whole segments: "peru|lima" is in scope of
// "peru", but "peru|lima2" is not in scope of "peru|lima".
func InScope(key, parent string) bool {
	if key == parent {
		return true
	}
	return strings.HasPrefix(key, parent+Separator)
}
