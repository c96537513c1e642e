package locationkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Valid(t *testing.T) {
	tests := []struct {
		raw          string
		country      string
		city         string
		neighborhood string
	}{
		{"peru", "peru", "", ""},
		{"peru|lima", "peru", "lima", ""},
		{"peru|lima|miraflores", "peru", "lima", "miraflores"},
		{"brazil|bras-lia|asa-sul", "brazil", "bras-lia", "asa-sul"},
		{"united-states|new-york", "united-states", "new-york", ""},
		{"area-51", "area-51", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			k, ok := Parse(tt.raw)
			require.True(t, ok)
			assert.Equal(t, tt.country, k.Country)
			assert.Equal(t, tt.city, k.City)
			assert.Equal(t, tt.neighborhood, k.Neighborhood)
			assert.Equal(t, tt.raw, k.String())
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"four segments", "peru|lima|miraflores|extra"},
		{"empty segment", "peru||miraflores"},
		{"trailing separator", "peru|lima|"},
		{"uppercase", "Peru|lima"},
		{"spaces", "peru|la paz"},
		{"unicode", "perú"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, ok := Parse(tt.raw)
			assert.False(t, ok)
			assert.Nil(t, k)
		})
	}
}

func TestKey_Display(t *testing.T) {
	tests := []struct {
		raw     string
		display string
	}{
		{"peru", "Peru"},
		{"peru|lima", "Peru > Lima"},
		{"brazil|bras-lia|asa-sul", "Brazil > Bras Lia > Asa Sul"},
		{"united-states|new-york|hells-kitchen", "United States > New York > Hells Kitchen"},
	}

	for _, tt := range tests {
		k, ok := Parse(tt.raw)
		require.True(t, ok, tt.raw)
		assert.Equal(t, tt.display, k.Display())
	}
}

func TestParse_Display_RoundTrip(t *testing.T) {
	for _, raw := range []string{"peru", "peru|lima", "peru|lima|miraflores"} {
		k, ok := Parse(raw)
		require.True(t, ok)
		assert.NotEmpty(t, k.Display())
		assert.Equal(t, raw, k.String())
	}
}

func TestInScope(t *testing.T) {
	tests := []struct {
		key    string
		parent string
		want   bool
	}{
		{"peru", "peru", true},
		{"peru|lima", "peru|lima", true},
		{"peru|lima", "peru", true},
		{"peru|lima|miraflores", "peru|lima", true},
		{"peru|lima|miraflores", "peru", true},
		{"peru|lima2", "peru|lima", false},
		{"peru", "peru|lima", false},
		{"peruvia", "peru", false},
		{"chile|lima", "peru", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, InScope(tt.key, tt.parent), "InScope(%q, %q)", tt.key, tt.parent)
	}
}

func TestFormatLabel(t *testing.T) {
	assert.Equal(t, "San Telmo", FormatLabel("san-telmo"))
	assert.Equal(t, "Lima", FormatLabel("lima"))
}
