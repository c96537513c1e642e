package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tripatlas/curator/internal/model"
)

func TestLikePattern(t *testing.T) {
	tests := []struct {
		name  string
		value string
		part  model.PartType
		want  string
	}{
		{"country anchors at start", "peru", model.PartCountry, `peru%`},
		{"city matches after any separator", "lima", model.PartCity, `%|%lima%`},
		{"neighborhood anchors at end", "miraflores", model.PartNeighborhood, `%|miraflores`},
		{"percent escaped", "li%ma", model.PartCity, `%|%li\%ma%`},
		{"underscore escaped", "li_ma", model.PartCity, `%|%li\_ma%`},
		{"backslash escaped", `li\ma`, model.PartCountry, `li\\ma%`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, likePattern(tt.value, tt.part))
		})
	}
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%\_\\`, escapeLike(`100%_\`))
	assert.Equal(t, "plain", escapeLike("plain"))
}
