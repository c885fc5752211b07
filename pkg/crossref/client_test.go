package crossref

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripTags(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text", "No markup at all.", "No markup at all."},
		{
			"jats abstract",
			"<jats:p>Wheat is a <jats:italic>staple</jats:italic> crop.</jats:p>",
			"Wheat is a staple crop.",
		},
		{
			"collapses whitespace",
			"<jats:title>Abstract</jats:title>\n  <jats:p>Line one.\n\nLine two.</jats:p>",
			"Abstract Line one. Line two.",
		},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripTags(tt.in))
		})
	}
}
