package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "lowercase and trim", input: "  Alice  ", want: "alice"},
		{name: "strip punctuation", input: "U.S.A.", want: "u s a"},
		{name: "corporate designator", input: "Acme Corp.", want: "acme"},
		{name: "stacked designators", input: "Acme Holding Co. Ltd.", want: "acme holding"},
		{name: "designator only is kept", input: "Corp", want: "corp"},
		{name: "diacritics", input: "Café Müller", want: "cafe muller"},
		{name: "collapse whitespace", input: "International  Business\tMachines", want: "international business machines"},
		{name: "empty", input: "  .,  ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalizeRelation(t *testing.T) {
	assert.Equal(t, "works_for", NormalizeRelation("Works For"))
	assert.Equal(t, "references", NormalizeRelation(" references "))
	assert.Equal(t, "", NormalizeRelation("   "))
}
