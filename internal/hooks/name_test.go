package hooks

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitName(t *testing.T) {
	tests := []struct {
		name  string
		first string
		last  *string
	}{
		{name: "Ada Lovelace", first: "Ada", last: strPtr("Lovelace")},
		{name: "Madonna", first: "Madonna", last: nil},
		{name: "Mary Jane Watson", first: "Mary", last: strPtr("Watson")},
		{name: "  Grace   Hopper ", first: "Grace", last: strPtr("Hopper")},
		{name: "", first: "", last: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, last := SplitName(tt.name)
			assert.Equal(t, tt.first, first)
			assert.Equal(t, tt.last, last)
		})
	}
}

func strPtr(s string) *string { return &s }
