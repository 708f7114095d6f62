package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"coffee-machine-backend/internal/brew"
)

func TestCoffeeType(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		expected  brew.Type
		expectErr bool
	}{
		{name: "Canonical", raw: "espresso", expected: brew.Espresso},
		{name: "Upper case with padding", raw: "  LATTE ", expected: brew.Latte},
		{name: "Space separated", raw: "Flat White", expected: brew.FlatWhite},
		{name: "Hyphen separated", raw: "flat-white", expected: brew.FlatWhite},
		{name: "Repeated separators", raw: "flat -_ white", expected: brew.FlatWhite},
		{name: "Alias", raw: "Long Black", expected: brew.Americano},
		{name: "Alias without separator", raw: "flatwhite", expected: brew.FlatWhite},
		{name: "Unknown", raw: "frappuccino", expectErr: true},
		{name: "Empty", raw: "   ", expectErr: true},
		{name: "Only separators", raw: "--", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CoffeeType(tc.raw)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestCoffeeTypes(t *testing.T) {
	got, err := CoffeeTypes([]string{"Latte", "espresso", "latte", "Caffe Latte"})
	assert.NoError(t, err)
	assert.Equal(t, []brew.Type{brew.Latte, brew.Espresso}, got)

	_, err = CoffeeTypes([]string{"latte", "tea"})
	assert.Error(t, err)
}
