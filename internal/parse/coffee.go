package parse

import (
	"fmt"
	"regexp"
	"strings"

	"coffee-machine-backend/internal/brew"
)

var separatorRe = regexp.MustCompile(`[\s\-_]+`)

// aliases maps common spellings that do not normalize to a brew.Type on their own.
var aliases = map[string]brew.Type{
	"long_black":  brew.Americano,
	"flatwhite":   brew.FlatWhite,
	"cafe_latte":  brew.Latte,
	"caffe_latte": brew.Latte,
	"mochaccino":  brew.Mocha,
	"cafe_mocha":  brew.Mocha,
}

// CoffeeType normalizes a human-entered coffee name such as "Flat White",
// "flat-white" or " LATTE " into a brew.Type.
func CoffeeType(raw string) (brew.Type, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = separatorRe.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "", fmt.Errorf("empty coffee type")
	}

	if t := brew.Type(s); t.Valid() {
		return t, nil
	}
	if t, ok := aliases[s]; ok {
		return t, nil
	}
	return "", fmt.Errorf("unknown coffee type: %q", raw)
}

// CoffeeTypes normalizes every entry of raw, dropping duplicates while
// keeping first-seen order.
func CoffeeTypes(raw []string) ([]brew.Type, error) {
	seen := make(map[brew.Type]bool, len(raw))
	types := make([]brew.Type, 0, len(raw))
	for _, r := range raw {
		t, err := CoffeeType(r)
		if err != nil {
			return nil, err
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		types = append(types, t)
	}
	return types, nil
}
