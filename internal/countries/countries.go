// Package countries loads the participant list.
//
// The file is a JSON object mapping a lowercase ISO code to a display name:
//
//	{"ar": "Argentina", "br": "Brazil"}
package countries

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"country-marbles/internal/game"
)

// ErrEmpty is returned when the file holds no usable entries
var ErrEmpty = errors.New("countries file has no entries")

// Load reads a countries file into a participant list sorted by code, so
// rounds are reproducible for a given seed.
func Load(path string) ([]game.Country, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read countries: %w", err)
	}
	return Parse(data)
}

// Parse decodes the code -> name object
func Parse(data []byte) ([]game.Country, error) {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse countries: %w", err)
	}

	out := make([]game.Country, 0, len(raw))
	for code, name := range raw {
		code = strings.ToLower(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		if name = strings.TrimSpace(name); name == "" {
			name = strings.ToUpper(code)
		}
		out = append(out, game.Country{Code: code, Name: name})
	}
	if len(out) == 0 {
		return nil, ErrEmpty
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// Index maps code to country for lookups from admin requests
func Index(list []game.Country) map[string]game.Country {
	idx := make(map[string]game.Country, len(list))
	for _, c := range list {
		idx[c.Code] = c
	}
	return idx
}
