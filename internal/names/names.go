// Package names implements the output-name grammar accepted from callers:
// two-character names like "B3", bare bank letters, tile numbers, the token
// ALL, and minus-prefixed exclusions. Pure computation, no hardware.
package names

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Banks and slots per bank on the unit.
const (
	banks        = "ABCD"
	slotsPerBank = 8
)

// Tiles maps a tile number (1-16) to the pair of outputs feeding it. The
// pairing is fixed by the field cabling, not by the board.
var Tiles = map[int][]string{
	1:  {"C5", "C6"},
	2:  {"D5", "D6"},
	3:  {"A7", "A8"},
	4:  {"A3", "A4"},
	5:  {"A1", "A2"},
	6:  {"B7", "B8"},
	7:  {"C1", "C2"},
	8:  {"B3", "B4"},
	9:  {"B1", "B2"},
	10: {"C3", "C4"},
	11: {"D1", "D2"},
	12: {"C7", "C8"},
	13: {"D3", "D4"},
	14: {"D7", "D8"},
	15: {"A5", "A6"},
	16: {"B5", "B6"},
}

// All returns the 32 valid output names in sorted order.
func All() []string {
	out := make([]string, 0, len(banks)*slotsPerBank)
	for _, letter := range banks {
		for digit := 1; digit <= slotsPerBank; digit++ {
			out = append(out, fmt.Sprintf("%c%d", letter, digit))
		}
	}
	return out
}

// Valid reports whether name is a well-formed output name ([A-D][1-8]).
func Valid(name string) bool {
	if len(name) != 2 {
		return false
	}
	return strings.ContainsRune(banks, rune(name[0])) && name[1] >= '1' && name[1] <= '8'
}

// Expand resolves a list of tokens into a sorted, deduplicated name list.
// Exclusions (minus-prefixed tokens) apply after all inclusions are
// unioned, so "ALL -C3" and "-C3 ALL" mean the same thing.
func Expand(tokens []string) ([]string, error) {
	var include, exclude []string
	for _, tok := range tokens {
		spec := tok
		sub := false
		if strings.HasPrefix(tok, "-") {
			sub = true
			spec = tok[1:]
		}
		expanded, err := expandOne(strings.ToUpper(spec))
		if err != nil {
			return nil, err
		}
		if sub {
			exclude = append(exclude, expanded...)
		} else {
			include = append(include, expanded...)
		}
	}

	drop := make(map[string]bool, len(exclude))
	for _, n := range exclude {
		drop[n] = true
	}

	seen := make(map[string]bool, len(include))
	var out []string
	for _, n := range include {
		if drop[n] || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

func expandOne(spec string) ([]string, error) {
	switch {
	case spec == "ALL":
		return All(), nil
	case len(spec) == 1 && strings.Contains(banks, spec):
		out := make([]string, 0, slotsPerBank)
		for digit := 1; digit <= slotsPerBank; digit++ {
			out = append(out, fmt.Sprintf("%s%d", spec, digit))
		}
		return out, nil
	case Valid(spec):
		return []string{spec}, nil
	}
	if n, err := strconv.Atoi(spec); err == nil {
		pair, ok := Tiles[n]
		if !ok {
			return nil, fmt.Errorf("tile number out of range: %d", n)
		}
		return append([]string(nil), pair...), nil
	}
	return nil, fmt.Errorf("unrecognized output name %q", spec)
}
