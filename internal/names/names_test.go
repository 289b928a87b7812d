package names

import (
	"reflect"
	"testing"
)

func TestExpandBank(t *testing.T) {
	got, err := Expand([]string{"B"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"B1", "B2", "B3", "B4", "B5", "B6", "B7", "B8"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExpandAll(t *testing.T) {
	got, err := Expand([]string{"ALL"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 32 {
		t.Fatalf("got %d names, want 32", len(got))
	}
	if got[0] != "A1" || got[31] != "D8" {
		t.Errorf("expansion not sorted: %v", got)
	}
}

func TestExpandExclusion(t *testing.T) {
	got, err := Expand([]string{"ALL", "-C3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 31 {
		t.Fatalf("got %d names, want 31", len(got))
	}
	for _, n := range got {
		if n == "C3" {
			t.Error("C3 should be excluded")
		}
	}
}

func TestExpandExclusionOrderIndependent(t *testing.T) {
	a, _ := Expand([]string{"ALL", "-B"})
	b, _ := Expand([]string{"-B", "ALL"})
	if !reflect.DeepEqual(a, b) {
		t.Errorf("exclusion should apply after union: %v != %v", a, b)
	}
	if len(a) != 24 {
		t.Errorf("got %d names, want 24", len(a))
	}
}

func TestExpandTile(t *testing.T) {
	got, err := Expand([]string{"3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"A7", "A8"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExpandMixed(t *testing.T) {
	// A and B, minus A4 and A5 — from the command usage examples.
	got, err := Expand([]string{"A", "B", "-A4", "-A5"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"A1", "A2", "A3", "A6", "A7", "A8", "B1", "B2", "B3", "B4", "B5", "B6", "B7", "B8"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExpandLowercase(t *testing.T) {
	got, err := Expand([]string{"c3", "all", "-d"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 24 {
		t.Errorf("got %d names, want 24", len(got))
	}
}

func TestExpandRejectsUnknownTokens(t *testing.T) {
	for _, tok := range []string{"E1", "A9", "17", "0", "banana"} {
		if _, err := Expand([]string{tok}); err == nil {
			t.Errorf("Expand(%q): expected error", tok)
		}
	}
}

func TestTilesCoverEveryOutputOnce(t *testing.T) {
	seen := make(map[string]int)
	for tile, pair := range Tiles {
		if len(pair) != 2 {
			t.Errorf("tile %d: %d outputs, want 2", tile, len(pair))
		}
		for _, n := range pair {
			if !Valid(n) {
				t.Errorf("tile %d: invalid output %q", tile, n)
			}
			seen[n]++
		}
	}
	for _, n := range All() {
		if seen[n] != 1 {
			t.Errorf("output %s appears in %d tiles, want 1", n, seen[n])
		}
	}
}
