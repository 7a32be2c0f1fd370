package gift

import (
	"errors"
	"testing"
)

func TestCatalog_AllEntriesValid(t *testing.T) {
	entries := Catalog()
	if len(entries) == 0 {
		t.Fatal("catalog is empty")
	}

	seen := make(map[string]bool)
	for _, g := range entries {
		if err := Validate(g); err != nil {
			t.Errorf("catalog entry %q is invalid: %v", g.ID, err)
		}
		if seen[g.ID] {
			t.Errorf("duplicate gift id %q", g.ID)
		}
		seen[g.ID] = true
	}
}

func TestCatalog_ReturnsCopy(t *testing.T) {
	first := Catalog()
	first[0].Cost = -999

	if Catalog()[0].Cost == -999 {
		t.Fatal("mutating Catalog() result leaked into the reference data")
	}
}

func TestLookup(t *testing.T) {
	g, err := Lookup("rose")
	if err != nil {
		t.Fatalf("Lookup(rose) error: %v", err)
	}
	if g.Name != "Rose" || g.Cost != 5 {
		t.Errorf("Lookup(rose) = %+v", g)
	}

	_, err = Lookup("yacht")
	if !errors.Is(err, ErrUnknownGift) {
		t.Errorf("Lookup(yacht) error = %v, want ErrUnknownGift", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		g    Gift
		ok   bool
	}{
		{"valid", Gift{ID: "rose", Name: "Rose", Cost: 5}, true},
		{"cost of one", Gift{ID: "x", Name: "X", Cost: 1}, true},
		{"empty id", Gift{Name: "Rose", Cost: 5}, false},
		{"empty name", Gift{ID: "rose", Cost: 5}, false},
		{"zero cost", Gift{ID: "rose", Name: "Rose", Cost: 0}, false},
		{"negative cost", Gift{ID: "rose", Name: "Rose", Cost: -5}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.g)
			if tt.ok && err != nil {
				t.Errorf("Validate(%+v) = %v, want nil", tt.g, err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidGift) {
				t.Errorf("Validate(%+v) = %v, want ErrInvalidGift", tt.g, err)
			}
		})
	}
}
