// Package gift defines the virtual gift catalog: the read-only reference
// list of purchasable gifts with their coin costs and display metadata.
// The catalog is static configuration data; nothing in it changes at
// runtime.
package gift

import "errors"

// ErrInvalidGift is returned when a gift entry is malformed (empty ID or
// name, or a cost below 1 coin). Malformed entries fail fast rather than
// silently minting free or negative-cost gifts.
var ErrInvalidGift = errors.New("gift: invalid gift")

// ErrUnknownGift is returned by Lookup for IDs not in the catalog.
var ErrUnknownGift = errors.New("gift: unknown gift id")

// Gift is a single catalog entry. Cost is in coins and is always >= 1 for
// valid entries.
type Gift struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
	Cost int64  `json:"cost"`
}

// catalog is the built-in gift list, cheapest first.
var catalog = []Gift{
	{ID: "rose", Name: "Rose", Icon: "🌹", Cost: 5},
	{ID: "heart", Name: "Heart", Icon: "❤️", Cost: 10},
	{ID: "clap", Name: "Applause", Icon: "👏", Cost: 20},
	{ID: "fire", Name: "Fire", Icon: "🔥", Cost: 50},
	{ID: "star", Name: "Star", Icon: "⭐", Cost: 100},
	{ID: "diamond", Name: "Diamond", Icon: "💎", Cost: 500},
	{ID: "crown", Name: "Crown", Icon: "👑", Cost: 1000},
	{ID: "rocket", Name: "Rocket", Icon: "🚀", Cost: 2000},
	{ID: "castle", Name: "Castle", Icon: "🏰", Cost: 5000},
}

// Catalog returns a copy of the full gift list so callers cannot mutate the
// reference data.
func Catalog() []Gift {
	out := make([]Gift, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the catalog entry for id, or ErrUnknownGift.
func Lookup(id string) (Gift, error) {
	for _, g := range catalog {
		if g.ID == id {
			return g, nil
		}
	}
	return Gift{}, ErrUnknownGift
}

// Validate checks that a gift entry is well-formed. External callers that
// supply their own catalog (rather than the built-in one) must validate
// entries before handing them to the wallet.
func Validate(g Gift) error {
	if g.ID == "" || g.Name == "" || g.Cost < 1 {
		return ErrInvalidGift
	}
	return nil
}
