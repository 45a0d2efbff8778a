// Package catalog holds the static deck and carrier specifications and
// the factories that materialize mutable instances from them. Lookups
// are pure and deterministic; the only I/O lives in the user
// configuration store.
package catalog

import (
	"strings"

	"github.com/msageha/deckplan/internal/model"
)

const (
	// FamilyRail is the rail-based deck family: 30 rails at a fixed
	// 22.5 mm pitch starting 100 mm from the deck origin.
	FamilyRail = "HamiltonSTARDeck"
	// FamilySlot is the slot-based deck family: a 4×3 grid of 12 slots
	// with slot 12 reserved for trash.
	FamilySlot = "OTDeck"
)

var railDeck = model.DeckDefinition{
	Family:      FamilyRail,
	Layout:      model.LayoutRail,
	Dimensions:  model.Dimensions{Width: 1360, Depth: 653.5, Height: 900},
	Rails:       30,
	RailPitch:   22.5,
	RailOffsetX: 100,
}

var slotDeck = model.DeckDefinition{
	Family:     FamilySlot,
	Layout:     model.LayoutSlot,
	Dimensions: model.Dimensions{Width: 624, Depth: 565, Height: 500},
	SlotRows:   4,
	SlotCols:   3,
	TrashSlot:  12,
}

// carriers is the static carrier catalog for rail-based decks.
// Declaration order doubles as the waste tie-break order during
// carrier inference.
var carriers = []model.CarrierDefinition{
	{
		FQN:        "PLT_CAR_L5AC_A00",
		Type:       model.CarrierTypePlate,
		RailSpan:   6,
		Slots:      5,
		Compatible: model.CompatibleResourceTypes(model.CarrierTypePlate),
		Dimensions: model.Dimensions{Width: 135, Depth: 497, Height: 130},
	},
	{
		FQN:        "TIP_CAR_480_A00",
		Type:       model.CarrierTypeTip,
		RailSpan:   6,
		Slots:      5,
		Compatible: model.CompatibleResourceTypes(model.CarrierTypeTip),
		Dimensions: model.Dimensions{Width: 135, Depth: 497, Height: 130},
	},
	{
		FQN:        "RGT_CAR_3R_A01",
		Type:       model.CarrierTypeTrough,
		RailSpan:   6,
		Slots:      3,
		Compatible: model.CompatibleResourceTypes(model.CarrierTypeTrough),
		Dimensions: model.Dimensions{Width: 135, Depth: 497, Height: 95},
	},
	{
		FQN:        "SMP_CAR_24_15_A00",
		Type:       model.CarrierTypeTube,
		RailSpan:   1,
		Slots:      24,
		Compatible: model.CompatibleResourceTypes(model.CarrierTypeTube),
		Dimensions: model.Dimensions{Width: 22.5, Depth: 497, Height: 140},
	},
	{
		FQN:        "MFX_CAR_L5_BASE_A00",
		Type:       model.CarrierTypeMulti,
		RailSpan:   6,
		Slots:      5,
		Compatible: model.CompatibleResourceTypes(model.CarrierTypeMulti),
		Dimensions: model.Dimensions{Width: 135, Depth: 497, Height: 130},
	},
}

// DeckDefinition matches a deck identifier against the known families.
// The match is a coarse keyword scan: identifiers arrive as free-form
// machine-derived strings ("Hamilton STARlet", "my-ot2-sim"). An
// unrecognized identifier is a valid outcome, not an error; callers
// must check ok.
func DeckDefinition(identifier string) (model.DeckDefinition, bool) {
	lower := strings.ToLower(identifier)
	switch {
	case strings.Contains(lower, "star"):
		return railDeck, true
	case strings.Contains(lower, "ot"):
		return slotDeck, true
	default:
		return model.DeckDefinition{}, false
	}
}

// CompatibleCarriers returns the carrier catalog subset valid for the
// given deck. Slot-based decks place resources directly into deck
// slots, so they get an empty set, as do unrecognized decks.
func CompatibleCarriers(deckIdentifier string) []model.CarrierDefinition {
	def, ok := DeckDefinition(deckIdentifier)
	if !ok || def.Layout != model.LayoutRail {
		return nil
	}
	out := make([]model.CarrierDefinition, len(carriers))
	copy(out, carriers)
	return out
}

// CarriersForResource returns catalog carriers whose slots accept the
// given resource type, in catalog order.
func CarriersForResource(deckIdentifier string, rt model.ResourceType) []model.CarrierDefinition {
	var out []model.CarrierDefinition
	for _, c := range CompatibleCarriers(deckIdentifier) {
		if c.Accepts(rt) {
			out = append(out, c)
		}
	}
	return out
}

// CarrierByFQN looks up one catalog entry by its fully-qualified name.
func CarrierByFQN(fqn string) (model.CarrierDefinition, bool) {
	for _, c := range carriers {
		if c.FQN == fqn {
			return c, true
		}
	}
	return model.CarrierDefinition{}, false
}
