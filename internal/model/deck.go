package model

// DeckLayout distinguishes how a deck mounts labware.
type DeckLayout string

const (
	// LayoutRail decks mount carriers on discrete numbered rails.
	LayoutRail DeckLayout = "rail"
	// LayoutSlot decks place resources directly into a fixed slot grid.
	LayoutSlot DeckLayout = "slot"
)

// DeckDefinition is an immutable description of a known deck family.
type DeckDefinition struct {
	Family     string     `yaml:"family" json:"family"`
	Layout     DeckLayout `yaml:"layout" json:"layout"`
	Dimensions Dimensions `yaml:"dimensions" json:"dimensions"`

	// Rail layout fields.
	Rails       int     `yaml:"rails,omitempty" json:"rails,omitempty"`
	RailPitch   float64 `yaml:"rail_pitch,omitempty" json:"rail_pitch,omitempty"`
	RailOffsetX float64 `yaml:"rail_offset_x,omitempty" json:"rail_offset_x,omitempty"`

	// Slot layout fields.
	SlotRows  int `yaml:"slot_rows,omitempty" json:"slot_rows,omitempty"`
	SlotCols  int `yaml:"slot_cols,omitempty" json:"slot_cols,omitempty"`
	TrashSlot int `yaml:"trash_slot,omitempty" json:"trash_slot,omitempty"`
}

// SlotCount returns the number of usable deck slots for slot-based
// decks (the trash slot is reserved), 0 for rail decks.
func (d DeckDefinition) SlotCount() int {
	if d.Layout != LayoutSlot {
		return 0
	}
	n := d.SlotRows * d.SlotCols
	if d.TrashSlot > 0 {
		n--
	}
	return n
}

// RailX returns the x coordinate of a 1-based rail index.
func (d DeckDefinition) RailX(rail int) float64 {
	return d.RailOffsetX + float64(rail-1)*d.RailPitch
}

// DeckConfiguration is a mutable, operator-authored deck layout built
// from an immutable definition.
type DeckConfiguration struct {
	ID         string         `yaml:"id" json:"id"`
	Name       string         `yaml:"name" json:"name"`
	MachineID  string         `yaml:"machine_id" json:"machine_id"`
	DeckFamily string         `yaml:"deck_family" json:"deck_family"`
	Carriers   []DeckCarrier  `yaml:"carriers" json:"carriers"`
	CreatedAt  string         `yaml:"created_at" json:"created_at"`
	UpdatedAt  string         `yaml:"updated_at" json:"updated_at"`
	Definition DeckDefinition `yaml:"definition" json:"definition"`
}
