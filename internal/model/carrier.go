package model

import "fmt"

type Coordinate struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
	Z float64 `yaml:"z" json:"z"`
}

type Dimensions struct {
	Width  float64 `yaml:"width" json:"width"`
	Depth  float64 `yaml:"depth" json:"depth"`
	Height float64 `yaml:"height" json:"height"`
}

// CarrierDefinition is an immutable catalog entry describing one
// carrier product.
type CarrierDefinition struct {
	FQN        string         `yaml:"fqn" json:"fqn"`
	Type       CarrierType    `yaml:"type" json:"type"`
	RailSpan   int            `yaml:"rail_span" json:"rail_span"`
	Slots      int            `yaml:"slots" json:"slots"`
	Compatible []ResourceType `yaml:"compatible" json:"compatible"`
	Dimensions Dimensions     `yaml:"dimensions" json:"dimensions"`
}

// Accepts reports whether the carrier's slots take the given resource type.
func (d CarrierDefinition) Accepts(rt ResourceType) bool {
	for _, t := range d.Compatible {
		if t == rt {
			return true
		}
	}
	return false
}

// PlacedResource is a synthesized placeholder for a labware item bound
// to a slot. It exists for coordinates and naming only; concrete
// inventory binding lives on the SlotAssignment.
type PlacedResource struct {
	Name     string       `yaml:"name" json:"name"`
	Type     ResourceType `yaml:"type" json:"type"`
	Position Coordinate   `yaml:"position" json:"position"`
}

// CarrierSlot is one discrete position on a materialized carrier.
// Invariant: Occupied is true iff Resource is non-nil; mutate only
// through Bind and Release.
type CarrierSlot struct {
	ID         string          `yaml:"id" json:"id"`
	Index      int             `yaml:"index" json:"index"`
	Occupied   bool            `yaml:"occupied" json:"occupied"`
	Resource   *PlacedResource `yaml:"resource,omitempty" json:"resource,omitempty"`
	Position   Coordinate      `yaml:"position" json:"position"`
	Dimensions Dimensions      `yaml:"dimensions" json:"dimensions"`
	Compatible []ResourceType  `yaml:"compatible" json:"compatible"`
}

// Accepts reports whether the slot takes the given resource type.
func (s *CarrierSlot) Accepts(rt ResourceType) bool {
	for _, t := range s.Compatible {
		if t == rt {
			return true
		}
	}
	return false
}

// Bind occupies the slot with a resource.
func (s *CarrierSlot) Bind(r *PlacedResource) error {
	if s.Occupied {
		return fmt.Errorf("slot %s already occupied by %s", s.ID, s.Resource.Name)
	}
	if r == nil {
		return fmt.Errorf("slot %s: cannot bind nil resource", s.ID)
	}
	s.Resource = r
	s.Occupied = true
	return nil
}

// Release frees the slot.
func (s *CarrierSlot) Release() {
	s.Resource = nil
	s.Occupied = false
}

// DeckCarrier is a mutable carrier instance materialized on a deck.
type DeckCarrier struct {
	ID         string            `yaml:"id" json:"id"`
	Definition CarrierDefinition `yaml:"definition" json:"definition"`
	Rail       int               `yaml:"rail" json:"rail"`
	Slots      []CarrierSlot     `yaml:"slots" json:"slots"`
	Dimensions Dimensions        `yaml:"dimensions" json:"dimensions"`
}

// CarrierRequirement is the aggregated carrier need for one inferred
// resource type. Invariant: SlotsAvailable >= SlotsNeeded.
type CarrierRequirement struct {
	ID             string            `yaml:"id" json:"id"`
	ResourceType   ResourceType      `yaml:"resource_type" json:"resource_type"`
	Carrier        CarrierDefinition `yaml:"carrier" json:"carrier"`
	Count          int               `yaml:"count" json:"count"`
	SlotsNeeded    int               `yaml:"slots_needed" json:"slots_needed"`
	SlotsAvailable int               `yaml:"slots_available" json:"slots_available"`
	SuggestedRails []int             `yaml:"suggested_rails" json:"suggested_rails"`
	Placed         bool              `yaml:"placed" json:"placed"`
}

// SlotAssignment binds one placeholder resource to one slot on one
// carrier. InventoryID is empty until the consumable matcher (or the
// operator) resolves a concrete item.
type SlotAssignment struct {
	ID           string       `yaml:"id" json:"id"`
	AssetID      string       `yaml:"asset_id" json:"asset_id"`
	ResourceName string       `yaml:"resource_name" json:"resource_name"`
	ResourceType ResourceType `yaml:"resource_type" json:"resource_type"`
	CarrierID    string       `yaml:"carrier_id" json:"carrier_id"`
	SlotID       string       `yaml:"slot_id" json:"slot_id"`
	// Position is the synthesized resource coordinate; nil when the
	// placeholder has no coordinate of its own.
	Position     *Coordinate `yaml:"position,omitempty" json:"position,omitempty"`
	SlotPosition Coordinate  `yaml:"slot_position" json:"slot_position"`
	Order        int         `yaml:"order" json:"order"`
	Placed       bool        `yaml:"placed" json:"placed"`
	InventoryID  string      `yaml:"inventory_id,omitempty" json:"inventory_id,omitempty"`
}

// EffectiveZ is the vertical coordinate used for placement ordering:
// the resource coordinate when set, the slot's otherwise.
func (a SlotAssignment) EffectiveZ() float64 {
	if a.Position != nil {
		return a.Position.Z
	}
	return a.SlotPosition.Z
}

// StackingHint records the bottom-first placement order for a slot
// holding more than one assignment.
type StackingHint struct {
	SlotID string   `yaml:"slot_id" json:"slot_id"`
	Order  []string `yaml:"order" json:"order"`
	Reason string   `yaml:"reason" json:"reason"`
}

// DeckSetup is the composite output of the carrier inference pipeline.
// Complete stays false until the operator confirms placement through
// the wizard.
type DeckSetup struct {
	ProtocolID   string               `yaml:"protocol_id" json:"protocol_id"`
	DeckType     string               `yaml:"deck_type" json:"deck_type"`
	Requirements []CarrierRequirement `yaml:"requirements" json:"requirements"`
	Carriers     []DeckCarrier        `yaml:"carriers" json:"carriers"`
	Assignments  []SlotAssignment     `yaml:"assignments" json:"assignments"`
	Stacking     []StackingHint       `yaml:"stacking" json:"stacking"`
	Complete     bool                 `yaml:"complete" json:"complete"`
}
