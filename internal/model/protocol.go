package model

// Protocol is the read-only input produced by the protocol definition
// loader (out of scope). Asset order is significant: slot assignment
// processes assets in input order.
type Protocol struct {
	ID     string             `yaml:"id" json:"id"`
	Name   string             `yaml:"name" json:"name"`
	Assets []AssetRequirement `yaml:"assets" json:"assets"`
}

// AssetRequirement is one abstract labware need declared by a protocol.
type AssetRequirement struct {
	ID          string      `yaml:"id" json:"id"`
	Name        string      `yaml:"name" json:"name"`
	TypeHint    string      `yaml:"type_hint" json:"type_hint"`
	FQN         string      `yaml:"fqn" json:"fqn"`
	Constraints Constraints `yaml:"constraints" json:"constraints"`
}

type Constraints struct {
	MinVolumeUL float64 `yaml:"min_volume_ul,omitempty" json:"min_volume_ul,omitempty"`
}

// InferredType resolves the requirement's resource type from its hint,
// then its name, defaulting to Plate.
func (a AssetRequirement) InferredType() ResourceType {
	return InferResourceType(a.TypeHint, a.Name)
}

// InventoryItem is one entry of the live inventory snapshot provided by
// the (out-of-scope) asset service.
type InventoryItem struct {
	AccessionID string     `yaml:"accession_id" json:"accession_id"`
	Name        string     `yaml:"name" json:"name"`
	FQN         string     `yaml:"fqn" json:"fqn"`
	Status      ItemStatus `yaml:"status" json:"status"`
	// CapacityUL is nil when the item's capacity is unknown.
	CapacityUL *float64 `yaml:"capacity_ul,omitempty" json:"capacity_ul,omitempty"`
}
