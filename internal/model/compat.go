package model

import "strings"

// carrierCompat maps each carrier type to the resource types its slots
// accept. This table is the single source of truth for carrier/resource
// compatibility; free-text matching happens only in InferResourceType.
var carrierCompat = map[CarrierType][]ResourceType{
	CarrierTypePlate:  {ResourcePlate},
	CarrierTypeTip:    {ResourceTipRack},
	CarrierTypeTrough: {ResourceTrough},
	CarrierTypeTube:   {ResourceTube},
	CarrierTypeMulti:  {ResourcePlate, ResourceTipRack, ResourceTrough},
}

// CompatibleResourceTypes returns the resource types a carrier type accepts.
func CompatibleResourceTypes(ct CarrierType) []ResourceType {
	types := carrierCompat[ct]
	out := make([]ResourceType, len(types))
	copy(out, types)
	return out
}

// CarrierAccepts reports whether a carrier type accepts a resource type.
func CarrierAccepts(ct CarrierType, rt ResourceType) bool {
	for _, t := range carrierCompat[ct] {
		if t == rt {
			return true
		}
	}
	return false
}

// typeKeywords is scanned in order; the first matching keyword wins.
// "reservoir" is an alias protocols commonly use for troughs.
var typeKeywords = []struct {
	keyword string
	rt      ResourceType
}{
	{"plate", ResourcePlate},
	{"tip", ResourceTipRack},
	{"trough", ResourceTrough},
	{"reservoir", ResourceTrough},
	{"tube", ResourceTube},
}

// InferResourceType parses a free-text type hint into a ResourceType,
// falling back to the requirement's human name, and defaulting to Plate
// when neither matches. The keyword scan is first-match-wins and
// order-dependent; ambiguous names (e.g. "tube plate adapter") resolve
// to whichever keyword appears first in the scan order, not in the
// text. Known limitation, kept deliberately.
func InferResourceType(hint, name string) ResourceType {
	if rt, ok := scanKeywords(hint); ok {
		return rt
	}
	if rt, ok := scanKeywords(name); ok {
		return rt
	}
	return ResourcePlate
}

// ParseResourceType resolves a free-text type name to a ResourceType
// without applying the Plate default; ok is false when no keyword
// matches.
func ParseResourceType(s string) (ResourceType, bool) {
	return scanKeywords(s)
}

func scanKeywords(s string) (ResourceType, bool) {
	lower := strings.ToLower(s)
	for _, k := range typeKeywords {
		if strings.Contains(lower, k.keyword) {
			return k.rt, true
		}
	}
	return "", false
}

// LooseTypeMatch reports whether two type names match by bidirectional
// case-insensitive substring containment. Used where free-text FQNs
// meet inferred types (slot assignment, consumable filtering).
func LooseTypeMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	la, lb := strings.ToLower(a), strings.ToLower(b)
	return strings.Contains(la, lb) || strings.Contains(lb, la)
}
