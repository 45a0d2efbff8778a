package model

import "fmt"

// ResourceType is the closed set of labware categories the planner
// reasons about.
type ResourceType string

const (
	ResourcePlate   ResourceType = "Plate"
	ResourceTipRack ResourceType = "TipRack"
	ResourceTrough  ResourceType = "Trough"
	ResourceTube    ResourceType = "Tube"
)

// CarrierType tags a catalog carrier by the slot hardware it provides.
type CarrierType string

const (
	CarrierTypePlate  CarrierType = "plate"
	CarrierTypeTip    CarrierType = "tip"
	CarrierTypeTrough CarrierType = "trough"
	CarrierTypeTube   CarrierType = "tube"
	CarrierTypeMulti  CarrierType = "multi"
)

// ItemStatus is the lifecycle status of an inventory item.
type ItemStatus string

const (
	ItemStatusAvailable ItemStatus = "available"
	ItemStatusReserved  ItemStatus = "reserved"
	ItemStatusInUse     ItemStatus = "in_use"
	ItemStatusExpired   ItemStatus = "expired"
	ItemStatusDepleted  ItemStatus = "depleted"
)

// Assignable reports whether an inventory item in this status may be
// bound to a requirement.
func (s ItemStatus) Assignable() bool {
	switch s {
	case ItemStatusReserved, ItemStatusInUse, ItemStatusExpired, ItemStatusDepleted:
		return false
	default:
		return true
	}
}

// WizardStep is one of the three sequential confirmation phases.
type WizardStep string

const (
	StepCarrierPlacement  WizardStep = "carrier-placement"
	StepResourcePlacement WizardStep = "resource-placement"
	StepVerification      WizardStep = "verification"
)

var wizardStepOrder = []WizardStep{
	StepCarrierPlacement,
	StepResourcePlacement,
	StepVerification,
}

// Steps navigate linearly; there are no jumps.
var validStepTransitions = map[WizardStep]map[WizardStep]bool{
	StepCarrierPlacement: {
		StepResourcePlacement: true,
	},
	StepResourcePlacement: {
		StepCarrierPlacement: true,
		StepVerification:     true,
	},
	StepVerification: {
		StepResourcePlacement: true,
	},
}

// NextStep returns the step after s and false if s is the last step.
func NextStep(s WizardStep) (WizardStep, bool) {
	for i, step := range wizardStepOrder {
		if step == s && i+1 < len(wizardStepOrder) {
			return wizardStepOrder[i+1], true
		}
	}
	return s, false
}

// PreviousStep returns the step before s and false if s is the first step.
func PreviousStep(s WizardStep) (WizardStep, bool) {
	for i, step := range wizardStepOrder {
		if step == s && i > 0 {
			return wizardStepOrder[i-1], true
		}
	}
	return s, false
}

func ValidateStepTransition(from, to WizardStep) error {
	allowed, ok := validStepTransitions[from]
	if !ok {
		return fmt.Errorf("unknown wizard step %q", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid wizard step transition: %q → %q", from, to)
	}
	return nil
}
