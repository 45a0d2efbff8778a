package model

// WizardStateSchemaVersion guards persisted snapshots. The on-disk
// format has no migration path: any mismatch degrades to "no saved
// state" on load.
const WizardStateSchemaVersion = 1

// WizardState is the complete, persistable snapshot of one guided
// deck-setup session. Mutated only by whole-object replacement inside
// wizard.Service.
type WizardState struct {
	SchemaVersion int                  `json:"schema_version"`
	SessionID     string               `json:"session_id"`
	Step          WizardStep           `json:"step"`
	ProtocolID    string               `json:"protocol_id"`
	Protocol      *Protocol            `json:"protocol,omitempty"`
	DeckType      string               `json:"deck_type"`
	Requirements  []CarrierRequirement `json:"requirements"`
	Assignments   []SlotAssignment     `json:"assignments"`
	Stacking      []StackingHint       `json:"stacking"`
	Cursor        int                  `json:"cursor"`
	Complete      bool                 `json:"complete"`
	Skipped       bool                 `json:"skipped"`
	SavedAt       string               `json:"saved_at,omitempty"`
}

// AssetBinding is one entry of the resolved asset map handed to
// execution start.
type AssetBinding struct {
	Name        string `json:"name"`
	InventoryID string `json:"inventory_id,omitempty"`
}
