package catalog

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/msageha/deckplan/internal/model"
)

// NewDeckConfiguration produces a mutable, operator-editable deck
// configuration from an immutable deck definition.
func NewDeckConfiguration(def model.DeckDefinition, name, machineID string) *model.DeckConfiguration {
	now := time.Now().UTC().Format(time.RFC3339)
	return &model.DeckConfiguration{
		ID:         uuid.NewString(),
		Name:       name,
		MachineID:  machineID,
		DeckFamily: def.Family,
		Carriers:   []model.DeckCarrier{},
		CreatedAt:  now,
		UpdatedAt:  now,
		Definition: def,
	}
}

// NewCarrier materializes a carrier instance at the given rail. Slot
// geometry divides the carrier's usable depth evenly by slot count,
// inset by a fixed margin on each side.
func NewCarrier(def model.CarrierDefinition, id string, rail int, deck model.DeckDefinition, slotMargin float64) model.DeckCarrier {
	carrier := model.DeckCarrier{
		ID:         id,
		Definition: def,
		Rail:       rail,
		Slots:      make([]model.CarrierSlot, 0, def.Slots),
		Dimensions: def.Dimensions,
	}

	pitch := def.Dimensions.Depth / float64(def.Slots)
	baseX := deck.RailX(rail)
	for i := 0; i < def.Slots; i++ {
		compatible := make([]model.ResourceType, len(def.Compatible))
		copy(compatible, def.Compatible)
		carrier.Slots = append(carrier.Slots, model.CarrierSlot{
			ID:       fmt.Sprintf("%s_slot_%d", id, i),
			Index:    i,
			Position: model.Coordinate{X: baseX, Y: float64(i)*pitch + slotMargin, Z: def.Dimensions.Height},
			Dimensions: model.Dimensions{
				Width:  def.Dimensions.Width - 2*slotMargin,
				Depth:  pitch - 2*slotMargin,
				Height: 0,
			},
			Compatible: compatible,
		})
	}
	return carrier
}
