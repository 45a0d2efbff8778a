package catalog

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msageha/deckplan/internal/model"
)

func TestNewDeckConfiguration(t *testing.T) {
	def, ok := DeckDefinition("Hamilton STAR")
	require.True(t, ok)

	cfg := NewDeckConfiguration(def, "pcr setup", "starlet-01")
	assert.NotEmpty(t, cfg.ID)
	assert.Equal(t, "pcr setup", cfg.Name)
	assert.Equal(t, "starlet-01", cfg.MachineID)
	assert.Equal(t, FamilyRail, cfg.DeckFamily)
	assert.NotEmpty(t, cfg.CreatedAt)
	assert.Equal(t, cfg.CreatedAt, cfg.UpdatedAt)
	assert.Empty(t, cfg.Carriers)
}

func TestNewCarrier_SlotGeometry(t *testing.T) {
	deck, ok := DeckDefinition("Hamilton STAR")
	require.True(t, ok)
	def, ok := CarrierByFQN("PLT_CAR_L5AC_A00")
	require.True(t, ok)

	const margin = 2.0
	carrier := NewCarrier(def, "car_1771722000_a3f2b7c1", 4, deck, margin)

	require.Len(t, carrier.Slots, def.Slots)
	assert.Equal(t, 4, carrier.Rail)

	pitch := def.Dimensions.Depth / float64(def.Slots)
	for i, slot := range carrier.Slots {
		assert.Equal(t, fmt.Sprintf("car_1771722000_a3f2b7c1_slot_%d", i), slot.ID)
		assert.Equal(t, i, slot.Index)
		assert.False(t, slot.Occupied)
		assert.Nil(t, slot.Resource)
		// Evenly divided usable depth, inset by the margin.
		assert.InDelta(t, float64(i)*pitch+margin, slot.Position.Y, 1e-9)
		assert.InDelta(t, pitch-2*margin, slot.Dimensions.Depth, 1e-9)
		// All slots sit at the carrier's rail x position.
		assert.InDelta(t, deck.RailX(4), slot.Position.X, 1e-9)
		assert.Equal(t, def.Compatible, slot.Compatible)
	}
}

func TestNewCarrier_SlotCompatibleIsCopy(t *testing.T) {
	deck, _ := DeckDefinition("Hamilton STAR")
	def, _ := CarrierByFQN("PLT_CAR_L5AC_A00")

	carrier := NewCarrier(def, "car_1771722000_a3f2b7c1", 1, deck, 2.0)
	carrier.Slots[0].Compatible[0] = model.ResourceTube

	again := NewCarrier(def, "car_1771722000_b3f2b7c2", 1, deck, 2.0)
	assert.Equal(t, model.ResourcePlate, again.Slots[0].Compatible[0])
}
