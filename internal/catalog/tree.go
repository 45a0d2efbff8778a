package catalog

import (
	"fmt"

	"github.com/msageha/deckplan/internal/model"
)

// ResourceNode is one node of the synthesized coordinate tree consumed
// by the deck visualizer. The tree is a one-way projection: placement
// decisions never read it.
type ResourceNode struct {
	Name       string           `yaml:"name" json:"name"`
	Category   string           `yaml:"category" json:"category"`
	Position   model.Coordinate `yaml:"position" json:"position"`
	Dimensions model.Dimensions `yaml:"dimensions" json:"dimensions"`
	Children   []ResourceNode   `yaml:"children,omitempty" json:"children,omitempty"`
}

// BuildResourceTree synthesizes the deck → carrier → slot → resource
// tree for a saved deck configuration.
func BuildResourceTree(cfg *model.DeckConfiguration) ResourceNode {
	root := ResourceNode{
		Name:       cfg.Name,
		Category:   "deck",
		Dimensions: cfg.Definition.Dimensions,
	}
	for i := range cfg.Carriers {
		root.Children = append(root.Children, carrierNode(&cfg.Carriers[i], cfg.Definition))
	}
	return root
}

// BuildResourceTreeFromSetup synthesizes the tree for a freshly
// inferred deck setup before the operator has confirmed anything.
func BuildResourceTreeFromSetup(setup *model.DeckSetup, def model.DeckDefinition) ResourceNode {
	root := ResourceNode{
		Name:       fmt.Sprintf("%s (%s)", def.Family, setup.ProtocolID),
		Category:   "deck",
		Dimensions: def.Dimensions,
	}
	for i := range setup.Carriers {
		root.Children = append(root.Children, carrierNode(&setup.Carriers[i], def))
	}
	return root
}

func carrierNode(carrier *model.DeckCarrier, deck model.DeckDefinition) ResourceNode {
	node := ResourceNode{
		Name:     carrier.ID,
		Category: "carrier",
		Position: model.Coordinate{
			X: deck.RailX(carrier.Rail),
		},
		Dimensions: carrier.Dimensions,
	}
	for _, slot := range carrier.Slots {
		slotNode := ResourceNode{
			Name:       slot.ID,
			Category:   "slot",
			Position:   slot.Position,
			Dimensions: slot.Dimensions,
		}
		if slot.Resource != nil {
			slotNode.Children = append(slotNode.Children, ResourceNode{
				Name:     slot.Resource.Name,
				Category: string(slot.Resource.Type),
				Position: slot.Resource.Position,
			})
		}
		node.Children = append(node.Children, slotNode)
	}
	return node
}
