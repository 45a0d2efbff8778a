// Package infer implements the carrier inference engine: it turns a
// protocol's abstract labware requirements into sized carriers, slot
// assignments, and stacking order for a target deck.
package infer

import (
	"fmt"
	"log"
	"sort"

	"github.com/msageha/deckplan/internal/catalog"
	"github.com/msageha/deckplan/internal/events"
	"github.com/msageha/deckplan/internal/logging"
	"github.com/msageha/deckplan/internal/model"
)

// Engine computes minimal carrier requirements and greedy slot
// assignments. All computation is synchronous; soft failures
// (unsatisfiable requirement, unplaceable asset) degrade to warnings
// and published events, never errors.
type Engine struct {
	cfg      model.InferenceConfig
	bus      *events.Bus
	logger   *log.Logger
	logLevel logging.Level
}

func NewEngine(cfg model.InferenceConfig, bus *events.Bus, logger *log.Logger, level logging.Level) *Engine {
	return &Engine{
		cfg:      cfg,
		bus:      bus,
		logger:   logger,
		logLevel: level,
	}
}

// resourceGroup aggregates a protocol's assets by inferred type,
// preserving first-seen order.
type resourceGroup struct {
	rt     model.ResourceType
	assets []model.AssetRequirement
}

func groupByResourceType(assets []model.AssetRequirement) []resourceGroup {
	var groups []resourceGroup
	index := make(map[model.ResourceType]int)
	for _, asset := range assets {
		rt := asset.InferredType()
		i, ok := index[rt]
		if !ok {
			i = len(groups)
			index[rt] = i
			groups = append(groups, resourceGroup{rt: rt})
		}
		groups[i].assets = append(groups[i].assets, asset)
	}
	return groups
}

// selectCarrier picks the candidate minimizing wasted slots:
// ceil(count/slots)*slots − count. Ties resolve to catalog order, which
// is the order candidates arrive in.
func selectCarrier(candidates []model.CarrierDefinition, count int) model.CarrierDefinition {
	best := candidates[0]
	bestWaste := carrierWaste(best, count)
	for _, c := range candidates[1:] {
		if w := carrierWaste(c, count); w < bestWaste {
			best = c
			bestWaste = w
		}
	}
	return best
}

func carrierWaste(c model.CarrierDefinition, count int) int {
	needed := (count + c.Slots - 1) / c.Slots
	return needed*c.Slots - count
}

// InferRequiredCarriers groups the protocol's assets by inferred
// resource type and computes one CarrierRequirement per group. Groups
// with no compatible catalog carrier are dropped with a warning; the
// protocol silently becomes incomplete, and surfacing that is the
// caller's job.
func (e *Engine) InferRequiredCarriers(protocol *model.Protocol, deckType string) ([]model.CarrierRequirement, error) {
	var requirements []model.CarrierRequirement
	nextRail := e.cfg.StartingRail

	for _, group := range groupByResourceType(protocol.Assets) {
		count := len(group.assets)
		candidates := catalog.CarriersForResource(deckType, group.rt)
		if len(candidates) == 0 {
			e.log(logging.LevelWarn, "requirement_dropped type=%s count=%d deck=%s reason=no_compatible_carrier",
				group.rt, count, deckType)
			e.publish(events.EventRequirementDropped, map[string]interface{}{
				"resource_type": string(group.rt),
				"count":         count,
				"deck_type":     deckType,
			})
			continue
		}

		chosen := selectCarrier(candidates, count)
		carriersNeeded := (count + chosen.Slots - 1) / chosen.Slots

		id, err := model.GenerateID(model.IDTypeRequirement)
		if err != nil {
			return nil, fmt.Errorf("generate requirement id: %w", err)
		}

		rails := make([]int, 0, carriersNeeded)
		for i := 0; i < carriersNeeded; i++ {
			rails = append(rails, nextRail)
			nextRail += chosen.RailSpan + 1
		}

		requirements = append(requirements, model.CarrierRequirement{
			ID:             id,
			ResourceType:   group.rt,
			Carrier:        chosen,
			Count:          carriersNeeded,
			SlotsNeeded:    count,
			SlotsAvailable: carriersNeeded * chosen.Slots,
			SuggestedRails: rails,
		})
		e.log(logging.LevelDebug, "requirement_inferred type=%s carrier=%s count=%d rails=%v",
			group.rt, chosen.FQN, carriersNeeded, rails)
	}

	return requirements, nil
}

// MaterializeCarriers instantiates DeckCarrier instances for each
// requirement at its suggested rail positions.
func (e *Engine) MaterializeCarriers(requirements []model.CarrierRequirement, deck model.DeckDefinition) ([]model.DeckCarrier, error) {
	var carriers []model.DeckCarrier
	for _, req := range requirements {
		for i := 0; i < req.Count; i++ {
			id, err := model.GenerateID(model.IDTypeCarrier)
			if err != nil {
				return nil, fmt.Errorf("generate carrier id: %w", err)
			}
			rail := req.SuggestedRails[i]
			carriers = append(carriers, catalog.NewCarrier(req.Carrier, id, rail, deck, e.cfg.SlotMarginMM))
		}
	}
	return carriers, nil
}

// AssignResourcesToSlots first-fits each asset, in input order, against
// the flat pool of unoccupied slots across the given carriers. Assets
// with no compatible free slot are skipped with a warning and never
// retried. Bound slots are mutated in place.
func (e *Engine) AssignResourcesToSlots(assets []model.AssetRequirement, carriers []model.DeckCarrier) ([]model.SlotAssignment, error) {
	type poolEntry struct {
		carrierID string
		slot      *model.CarrierSlot
	}
	var pool []poolEntry
	for i := range carriers {
		for j := range carriers[i].Slots {
			if !carriers[i].Slots[j].Occupied {
				pool = append(pool, poolEntry{carrierID: carriers[i].ID, slot: &carriers[i].Slots[j]})
			}
		}
	}

	var assignments []model.SlotAssignment
	for _, asset := range assets {
		rt := asset.InferredType()

		var entry *poolEntry
		for i := range pool {
			if pool[i].slot.Occupied {
				continue
			}
			if slotAccepts(pool[i].slot, rt) {
				entry = &pool[i]
				break
			}
		}
		if entry == nil {
			e.log(logging.LevelWarn, "asset_unplaced name=%q type=%s reason=no_free_compatible_slot", asset.Name, rt)
			e.publish(events.EventAssetUnplaced, map[string]interface{}{
				"asset":         asset.Name,
				"resource_type": string(rt),
			})
			continue
		}

		resource := &model.PlacedResource{
			Name:     asset.Name,
			Type:     rt,
			Position: entry.slot.Position,
		}
		if err := entry.slot.Bind(resource); err != nil {
			return nil, fmt.Errorf("bind %q to slot %s: %w", asset.Name, entry.slot.ID, err)
		}

		id, err := model.GenerateID(model.IDTypeAssignment)
		if err != nil {
			return nil, fmt.Errorf("generate assignment id: %w", err)
		}
		position := resource.Position
		assignments = append(assignments, model.SlotAssignment{
			ID:           id,
			AssetID:      asset.ID,
			ResourceName: asset.Name,
			ResourceType: rt,
			CarrierID:    entry.carrierID,
			SlotID:       entry.slot.ID,
			Position:     &position,
			SlotPosition: entry.slot.Position,
			Order:        len(assignments) + 1,
		})
		e.log(logging.LevelDebug, "asset_assigned name=%q slot=%s", asset.Name, entry.slot.ID)
	}

	return assignments, nil
}

// slotAccepts matches the slot's compatible type names against the
// inferred type by bidirectional substring containment, deliberately
// looser than exact enum equality: slot compatibility sets may carry
// free-text names from user-authored configurations.
func slotAccepts(slot *model.CarrierSlot, rt model.ResourceType) bool {
	for _, ct := range slot.Compatible {
		if model.LooseTypeMatch(string(ct), string(rt)) {
			return true
		}
	}
	return false
}

// SortByZAxis stably sorts assignments ascending by effective vertical
// coordinate and renumbers placement order. Lower items must be placed
// before anything stacked on top of them.
func (e *Engine) SortByZAxis(assignments []model.SlotAssignment) []model.SlotAssignment {
	sorted := make([]model.SlotAssignment, len(assignments))
	copy(sorted, assignments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EffectiveZ() < sorted[j].EffectiveZ()
	})
	for i := range sorted {
		sorted[i].Order = i + 1
	}
	return sorted
}

// DetectStackingOrder emits one hint per slot holding more than one
// assignment, ordered bottom-first by effective Z.
func (e *Engine) DetectStackingOrder(assignments []model.SlotAssignment) []model.StackingHint {
	bySlot := make(map[string][]model.SlotAssignment)
	var slotOrder []string
	for _, a := range assignments {
		if _, seen := bySlot[a.SlotID]; !seen {
			slotOrder = append(slotOrder, a.SlotID)
		}
		bySlot[a.SlotID] = append(bySlot[a.SlotID], a)
	}

	var hints []model.StackingHint
	for _, slotID := range slotOrder {
		group := bySlot[slotID]
		if len(group) < 2 {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].EffectiveZ() < group[j].EffectiveZ()
		})
		names := make([]string, 0, len(group))
		for _, a := range group {
			names = append(names, a.ResourceName)
		}
		hints = append(hints, model.StackingHint{
			SlotID: slotID,
			Order:  names,
			Reason: fmt.Sprintf("%d items share slot %s; place %q first, then stack upward", len(group), slotID, names[0]),
		})
	}
	return hints
}

// CreateDeckSetup runs the full pipeline: infer requirements,
// materialize carriers at the suggested rails, assign slots, detect
// stacking, and Z-sort the assignments. The result is never complete;
// confirmation is always a separate, explicit wizard step.
func (e *Engine) CreateDeckSetup(protocol *model.Protocol, deckType string) (*model.DeckSetup, error) {
	requirements, err := e.InferRequiredCarriers(protocol, deckType)
	if err != nil {
		return nil, err
	}

	var carriers []model.DeckCarrier
	if deck, ok := catalog.DeckDefinition(deckType); ok {
		carriers, err = e.MaterializeCarriers(requirements, deck)
		if err != nil {
			return nil, err
		}
	} else {
		e.log(logging.LevelWarn, "unknown_deck type=%q", deckType)
	}

	assignments, err := e.AssignResourcesToSlots(protocol.Assets, carriers)
	if err != nil {
		return nil, err
	}
	stacking := e.DetectStackingOrder(assignments)
	assignments = e.SortByZAxis(assignments)

	setup := &model.DeckSetup{
		ProtocolID:   protocol.ID,
		DeckType:     deckType,
		Requirements: requirements,
		Carriers:     carriers,
		Assignments:  assignments,
		Stacking:     stacking,
		Complete:     false,
	}
	e.publish(events.EventSetupCreated, map[string]interface{}{
		"protocol_id":  protocol.ID,
		"deck_type":    deckType,
		"requirements": len(requirements),
		"assignments":  len(assignments),
	})
	e.log(logging.LevelInfo, "setup_created protocol=%s deck=%s requirements=%d carriers=%d assignments=%d",
		protocol.ID, deckType, len(requirements), len(carriers), len(assignments))
	return setup, nil
}

func (e *Engine) publish(eventType events.EventType, data map[string]interface{}) {
	if e.bus != nil {
		e.bus.Publish(eventType, data)
	}
}

func (e *Engine) log(level logging.Level, format string, args ...any) {
	if level < e.logLevel {
		return
	}
	e.logger.Printf("[%s] infer: %s", level, fmt.Sprintf(format, args...))
}
