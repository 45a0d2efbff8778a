// Package wizard drives the guided three-step deck-setup confirmation
// workflow: carrier placement, resource placement, verification. The
// service owns one session state and persists it so an interrupted
// session can resume.
package wizard

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/msageha/deckplan/internal/events"
	"github.com/msageha/deckplan/internal/infer"
	"github.com/msageha/deckplan/internal/logging"
	"github.com/msageha/deckplan/internal/match"
	"github.com/msageha/deckplan/internal/model"
	"github.com/msageha/deckplan/internal/store"
)

// stateKey is the fixed persistence key for the session snapshot.
// Exactly one active session exists per workspace.
const stateKey = "wizard_state"

// ConsumableMatcher resolves concrete inventory items for asset
// requirements. Satisfied by *match.Matcher.
type ConsumableMatcher interface {
	FindCompatibleConsumable(ctx context.Context, req model.AssetRequirement) (match.Match, bool)
}

// Service is the wizard state machine. All mutators replace the session
// state as a whole under one mutex; readers get deep copies. A Service
// is driven by one operator session, the mutex only guards against
// overlapping CLI/UI calls.
type Service struct {
	mu       sync.Mutex
	state    model.WizardState
	engine   *infer.Engine
	matcher  ConsumableMatcher
	kv       store.KV
	bus      *events.Bus
	logger   *log.Logger
	logLevel logging.Level
}

func NewService(engine *infer.Engine, matcher ConsumableMatcher, kv store.KV, bus *events.Bus, logger *log.Logger, level logging.Level) *Service {
	return &Service{
		engine:   engine,
		matcher:  matcher,
		kv:       kv,
		bus:      bus,
		logger:   logger,
		logLevel: level,
	}
}

// Initialize resets the session and seeds it from a fresh inference run.
// The session always starts at carrier placement, whatever step a
// previous session ended on.
func (s *Service) Initialize(protocol *model.Protocol, deckType string) error {
	if protocol == nil {
		return fmt.Errorf("initialize: protocol is nil")
	}

	setup, err := s.engine.CreateDeckSetup(protocol, deckType)
	if err != nil {
		return fmt.Errorf("initialize session: %w", err)
	}

	sessionID, err := model.GenerateID(model.IDTypeSession)
	if err != nil {
		return fmt.Errorf("initialize session: %w", err)
	}

	s.mu.Lock()
	s.state = model.WizardState{
		SchemaVersion: model.WizardStateSchemaVersion,
		SessionID:     sessionID,
		Step:          model.StepCarrierPlacement,
		ProtocolID:    protocol.ID,
		Protocol:      protocol,
		DeckType:      deckType,
		Requirements:  setup.Requirements,
		Assignments:   setup.Assignments,
		Stacking:      setup.Stacking,
	}
	s.mu.Unlock()

	s.log(logging.LevelInfo, "session_initialized id=%s protocol=%s deck=%s", sessionID, protocol.ID, deckType)
	s.publish(events.EventStepChanged, map[string]interface{}{
		"session_id": sessionID,
		"step":       string(model.StepCarrierPlacement),
	})
	return nil
}

// NextStep advances the session one step. Calling it at verification
// marks the session complete without changing the step value.
func (s *Service) NextStep() model.WizardStep {
	s.mu.Lock()
	if s.state.Step == model.StepVerification {
		s.state.Complete = true
		step := s.state.Step
		id := s.state.SessionID
		s.mu.Unlock()

		s.log(logging.LevelInfo, "session_complete id=%s", id)
		s.publish(events.EventSessionComplete, map[string]interface{}{"session_id": id})
		return step
	}

	next, _ := model.NextStep(s.state.Step)
	s.state.Step = next
	id := s.state.SessionID
	s.mu.Unlock()

	s.publish(events.EventStepChanged, map[string]interface{}{
		"session_id": id,
		"step":       string(next),
	})
	return next
}

// PreviousStep moves the session one step back. A no-op at carrier
// placement.
func (s *Service) PreviousStep() model.WizardStep {
	s.mu.Lock()
	prev, ok := model.PreviousStep(s.state.Step)
	if !ok {
		step := s.state.Step
		s.mu.Unlock()
		return step
	}
	s.state.Step = prev
	id := s.state.SessionID
	s.mu.Unlock()

	s.publish(events.EventStepChanged, map[string]interface{}{
		"session_id": id,
		"step":       string(prev),
	})
	return prev
}

// Skip abandons guided setup unconditionally, whatever the current step
// or placement progress. The operator owns the consequences.
func (s *Service) Skip() {
	s.mu.Lock()
	s.state.Skipped = true
	s.state.Complete = true
	id := s.state.SessionID
	s.mu.Unlock()

	s.log(logging.LevelInfo, "session_skipped id=%s", id)
	s.publish(events.EventSessionSkipped, map[string]interface{}{"session_id": id})
}

// MarkCarrierPlaced sets the placement flag of one carrier requirement.
// Placement confirmation is independent of step navigation.
func (s *Service) MarkCarrierPlaced(requirementID string, placed bool) error {
	s.mu.Lock()
	found := false
	updated := make([]model.CarrierRequirement, len(s.state.Requirements))
	for i, req := range s.state.Requirements {
		if req.ID == requirementID {
			req.Placed = placed
			found = true
		}
		updated[i] = req
	}
	if !found {
		s.mu.Unlock()
		return fmt.Errorf("unknown carrier requirement %q", requirementID)
	}
	s.state.Requirements = updated
	id := s.state.SessionID
	s.mu.Unlock()

	s.publish(events.EventCarrierPlaced, map[string]interface{}{
		"session_id":     id,
		"requirement_id": requirementID,
		"placed":         placed,
	})
	return nil
}

// MarkResourcePlaced sets the placement flag of every assignment whose
// resource name matches.
func (s *Service) MarkResourcePlaced(resourceName string, placed bool) error {
	s.mu.Lock()
	found := false
	updated := make([]model.SlotAssignment, len(s.state.Assignments))
	for i, asn := range s.state.Assignments {
		if asn.ResourceName == resourceName {
			asn.Placed = placed
			found = true
		}
		updated[i] = asn
	}
	if !found {
		s.mu.Unlock()
		return fmt.Errorf("unknown resource %q", resourceName)
	}
	s.state.Assignments = updated
	// The cursor tracks the first unconfirmed assignment so a resumed
	// session picks up where the operator left off. Recompute from the
	// front so un-placing moves it back.
	cursor := 0
	for cursor < len(updated) && updated[cursor].Placed {
		cursor++
	}
	s.state.Cursor = cursor
	id := s.state.SessionID
	s.mu.Unlock()

	s.publish(events.EventResourcePlaced, map[string]interface{}{
		"session_id": id,
		"resource":   resourceName,
		"placed":     placed,
	})
	return nil
}

// Progress returns overall placement confirmation as a percentage:
// placed items over total items across carriers and resources. Zero
// when the session has no items at all.
func (s *Service) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := len(s.state.Requirements) + len(s.state.Assignments)
	if total == 0 {
		return 0
	}
	placed := 0
	for _, req := range s.state.Requirements {
		if req.Placed {
			placed++
		}
	}
	for _, asn := range s.state.Assignments {
		if asn.Placed {
			placed++
		}
	}
	return float64(placed) / float64(total) * 100
}

// AutoAssignConsumables resolves inventory bindings for assignments
// that lack one. Assets are processed strictly in protocol order, one
// matcher call at a time; concurrent calls against a mutating inventory
// view could hand out duplicate or stale bindings. Returns the number
// of assignments resolved. Requirements with no match stay unresolved
// for manual handling.
func (s *Service) AutoAssignConsumables(ctx context.Context) int {
	s.mu.Lock()
	if s.state.Protocol == nil {
		s.mu.Unlock()
		return 0
	}
	assets := make([]model.AssetRequirement, len(s.state.Protocol.Assets))
	copy(assets, s.state.Protocol.Assets)
	s.mu.Unlock()

	assigned := 0
	for _, asset := range assets {
		if !s.needsBinding(asset.ID) {
			continue
		}
		m, ok := s.matcher.FindCompatibleConsumable(ctx, asset)
		if !ok {
			s.log(logging.LevelDebug, "auto_assign_no_match asset=%q", asset.Name)
			continue
		}
		if s.bindAssignment(asset.ID, m.AccessionID) {
			assigned++
			s.publish(events.EventConsumableAssigned, map[string]interface{}{
				"asset_id":     asset.ID,
				"inventory_id": m.AccessionID,
				"score":        m.Score,
			})
		}
	}

	if assigned > 0 {
		s.log(logging.LevelInfo, "auto_assign_done count=%d", assigned)
	}
	return assigned
}

func (s *Service) needsBinding(assetID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, asn := range s.state.Assignments {
		if asn.AssetID == assetID && asn.InventoryID == "" {
			return true
		}
	}
	return false
}

func (s *Service) bindAssignment(assetID, inventoryID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	bound := false
	updated := make([]model.SlotAssignment, len(s.state.Assignments))
	for i, asn := range s.state.Assignments {
		if asn.AssetID == assetID && asn.InventoryID == "" {
			asn.InventoryID = inventoryID
			bound = true
		}
		updated[i] = asn
	}
	if bound {
		s.state.Assignments = updated
	}
	return bound
}

// CurrentAssignment returns the assignment the cursor points at: the
// next one awaiting placement confirmation. ok is false when every
// assignment is confirmed or the session is empty.
func (s *Service) CurrentAssignment() (model.SlotAssignment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Cursor >= len(s.state.Assignments) {
		return model.SlotAssignment{}, false
	}
	return s.state.Assignments[s.state.Cursor], true
}

// AssetMap produces the final binding contract handed to execution
// start: protocol asset id to resolved name and inventory id, covering
// only assignments confirmed placed.
func (s *Service) AssetMap() map[string]model.AssetBinding {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]model.AssetBinding)
	for _, asn := range s.state.Assignments {
		if !asn.Placed {
			continue
		}
		out[asn.AssetID] = model.AssetBinding{
			Name:        asn.ResourceName,
			InventoryID: asn.InventoryID,
		}
	}
	return out
}

// State returns a deep copy of the current session snapshot.
func (s *Service) State() model.WizardState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneState(s.state)
}

// Reset clears the session back to its zero value. Persisted state is
// untouched; use Clear for that.
func (s *Service) Reset() {
	s.mu.Lock()
	s.state = model.WizardState{}
	s.mu.Unlock()
	s.log(logging.LevelInfo, "session_reset")
}

// Save persists the session snapshot under the fixed key. Writes are
// last-write-wins; there is no cross-field atomicity beyond the blob
// being written whole.
func (s *Service) Save() error {
	s.mu.Lock()
	snapshot := cloneState(s.state)
	s.mu.Unlock()

	snapshot.SchemaVersion = model.WizardStateSchemaVersion
	snapshot.SavedAt = time.Now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if err := s.kv.Set(stateKey, data); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	s.log(logging.LevelDebug, "session_saved id=%s", snapshot.SessionID)
	return nil
}

// Load restores a persisted session for the given protocol. Returns
// false when nothing usable exists: absence, a schema mismatch, a
// snapshot saved for a different protocol, and any storage or decode
// failure all degrade to "no saved state".
func (s *Service) Load(protocolID string) bool {
	restored, ok := s.loadSnapshot()
	if !ok {
		return false
	}
	if restored.ProtocolID != protocolID {
		s.log(logging.LevelInfo, "session_protocol_mismatch saved=%s requested=%s", restored.ProtocolID, protocolID)
		return false
	}
	s.adopt(restored)
	return true
}

// LoadCurrent restores whatever session snapshot is persisted,
// whichever protocol it belongs to. Used by callers resuming the
// existing session rather than starting one for a known protocol.
func (s *Service) LoadCurrent() bool {
	restored, ok := s.loadSnapshot()
	if !ok {
		return false
	}
	s.adopt(restored)
	return true
}

func (s *Service) adopt(restored model.WizardState) {
	s.mu.Lock()
	s.state = restored
	s.mu.Unlock()
	s.log(logging.LevelInfo, "session_restored id=%s step=%s", restored.SessionID, restored.Step)
}

func (s *Service) loadSnapshot() (model.WizardState, bool) {
	data, ok, err := s.kv.Get(stateKey)
	if err != nil {
		s.log(logging.LevelWarn, "session_load_failed err=%v", err)
		return model.WizardState{}, false
	}
	if !ok {
		return model.WizardState{}, false
	}

	var restored model.WizardState
	if err := json.Unmarshal(data, &restored); err != nil {
		s.log(logging.LevelWarn, "session_decode_failed err=%v", err)
		data, ok = s.recoverSnapshot()
		if !ok {
			return model.WizardState{}, false
		}
		if err := json.Unmarshal(data, &restored); err != nil {
			s.log(logging.LevelWarn, "session_backup_decode_failed err=%v", err)
			return model.WizardState{}, false
		}
	}

	if restored.SchemaVersion != model.WizardStateSchemaVersion {
		s.log(logging.LevelWarn, "session_schema_mismatch got=%d want=%d", restored.SchemaVersion, model.WizardStateSchemaVersion)
		return model.WizardState{}, false
	}
	return restored, true
}

func (s *Service) recoverSnapshot() ([]byte, bool) {
	rec, ok := s.kv.(store.Recoverer)
	if !ok {
		return nil, false
	}
	return rec.Recover(stateKey)
}

// Clear removes the persisted session snapshot.
func (s *Service) Clear() error {
	if err := s.kv.Delete(stateKey); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.log(logging.LevelDebug, "session_cleared")
	return nil
}

func cloneState(in model.WizardState) model.WizardState {
	out := in
	if in.Protocol != nil {
		p := *in.Protocol
		p.Assets = append([]model.AssetRequirement(nil), in.Protocol.Assets...)
		out.Protocol = &p
	}
	out.Requirements = cloneRequirements(in.Requirements)
	out.Assignments = cloneAssignments(in.Assignments)
	out.Stacking = cloneStacking(in.Stacking)
	return out
}

func cloneRequirements(in []model.CarrierRequirement) []model.CarrierRequirement {
	if in == nil {
		return nil
	}
	out := make([]model.CarrierRequirement, len(in))
	for i, req := range in {
		req.SuggestedRails = append([]int(nil), req.SuggestedRails...)
		req.Carrier.Compatible = append([]model.ResourceType(nil), req.Carrier.Compatible...)
		out[i] = req
	}
	return out
}

func cloneAssignments(in []model.SlotAssignment) []model.SlotAssignment {
	if in == nil {
		return nil
	}
	out := make([]model.SlotAssignment, len(in))
	for i, asn := range in {
		if asn.Position != nil {
			pos := *asn.Position
			asn.Position = &pos
		}
		out[i] = asn
	}
	return out
}

func cloneStacking(in []model.StackingHint) []model.StackingHint {
	if in == nil {
		return nil
	}
	out := make([]model.StackingHint, len(in))
	for i, hint := range in {
		hint.Order = append([]string(nil), hint.Order...)
		out[i] = hint
	}
	return out
}

func (s *Service) publish(eventType events.EventType, data map[string]interface{}) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventType, data)
}

func (s *Service) log(level logging.Level, format string, args ...any) {
	if level < s.logLevel {
		return
	}
	s.logger.Printf("[%s] wizard: %s", level, fmt.Sprintf(format, args...))
}
