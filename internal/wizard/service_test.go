package wizard

import (
	"bytes"
	"context"
	"log"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msageha/deckplan/internal/events"
	"github.com/msageha/deckplan/internal/infer"
	"github.com/msageha/deckplan/internal/logging"
	"github.com/msageha/deckplan/internal/match"
	"github.com/msageha/deckplan/internal/model"
	"github.com/msageha/deckplan/internal/store"
)

type fakeMatcher struct {
	matches map[string]match.Match
	calls   []string
}

func (f *fakeMatcher) FindCompatibleConsumable(ctx context.Context, req model.AssetRequirement) (match.Match, bool) {
	f.calls = append(f.calls, req.ID)
	m, ok := f.matches[req.ID]
	return m, ok
}

func testProtocol() *model.Protocol {
	return &model.Protocol{
		ID:   "proto-001",
		Name: "elisa prep",
		Assets: []model.AssetRequirement{
			{ID: "a1", Name: "sample plate", TypeHint: "plate"},
			{ID: "a2", Name: "reagent plate", TypeHint: "plate"},
			{ID: "a3", Name: "tips 300ul", TypeHint: "tip"},
		},
	}
}

func newTestService(t *testing.T, matcher ConsumableMatcher) *Service {
	t.Helper()
	logger := log.New(&bytes.Buffer{}, "", 0)
	bus := events.NewBus(10)
	t.Cleanup(bus.Close)
	engine := infer.NewEngine(model.InferenceConfig{StartingRail: 1, SlotMarginMM: 2}, bus, logger, logging.LevelError)
	return NewService(engine, matcher, store.NewMemKV(), bus, logger, logging.LevelError)
}

func initSession(t *testing.T, svc *Service) {
	t.Helper()
	require.NoError(t, svc.Initialize(testProtocol(), "HamiltonSTARDeck"))
}

func TestInitializeSeedsSession(t *testing.T) {
	svc := newTestService(t, &fakeMatcher{})
	initSession(t, svc)

	state := svc.State()
	assert.Equal(t, model.StepCarrierPlacement, state.Step)
	assert.Equal(t, "proto-001", state.ProtocolID)
	assert.True(t, model.ValidateID(state.SessionID))
	assert.False(t, state.Complete)
	assert.False(t, state.Skipped)
	// Plates and tips each need a carrier; all three assets get slots.
	assert.Len(t, state.Requirements, 2)
	assert.Len(t, state.Assignments, 3)
}

func TestStepNavigation(t *testing.T) {
	svc := newTestService(t, &fakeMatcher{})
	initSession(t, svc)

	assert.Equal(t, model.StepResourcePlacement, svc.NextStep())
	assert.Equal(t, model.StepVerification, svc.NextStep())

	// Advancing past verification completes without changing the step.
	assert.Equal(t, model.StepVerification, svc.NextStep())
	state := svc.State()
	assert.Equal(t, model.StepVerification, state.Step)
	assert.True(t, state.Complete)
}

func TestPreviousStepNoOpAtStart(t *testing.T) {
	svc := newTestService(t, &fakeMatcher{})
	initSession(t, svc)

	assert.Equal(t, model.StepCarrierPlacement, svc.PreviousStep())
	assert.Equal(t, model.StepCarrierPlacement, svc.State().Step)

	svc.NextStep()
	assert.Equal(t, model.StepCarrierPlacement, svc.PreviousStep())
}

func TestSkipFromAnyStep(t *testing.T) {
	svc := newTestService(t, &fakeMatcher{})
	initSession(t, svc)
	svc.NextStep()

	svc.Skip()
	state := svc.State()
	assert.True(t, state.Skipped)
	assert.True(t, state.Complete)
	assert.Equal(t, model.StepResourcePlacement, state.Step)
}

func TestMarkPlacedAndProgress(t *testing.T) {
	svc := newTestService(t, &fakeMatcher{})
	initSession(t, svc)

	assert.Equal(t, 0.0, svc.Progress())

	state := svc.State()
	for _, req := range state.Requirements {
		require.NoError(t, svc.MarkCarrierPlaced(req.ID, true))
	}
	for _, asn := range state.Assignments {
		require.NoError(t, svc.MarkResourcePlaced(asn.ResourceName, true))
	}
	assert.InDelta(t, 100.0, svc.Progress(), 0.001)

	// Un-place one of five items.
	require.NoError(t, svc.MarkResourcePlaced(state.Assignments[0].ResourceName, false))
	assert.InDelta(t, 80.0, svc.Progress(), 0.001)
}

func TestMarkPlacedUnknownItem(t *testing.T) {
	svc := newTestService(t, &fakeMatcher{})
	initSession(t, svc)

	assert.Error(t, svc.MarkCarrierPlaced("req_0000000000_deadbeef", true))
	assert.Error(t, svc.MarkResourcePlaced("no such resource", true))
}

func TestProgressEmptySession(t *testing.T) {
	svc := newTestService(t, &fakeMatcher{})
	assert.Equal(t, 0.0, svc.Progress())
}

func TestCursorTracksFirstUnconfirmed(t *testing.T) {
	svc := newTestService(t, &fakeMatcher{})
	initSession(t, svc)

	first, ok := svc.CurrentAssignment()
	require.True(t, ok)

	require.NoError(t, svc.MarkResourcePlaced(first.ResourceName, true))
	second, ok := svc.CurrentAssignment()
	require.True(t, ok)
	assert.NotEqual(t, first.ID, second.ID)

	// Un-placing the first assignment moves the cursor back.
	require.NoError(t, svc.MarkResourcePlaced(first.ResourceName, false))
	current, ok := svc.CurrentAssignment()
	require.True(t, ok)
	assert.Equal(t, first.ID, current.ID)
}

func TestAutoAssignConsumables(t *testing.T) {
	matcher := &fakeMatcher{matches: map[string]match.Match{
		"a1": {AccessionID: "INV-100", Score: 0.9},
		"a3": {AccessionID: "INV-200", Score: 0.8},
	}}
	svc := newTestService(t, matcher)
	initSession(t, svc)

	assigned := svc.AutoAssignConsumables(context.Background())
	assert.Equal(t, 2, assigned)

	// Strictly sequential, in protocol asset order.
	assert.Equal(t, []string{"a1", "a2", "a3"}, matcher.calls)

	byAsset := map[string]string{}
	for _, asn := range svc.State().Assignments {
		byAsset[asn.AssetID] = asn.InventoryID
	}
	assert.Equal(t, "INV-100", byAsset["a1"])
	assert.Equal(t, "", byAsset["a2"])
	assert.Equal(t, "INV-200", byAsset["a3"])

	// A second pass only consults the matcher for the unresolved asset.
	matcher.calls = nil
	assert.Equal(t, 0, svc.AutoAssignConsumables(context.Background()))
	assert.Equal(t, []string{"a2"}, matcher.calls)
}

func TestAssetMapOnlyPlaced(t *testing.T) {
	matcher := &fakeMatcher{matches: map[string]match.Match{
		"a1": {AccessionID: "INV-100", Score: 0.9},
	}}
	svc := newTestService(t, matcher)
	initSession(t, svc)
	svc.AutoAssignConsumables(context.Background())

	assert.Empty(t, svc.AssetMap())

	state := svc.State()
	var a1Name string
	for _, asn := range state.Assignments {
		if asn.AssetID == "a1" {
			a1Name = asn.ResourceName
		}
	}
	require.NoError(t, svc.MarkResourcePlaced(a1Name, true))

	got := svc.AssetMap()
	require.Len(t, got, 1)
	assert.Equal(t, model.AssetBinding{Name: a1Name, InventoryID: "INV-100"}, got["a1"])
}

func TestSaveLoadRoundTrip(t *testing.T) {
	kv := store.NewMemKV()
	logger := log.New(&bytes.Buffer{}, "", 0)
	bus := events.NewBus(10)
	defer bus.Close()
	engine := infer.NewEngine(model.InferenceConfig{StartingRail: 1, SlotMarginMM: 2}, bus, logger, logging.LevelError)

	svc := NewService(engine, &fakeMatcher{}, kv, bus, logger, logging.LevelError)
	initSession(t, svc)
	svc.NextStep()
	require.NoError(t, svc.MarkResourcePlaced(svc.State().Assignments[0].ResourceName, true))
	require.NoError(t, svc.Save())

	restored := NewService(engine, &fakeMatcher{}, kv, bus, logger, logging.LevelError)
	require.True(t, restored.Load("proto-001"))

	diff := cmp.Diff(svc.State(), restored.State(),
		cmpopts.IgnoreFields(model.WizardState{}, "SavedAt"))
	assert.Empty(t, diff)
}

func TestLoadProtocolMismatch(t *testing.T) {
	kv := store.NewMemKV()
	logger := log.New(&bytes.Buffer{}, "", 0)
	bus := events.NewBus(10)
	defer bus.Close()
	engine := infer.NewEngine(model.InferenceConfig{StartingRail: 1, SlotMarginMM: 2}, bus, logger, logging.LevelError)

	svc := NewService(engine, &fakeMatcher{}, kv, bus, logger, logging.LevelError)
	initSession(t, svc)
	require.NoError(t, svc.Save())

	other := NewService(engine, &fakeMatcher{}, kv, bus, logger, logging.LevelError)
	assert.False(t, other.Load("proto-999"))
}

func TestLoadDegradesToNoSavedState(t *testing.T) {
	svc := newTestService(t, &fakeMatcher{})

	// Nothing persisted.
	assert.False(t, svc.Load("proto-001"))

	// Corrupt payload.
	require.NoError(t, svc.kv.Set(stateKey, []byte("{not json")))
	assert.False(t, svc.Load("proto-001"))

	// Wrong schema version.
	require.NoError(t, svc.kv.Set(stateKey, []byte(`{"schema_version":99,"protocol_id":"proto-001"}`)))
	assert.False(t, svc.Load("proto-001"))
}

func TestClearRemovesSnapshot(t *testing.T) {
	svc := newTestService(t, &fakeMatcher{})
	initSession(t, svc)
	require.NoError(t, svc.Save())
	require.NoError(t, svc.Clear())
	assert.False(t, svc.Load("proto-001"))
}

func TestStateReturnsDeepCopy(t *testing.T) {
	svc := newTestService(t, &fakeMatcher{})
	initSession(t, svc)

	state := svc.State()
	state.Assignments[0].Placed = true
	state.Requirements[0].Placed = true
	state.Protocol.Assets[0].Name = "mutated"

	fresh := svc.State()
	assert.False(t, fresh.Assignments[0].Placed)
	assert.False(t, fresh.Requirements[0].Placed)
	assert.Equal(t, "sample plate", fresh.Protocol.Assets[0].Name)
}

func TestResetClearsInMemoryOnly(t *testing.T) {
	svc := newTestService(t, &fakeMatcher{})
	initSession(t, svc)
	require.NoError(t, svc.Save())

	svc.Reset()
	assert.Empty(t, svc.State().SessionID)

	// Persisted snapshot survives a reset.
	assert.True(t, svc.Load("proto-001"))
}
