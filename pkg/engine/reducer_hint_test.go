package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ABakker30/koospuzzlev1-sub002/pkg/lattice"
)

func TestRequestHint(t *testing.T) {
	anchor := lattice.Cell{I: 0, J: 0, K: 0}

	t.Run("valid request suspends the game", func(t *testing.T) {
		r := New(&StubBundle{})
		state := testState(t, r)

		next := r.Dispatch(state, RequestHint{PlayerID: "p1", Anchor: anchor, AtMs: 10})
		require.Equal(t, PhaseResolving, next.Phase)
		require.NotNil(t, next.PendingHint)
		assert.Equal(t, "p1", next.PendingHint.PlayerID)
		assert.Equal(t, anchor, next.PendingHint.Anchor)

		// Player actions are rejected while resolving.
		blocked := r.Dispatch(next, PlacePiece{PlayerID: "p1", PieceID: "A", Cells: segment(0), AtMs: 11})
		assert.NotEmpty(t, blocked.Message)
		assert.Empty(t, blocked.Board)
		assert.Equal(t, PhaseResolving, blocked.Phase)
	})

	t.Run("anchor outside the container is rejected", func(t *testing.T) {
		r := New(&StubBundle{})
		state := testState(t, r)
		next := r.Dispatch(state, RequestHint{PlayerID: "p1", Anchor: lattice.Cell{I: 99, J: 0, K: 0}, AtMs: 10})
		assert.Equal(t, PhaseInTurn, next.Phase)
		assert.Nil(t, next.PendingHint)
		assert.Contains(t, next.Message, "outside")
	})

	t.Run("occupied anchor is rejected", func(t *testing.T) {
		r := New(&StubBundle{})
		state := testState(t, r)
		state = r.Dispatch(state, PlacePiece{PlayerID: "p1", PieceID: "A", Cells: segment(0), AtMs: 10})
		next := r.Dispatch(state, RequestHint{PlayerID: "p2", Anchor: anchor, AtMs: 11})
		assert.Equal(t, PhaseInTurn, next.Phase)
		assert.Contains(t, next.Message, "occupied")
	})

	t.Run("exhausted allowance is rejected", func(t *testing.T) {
		r := New(&StubBundle{})
		state, err := NewGameState(SetupInput{
			Players: []PlayerSetup{
				{ID: "p1", Name: "P1", Kind: PlayerHuman},
				{ID: "p2", Name: "P2", Kind: PlayerHuman},
			},
			Inventory: map[string]int{"A": InventoryUnlimited},
			Settings:  Settings{TimerMode: TimerModeNone, HintsPerPlayer: 0},
		}, testSpec(t, 12))
		require.NoError(t, err)
		state = r.Dispatch(state, StartGame{AtMs: 1})

		next := r.Dispatch(state, RequestHint{PlayerID: "p1", Anchor: anchor, AtMs: 10})
		assert.Equal(t, PhaseInTurn, next.Phase)
		assert.Contains(t, next.Message, "hints")
	})

	t.Run("bounded allowance decrements on acceptance", func(t *testing.T) {
		r := New(&StubBundle{})
		state, err := NewGameState(SetupInput{
			Players: []PlayerSetup{
				{ID: "p1", Name: "P1", Kind: PlayerHuman},
				{ID: "p2", Name: "P2", Kind: PlayerHuman},
			},
			Inventory: map[string]int{"A": InventoryUnlimited},
			Settings:  Settings{TimerMode: TimerModeNone, HintsPerPlayer: 2},
		}, testSpec(t, 12))
		require.NoError(t, err)
		state = r.Dispatch(state, StartGame{AtMs: 1})

		next := r.Dispatch(state, RequestHint{PlayerID: "p1", Anchor: anchor, AtMs: 10})
		assert.Equal(t, 1, next.PlayerByID("p1").HintsRemaining)
		// A rejection must not burn the allowance.
		rejected := r.Dispatch(state, RequestHint{PlayerID: "p1", Anchor: lattice.Cell{I: 99, J: 0, K: 0}, AtMs: 10})
		assert.Equal(t, 2, rejected.PlayerByID("p1").HintsRemaining)
	})
}

func TestHintResult(t *testing.T) {
	anchor := lattice.Cell{I: 0, J: 0, K: 0}

	requestHint := func(t *testing.T, r *Reducer) GameState {
		t.Helper()
		state := testState(t, r)
		state = r.Dispatch(state, RequestHint{PlayerID: "p1", Anchor: anchor, AtMs: 10})
		require.Equal(t, PhaseResolving, state.Phase)
		return state
	}

	t.Run("suggestion places at zero score and consumes the turn", func(t *testing.T) {
		r := New(&StubBundle{})
		state := requestHint(t, r)

		next := r.Dispatch(state, HintResult{
			PlayerID: "p1",
			Status:   HintSuggested,
			Suggestion: &HintSuggestion{
				PieceID:       "A",
				OrientationID: "A-o0",
				Cells:         segment(0),
			},
			AtMs: 20,
		})

		require.Equal(t, PhaseInTurn, next.Phase)
		assert.Nil(t, next.PendingHint)
		require.Len(t, next.Board, 1)
		for _, p := range next.Board {
			assert.Equal(t, ProvenanceHint, p.Provenance)
			assert.Equal(t, "p1", p.PlayerID)
		}
		assert.Equal(t, 0, next.PlayerByID("p1").Score, "hint placements score nothing")
		assert.Equal(t, "p2", next.ActivePlayer().ID)
		assertInvariants(t, next)
	})

	t.Run("scenario C: no suggestion returns the turn intact", func(t *testing.T) {
		r := New(&StubBundle{})
		state := requestHint(t, r)

		next := r.Dispatch(state, HintResult{PlayerID: "p1", Status: HintNoSuggestion, AtMs: 20})
		require.Equal(t, PhaseInTurn, next.Phase)
		assert.Nil(t, next.PendingHint)
		assert.Empty(t, next.Board)
		assert.Equal(t, 0, next.PlayerByID("p1").Score)
		assert.Equal(t, "p1", next.ActivePlayer().ID, "turn does not advance")
		assert.Equal(t, state.Turn, next.Turn)
		assert.NotEmpty(t, next.Message)
	})

	t.Run("error returns the turn intact", func(t *testing.T) {
		r := New(&StubBundle{})
		state := requestHint(t, r)
		next := r.Dispatch(state, HintResult{PlayerID: "p1", Status: HintError, AtMs: 20})
		assert.Equal(t, PhaseInTurn, next.Phase)
		assert.Equal(t, "p1", next.ActivePlayer().ID)
		assert.Empty(t, next.Board)
	})

	t.Run("stale result for another player is dropped", func(t *testing.T) {
		r := New(&StubBundle{})
		state := requestHint(t, r)
		next := r.Dispatch(state, HintResult{PlayerID: "p2", Status: HintNoSuggestion, AtMs: 20})
		assert.Equal(t, PhaseResolving, next.Phase)
		assert.NotNil(t, next.PendingHint)
	})

	t.Run("result without an outstanding hint is dropped", func(t *testing.T) {
		r := New(&StubBundle{})
		state := testState(t, r)
		next := r.Dispatch(state, HintResult{PlayerID: "p1", Status: HintNoSuggestion, AtMs: 20})
		assert.Equal(t, PhaseInTurn, next.Phase)
		assert.Equal(t, "p1", next.ActivePlayer().ID)
	})

	t.Run("suggestion that no longer fits consumes the turn without placing", func(t *testing.T) {
		r := New(&StubBundle{})
		state := requestHint(t, r)

		next := r.Dispatch(state, HintResult{
			PlayerID: "p1",
			Status:   HintSuggested,
			Suggestion: &HintSuggestion{
				PieceID:       "A",
				OrientationID: "A-o0",
				Cells:         segment(50), // outside the container
			},
			AtMs: 20,
		})
		assert.Equal(t, PhaseInTurn, next.Phase)
		assert.Empty(t, next.Board)
		assert.Equal(t, "p2", next.ActivePlayer().ID)
	})
}

func TestScenarioBHintRepair(t *testing.T) {
	// Full flow: hint request -> unsolvable verdict -> repair session ->
	// most recent placement removed -> pending hint cleared -> back in turn.
	r := New(&StubBundle{})
	state := testState(t, r)

	state = r.Dispatch(state, PlacePiece{PlayerID: "p1", PieceID: "A", Cells: segment(0), AtMs: 10})
	state = r.Dispatch(state, PlacePiece{PlayerID: "p2", PieceID: "A", Cells: segment(4), AtMs: 11})
	require.Len(t, state.Board, 2)

	var latestID string
	for id, p := range state.Board {
		if p.PlayerID == "p2" {
			latestID = id
		}
	}
	require.NotEmpty(t, latestID)

	bundle := r.bundle.(*StubBundle)
	bundle.ComputeRepairPlanFunc = func(*GameState) []RepairStep {
		return []RepairStep{
			{Kind: RepairStepMessage, Message: "board unsolvable, removing recent pieces"},
			{Kind: RepairStepRemovePiece, PlacementID: latestID, OwnerID: "p2", ScoreDelta: -1},
			{Kind: RepairStepDone, Solvable: true},
		}
	}

	state = r.Dispatch(state, RequestHint{PlayerID: "p1", Anchor: lattice.Cell{I: 10, J: 10, K: 0}, AtMs: 20})
	require.Equal(t, PhaseResolving, state.Phase)

	state = r.Dispatch(state, SolvabilityResult{Origin: RepairReasonHint, Verdict: Unsolvable, AtMs: 21})
	require.Equal(t, SubphaseRepairing, state.Subphase)
	require.NotNil(t, state.Repair)
	assert.Equal(t, RepairReasonHint, state.Repair.Reason)
	assert.Equal(t, "p1", state.Repair.InitiatorID)

	// Step 1: framing message.
	state = r.Dispatch(state, StepRepair{AtMs: 22})
	assert.Contains(t, state.Message, "unsolvable")
	assert.Len(t, state.Board, 2)

	// Step 2: removal. Owner loses the point, inventory is unlimited so no
	// restock applies, counts stay consistent.
	state = r.Dispatch(state, StepRepair{AtMs: 23})
	assert.Len(t, state.Board, 1)
	assert.NotContains(t, state.Board, latestID)
	assert.Equal(t, 0, state.PlayerByID("p2").Score)
	assert.Equal(t, 1, state.PlacedCountByPieceID["A"])
	assertInvariants(t, state)

	// Step 3: done. Hint repairs clear the pending hint and return the turn.
	state = r.Dispatch(state, StepRepair{AtMs: 24})
	assert.Equal(t, SubphaseNormal, state.Subphase)
	assert.Equal(t, PhaseInTurn, state.Phase)
	assert.Nil(t, state.Repair)
	assert.Nil(t, state.PendingHint, "pending hint cleared after repair")
	assert.Equal(t, "p1", state.ActivePlayer().ID, "requester keeps the turn")
}

func TestSolvabilityResultHintFlow(t *testing.T) {
	anchor := lattice.Cell{I: 0, J: 0, K: 0}

	setup := func(t *testing.T, r *Reducer) GameState {
		t.Helper()
		state := testState(t, r)
		state = r.Dispatch(state, RequestHint{PlayerID: "p1", Anchor: anchor, AtMs: 10})
		require.Equal(t, PhaseResolving, state.Phase)
		return state
	}

	t.Run("solvable keeps the game resolving for the hint computation", func(t *testing.T) {
		r := New(&StubBundle{})
		state := setup(t, r)
		next := r.Dispatch(state, SolvabilityResult{Origin: RepairReasonHint, Verdict: Solvable, AtMs: 11})
		assert.Equal(t, PhaseResolving, next.Phase)
		assert.NotNil(t, next.PendingHint)
	})

	t.Run("unknown returns the turn with a timeout message", func(t *testing.T) {
		r := New(&StubBundle{})
		state := setup(t, r)
		next := r.Dispatch(state, SolvabilityResult{Origin: RepairReasonHint, Verdict: Unknown, AtMs: 11})
		assert.Equal(t, PhaseInTurn, next.Phase)
		assert.Nil(t, next.PendingHint)
		assert.Contains(t, next.Message, "timed out")
	})

	t.Run("check-origin verdict is ignored while a hint is pending", func(t *testing.T) {
		r := New(&StubBundle{})
		state := setup(t, r)
		next := r.Dispatch(state, SolvabilityResult{Origin: RepairReasonCheck, Verdict: Unsolvable, AtMs: 11})
		assert.Equal(t, PhaseResolving, next.Phase)
		assert.Equal(t, SubphaseNormal, next.Subphase)
	})
}

func TestRequestCheck(t *testing.T) {
	t.Run("solvable verdict reports and keeps the turn", func(t *testing.T) {
		r := New(&StubBundle{})
		state := testState(t, r)
		state = r.Dispatch(state, RequestCheck{PlayerID: "p1", AtMs: 10})
		require.Equal(t, PhaseResolving, state.Phase)
		require.Nil(t, state.PendingHint)

		next := r.Dispatch(state, SolvabilityResult{Origin: RepairReasonCheck, Verdict: Solvable, AtMs: 11})
		assert.Equal(t, PhaseInTurn, next.Phase)
		assert.Contains(t, next.Message, "solvable")
		assert.Equal(t, "p1", next.ActivePlayer().ID, "a check is not a move")
	})

	t.Run("unsolvable verdict starts a check repair", func(t *testing.T) {
		plan := []RepairStep{{Kind: RepairStepDone, Solvable: true}}
		r := New(&StubBundle{ComputeRepairPlanFunc: func(*GameState) []RepairStep { return plan }})
		state := testState(t, r)
		state = r.Dispatch(state, RequestCheck{PlayerID: "p1", AtMs: 10})
		state = r.Dispatch(state, SolvabilityResult{Origin: RepairReasonCheck, Verdict: Unsolvable, AtMs: 11})

		require.Equal(t, SubphaseRepairing, state.Subphase)
		assert.Equal(t, RepairReasonCheck, state.Repair.Reason)

		state = r.Dispatch(state, StepRepair{AtMs: 12})
		assert.Equal(t, PhaseInTurn, state.Phase)
		assert.Equal(t, SubphaseNormal, state.Subphase)
		assert.Equal(t, "p1", state.ActivePlayer().ID, "check repair does not advance the turn")
	})

	t.Run("exhausted allowance is rejected", func(t *testing.T) {
		r := New(&StubBundle{})
		state, err := NewGameState(SetupInput{
			Players:   []PlayerSetup{{ID: "p1", Name: "P1", Kind: PlayerHuman}},
			Inventory: map[string]int{"A": InventoryUnlimited},
			Settings:  Settings{TimerMode: TimerModeNone, ChecksPerPlayer: 0},
		}, testSpec(t, 12))
		require.NoError(t, err)
		state = r.Dispatch(state, StartGame{AtMs: 1})

		next := r.Dispatch(state, RequestCheck{PlayerID: "p1", AtMs: 10})
		assert.Equal(t, PhaseInTurn, next.Phase)
		assert.Contains(t, next.Message, "checks")
	})
}
