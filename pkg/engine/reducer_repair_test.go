package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// enterCheckRepair drives a started game into a repairing subphase with the
// given plan, via the explicit-check flow.
func enterCheckRepair(t *testing.T, r *Reducer, state GameState, plan []RepairStep) GameState {
	t.Helper()
	bundle := r.bundle.(*StubBundle)
	bundle.ComputeRepairPlanFunc = func(*GameState) []RepairStep { return plan }

	state = r.Dispatch(state, RequestCheck{PlayerID: state.ActivePlayer().ID, AtMs: 100})
	state = r.Dispatch(state, SolvabilityResult{Origin: RepairReasonCheck, Verdict: Unsolvable, AtMs: 101})
	require.Equal(t, SubphaseRepairing, state.Subphase)
	return state
}

func TestRepairPlayback(t *testing.T) {
	t.Run("one step per dispatch with progress notices", func(t *testing.T) {
		r := New(&StubBundle{})
		state := testState(t, r)
		state = enterCheckRepair(t, r, state, []RepairStep{
			{Kind: RepairStepMessage, Message: "first"},
			{Kind: RepairStepMessage, Message: "second"},
			{Kind: RepairStepDone},
		})

		state = r.Dispatch(state, StepRepair{AtMs: 110})
		assert.Equal(t, "first", state.Message)
		assert.Equal(t, 1, state.Repair.Cursor)
		require.Len(t, state.Notices, 1)
		assert.Equal(t, NoticeRepairProgress, state.Notices[0].Kind)
		assert.Equal(t, 1, state.Notices[0].Cursor)
		assert.Equal(t, 3, state.Notices[0].Total)

		state = r.Dispatch(state, StepRepair{AtMs: 111})
		assert.Equal(t, "second", state.Message)
		assert.Equal(t, 2, state.Repair.Cursor)

		state = r.Dispatch(state, StepRepair{AtMs: 112})
		assert.Nil(t, state.Repair)
		assert.Equal(t, SubphaseNormal, state.Subphase)
	})

	t.Run("late verdicts do not restart a running session", func(t *testing.T) {
		r := New(&StubBundle{})
		state := testState(t, r)
		state = enterCheckRepair(t, r, state, []RepairStep{
			{Kind: RepairStepMessage, Message: "removing"},
			{Kind: RepairStepDone},
		})

		state = r.Dispatch(state, StepRepair{AtMs: 110})
		require.Equal(t, 1, state.Repair.Cursor)

		state = r.Dispatch(state, SolvabilityResult{Origin: RepairReasonCheck, Verdict: Unsolvable, AtMs: 111})
		require.NotNil(t, state.Repair)
		assert.Equal(t, 1, state.Repair.Cursor)

		state = r.Dispatch(state, StepRepair{AtMs: 112})
		assert.Nil(t, state.Repair)
		assert.Equal(t, PhaseInTurn, state.Phase)
	})

	t.Run("late verdicts do not restart a hint repair", func(t *testing.T) {
		r := New(&StubBundle{})
		state := testState(t, r)
		bundle := r.bundle.(*StubBundle)
		bundle.ComputeRepairPlanFunc = func(*GameState) []RepairStep {
			return []RepairStep{
				{Kind: RepairStepMessage, Message: "removing"},
				{Kind: RepairStepDone},
			}
		}
		state = r.Dispatch(state, RequestHint{PlayerID: "p1", Anchor: segment(0)[0], AtMs: 100})
		state = r.Dispatch(state, SolvabilityResult{Origin: RepairReasonHint, Verdict: Unsolvable, AtMs: 101})
		require.Equal(t, SubphaseRepairing, state.Subphase)

		state = r.Dispatch(state, StepRepair{AtMs: 110})
		require.Equal(t, 1, state.Repair.Cursor)

		state = r.Dispatch(state, SolvabilityResult{Origin: RepairReasonHint, Verdict: Unsolvable, AtMs: 111})
		require.NotNil(t, state.Repair)
		assert.Equal(t, 1, state.Repair.Cursor)

		state = r.Dispatch(state, StepRepair{AtMs: 112})
		assert.Nil(t, state.Repair)
		assert.Nil(t, state.PendingHint)
		assert.Equal(t, PhaseInTurn, state.Phase)
	})

	t.Run("step without a session is a no-op", func(t *testing.T) {
		r := New(&StubBundle{})
		state := testState(t, r)
		next := r.Dispatch(state, StepRepair{AtMs: 10})
		assert.Equal(t, SubphaseNormal, next.Subphase)
		assert.Equal(t, state.Turn, next.Turn)
	})

	t.Run("player actions are rejected while repairing", func(t *testing.T) {
		r := New(&StubBundle{})
		state := testState(t, r)
		state = enterCheckRepair(t, r, state, []RepairStep{{Kind: RepairStepDone}})

		next := r.Dispatch(state, PlacePiece{PlayerID: "p1", PieceID: "A", Cells: segment(0), AtMs: 110})
		assert.Empty(t, next.Board)
		assert.NotEmpty(t, next.Message)

		next = r.Dispatch(state, RequestHint{PlayerID: "p1", Anchor: segment(0)[0], AtMs: 110})
		assert.Contains(t, next.Message, "repaired")

		next = r.Dispatch(state, Pass{PlayerID: "p1", AtMs: 110})
		assert.Equal(t, state.Turn, next.Turn)
	})

	t.Run("plan without a done step gets one appended", func(t *testing.T) {
		r := New(&StubBundle{})
		state := testState(t, r)
		state = enterCheckRepair(t, r, state, []RepairStep{
			{Kind: RepairStepMessage, Message: "only a message"},
		})
		require.Len(t, state.Repair.Steps, 2)
		assert.Equal(t, RepairStepDone, state.Repair.Steps[1].Kind)
	})
}

func TestRepairRemoval(t *testing.T) {
	placeTwo := func(t *testing.T, r *Reducer) (GameState, string) {
		t.Helper()
		state := testState(t, r)
		state = r.Dispatch(state, PlacePiece{PlayerID: "p1", PieceID: "A", Cells: segment(0), AtMs: 10})
		state = r.Dispatch(state, PlacePiece{PlayerID: "p2", PieceID: "A", Cells: segment(4), AtMs: 11})
		var latest string
		for id, p := range state.Board {
			if p.PlayerID == "p2" {
				latest = id
			}
		}
		require.NotEmpty(t, latest)
		return state, latest
	}

	t.Run("only the placer is penalized and the score floors at zero", func(t *testing.T) {
		r := New(&StubBundle{})
		state, latest := placeTwo(t, r)
		require.Equal(t, 1, state.PlayerByID("p2").Score)
		state = enterCheckRepair(t, r, state, []RepairStep{
			{Kind: RepairStepRemovePiece, PlacementID: latest, OwnerID: "p2", ScoreDelta: -1},
			{Kind: RepairStepRemovePiece, PlacementID: latest, OwnerID: "p2", ScoreDelta: -1},
			{Kind: RepairStepDone},
		})

		state = r.Dispatch(state, StepRepair{AtMs: 110})
		assert.Equal(t, 0, state.PlayerByID("p2").Score)
		assert.Equal(t, 1, state.PlayerByID("p1").Score, "non-placer untouched")

		// Second removal of the same id: placement already gone, no double
		// penalty, no negative score.
		state = r.Dispatch(state, StepRepair{AtMs: 111})
		assert.Equal(t, 0, state.PlayerByID("p2").Score)
		assert.Equal(t, 1, state.PlacedCountByPieceID["A"])
		assertInvariants(t, state)
	})

	t.Run("removal restocks bounded inventory", func(t *testing.T) {
		r := New(&StubBundle{IsPuzzleCompleteFunc: func(*GameState) bool { return false }})
		state, err := NewGameState(SetupInput{
			Players: []PlayerSetup{
				{ID: "p1", Name: "P1", Kind: PlayerHuman},
				{ID: "p2", Name: "P2", Kind: PlayerHuman},
			},
			Inventory: map[string]int{"A": 2},
			Settings:  Settings{TimerMode: TimerModeNone, ChecksPerPlayer: InventoryUnlimited},
		}, testSpec(t, 12))
		require.NoError(t, err)
		state = r.Dispatch(state, StartGame{AtMs: 1})
		state = r.Dispatch(state, PlacePiece{PlayerID: "p1", PieceID: "A", Cells: segment(0), AtMs: 10})
		require.Equal(t, 1, state.Inventory["A"])

		var placementID string
		for id := range state.Board {
			placementID = id
		}
		state = enterCheckRepair(t, r, state, []RepairStep{
			{Kind: RepairStepRemovePiece, PlacementID: placementID},
			{Kind: RepairStepDone},
		})
		state = r.Dispatch(state, StepRepair{AtMs: 110})
		assert.Equal(t, 2, state.Inventory["A"])
		assert.Empty(t, state.Board)
	})

	t.Run("owner defaults to the original placer", func(t *testing.T) {
		r := New(&StubBundle{})
		state, latest := placeTwo(t, r)
		state = enterCheckRepair(t, r, state, []RepairStep{
			{Kind: RepairStepRemovePiece, PlacementID: latest}, // no OwnerID, no delta
			{Kind: RepairStepDone},
		})
		state = r.Dispatch(state, StepRepair{AtMs: 110})
		assert.Equal(t, 0, state.PlayerByID("p2").Score, "default delta of -1 charged to the placer")
		assert.Equal(t, 1, state.PlayerByID("p1").Score)
	})

	t.Run("unknown placement id is a no-op removal", func(t *testing.T) {
		r := New(&StubBundle{})
		state, _ := placeTwo(t, r)
		state = enterCheckRepair(t, r, state, []RepairStep{
			{Kind: RepairStepRemovePiece, PlacementID: "no-such-placement"},
			{Kind: RepairStepDone},
		})
		state = r.Dispatch(state, StepRepair{AtMs: 110})
		assert.Len(t, state.Board, 2)
		assert.Equal(t, 1, state.PlayerByID("p1").Score)
		assert.Equal(t, 1, state.PlayerByID("p2").Score)
	})
}

func TestEndgameRepair(t *testing.T) {
	t.Run("ends stalled even when repair restored solvability", func(t *testing.T) {
		plan := []RepairStep{{Kind: RepairStepDone, Solvable: true}}
		r := New(&StubBundle{ComputeRepairPlanFunc: func(*GameState) []RepairStep { return plan }})
		state := testState(t, r)

		state = r.Dispatch(state, Pass{PlayerID: "p1", AtMs: 10})
		state = r.Dispatch(state, Pass{PlayerID: "p2", AtMs: 11})
		require.Equal(t, SubphaseRepairing, state.Subphase)
		require.Equal(t, RepairReasonEndgame, state.Repair.Reason)

		state = r.Dispatch(state, StepRepair{AtMs: 12})
		require.Equal(t, PhaseEnded, state.Phase)
		assert.Equal(t, EndReasonStalled, state.End.Reason)
	})

	t.Run("removals during endgame repair still apply before the end", func(t *testing.T) {
		r := New(&StubBundle{})
		state := testState(t, r)
		state = r.Dispatch(state, PlacePiece{PlayerID: "p1", PieceID: "A", Cells: segment(0), AtMs: 10})
		var placementID string
		for id := range state.Board {
			placementID = id
		}

		bundle := r.bundle.(*StubBundle)
		bundle.ComputeRepairPlanFunc = func(*GameState) []RepairStep {
			return []RepairStep{
				{Kind: RepairStepRemovePiece, PlacementID: placementID, OwnerID: "p1", ScoreDelta: -1},
				{Kind: RepairStepDone},
			}
		}

		state = r.Dispatch(state, Pass{PlayerID: "p2", AtMs: 11})
		state = r.Dispatch(state, Pass{PlayerID: "p1", AtMs: 12})
		require.Equal(t, SubphaseRepairing, state.Subphase)

		state = r.Dispatch(state, StepRepair{AtMs: 13})
		assert.Empty(t, state.Board)
		assert.Equal(t, 0, state.PlayerByID("p1").Score)

		state = r.Dispatch(state, StepRepair{AtMs: 14})
		require.Equal(t, PhaseEnded, state.Phase)
		assert.Equal(t, EndReasonStalled, state.End.Reason)
		// Ranking reflects the post-repair scores.
		for _, row := range state.End.Ranking {
			assert.Equal(t, 0, row.Score)
		}
	})
}
