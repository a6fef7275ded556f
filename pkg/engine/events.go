package engine

import "github.com/ABakker30/koospuzzlev1-sub002/pkg/lattice"

// EventType names each member of the closed event union.
type EventType string

const (
	EventStartGame         EventType = "START_GAME"
	EventPlacePiece        EventType = "PLACE_PIECE"
	EventRequestHint       EventType = "REQUEST_HINT"
	EventHintResult        EventType = "HINT_RESULT"
	EventRequestCheck      EventType = "REQUEST_CHECK"
	EventSolvabilityResult EventType = "SOLVABILITY_RESULT"
	EventRepairStep        EventType = "REPAIR_STEP"
	EventPass              EventType = "PASS"
	EventTurnTimeout       EventType = "TURN_TIMEOUT"
	EventTimerTick         EventType = "TIMER_TICK"
	EventGameEnd           EventType = "GAME_END"
)

// Event is the closed union of game events: the only mutation entrypoint of
// the state machine. All timestamps are supplied by the caller so the
// reducer itself stays pure.
type Event interface {
	Type() EventType
}

// StartGame moves a constructed game from setup into the first turn.
type StartGame struct {
	AtMs int64
}

func (StartGame) Type() EventType { return EventStartGame }

// PlacePiece is the active player's attempt to place a piece.
type PlacePiece struct {
	PlayerID      string
	PieceID       string
	OrientationID string
	Cells         []lattice.Cell
	Provenance    Provenance // defaults to manual when empty
	AtMs          int64
}

func (PlacePiece) Type() EventType { return EventPlacePiece }

// RequestHint asks for a solvability-aware suggestion at an anchor cell.
type RequestHint struct {
	PlayerID string
	Anchor   lattice.Cell
	AtMs     int64
}

func (RequestHint) Type() EventType { return EventRequestHint }

// HintStatus classifies a hint computation's outcome.
type HintStatus string

const (
	HintSuggested    HintStatus = "suggestion"
	HintNoSuggestion HintStatus = "no_suggestion"
	HintError        HintStatus = "error"
	HintInvalidTurn  HintStatus = "invalid_turn"
)

// HintResult re-enters the state machine with the outcome of an outstanding
// hint computation.
type HintResult struct {
	PlayerID   string
	Status     HintStatus
	Suggestion *HintSuggestion // set iff Status == HintSuggested
	AtMs       int64
}

func (HintResult) Type() EventType { return EventHintResult }

// RequestCheck asks for a solvability check of the current board.
type RequestCheck struct {
	PlayerID string
	AtMs     int64
}

func (RequestCheck) Type() EventType { return EventRequestCheck }

// SolvabilityVerdict is the oracle's answer as seen by the state machine.
// Unknown denotes a timeout, not a definitive answer.
type SolvabilityVerdict string

const (
	Solvable   SolvabilityVerdict = "solvable"
	Unsolvable SolvabilityVerdict = "unsolvable"
	Unknown    SolvabilityVerdict = "unknown"
)

// SolvabilityResult re-enters the state machine with an oracle verdict.
// Origin records which flow requested it: a hint pre-check or an explicit
// player check.
type SolvabilityResult struct {
	Origin  RepairReason // RepairReasonHint or RepairReasonCheck
	Verdict SolvabilityVerdict
	AtMs    int64
}

func (SolvabilityResult) Type() EventType { return EventSolvabilityResult }

// StepRepair applies exactly one queued repair step.
type StepRepair struct {
	AtMs int64
}

func (StepRepair) Type() EventType { return EventRepairStep }

// Pass ends the active player's turn without a placement.
type Pass struct {
	PlayerID string
	AtMs     int64
}

func (Pass) Type() EventType { return EventPass }

// TurnTimeout ends the active player's turn because their move timer ran
// out; like Pass it advances the turn without a placement.
type TurnTimeout struct {
	PlayerID string
	AtMs     int64
}

func (TurnTimeout) Type() EventType { return EventTurnTimeout }

// TimerTick decrements the active player's clock. Ticks are ignored outside
// a live, uninterrupted turn in clock mode.
type TimerTick struct {
	DeltaMs int64
	AtMs    int64
}

func (TimerTick) Type() EventType { return EventTimerTick }

// GameEnd forces the game into its terminal state. Idempotent once ended.
type GameEnd struct {
	Reason EndReason
	AtMs   int64
}

func (GameEnd) Type() EventType { return EventGameEnd }
