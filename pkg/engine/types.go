package engine

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ABakker30/koospuzzlev1-sub002/pkg/lattice"
)

// InventoryUnlimited is the sentinel count meaning a piece never runs out.
const InventoryUnlimited = -1

// maxNarrationEntries bounds the narration log; older entries are dropped.
const maxNarrationEntries = 50

// Phase is the top-level lifecycle state of a game.
type Phase string

const (
	// PhaseSetup is the constructed-but-not-started state.
	PhaseSetup Phase = "setup"

	// PhaseInTurn means the active player may act.
	PhaseInTurn Phase = "in_turn"

	// PhaseResolving means exactly one asynchronous computation (hint or
	// solvability check) is outstanding; player actions are rejected.
	PhaseResolving Phase = "resolving"

	// PhaseEnded is terminal; all further events are no-ops.
	PhaseEnded Phase = "ended"
)

// Subphase qualifies a phase; repairing runs nested inside in_turn or
// resolving while a repair session plays back.
type Subphase string

const (
	SubphaseNormal    Subphase = "normal"
	SubphaseRepairing Subphase = "repairing"
)

// PlayerKind distinguishes human seats from automated ones.
type PlayerKind string

const (
	PlayerHuman     PlayerKind = "human"
	PlayerAutomated PlayerKind = "automated"
)

// Provenance records how a placement came to be.
type Provenance string

const (
	ProvenanceManual    Provenance = "manual"
	ProvenanceHint      Provenance = "hint"
	ProvenanceAutomated Provenance = "automated"
)

// RepairReason records what triggered a repair session.
type RepairReason string

const (
	RepairReasonHint    RepairReason = "hint"
	RepairReasonCheck   RepairReason = "check"
	RepairReasonEndgame RepairReason = "endgame"
)

// EndReason records why a game ended.
type EndReason string

const (
	EndReasonCompleted EndReason = "completed"
	EndReasonStalled   EndReason = "stalled"
	EndReasonTimeout   EndReason = "timeout"
)

// TimerMode selects the clock rule for a game.
type TimerMode string

const (
	// TimerModeNone disables clocks; timer ticks are ignored.
	TimerModeNone TimerMode = "none"

	// TimerModeClock gives each player a running clock that ticks down
	// during their own live, uninterrupted turn.
	TimerModeClock TimerMode = "clock"
)

// PlayerState is one seat at the table.
type PlayerState struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Kind             PlayerKind `json:"kind"`
	Color            string     `json:"color"`
	Score            int        `json:"score"`
	HintsRemaining   int        `json:"hints_remaining"`  // InventoryUnlimited = no limit
	ChecksRemaining  int        `json:"checks_remaining"` // InventoryUnlimited = no limit
	ClockRemainingMs int64      `json:"clock_remaining_ms,omitempty"`
}

// PlacedPiece is one placement on the board.
type PlacedPiece struct {
	ID            string         `json:"id"` // UUID, unique per placement
	PieceID       string         `json:"piece_id"`
	OrientationID string         `json:"orientation_id"`
	Cells         []lattice.Cell `json:"cells"`
	PlacedAtMs    int64          `json:"placed_at_ms"`
	PlayerID      string         `json:"player_id"`
	Provenance    Provenance     `json:"provenance"`
}

// PendingHint marks an outstanding hint computation.
type PendingHint struct {
	PlayerID string       `json:"player_id"`
	Anchor   lattice.Cell `json:"anchor"`
}

// HintSuggestion is a verified (or at least topologically valid) placement
// proposal returned by the hint generator.
type HintSuggestion struct {
	PieceID       string         `json:"piece_id"`
	OrientationID string         `json:"orientation_id"`
	Cells         []lattice.Cell `json:"cells"`
}

// RepairStepKind discriminates the repair playback steps.
type RepairStepKind string

const (
	RepairStepMessage     RepairStepKind = "message"
	RepairStepRemovePiece RepairStepKind = "remove_piece"
	RepairStepDone        RepairStepKind = "done"
)

// RepairStep is one unit of repair playback. Exactly one step is applied per
// dispatch, so a driver can pace the visible removals at any interval.
type RepairStep struct {
	Kind        RepairStepKind `json:"kind"`
	Message     string         `json:"message,omitempty"`
	PlacementID string         `json:"placement_id,omitempty"`
	OwnerID     string         `json:"owner_id,omitempty"`
	ScoreDelta  int            `json:"score_delta,omitempty"`
	Solvable    bool           `json:"solvable,omitempty"` // done steps only
}

// RepairSession is an in-progress repair playback.
type RepairSession struct {
	Steps       []RepairStep `json:"steps"`
	Cursor      int          `json:"cursor"`
	Reason      RepairReason `json:"reason"`
	InitiatorID string       `json:"initiator_id,omitempty"`
}

// Done reports whether every step has been applied.
func (r *RepairSession) Done() bool {
	return r.Cursor >= len(r.Steps)
}

// RankedScore is one row of the end-of-game summary.
type RankedScore struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
}

// EndState is the frozen end-of-game summary. Winners are all players tied
// for the maximum score; ties are permitted.
type EndState struct {
	Reason    EndReason     `json:"reason"`
	WinnerIDs []string      `json:"winner_ids"`
	Ranking   []RankedScore `json:"ranking"`
	EndedAtMs int64         `json:"ended_at_ms"`
}

// NarrationEntry is one line of the bounded, most-recent-first game log.
type NarrationEntry struct {
	Turn     int    `json:"turn"`
	PlayerID string `json:"player_id,omitempty"`
	Text     string `json:"text"`
	AtMs     int64  `json:"at_ms"`
}

// NoticeKind discriminates the discrete UI notifications emitted alongside a
// state transition.
type NoticeKind string

const (
	NoticePlacement      NoticeKind = "placement"
	NoticeScorePulse     NoticeKind = "score_pulse"
	NoticeRepairProgress NoticeKind = "repair_progress"
	NoticeGameEnd        NoticeKind = "game_end"
)

// Notice is a discrete notification for rendering collaborators: placement
// highlights, score-change pulses, repair progress and the end summary.
// Notices are transient; each dispatch replaces the previous set.
type Notice struct {
	Kind        NoticeKind `json:"kind"`
	PlayerID    string     `json:"player_id,omitempty"`
	PlacementID string     `json:"placement_id,omitempty"`
	ScoreDelta  int        `json:"score_delta,omitempty"`
	Cursor      int        `json:"cursor,omitempty"`
	Total       int        `json:"total,omitempty"`
}

// Settings carries the timer mode and rule toggles fixed at construction.
type Settings struct {
	TimerMode       TimerMode `json:"timer_mode" yaml:"timer_mode"`
	ClockMs         int64     `json:"clock_ms" yaml:"clock_ms"` // initial per-player clock, TimerModeClock only
	HintsPerPlayer  int       `json:"hints_per_player" yaml:"hints_per_player"`   // InventoryUnlimited = no limit
	ChecksPerPlayer int       `json:"checks_per_player" yaml:"checks_per_player"` // InventoryUnlimited = no limit
}

// Validate checks the settings for internal consistency.
func (s Settings) Validate() error {
	switch s.TimerMode {
	case TimerModeNone, TimerModeClock:
	default:
		return fmt.Errorf("unknown timer mode: %q", s.TimerMode)
	}
	if s.TimerMode == TimerModeClock && s.ClockMs <= 0 {
		return fmt.Errorf("clock_ms must be positive in clock mode, got %d", s.ClockMs)
	}
	if s.HintsPerPlayer < InventoryUnlimited {
		return fmt.Errorf("hints_per_player must be >= -1, got %d", s.HintsPerPlayer)
	}
	if s.ChecksPerPlayer < InventoryUnlimited {
		return fmt.Errorf("checks_per_player must be >= -1, got %d", s.ChecksPerPlayer)
	}
	return nil
}

// GameState is the full state of one game instance. It is created by
// NewGameState, mutated exclusively through the reducer, and frozen once
// Phase is PhaseEnded.
type GameState struct {
	GameID   string   `json:"game_id"`
	Phase    Phase    `json:"phase"`
	Subphase Subphase `json:"subphase"`

	Players   []PlayerState `json:"players"`
	ActiveIdx int           `json:"active_idx"`
	Turn      int           `json:"turn"`

	Board                map[string]PlacedPiece `json:"board"` // placement id -> piece; cells pairwise disjoint
	PlacedCountByPieceID map[string]int         `json:"placed_count_by_piece_id"`
	Inventory            map[string]int         `json:"inventory"` // piece id -> remaining, InventoryUnlimited = no limit

	Spec *lattice.PuzzleSpec `json:"-"`

	PendingHint *PendingHint   `json:"pending_hint,omitempty"`
	Repair      *RepairSession `json:"repair,omitempty"`
	End         *EndState      `json:"end,omitempty"`

	Narration []NarrationEntry `json:"narration"`
	Settings  Settings         `json:"settings"`

	RoundNoPlacementCount int  `json:"round_no_placement_count"`
	TurnPlacementFlag     bool `json:"turn_placement_flag"`

	// Transient per-dispatch outputs.
	Message string   `json:"message,omitempty"`
	Notices []Notice `json:"notices,omitempty"`
}

// PlayerSetup configures one seat in SetupInput.
type PlayerSetup struct {
	ID    string     `json:"id,omitempty" yaml:"id,omitempty"` // generated when empty
	Name  string     `json:"name" yaml:"name"`
	Kind  PlayerKind `json:"kind" yaml:"kind"`
	Color string     `json:"color,omitempty" yaml:"color,omitempty"`
}

// SetupInput configures roster, piece availability, timer mode and rule
// toggles at construction time.
type SetupInput struct {
	GameID    string         `json:"game_id,omitempty" yaml:"game_id,omitempty"` // generated when empty
	Players   []PlayerSetup  `json:"players" yaml:"players"`
	Inventory map[string]int `json:"inventory" yaml:"inventory"`
	Settings  Settings       `json:"settings" yaml:"settings"`
}

// Validate checks the setup input. Player ids left empty are not an error;
// NewGameState generates them.
func (in SetupInput) Validate() error {
	if len(in.Players) == 0 {
		return fmt.Errorf("at least one player is required")
	}
	seen := make(map[string]struct{}, len(in.Players))
	for i, p := range in.Players {
		if p.Name == "" {
			return fmt.Errorf("player %d: name cannot be empty", i)
		}
		switch p.Kind {
		case PlayerHuman, PlayerAutomated:
		default:
			return fmt.Errorf("player %q: unknown kind %q", p.Name, p.Kind)
		}
		if p.ID != "" {
			if _, dup := seen[p.ID]; dup {
				return fmt.Errorf("duplicate player id %q", p.ID)
			}
			seen[p.ID] = struct{}{}
		}
	}
	if len(in.Inventory) == 0 {
		return fmt.Errorf("inventory cannot be empty")
	}
	for pieceID, count := range in.Inventory {
		if count < InventoryUnlimited {
			return fmt.Errorf("inventory for piece %q must be >= -1, got %d", pieceID, count)
		}
	}
	return in.Settings.Validate()
}

// NewGameState is the one constructor for game state. The result is in
// PhaseSetup; dispatching StartGame moves it into the first turn.
func NewGameState(in SetupInput, spec *lattice.PuzzleSpec) (GameState, error) {
	if err := in.Validate(); err != nil {
		return GameState{}, fmt.Errorf("invalid setup: %w", err)
	}
	if spec == nil {
		return GameState{}, fmt.Errorf("puzzle spec is required")
	}

	gameID := in.GameID
	if gameID == "" {
		gameID = uuid.New().String()
	}

	players := make([]PlayerState, len(in.Players))
	for i, p := range in.Players {
		id := p.ID
		if id == "" {
			id = uuid.New().String()
		}
		players[i] = PlayerState{
			ID:              id,
			Name:            p.Name,
			Kind:            p.Kind,
			Color:           p.Color,
			HintsRemaining:  in.Settings.HintsPerPlayer,
			ChecksRemaining: in.Settings.ChecksPerPlayer,
		}
		if in.Settings.TimerMode == TimerModeClock {
			players[i].ClockRemainingMs = in.Settings.ClockMs
		}
	}

	inventory := make(map[string]int, len(in.Inventory))
	for k, v := range in.Inventory {
		inventory[k] = v
	}

	return GameState{
		GameID:               gameID,
		Phase:                PhaseSetup,
		Subphase:             SubphaseNormal,
		Players:              players,
		ActiveIdx:            0,
		Turn:                 0,
		Board:                make(map[string]PlacedPiece),
		PlacedCountByPieceID: make(map[string]int),
		Inventory:            inventory,
		Spec:                 spec,
		Settings:             in.Settings,
	}, nil
}

// ActivePlayer returns the player whose turn it is.
func (s *GameState) ActivePlayer() *PlayerState {
	if s.ActiveIdx < 0 || s.ActiveIdx >= len(s.Players) {
		return nil
	}
	return &s.Players[s.ActiveIdx]
}

// PlayerByID finds a player by id, or nil.
func (s *GameState) PlayerByID(id string) *PlayerState {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return &s.Players[i]
		}
	}
	return nil
}

// OccupiedCells returns the set of cells covered by all placements.
func (s *GameState) OccupiedCells() lattice.CellSet {
	occupied := lattice.NewCellSet()
	for _, p := range s.Board {
		for _, c := range p.Cells {
			occupied.Add(c)
		}
	}
	return occupied
}

// Clone returns a deep copy. The puzzle spec pointer is shared: the spec is
// immutable by construction.
func (s GameState) Clone() GameState {
	out := s

	out.Players = make([]PlayerState, len(s.Players))
	copy(out.Players, s.Players)

	out.Board = make(map[string]PlacedPiece, len(s.Board))
	for id, p := range s.Board {
		cp := p
		cp.Cells = append([]lattice.Cell(nil), p.Cells...)
		out.Board[id] = cp
	}

	out.PlacedCountByPieceID = make(map[string]int, len(s.PlacedCountByPieceID))
	for k, v := range s.PlacedCountByPieceID {
		out.PlacedCountByPieceID[k] = v
	}

	out.Inventory = make(map[string]int, len(s.Inventory))
	for k, v := range s.Inventory {
		out.Inventory[k] = v
	}

	if s.PendingHint != nil {
		ph := *s.PendingHint
		out.PendingHint = &ph
	}
	if s.Repair != nil {
		r := *s.Repair
		r.Steps = append([]RepairStep(nil), s.Repair.Steps...)
		out.Repair = &r
	}
	if s.End != nil {
		e := *s.End
		e.WinnerIDs = append([]string(nil), s.End.WinnerIDs...)
		e.Ranking = append([]RankedScore(nil), s.End.Ranking...)
		out.End = &e
	}

	out.Narration = append([]NarrationEntry(nil), s.Narration...)
	out.Notices = append([]Notice(nil), s.Notices...)

	return out
}
