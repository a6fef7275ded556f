package engine

import (
	"sort"

	"github.com/google/uuid"

	"github.com/ABakker30/koospuzzlev1-sub002/pkg/lattice"
)

// Reducer is the pure game state machine. It owns turn order, placement
// validation, scoring, repair playback and end-of-game detection. The bundle
// is injected at construction; the reducer only ever calls its synchronous
// operations (ComputeRepairPlan, IsPuzzleComplete).
type Reducer struct {
	bundle Bundle
}

// New creates a reducer over the given dependency bundle.
func New(bundle Bundle) *Reducer {
	return &Reducer{bundle: bundle}
}

// Dispatch maps (state, event) to the next state. The input state is never
// mutated; every branch returns a complete state. Once the game has ended,
// all events are no-ops and the input state is returned unchanged.
func (r *Reducer) Dispatch(state GameState, ev Event) GameState {
	if state.Phase == PhaseEnded {
		return state
	}

	s := state.Clone()
	// Transient outputs belong to a single dispatch.
	s.Message = ""
	s.Notices = nil

	switch e := ev.(type) {
	case StartGame:
		r.applyStartGame(&s, e)
	case PlacePiece:
		r.applyPlacePiece(&s, e)
	case RequestHint:
		r.applyRequestHint(&s, e)
	case HintResult:
		r.applyHintResult(&s, e)
	case RequestCheck:
		r.applyRequestCheck(&s, e)
	case SolvabilityResult:
		r.applySolvabilityResult(&s, e)
	case StepRepair:
		r.applyRepairStep(&s, e)
	case Pass:
		r.applyPass(&s, e)
	case TurnTimeout:
		r.applyTurnTimeout(&s, e)
	case TimerTick:
		r.applyTimerTick(&s, e)
	case GameEnd:
		r.endGame(&s, e.Reason, e.AtMs)
	}
	return s
}

func (r *Reducer) applyStartGame(s *GameState, e StartGame) {
	if s.Phase != PhaseSetup {
		return
	}
	s.Phase = PhaseInTurn
	s.Turn = 1
	narrate(s, "", e.AtMs, "game started: %d players, container %q (%d cells)",
		len(s.Players), s.Spec.Name(), s.Spec.Size())
}

// requireActive rejects any player-initiated event whose player id is not
// the current active player. Returns false when rejected.
func requireActive(s *GameState, playerID string, atMs int64) bool {
	active := s.ActivePlayer()
	if active == nil || active.ID != playerID {
		name := playerID
		if p := s.PlayerByID(playerID); p != nil {
			name = p.Name
		}
		reject(s, playerID, atMs, "it is not %s's turn", name)
		return false
	}
	return true
}

func (r *Reducer) applyPlacePiece(s *GameState, e PlacePiece) {
	if s.Phase != PhaseInTurn || s.Subphase != SubphaseNormal {
		reject(s, e.PlayerID, e.AtMs, "placements are only allowed during a live turn")
		return
	}
	if !requireActive(s, e.PlayerID, e.AtMs) {
		return
	}

	count, known := s.Inventory[e.PieceID]
	if !known || count == 0 {
		// Inventory failure: no placement, no turn advance, retry allowed.
		reject(s, e.PlayerID, e.AtMs, "no %q pieces remaining", e.PieceID)
		return
	}

	if msg := validateCells(s, e.Cells); msg != "" {
		reject(s, e.PlayerID, e.AtMs, "%s", msg)
		return
	}

	provenance := e.Provenance
	if provenance == "" {
		provenance = ProvenanceManual
	}
	r.commitPlacement(s, PlacedPiece{
		ID:            uuid.New().String(),
		PieceID:       e.PieceID,
		OrientationID: e.OrientationID,
		Cells:         append([]lattice.Cell(nil), e.Cells...),
		PlacedAtMs:    e.AtMs,
		PlayerID:      e.PlayerID,
		Provenance:    provenance,
	}, e.AtMs)
}

// validateCells checks a proposed covering against the container and the
// board. Returns an empty string when valid.
func validateCells(s *GameState, cells []lattice.Cell) string {
	if len(cells) != 4 {
		return "a placement must cover exactly 4 cells"
	}
	seen := lattice.NewCellSet()
	occupied := s.OccupiedCells()
	for _, c := range cells {
		if seen.Has(c) {
			return "placement cells must be distinct"
		}
		seen.Add(c)
		if !s.Spec.Contains(c) {
			return "cell " + c.Key() + " is outside the container"
		}
		if occupied.Has(c) {
			return "cell " + c.Key() + " is already occupied"
		}
	}
	return ""
}

// commitPlacement applies a validated placement: board, counters, score,
// stall bookkeeping, completion detection, turn advance.
func (r *Reducer) commitPlacement(s *GameState, p PlacedPiece, atMs int64) {
	s.Board[p.ID] = p
	s.PlacedCountByPieceID[p.PieceID]++
	if count := s.Inventory[p.PieceID]; count != InventoryUnlimited {
		s.Inventory[p.PieceID] = count - 1
	}

	// Hint placements count as the turn but score nothing.
	delta := 1
	if p.Provenance == ProvenanceHint {
		delta = 0
	}
	if owner := s.PlayerByID(p.PlayerID); owner != nil {
		owner.Score += delta
	}

	s.TurnPlacementFlag = true
	s.RoundNoPlacementCount = 0

	notify(s, Notice{Kind: NoticePlacement, PlayerID: p.PlayerID, PlacementID: p.ID})
	if delta != 0 {
		notify(s, Notice{Kind: NoticeScorePulse, PlayerID: p.PlayerID, ScoreDelta: delta})
	}
	narrate(s, p.PlayerID, atMs, "placed piece %s (%s)", p.PieceID, p.Provenance)

	if r.bundle.IsPuzzleComplete(s) {
		r.endGame(s, EndReasonCompleted, atMs)
		return
	}
	r.advanceTurn(s, atMs)
}

func (r *Reducer) applyRequestHint(s *GameState, e RequestHint) {
	if s.Subphase == SubphaseRepairing {
		reject(s, e.PlayerID, e.AtMs, "hints are unavailable while the board is being repaired")
		return
	}
	if s.Phase != PhaseInTurn {
		reject(s, e.PlayerID, e.AtMs, "another request is still being resolved")
		return
	}
	if !requireActive(s, e.PlayerID, e.AtMs) {
		return
	}
	player := s.ActivePlayer()
	if player.HintsRemaining == 0 {
		reject(s, e.PlayerID, e.AtMs, "%s has no hints remaining", player.Name)
		return
	}
	if !s.Spec.Contains(e.Anchor) {
		reject(s, e.PlayerID, e.AtMs, "anchor %s is outside the container", e.Anchor.Key())
		return
	}
	if s.OccupiedCells().Has(e.Anchor) {
		reject(s, e.PlayerID, e.AtMs, "anchor %s is already occupied", e.Anchor.Key())
		return
	}

	if player.HintsRemaining != InventoryUnlimited {
		player.HintsRemaining--
	}
	s.PendingHint = &PendingHint{PlayerID: e.PlayerID, Anchor: e.Anchor}
	s.Phase = PhaseResolving
	narrate(s, e.PlayerID, e.AtMs, "requested a hint at %s", e.Anchor.Key())
}

func (r *Reducer) applyHintResult(s *GameState, e HintResult) {
	// Consumed only while the matching hint is outstanding; anything else
	// is a stale result and is dropped.
	if s.Phase != PhaseResolving || s.PendingHint == nil || s.PendingHint.PlayerID != e.PlayerID {
		return
	}

	s.PendingHint = nil
	s.Phase = PhaseInTurn

	switch e.Status {
	case HintNoSuggestion:
		s.Message = "no safe placement found for that anchor"
		narrate(s, e.PlayerID, e.AtMs, "hint: no suggestion")
	case HintError:
		s.Message = "hint computation failed"
		narrate(s, e.PlayerID, e.AtMs, "hint: error")
	case HintInvalidTurn:
		s.Message = "hint no longer applies to this turn"
		narrate(s, e.PlayerID, e.AtMs, "hint: invalid turn")
	case HintSuggested:
		if e.Suggestion == nil {
			s.Message = "hint computation returned no placement"
			return
		}
		r.applySuggestion(s, e)
	}
}

// applySuggestion places a hint suggestion at 0 score if inventory still
// permits it; either way the hint consumes the turn.
func (r *Reducer) applySuggestion(s *GameState, e HintResult) {
	sug := e.Suggestion
	count, known := s.Inventory[sug.PieceID]
	if !known || count == 0 {
		narrate(s, e.PlayerID, e.AtMs, "hint for piece %s arrived after its inventory ran out", sug.PieceID)
		r.advanceTurn(s, e.AtMs)
		return
	}
	if msg := validateCells(s, sug.Cells); msg != "" {
		// The board changed under the suggestion; treat as a defensive no-fit.
		narrate(s, e.PlayerID, e.AtMs, "hint placement no longer fits: %s", msg)
		r.advanceTurn(s, e.AtMs)
		return
	}
	r.commitPlacement(s, PlacedPiece{
		ID:            uuid.New().String(),
		PieceID:       sug.PieceID,
		OrientationID: sug.OrientationID,
		Cells:         append([]lattice.Cell(nil), sug.Cells...),
		PlacedAtMs:    e.AtMs,
		PlayerID:      e.PlayerID,
		Provenance:    ProvenanceHint,
	}, e.AtMs)
}

func (r *Reducer) applyRequestCheck(s *GameState, e RequestCheck) {
	if s.Subphase == SubphaseRepairing {
		reject(s, e.PlayerID, e.AtMs, "checks are unavailable while the board is being repaired")
		return
	}
	if s.Phase != PhaseInTurn {
		reject(s, e.PlayerID, e.AtMs, "another request is still being resolved")
		return
	}
	if !requireActive(s, e.PlayerID, e.AtMs) {
		return
	}
	player := s.ActivePlayer()
	if player.ChecksRemaining == 0 {
		reject(s, e.PlayerID, e.AtMs, "%s has no checks remaining", player.Name)
		return
	}
	if player.ChecksRemaining != InventoryUnlimited {
		player.ChecksRemaining--
	}
	s.Phase = PhaseResolving
	narrate(s, e.PlayerID, e.AtMs, "requested a solvability check")
}

func (r *Reducer) applySolvabilityResult(s *GameState, e SolvabilityResult) {
	if s.Phase != PhaseResolving {
		return
	}
	if s.Subphase == SubphaseRepairing {
		// A repair session is already playing back; a late verdict must not
		// restart it and reset the cursor.
		return
	}

	switch e.Origin {
	case RepairReasonHint:
		if s.PendingHint == nil {
			return
		}
		switch e.Verdict {
		case Unsolvable:
			narrate(s, s.PendingHint.PlayerID, e.AtMs, "board is no longer solvable; starting repair")
			r.startRepair(s, RepairReasonHint, s.PendingHint.PlayerID, e.AtMs)
		case Unknown:
			// A timeout is not an answer; give the turn back.
			player := s.PendingHint.PlayerID
			s.PendingHint = nil
			s.Phase = PhaseInTurn
			s.Message = "solvability check timed out"
			narrate(s, player, e.AtMs, "solvability check timed out")
		case Solvable:
			// Stay resolving: the driver proceeds to the hint computation.
		}

	case RepairReasonCheck:
		if s.PendingHint != nil {
			return
		}
		player := ""
		if p := s.ActivePlayer(); p != nil {
			player = p.ID
		}
		switch e.Verdict {
		case Solvable:
			s.Phase = PhaseInTurn
			s.Message = "the board is still solvable"
			narrate(s, player, e.AtMs, "check: board is solvable")
		case Unknown:
			s.Phase = PhaseInTurn
			s.Message = "solvability check timed out"
			narrate(s, player, e.AtMs, "check: timed out")
		case Unsolvable:
			narrate(s, player, e.AtMs, "check: board is unsolvable; starting repair")
			r.startRepair(s, RepairReasonCheck, player, e.AtMs)
		}
	}
}

func (r *Reducer) applyPass(s *GameState, e Pass) {
	if s.Phase != PhaseInTurn || s.Subphase != SubphaseNormal {
		reject(s, e.PlayerID, e.AtMs, "passing is only allowed during a live turn")
		return
	}
	if !requireActive(s, e.PlayerID, e.AtMs) {
		return
	}
	narrate(s, e.PlayerID, e.AtMs, "passed")
	r.advanceTurn(s, e.AtMs)
}

func (r *Reducer) applyTurnTimeout(s *GameState, e TurnTimeout) {
	if s.Phase != PhaseInTurn || s.Subphase != SubphaseNormal {
		return
	}
	active := s.ActivePlayer()
	if active == nil || active.ID != e.PlayerID {
		// Stale timeout for a turn that already ended.
		return
	}
	narrate(s, e.PlayerID, e.AtMs, "turn timed out")
	r.advanceTurn(s, e.AtMs)
}

func (r *Reducer) applyTimerTick(s *GameState, e TimerTick) {
	// Ticks only apply to a live, uninterrupted turn in clock mode.
	if s.Settings.TimerMode != TimerModeClock ||
		s.Phase != PhaseInTurn || s.Subphase != SubphaseNormal {
		return
	}
	active := s.ActivePlayer()
	if active == nil {
		return
	}
	active.ClockRemainingMs -= e.DeltaMs
	if active.ClockRemainingMs <= 0 {
		active.ClockRemainingMs = 0
		narrate(s, active.ID, e.AtMs, "%s ran out of time", active.Name)
		r.endGame(s, EndReasonTimeout, e.AtMs)
	}
}

// advanceTurn rotates to the next player, or redirects into an endgame
// repair once a full round passes with no placement.
func (r *Reducer) advanceTurn(s *GameState, atMs int64) {
	if !s.TurnPlacementFlag {
		s.RoundNoPlacementCount++
		if s.RoundNoPlacementCount >= len(s.Players) {
			narrate(s, "", atMs, "no placements for a full round; attempting board repair before ending")
			r.startRepair(s, RepairReasonEndgame, "", atMs)
			return
		}
	}
	s.ActiveIdx = (s.ActiveIdx + 1) % len(s.Players)
	s.Turn++
	s.TurnPlacementFlag = false
}

// endGame freezes the game. Idempotent: a second call is a no-op.
func (r *Reducer) endGame(s *GameState, reason EndReason, atMs int64) {
	if s.Phase == PhaseEnded {
		return
	}

	ranking := make([]RankedScore, len(s.Players))
	for i, p := range s.Players {
		ranking[i] = RankedScore{PlayerID: p.ID, Name: p.Name, Score: p.Score}
	}
	sort.SliceStable(ranking, func(a, b int) bool { return ranking[a].Score > ranking[b].Score })

	var winners []string
	if len(ranking) > 0 {
		top := ranking[0].Score
		for _, row := range ranking {
			if row.Score == top {
				winners = append(winners, row.PlayerID)
			}
		}
	}

	s.Phase = PhaseEnded
	s.Subphase = SubphaseNormal
	s.PendingHint = nil
	s.Repair = nil
	s.End = &EndState{
		Reason:    reason,
		WinnerIDs: winners,
		Ranking:   ranking,
		EndedAtMs: atMs,
	}
	notify(s, Notice{Kind: NoticeGameEnd})
	narrate(s, "", atMs, "game ended (%s)", reason)
}
