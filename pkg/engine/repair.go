package engine

// Repair playback is a step-wise sub-machine nested in the reducer: idle →
// running (one step per dispatch) → idle. The reducer enforces step order
// only; pacing between steps belongs entirely to the driver.

// startRepair computes a removal plan via the bundle and enters the
// repairing subphase. A plan without a terminating done step gets one
// appended so playback always finishes.
func (r *Reducer) startRepair(s *GameState, reason RepairReason, initiatorID string, atMs int64) {
	steps := r.bundle.ComputeRepairPlan(s)
	if len(steps) == 0 || steps[len(steps)-1].Kind != RepairStepDone {
		steps = append(steps, RepairStep{Kind: RepairStepDone})
	}
	s.Repair = &RepairSession{
		Steps:       steps,
		Reason:      reason,
		InitiatorID: initiatorID,
	}
	s.Subphase = SubphaseRepairing
}

// applyRepairStep applies exactly one queued step.
func (r *Reducer) applyRepairStep(s *GameState, e StepRepair) {
	session := s.Repair
	if session == nil || session.Done() {
		return
	}

	step := session.Steps[session.Cursor]
	session.Cursor++
	notify(s, Notice{Kind: NoticeRepairProgress, Cursor: session.Cursor, Total: len(session.Steps)})

	switch step.Kind {
	case RepairStepMessage:
		s.Message = step.Message
		narrate(s, "", e.AtMs, "%s", step.Message)

	case RepairStepRemovePiece:
		r.removePlacement(s, step, e.AtMs)

	case RepairStepDone:
		r.finishRepair(s, step, e.AtMs)
	}
}

// removePlacement deletes one placement and charges its original placer.
// A step referencing a placement id no longer present is a no-op; the
// reducer must never fail mid-transition.
func (r *Reducer) removePlacement(s *GameState, step RepairStep, atMs int64) {
	placed, ok := s.Board[step.PlacementID]
	if !ok {
		return
	}
	delete(s.Board, step.PlacementID)
	if s.PlacedCountByPieceID[placed.PieceID] > 0 {
		s.PlacedCountByPieceID[placed.PieceID]--
	}
	if count, known := s.Inventory[placed.PieceID]; known && count != InventoryUnlimited {
		s.Inventory[placed.PieceID] = count + 1
	}

	owner := s.PlayerByID(step.OwnerID)
	if owner == nil {
		owner = s.PlayerByID(placed.PlayerID)
	}
	if owner != nil {
		// Penalty floors at zero: a removal erases at most the point the
		// placement earned.
		delta := step.ScoreDelta
		if delta == 0 {
			delta = -1
		}
		before := owner.Score
		owner.Score += delta
		if owner.Score < 0 {
			owner.Score = 0
		}
		if owner.Score != before {
			notify(s, Notice{Kind: NoticeScorePulse, PlayerID: owner.ID, ScoreDelta: owner.Score - before})
		}
		narrate(s, owner.ID, atMs, "repair removed %s piece placed by %s", placed.PieceID, owner.Name)
	} else {
		narrate(s, "", atMs, "repair removed %s piece", placed.PieceID)
	}
}

// finishRepair ends the session with reason-dependent behavior.
func (r *Reducer) finishRepair(s *GameState, step RepairStep, atMs int64) {
	reason := s.Repair.Reason
	s.Repair = nil
	s.Subphase = SubphaseNormal

	switch reason {
	case RepairReasonHint:
		// Clear the pending hint unconditionally: re-running the same
		// anchor after an unsolvable verdict would loop forever.
		s.PendingHint = nil
		s.Phase = PhaseInTurn
		s.Message = "board repaired; pick a new hint anchor"
		narrate(s, "", atMs, "repair finished (hint, solvable=%t)", step.Solvable)

	case RepairReasonCheck:
		// Repair is corrective, not a move: the turn does not advance.
		s.Phase = PhaseInTurn
		narrate(s, "", atMs, "repair finished (check, solvable=%t)", step.Solvable)

	case RepairReasonEndgame:
		// A bounded attempt, not a guarantee: the game ends regardless of
		// whether solvability was actually restored.
		narrate(s, "", atMs, "endgame repair finished (solvable=%t)", step.Solvable)
		r.endGame(s, EndReasonStalled, atMs)
	}
}
