package ledger

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/ABakker30/koospuzzlev1-sub002/pkg/engine"
)

// SessionRecord is the authoritative, versioned header of one game session.
// Version increases by exactly one per accepted write; a stale writer is
// rejected instead of overwriting newer state.
type SessionRecord struct {
	GameID      string       `json:"game_id"`
	Version     int64        `json:"version"`
	Phase       engine.Phase `json:"phase"`
	PlayerCount int          `json:"player_count"`
	UpdatedAtMs int64        `json:"updated_at_ms"`
}

// Validate checks the record's structural integrity.
func (r *SessionRecord) Validate() error {
	if r.GameID == "" {
		return fmt.Errorf("game id cannot be empty")
	}
	if r.Version < 1 {
		return fmt.Errorf("version must be >= 1, got %d", r.Version)
	}
	switch r.Phase {
	case engine.PhaseSetup, engine.PhaseInTurn, engine.PhaseResolving, engine.PhaseEnded:
	default:
		return fmt.Errorf("unknown phase: %q", r.Phase)
	}
	if r.PlayerCount < 1 {
		return fmt.Errorf("player count must be >= 1, got %d", r.PlayerCount)
	}
	return nil
}

// SessionToHash converts a session record to a Redis hash field map.
func SessionToHash(r *SessionRecord) map[string]interface{} {
	return map[string]interface{}{
		"game_id":       r.GameID,
		"version":       strconv.FormatInt(r.Version, 10),
		"phase":         string(r.Phase),
		"player_count":  strconv.Itoa(r.PlayerCount),
		"updated_at_ms": strconv.FormatInt(r.UpdatedAtMs, 10),
	}
}

// HashToSession converts a Redis hash back to a session record.
func HashToSession(hash map[string]string) (*SessionRecord, error) {
	version, err := strconv.ParseInt(hash["version"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid version field: %w", err)
	}
	playerCount, err := strconv.Atoi(hash["player_count"])
	if err != nil {
		return nil, fmt.Errorf("invalid player_count field: %w", err)
	}
	updatedAt, err := strconv.ParseInt(hash["updated_at_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid updated_at_ms field: %w", err)
	}
	return &SessionRecord{
		GameID:      hash["game_id"],
		Version:     version,
		Phase:       engine.Phase(hash["phase"]),
		PlayerCount: playerCount,
		UpdatedAtMs: updatedAt,
	}, nil
}

// Envelope is one logged game event: the wire form appended to the event log
// and published on the move channel. Seq is assigned by the append and is the
// 1-based position in the log.
type Envelope struct {
	ID       string           `json:"id"`
	Seq      int64            `json:"seq,omitempty"`
	Type     engine.EventType `json:"type"`
	PlayerID string           `json:"player_id,omitempty"`
	Payload  json.RawMessage  `json:"payload"`
	AtMs     int64            `json:"at_ms"`
}

// Validate checks the envelope's structural integrity.
func (e *Envelope) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("envelope id cannot be empty")
	}
	if _, err := uuid.Parse(e.ID); err != nil {
		return fmt.Errorf("invalid envelope id: %w", err)
	}
	if e.Type == "" {
		return fmt.Errorf("envelope type cannot be empty")
	}
	if len(e.Payload) == 0 {
		return fmt.Errorf("envelope payload cannot be empty")
	}
	return nil
}

// Decode rebuilds the typed engine event from the envelope payload.
func (e *Envelope) Decode() (engine.Event, error) {
	switch e.Type {
	case engine.EventStartGame:
		var ev engine.StartGame
		return decodeInto(e, &ev)
	case engine.EventPlacePiece:
		var ev engine.PlacePiece
		return decodeInto(e, &ev)
	case engine.EventRequestHint:
		var ev engine.RequestHint
		return decodeInto(e, &ev)
	case engine.EventHintResult:
		var ev engine.HintResult
		return decodeInto(e, &ev)
	case engine.EventRequestCheck:
		var ev engine.RequestCheck
		return decodeInto(e, &ev)
	case engine.EventSolvabilityResult:
		var ev engine.SolvabilityResult
		return decodeInto(e, &ev)
	case engine.EventRepairStep:
		var ev engine.StepRepair
		return decodeInto(e, &ev)
	case engine.EventPass:
		var ev engine.Pass
		return decodeInto(e, &ev)
	case engine.EventTurnTimeout:
		var ev engine.TurnTimeout
		return decodeInto(e, &ev)
	case engine.EventTimerTick:
		var ev engine.TimerTick
		return decodeInto(e, &ev)
	case engine.EventGameEnd:
		var ev engine.GameEnd
		return decodeInto(e, &ev)
	default:
		return nil, fmt.Errorf("unknown event type: %q", e.Type)
	}
}

func decodeInto[T engine.Event](e *Envelope, v *T) (engine.Event, error) {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
	}
	return *v, nil
}

// playerID extracts the acting player from the events that carry one, for
// envelope bookkeeping.
func playerID(ev engine.Event) string {
	switch e := ev.(type) {
	case engine.PlacePiece:
		return e.PlayerID
	case engine.RequestHint:
		return e.PlayerID
	case engine.HintResult:
		return e.PlayerID
	case engine.RequestCheck:
		return e.PlayerID
	case engine.Pass:
		return e.PlayerID
	case engine.TurnTimeout:
		return e.PlayerID
	default:
		return ""
	}
}

// atMs extracts the event timestamp for envelope bookkeeping.
func atMs(ev engine.Event) int64 {
	switch e := ev.(type) {
	case engine.StartGame:
		return e.AtMs
	case engine.PlacePiece:
		return e.AtMs
	case engine.RequestHint:
		return e.AtMs
	case engine.HintResult:
		return e.AtMs
	case engine.RequestCheck:
		return e.AtMs
	case engine.SolvabilityResult:
		return e.AtMs
	case engine.StepRepair:
		return e.AtMs
	case engine.Pass:
		return e.AtMs
	case engine.TurnTimeout:
		return e.AtMs
	case engine.TimerTick:
		return e.AtMs
	case engine.GameEnd:
		return e.AtMs
	default:
		return 0
	}
}
