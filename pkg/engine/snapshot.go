package engine

import (
	"encoding/json"
	"fmt"

	"github.com/ABakker30/koospuzzlev1-sub002/pkg/lattice"
)

// Snapshot serialization for the persistence boundary and the multiplayer
// ledger. The puzzle spec is not directly serializable (it is an opaque
// immutable value), so its target cells travel alongside the state and the
// spec is rebuilt on decode.

// snapshot is the wire form of a full game state.
type snapshot struct {
	State     GameState `json:"state"`
	SpecName  string    `json:"spec_name"`
	SpecCells []string  `json:"spec_cells"`
}

// EncodeSnapshot serializes a full game state to JSON.
func EncodeSnapshot(s GameState) ([]byte, error) {
	cells := s.Spec.TargetCells()
	keys := make([]string, len(cells))
	for i, c := range cells {
		keys[i] = c.Key()
	}
	data, err := json.Marshal(snapshot{State: s, SpecName: s.Spec.Name(), SpecCells: keys})
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot restores a game state from its JSON snapshot form.
func DecodeSnapshot(data []byte) (GameState, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return GameState{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	cells := make([]lattice.Cell, len(snap.SpecCells))
	for i, key := range snap.SpecCells {
		c, err := lattice.ParseCell(key)
		if err != nil {
			return GameState{}, fmt.Errorf("invalid snapshot spec cell: %w", err)
		}
		cells[i] = c
	}
	spec, err := lattice.NewPuzzleSpec(snap.SpecName, cells)
	if err != nil {
		return GameState{}, fmt.Errorf("invalid snapshot spec: %w", err)
	}

	state := snap.State
	state.Spec = spec
	if state.Board == nil {
		state.Board = make(map[string]PlacedPiece)
	}
	if state.PlacedCountByPieceID == nil {
		state.PlacedCountByPieceID = make(map[string]int)
	}
	if state.Inventory == nil {
		state.Inventory = make(map[string]int)
	}
	return state, nil
}
