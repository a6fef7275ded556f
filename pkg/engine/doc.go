// Package engine provides the game state machine of the lattice puzzle: the
// full game state model, the closed event union that is its only mutation
// entrypoint, and a pure reducer that maps (state, event) to the next state.
//
// The reducer performs no I/O and never fails mid-transition: every rejected
// action returns a complete state carrying a human-readable message. Long
// running work (solvability checks, hint generation) is modeled as explicit
// suspension points: the reducer parks in the resolving phase and an external
// driver re-enters with a result event. The only contact with the solvability
// oracle, fit finder and orientation catalog is the four-operation Bundle
// interface, so a deterministic stub can replace the real dependencies
// without touching any transition logic.
package engine
