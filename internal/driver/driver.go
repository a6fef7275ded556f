// Package driver hosts the game state machine: it owns the authoritative
// local state, serializes event dispatch, performs the asynchronous hint and
// solvability computations the reducer suspends for, paces repair playback,
// runs the clock, and keeps the session ledger in sync.
//
// The reducer itself is pure; everything impure (goroutines, timers, Redis,
// wall clock) lives here.
package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ABakker30/koospuzzlev1-sub002/internal/ledger"
	"github.com/ABakker30/koospuzzlev1-sub002/pkg/engine"
)

const (
	// DefaultRepairStepInterval paces repair playback so removals are
	// visible one at a time.
	DefaultRepairStepInterval = 400 * time.Millisecond

	// DefaultClockTickInterval is the clock resolution in timed games.
	DefaultClockTickInterval = 250 * time.Millisecond
)

// Options configures a driver. Zero values select the defaults; a nil Ledger
// runs the game purely locally.
type Options struct {
	// Ledger is the optional authoritative session store.
	Ledger *ledger.Client

	// LocalPlayerIDs names the seats this process drives. Asynchronous
	// resolutions (hints, checks) run only for local seats so that two
	// connected drivers do not race to answer the same request. Empty means
	// all seats are local.
	LocalPlayerIDs []string

	// OnStateChange is invoked with a state copy after every transition.
	OnStateChange func(engine.GameState)

	RepairStepInterval time.Duration
	ClockTickInterval  time.Duration

	// NowMs supplies event timestamps; defaults to the wall clock.
	NowMs func() int64
}

// Driver hosts one game. Safe for concurrent use.
type Driver struct {
	reducer *engine.Reducer
	bundle  engine.Bundle
	opts    Options
	gameID  string

	mu        sync.Mutex
	state     engine.GameState
	seq       int64 // last ledger sequence number applied
	resolving bool
	repairing bool
}

// New creates a driver over an initial state and dependency bundle.
func New(state engine.GameState, bundle engine.Bundle, opts Options) *Driver {
	if opts.RepairStepInterval <= 0 {
		opts.RepairStepInterval = DefaultRepairStepInterval
	}
	if opts.ClockTickInterval <= 0 {
		opts.ClockTickInterval = DefaultClockTickInterval
	}
	if opts.NowMs == nil {
		opts.NowMs = func() int64 { return time.Now().UnixMilli() }
	}
	return &Driver{
		reducer: engine.New(bundle),
		bundle:  bundle,
		opts:    opts,
		gameID:  state.GameID,
		state:   state,
	}
}

// State returns a copy of the current game state.
func (d *Driver) State() engine.GameState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Clone()
}

// Apply dispatches a locally originated event, records it in the ledger, and
// kicks off any follow-up work the new state calls for. The returned state is
// a copy; a ledger error does not roll the local transition back.
func (d *Driver) Apply(ctx context.Context, ev engine.Event) (engine.GameState, error) {
	return d.apply(ctx, ev, true)
}

func (d *Driver) apply(ctx context.Context, ev engine.Event, record bool) (engine.GameState, error) {
	d.mu.Lock()
	d.state = d.reducer.Dispatch(d.state, ev)

	var recordErr error
	if record && d.opts.Ledger != nil {
		recordErr = d.record(ctx, ev)
	}

	// A repair session keeps the phase at resolving while it plays back;
	// resolution must not be respawned for every repair step.
	startResolve := d.state.Phase == engine.PhaseResolving &&
		d.state.Subphase != engine.SubphaseRepairing &&
		!d.resolving && d.ownsResolution(&d.state)
	if startResolve {
		d.resolving = true
	}
	startRepair := d.state.Subphase == engine.SubphaseRepairing && !d.repairing
	if startRepair {
		d.repairing = true
	}
	snapshot := d.state.Clone()
	d.mu.Unlock()

	d.logEvent("event_applied", map[string]interface{}{
		"event": string(ev.Type()),
		"phase": string(snapshot.Phase),
		"turn":  snapshot.Turn,
	})
	if d.opts.OnStateChange != nil {
		d.opts.OnStateChange(snapshot)
	}
	if startResolve {
		go d.resolve(ctx, snapshot)
	}
	if startRepair {
		go d.playRepair(ctx)
	}
	return snapshot, recordErr
}

// record appends the event to the ledger and persists the session header and
// snapshot. Called with the state lock held.
func (d *Driver) record(ctx context.Context, ev engine.Event) error {
	env, err := d.opts.Ledger.AppendEvent(ctx, ev)
	if err != nil {
		d.logEvent("ledger_append_failed", map[string]interface{}{"error": err.Error()})
		return fmt.Errorf("failed to record event: %w", err)
	}
	if env.Seq != d.seq+1 {
		// Another writer appended in between; their envelope will arrive on
		// the move channel, or the gap is closed by the next resync.
		d.logEvent("ledger_sequence_gap", map[string]interface{}{
			"expected": d.seq + 1,
			"got":      env.Seq,
		})
	}
	d.seq = env.Seq

	if err := d.opts.Ledger.SaveSnapshot(ctx, d.state, d.seq); err != nil {
		d.logEvent("ledger_snapshot_failed", map[string]interface{}{"error": err.Error()})
	}
	rec := &ledger.SessionRecord{
		GameID:      d.state.GameID,
		Version:     d.seq,
		Phase:       d.state.Phase,
		PlayerCount: len(d.state.Players),
		UpdatedAtMs: d.opts.NowMs(),
	}
	if err := d.opts.Ledger.PutSession(ctx, rec); err != nil && !errors.Is(err, ledger.ErrStaleWrite) {
		d.logEvent("ledger_session_failed", map[string]interface{}{"error": err.Error()})
	}
	return nil
}

// ownsResolution reports whether this driver should answer the outstanding
// asynchronous request. Called with the state lock held.
func (d *Driver) ownsResolution(s *engine.GameState) bool {
	if len(d.opts.LocalPlayerIDs) == 0 {
		return true
	}
	requester := ""
	if s.PendingHint != nil {
		requester = s.PendingHint.PlayerID
	} else if p := s.ActivePlayer(); p != nil {
		requester = p.ID
	}
	for _, id := range d.opts.LocalPlayerIDs {
		if id == requester {
			return true
		}
	}
	return false
}

// resolve performs the asynchronous computation the game is suspended on:
// the solvability pre-check, then for hints the placement search. Results
// re-enter the state machine as events. A panic in the dependency bundle is
// converted into an error result so the game never wedges in resolving.
func (d *Driver) resolve(ctx context.Context, snap engine.GameState) {
	hint := snap.PendingHint
	defer func() {
		d.mu.Lock()
		d.resolving = false
		d.mu.Unlock()
		if r := recover(); r != nil {
			d.logEvent("resolve_panic", map[string]interface{}{"panic": fmt.Sprint(r)})
			if hint != nil {
				d.Apply(ctx, engine.HintResult{PlayerID: hint.PlayerID, Status: engine.HintError, AtMs: d.opts.NowMs()})
			} else {
				d.Apply(ctx, engine.SolvabilityResult{Origin: engine.RepairReasonCheck, Verdict: engine.Unknown, AtMs: d.opts.NowMs()})
			}
		}
	}()

	if hint == nil {
		outcome := d.bundle.SolvabilityCheck(ctx, &snap)
		d.logEvent("solvability_check", map[string]interface{}{
			"verdict":     string(outcome.Verdict),
			"nodes":       outcome.Nodes,
			"duration_ms": outcome.DurationMs,
		})
		d.Apply(ctx, engine.SolvabilityResult{Origin: engine.RepairReasonCheck, Verdict: outcome.Verdict, AtMs: d.opts.NowMs()})
		return
	}

	outcome := d.bundle.SolvabilityCheck(ctx, &snap)
	d.logEvent("solvability_check", map[string]interface{}{
		"verdict":     string(outcome.Verdict),
		"nodes":       outcome.Nodes,
		"duration_ms": outcome.DurationMs,
	})
	next, _ := d.Apply(ctx, engine.SolvabilityResult{Origin: engine.RepairReasonHint, Verdict: outcome.Verdict, AtMs: d.opts.NowMs()})
	if outcome.Verdict != engine.Solvable || next.Phase != engine.PhaseResolving || next.PendingHint == nil {
		// Unsolvable went into repair; unknown handed the turn back.
		return
	}

	sug := d.bundle.GenerateHint(ctx, &next, hint.Anchor)
	status := engine.HintSuggested
	if sug == nil {
		status = engine.HintNoSuggestion
	}
	d.Apply(ctx, engine.HintResult{
		PlayerID:   hint.PlayerID,
		Status:     status,
		Suggestion: sug,
		AtMs:       d.opts.NowMs(),
	})
}

// playRepair steps the queued repair session at the configured pace until it
// completes or the game ends.
func (d *Driver) playRepair(ctx context.Context) {
	defer func() {
		d.mu.Lock()
		d.repairing = false
		d.mu.Unlock()
	}()

	for {
		st := d.State()
		if st.Subphase != engine.SubphaseRepairing || st.Phase == engine.PhaseEnded {
			return
		}
		d.Apply(ctx, engine.StepRepair{AtMs: d.opts.NowMs()})

		select {
		case <-ctx.Done():
			return
		case <-time.After(d.opts.RepairStepInterval):
		}
	}
}

// RunClock drives the per-player clock in timed games. Blocks until the
// context is cancelled or the game ends. A no-op in untimed games.
func (d *Driver) RunClock(ctx context.Context) {
	if d.State().Settings.TimerMode != engine.TimerModeClock {
		return
	}
	ticker := time.NewTicker(d.opts.ClockTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st, _ := d.Apply(ctx, engine.TimerTick{
				DeltaMs: d.opts.ClockTickInterval.Milliseconds(),
				AtMs:    d.opts.NowMs(),
			})
			if st.Phase == engine.PhaseEnded {
				return
			}
		}
	}
}

// logEvent emits a structured JSON log entry.
func (d *Driver) logEvent(eventType string, fields map[string]interface{}) {
	entry := map[string]interface{}{
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"event_type": eventType,
		"game_id":    d.gameID,
	}
	for k, v := range fields {
		entry[k] = v
	}
	data, err := json.Marshal(entry)
	if err != nil {
		log.Printf("failed to marshal log entry: %v", err)
		return
	}
	log.Println(string(data))
}
