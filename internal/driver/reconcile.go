package driver

import (
	"context"
	"fmt"

	"github.com/ABakker30/koospuzzlev1-sub002/internal/ledger"
	"github.com/ABakker30/koospuzzlev1-sub002/pkg/engine"
)

// Ledger reconciliation. The ledger copy of the session is authoritative:
// when a driver discovers it has diverged (missed envelopes, lost a version
// race, reconnected after an outage) it discards its local state and rebuilds
// from the stored snapshot plus the event log tail, then replays any locally
// queued events through normal dispatch so illegal ones are rejected rather
// than merged.

// Run consumes the ledger's move channel, applying remote envelopes in
// sequence order. Gaps trigger a full resync. Blocks until the context is
// cancelled or the subscription fails.
func (d *Driver) Run(ctx context.Context) error {
	if d.opts.Ledger == nil {
		return fmt.Errorf("driver has no ledger to run against")
	}

	sub, err := d.opts.Ledger.SubscribeMoves(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to moves: %w", err)
	}
	defer sub.Close()

	d.logEvent("run_started", nil)
	for {
		select {
		case <-ctx.Done():
			d.logEvent("run_stopped", map[string]interface{}{"reason": "context cancelled"})
			return ctx.Err()

		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			d.logEvent("subscription_error", map[string]interface{}{"error": err.Error()})

		case env, ok := <-sub.Events():
			if !ok {
				d.logEvent("run_stopped", map[string]interface{}{"reason": "subscription closed"})
				return nil
			}
			d.handleRemote(ctx, env)
		}
	}
}

// handleRemote applies one remote envelope, resyncing on any sequence gap.
func (d *Driver) handleRemote(ctx context.Context, env *ledger.Envelope) {
	d.mu.Lock()
	switch {
	case env.Seq <= d.seq:
		// Own echo or already applied.
		d.mu.Unlock()
		return
	case env.Seq != d.seq+1:
		d.mu.Unlock()
		d.logEvent("remote_gap", map[string]interface{}{
			"expected": d.seq + 1,
			"got":      env.Seq,
		})
		if err := d.Resync(ctx); err != nil {
			d.logEvent("resync_failed", map[string]interface{}{"error": err.Error()})
		}
		return
	}
	d.mu.Unlock()

	if err := env.Validate(); err != nil {
		d.logEvent("remote_invalid", map[string]interface{}{
			"seq":   env.Seq,
			"error": err.Error(),
		})
		return
	}
	ev, err := env.Decode()
	if err != nil {
		d.logEvent("remote_decode_failed", map[string]interface{}{
			"seq":   env.Seq,
			"error": err.Error(),
		})
		return
	}

	d.mu.Lock()
	if env.Seq != d.seq+1 {
		// Lost a race while decoding; the resync path will catch up.
		d.mu.Unlock()
		return
	}
	d.seq = env.Seq
	d.mu.Unlock()

	d.logEvent("remote_applied", map[string]interface{}{
		"seq":   env.Seq,
		"event": string(env.Type),
	})
	// Remote envelopes are already recorded; apply without re-appending.
	d.apply(ctx, ev, false)
}

// Resync discards local state and rebuilds from the ledger: snapshot first,
// then the event log tail past the snapshot's version. Queued events supplied
// by the caller are replayed afterwards through normal dispatch and
// recording, so the reducer re-validates each one against the fresh state.
func (d *Driver) Resync(ctx context.Context, queued ...engine.Event) error {
	if d.opts.Ledger == nil {
		return nil
	}

	// The snapshot carries its own version; the session record's version may
	// be ahead of a snapshot a slow writer overwrote. Replaying the tail
	// from the snapshot's version covers the difference either way.
	state, snapVersion, err := d.opts.Ledger.LoadSnapshot(ctx)
	if ledger.IsNotFound(err) {
		// Nothing recorded yet; the local state stands.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}

	tail, err := d.opts.Ledger.Events(ctx, snapVersion+1)
	if err != nil {
		return fmt.Errorf("failed to load event log tail: %w", err)
	}

	d.mu.Lock()
	d.state = state
	d.seq = snapVersion
	for _, env := range tail {
		ev, decodeErr := env.Decode()
		if decodeErr != nil {
			d.mu.Unlock()
			return fmt.Errorf("failed to decode logged event %d: %w", env.Seq, decodeErr)
		}
		d.state = d.reducer.Dispatch(d.state, ev)
		d.seq = env.Seq
	}
	snapshot := d.state.Clone()
	d.mu.Unlock()

	d.logEvent("resynced", map[string]interface{}{
		"version": snapVersion,
		"tail":    len(tail),
		"phase":   string(snapshot.Phase),
	})
	if d.opts.OnStateChange != nil {
		d.opts.OnStateChange(snapshot)
	}

	for _, ev := range queued {
		if _, err := d.Apply(ctx, ev); err != nil {
			return fmt.Errorf("failed to replay queued event: %w", err)
		}
	}
	return nil
}
