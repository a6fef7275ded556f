// Package ledger persists multiplayer game sessions to Redis: a versioned
// session record, a full-state snapshot, an append-only event log and a
// Pub/Sub feed of move envelopes. The ledger copy is authoritative; a client
// that diverges (disconnect, missed events) resynchronizes from it wholesale.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ABakker30/koospuzzlev1-sub002/pkg/engine"
)

// ErrStaleWrite is returned when a session write loses the version race: the
// stored record already carries the caller's version or newer.
var ErrStaleWrite = errors.New("stale session write: a newer version exists")

// Client provides game-scoped Redis operations for the session ledger.
// All keys and channels are automatically namespaced with the game id.
// The client is safe for concurrent use.
type Client struct {
	rdb    *redis.Client
	gameID string
}

// NewClient creates a ledger client for the given game.
func NewClient(redisOpts *redis.Options, gameID string) (*Client, error) {
	if gameID == "" {
		return nil, fmt.Errorf("game id cannot be empty")
	}
	return &Client{
		rdb:    redis.NewClient(redisOpts),
		gameID: gameID,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// PutSession writes the session record with optimistic concurrency: the write
// succeeds only when the stored version is strictly older than the record's.
// A losing writer gets ErrStaleWrite and must resynchronize from the ledger.
func (c *Client) PutSession(ctx context.Context, rec *SessionRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid session record: %w", err)
	}

	key := SessionKey(c.gameID)
	txn := func(tx *redis.Tx) error {
		stored, err := tx.HGet(ctx, key, "version").Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to read stored version: %w", err)
		}
		if err == nil && stored >= rec.Version {
			return ErrStaleWrite
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, SessionToHash(rec))
			return nil
		})
		return err
	}

	if err := c.rdb.Watch(ctx, txn, key); err != nil {
		if errors.Is(err, ErrStaleWrite) {
			return ErrStaleWrite
		}
		return fmt.Errorf("failed to write session record: %w", err)
	}
	return nil
}

// GetSession retrieves the session record.
// Returns (nil, redis.Nil) when no record exists; check with IsNotFound.
func (c *Client) GetSession(ctx context.Context) (*SessionRecord, error) {
	hash, err := c.rdb.HGetAll(ctx, SessionKey(c.gameID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session record: %w", err)
	}
	// HGetAll returns an empty map for a missing key.
	if len(hash) == 0 {
		return nil, redis.Nil
	}
	rec, err := HashToSession(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize session record: %w", err)
	}
	return rec, nil
}

// snapshotRecord binds a stored snapshot to the sequence number of the last
// event applied to it, so a resync knows where in the event log to resume.
type snapshotRecord struct {
	Version int64           `json:"version"`
	State   json.RawMessage `json:"state"`
}

// SaveSnapshot stores the full game state snapshot tagged with the sequence
// number of the last applied event. The snapshot write itself is unguarded; a
// laggard overwriting a newer snapshot only costs the next resync a longer
// event log tail, because replay resumes from the version stored inside the
// snapshot, never from the session record.
func (c *Client) SaveSnapshot(ctx context.Context, state engine.GameState, version int64) error {
	data, err := engine.EncodeSnapshot(state)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	rec, err := json.Marshal(snapshotRecord{Version: version, State: data})
	if err != nil {
		return fmt.Errorf("failed to encode snapshot record: %w", err)
	}
	if err := c.rdb.Set(ctx, SnapshotKey(c.gameID), rec, 0).Err(); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot retrieves the stored game state and the sequence number it
// reflects. Returns redis.Nil when no snapshot exists; check with IsNotFound.
func (c *Client) LoadSnapshot(ctx context.Context) (engine.GameState, int64, error) {
	data, err := c.rdb.Get(ctx, SnapshotKey(c.gameID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return engine.GameState{}, 0, redis.Nil
		}
		return engine.GameState{}, 0, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var rec snapshotRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return engine.GameState{}, 0, fmt.Errorf("failed to decode snapshot record: %w", err)
	}
	state, err := engine.DecodeSnapshot(rec.State)
	if err != nil {
		return engine.GameState{}, 0, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return state, rec.Version, nil
}

// AppendEvent wraps a game event in an envelope, appends it to the event log
// and publishes it on the move channel. Returns the stored envelope with its
// assigned sequence number.
func (c *Client) AppendEvent(ctx context.Context, ev engine.Event) (*Envelope, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	env := &Envelope{
		ID:       uuid.New().String(),
		Type:     ev.Type(),
		PlayerID: playerID(ev),
		Payload:  payload,
		AtMs:     atMs(ev),
	}
	if err := env.Validate(); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	seq, err := c.rdb.RPush(ctx, EventsKey(c.gameID), data).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to append event: %w", err)
	}
	env.Seq = seq

	// Re-marshal with the sequence number so subscribers see it too.
	data, err = json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	if err := c.rdb.Publish(ctx, MoveEventsChannel(c.gameID), data).Err(); err != nil {
		return nil, fmt.Errorf("failed to publish move event: %w", err)
	}
	return env, nil
}

// Events retrieves the event log from the given 1-based sequence number
// onwards. fromSeq of 1 returns the whole log; an empty log is not an error.
func (c *Client) Events(ctx context.Context, fromSeq int64) ([]Envelope, error) {
	if fromSeq < 1 {
		fromSeq = 1
	}
	raw, err := c.rdb.LRange(ctx, EventsKey(c.gameID), fromSeq-1, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}
	out := make([]Envelope, 0, len(raw))
	for i, item := range raw {
		var env Envelope
		if err := json.Unmarshal([]byte(item), &env); err != nil {
			return nil, fmt.Errorf("failed to decode event log entry: %w", err)
		}
		if env.Seq == 0 {
			env.Seq = fromSeq + int64(i)
		}
		out = append(out, env)
	}
	return out, nil
}

// MoveSubscription is an active Pub/Sub subscription to move envelopes.
// Caller must call Close() when done to clean up resources.
type MoveSubscription struct {
	events <-chan *Envelope
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of move envelopes. The channel is closed when
// the subscription is closed or the context is cancelled.
func (s *MoveSubscription) Events() <-chan *Envelope {
	return s.events
}

// Errors returns the channel of subscription errors. Errors are non-fatal;
// the subscription continues and the offending message is skipped.
func (s *MoveSubscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Implements io.Closer; safe to call twice.
func (s *MoveSubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeMoves subscribes to move envelopes for this game.
// Caller must call subscription.Close() when done; context cancellation also
// stops the subscription.
//
// Envelopes are delivered on a buffered channel (size 10) to avoid blocking
// the Pub/Sub reader. Redis Pub/Sub is at-most-once: a slow subscriber can
// miss envelopes, which the reconciliation path recovers via the event log.
func (c *Client) SubscribeMoves(ctx context.Context) (*MoveSubscription, error) {
	pubsub := c.rdb.Subscribe(ctx, MoveEventsChannel(c.gameID))

	eventsChan := make(chan *Envelope, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal move event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &env:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &MoveSubscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error.
// Use this to check whether GetSession or LoadSnapshot found nothing.
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
