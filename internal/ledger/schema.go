package ledger

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by game id so that many
// concurrent games can safely share a single Redis server.
//
// Key pattern: koos:{game_id}:{entity}
// Channel pattern: koos:{game_id}:move_events

// SessionKey returns the Redis key for the versioned session record.
// Pattern: koos:{game_id}:session
func SessionKey(gameID string) string {
	return fmt.Sprintf("koos:%s:session", gameID)
}

// SnapshotKey returns the Redis key for the full state snapshot.
// Pattern: koos:{game_id}:snapshot
func SnapshotKey(gameID string) string {
	return fmt.Sprintf("koos:%s:snapshot", gameID)
}

// EventsKey returns the Redis key for the append-only event log.
// Pattern: koos:{game_id}:events
func EventsKey(gameID string) string {
	return fmt.Sprintf("koos:%s:events", gameID)
}

// MoveEventsChannel returns the Pub/Sub channel carrying move envelopes.
// Pattern: koos:{game_id}:move_events
func MoveEventsChannel(gameID string) string {
	return fmt.Sprintf("koos:%s:move_events", gameID)
}
