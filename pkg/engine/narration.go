package engine

import "fmt"

// narrate prepends an entry to the bounded, most-recent-first narration log.
func narrate(s *GameState, playerID string, atMs int64, format string, args ...any) {
	entry := NarrationEntry{
		Turn:     s.Turn,
		PlayerID: playerID,
		Text:     fmt.Sprintf(format, args...),
		AtMs:     atMs,
	}
	s.Narration = append([]NarrationEntry{entry}, s.Narration...)
	if len(s.Narration) > maxNarrationEntries {
		s.Narration = s.Narration[:maxNarrationEntries]
	}
}

// reject records a non-fatal rejection: the state is otherwise unchanged,
// only the transient message and the narration log are set. Rejections never
// cost a turn.
func reject(s *GameState, playerID string, atMs int64, format string, args ...any) {
	s.Message = fmt.Sprintf(format, args...)
	narrate(s, playerID, atMs, "rejected: %s", s.Message)
}

func notify(s *GameState, n Notice) {
	s.Notices = append(s.Notices, n)
}
