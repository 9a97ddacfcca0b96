package recall

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoPlayableContent means every chunk was processed and none produced a
	// scene. It is an empty state, not a failure.
	ErrNoPlayableContent = errors.New("no playable chunks found")
	// ErrRoundIncomplete is returned by Next and Save while blanks are empty.
	ErrRoundIncomplete = errors.New("round still has empty blanks")
	// ErrNoActiveRound is returned when no round is on screen.
	ErrNoActiveRound = errors.New("no active round")
	// ErrNoProgress means a processing call returned without caching anything.
	ErrNoProgress = errors.New("chat processing made no progress")
)

// BootstrapError is terminal for one bootstrap attempt.
type BootstrapError struct {
	Chat  string
	Phase string // "load_cache", "process", "reload_cache"
	Cause error
	Time  time.Time
}

func (e BootstrapError) Error() string {
	return fmt.Sprintf("bootstrap %s: %s failed: %v", e.Chat, e.Phase, e.Cause)
}

func (e BootstrapError) Unwrap() error { return e.Cause }

// FetchError is a failed background fetch. The current round is unaffected
// and the next trigger point tries again.
type FetchError struct {
	Chat  string
	Start int
	Phase string
	Cause error
}

func (e FetchError) Error() string {
	return fmt.Sprintf("background fetch %s from chunk %d: %s failed: %v", e.Chat, e.Start, e.Phase, e.Cause)
}

func (e FetchError) Unwrap() error { return e.Cause }
