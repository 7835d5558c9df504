// Package transcript accumulates the incrementally delivered conversation
// text of a live session.
//
// The live session emits partial transcript fragments for both parties while
// speech is in flight. The [Aggregator] grows one in-progress accumulator per
// party and, on each turn boundary, promotes both into immutable
// [Turn] values in an ordered, bounded history.
//
// The aggregator is mutated only from the session's single event-processing
// goroutine; the read-side snapshot methods are safe to call from anywhere.
package transcript

import (
	"sync"
	"time"

	"github.com/verbascape/verbascape/pkg/provider/live"
)

// historyPairs is the number of finalized turn-pairs retained. Older pairs
// are evicted first.
const historyPairs = 5

// Turn is one complete utterance from either party. Created only when a
// turn boundary is observed; immutable thereafter.
type Turn struct {
	// Text is the full accumulated utterance text. May be empty.
	Text string
	// Sender identifies which party produced the utterance.
	Sender live.Source
	// Timestamp is when the turn was finalized.
	Timestamp time.Time
}

// Aggregator owns the in-progress accumulators and the finalized history.
type Aggregator struct {
	mu sync.Mutex

	userText  string
	agentText string

	history []Turn

	now func() time.Time
}

// New creates an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{now: time.Now}
}

// Append grows the in-progress accumulator matching the fragment's source.
// Fragments from unknown sources are ignored.
func (a *Aggregator) Append(source live.Source, text string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch source {
	case live.SourceUser:
		a.userText += text
	case live.SourceAgent:
		a.agentText += text
	}
}

// CompleteTurn snapshots both accumulators into two finalized turns, user
// first, then clears them. Both turns are recorded even when one side's text
// is empty, so history always grows in whole pairs. When the history exceeds
// its cap, the oldest pair is evicted.
func (a *Aggregator) CompleteTurn() (user, agent Turn) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ts := a.now()
	user = Turn{Text: a.userText, Sender: live.SourceUser, Timestamp: ts}
	agent = Turn{Text: a.agentText, Sender: live.SourceAgent, Timestamp: ts}
	a.userText = ""
	a.agentText = ""

	a.history = append(a.history, user, agent)
	if excess := len(a.history) - historyPairs*2; excess > 0 {
		a.history = append(a.history[:0], a.history[excess:]...)
	}
	return user, agent
}

// History returns a copy of the finalized turns, oldest first.
func (a *Aggregator) History() []Turn {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Turn, len(a.history))
	copy(out, a.history)
	return out
}

// InProgress returns the current accumulator text of both parties.
func (a *Aggregator) InProgress() (user, agent string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.userText, a.agentText
}

// Reset clears both accumulators and the history.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.userText = ""
	a.agentText = ""
	a.history = nil
}
