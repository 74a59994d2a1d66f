package agenttree

import "github.com/orchestra-run/orchestra/engine"

// assemblePrompt returns the message slice to send to the engine for
// the next round, truncated to fit the engine's context budget.
//
// The leading system-prompt message, if present, is an always-included
// prefix and is never dropped by truncation (a delegate that loses its
// task framing mid-conversation would silently drift off-task). When
// the remaining history exceeds budget, the oldest non-prefix messages
// are dropped first, keeping the most recent exchange intact.
func (a *Agent) assemblePrompt() []engine.Message {
	history := a.History()
	if len(history) == 0 {
		return history
	}

	budget := a.engine.MaxContextSize()

	prefixLen := 0
	if history[0].Role == engine.RoleSystem {
		prefixLen = 1
	}
	prefix := history[:prefixLen]
	rest := history[prefixLen:]

	used := 0
	for _, msg := range prefix {
		used += a.engine.MessageTokenLen(msg)
	}

	// Walk rest from the newest message backward, keeping whatever
	// fits, then restore chronological order.
	kept := make([]engine.Message, 0, len(rest))
	for i := len(rest) - 1; i >= 0; i-- {
		cost := a.engine.MessageTokenLen(rest[i])
		if used+cost > budget && len(kept) > 0 {
			break
		}
		used += cost
		kept = append(kept, rest[i])
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}

	out := make([]engine.Message, 0, len(prefix)+len(kept))
	out = append(out, prefix...)
	out = append(out, kept...)
	return out
}
