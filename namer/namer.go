// Package namer generates short, human-memorable, collision-free
// agent names (e.g. "swift-falcon-3"), the way a delegate shows up in
// logs and events as something a human can say out loud instead of a
// raw UUID.
//
// No example repo in the pack vendors a name-generator library, so
// this is built on the standard library (math/rand/v2 for word
// selection) plus github.com/google/uuid as the guaranteed-unique
// fallback when the adjective/noun space is exhausted. See DESIGN.md
// for why this one concern stays stdlib-first.
package namer

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"
)

var adjectives = []string{
	"swift", "quiet", "bold", "calm", "bright", "keen", "steady", "nimble",
	"amber", "cedar", "coral", "dusty", "ember", "frost", "hazel", "indigo",
	"lunar", "maple", "noble", "onyx", "pale", "quartz", "rustic", "sable",
	"terra", "umber", "vivid", "willow", "zephyr", "amber", "birch", "clover",
}

var nouns = []string{
	"falcon", "otter", "heron", "lynx", "badger", "sparrow", "marten", "osprey",
	"beetle", "cricket", "finch", "gecko", "harrier", "ibis", "jackal", "kite",
	"magpie", "newt", "oriole", "puffin", "quail", "raven", "stoat", "tern",
	"urchin", "vole", "wren", "yak", "zebu", "marmot", "mink", "plover",
}

// Namer generates unique names, retrying on collision against the
// names it has already issued before falling back to a uuid-suffixed name.
type Namer struct {
	mu   sync.Mutex
	used map[string]bool
}

// New creates a Namer with no names reserved yet.
func New() *Namer {
	return &Namer{used: make(map[string]bool)}
}

// Next returns a new unique name. It retries the adjective-noun-number
// combination a bounded number of times before falling back to a
// uuid-suffixed name, so Next always terminates and always returns a
// name unique among every name this Namer has produced.
func (n *Namer) Next() string {
	n.mu.Lock()
	defer n.mu.Unlock()

	const maxAttempts = 20
	for i := 0; i < maxAttempts; i++ {
		candidate := fmt.Sprintf("%s-%s-%d",
			adjectives[rand.IntN(len(adjectives))],
			nouns[rand.IntN(len(nouns))],
			rand.IntN(1000),
		)
		if !n.used[candidate] {
			n.used[candidate] = true
			return candidate
		}
	}

	candidate := fmt.Sprintf("agent-%s", uuid.NewString())
	n.used[candidate] = true
	return candidate
}
