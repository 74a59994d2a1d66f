package delegation

import (
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/orchestra-run/orchestra/agenttree"
	"github.com/orchestra-run/orchestra/engine"
	"github.com/orchestra-run/orchestra/eventbus"
	"github.com/orchestra-run/orchestra/namer"
	"github.com/orchestra-run/orchestra/tool"
)

// Shared is the process-wide state every DelegationScheme in the tree
// reads and writes: the agent arena, the event bus, the name
// generator, the global task log, and the concurrency/config knobs
// from RuntimeConfig. One Shared is created per AppRuntime and handed
// to every Scheme the runtime builds.
type Shared struct {
	Tree    *agenttree.Tree
	Bus     *eventbus.Bus
	Namer   *namer.Namer
	TaskLog *TaskLog

	// Semaphore bounds concurrent LLM-driving helper tasks across the
	// whole tree (spec.md's "request semaphore, default 3").
	Semaphore *semaphore.Weighted

	MaxDelegationDepth     int
	RetryAttempts          int
	AutoAggregateThreshold int
	Clock                  agenttree.Clock

	// NewEngine builds the engine a helper agent at the given depth
	// should drive its reasoning with.
	NewEngine func(depth int) engine.Engine

	// ToolConfigs resolves which tools a helper agent at a given depth
	// gets, the way app.tool_configs does for the teacher's kanis.
	ToolConfigs tool.Configs

	DelegateSystemPrompt string
}

// NewShared builds a Shared with the given concurrency bound and
// sensible defaults for the rest (3 concurrent helper tasks, depth 4,
// 3 retries, auto-aggregate at 4 live helpers).
func NewShared(requestConcurrency int64) *Shared {
	if requestConcurrency <= 0 {
		requestConcurrency = 3
	}
	return &Shared{
		Tree:                   agenttree.NewTree(),
		Bus:                    eventbus.New(),
		Namer:                  namer.New(),
		TaskLog:                NewTaskLog(),
		Semaphore:              semaphore.NewWeighted(requestConcurrency),
		MaxDelegationDepth:     4,
		RetryAttempts:          3,
		AutoAggregateThreshold: 4,
		Clock:                  agenttree.RealClock{},
	}
}

func newAgentID() string {
	return uuid.NewString()
}
