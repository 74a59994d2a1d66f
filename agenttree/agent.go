// Package agenttree models the live agent tree: each Agent wraps an
// engine, its delegator and tools, and its own chat history, and runs
// its assistant loop independently of its parent and siblings.
//
// The tree is an arena keyed by agent ID rather than a graph of
// pointers: an Agent only ever references its parent and children by
// ID, and the Tree is the single place that resolves IDs to live
// Agents. This avoids reference cycles between a parent and its
// delegate children and lets closing/removing an agent be a pure
// map operation, the way the teacher's AgentRegistry keys agents by
// name instead of holding them in a pointer graph.
package agenttree

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/orchestra-run/orchestra/engine"
	"github.com/orchestra-run/orchestra/eventbus"
	"github.com/orchestra-run/orchestra/tool"
)

// RunState is an Agent's lifecycle state.
type RunState string

const (
	StateIdle       RunState = "idle"
	StateRunning    RunState = "running"
	StateWaiting    RunState = "waiting"
	StateTerminated RunState = "terminated"
)

// Clock abstracts time so retry backoff is deterministically testable.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock is the production Clock, backed by time.Sleep respecting
// context cancellation.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Config holds everything needed to construct one Agent.
type Config struct {
	ID              string
	Name            string
	Depth           int
	ParentID        string
	SystemPrompt    string
	TaskDescription string
	Engine          engine.Engine
	Delegator       tool.Delegator
	Tools           []tool.Base
	Bus             *eventbus.Bus
	RetryAttempts   int
	Clock           Clock
}

// Agent is one node of the delegation tree: a single LLM-driven
// conversation with its own history, tools, and (for non-leaf agents)
// the ability to spawn further delegates via its Delegator.
type Agent struct {
	ID              string
	Name            string
	Depth           int
	ParentID        string
	SystemPrompt    string
	TaskDescription string

	engine        engine.Engine
	delegator     tool.Delegator
	tools         []tool.Base
	functions     map[string]tool.AIFunction
	bus           *eventbus.Bus
	retryAttempts int
	clock         Clock

	mu       sync.Mutex
	history  []engine.Message
	runState RunState

	cleanupOnce sync.Once
}

// New builds an Agent from cfg. The function map is assembled once,
// here, from the delegator and tools, and never mutated afterward
// (spec invariant: an agent's callable surface is fixed at construction).
func New(cfg Config) (*Agent, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("agenttree: agent name cannot be empty")
	}
	if cfg.Engine == nil {
		return nil, fmt.Errorf("agenttree: agent %q has no engine", cfg.Name)
	}

	functions, err := tool.FunctionMap(cfg.Delegator, cfg.Tools)
	if err != nil {
		return nil, fmt.Errorf("agenttree: agent %q: %w", cfg.Name, err)
	}
	if err := tool.SetupAll(context.Background(), cfg.Tools); err != nil {
		return nil, fmt.Errorf("agenttree: agent %q: setting up tools: %w", cfg.Name, err)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = RealClock{}
	}
	retryAttempts := cfg.RetryAttempts
	if retryAttempts <= 0 {
		retryAttempts = 3
	}

	a := &Agent{
		ID:              cfg.ID,
		Name:            cfg.Name,
		Depth:           cfg.Depth,
		ParentID:        cfg.ParentID,
		SystemPrompt:    cfg.SystemPrompt,
		TaskDescription: cfg.TaskDescription,
		engine:          cfg.Engine,
		delegator:       cfg.Delegator,
		tools:           cfg.Tools,
		functions:       functions,
		bus:             cfg.Bus,
		retryAttempts:   retryAttempts,
		clock:           clock,
		runState:        StateIdle,
	}
	if a.SystemPrompt != "" {
		a.history = []engine.Message{{Role: engine.RoleSystem, Content: a.renderSystemPrompt()}}
	}

	a.dispatch(eventbus.Event{
		Kind:     eventbus.KindAgentCreated,
		ParentID: cfg.ParentID,
	})
	return a, nil
}

// State returns the agent's current run state.
func (a *Agent) State() RunState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.runState
}

func (a *Agent) setState(s RunState) {
	a.mu.Lock()
	prev := a.runState
	a.runState = s
	a.mu.Unlock()
	if prev != s {
		a.dispatch(eventbus.Event{
			Kind:      eventbus.KindStateChange,
			FromState: string(prev),
			ToState:   string(s),
		})
	}
}

// renderSystemPrompt substitutes {name}, {time}, and {role} placeholders
// into the configured system prompt template. "role" is "root" for the
// depth-0 agent and "delegate" for everything it spawns.
func (a *Agent) renderSystemPrompt() string {
	role := "delegate"
	if a.Depth == 0 {
		role = "root"
	}
	replacer := strings.NewReplacer(
		"{name}", a.Name,
		"{time}", a.clock.Now().Format(time.RFC3339),
		"{role}", role,
	)
	return replacer.Replace(a.SystemPrompt)
}

// refreshSystemPromptSlot re-renders the system prompt and overwrites
// history slot 0 with it, so {time} (and any other placeholder) reflects
// the moment each round actually starts rather than the moment the
// agent was constructed.
func (a *Agent) refreshSystemPromptSlot() {
	if a.SystemPrompt == "" {
		return
	}
	rendered := a.renderSystemPrompt()
	a.mu.Lock()
	if len(a.history) > 0 && a.history[0].Role == engine.RoleSystem {
		a.history[0].Content = rendered
	}
	a.mu.Unlock()
}

// History returns a copy of the agent's chat history.
func (a *Agent) History() []engine.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]engine.Message, len(a.history))
	copy(out, a.history)
	return out
}

func (a *Agent) appendHistory(msg engine.Message) {
	a.mu.Lock()
	a.history = append(a.history, msg)
	a.mu.Unlock()
	a.dispatch(eventbus.Event{
		Kind:    eventbus.KindMessage,
		Role:    string(msg.Role),
		Content: msg.Content,
	})
}

func (a *Agent) dispatch(ev eventbus.Event) {
	if a.bus == nil {
		return
	}
	ev.AgentID = a.ID
	ev.AgentName = a.Name
	ev.Depth = a.Depth
	a.bus.Dispatch(ev)
}

// functionSchemas returns the agent's callable functions as
// engine.FunctionSchema, sorted by name so the prompt sent to the
// engine is deterministic across calls.
func (a *Agent) functionSchemas() []engine.FunctionSchema {
	names := make([]string, 0, len(a.functions))
	for name := range a.functions {
		names = append(names, name)
	}
	sort.Strings(names)

	schemas := make([]engine.FunctionSchema, 0, len(names))
	for _, name := range names {
		fn := a.functions[name]
		schemas = append(schemas, engine.FunctionSchema{
			Name:        fn.Name,
			Description: fn.Description,
			Parameters:  fn.Parameters,
		})
	}
	return schemas
}

// Cleanup releases per-round tool state once this agent's assigned
// task completes, without tearing the agent down permanently. Safe to
// call more than once: only the first call does any work, since a
// helper whose task already succeeded may be cleaned up again during
// tree teardown.
func (a *Agent) Cleanup(ctx context.Context) error {
	var err error
	a.cleanupOnce.Do(func() {
		err = tool.CleanupAll(ctx, a.tools)
	})
	return err
}

// Close marks the agent terminated and permanently releases its tools.
// Tree.CloseAll calls it once per agent during teardown; it does not
// remove the agent from the tree.
func (a *Agent) Close(ctx context.Context) error {
	a.setState(StateTerminated)
	return tool.CloseAll(ctx, a.tools)
}
