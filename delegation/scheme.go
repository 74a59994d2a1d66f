package delegation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/orchestra-run/orchestra/agenttree"
	"github.com/orchestra-run/orchestra/engine"
	"github.com/orchestra-run/orchestra/eventbus"
	"github.com/orchestra-run/orchestra/tool"
)

// resultSeparator joins multiple helper results when aggregating under
// wait("all"), matching the original implementation's join marker so
// an aggregated answer visually separates each helper's contribution.
const resultSeparator = "\n\n=====\n\n"

// Scheme is the per-agent delegate/wait implementation: it exposes
// "delegate" and "wait" as AI functions on whichever Agent owns it,
// and tracks that agent's own live helpers.
//
// Each non-leaf agent in the tree gets its own Scheme bound to it;
// Scheme.shared carries the state that must be consistent across the
// whole tree (the arena, the task log, the semaphore).
type Scheme struct {
	shared *Shared

	owner *agenttree.Agent

	mu sync.Mutex
	// byName holds the most recently delegated future for a given
	// helper name, so "who" can reuse an existing helper's agent and
	// wait(name) can find its latest task.
	byName map[string]*helperFuture
	// order holds every future created by this scheme since the last
	// waitAll, in delegation order - a "who" reuse creates a second
	// future on the same agent rather than mutating the first, so two
	// tasks for the same helper never race on one finish() call.
	order []*helperFuture
}

// NewScheme creates a Scheme not yet bound to an owning Agent. Call
// BindOwner once the owner Agent exists (delegate/wait need the
// owner's identity and history, but the owner's construction needs
// this Scheme's Functions() first).
func NewScheme(shared *Shared) *Scheme {
	return &Scheme{shared: shared, byName: make(map[string]*helperFuture)}
}

// BindOwner attaches the Agent this Scheme belongs to. Must be called
// exactly once, right after agenttree.New returns the owner.
func (s *Scheme) BindOwner(owner *agenttree.Agent) {
	s.owner = owner
}

// Functions implements tool.Delegator.
func (s *Scheme) Functions() []tool.AIFunction {
	return []tool.AIFunction{
		{
			Name:        "delegate",
			Description: "Delegate a sub-task to a new or existing helper agent, running concurrently in the background.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"instructions": map[string]any{"type": "string", "description": "The sub-task for the helper to perform."},
					"who":          map[string]any{"type": "string", "description": "Optional: reuse an existing helper by name instead of creating a new one."},
				},
				"required": []string{"instructions"},
			},
			Handler: s.delegate,
		},
		{
			Name:        "wait",
			Description: `Wait for delegated helpers to finish. "until" is "next", "all", or a helper's name.`,
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"until": map[string]any{"type": "string"},
				},
				"required": []string{"until"},
			},
			Handler: s.wait,
		},
	}
}

func (s *Scheme) delegate(ctx tool.Context, args map[string]any) (string, error) {
	instructions, _ := args["instructions"].(string)
	if strings.TrimSpace(instructions) == "" {
		return "", fmt.Errorf("delegate: instructions must not be empty")
	}
	who, _ := args["who"].(string)

	if entry, dup := s.shared.TaskLog.ActiveEntryFor(instructions); dup {
		return fmt.Sprintf("this exact task is already %s, assigned to %s; use wait() instead of delegating it again", entry.Status, entry.AgentName), nil
	}

	if s.owner.Depth+1 > s.shared.MaxDelegationDepth {
		return "maximum delegation depth reached; handle this task yourself instead of delegating further", nil
	}

	if lastMsg := s.lastUserMessage(); looksLikeTheWholeTask(instructions, lastMsg) {
		return "that instruction looks like the entire original task rather than a sub-task; break the work down before delegating", nil
	}

	if s.liveHelperCount() >= s.shared.AutoAggregateThreshold {
		if _, err := s.waitAll(ctx); err != nil {
			return "", err
		}
	}

	helper, reused, err := s.resolveHelper(who, instructions)
	if err != nil {
		return "", err
	}

	s.shared.TaskLog.Append(Entry{AgentName: helper.helperName, TaskText: instructions, Status: StatusRunning})
	s.shared.Bus.Dispatch(eventbus.Event{
		Kind:       eventbus.KindDelegated,
		AgentID:    s.owner.ID,
		AgentName:  s.owner.Name,
		Depth:      s.owner.Depth,
		HelperID:   helper.agent.ID,
		HelperName: helper.helperName,
		Task:       instructions,
	})

	go s.runHelperTask(ctx.Context, helper, instructions)

	if reused {
		return fmt.Sprintf("queued additional work onto existing helper %q; use wait() to get its result", helper.helperName), nil
	}
	return fmt.Sprintf("delegated to new helper %q; use wait() to get its result", helper.helperName), nil
}

// resolveHelper implements reuse-or-create: if who names an
// already-known helper, a new task is queued on that same underlying
// Agent (its conversation history carries forward); otherwise a new
// child Agent is created. Either way a fresh helperFuture is returned
// so a still-running prior task on the same name can never race with
// this one over a single finish() call.
func (s *Scheme) resolveHelper(who, instructions string) (*helperFuture, bool, error) {
	s.mu.Lock()
	existing, reused := s.byName[who]
	s.mu.Unlock()

	var agent *agenttree.Agent
	name := who
	if reused && who != "" {
		agent = existing.agent
	} else {
		if name == "" {
			name = s.shared.Namer.Next()
		}
		child, err := s.createHelperAgent(name, instructions)
		if err != nil {
			return nil, false, err
		}
		agent = child
	}

	future := newHelperFuture(name, instructions, agent)
	s.mu.Lock()
	s.byName[name] = future
	s.order = append(s.order, future)
	s.mu.Unlock()
	return future, reused, nil
}

func (s *Scheme) createHelperAgent(name, task string) (*agenttree.Agent, error) {
	depth := s.owner.Depth + 1
	childScheme := NewScheme(s.shared)

	var delegator tool.Delegator
	if depth < s.shared.MaxDelegationDepth {
		delegator = childScheme
	}

	tools, err := tool.Build(s.shared.ToolConfigs.Resolve(depth, nil), name, depth)
	if err != nil {
		return nil, fmt.Errorf("delegation: building tools for helper %q: %w", name, err)
	}

	child, err := agenttree.New(agenttree.Config{
		ID:              newAgentID(),
		Name:            name,
		Depth:           depth,
		ParentID:        s.owner.ID,
		SystemPrompt:    s.shared.DelegateSystemPrompt,
		TaskDescription: task,
		Engine:          s.shared.NewEngine(depth),
		Delegator:       delegator,
		Tools:           tools,
		Bus:             s.shared.Bus,
		RetryAttempts:   s.shared.RetryAttempts,
		Clock:           s.shared.Clock,
	})
	if err != nil {
		return nil, err
	}
	if delegator != nil {
		childScheme.BindOwner(child)
	}
	if err := s.shared.Tree.Add(child); err != nil {
		return nil, err
	}
	return child, nil
}

// runHelperTask acquires the shared semaphore, runs the helper's
// FullRoundStream once, and on failure attempts exactly one
// reassignment to a freshly created helper before giving up -
// mirroring the original implementation's single-retry reassignment
// policy.
func (s *Scheme) runHelperTask(ctx context.Context, future *helperFuture, task string) {
	future.setState(futureRunning)

	if err := s.shared.Semaphore.Acquire(ctx, 1); err != nil {
		future.finish("", err)
		return
	}
	result, err := future.agent.FullRoundStream(ctx, task)
	s.shared.Semaphore.Release(1)

	if err == nil {
		s.shared.TaskLog.UpdateStatus(future.helperName, task, StatusCompleted)
		_ = future.agent.Cleanup(ctx)
		future.finish(result, nil)
		return
	}

	if ctx.Err() != nil {
		// The owning round was cancelled out from under this helper;
		// don't reassign into a dead context, just unwind and let the
		// agent clean itself up on a context that can still complete.
		s.shared.TaskLog.UpdateStatus(future.helperName, task, StatusFailed)
		_ = future.agent.Cleanup(context.Background())
		future.finish("", err)
		return
	}

	s.shared.TaskLog.UpdateStatus(future.helperName, task, StatusFailed)
	future.setState(futureReassigned)

	reassignedName := s.shared.Namer.Next()
	newAgent, buildErr := s.createHelperAgent(reassignedName, task)
	if buildErr != nil {
		future.finish("", fmt.Errorf("delegation: helper %q failed and reassignment could not start: %w", future.helperName, buildErr))
		return
	}

	// Log the reassignment before attempting it, matching the original
	// delegate_and_wait state machine: reassigned, then completed.
	s.shared.TaskLog.Append(Entry{AgentName: reassignedName, TaskText: task, Status: StatusReassigned})

	s.shared.Bus.Dispatch(eventbus.Event{
		Kind:       eventbus.KindDelegated,
		AgentID:    s.owner.ID,
		AgentName:  s.owner.Name,
		HelperID:   newAgent.ID,
		HelperName: reassignedName,
		Task:       task,
	})

	if acqErr := s.shared.Semaphore.Acquire(ctx, 1); acqErr != nil {
		future.finish("", acqErr)
		return
	}
	result, err = newAgent.FullRoundStream(ctx, task)
	s.shared.Semaphore.Release(1)

	if err != nil {
		future.finish("", fmt.Errorf("delegation: helper %q failed, reassignment to %q also failed: %w", future.helperName, reassignedName, err))
		return
	}
	_ = newAgent.Cleanup(ctx)
	s.shared.TaskLog.UpdateStatus(reassignedName, task, StatusCompleted)
	future.finish(result, nil)
}

func (s *Scheme) wait(ctx tool.Context, args map[string]any) (string, error) {
	until, _ := args["until"].(string)
	switch until {
	case "", "next":
		return s.waitNext(ctx)
	case "all":
		return s.waitAll(ctx)
	default:
		return s.waitNamed(ctx, until)
	}
}

// waitNext returns the result of the oldest helper (by delegation
// order) that hasn't already been handed back by a previous
// wait("next") call, blocking until that helper finishes if it hasn't
// already. This walks order regardless of run state: a helper that
// finished before wait() was even called must still be returned, not
// skipped because it is no longer "running".
func (s *Scheme) waitNext(ctx tool.Context) (string, error) {
	s.mu.Lock()
	var next *helperFuture
	for _, f := range s.order {
		if f.markConsumed() {
			next = f
			break
		}
	}
	s.mu.Unlock()

	if next == nil {
		return "no unconsumed helper to wait for", nil
	}
	return s.awaitOne(ctx, next)
}

func (s *Scheme) waitNamed(ctx tool.Context, name string) (string, error) {
	s.mu.Lock()
	future, ok := s.byName[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Sprintf("no helper named %q", name), nil
	}
	return s.awaitOne(ctx, future)
}

func (s *Scheme) awaitOne(ctx tool.Context, f *helperFuture) (string, error) {
	select {
	case <-f.done:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	result, err := f.outcome()
	if err != nil {
		return fmt.Sprintf("helper %q failed: %s", f.helperName, err.Error()), nil
	}
	return fmt.Sprintf("%s:%s", f.helperName, result), nil
}

// waitAll aggregates every currently-tracked helper's result, joined
// by resultSeparator, and clears the helper set once done - the
// implicit aggregation step both the explicit wait("all") call and
// the auto-aggregate threshold trigger.
func (s *Scheme) waitAll(ctx tool.Context) (string, error) {
	s.mu.Lock()
	futures := make([]*helperFuture, len(s.order))
	copy(futures, s.order)
	s.mu.Unlock()

	if len(futures) == 0 {
		return "no helpers to wait for", nil
	}

	results := make([]string, 0, len(futures))
	for _, f := range futures {
		select {
		case <-f.done:
		case <-ctx.Done():
			return "", ctx.Err()
		}
		result, err := f.outcome()
		if err != nil {
			results = append(results, fmt.Sprintf("[%s failed: %s]", f.helperName, err.Error()))
			continue
		}
		results = append(results, fmt.Sprintf("%s:%s", f.helperName, result))
	}

	s.mu.Lock()
	s.byName = make(map[string]*helperFuture)
	s.order = nil
	s.mu.Unlock()

	return strings.Join(results, resultSeparator), nil
}

func (s *Scheme) liveHelperCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, f := range s.order {
		switch f.State() {
		case futureCreated, futureRunning, futureReassigned:
			count++
		}
	}
	return count
}

func (s *Scheme) lastUserMessage() string {
	history := s.owner.History()
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == engine.RoleUser {
			return history[i].Content
		}
	}
	return ""
}

// snapshotHelperNames returns the distinct helper names known to this
// scheme, sorted, mainly for tests and metrics.
func (s *Scheme) snapshotHelperNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.byName))
	for name := range s.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
