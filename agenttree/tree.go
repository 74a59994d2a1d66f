package agenttree

import (
	"context"
	"fmt"
	"sync"
)

// Tree is the arena holding every live Agent, keyed by ID. Agents
// reference each other only by ID (Agent.ParentID), so the Tree is
// the single place that resolves those IDs to live instances; there
// are no pointer cycles between a parent and its children.
type Tree struct {
	mu       sync.RWMutex
	agents   map[string]*Agent
	children map[string][]string // parentID -> child IDs, insertion order
}

// NewTree creates an empty Tree.
func NewTree() *Tree {
	return &Tree{
		agents:   make(map[string]*Agent),
		children: make(map[string][]string),
	}
}

// Add registers agent in the tree and links it under its parent, if any.
func (t *Tree) Add(a *Agent) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.agents[a.ID]; exists {
		return fmt.Errorf("agenttree: agent id %q already registered", a.ID)
	}
	t.agents[a.ID] = a
	if a.ParentID != "" {
		t.children[a.ParentID] = append(t.children[a.ParentID], a.ID)
	}
	return nil
}

// Get returns the agent with the given ID.
func (t *Tree) Get(id string) (*Agent, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	a, ok := t.agents[id]
	return a, ok
}

// Children returns the direct child IDs of parentID, in creation order.
func (t *Tree) Children(parentID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, len(t.children[parentID]))
	copy(out, t.children[parentID])
	return out
}

// Count reports how many agents are currently in the tree.
func (t *Tree) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.agents)
}

// Remove deletes id (and its child links) from the tree. It does not
// close the agent; callers that want Close semantics should call
// Agent.Close before or after Remove as appropriate.
func (t *Tree) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.agents[id]
	if !ok {
		return
	}
	delete(t.agents, id)
	delete(t.children, id)
	if a.ParentID != "" {
		siblings := t.children[a.ParentID]
		for i, childID := range siblings {
			if childID == id {
				t.children[a.ParentID] = append(siblings[:i], siblings[i+1:]...)
				break
			}
		}
	}
}

// CloseAll walks the tree post-order (every descendant before its
// parent) and runs Cleanup then Close on each agent in turn, so a
// delegate always releases its per-round state and its permanent
// resources before the agent that spawned it does. Cleanup is a no-op
// on an agent whose task already completed successfully and was
// cleaned up by the delegation scheme, so every agent still ends up
// cleaned up and closed exactly once. Root is the ID of the tree's
// top-level agent.
func (t *Tree) CloseAll(ctx context.Context, rootID string) error {
	order := t.postOrder(rootID)

	var firstErr error
	for _, id := range order {
		a, ok := t.Get(id)
		if !ok {
			continue
		}
		if err := a.Cleanup(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := a.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *Tree) postOrder(id string) []string {
	var order []string
	for _, childID := range t.Children(id) {
		order = append(order, t.postOrder(childID)...)
	}
	return append(order, id)
}
