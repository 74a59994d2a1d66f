// Package tool defines the contract tools bind against: lifecycle
// hooks (Setup/Cleanup/Close) and the AI-callable functions they
// expose to an agent's LLM.
//
// Per spec.md §9's redesign guidance, function registration is an
// explicit static descriptor table rather than runtime method
// reflection: each Tool declares its AIFunctions up front and the
// registry consumes the descriptors directly.
package tool

import "context"

// Context is the per-call context handed to an AIFunction handler. It
// carries the caller's agent name/depth so a tool can make
// depth-aware or identity-aware decisions without importing the
// agenttree package (which would create an import cycle back to tool).
type Context struct {
	context.Context
	AgentName  string
	AgentDepth int
}

// AIFunction is one method an LLM may call by name with a JSON object
// of arguments. Handler returns the string the LLM sees as the
// function's result.
type AIFunction struct {
	Name        string
	Description string
	// Parameters is the JSON Schema for the arguments object. Nil
	// means the function takes no parameters.
	Parameters map[string]any
	Handler    func(ctx Context, args map[string]any) (string, error)
}

// Base is the capability set every Tool must implement, mirroring the
// teacher's ToolBase lifecycle (setup/cleanup/close) from tools/interfaces.go,
// generalized to the spec's per-agent tool instances.
type Base interface {
	// Setup is awaited once, concurrently with other tools, right
	// after an agent registers this tool instance. Per spec.md §6 a
	// Tool must tolerate being constructed before any agent exists
	// (a pre-warmed pool tool later rebound); Setup is where such a
	// tool would finish binding to its owning agent.
	Setup(ctx context.Context) error

	// Cleanup releases per-round state but keeps the tool usable
	// (e.g. closing a result cursor). Called once the owning agent's
	// helper task completes, before Close.
	Cleanup(ctx context.Context) error

	// Close releases the tool's resources permanently. Called once,
	// when the owning agent terminates.
	Close(ctx context.Context) error

	// Functions returns the AI-callable functions this tool exposes.
	// Must be stable for the lifetime of the instance: per spec.md's
	// Agent invariant (b), a function map is fixed once an agent is
	// built and never mutated mid-round.
	Functions() []AIFunction
}

// Delegator is the subset of Base a DelegationScheme implementation
// must satisfy so it can be folded into an agent's function map the
// same way a Tool is (spec.md §4.3: "all AI-annotated methods on
// (delegator ∪ tools) are collected").
type Delegator interface {
	Functions() []AIFunction
}
