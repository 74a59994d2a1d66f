// Package apprun assembles the delegation core into a running
// process: it owns the shared runtime state, lazily builds the root
// agent on first use, and tears the whole tree down on Close - the
// process-scope composition root, the way the teacher's AppRuntime
// equivalent (team.Team / app bootstrap) wires services together.
package apprun

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/orchestra-run/orchestra/agenttree"
	"github.com/orchestra-run/orchestra/config"
	"github.com/orchestra-run/orchestra/delegation"
	"github.com/orchestra-run/orchestra/engine"
	"github.com/orchestra-run/orchestra/eventbus"
	"github.com/orchestra-run/orchestra/logging"
	"github.com/orchestra-run/orchestra/tool"
)

func defaultLogWriter() io.Writer { return os.Stderr }

// EngineFactory builds the engine.Engine a root or delegate agent at
// the given depth should run on. The runtime doesn't know about any
// concrete LLM provider (spec.md's transport is out of scope); the
// caller supplies this.
type EngineFactory func(depth int) engine.Engine

// Runtime is the process-scope object a caller builds once: it holds
// the config, the event bus, and the agent tree, and lazily
// constructs the root agent the first time Run is called.
type Runtime struct {
	cfg    *config.Config
	log    *slog.Logger
	shared *delegation.Shared

	mu       sync.Mutex
	rootID   string
	rootOnce sync.Once
	initErr  error
}

// New builds a Runtime from cfg. newEngine is consulted for both the
// root agent (depth 0) and every delegate (depth > 0); toolConfigs
// resolves per-depth tool instantiation exactly as tool.Configs.Resolve
// documents.
func New(cfg *config.Config, newEngine EngineFactory, toolConfigs tool.Configs) *Runtime {
	shared := delegation.NewShared(int64(cfg.RequestConcurrency))
	shared.MaxDelegationDepth = cfg.MaxDelegationDepth
	shared.RetryAttempts = cfg.RetryAttempts
	shared.AutoAggregateThreshold = cfg.AutoAggregateThreshold
	shared.NewEngine = newEngine
	shared.ToolConfigs = toolConfigs
	shared.DelegateSystemPrompt = cfg.DelegateSystemPrompt

	level, _ := logging.ParseLevel(cfg.LogLevel)

	return &Runtime{
		cfg:    cfg,
		log:    logging.New(defaultLogWriter(), level),
		shared: shared,
	}
}

// Bus returns the runtime's shared event bus, for subscribing
// observers (metrics, logging, tests) before Run starts producing events.
func (r *Runtime) Bus() *eventbus.Bus { return r.shared.Bus }

// ensureRoot lazily constructs the root agent the first time it's
// needed, the way the teacher's create_root_kani is only invoked on
// first access rather than at AppRuntime construction.
func (r *Runtime) ensureRoot() (*agenttree.Agent, error) {
	r.rootOnce.Do(func() {
		scheme := delegation.NewScheme(r.shared)

		rootTools, err := tool.Build(r.shared.ToolConfigs.Resolve(0, nil), "root", 0)
		if err != nil {
			r.initErr = fmt.Errorf("apprun: building root tools: %w", err)
			return
		}

		var delegator tool.Delegator
		if r.shared.MaxDelegationDepth > 0 {
			delegator = scheme
		}

		root, err := agenttree.New(agenttree.Config{
			ID:            "root",
			Name:          "root",
			Depth:         0,
			SystemPrompt:  r.cfg.RootSystemPrompt,
			Engine:        r.shared.NewEngine(0),
			Delegator:     delegator,
			Tools:         rootTools,
			Bus:           r.shared.Bus,
			RetryAttempts: r.shared.RetryAttempts,
			Clock:         r.shared.Clock,
		})
		if err != nil {
			r.initErr = fmt.Errorf("apprun: creating root agent: %w", err)
			return
		}
		if delegator != nil {
			scheme.BindOwner(root)
		}
		if err := r.shared.Tree.Add(root); err != nil {
			r.initErr = fmt.Errorf("apprun: registering root agent: %w", err)
			return
		}
		r.rootID = root.ID
		r.log.Info("root agent ready", "name", root.Name)
	})
	if r.initErr != nil {
		return nil, r.initErr
	}
	root, _ := r.shared.Tree.Get(r.rootID)
	return root, nil
}

// Run drives one full user turn through the root agent, building the
// root agent on first call.
func (r *Runtime) Run(ctx context.Context, userText string) (string, error) {
	root, err := r.ensureRoot()
	if err != nil {
		return "", err
	}
	return root.FullRoundStream(ctx, userText)
}

// TaskLog exposes the shared task log snapshot, mainly for
// observability and tests.
func (r *Runtime) TaskLog() []delegation.Entry {
	return r.shared.TaskLog.Snapshot()
}

// AgentCount reports how many agents (root plus every delegate ever
// created) currently exist in the tree.
func (r *Runtime) AgentCount() int {
	return r.shared.Tree.Count()
}

// Close walks the agent tree post-order and closes every agent,
// releasing tool resources from the leaves up before the root.
func (r *Runtime) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rootID == "" {
		return nil
	}
	return r.shared.Tree.CloseAll(ctx, r.rootID)
}
