package tool

// Factory constructs one tool instance bound to a specific agent.
// agentName/agentDepth let a tool specialize itself per-agent (e.g. a
// sandboxed filesystem tool scoping its root to the delegate's task)
// without the tool package depending on agenttree.
type Factory func(agentName string, agentDepth int, kwargs map[string]any) (Base, error)

// Config describes one tool class available to the runtime: how to
// build it, and which agents get an instance of it, mirroring the
// teacher's app.tool_configs consulted by register_child_kani /
// create_root_kani.
type Config struct {
	// Name identifies the tool class for logging and config lookup.
	Name string

	// New builds one instance of the tool.
	New Factory

	// AlwaysInclude, when true, gives every delegate agent (depth > 0)
	// an instance of this tool, in addition to whatever the caller
	// requests explicitly.
	AlwaysInclude bool

	// AlwaysIncludeRoot, when true, gives the root agent an instance
	// of this tool regardless of what is requested explicitly.
	AlwaysIncludeRoot bool

	// Kwargs are passed through to New for every instance built from
	// this Config.
	Kwargs map[string]any
}

// Configs is the full set of tool classes the runtime knows about,
// keyed by Config.Name.
type Configs map[string]Config

// Resolve returns the Configs that should be instantiated for an
// agent at the given depth, given the set of tool names explicitly
// requested (e.g. by a delegate's task assignment). Names not found in
// c are silently ignored.
func (c Configs) Resolve(depth int, requested []string) []Config {
	seen := make(map[string]bool, len(requested))
	var out []Config

	take := func(name string) {
		if seen[name] {
			return
		}
		cfg, ok := c[name]
		if !ok {
			return
		}
		seen[name] = true
		out = append(out, cfg)
	}

	for _, cfg := range c {
		if depth == 0 && cfg.AlwaysIncludeRoot {
			take(cfg.Name)
		}
		if depth > 0 && cfg.AlwaysInclude {
			take(cfg.Name)
		}
	}
	for _, name := range requested {
		take(name)
	}
	return out
}

// Build instantiates every Config in cfgs for the given agent.
func Build(cfgs []Config, agentName string, agentDepth int) ([]Base, error) {
	tools := make([]Base, 0, len(cfgs))
	for _, cfg := range cfgs {
		t, err := cfg.New(agentName, agentDepth, cfg.Kwargs)
		if err != nil {
			return nil, err
		}
		tools = append(tools, t)
	}
	return tools, nil
}
