package tool

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// FunctionMap builds the name-keyed map of AI-callable functions an
// agent exposes to its engine, from its delegator plus its tool
// instances, the way the teacher's kanis.py _register_tools folds
// get_tool_functions(delegator) and get_tool_functions(tool) for each
// tool into one functions dict and raises on a name collision.
func FunctionMap(delegator Delegator, tools []Base) (map[string]AIFunction, error) {
	functions := make(map[string]AIFunction)

	add := func(source string, fns []AIFunction) error {
		for _, fn := range fns {
			if fn.Name == "" {
				return fmt.Errorf("tool: %s declares an AIFunction with an empty name", source)
			}
			if _, exists := functions[fn.Name]; exists {
				return fmt.Errorf("tool: duplicate AI function name %q (from %s)", fn.Name, source)
			}
			functions[fn.Name] = fn
		}
		return nil
	}

	if delegator != nil {
		if err := add("delegator", delegator.Functions()); err != nil {
			return nil, err
		}
	}
	for i, t := range tools {
		if err := add(fmt.Sprintf("tool[%d]", i), t.Functions()); err != nil {
			return nil, err
		}
	}
	return functions, nil
}

// SetupAll concurrently calls Setup on every tool, the way
// register_child_kani/create_root_kani await all tool.setup() calls
// together. The first error cancels the remaining setups and is
// returned; other tools still run to completion so partial state is
// predictable (all started, none left mid-Setup by an early return).
func SetupAll(ctx context.Context, tools []Base) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range tools {
		t := t
		g.Go(func() error { return t.Setup(gctx) })
	}
	return g.Wait()
}

// CleanupAll concurrently calls Cleanup on every tool, collecting the
// first error but always invoking every Cleanup.
func CleanupAll(ctx context.Context, tools []Base) error {
	g, _ := errgroup.WithContext(ctx)
	for _, t := range tools {
		t := t
		g.Go(func() error { return t.Cleanup(ctx) })
	}
	return g.Wait()
}

// CloseAll concurrently calls Close on every tool.
func CloseAll(ctx context.Context, tools []Base) error {
	g, _ := errgroup.WithContext(ctx)
	for _, t := range tools {
		t := t
		g.Go(func() error { return t.Close(ctx) })
	}
	return g.Wait()
}
