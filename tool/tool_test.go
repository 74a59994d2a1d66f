package tool_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orchestra-run/orchestra/tool"
)

type stubTool struct {
	name string
	fns  []tool.AIFunction
}

func (s *stubTool) Setup(ctx context.Context) error   { return nil }
func (s *stubTool) Cleanup(ctx context.Context) error { return nil }
func (s *stubTool) Close(ctx context.Context) error   { return nil }
func (s *stubTool) Functions() []tool.AIFunction      { return s.fns }

type stubDelegator struct{ fns []tool.AIFunction }

func (d *stubDelegator) Functions() []tool.AIFunction { return d.fns }

func fn(name string) tool.AIFunction {
	return tool.AIFunction{Name: name, Handler: func(ctx tool.Context, args map[string]any) (string, error) {
		return "ok", nil
	}}
}

func TestFunctionMap_MergesDelegatorAndTools(t *testing.T) {
	delegator := &stubDelegator{fns: []tool.AIFunction{fn("delegate"), fn("wait")}}
	tools := []tool.Base{
		&stubTool{name: "calendar", fns: []tool.AIFunction{fn("list_events")}},
		&stubTool{name: "search", fns: []tool.AIFunction{fn("web_search")}},
	}

	functions, err := tool.FunctionMap(delegator, tools)
	require.NoError(t, err)
	assert.Len(t, functions, 4)
	assert.Contains(t, functions, "delegate")
	assert.Contains(t, functions, "wait")
	assert.Contains(t, functions, "list_events")
	assert.Contains(t, functions, "web_search")
}

func TestFunctionMap_DuplicateNameIsError(t *testing.T) {
	delegator := &stubDelegator{fns: []tool.AIFunction{fn("delegate")}}
	tools := []tool.Base{
		&stubTool{fns: []tool.AIFunction{fn("delegate")}},
	}

	_, err := tool.FunctionMap(delegator, tools)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestFunctionMap_NilDelegatorIsFine(t *testing.T) {
	tools := []tool.Base{&stubTool{fns: []tool.AIFunction{fn("ping")}}}
	functions, err := tool.FunctionMap(nil, tools)
	require.NoError(t, err)
	assert.Len(t, functions, 1)
}

type countingTool struct {
	stubTool
	setupCalls   *int
	cleanupCalls *int
	closeCalls   *int
}

func (c *countingTool) Setup(ctx context.Context) error {
	*c.setupCalls++
	return nil
}
func (c *countingTool) Cleanup(ctx context.Context) error {
	*c.cleanupCalls++
	return nil
}
func (c *countingTool) Close(ctx context.Context) error {
	*c.closeCalls++
	return nil
}

func TestSetupCleanupCloseAll_InvokeEveryTool(t *testing.T) {
	setups, cleanups, closes := 0, 0, 0
	tools := []tool.Base{
		&countingTool{setupCalls: &setups, cleanupCalls: &cleanups, closeCalls: &closes},
		&countingTool{setupCalls: &setups, cleanupCalls: &cleanups, closeCalls: &closes},
	}

	require.NoError(t, tool.SetupAll(context.Background(), tools))
	require.NoError(t, tool.CleanupAll(context.Background(), tools))
	require.NoError(t, tool.CloseAll(context.Background(), tools))

	assert.Equal(t, 2, setups)
	assert.Equal(t, 2, cleanups)
	assert.Equal(t, 2, closes)
}

func TestConfigsResolve_AlwaysIncludeAndRequested(t *testing.T) {
	built := func(name string, depth int, kwargs map[string]any) (tool.Base, error) {
		return &stubTool{name: name}, nil
	}
	cfgs := tool.Configs{
		"calendar": {Name: "calendar", New: built, AlwaysInclude: true},
		"admin":    {Name: "admin", New: built, AlwaysIncludeRoot: true},
		"search":   {Name: "search", New: built},
	}

	root := cfgs.Resolve(0, []string{"search"})
	assert.Len(t, root, 2)

	delegate := cfgs.Resolve(1, nil)
	assert.Len(t, delegate, 1)
	assert.Equal(t, "calendar", delegate[0].Name)
}

func TestBuild_InstantiatesEachConfig(t *testing.T) {
	cfgs := []tool.Config{
		{Name: "a", New: func(name string, depth int, kwargs map[string]any) (tool.Base, error) {
			return &stubTool{name: name}, nil
		}},
	}
	tools, err := tool.Build(cfgs, "helper-1", 1)
	require.NoError(t, err)
	require.Len(t, tools, 1)
}
