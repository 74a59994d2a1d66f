package agenttree_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orchestra-run/orchestra/agenttree"
	"github.com/orchestra-run/orchestra/engine"
	"github.com/orchestra-run/orchestra/engine/enginetest"
	"github.com/orchestra-run/orchestra/eventbus"
	"github.com/orchestra-run/orchestra/tool"
)

// fakeClock never actually sleeps, so backoff-driven tests run fast.
type fakeClock struct {
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return time.Time{} }
func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	return nil
}

func newTestAgent(t *testing.T, eng engine.Engine, opts ...func(*agenttree.Config)) (*agenttree.Agent, *fakeClock) {
	t.Helper()
	clock := &fakeClock{}
	cfg := agenttree.Config{
		ID:            "a1",
		Name:          "root",
		Depth:         0,
		SystemPrompt:  "you are the root agent",
		Engine:        eng,
		Bus:           eventbus.New(),
		RetryAttempts: 3,
		Clock:         clock,
	}
	for _, o := range opts {
		o(&cfg)
	}
	a, err := agenttree.New(cfg)
	require.NoError(t, err)
	return a, clock
}

func TestFullRoundStream_ReturnsFinalTextWithNoToolCalls(t *testing.T) {
	eng := enginetest.New(enginetest.Turn{Text: "hello there"})
	a, _ := newTestAgent(t, eng)

	out, err := a.FullRoundStream(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello there", out)
	assert.Equal(t, agenttree.StateIdle, a.State())
}

func TestFullRoundStream_ExecutesToolCallThenFinalAnswer(t *testing.T) {
	called := false
	eng := enginetest.New(
		enginetest.Turn{Text: "", ToolCalls: []engine.ToolCall{{ID: "c1", Name: "ping", Arguments: nil}}},
		enginetest.Turn{Text: "done"},
	)

	delegator := &fakeDelegator{fns: []tool.AIFunction{{
		Name: "ping",
		Handler: func(ctx tool.Context, args map[string]any) (string, error) {
			called = true
			return "pong", nil
		},
	}}}

	a, _ := newTestAgent(t, eng, func(c *agenttree.Config) { c.Delegator = delegator })

	out, err := a.FullRoundStream(context.Background(), "hi")
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "done", out)

	history := a.History()
	var sawToolMsg bool
	for _, m := range history {
		if m.Role == engine.RoleTool && m.Content == "pong" {
			sawToolMsg = true
		}
	}
	assert.True(t, sawToolMsg)
}

func TestFullRoundStream_RetriesOnRateLimitWithBackoff(t *testing.T) {
	eng := enginetest.New(
		enginetest.Turn{Err: engine.ErrRateLimited},
		enginetest.Turn{Err: engine.ErrRateLimited},
		enginetest.Turn{Text: "finally"},
	)
	a, clock := newTestAgent(t, eng)

	out, err := a.FullRoundStream(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "finally", out)
	require.Len(t, clock.sleeps, 2)
	assert.Equal(t, 2*time.Second, clock.sleeps[0])
	assert.Equal(t, 4*time.Second, clock.sleeps[1])
}

func TestFullRoundStream_NonRetryableErrorReturnsImmediately(t *testing.T) {
	eng := enginetest.New(enginetest.Turn{Err: assertError{"boom"}})
	a, clock := newTestAgent(t, eng)

	_, err := a.FullRoundStream(context.Background(), "hi")
	require.Error(t, err)
	assert.Empty(t, clock.sleeps)
}

func TestFullRoundStream_UnknownFunctionNameReportsErrorInBand(t *testing.T) {
	eng := enginetest.New(
		enginetest.Turn{ToolCalls: []engine.ToolCall{{ID: "c1", Name: "nonexistent"}}},
		enginetest.Turn{Text: "recovered"},
	)
	a, _ := newTestAgent(t, eng)

	out, err := a.FullRoundStream(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
}

func TestFullRoundStream_RendersSystemPromptPlaceholdersPerRound(t *testing.T) {
	eng := enginetest.New(enginetest.Turn{Text: "hello"})
	a, _ := newTestAgent(t, eng, func(c *agenttree.Config) {
		c.Name = "scout"
		c.SystemPrompt = "you are {name}, a {role} agent, the time is {time}"
	})

	_, err := a.FullRoundStream(context.Background(), "hi")
	require.NoError(t, err)

	history := a.History()
	require.NotEmpty(t, history)
	require.Equal(t, engine.RoleSystem, history[0].Role)
	assert.Equal(t, "you are scout, a root agent, the time is 0001-01-01T00:00:00Z", history[0].Content)
}

type fakeDelegator struct{ fns []tool.AIFunction }

func (d *fakeDelegator) Functions() []tool.AIFunction { return d.fns }

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }
