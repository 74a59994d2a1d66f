package apprun_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orchestra-run/orchestra/apprun"
	"github.com/orchestra-run/orchestra/config"
	"github.com/orchestra-run/orchestra/engine"
	"github.com/orchestra-run/orchestra/engine/enginetest"
	"github.com/orchestra-run/orchestra/tool"
)

func testConfig() *config.Config {
	cfg := &config.Config{
		Name:                   "test",
		RootEngine:             "fake",
		DelegateEngine:         "fake",
		MaxDelegationDepth:     4,
		RequestConcurrency:     3,
		RetryAttempts:          2,
		AutoAggregateThreshold: 4,
		RootSystemPrompt:       "you are root",
		DelegateSystemPrompt:   "you are a delegate",
	}
	return cfg
}

func TestRuntime_RunBuildsRootLazilyAndAnswers(t *testing.T) {
	rt := apprun.New(testConfig(), func(depth int) engine.Engine {
		return enginetest.New(enginetest.Turn{Text: "the answer is 42"})
	}, tool.Configs{})

	assert.Equal(t, 0, rt.AgentCount())

	out, err := rt.Run(context.Background(), "what is the answer?")
	require.NoError(t, err)
	assert.Equal(t, "the answer is 42", out)
	assert.Equal(t, 1, rt.AgentCount())
}

func TestRuntime_CloseIsNoopBeforeRun(t *testing.T) {
	rt := apprun.New(testConfig(), func(depth int) engine.Engine {
		return enginetest.New(enginetest.Turn{Text: "ok"})
	}, tool.Configs{})
	require.NoError(t, rt.Close(context.Background()))
}

func TestRuntime_CloseAfterRunSucceeds(t *testing.T) {
	rt := apprun.New(testConfig(), func(depth int) engine.Engine {
		return enginetest.New(enginetest.Turn{Text: "ok"})
	}, tool.Configs{})
	_, err := rt.Run(context.Background(), "hello")
	require.NoError(t, err)
	require.NoError(t, rt.Close(context.Background()))
}
