package agenttree

import (
	"context"
	"fmt"
	"time"

	"github.com/orchestra-run/orchestra/engine"
	"github.com/orchestra-run/orchestra/eventbus"
	"github.com/orchestra-run/orchestra/tool"
)

// maxRoundsPerTurn bounds how many engine round-trips one FullRoundStream
// call will drive before giving up, guarding against a misbehaving
// engine that never stops requesting tool calls.
const maxRoundsPerTurn = 25

// FullRoundStream drives one full user turn to completion: it appends
// userText to history, then repeatedly calls the engine for a round,
// executes any requested tool calls sequentially, and feeds their
// results back, until the engine produces an assistant message with
// no further tool calls. That final message's text is returned.
//
// Rate-limited and transient engine errors are retried with
// exponential backoff (governed by a.clock, so tests can run this
// deterministically and fast) up to a.retryAttempts times before the
// error is returned to the caller.
func (a *Agent) FullRoundStream(ctx context.Context, userText string) (string, error) {
	a.appendHistory(engine.Message{Role: engine.RoleUser, Content: userText})
	a.setState(StateRunning)
	defer func() {
		if a.State() == StateRunning {
			a.setState(StateIdle)
		}
	}()

	for round := 0; round < maxRoundsPerTurn; round++ {
		result, err := a.runOneRound(ctx)
		if err != nil {
			return "", err
		}

		a.appendHistory(result.Message)

		if len(result.Message.ToolCalls) == 0 {
			return result.Message.Content, nil
		}

		for _, call := range result.Message.ToolCalls {
			toolMsg := a.executeToolCall(ctx, call)
			a.appendHistory(toolMsg)
		}
	}

	return "", fmt.Errorf("agenttree: agent %q exceeded %d rounds without a final answer", a.Name, maxRoundsPerTurn)
}

// runOneRound calls the engine exactly once, retrying on a retryable
// error per a.retryAttempts with exponential backoff (2s, 4s, 8s, ...).
func (a *Agent) runOneRound(ctx context.Context) (engine.StreamResult, error) {
	var lastErr error

	for attempt := 0; attempt <= a.retryAttempts; attempt++ {
		if attempt > 0 {
			if err := a.clock.Sleep(ctx, backoffDuration(attempt)); err != nil {
				return engine.StreamResult{}, err
			}
		}

		a.refreshSystemPromptSlot()
		prompt := a.assemblePrompt()
		events, results, errs := a.engine.Stream(ctx, prompt, a.functionSchemas())

		result, err := drainStream(ctx, events, results, errs)
		if err == nil {
			return result, nil
		}

		retryable, _ := engine.ClassifyError(err)
		lastErr = err
		if !retryable {
			return engine.StreamResult{}, err
		}
	}
	return engine.StreamResult{}, fmt.Errorf("agenttree: agent %q: retries exhausted: %w", a.Name, lastErr)
}

// backoffDuration returns the exponential backoff for the given
// attempt (1-indexed): 2s, 4s, 8s, ...
func backoffDuration(attempt int) time.Duration {
	base := 1 << uint(attempt-1)
	return time.Duration(base) * 2 * time.Second
}

// drainStream consumes events (discarding token text, which the core
// doesn't need once streaming reaches an agenttree caller that only
// wants the final message) until results or errs yields, or ctx is
// cancelled.
func drainStream(ctx context.Context, events <-chan engine.StreamEvent, results <-chan engine.StreamResult, errs <-chan error) (engine.StreamResult, error) {
	for {
		select {
		case <-ctx.Done():
			return engine.StreamResult{}, ctx.Err()
		case _, ok := <-events:
			if !ok {
				events = nil
			}
		case result, ok := <-results:
			if ok {
				return result, nil
			}
			results = nil
		case err, ok := <-errs:
			if ok && err != nil {
				return engine.StreamResult{}, err
			}
			errs = nil
		}
		if events == nil && results == nil && errs == nil {
			return engine.StreamResult{}, fmt.Errorf("agenttree: engine closed all channels without a result or error")
		}
	}
}

// executeToolCall dispatches call to the matching AIFunction handler
// and wraps the outcome as a RoleTool message. An unknown function
// name or handler error becomes error text in the tool message rather
// than aborting the round, mirroring how a real LLM backend expects
// tool failures to be reported back in-band so the model can react.
func (a *Agent) executeToolCall(ctx context.Context, call engine.ToolCall) engine.Message {
	fn, ok := a.functions[call.Name]
	var content string
	var callErr error

	if !ok {
		callErr = fmt.Errorf("unknown function %q", call.Name)
	} else {
		toolCtx := tool.Context{Context: ctx, AgentName: a.Name, AgentDepth: a.Depth}
		content, callErr = fn.Handler(toolCtx, call.Arguments)
	}

	errText := ""
	if callErr != nil {
		errText = callErr.Error()
		content = fmt.Sprintf("error: %s", errText)
	}

	a.dispatch(eventbus.Event{
		Kind:     eventbus.KindToolCall,
		ToolName: call.Name,
		ToolArgs: call.Arguments,
		ToolErr:  errText,
	})

	return engine.Message{
		Role:       engine.RoleTool,
		Name:       call.Name,
		ToolCallID: call.ID,
		Content:    content,
	}
}
