// Package enginetest provides a scriptable engine.Engine double for
// exercising the delegation core without a real LLM backend, the way
// the teacher's test suites stub out providers behind an interface.
package enginetest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/orchestra-run/orchestra/engine"
)

// Turn is one scripted response: either assistant text, one or more
// tool calls, or an error to return instead.
type Turn struct {
	Text      string
	ToolCalls []engine.ToolCall
	Err       error
}

// Engine replays a fixed script of Turns, one per call to Stream,
// looping the last turn if Stream is called more times than scripted.
type Engine struct {
	mu       sync.Mutex
	turns    []Turn
	calls    int64
	maxCtx   int
	onStream func(prompt []engine.Message) // optional observation hook
}

// New creates a fake engine that replays turns in order.
func New(turns ...Turn) *Engine {
	return &Engine{turns: turns, maxCtx: 128_000}
}

// OnStream installs an observation callback invoked synchronously at
// the start of every Stream call, before emitting the scripted turn.
func (e *Engine) OnStream(fn func(prompt []engine.Message)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onStream = fn
}

// Calls reports how many times Stream has been invoked.
func (e *Engine) Calls() int { return int(atomic.LoadInt64(&e.calls)) }

func (e *Engine) MaxContextSize() int { return e.maxCtx }

func (e *Engine) MessageTokenLen(msg engine.Message) int {
	return len(msg.Content)/4 + 1
}

func (e *Engine) Stream(ctx context.Context, prompt []engine.Message, functions []engine.FunctionSchema) (<-chan engine.StreamEvent, <-chan engine.StreamResult, <-chan error) {
	events := make(chan engine.StreamEvent, 8)
	results := make(chan engine.StreamResult, 1)
	errs := make(chan error, 1)

	idx := int(atomic.AddInt64(&e.calls, 1)) - 1

	e.mu.Lock()
	hook := e.onStream
	var turn Turn
	if len(e.turns) > 0 {
		if idx < len(e.turns) {
			turn = e.turns[idx]
		} else {
			turn = e.turns[len(e.turns)-1]
		}
	}
	e.mu.Unlock()

	if hook != nil {
		hook(prompt)
	}

	go func() {
		defer close(events)
		defer close(results)
		defer close(errs)

		select {
		case <-ctx.Done():
			errs <- ctx.Err()
			return
		default:
		}

		if turn.Err != nil {
			errs <- turn.Err
			return
		}

		for _, tok := range chunkText(turn.Text) {
			select {
			case events <- engine.StreamEvent{Token: tok}:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		for i := range turn.ToolCalls {
			tc := turn.ToolCalls[i]
			select {
			case events <- engine.StreamEvent{ToolCall: &tc}:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}

		results <- engine.StreamResult{
			Message: engine.Message{
				Role:      engine.RoleAssistant,
				Content:   turn.Text,
				ToolCalls: turn.ToolCalls,
			},
			TokensUsed: len(turn.Text)/4 + 1,
		}
	}()

	return events, results, errs
}

func chunkText(text string) []string {
	if text == "" {
		return nil
	}
	return []string{text}
}
