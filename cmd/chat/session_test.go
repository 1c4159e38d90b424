package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/modelrelay/llm"
	"github.com/looplj/modelrelay/runtime"
)

type scriptedAdapter struct {
	id       llm.ProviderID
	requests []*llm.Request
	script   []func(req *llm.Request) (*llm.Response, error)
}

var _ llm.Adapter = (*scriptedAdapter)(nil)

func (a *scriptedAdapter) ID() llm.ProviderID { return a.id }

func (a *scriptedAdapter) Capabilities() llm.Capabilities {
	return llm.Capabilities{SupportsTools: true, SupportsStructuredOutput: true}
}

func (a *scriptedAdapter) Run(ctx context.Context, req *llm.Request, actx *llm.Context) (*llm.Response, error) {
	a.requests = append(a.requests, req)

	step := a.script[0]
	if len(a.script) > 1 {
		a.script = a.script[1:]
	}

	return step(req)
}

func (a *scriptedAdapter) DiscoverModels(ctx context.Context, opts *llm.DiscoveryOptions, actx *llm.Context) ([]llm.ModelInfo, error) {
	return nil, nil
}

func textResponse(text string) func(req *llm.Request) (*llm.Response, error) {
	return func(req *llm.Request) (*llm.Response, error) {
		return &llm.Response{
			Output:       llm.AssistantOutput{Content: []llm.ContentPart{llm.TextPart(text)}},
			Provider:     llm.ProviderOpenAI,
			Model:        req.Model.ModelID,
			FinishReason: llm.FinishStop,
		}, nil
	}
}

func toolCallResponse(args string) func(req *llm.Request) (*llm.Response, error) {
	return func(req *llm.Request) (*llm.Response, error) {
		return &llm.Response{
			Output: llm.AssistantOutput{Content: []llm.ContentPart{
				llm.ToolCallPart(llm.ToolCall{ID: "call_1", Name: "time_now", ArgumentsJSON: []byte(args)}),
			}},
			Provider:     llm.ProviderOpenAI,
			Model:        req.Model.ModelID,
			FinishReason: llm.FinishToolCalls,
		}, nil
	}
}

func testSession(t *testing.T, adapter *scriptedAdapter) (*session, *strings.Builder) {
	t.Helper()

	rt := runtime.NewBuilder().WithAdapter(adapter).Build()

	out := &strings.Builder{}
	sess := newSession(rt, out, "gpt-5-mini", nil, nil)
	sess.now = func() time.Time { return time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC) }

	return sess, out
}

func TestSession_PlainTurn(t *testing.T) {
	adapter := &scriptedAdapter{
		id:     llm.ProviderOpenAI,
		script: []func(req *llm.Request) (*llm.Response, error){textResponse("hi there")},
	}

	sess, out := testSession(t, adapter)

	quit, err := sess.handleLine(context.Background(), "hello")
	require.NoError(t, err)
	assert.False(t, quit)
	assert.Contains(t, out.String(), "hi there")

	// user turn plus assistant answer
	require.Len(t, sess.history, 2)
	assert.Equal(t, llm.RoleAssistant, sess.history[1].Role)
}

func TestSession_ToolRound(t *testing.T) {
	adapter := &scriptedAdapter{
		id: llm.ProviderOpenAI,
		script: []func(req *llm.Request) (*llm.Response, error){
			toolCallResponse(`{"timezone": "UTC"}`),
			textResponse("it is noon"),
		},
	}

	sess, out := testSession(t, adapter)

	_, err := sess.handleLine(context.Background(), "what time is it?")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "it is noon")

	// user, assistant tool call, tool result, assistant answer
	require.Len(t, sess.history, 4)
	assert.Equal(t, llm.RoleTool, sess.history[2].Role)

	result := sess.history[2].Content[0].ToolResult
	require.NotNil(t, result)
	assert.Equal(t, "call_1", result.ToolCallID)
	assert.Equal(t, "2026-08-24T12:00:00Z", result.Content.Text)

	// The second request carried the tool exchange back to the model.
	require.Len(t, adapter.requests, 2)
	assert.Len(t, adapter.requests[1].Messages, 3)
}

func TestSession_ToolRoundLimit(t *testing.T) {
	adapter := &scriptedAdapter{
		id: llm.ProviderOpenAI,
		script: []func(req *llm.Request) (*llm.Response, error){
			toolCallResponse(`{}`),
		},
	}

	sess, out := testSession(t, adapter)

	_, err := sess.handleLine(context.Background(), "loop forever")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "error: model did not answer within 8 tool rounds")
	assert.Empty(t, sess.history)
	assert.Len(t, adapter.requests, maxToolRounds)
}

func TestSession_FailedTurnRollsBack(t *testing.T) {
	adapter := &scriptedAdapter{
		id: llm.ProviderOpenAI,
		script: []func(req *llm.Request) (*llm.Response, error){
			textResponse("first answer"),
			func(req *llm.Request) (*llm.Response, error) {
				return nil, llm.NewStatusError(llm.ProviderOpenAI, req.Model.ModelID, 500, "", "boom")
			},
		},
	}

	sess, out := testSession(t, adapter)

	_, err := sess.handleLine(context.Background(), "hello")
	require.NoError(t, err)
	require.Len(t, sess.history, 2)

	_, err = sess.handleLine(context.Background(), "second")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "error:")

	// The failed turn left no trace.
	require.Len(t, sess.history, 2)
	assert.Equal(t, "first answer", sess.history[1].Content[0].Text)
}

func TestSession_Commands(t *testing.T) {
	adapter := &scriptedAdapter{
		id:     llm.ProviderOpenAI,
		script: []func(req *llm.Request) (*llm.Response, error){textResponse("ok")},
	}

	sess, out := testSession(t, adapter)

	quit, err := sess.handleLine(context.Background(), "hello")
	require.NoError(t, err)
	assert.False(t, quit)

	quit, err = sess.handleLine(context.Background(), "/clear")
	require.NoError(t, err)
	assert.False(t, quit)
	assert.Empty(t, sess.history)
	assert.Contains(t, out.String(), "history cleared")

	quit, err = sess.handleLine(context.Background(), "/exit")
	require.NoError(t, err)
	assert.True(t, quit)

	quit, err = sess.handleLine(context.Background(), "/quit")
	require.NoError(t, err)
	assert.True(t, quit)
}

func TestCallTool(t *testing.T) {
	sess, _ := testSession(t, &scriptedAdapter{
		id:     llm.ProviderOpenAI,
		script: []func(req *llm.Request) (*llm.Response, error){textResponse("ok")},
	})

	assert.Equal(t, "2026-08-24T12:00:00Z", sess.callTool(llm.ToolCall{Name: "time_now"}))
	assert.Equal(
		t,
		"2026-08-24T14:00:00+02:00",
		sess.callTool(llm.ToolCall{Name: "time_now", ArgumentsJSON: []byte(`{"timezone": "Europe/Berlin"}`)}),
	)
	assert.Equal(
		t,
		"unknown timezone: Atlantis/Lost",
		sess.callTool(llm.ToolCall{Name: "time_now", ArgumentsJSON: []byte(`{"timezone": "Atlantis/Lost"}`)}),
	)
	assert.Equal(t, "unknown tool: weather", sess.callTool(llm.ToolCall{Name: "weather"}))
}
