package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/looplj/modelrelay/handoff"
	"github.com/looplj/modelrelay/llm"
	"github.com/looplj/modelrelay/runtime"
)

// maxToolRounds bounds how many tool round-trips a single user turn may take
// before the turn is abandoned.
const maxToolRounds = 8

type session struct {
	rt              *runtime.Runtime
	out             io.Writer
	modelID         string
	providerHint    *llm.ProviderID
	maxOutputTokens *int64

	history      []llm.Message
	lastProvider llm.ProviderID

	now func() time.Time
}

func newSession(rt *runtime.Runtime, out io.Writer, modelID string, hint *llm.ProviderID, maxOutputTokens *int64) *session {
	return &session{
		rt:              rt,
		out:             out,
		modelID:         modelID,
		providerHint:    hint,
		maxOutputTokens: maxOutputTokens,
		now:             time.Now,
	}
}

// handleLine processes one REPL line and reports whether the session should
// end.
func (s *session) handleLine(ctx context.Context, line string) (bool, error) {
	trimmed := strings.TrimSpace(line)

	switch trimmed {
	case "":
		return false, nil
	case "/exit", "/quit":
		return true, nil
	case "/clear":
		s.history = nil
		s.lastProvider = ""
		fmt.Fprintln(s.out, "history cleared")

		return false, nil
	}

	if err := s.turn(ctx, trimmed); err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
	}

	return false, nil
}

// turn runs one user turn, following tool calls until the model produces a
// final answer. On failure the history rolls back to the pre-turn state so a
// broken exchange never poisons later turns.
func (s *session) turn(ctx context.Context, userText string) error {
	model := llm.ModelRef{ModelID: s.modelID, ProviderHint: s.providerHint}

	if provider, rerr := s.rt.Registry().ResolveProvider(model); rerr == nil {
		if s.lastProvider != "" && s.lastProvider != provider {
			s.history = handoff.Normalize(s.history, provider)
		}
	}

	checkpoint := len(s.history)
	s.history = append(s.history, llm.Message{
		Role:    llm.RoleUser,
		Content: []llm.ContentPart{llm.TextPart(userText)},
	})

	for round := 0; round < maxToolRounds; round++ {
		resp, rerr := s.rt.Run(ctx, &llm.Request{
			Model:           model,
			Messages:        s.history,
			Tools:           []llm.ToolDefinition{timeNowTool()},
			MaxOutputTokens: s.maxOutputTokens,
		})
		if rerr != nil {
			s.history = s.history[:checkpoint]

			return rerr
		}

		s.lastProvider = resp.Provider
		s.history = append(s.history, llm.Message{
			Role:    llm.RoleAssistant,
			Content: resp.Output.Content,
		})

		calls := resp.ToolCalls()
		if len(calls) == 0 {
			s.printResponse(resp)

			return nil
		}

		for _, call := range calls {
			s.history = append(s.history, llm.Message{
				Role: llm.RoleTool,
				Content: []llm.ContentPart{llm.ToolResultPart(llm.ToolResult{
					ToolCallID: call.ID,
					Content:    llm.ToolResultContentText(s.callTool(call)),
				})},
			})
		}
	}

	s.history = s.history[:checkpoint]

	return fmt.Errorf("model did not answer within %d tool rounds", maxToolRounds)
}

func (s *session) printResponse(resp *llm.Response) {
	if text := resp.TextContent(); text != "" {
		fmt.Fprintln(s.out, text)
	}

	if resp.Output.StructuredOutput != nil {
		fmt.Fprintln(s.out, string(resp.Output.StructuredOutput))
	}

	for _, warning := range resp.Warnings {
		fmt.Fprintf(s.out, "  [%s] %s\n", warning.Code, warning.Message)
	}

	if resp.Cost != nil {
		fmt.Fprintf(s.out, "  [cost] %.6f %s (%s)\n", resp.Cost.TotalCost, resp.Cost.Currency, resp.Cost.PricingSource)
	}
}

func timeNowTool() llm.ToolDefinition {
	description := "Returns the current date and time, optionally in a named IANA timezone."

	return llm.ToolDefinition{
		Name:        "time_now",
		Description: &description,
		ParametersSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"timezone": {"type": "string", "description": "IANA timezone name, e.g. Europe/Berlin"}
			},
			"additionalProperties": false
		}`),
	}
}

// callTool executes a builtin tool and renders its result as text. Unknown
// tools and bad arguments report the problem back to the model instead of
// failing the turn.
func (s *session) callTool(call llm.ToolCall) string {
	if call.Name != "time_now" {
		return fmt.Sprintf("unknown tool: %s", call.Name)
	}

	var args struct {
		Timezone string `json:"timezone"`
	}

	if len(call.ArgumentsJSON) > 0 {
		if err := json.Unmarshal(call.ArgumentsJSON, &args); err != nil {
			return fmt.Sprintf("invalid time_now arguments: %v", err)
		}
	}

	location := time.UTC

	if args.Timezone != "" {
		loaded, err := time.LoadLocation(args.Timezone)
		if err != nil {
			return fmt.Sprintf("unknown timezone: %s", args.Timezone)
		}

		location = loaded
	}

	return s.now().In(location).Format(time.RFC3339)
}
