// Package openai adapts github.com/sashabaranov/go-openai's flat
// tool_calls array to the engine's provider.Adapter interface,
// generalized from the teacher's llm/openai/client.go CallLLMWithTools.
package openai

import (
	"context"
	"encoding/json"
	"fmt"

	openailib "github.com/sashabaranov/go-openai"

	"github.com/seqthink/engine/internal/conversation"
	"github.com/seqthink/engine/internal/engerr"
	"github.com/seqthink/engine/internal/provider"
	"github.com/seqthink/engine/internal/toolcall"
)

// Adapter implements provider.Adapter against an OpenAI-compatible
// chat-completions endpoint.
type Adapter struct {
	cfg    *Config
	client *openailib.Client
}

// New creates an Adapter from cfg.
func New(cfg *Config) *Adapter {
	clientCfg := openailib.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Adapter{cfg: cfg, client: openailib.NewClientWithConfig(clientCfg)}
}

func (a *Adapter) Name() string { return "openai" }

func (a *Adapter) Call(ctx context.Context, messages []conversation.Message, tools []toolcall.Definition, forceTool string, opts provider.Options) (conversation.Message, error) {
	req := openailib.ChatCompletionRequest{
		Model:    a.cfg.Model,
		Messages: toOpenAIMessages(messages),
	}
	if len(tools) > 0 {
		req.Tools = toOpenAITools(tools)
	}
	if forceTool != "" {
		req.ToolChoice = openailib.ToolChoice{
			Type:     openailib.ToolTypeFunction,
			Function: openailib.ToolFunction{Name: forceTool},
		}
	}
	if opts.Temperature != nil {
		req.Temperature = float32(*opts.Temperature)
	}
	if opts.MaxTokens != nil {
		req.MaxTokens = *opts.MaxTokens
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return conversation.Message{}, engerr.Wrap(engerr.KindTransport, "openai chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return conversation.Message{}, engerr.New(engerr.KindProtocol, "openai returned no choices")
	}
	return fromOpenAIMessage(resp.Choices[0].Message, tools), nil
}

func toOpenAIMessages(messages []conversation.Message) []openailib.ChatCompletionMessage {
	out := make([]openailib.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := string(m.Role)
		toolCalls := m.ToolCalls()
		if len(toolCalls) > 0 {
			calls := make([]openailib.ToolCall, len(toolCalls))
			for i, tc := range toolCalls {
				calls[i] = openailib.ToolCall{
					ID:   tc.ToolCallID,
					Type: openailib.ToolTypeFunction,
					Function: openailib.FunctionCall{
						Name:      tc.ToolName,
						Arguments: string(tc.ToolArgs),
					},
				}
			}
			out = append(out, openailib.ChatCompletionMessage{
				Role:      role,
				Content:   m.TextOnly(),
				ToolCalls: calls,
			})
			continue
		}
		for _, b := range m.Blocks {
			if b.Kind == conversation.BlockToolResult {
				out = append(out, openailib.ChatCompletionMessage{
					Role:       string(conversation.RoleTool),
					Content:    toolResultText(b.ToolOutput, b.ToolError),
					ToolCallID: b.ToolResultFor,
				})
			}
		}
		if text := m.TextOnly(); text != "" || len(m.Blocks) == 0 {
			out = append(out, openailib.ChatCompletionMessage{Role: role, Content: text})
		}
	}
	return out
}

func toolResultText(output, errMsg string) string {
	if errMsg != "" {
		return fmt.Sprintf("error: %s", errMsg)
	}
	return output
}

func toOpenAITools(defs []toolcall.Definition) []openailib.Tool {
	out := make([]openailib.Tool, len(defs))
	for i, d := range defs {
		var params map[string]any
		if len(d.Parameters) > 0 {
			_ = json.Unmarshal(d.Parameters, &params)
		}
		out[i] = openailib.Tool{
			Type: openailib.ToolTypeFunction,
			Function: &openailib.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  params,
			},
		}
	}
	return out
}

func fromOpenAIMessage(m openailib.ChatCompletionMessage, tools []toolcall.Definition) conversation.Message {
	var blocks []conversation.Block
	if m.Content != "" {
		blocks = append(blocks, conversation.Block{Kind: conversation.BlockText, Text: m.Content})
	}
	for _, tc := range m.ToolCalls {
		blocks = append(blocks, conversation.Block{
			Kind:       conversation.BlockToolCall,
			ToolCallID: tc.ID,
			ToolName:   toolcall.ResolveWireName(tc.Function.Name, tools),
			ToolArgs:   json.RawMessage(tc.Function.Arguments),
		})
	}
	return conversation.Message{Role: conversation.RoleAssistant, Blocks: blocks}
}
