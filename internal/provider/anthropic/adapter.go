// Package anthropic adapts github.com/anthropics/anthropic-sdk-go's
// tool_use content blocks to the engine's provider.Adapter interface.
// Unlike OpenAI's side-channel tool_calls array, Anthropic represents
// both text and tool calls as content blocks within one message.
// Anthropic tool names accept the same charset as wire_name, so
// toolcall.ResolveWireName's exact-match branch is the one this adapter
// exercises in practice — but the echoed name is still run through it
// rather than trusted straight off the wire (spec §4.C/§9).
package anthropic

import (
	"context"
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/seqthink/engine/internal/conversation"
	"github.com/seqthink/engine/internal/engerr"
	"github.com/seqthink/engine/internal/provider"
	"github.com/seqthink/engine/internal/toolcall"
)

// Adapter implements provider.Adapter against the Anthropic Messages API.
type Adapter struct {
	cfg    *Config
	client anthropic.Client
}

// New creates an Adapter from cfg.
func New(cfg *Config) *Adapter {
	return &Adapter{cfg: cfg, client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey))}
}

func (a *Adapter) Name() string { return "anthropic" }

func (a *Adapter) Call(ctx context.Context, messages []conversation.Message, tools []toolcall.Definition, forceTool string, opts provider.Options) (conversation.Message, error) {
	var system string
	var turns []anthropic.MessageParam
	for _, m := range messages {
		if m.Role == conversation.RoleSystem {
			system += m.TextOnly()
			continue
		}
		turns = append(turns, toAnthropicMessage(m))
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.cfg.Model),
		MaxTokens: a.cfg.MaxTokens,
		Messages:  turns,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(tools) > 0 {
		params.Tools = toAnthropicTools(tools)
	}
	if forceTool != "" {
		params.ToolChoice = anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: forceTool},
		}
	}
	if opts.Temperature != nil {
		params.Temperature = anthropic.Float(*opts.Temperature)
	}
	if opts.MaxTokens != nil {
		params.MaxTokens = int64(*opts.MaxTokens)
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return conversation.Message{}, engerr.Wrap(engerr.KindTransport, "anthropic messages.new", err)
	}
	return fromAnthropicMessage(resp, tools), nil
}

func toAnthropicMessage(m conversation.Message) anthropic.MessageParam {
	var blocks []anthropic.ContentBlockParamUnion
	for _, b := range m.Blocks {
		switch b.Kind {
		case conversation.BlockText:
			if b.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(b.Text))
			}
		case conversation.BlockToolCall:
			var input any
			_ = json.Unmarshal(b.ToolArgs, &input)
			blocks = append(blocks, anthropic.ContentBlockParamUnion{
				OfToolUse: &anthropic.ToolUseBlockParam{
					ID:    b.ToolCallID,
					Name:  b.ToolName,
					Input: input,
				},
			})
		case conversation.BlockToolResult:
			content := b.ToolOutput
			isError := b.ToolError != ""
			if isError {
				content = b.ToolError
			}
			blocks = append(blocks, anthropic.NewToolResultBlock(b.ToolResultFor, content, isError))
		}
	}
	if m.Role == conversation.RoleAssistant {
		return anthropic.NewAssistantMessage(blocks...)
	}
	return anthropic.NewUserMessage(blocks...)
}

func toAnthropicTools(defs []toolcall.Definition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(defs))
	for i, d := range defs {
		var schema map[string]any
		if len(d.Parameters) > 0 {
			_ = json.Unmarshal(d.Parameters, &schema)
		}
		properties, _ := schema["properties"]
		out[i] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        d.Name,
				Description: anthropic.String(d.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: properties,
				},
			},
		}
	}
	return out
}

func fromAnthropicMessage(resp *anthropic.Message, tools []toolcall.Definition) conversation.Message {
	var blocks []conversation.Block
	for _, c := range resp.Content {
		switch c.Type {
		case "text":
			blocks = append(blocks, conversation.Block{Kind: conversation.BlockText, Text: c.Text})
		case "tool_use":
			args, _ := json.Marshal(c.Input)
			blocks = append(blocks, conversation.Block{
				Kind:       conversation.BlockToolCall,
				ToolCallID: c.ID,
				ToolName:   toolcall.ResolveWireName(c.Name, tools),
				ToolArgs:   args,
			})
		}
	}
	return conversation.Message{Role: conversation.RoleAssistant, Blocks: blocks}
}
