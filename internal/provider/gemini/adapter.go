// Package gemini adapts google.golang.org/genai's FunctionCall/
// FunctionResponse parts to the engine's provider.Adapter interface —
// a third distinct wire shape: tool calls live as parts inside a
// content array, rather than a flat side-channel array (OpenAI) or
// typed content blocks (Anthropic).
package gemini

import (
	"context"
	"encoding/json"

	"google.golang.org/genai"

	"github.com/seqthink/engine/internal/conversation"
	"github.com/seqthink/engine/internal/engerr"
	"github.com/seqthink/engine/internal/provider"
	"github.com/seqthink/engine/internal/toolcall"
)

// Adapter implements provider.Adapter against the Gemini API.
type Adapter struct {
	cfg    *Config
	client *genai.Client
}

// New creates an Adapter from cfg. Connection is lazy; genai.NewClient
// does not itself perform network I/O.
func New(ctx context.Context, cfg *Config) (*Adapter, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, engerr.Wrap(engerr.KindTransport, "create gemini client", err)
	}
	return &Adapter{cfg: cfg, client: client}, nil
}

func (a *Adapter) Name() string { return "gemini" }

func (a *Adapter) Call(ctx context.Context, messages []conversation.Message, tools []toolcall.Definition, forceTool string, opts provider.Options) (conversation.Message, error) {
	var system string
	var contents []*genai.Content
	for _, m := range messages {
		if m.Role == conversation.RoleSystem {
			system += m.TextOnly()
			continue
		}
		contents = append(contents, toGeminiContent(m))
	}

	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if len(tools) > 0 {
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: toGeminiFunctions(tools)}}
	}
	if forceTool != "" {
		cfg.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode:                 genai.FunctionCallingConfigModeAny,
				AllowedFunctionNames: []string{forceTool},
			},
		}
	}
	if opts.Temperature != nil {
		t := float32(*opts.Temperature)
		cfg.Temperature = &t
	}
	if opts.MaxTokens != nil {
		cfg.MaxOutputTokens = int32(*opts.MaxTokens)
	}

	resp, err := a.client.Models.GenerateContent(ctx, a.cfg.Model, contents, cfg)
	if err != nil {
		return conversation.Message{}, engerr.Wrap(engerr.KindTransport, "gemini generate content", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return conversation.Message{}, engerr.New(engerr.KindProtocol, "gemini returned no candidates")
	}
	return fromGeminiContent(resp.Candidates[0].Content, tools), nil
}

func toGeminiContent(m conversation.Message) *genai.Content {
	role := genai.RoleUser
	if m.Role == conversation.RoleAssistant {
		role = genai.RoleModel
	}
	var parts []*genai.Part
	for _, b := range m.Blocks {
		switch b.Kind {
		case conversation.BlockText:
			if b.Text != "" {
				parts = append(parts, genai.NewPartFromText(b.Text))
			}
		case conversation.BlockToolCall:
			var args map[string]any
			_ = json.Unmarshal(b.ToolArgs, &args)
			parts = append(parts, genai.NewPartFromFunctionCall(toolcall.SanitizeForFunctionName(b.ToolName), args))
		case conversation.BlockToolResult:
			resp := map[string]any{"output": b.ToolOutput}
			if b.ToolError != "" {
				resp = map[string]any{"error": b.ToolError}
			}
			parts = append(parts, genai.NewPartFromFunctionResponse(toolcall.SanitizeForFunctionName(b.ToolResultFor), resp))
		}
	}
	return &genai.Content{Role: role, Parts: parts}
}

// toGeminiFunctions declares each tool under a Gemini-safe name: Gemini's
// function-calling API restricts names to letters, digits, and
// underscores, rejecting the dashes every wire_name contains by
// construction. fromGeminiContent reverses this via
// toolcall.ResolveWireName once Gemini echoes the name back.
func toGeminiFunctions(defs []toolcall.Definition) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, len(defs))
	for i, d := range defs {
		var schema *genai.Schema
		if len(d.Parameters) > 0 {
			schema = &genai.Schema{}
			_ = json.Unmarshal(d.Parameters, schema)
		}
		out[i] = &genai.FunctionDeclaration{
			Name:        toolcall.SanitizeForFunctionName(d.Name),
			Description: d.Description,
			Parameters:  schema,
		}
	}
	return out
}

func fromGeminiContent(c *genai.Content, tools []toolcall.Definition) conversation.Message {
	var blocks []conversation.Block
	for _, p := range c.Parts {
		if p.Text != "" {
			blocks = append(blocks, conversation.Block{Kind: conversation.BlockText, Text: p.Text})
		}
		if p.FunctionCall != nil {
			args, _ := json.Marshal(p.FunctionCall.Args)
			wireName := toolcall.ResolveWireName(p.FunctionCall.Name, tools)
			blocks = append(blocks, conversation.Block{
				Kind:       conversation.BlockToolCall,
				ToolCallID: wireName, // Gemini has no call id; name doubles as correlation key
				ToolName:   wireName,
				ToolArgs:   args,
			})
		}
	}
	return conversation.Message{Role: conversation.RoleAssistant, Blocks: blocks}
}
