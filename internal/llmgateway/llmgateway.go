// Package llmgateway implements the tiered LLM cascade from spec §4.4:
// PRO/FLASH/LITE backed by the first-party provider, EXTERNAL reached
// through a third-party multiplexer, transparent fallback on transient
// upstream failures, and the EXTERNAL message-extraction rule.
//
// Grounded on the teacher's tiered client/caller abstractions
// (ai/model/chat/client, ai/providers/openai/chat), generalized from one
// provider to four tiers: openai-go/v3 backs PRO/FLASH/LITE (model name
// selects tier), and a pluggable ExternalClient interface stands in for the
// third-party multiplexer.
package llmgateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/balizero/agentcore/internal/chatmsg"
	"github.com/balizero/agentcore/internal/errs"
	"github.com/balizero/agentcore/internal/tool"
)

// Tier is one of the four cascade tiers.
type Tier string

const (
	TierPRO      Tier = "PRO"
	TierFLASH    Tier = "FLASH"
	TierLITE     Tier = "LITE"
	TierEXTERNAL Tier = "EXTERNAL"
)

// fallbackChains implements the three fallback chains from spec §4.4
// verbatim.
var fallbackChains = map[Tier][]Tier{
	TierPRO:   {TierFLASH, TierEXTERNAL},
	TierFLASH: {TierLITE, TierEXTERNAL},
	TierLITE:  {TierEXTERNAL},
}

// externalMarker is the substring the EXTERNAL message-extraction rule
// splits on (spec §4.4).
const externalMarker = "User Query:"

// Response is send_message's return value.
type Response struct {
	Text          string
	ModelNameUsed string
	ToolCalls     []chatmsg.ToolCall
	Raw           any
}

// ExternalClient abstracts the third-party multiplexer EXTERNAL reaches.
// It accepts only plain chat messages (no structured system/tool context),
// per spec §4.4.
type ExternalClient interface {
	SendPlainMessage(ctx context.Context, systemText, userText string) (string, error)
}

// modelConfig maps a tier to its concrete model name for the first-party
// provider.
type modelConfig struct {
	pro, flash, lite string
}

// Gateway dispatches send_message across the tiered cascade.
type Gateway struct {
	client   openai.Client
	models   modelConfig
	external ExternalClient
}

// Config configures a Gateway.
type Config struct {
	APIKeyPrimary  string // PRO/FLASH/LITE
	APIKeyFallback string // accepted but unused: LITE also authenticates with APIKeyPrimary
	BaseURL        string
	ModelPRO       string
	ModelFLASH     string
	ModelLITE      string
}

func (c *Config) validate() error {
	if c == nil {
		return errors.New("llmgateway: config is nil")
	}
	if c.ModelPRO == "" {
		c.ModelPRO = "gpt-4.1"
	}
	if c.ModelFLASH == "" {
		c.ModelFLASH = "gpt-4.1-mini"
	}
	if c.ModelLITE == "" {
		c.ModelLITE = "gpt-4.1-nano"
	}
	return nil
}

// New builds a Gateway. external may be nil until a multiplexer is wired;
// EXTERNAL tier calls then fail with errs.ErrServiceUnavailable.
func New(cfg *Config, external ExternalClient) (*Gateway, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opts := []option.RequestOption{}
	if cfg.APIKeyPrimary != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKeyPrimary))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Gateway{
		client: openai.NewClient(opts...),
		models: modelConfig{pro: cfg.ModelPRO, flash: cfg.ModelFLASH, lite: cfg.ModelLITE},
		external: external,
	}, nil
}

// SendMessage implements the contract from spec §4.4: tries tier, then
// transparently cascades through tier's fallback chain on a transient
// upstream error, preserving chat_state semantics across attempts.
// Re-raises only once every tier in the chain is exhausted, or immediately
// on a client/validation error.
func (g *Gateway) SendMessage(ctx context.Context, state *chatmsg.ChatState, message string, tier Tier, enableTools bool, tools []tool.Definition) (*Response, error) {
	chain := append([]Tier{tier}, fallbackChains[tier]...)

	var lastErr error
	for _, t := range chain {
		attemptState := state.Clone()
		attemptState.Append(chatmsg.NewUser(message))

		resp, err := g.sendToTier(ctx, t, attemptState, enableTools, tools)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		if !errs.Transient(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("llmgateway: %w: %v", errs.ErrAllTiersExhausted, lastErr)
}

func (g *Gateway) sendToTier(ctx context.Context, tier Tier, state *chatmsg.ChatState, enableTools bool, tools []tool.Definition) (*Response, error) {
	switch tier {
	case TierEXTERNAL:
		return g.sendExternal(ctx, state)
	case TierPRO, TierFLASH, TierLITE:
		return g.sendOpenAI(ctx, tier, state, enableTools, tools)
	default:
		return nil, fmt.Errorf("llmgateway: %w: unknown tier %q", errs.ErrMalformedRequest, tier)
	}
}

func (g *Gateway) sendOpenAI(ctx context.Context, tier Tier, state *chatmsg.ChatState, enableTools bool, tools []tool.Definition) (*Response, error) {
	model := g.modelFor(tier)

	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: toOpenAIMessages(state),
	}
	if enableTools {
		params.Tools = toOpenAITools(tools)
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("llmgateway: %w: empty choices from %s", errs.ErrUnexpectedShape, model)
	}

	choice := resp.Choices[0]
	return &Response{
		Text:          choice.Message.Content,
		ModelNameUsed: model,
		ToolCalls:     toChatmsgToolCalls(choice.Message.ToolCalls),
		Raw:           resp,
	}, nil
}

func (g *Gateway) modelFor(tier Tier) string {
	switch tier {
	case TierPRO:
		return g.models.pro
	case TierFLASH:
		return g.models.flash
	default:
		return g.models.lite
	}
}

// sendExternal implements the EXTERNAL message-extraction rule from spec
// §4.4: the substring after "User Query:" in the composed message becomes
// the user turn; everything before becomes a system message.
func (g *Gateway) sendExternal(ctx context.Context, state *chatmsg.ChatState) (*Response, error) {
	if g.external == nil {
		return nil, fmt.Errorf("llmgateway: %w: EXTERNAL multiplexer not configured", errs.ErrServiceUnavailable)
	}

	composed := composeForExternal(state)
	systemText, userText := extractExternalTurn(composed)

	text, err := g.external.SendPlainMessage(ctx, systemText, userText)
	if err != nil {
		return nil, fmt.Errorf("llmgateway: %w: external call failed: %v", errs.ErrServiceUnavailable, err)
	}
	return &Response{Text: text, ModelNameUsed: "external"}, nil
}

func composeForExternal(state *chatmsg.ChatState) string {
	var b strings.Builder
	if state.System != "" {
		b.WriteString(state.System)
		b.WriteString("\n\n")
	}
	for _, m := range state.History {
		if m.Role == chatmsg.RoleUser {
			b.WriteString(externalMarker)
			b.WriteString(" ")
			b.WriteString(m.Content)
			b.WriteString("\n")
		} else if m.Content != "" {
			b.WriteString(string(m.Role))
			b.WriteString(": ")
			b.WriteString(m.Content)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func extractExternalTurn(composed string) (systemText, userText string) {
	idx := strings.LastIndex(composed, externalMarker)
	if idx < 0 {
		return composed, ""
	}
	return composed[:idx], strings.TrimSpace(composed[idx+len(externalMarker):])
}

func toOpenAIMessages(state *chatmsg.ChatState) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(state.History)+1)
	if state.System != "" {
		msgs = append(msgs, openai.SystemMessage(state.System))
	}
	for _, m := range state.History {
		switch m.Role {
		case chatmsg.RoleUser:
			msgs = append(msgs, openai.UserMessage(m.Content))
		case chatmsg.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		case chatmsg.RoleTool:
			msgs = append(msgs, openai.ToolMessage(m.Content, m.ToolCallID))
		case chatmsg.RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		}
	}
	return msgs
}

func toOpenAITools(tools []tool.Definition) []openai.ChatCompletionToolUnionParam {
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openai.String(t.Description),
			Parameters:  t.ParametersSchema,
		}))
	}
	return out
}

func toChatmsgToolCalls(calls []openai.ChatCompletionMessageToolCallUnion) []chatmsg.ToolCall {
	out := make([]chatmsg.ToolCall, 0, len(calls))
	for _, c := range calls {
		fn := c.Function
		out = append(out, chatmsg.ToolCall{ID: c.ID, ToolName: fn.Name, Arguments: fn.Arguments})
	}
	return out
}

// classifyOpenAIError maps the SDK's error shape onto the sentinel taxonomy
// so Gateway's fallback logic can decide transiently vs. permanently.
func classifyOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401, 403:
			return fmt.Errorf("llmgateway: %w: %v", errs.ErrUpstreamAuth, err)
		case 429:
			return fmt.Errorf("llmgateway: %w: %v", errs.ErrRateLimited, err)
		case 500, 502, 503, 504:
			return fmt.Errorf("llmgateway: %w: %v", errs.ErrServiceUnavailable, err)
		case 400, 422:
			return fmt.Errorf("llmgateway: %w: %v", errs.ErrMalformedRequest, err)
		}
	}
	return fmt.Errorf("llmgateway: %w: %v", errs.ErrServiceUnavailable, err)
}

// HealthCheck probes every tier with a trivial prompt, per spec §4.4.
func (g *Gateway) HealthCheck(ctx context.Context) map[Tier]bool {
	result := make(map[Tier]bool, 4)
	for _, t := range []Tier{TierPRO, TierFLASH, TierLITE, TierEXTERNAL} {
		state := &chatmsg.ChatState{}
		state.Append(chatmsg.NewUser("ping"))
		_, err := g.sendToTier(ctx, t, state, false, nil)
		result[t] = err == nil || errors.Is(err, errs.ErrMalformedRequest)
	}
	return result
}
