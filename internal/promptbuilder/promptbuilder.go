// Package promptbuilder assembles the system prompt injected into the LLM
// gateway: persona rules, language tag, user facts, collective facts, and
// retrieved context, rendered through one fixed template (there are no
// mode-specific template variants), then token-budgets the result.
//
// Grounded on the teacher's ai/core/chat/prompt.Template (text/template +
// strings.Builder rendering), generalized to a fixed template that accepts
// MemoryContext and RetrievedChunk slices instead of an arbitrary attr map,
// plus a tiktoken-go budget check that trims the oldest conversation turns
// first when the assembled prompt would exceed the model's context budget.
package promptbuilder

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/pkoukk/tiktoken-go"

	"github.com/balizero/agentcore/internal/chatmsg"
	"github.com/balizero/agentcore/internal/domain"
	"github.com/balizero/agentcore/internal/memory"
	"github.com/balizero/agentcore/internal/retrieval"
)

const personaTemplate = `You are Bali Zero's business assistant, helping clients with Indonesian immigration, tax, legal, and KBLI business-classification questions.
Respond in {{.Language}}. Be precise, concise, and cite the retrieved context when relevant.
{{if .UserFacts}}
Known facts about this user:
{{range .UserFacts}}- {{.}}
{{end}}{{end}}
{{if .CollectiveFacts}}
Community-confirmed facts relevant to this query:
{{range .CollectiveFacts}}- {{.}}
{{end}}{{end}}
{{if .RetrievedContext}}
Retrieved context:
{{range .RetrievedContext}}---
{{.}}
{{end}}{{end}}`

// templateData feeds the fixed persona template.
type templateData struct {
	Language         string
	UserFacts        []string
	CollectiveFacts  []string
	RetrievedContext []string
}

// DefaultTokenBudget is the assembled system prompt's token ceiling before
// history trimming kicks in.
const DefaultTokenBudget = 6000

// Builder assembles and token-budgets the system prompt.
type Builder struct {
	tokenizer   *tiktoken.Tiktoken
	tokenBudget int
}

// New builds a Builder. tokenBudget <= 0 defaults to DefaultTokenBudget.
func New(tokenBudget int) (*Builder, error) {
	if tokenBudget <= 0 {
		tokenBudget = DefaultTokenBudget
	}
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("promptbuilder: failed to load tokenizer: %w", err)
	}
	return &Builder{tokenizer: enc, tokenBudget: tokenBudget}, nil
}

// Input bundles everything a turn contributes to the system prompt.
type Input struct {
	Language        string
	MemoryContext   *memory.MemoryContext
	RetrievedChunks []retrieval.Result
}

// BuildSystemPrompt renders the persona template against Input, producing
// the system message text for chatmsg.ChatState.System.
func (b *Builder) BuildSystemPrompt(in Input) (string, error) {
	data := templateData{Language: languageOrDefault(in.Language)}

	if in.MemoryContext != nil {
		for _, f := range in.MemoryContext.ProfileFacts {
			data.UserFacts = append(data.UserFacts, f.Content)
		}
		for _, f := range in.MemoryContext.CollectiveFacts {
			data.CollectiveFacts = append(data.CollectiveFacts, f.Content)
		}
	}
	for _, r := range in.RetrievedChunks {
		data.RetrievedContext = append(data.RetrievedContext, r.Text)
	}

	tpl, err := template.New("system").Parse(personaTemplate)
	if err != nil {
		return "", fmt.Errorf("promptbuilder: failed to parse template: %w", err)
	}

	var sb strings.Builder
	if err := tpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("promptbuilder: failed to render template: %w", err)
	}
	return sb.String(), nil
}

// BuildChatState assembles the full ChatState for a turn, trimming the
// oldest conversation turns first when the system prompt plus history would
// exceed the token budget (spec-intent expansion of §4.5 step 4's "build
// system prompt").
func (b *Builder) BuildChatState(in Input, history []domain.ConversationMessage) (*chatmsg.ChatState, error) {
	system, err := b.BuildSystemPrompt(in)
	if err != nil {
		return nil, err
	}

	msgs := make([]chatmsg.Message, 0, len(history))
	for _, h := range history {
		switch h.Role {
		case domain.RoleUser:
			msgs = append(msgs, chatmsg.NewUser(h.Content))
		case domain.RoleAssistant:
			msgs = append(msgs, chatmsg.NewAssistant(h.Content))
		}
	}

	state := &chatmsg.ChatState{System: system, History: msgs}
	b.trimToBudget(state)
	return state, nil
}

func (b *Builder) trimToBudget(state *chatmsg.ChatState) {
	for b.tokenCount(state) > b.tokenBudget && len(state.History) > 0 {
		state.History = state.History[1:]
	}
}

func (b *Builder) tokenCount(state *chatmsg.ChatState) int {
	total := len(b.tokenizer.Encode(state.System, nil, nil))
	for _, m := range state.History {
		total += len(b.tokenizer.Encode(m.Content, nil, nil))
	}
	return total
}

func languageOrDefault(lang string) string {
	if lang == "" {
		return "Indonesian"
	}
	return lang
}
