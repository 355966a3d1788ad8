package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/pkoukk/tiktoken-go"

	"support-ticket-client/internal/domain"
	"support-ticket-client/internal/domain/ports/adapter"
)

var _ adapter.TicketBackend = (*OpenAITicketBackend)(nil)

const responderPrompt = `You are a helpful support agent. Write a short, practical reply.
Rules:
- Keep it 6-10 lines max
- Be friendly and direct
- Give clear steps
- Ask ONE clarifying question only if needed`

// OpenAITicketBackend answers tickets directly through an OpenAI-compatible
// chat completions API. It is used when no support agent service is deployed.
type OpenAITicketBackend struct {
	client    openai.Client
	model     string
	maxTokens int

	encOnce sync.Once
	enc     *tiktoken.Tiktoken
}

// NewOpenAITicketBackend builds the responder. baseURL may be empty for the
// public OpenAI endpoint. maxPromptTokens <= 0 disables prompt budgeting.
func NewOpenAITicketBackend(apiKey, baseURL, model string, maxPromptTokens int, opts ...option.RequestOption) (*OpenAITicketBackend, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	all := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		all = append(all, option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}
	all = append(all, opts...)
	return &OpenAITicketBackend{
		client:    openai.NewClient(all...),
		model:     model,
		maxTokens: maxPromptTokens,
	}, nil
}

func (o *OpenAITicketBackend) Submit(ctx context.Context, subject, text string) (adapter.TicketReply, error) {
	prompt := fmt.Sprintf("CUSTOMER ISSUE:\nSubject: %s\nDescription: %s", subject, o.budget(text))
	completion, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(responderPrompt),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0.3),
	})
	if err != nil {
		return adapter.TicketReply{}, fmt.Errorf("%w: %v", domain.ErrBackend, err)
	}
	for _, c := range completion.Choices {
		if c.Message.Content != "" {
			return adapter.TicketReply{Text: c.Message.Content, Status: "answered", AttemptsUsed: 1}, nil
		}
	}
	// no content is treated like a missing "response" field
	return adapter.TicketReply{Status: "answered", AttemptsUsed: 1}, nil
}

// budget truncates text to the configured prompt token budget.
func (o *OpenAITicketBackend) budget(text string) string {
	if o.maxTokens <= 0 {
		return text
	}
	o.encOnce.Do(func() {
		enc, err := tiktoken.EncodingForModel(o.model)
		if err != nil {
			enc, _ = tiktoken.GetEncoding("cl100k_base")
		}
		o.enc = enc
	})
	if o.enc == nil {
		// roughly four bytes per token when no encoding is available
		if limit := o.maxTokens * 4; len(text) > limit {
			return strings.ToValidUTF8(text[:limit], "")
		}
		return text
	}
	toks := o.enc.Encode(text, nil, nil)
	if len(toks) <= o.maxTokens {
		return text
	}
	return o.enc.Decode(toks[:o.maxTokens])
}
