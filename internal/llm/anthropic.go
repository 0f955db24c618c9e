package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"streamchat/internal/domain"
)

// AnthropicProvider implementa Provider con el SDK oficial de Anthropic (messages).
type AnthropicProvider struct {
	client anthropic.Client
}

func NewAnthropicProvider(baseURL, apiKey string, opts ...option.RequestOption) (*AnthropicProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("anthropic api key is required")
	}
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	opts = append([]option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	}, opts...)
	return &AnthropicProvider{client: anthropic.NewClient(opts...)}, nil
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

// Stream envia el request. La API de Anthropic no tiene frequency penalty, ese parametro se omite.
func (p *AnthropicProvider) Stream(ctx context.Context, req Request) TextStream {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   req.Options.MaxOutputTokens,
		Temperature: anthropic.Float(req.Options.Temperature),
		Messages:    toAnthropicMessages(req.Messages),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	return &anthropicStream{stream: p.client.Messages.NewStreaming(ctx, params)}
}

func toAnthropicMessages(messages []domain.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		if m.Role == domain.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
			continue
		}
		out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
	}
	return out
}

type anthropicStream struct {
	stream sseStream[anthropic.MessageStreamEventUnion]
	msg    anthropic.Message
	delta  string
	text   strings.Builder
	err    error
}

func (s *anthropicStream) Next() bool {
	for s.stream.Next() {
		event := s.stream.Current()
		if err := s.msg.Accumulate(event); err != nil {
			s.err = fmt.Errorf("accumulate message: %w", err)
			return false
		}
		ev, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		delta, ok := ev.Delta.AsAny().(anthropic.TextDelta)
		if !ok || delta.Text == "" {
			continue
		}
		s.delta = delta.Text
		s.text.WriteString(s.delta)
		return true
	}
	return false
}

func (s *anthropicStream) Delta() string { return s.delta }
func (s *anthropicStream) Close() error  { return s.stream.Close() }

func (s *anthropicStream) Err() error {
	if s.err != nil {
		return s.err
	}
	return s.stream.Err()
}

func (s *anthropicStream) Completion() Completion {
	in, out := s.msg.Usage.InputTokens, s.msg.Usage.OutputTokens
	return Completion{
		Text: s.text.String(),
		Usage: Usage{
			PromptTokens:     in,
			CompletionTokens: out,
			TotalTokens:      in + out,
		},
	}
}
