package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"streamchat/internal/domain"
)

// OpenAIProvider implementa Provider con el SDK oficial de OpenAI (chat completions).
type OpenAIProvider struct {
	client openai.Client
}

func NewOpenAIProvider(baseURL, apiKey string, opts ...option.RequestOption) (*OpenAIProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	opts = append([]option.RequestOption{
		option.WithBaseURL(strings.TrimRight(baseURL, "/") + "/"),
		option.WithAPIKey(apiKey),
	}, opts...)
	return &OpenAIProvider{client: openai.NewClient(opts...)}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Stream(ctx context.Context, req Request) TextStream {
	params := openai.ChatCompletionNewParams{
		Model:            openai.ChatModel(req.Model),
		Messages:         toOpenAIMessages(req.System, req.Messages),
		MaxTokens:        openai.Int(req.Options.MaxOutputTokens),
		Temperature:      openai.Float(req.Options.Temperature),
		FrequencyPenalty: openai.Float(req.Options.FrequencyPenalty),
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}
	return &openAIStream{stream: p.client.Chat.Completions.NewStreaming(ctx, params)}
}

func toOpenAIMessages(system string, messages []domain.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	if system != "" {
		out = append(out, openai.SystemMessage(system))
	}
	for _, m := range messages {
		switch m.Role {
		case domain.RoleAssistant:
			msg := openai.AssistantMessage(m.Content)
			if m.Name != "" {
				msg.OfAssistant.Name = openai.String(m.Name)
			}
			out = append(out, msg)
		default:
			msg := openai.UserMessage(m.Content)
			if m.Name != "" {
				msg.OfUser.Name = openai.String(m.Name)
			}
			out = append(out, msg)
		}
	}
	return out
}

type openAIStream struct {
	stream sseStream[openai.ChatCompletionChunk]
	delta  string
	text   strings.Builder
	usage  Usage
}

func (s *openAIStream) Next() bool {
	for s.stream.Next() {
		chunk := s.stream.Current()
		// Con include_usage el ultimo chunk trae el uso y no trae choices.
		if chunk.Usage.TotalTokens > 0 {
			s.usage = Usage{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
				TotalTokens:      chunk.Usage.TotalTokens,
			}
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		s.delta = chunk.Choices[0].Delta.Content
		s.text.WriteString(s.delta)
		return true
	}
	return false
}

func (s *openAIStream) Delta() string { return s.delta }
func (s *openAIStream) Err() error    { return s.stream.Err() }
func (s *openAIStream) Close() error  { return s.stream.Close() }

func (s *openAIStream) Completion() Completion {
	return Completion{Text: s.text.String(), Usage: s.usage}
}
