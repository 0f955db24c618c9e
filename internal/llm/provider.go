package llm

import (
	"context"

	"streamchat/internal/domain"
)

// GenerationOptions son los parametros fijos de generacion.
type GenerationOptions struct {
	MaxOutputTokens  int64
	Temperature      float64
	FrequencyPenalty float64
}

// DefaultOptions: salida acotada, temperatura 0 y penalizacion moderada por repeticion.
var DefaultOptions = GenerationOptions{
	MaxOutputTokens:  4000,
	Temperature:      0,
	FrequencyPenalty: 0.5,
}

// Request es una llamada de completion en streaming.
type Request struct {
	Model    string
	System   string
	Messages []domain.Message
	Options  GenerationOptions
}

type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Completion es el resultado final de un stream terminado sin errores.
type Completion struct {
	Text  string
	Usage Usage
}

// TextStream es un stream de deltas de texto de un backend.
// Next avanza al siguiente delta no vacio; Err reporta el motivo de un corte anormal.
type TextStream interface {
	Next() bool
	Delta() string
	Err() error
	Completion() Completion
	Close() error
}

// Provider es un backend de modelo capaz de hacer streaming.
type Provider interface {
	Name() string
	Stream(ctx context.Context, req Request) TextStream
}

// sseStream cubre los streams SSE de los SDKs de OpenAI y Anthropic.
type sseStream[T any] interface {
	Next() bool
	Current() T
	Err() error
	Close() error
}
