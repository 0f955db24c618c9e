package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync/atomic"

	"go.uber.org/zap"

	"streamchat/internal/domain"
)

var (
	ErrStreamAborted  = errors.New("llm stream aborted")
	ErrStreamConsumed = errors.New("llm stream already consumed")
)

// FinishFunc recibe el texto final y el uso de tokens. Se llama una sola vez, despues del ultimo fragmento.
type FinishFunc func(Completion)

// Invoker selecciona modelos y abre completions en streaming con opciones fijas.
type Invoker struct {
	registry *Registry
	opts     GenerationOptions
	logger   *zap.Logger
}

func NewInvoker(registry *Registry, logger *zap.Logger) *Invoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invoker{registry: registry, opts: DefaultOptions, logger: logger}
}

func (i *Invoker) SelectModel(name string) ModelHandle {
	return i.registry.Select(name)
}

// StreamCompletion abre el stream contra el backend del handle. Nada se envia hasta que se
// consume Fragments.
func (i *Invoker) StreamCompletion(ctx context.Context, handle ModelHandle, system string, messages []domain.Message, onFinish FinishFunc) *Stream {
	if handle.backend == nil {
		handle = i.registry.Select(string(handle.Choice))
	}
	req := Request{
		Model:    handle.Model,
		System:   system,
		Messages: messages,
		Options:  i.opts,
	}
	return &Stream{
		open:     func() TextStream { return handle.backend.Stream(ctx, req) },
		handle:   handle,
		onFinish: onFinish,
		logger:   i.logger,
	}
}

// Stream es una secuencia de fragmentos que solo puede recorrerse una vez.
type Stream struct {
	open     func() TextStream
	handle   ModelHandle
	onFinish FinishFunc
	logger   *zap.Logger
	used     atomic.Bool
}

// Fragments produce los deltas de texto en el orden del backend. Si el backend falla, el ultimo
// elemento trae un error que envuelve ErrStreamAborted y onFinish no se llama. Si el consumidor
// corta antes, tampoco.
func (s *Stream) Fragments() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if !s.used.CompareAndSwap(false, true) {
			yield("", ErrStreamConsumed)
			return
		}

		src := s.open()
		defer src.Close()

		for src.Next() {
			if !yield(src.Delta(), nil) {
				return
			}
		}
		if err := src.Err(); err != nil {
			s.logger.Warn("llm stream aborted",
				zap.String("provider", s.handle.Provider),
				zap.String("model", s.handle.Model),
				zap.Error(err),
			)
			yield("", fmt.Errorf("%w: %w", ErrStreamAborted, err))
			return
		}

		completion := src.Completion()
		s.logger.Info("llm stream finished",
			zap.String("provider", s.handle.Provider),
			zap.String("model", s.handle.Model),
			zap.Int64("prompt_tokens", completion.Usage.PromptTokens),
			zap.Int64("completion_tokens", completion.Usage.CompletionTokens),
			zap.Int64("total_tokens", completion.Usage.TotalTokens),
		)
		if s.onFinish != nil {
			s.onFinish(completion)
		}
	}
}
