package llm

import (
	"context"
	"strings"
	"sync"
	"time"
)

// ScriptedProvider permite tests (y el modo offline) sin llamar a un LLM real.
// Emite Fragments en orden; si Err no es nil el stream se corta con ese error despues de
// emitir los fragmentos.
type ScriptedProvider struct {
	ProviderName string
	Fragments    []string
	Err          error
	Usage        Usage
	Delay        time.Duration

	mu       sync.Mutex
	requests []Request
}

func (m *ScriptedProvider) Name() string {
	if m.ProviderName == "" {
		return "scripted"
	}
	return m.ProviderName
}

func (m *ScriptedProvider) Stream(ctx context.Context, req Request) TextStream {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	return &scriptedStream{ctx: ctx, fragments: m.Fragments, err: m.Err, usage: m.Usage, delay: m.Delay, pos: -1}
}

// Requests devuelve los requests recibidos, en orden.
func (m *ScriptedProvider) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

type scriptedStream struct {
	ctx       context.Context
	fragments []string
	err       error
	usage     Usage
	delay     time.Duration
	pos       int
	text      strings.Builder
	failure   error
}

func (s *scriptedStream) Next() bool {
	if s.failure != nil {
		return false
	}
	for s.pos+1 < len(s.fragments) {
		if s.delay > 0 {
			select {
			case <-time.After(s.delay):
			case <-s.ctx.Done():
				s.failure = s.ctx.Err()
				return false
			}
		}
		s.pos++
		if s.fragments[s.pos] == "" {
			continue
		}
		s.text.WriteString(s.fragments[s.pos])
		return true
	}
	if s.err != nil {
		s.failure = s.err
	}
	return false
}

func (s *scriptedStream) Delta() string { return s.fragments[s.pos] }
func (s *scriptedStream) Err() error    { return s.failure }
func (s *scriptedStream) Close() error  { return nil }

func (s *scriptedStream) Completion() Completion {
	return Completion{Text: s.text.String(), Usage: s.usage}
}

// EchoProvider responde repitiendo el ultimo mensaje del usuario, palabra por palabra.
// Se usa en modo offline.
type EchoProvider struct {
	Delay time.Duration
}

func (e *EchoProvider) Name() string { return "echo" }

func (e *EchoProvider) Stream(ctx context.Context, req Request) TextStream {
	last := ""
	if n := len(req.Messages); n > 0 {
		last = req.Messages[n-1].Content
	}
	words := strings.SplitAfter(last, " ")
	return &scriptedStream{ctx: ctx, fragments: words, delay: e.Delay, pos: -1, usage: Usage{
		PromptTokens:     int64(len(req.Messages)),
		CompletionTokens: int64(len(words)),
		TotalTokens:      int64(len(req.Messages) + len(words)),
	}}
}
