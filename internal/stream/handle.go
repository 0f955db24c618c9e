package stream

import (
	"context"
	"errors"
	"sync"
)

type Kind string

const (
	KindProgress Kind = "progress"
	KindContent  Kind = "content"
	KindDone     Kind = "done"
	KindError    Kind = "error"
)

var ErrHandleSealed = errors.New("turn handle sealed")

// Update es una foto completa del estado visible del turno. Cada update reemplaza al anterior.
type Update struct {
	Seq  int    `json:"seq"`
	Kind Kind   `json:"kind"`
	Text string `json:"text"`
}

// Final indica si el update cierra el turno.
func (u Update) Final() bool {
	return u.Kind == KindDone || u.Kind == KindError
}

// Handle es el canal de UI de un turno: acepta updates hasta que se sella.
type Handle struct {
	mu      sync.Mutex
	id      string
	chatID  string
	ownerID string
	current Update
	sealed  bool
	subs    map[int]chan Update
	nextSub int
	done    chan struct{}
}

// NewHandle crea un handle ya poblado con un placeholder inicial.
func NewHandle(id, chatID, ownerID, placeholder string) *Handle {
	return &Handle{
		id:      id,
		chatID:  chatID,
		ownerID: ownerID,
		current: Update{Seq: 1, Kind: KindProgress, Text: placeholder},
		subs:    make(map[int]chan Update),
		done:    make(chan struct{}),
	}
}

func (h *Handle) ID() string      { return h.id }
func (h *Handle) ChatID() string  { return h.chatID }
func (h *Handle) OwnerID() string { return h.ownerID }

// Progress publica un placeholder de progreso.
func (h *Handle) Progress(text string) error {
	return h.publish(KindProgress, text)
}

// Content publica el texto acumulado completo (last-write-wins).
func (h *Handle) Content(text string) error {
	return h.publish(KindContent, text)
}

// Done sella el handle con el texto final. Sellar un handle ya sellado no hace nada.
func (h *Handle) Done(text string) {
	_ = h.publish(KindDone, text)
}

// Fail sella el handle con un error. No hace nada si ya estaba sellado.
func (h *Handle) Fail(message string) {
	_ = h.publish(KindError, message)
}

func (h *Handle) publish(kind Kind, text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sealed {
		return ErrHandleSealed
	}
	h.current = Update{Seq: h.current.Seq + 1, Kind: kind, Text: text}
	for _, ch := range h.subs {
		offer(ch, h.current)
	}
	if h.current.Final() {
		h.sealed = true
		for id, ch := range h.subs {
			close(ch)
			delete(h.subs, id)
		}
		close(h.done)
	}
	return nil
}

// offer deja en ch solo el update mas reciente. ch tiene buffer 1 y se escribe bajo h.mu.
func offer(ch chan Update, u Update) {
	select {
	case <-ch:
	default:
	}
	ch <- u
}

// Snapshot devuelve el ultimo update publicado.
func (h *Handle) Snapshot() Update {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

func (h *Handle) Sealed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sealed
}

// Subscribe devuelve un canal con el update actual y los siguientes. Los updates intermedios
// pueden coalescerse si el lector es lento; el update final siempre se entrega antes del cierre.
func (h *Handle) Subscribe() (<-chan Update, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Update, 1)
	ch <- h.current
	if h.sealed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextSub
	h.nextSub++
	h.subs[id] = ch
	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			close(sub)
			delete(h.subs, id)
		}
	}
	return ch, cancel
}

// Wait bloquea hasta que el handle se sella o ctx termina.
func (h *Handle) Wait(ctx context.Context) (Update, error) {
	select {
	case <-h.done:
		return h.Snapshot(), nil
	case <-ctx.Done():
		return h.Snapshot(), ctx.Err()
	}
}
