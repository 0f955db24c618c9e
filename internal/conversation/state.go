package conversation

import (
	"slices"
	"sync"

	"streamchat/internal/domain"
)

// State es el log autoritativo de una sesion (userID, chatID).
// Solo hace mutaciones en memoria; la validez del log es responsabilidad del caller.
type State struct {
	mu        sync.RWMutex
	userID    string
	chatID    string
	log       []domain.Message
	committed bool
	inFlight  bool
}

func NewState(userID, chatID string) *State {
	return &State{userID: userID, chatID: chatID, committed: true}
}

func (s *State) UserID() string { return s.userID }
func (s *State) ChatID() string { return s.chatID }

// Get devuelve una copia del log actual.
func (s *State) Get() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.log)
}

// Update reemplaza el log. Se usa tanto para appends como para resets.
func (s *State) Update(newLog []domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = slices.Clone(newLog)
	s.committed = false
}

// Done reemplaza el log y lo marca como confirmado. Repetirlo con el mismo log no cambia nada.
func (s *State) Done(finalLog []domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.committed && slices.Equal(s.log, finalLog) {
		return
	}
	s.log = slices.Clone(finalLog)
	s.committed = true
}

// Committed indica si el ultimo cambio del log fue un Done.
func (s *State) Committed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.committed
}

func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.log)
}

// BeginTurn reserva la sesion para un turno. Devuelve false si ya hay uno en curso.
func (s *State) BeginTurn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return false
	}
	s.inFlight = true
	return true
}

func (s *State) EndTurn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
}

func (s *State) InFlight() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inFlight
}

// CommitIfIdle hace Done solo si no hay un turno en curso. Devuelve false si lo omitio.
func (s *State) CommitIfIdle(finalLog []domain.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return false
	}
	s.log = slices.Clone(finalLog)
	s.committed = true
	return true
}
