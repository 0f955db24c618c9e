package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"streamchat/internal/conversation"
	"streamchat/internal/domain"
	"streamchat/internal/llm"
	"streamchat/internal/repository"
	"streamchat/internal/stream"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrTurnInFlight = errors.New("turn already in flight for this chat")
)

const (
	persistTimeout     = 5 * time.Second
	DefaultTurnTimeout = 5 * time.Minute
)

// Turn describe un turno aceptado. Todo lo que pasa despues de Submit se observa por Handle.
type Turn struct {
	ID     string
	ChatID string
	UserID string
	Model  llm.ModelHandle
	Handle *stream.Handle
}

type PipelineOptions struct {
	SystemPrompt     string
	ProgressInterval time.Duration
	TurnTimeout      time.Duration
}

// SubmissionPipeline orquesta un turno: identidad, mensaje de usuario, progreso, streaming del
// modelo y persistencia al finalizar.
type SubmissionPipeline struct {
	logger   *zap.Logger
	identity IdentityProvider
	states   *conversation.Store
	invoker  *llm.Invoker
	chats    repository.ChatRepository
	turns    *stream.Registry
	opts     PipelineOptions
	newID    func() string
	wg       sync.WaitGroup
}

func NewSubmissionPipeline(
	logger *zap.Logger,
	identity IdentityProvider,
	states *conversation.Store,
	invoker *llm.Invoker,
	chats repository.ChatRepository,
	turns *stream.Registry,
	opts PipelineOptions,
) *SubmissionPipeline {
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = defaultSystemPrompt
	}
	if opts.TurnTimeout <= 0 {
		opts.TurnTimeout = DefaultTurnTimeout
	}
	if opts.ProgressInterval < 0 {
		opts.ProgressInterval = 0
	}
	return &SubmissionPipeline{
		logger:   logger,
		identity: identity,
		states:   states,
		invoker:  invoker,
		chats:    chats,
		turns:    turns,
		opts:     opts,
		newID:    uuid.NewString,
	}
}

// Submit registra el mensaje del usuario y devuelve el turno en cuanto queda registrado.
// El resto del turno corre en una goroutine propia, desacoplada de la cancelacion de ctx.
func (p *SubmissionPipeline) Submit(ctx context.Context, userText, modelChoice, chatID string) (Turn, error) {
	user, err := resolveUser(ctx, p.identity)
	if err != nil {
		return Turn{}, err
	}

	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		chatID = p.newID()
	}

	state := p.states.GetOrCreate(user.ID, chatID)
	if !state.BeginTurn() {
		return Turn{}, ErrTurnInFlight
	}

	log := state.Get()
	turnIndex := conversation.NextTurn(log)
	state.Update(append(log, domain.Message{
		ID:      conversation.EntryID(domain.RoleUser, turnIndex),
		Role:    domain.RoleUser,
		Content: userText,
	}))

	turn := Turn{
		ID:     p.newID(),
		ChatID: chatID,
		UserID: user.ID,
		Model:  p.invoker.SelectModel(modelChoice),
	}
	turn.Handle = stream.NewHandle(turn.ID, chatID, user.ID, progressSteps[0])
	p.turns.Put(turn.Handle)

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.TurnTimeout)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer cancel()
		text, ok := p.run(runCtx, turn, state, userText, turnIndex)
		// La sesion se libera antes de sellar: quien observa el evento final ya puede enviar otro turno.
		state.EndTurn()
		if !ok {
			turn.Handle.Fail(msgStreamAborted)
			return
		}
		turn.Handle.Done(text)
	}()

	p.logger.Info("turn accepted",
		zap.String("turn_id", turn.ID),
		zap.String("chat_id", chatID),
		zap.String("user_id", user.ID),
		zap.String("model", turn.Model.Model),
	)
	return turn, nil
}

func resolveUser(ctx context.Context, identity IdentityProvider) (*domain.User, error) {
	session, err := identity.GetSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: session lookup: %v", ErrUserNotFound, err)
	}
	if session == nil {
		return nil, ErrUserNotFound
	}
	user, err := identity.GetUserInfo(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: user lookup: %v", ErrUserNotFound, err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// run devuelve el texto final del turno, o ok=false si el turno aborto. No sella el handle.
func (p *SubmissionPipeline) run(ctx context.Context, turn Turn, state *conversation.State, prompt string, turnIndex int) (string, bool) {
	logger := p.logger.With(
		zap.String("turn_id", turn.ID),
		zap.String("chat_id", turn.ChatID),
		zap.String("user_id", turn.UserID),
	)

	if err := p.emitProgress(ctx, turn.Handle); err != nil {
		logger.Warn("turn expired before streaming", zap.Error(err))
		return "", false
	}

	messages := conversation.ModelProjection(state.Get())
	finished := false
	var final string
	s := p.invoker.StreamCompletion(ctx, turn.Model, p.opts.SystemPrompt, messages, func(c llm.Completion) {
		p.finalize(ctx, logger, turn, state, prompt, turnIndex, c)
		finished, final = true, c.Text
	})

	var acc strings.Builder
	for fragment, err := range s.Fragments() {
		if err != nil {
			logger.Warn("turn failed", zap.Error(err))
			return "", false
		}
		acc.WriteString(fragment)
		_ = turn.Handle.Content(acc.String())
	}
	if !finished {
		return acc.String(), true
	}
	return final, true
}

// emitProgress publica los placeholders restantes con la pausa configurada.
func (p *SubmissionPipeline) emitProgress(ctx context.Context, h *stream.Handle) error {
	for _, step := range progressSteps[1:] {
		if p.opts.ProgressInterval > 0 {
			timer := time.NewTimer(p.opts.ProgressInterval)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}
		_ = h.Progress(step)
	}
	return nil
}

// finalize persiste el turno y confirma la respuesta en el log.
// La persistencia es best-effort: un error se loguea y el turno sigue siendo exitoso.
func (p *SubmissionPipeline) finalize(ctx context.Context, logger *zap.Logger, turn Turn, state *conversation.State, prompt string, turnIndex int, c llm.Completion) {
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := p.chats.Append(persistCtx, turn.ChatID, turn.UserID, prompt, c.Text); err != nil {
		logger.Warn("persist turn failed, history may be incomplete after reload", zap.Error(err))
	}

	state.Done(append(state.Get(), domain.Message{
		ID:      conversation.EntryID(domain.RoleAssistant, turnIndex),
		Role:    domain.RoleAssistant,
		Content: c.Text,
	}))

	logger.Info("turn finalized",
		zap.Int("completion_chars", len(c.Text)),
		zap.Int64("total_tokens", c.Usage.TotalTokens),
	)
}

// Drain espera a que terminen los turnos en curso o a que ctx expire.
func (p *SubmissionPipeline) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
