package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"streamchat/internal/conversation"
	"streamchat/internal/domain"
	"streamchat/internal/repository"
	"streamchat/internal/stream"
)

var (
	ErrTurnNotFound = errors.New("turn not found")
	ErrChatIDEmpty  = errors.New("chat id is required")
)

const historyTimeLayout = "02-01-2006 15:04"

// ChatActions es el contrato que consumen la API HTTP y el cliente de terminal.
// Los fallos esperables se devuelven como resultados, no como errores.
type ChatActions struct {
	logger   *zap.Logger
	identity IdentityProvider
	pipeline *SubmissionPipeline
	history  *HistoryService
	states   *conversation.Store
	chats    repository.ChatRepository
	turns    *stream.Registry
	quota    QuotaReporter
}

func NewChatActions(
	logger *zap.Logger,
	identity IdentityProvider,
	pipeline *SubmissionPipeline,
	history *HistoryService,
	states *conversation.Store,
	chats repository.ChatRepository,
	turns *stream.Registry,
	quota QuotaReporter,
) *ChatActions {
	if quota == nil {
		quota = StaticQuota{}
	}
	return &ChatActions{
		logger:   logger,
		identity: identity,
		pipeline: pipeline,
		history:  history,
		states:   states,
		chats:    chats,
		turns:    turns,
		quota:    quota,
	}
}

// Submit acepta un mensaje y devuelve el resultado junto al handle vivo del turno.
// El error solo se devuelve para que el caller pueda distinguir la causa; el resultado ya la describe.
func (a *ChatActions) Submit(ctx context.Context, userText, modelChoice, chatID string) (domain.SubmitResult, *stream.Handle, error) {
	turn, err := a.pipeline.Submit(ctx, userText, modelChoice, chatID)
	if err != nil {
		result := domain.SubmitResult{Success: false}
		switch {
		case errors.Is(err, ErrUserNotFound):
			result.Message = msgUserNotFound
		case errors.Is(err, ErrTurnInFlight):
			result.Message = msgTurnInFlight
		default:
			result.Message = msgSubmitFailed
		}
		a.logger.Info("submit rejected", zap.String("chat_id", chatID), zap.Error(err))
		return result, nil, err
	}

	q := a.quota.Status(ctx, turn.UserID)
	return domain.SubmitResult{
		Success:   true,
		Limit:     q.Limit,
		Remaining: q.Remaining,
		Reset:     q.Reset,
		TurnID:    turn.ID,
		ChatID:    turn.ChatID,
	}, turn.Handle, nil
}

// Turn devuelve el handle de un turno del usuario autenticado.
func (a *ChatActions) Turn(ctx context.Context, turnID string) (*stream.Handle, error) {
	user, err := resolveUser(ctx, a.identity)
	if err != nil {
		return nil, err
	}
	h, ok := a.turns.Get(turnID)
	if !ok || h.OwnerID() != user.ID {
		return nil, ErrTurnNotFound
	}
	return h, nil
}

// LoadHistory rehidrata el chat en la sesion y devuelve la vista para la UI.
// Sin sesion devuelve un resultado vacio.
func (a *ChatActions) LoadHistory(ctx context.Context, displayName, chatID string) domain.HistoryResult {
	empty := domain.HistoryResult{UIMessages: []domain.DisplayMessage{}}

	session, err := a.identity.GetSession(ctx)
	if err != nil || session == nil {
		if err != nil {
			a.logger.Warn("history session lookup failed", zap.Error(err))
		}
		return empty
	}
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return empty
	}

	h := a.history.Load(ctx, session.ID, chatID, displayName)
	result := domain.HistoryResult{
		UIMessages: h.Display,
		ChatID:     chatID,
	}
	if h.Metadata != nil {
		result.CreatedAt = formatHistoryTime(h.Metadata.CreatedAt)
		result.UpdatedAt = formatHistoryTime(h.Metadata.UpdatedAt)
	}
	return result
}

func formatHistoryTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(historyTimeLayout)
}

// Reset vacia el log vivo de la sesion. Lo persistido no se toca.
func (a *ChatActions) Reset(ctx context.Context, chatID string) (result domain.ResetResult) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("reset panicked", zap.String("chat_id", chatID), zap.Any("panic", r))
			result = domain.ResetResult{Success: false, Message: msgResetFailed}
		}
	}()

	user, err := resolveUser(ctx, a.identity)
	if err != nil {
		return domain.ResetResult{Success: false, Message: msgResetUserMissing}
	}

	state := a.states.GetOrCreate(user.ID, chatID)
	if !state.BeginTurn() {
		a.logger.Info("reset refused, turn in flight", zap.String("chat_id", chatID))
		return domain.ResetResult{Success: false, Message: msgResetFailed}
	}
	defer state.EndTurn()

	state.Done(nil)
	a.logger.Info("chat reset", zap.String("chat_id", chatID), zap.String("user_id", user.ID))
	return domain.ResetResult{Success: true, Message: msgResetOK}
}

// ListChats devuelve los chats persistidos del usuario autenticado.
func (a *ChatActions) ListChats(ctx context.Context) ([]domain.ChatSummary, error) {
	user, err := resolveUser(ctx, a.identity)
	if err != nil {
		return nil, err
	}
	return a.chats.ListByUser(ctx, user.ID)
}

// DeleteChat borra el chat persistido y descarta la sesion viva. Ocupa el turno de la sesion
// mientras borra: un Submit concurrente sobre el mismo chat recibe ErrTurnInFlight.
func (a *ChatActions) DeleteChat(ctx context.Context, chatID string) error {
	if strings.TrimSpace(chatID) == "" {
		return ErrChatIDEmpty
	}
	user, err := resolveUser(ctx, a.identity)
	if err != nil {
		return err
	}
	state := a.states.GetOrCreate(user.ID, chatID)
	if !state.BeginTurn() {
		return ErrTurnInFlight
	}
	defer state.EndTurn()

	if err := a.chats.Delete(ctx, chatID, user.ID); err != nil {
		return fmt.Errorf("delete chat %s: %w", chatID, err)
	}
	a.states.Discard(user.ID, chatID)
	return nil
}
