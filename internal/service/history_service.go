package service

import (
	"context"

	"go.uber.org/zap"

	"streamchat/internal/conversation"
	"streamchat/internal/domain"
	"streamchat/internal/repository"
)

// History es el resultado de rehidratar un chat desde el store persistente.
type History struct {
	Display  []domain.DisplayMessage
	ModelLog []domain.Message
	Metadata *domain.ChatMetadata
}

// HistoryService reconstruye el log de una sesion a partir de los turnos persistidos.
type HistoryService struct {
	logger *zap.Logger
	chats  repository.ChatRepository
	states *conversation.Store
}

func NewHistoryService(logger *zap.Logger, chats repository.ChatRepository, states *conversation.Store) *HistoryService {
	return &HistoryService{
		logger: logger,
		chats:  chats,
		states: states,
	}
}

// Load lee el chat, intercala prompts y completions por indice de turno y confirma el log en la
// sesion. Si hay un turno en curso el log vivo no se toca.
func (s *HistoryService) Load(ctx context.Context, userID, chatID, displayName string) History {
	record := s.chats.ReadAll(ctx, chatID, userID)
	log := conversation.InterleaveTurns(record.Prompts, record.Completions)

	state := s.states.GetOrCreate(userID, chatID)
	if !state.CommitIfIdle(log) {
		s.logger.Info("history load skipped state commit, turn in flight",
			zap.String("chat_id", chatID),
			zap.String("user_id", userID),
		)
	}

	return History{
		Display:  conversation.DisplayProjection(log, chatID, displayName),
		ModelLog: log,
		Metadata: record.Metadata,
	}
}
