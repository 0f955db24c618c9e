package repository

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"streamchat/internal/domain"
)

const chatTitleMaxRunes = 60

// ChatRepository persiste los turnos de cada chat (prompts y completions) por usuario.
type ChatRepository interface {
	Append(ctx context.Context, chatID, userID, prompt, completion string) error
	ReadAll(ctx context.Context, chatID, userID string) domain.ChatRecord
	ListByUser(ctx context.Context, userID string) ([]domain.ChatSummary, error)
	Delete(ctx context.Context, chatID, userID string) error
}

// RedisChatRepository guarda cada chat como un hash de metadata mas dos listas:
//
//	chat:<chatID>-user:<userID>              hash (id, user_id, title, created_at, updated_at)
//	chat:<chatID>-user:<userID>:prompts      list
//	chat:<chatID>-user:<userID>:completions  list
//	user:<userID>:chats                      zset chatID -> updated_at (ms)
type RedisChatRepository struct {
	client redis.Cmdable
	logger *zap.Logger
	now    func() time.Time
}

func NewRedisChatRepository(client redis.Cmdable, logger *zap.Logger) *RedisChatRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisChatRepository{
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

func ChatKey(chatID, userID string) string {
	return fmt.Sprintf("chat:%s-user:%s", chatID, userID)
}

func userChatsKey(userID string) string {
	return "user:" + userID + ":chats"
}

// Append agrega un turno completo en una transaccion MULTI/EXEC. Crea el chat si no existe.
func (r *RedisChatRepository) Append(ctx context.Context, chatID, userID, prompt, completion string) error {
	key := ChatKey(chatID, userID)
	now := r.now().UTC()
	stamp := now.Format(time.RFC3339Nano)

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key+":prompts", prompt)
		pipe.RPush(ctx, key+":completions", completion)
		pipe.HSetNX(ctx, key, "id", chatID)
		pipe.HSetNX(ctx, key, "user_id", userID)
		pipe.HSetNX(ctx, key, "title", chatTitle(prompt))
		pipe.HSetNX(ctx, key, "created_at", stamp)
		pipe.HSet(ctx, key, "updated_at", stamp)
		pipe.ZAdd(ctx, userChatsKey(userID), redis.Z{Score: float64(now.UnixMilli()), Member: chatID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("append chat turn: %w", err)
	}
	return nil
}

// ReadAll lee metadata y ambas listas en un solo round trip. Ante un error del store devuelve
// listas vacias y metadata nil en lugar de fallar.
func (r *RedisChatRepository) ReadAll(ctx context.Context, chatID, userID string) domain.ChatRecord {
	record := domain.ChatRecord{
		ID:          chatID,
		UserID:      userID,
		Prompts:     []string{},
		Completions: []string{},
	}
	key := ChatKey(chatID, userID)

	var (
		metaCmd        *redis.MapStringStringCmd
		promptsCmd     *redis.StringSliceCmd
		completionsCmd *redis.StringSliceCmd
	)
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		metaCmd = pipe.HGetAll(ctx, key)
		promptsCmd = pipe.LRange(ctx, key+":prompts", 0, -1)
		completionsCmd = pipe.LRange(ctx, key+":completions", 0, -1)
		return nil
	})
	if err != nil {
		r.logger.Warn("read chat failed",
			zap.String("chat_id", chatID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return record
	}

	if prompts := promptsCmd.Val(); prompts != nil {
		record.Prompts = prompts
	}
	if completions := completionsCmd.Val(); completions != nil {
		record.Completions = completions
	}
	record.Metadata = parseChatMetadata(metaCmd.Val())
	return record
}

// ListByUser devuelve los chats del usuario, el mas reciente primero.
func (r *RedisChatRepository) ListByUser(ctx context.Context, userID string) ([]domain.ChatSummary, error) {
	ids, err := r.client.ZRevRange(ctx, userChatsKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	if len(ids) == 0 {
		return []domain.ChatSummary{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, ChatKey(id, userID))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list chats metadata: %w", err)
	}

	out := make([]domain.ChatSummary, 0, len(ids))
	for i, id := range ids {
		summary := domain.ChatSummary{ID: id}
		if meta := parseChatMetadata(cmds[i].Val()); meta != nil {
			summary.Title = meta.Title
			summary.UpdatedAt = meta.UpdatedAt
		}
		out = append(out, summary)
	}
	return out, nil
}

func (r *RedisChatRepository) Delete(ctx context.Context, chatID, userID string) error {
	key := ChatKey(chatID, userID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key, key+":prompts", key+":completions")
		pipe.ZRem(ctx, userChatsKey(userID), chatID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	return nil
}

func parseChatMetadata(fields map[string]string) *domain.ChatMetadata {
	if len(fields) == 0 {
		return nil
	}
	meta := &domain.ChatMetadata{
		ID:     fields["id"],
		UserID: fields["user_id"],
		Title:  fields["title"],
	}
	if t, err := time.Parse(time.RFC3339Nano, fields["created_at"]); err == nil {
		meta.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, fields["updated_at"]); err == nil {
		meta.UpdatedAt = t
	}
	return meta
}

func chatTitle(prompt string) string {
	title := strings.Join(strings.Fields(prompt), " ")
	if utf8.RuneCountInString(title) <= chatTitleMaxRunes {
		return title
	}
	runes := []rune(title)
	return string(runes[:chatTitleMaxRunes]) + "..."
}
