package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChatRepo(t *testing.T) (*RedisChatRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisChatRepository(client, nil), mr
}

func TestChatKey(t *testing.T) {
	assert.Equal(t, "chat:c1-user:u1", ChatKey("c1", "u1"))
}

func TestRedisChatRepository_AppendAndReadAll(t *testing.T) {
	repo, mr := newTestChatRepo(t)
	ctx := context.Background()
	first := time.Date(2024, 6, 20, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return first }

	require.NoError(t, repo.Append(ctx, "c1", "u1", "What is 2+2?", "4"))
	repo.now = func() time.Time { return first.Add(time.Minute) }
	require.NoError(t, repo.Append(ctx, "c1", "u1", "and 3+3?", ""))

	rec := repo.ReadAll(ctx, "c1", "u1")
	assert.Equal(t, []string{"What is 2+2?", "and 3+3?"}, rec.Prompts)
	assert.Equal(t, []string{"4", ""}, rec.Completions)
	require.NotNil(t, rec.Metadata)
	assert.Equal(t, "c1", rec.Metadata.ID)
	assert.Equal(t, "u1", rec.Metadata.UserID)
	assert.Equal(t, "What is 2+2?", rec.Metadata.Title)
	assert.True(t, rec.Metadata.CreatedAt.Equal(first))
	assert.True(t, rec.Metadata.UpdatedAt.Equal(first.Add(time.Minute)))

	assert.True(t, mr.Exists("chat:c1-user:u1:prompts"))
	assert.True(t, mr.Exists("chat:c1-user:u1:completions"))
}

func TestRedisChatRepository_ReadAllMissingChat(t *testing.T) {
	repo, _ := newTestChatRepo(t)
	rec := repo.ReadAll(context.Background(), "nope", "u1")
	assert.Equal(t, "nope", rec.ID)
	assert.NotNil(t, rec.Prompts)
	assert.Empty(t, rec.Prompts)
	assert.Empty(t, rec.Completions)
	assert.Nil(t, rec.Metadata)
}

func TestRedisChatRepository_ReadAllStoreDownReturnsDefaults(t *testing.T) {
	repo, mr := newTestChatRepo(t)
	require.NoError(t, repo.Append(context.Background(), "c1", "u1", "p", "c"))
	mr.Close()

	rec := repo.ReadAll(context.Background(), "c1", "u1")
	assert.NotNil(t, rec.Prompts)
	assert.Empty(t, rec.Prompts)
	assert.NotNil(t, rec.Completions)
	assert.Empty(t, rec.Completions)
	assert.Nil(t, rec.Metadata)
}

func TestRedisChatRepository_AppendStoreDown(t *testing.T) {
	repo, mr := newTestChatRepo(t)
	mr.Close()
	assert.Error(t, repo.Append(context.Background(), "c1", "u1", "p", "c"))
}

func TestRedisChatRepository_SessionsAreIsolated(t *testing.T) {
	repo, _ := newTestChatRepo(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			chatID := fmt.Sprintf("c%d", i)
			for turn := 0; turn < 5; turn++ {
				_ = repo.Append(ctx, chatID, "u1", fmt.Sprintf("%s-p%d", chatID, turn), fmt.Sprintf("%s-c%d", chatID, turn))
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 4; i++ {
		chatID := fmt.Sprintf("c%d", i)
		rec := repo.ReadAll(ctx, chatID, "u1")
		require.Len(t, rec.Prompts, 5)
		require.Len(t, rec.Completions, 5)
		for turn := 0; turn < 5; turn++ {
			assert.Equal(t, fmt.Sprintf("%s-p%d", chatID, turn), rec.Prompts[turn])
			assert.Equal(t, fmt.Sprintf("%s-c%d", chatID, turn), rec.Completions[turn])
		}
	}
}

func TestRedisChatRepository_ListAndDelete(t *testing.T) {
	repo, mr := newTestChatRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 20, 10, 0, 0, 0, time.UTC)

	repo.now = func() time.Time { return base }
	require.NoError(t, repo.Append(ctx, "old", "u1", "primero", "a"))
	repo.now = func() time.Time { return base.Add(time.Hour) }
	require.NoError(t, repo.Append(ctx, "new", "u1", strings.Repeat("x", 80), "b"))
	require.NoError(t, repo.Append(ctx, "other", "u2", "ajeno", "c"))

	chats, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, "new", chats[0].ID)
	assert.Equal(t, strings.Repeat("x", 60)+"...", chats[0].Title)
	assert.Equal(t, "old", chats[1].ID)
	assert.Equal(t, "primero", chats[1].Title)

	require.NoError(t, repo.Delete(ctx, "old", "u1"))
	assert.False(t, mr.Exists("chat:old-user:u1"))
	assert.False(t, mr.Exists("chat:old-user:u1:prompts"))

	chats, err = repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "new", chats[0].ID)

	empty, err := repo.ListByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
