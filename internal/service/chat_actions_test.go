package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"streamchat/internal/domain"
	"streamchat/internal/llm"
	"streamchat/internal/stream"
)

func TestHistory_InterleavesPersistedTurns(t *testing.T) {
	env := newTestEnv(t, &llm.ScriptedProvider{}, stubIdentity{user: testUser}, PipelineOptions{})
	env.repo.seed("c1", "u1", []string{"p0", "p1"}, []string{"r0"})

	h := NewHistoryService(zap.NewNop(), env.repo, env.states).Load(context.Background(), "u1", "c1", "Ana")

	require.Len(t, h.Display, 3)
	assert.Equal(t, "user-0", h.Display[0].ID)
	assert.Equal(t, "Ana", h.Display[0].AuthorName)
	assert.Equal(t, "assistant-0", h.Display[1].ID)
	assert.Empty(t, h.Display[1].AuthorName)
	assert.Equal(t, "user-1", h.Display[2].ID)
	assert.Equal(t, domain.RoleUser, h.Display[2].Role)
	assert.Equal(t, "c1", h.Display[2].ChatID)

	state, ok := env.states.Lookup("u1", "c1")
	require.True(t, ok)
	assert.True(t, state.Committed())
	assert.Equal(t, h.ModelLog, state.Get())
}

func TestHistory_KeepsEmptyCompletions(t *testing.T) {
	env := newTestEnv(t, &llm.ScriptedProvider{}, stubIdentity{user: testUser}, PipelineOptions{})
	env.repo.seed("c1", "u1", []string{"p0", "p1"}, []string{"", "r1"})

	h := env.actions.history.Load(context.Background(), "u1", "c1", "")
	require.Len(t, h.ModelLog, 4)
	assert.Equal(t, domain.RoleAssistant, h.ModelLog[1].Role)
	assert.Equal(t, "", h.ModelLog[1].Content)
}

func TestActions_SubmitThenLoadHistoryRoundTrip(t *testing.T) {
	env := newTestEnv(t, &llm.ScriptedProvider{Fragments: []string{"**4**"}}, stubIdentity{user: testUser}, PipelineOptions{})
	ctx := context.Background()

	res, h, err := env.actions.Submit(ctx, "What is 2+2?", "claude3", "")
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, 50, res.Limit)
	assert.Equal(t, 49, res.Remaining)
	assert.Equal(t, int64(1700000000), res.Reset)
	assert.Equal(t, h.ID(), res.TurnID)
	waitFinal(t, h)
	drain(t, env.pipeline)

	// Simula otro proceso: la sesion viva se pierde y se rehidrata del store.
	env.states.Discard("u1", res.ChatID)

	hist := env.actions.LoadHistory(ctx, "Ana", res.ChatID)
	assert.Equal(t, res.ChatID, hist.ChatID)
	assert.Equal(t, "07-03-2024 09:05", hist.CreatedAt)
	assert.Equal(t, "07-03-2024 09:05", hist.UpdatedAt)
	require.Len(t, hist.UIMessages, 2)
	assert.Equal(t, "What is 2+2?", hist.UIMessages[0].Content)
	assert.Equal(t, "**4**", hist.UIMessages[1].Content)
	assert.Contains(t, hist.UIMessages[1].HTML, "<strong>4</strong>")

	state, ok := env.states.Lookup("u1", res.ChatID)
	require.True(t, ok)
	assert.Equal(t, 2, state.Len())
}

func TestActions_SubmitFailuresAreResults(t *testing.T) {
	env := newTestEnv(t, &llm.ScriptedProvider{}, stubIdentity{}, PipelineOptions{})

	res, h, err := env.actions.Submit(context.Background(), "hola", "", "")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Nil(t, h)
	assert.Equal(t, domain.SubmitResult{Success: false, Message: msgUserNotFound}, res)
}

func TestActions_SubmitInFlightResult(t *testing.T) {
	provider := &llm.ScriptedProvider{Fragments: []string{"a"}, Delay: 50 * time.Millisecond}
	env := newTestEnv(t, provider, stubIdentity{user: testUser}, PipelineOptions{})
	ctx := context.Background()

	_, first, err := env.actions.Submit(ctx, "uno", "", "c1")
	require.NoError(t, err)

	res, _, err := env.actions.Submit(ctx, "dos", "", "c1")
	assert.ErrorIs(t, err, ErrTurnInFlight)
	assert.False(t, res.Success)
	assert.Equal(t, msgTurnInFlight, res.Message)

	waitFinal(t, first)
	drain(t, env.pipeline)
}

func TestActions_LoadHistoryWithoutSession(t *testing.T) {
	env := newTestEnv(t, &llm.ScriptedProvider{}, stubIdentity{}, PipelineOptions{})
	env.repo.seed("c1", "u1", []string{"p0"}, []string{"r0"})

	hist := env.actions.LoadHistory(context.Background(), "Ana", "c1")
	assert.Equal(t, "", hist.ChatID)
	assert.NotNil(t, hist.UIMessages)
	assert.Empty(t, hist.UIMessages)
	assert.Equal(t, 0, env.states.Len())
}

func TestActions_LoadHistoryUnknownChat(t *testing.T) {
	env := newTestEnv(t, &llm.ScriptedProvider{}, stubIdentity{user: testUser}, PipelineOptions{})

	hist := env.actions.LoadHistory(context.Background(), "Ana", "nuevo")
	assert.Equal(t, "nuevo", hist.ChatID)
	assert.Empty(t, hist.UIMessages)
	assert.Empty(t, hist.CreatedAt)
}

func TestActions_ResetClearsLiveLogOnly(t *testing.T) {
	env := newTestEnv(t, &llm.ScriptedProvider{Fragments: []string{"r"}}, stubIdentity{user: testUser}, PipelineOptions{})
	ctx := context.Background()

	_, h, err := env.actions.Submit(ctx, "p", "", "c1")
	require.NoError(t, err)
	waitFinal(t, h)
	drain(t, env.pipeline)

	res := env.actions.Reset(ctx, "c1")
	assert.Equal(t, domain.ResetResult{Success: true, Message: msgResetOK}, res)

	state, _ := env.states.Lookup("u1", "c1")
	assert.Equal(t, 0, state.Len())
	assert.Len(t, env.repo.ReadAll(ctx, "c1", "u1").Prompts, 1)
}

func TestActions_ResetFailures(t *testing.T) {
	t.Run("no user", func(t *testing.T) {
		env := newTestEnv(t, &llm.ScriptedProvider{}, stubIdentity{}, PipelineOptions{})
		res := env.actions.Reset(context.Background(), "c1")
		assert.Equal(t, domain.ResetResult{Success: false, Message: msgResetUserMissing}, res)
	})

	t.Run("panic", func(t *testing.T) {
		env := newTestEnv(t, &llm.ScriptedProvider{}, stubIdentity{panic: true}, PipelineOptions{})
		res := env.actions.Reset(context.Background(), "c1")
		assert.Equal(t, domain.ResetResult{Success: false, Message: msgResetFailed}, res)
	})

	t.Run("turn in flight", func(t *testing.T) {
		env := newTestEnv(t, &llm.ScriptedProvider{Fragments: []string{"x"}}, stubIdentity{user: testUser},
			PipelineOptions{ProgressInterval: time.Hour, TurnTimeout: time.Hour})
		_, _, err := env.actions.Submit(context.Background(), "p", "", "c1")
		require.NoError(t, err)

		res := env.actions.Reset(context.Background(), "c1")
		assert.False(t, res.Success)
		state, _ := env.states.Lookup("u1", "c1")
		assert.Equal(t, 1, state.Len())
	})
}

func TestActions_TurnChecksOwner(t *testing.T) {
	env := newTestEnv(t, &llm.ScriptedProvider{}, stubIdentity{user: testUser}, PipelineOptions{})
	env.turns.Put(stream.NewHandle("t-own", "c1", "u1", "Searching..."))
	env.turns.Put(stream.NewHandle("t-other", "c9", "u9", "Searching..."))

	h, err := env.actions.Turn(context.Background(), "t-own")
	require.NoError(t, err)
	assert.Equal(t, "c1", h.ChatID())

	_, err = env.actions.Turn(context.Background(), "t-other")
	assert.ErrorIs(t, err, ErrTurnNotFound)
	_, err = env.actions.Turn(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTurnNotFound)
}

func TestActions_ListAndDeleteChats(t *testing.T) {
	env := newTestEnv(t, &llm.ScriptedProvider{}, stubIdentity{user: testUser}, PipelineOptions{})
	ctx := context.Background()
	env.repo.seed("c1", "u1", []string{"p"}, []string{"r"})
	env.repo.seed("c2", "u2", []string{"p"}, []string{"r"})
	env.states.GetOrCreate("u1", "c1")

	chats, err := env.actions.ListChats(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "c1", chats[0].ID)

	require.NoError(t, env.actions.DeleteChat(ctx, "c1"))
	_, ok := env.states.Lookup("u1", "c1")
	assert.False(t, ok)
	assert.Empty(t, env.repo.ReadAll(ctx, "c1", "u1").Prompts)

	assert.ErrorIs(t, env.actions.DeleteChat(ctx, " "), ErrChatIDEmpty)
}

func TestActions_DeleteRefusedWhileTurnInFlight(t *testing.T) {
	env := newTestEnv(t, &llm.ScriptedProvider{Fragments: []string{"x"}}, stubIdentity{user: testUser},
		PipelineOptions{ProgressInterval: time.Hour, TurnTimeout: time.Hour})
	ctx := context.Background()
	env.repo.seed("c1", "u1", []string{"p"}, []string{"r"})

	_, _, err := env.actions.Submit(ctx, "q", "", "c1")
	require.NoError(t, err)

	assert.ErrorIs(t, env.actions.DeleteChat(ctx, "c1"), ErrTurnInFlight)
	assert.Len(t, env.repo.ReadAll(ctx, "c1", "u1").Prompts, 1)
	state, ok := env.states.Lookup("u1", "c1")
	require.True(t, ok)
	assert.True(t, state.InFlight())
}

func TestActions_SubmitDuringDeleteIsRejected(t *testing.T) {
	provider := &llm.ScriptedProvider{Fragments: []string{"x"}}
	env := newTestEnv(t, provider, stubIdentity{user: testUser}, PipelineOptions{})
	ctx := context.Background()
	env.repo.seed("c1", "u1", []string{"p"}, []string{"r"})

	var submitErr error
	env.repo.onDelete = func() {
		_, _, submitErr = env.actions.Submit(ctx, "tarde", "", "c1")
	}

	require.NoError(t, env.actions.DeleteChat(ctx, "c1"))
	assert.ErrorIs(t, submitErr, ErrTurnInFlight)
	assert.Empty(t, provider.Requests())
	assert.Empty(t, env.repo.ReadAll(ctx, "c1", "u1").Prompts)
	assert.Equal(t, 0, env.states.Len())

	_, h, err := env.actions.Submit(ctx, "nuevo", "", "c1")
	require.NoError(t, err)
	waitFinal(t, h)
}
