package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"streamchat/internal/conversation"
	"streamchat/internal/domain"
	"streamchat/internal/llm"
	"streamchat/internal/stream"
)

type fakeChatRepo struct {
	mu          sync.Mutex
	prompts     map[string][]string
	completions map[string][]string
	created     map[string]time.Time
	appendErr   error
	appendCalls int
	now         time.Time
	onDelete    func()
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{
		prompts:     make(map[string][]string),
		completions: make(map[string][]string),
		created:     make(map[string]time.Time),
		now:         time.Date(2024, 3, 7, 9, 5, 0, 0, time.UTC),
	}
}

func fakeKey(chatID, userID string) string { return chatID + "/" + userID }

func (r *fakeChatRepo) Append(_ context.Context, chatID, userID, prompt, completion string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appendCalls++
	if r.appendErr != nil {
		return r.appendErr
	}
	k := fakeKey(chatID, userID)
	r.prompts[k] = append(r.prompts[k], prompt)
	r.completions[k] = append(r.completions[k], completion)
	if _, ok := r.created[k]; !ok {
		r.created[k] = r.now
	}
	return nil
}

func (r *fakeChatRepo) ReadAll(_ context.Context, chatID, userID string) domain.ChatRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := fakeKey(chatID, userID)
	rec := domain.ChatRecord{
		ID:          chatID,
		UserID:      userID,
		Prompts:     append([]string{}, r.prompts[k]...),
		Completions: append([]string{}, r.completions[k]...),
	}
	if created, ok := r.created[k]; ok {
		rec.Metadata = &domain.ChatMetadata{ID: chatID, UserID: userID, CreatedAt: created, UpdatedAt: r.now}
	}
	return rec
}

func (r *fakeChatRepo) ListByUser(_ context.Context, userID string) ([]domain.ChatSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.ChatSummary{}
	for k := range r.prompts {
		chatID, uid, _ := strings.Cut(k, "/")
		if uid == userID {
			out = append(out, domain.ChatSummary{ID: chatID, UpdatedAt: r.now})
		}
	}
	return out, nil
}

func (r *fakeChatRepo) Delete(_ context.Context, chatID, userID string) error {
	if r.onDelete != nil {
		r.onDelete()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k := fakeKey(chatID, userID)
	delete(r.prompts, k)
	delete(r.completions, k)
	delete(r.created, k)
	return nil
}

func (r *fakeChatRepo) seed(chatID, userID string, prompts, completions []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := fakeKey(chatID, userID)
	r.prompts[k] = prompts
	r.completions[k] = completions
	r.created[k] = r.now
}

func (r *fakeChatRepo) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.appendCalls
}

type stubIdentity struct {
	user  *domain.User
	err   error
	panic bool
}

func (s stubIdentity) GetSession(context.Context) (*domain.AuthSession, error) {
	if s.panic {
		panic("identity backend exploded")
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.user == nil {
		return nil, nil
	}
	return &domain.AuthSession{ID: s.user.ID}, nil
}

func (s stubIdentity) GetUserInfo(_ context.Context, id string) (*domain.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, nil
	}
	u := *s.user
	return &u, nil
}

var testUser = &domain.User{ID: "u1", Email: "ana@example.com", DisplayName: "Ana"}

var errBackendDown = errors.New("backend down")

type testEnv struct {
	pipeline *SubmissionPipeline
	actions  *ChatActions
	states   *conversation.Store
	turns    *stream.Registry
	repo     *fakeChatRepo
	provider *llm.ScriptedProvider
}

func newTestEnv(t *testing.T, provider *llm.ScriptedProvider, identity IdentityProvider, opts PipelineOptions) *testEnv {
	t.Helper()
	return newTestEnvWithLogger(t, zap.NewNop(), provider, identity, opts)
}

func newTestEnvWithLogger(t *testing.T, logger *zap.Logger, provider *llm.ScriptedProvider, identity IdentityProvider, opts PipelineOptions) *testEnv {
	t.Helper()
	reg, err := llm.NewRegistry(llm.ModelFastGeneral, llm.Binding{Choice: llm.ModelFastGeneral, Model: "test-model", Provider: provider})
	require.NoError(t, err)

	states := conversation.NewStore(time.Hour)
	turns := stream.NewRegistry(time.Hour)
	repo := newFakeChatRepo()
	pipeline := NewSubmissionPipeline(logger, identity, states, llm.NewInvoker(reg, logger), repo, turns, opts)
	history := NewHistoryService(logger, repo, states)
	actions := NewChatActions(logger, identity, pipeline, history, states, repo, turns, StaticQuota{Value: QuotaStatus{Limit: 50, Remaining: 49, Reset: 1700000000}})

	return &testEnv{
		pipeline: pipeline,
		actions:  actions,
		states:   states,
		turns:    turns,
		repo:     repo,
		provider: provider,
	}
}

// slowLogger demora cada entrada con el mensaje dado, para abrir la ventana entre el log y lo que le sigue.
func slowLogger(message string, delay time.Duration) *zap.Logger {
	core := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(io.Discard), zap.DebugLevel)
	return zap.New(core, zap.Hooks(func(e zapcore.Entry) error {
		if e.Message == message {
			time.Sleep(delay)
		}
		return nil
	}))
}

func waitFinal(t *testing.T, h *stream.Handle) stream.Update {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	u, err := h.Wait(ctx)
	require.NoError(t, err, "turn did not finish")
	return u
}

func drain(t *testing.T, p *SubmissionPipeline) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Drain(ctx))
}
