package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"streamchat/internal/config"
	"streamchat/internal/conversation"
	"streamchat/internal/db"
	"streamchat/internal/llm"
	"streamchat/internal/repository"
	"streamchat/internal/service"
	"streamchat/internal/stream"
)

// App agrupa las dependencias compartidas por la API y el cliente de terminal.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Redis    *redis.Client
	Pool     *pgxpool.Pool
	Users    repository.UserRepository
	Identity service.IdentityProvider
	JWT      *service.JWTService
	Models   *llm.Registry
	Pipeline *service.SubmissionPipeline
	Actions  *service.ChatActions
}

// New conecta Redis (obligatorio) y Postgres (opcional) y arma el pipeline de chat.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	err := redisClient.Ping(ctxPing).Err()
	cancel()
	if err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	a := &App{Config: cfg, Logger: logger, Redis: redisClient}

	pool, err := db.Open(ctx, cfg)
	switch {
	case errors.Is(err, db.ErrNotConfigured):
		logger.Info("user directory disabled, identities come from jwt claims")
	case err != nil:
		a.Close()
		return nil, fmt.Errorf("db connect: %w", err)
	default:
		a.Pool = pool
		a.Users = repository.NewPgUserRepository(pool)
	}

	models, err := buildModels(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Models = models

	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}
	a.JWT = service.NewJWTService(cfg.JWTSecret, time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute)

	// Sin directorio de usuarios el provider usa solo los claims.
	a.Identity = service.NewClaimsIdentityProvider(a.Users)

	states := conversation.NewStore(sessionTTL(cfg, logger))
	turns := stream.NewRegistry(cfg.TurnHandleTTL)
	chats := repository.NewRedisChatRepository(redisClient, logger)

	a.Pipeline = service.NewSubmissionPipeline(
		logger,
		a.Identity,
		states,
		llm.NewInvoker(models, logger),
		chats,
		turns,
		service.PipelineOptions{
			SystemPrompt:     cfg.SystemPrompt,
			ProgressInterval: cfg.ProgressInterval,
			TurnTimeout:      cfg.TurnTimeout,
		},
	)
	a.Actions = service.NewChatActions(
		logger,
		a.Identity,
		a.Pipeline,
		service.NewHistoryService(logger, chats, states),
		states,
		chats,
		turns,
		service.StaticQuota{},
	)
	return a, nil
}

// sessionTTLMargin cubre la persistencia que sigue al stream dentro del mismo turno.
const sessionTTLMargin = time.Minute

// sessionTTL evita que una sesion expire con un turno en curso: el TTL nunca queda por
// debajo del timeout de turno mas un margen.
func sessionTTL(cfg *config.Config, logger *zap.Logger) time.Duration {
	turnTimeout := cfg.TurnTimeout
	if turnTimeout <= 0 {
		turnTimeout = service.DefaultTurnTimeout
	}
	ttl := cfg.StateTTL
	if ttl <= 0 {
		ttl = conversation.DefaultTTL
	}
	floor := turnTimeout + sessionTTLMargin
	if ttl < floor {
		logger.Warn("state ttl shorter than turn timeout, raising it",
			zap.Duration("state_ttl", ttl),
			zap.Duration("turn_timeout", turnTimeout),
			zap.Duration("effective_ttl", floor),
		)
		return floor
	}
	return ttl
}

// buildModels registra un binding por backend con API key. En modo offline ambos responden con eco.
func buildModels(cfg *config.Config, logger *zap.Logger) (*llm.Registry, error) {
	def, ok := llm.ParseChoice(cfg.DefaultModel)
	if !ok {
		logger.Warn("unknown default model, using premium-reasoning", zap.String("default_model", cfg.DefaultModel))
		def = llm.ModelPremiumReasoning
	}

	if cfg.LLMOffline {
		echo := &llm.EchoProvider{Delay: 50 * time.Millisecond}
		logger.Warn("llm offline mode, responses are echoed")
		return llm.NewRegistry(def,
			llm.Binding{Choice: llm.ModelFastGeneral, Model: "echo", Provider: echo},
			llm.Binding{Choice: llm.ModelPremiumReasoning, Model: "echo", Provider: echo},
		)
	}

	var bindings []llm.Binding
	if cfg.OpenAIAPIKey != "" {
		p, err := llm.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey)
		if err != nil {
			return nil, fmt.Errorf("openai provider: %w", err)
		}
		bindings = append(bindings, llm.Binding{Choice: llm.ModelFastGeneral, Model: cfg.OpenAIModel, Provider: p})
	} else {
		logger.Warn("openai api key not configured, fast-general unavailable")
	}
	if cfg.AnthropicAPIKey != "" {
		p, err := llm.NewAnthropicProvider(cfg.AnthropicBaseURL, cfg.AnthropicAPIKey)
		if err != nil {
			return nil, fmt.Errorf("anthropic provider: %w", err)
		}
		bindings = append(bindings, llm.Binding{Choice: llm.ModelPremiumReasoning, Model: cfg.AnthropicModel, Provider: p})
	} else {
		logger.Warn("anthropic api key not configured, premium-reasoning unavailable")
	}

	reg, err := llm.NewRegistry(def, bindings...)
	if err != nil {
		return nil, fmt.Errorf("model registry: %w (set OPENAI_API_KEY, ANTHROPIC_API_KEY or LLM_OFFLINE=true)", err)
	}
	return reg, nil
}

// Drain espera los turnos en curso.
func (a *App) Drain(ctx context.Context) error {
	if a.Pipeline == nil {
		return nil
	}
	return a.Pipeline.Drain(ctx)
}

func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
}
