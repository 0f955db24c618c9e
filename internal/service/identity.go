package service

import (
	"context"
	"errors"
	"strings"

	"streamchat/internal/domain"
	"streamchat/internal/repository"
)

// IdentityProvider resuelve la sesion autenticada y los datos del usuario.
// Ambos lookups devuelven nil (sin error) cuando no hay resultado.
type IdentityProvider interface {
	GetSession(ctx context.Context) (*domain.AuthSession, error)
	GetUserInfo(ctx context.Context, id string) (*domain.User, error)
}

type claimsContextKey struct{}

// ContextWithClaims adjunta los claims del access token al contexto del request.
func ContextWithClaims(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(Claims)
	return claims, ok
}

// ClaimsIdentityProvider toma la sesion de los claims JWT del contexto. Si hay directorio de
// usuarios lo consulta; si no, los claims son la unica fuente de datos del usuario.
type ClaimsIdentityProvider struct {
	users repository.UserRepository
}

func NewClaimsIdentityProvider(users repository.UserRepository) *ClaimsIdentityProvider {
	return &ClaimsIdentityProvider{users: users}
}

func (p *ClaimsIdentityProvider) GetSession(ctx context.Context) (*domain.AuthSession, error) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		return nil, nil
	}
	return &domain.AuthSession{ID: claims.UserID}, nil
}

func (p *ClaimsIdentityProvider) GetUserInfo(ctx context.Context, id string) (*domain.User, error) {
	if p.users != nil {
		user, err := p.users.GetByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &user, nil
	}

	claims, ok := ClaimsFromContext(ctx)
	if !ok || claims.UserID != id {
		return nil, nil
	}
	return &domain.User{
		ID:          claims.UserID,
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
	}, nil
}
