package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nolancloud/ncp/internal/domain"
	domainerrors "github.com/nolancloud/ncp/internal/domain/errors"
	"github.com/nolancloud/ncp/internal/impls"
)

// Resolver extracts a requester identity from an inbound request.
// A (nil, nil) return means the resolver's credential is absent; an
// error means the credential was present but invalid.
type Resolver interface {
	Resolve(ctx context.Context, r *http.Request) (*domain.Identity, error)
}

// APIKeyResolver authenticates the X-API-Key header against persisted
// keys and records last use.
type APIKeyResolver struct {
	keys   impls.APIKeyStore
	users  impls.UserStore
	logger *slog.Logger
}

func NewAPIKeyResolver(keys impls.APIKeyStore, users impls.UserStore, logger *slog.Logger) *APIKeyResolver {
	return &APIKeyResolver{keys: keys, users: users, logger: logger}
}

func (r *APIKeyResolver) Resolve(ctx context.Context, req *http.Request) (*domain.Identity, error) {
	value := strings.TrimSpace(req.Header.Get("X-API-Key"))
	if value == "" {
		return nil, nil
	}

	key, err := r.keys.GetByKey(ctx, value)
	if err != nil {
		if domainerrors.IsNotFound(err) {
			return nil, domainerrors.PermissionDeniedError{Reason: "invalid api key"}
		}
		return nil, err
	}

	user, err := r.users.Get(ctx, key.UserID)
	if err != nil {
		return nil, domainerrors.PermissionDeniedError{Reason: "invalid api key"}
	}

	if err := r.keys.Touch(ctx, key.ID, time.Now().UTC()); err != nil {
		r.logger.Warn("failed to update api key last use", "key_id", key.ID, "error", err)
	}

	return &domain.Identity{UserID: user.ID, Email: user.Email}, nil
}

type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// BearerResolver authenticates Authorization: Bearer session tokens.
type BearerResolver struct {
	secret []byte
}

func NewBearerResolver(secret []byte) *BearerResolver {
	return &BearerResolver{secret: secret}
}

func (r *BearerResolver) Resolve(_ context.Context, req *http.Request) (*domain.Identity, error) {
	header := req.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, nil
	}
	raw := strings.TrimPrefix(header, "Bearer ")

	var claims sessionClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return r.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, domainerrors.PermissionDeniedError{Reason: "invalid token"}
	}

	return &domain.Identity{UserID: claims.Subject, Email: claims.Email}, nil
}

// Chain tries resolvers in order; the first one whose credential is
// present decides the outcome. API keys are registered before bearer
// tokens, so a valid API key wins when both are supplied.
type Chain struct {
	resolvers []Resolver
}

func NewChain(resolvers ...Resolver) *Chain {
	return &Chain{resolvers: resolvers}
}

func (c *Chain) Resolve(ctx context.Context, req *http.Request) (*domain.Identity, error) {
	for _, r := range c.resolvers {
		ident, err := r.Resolve(ctx, req)
		if err != nil {
			return nil, err
		}
		if ident != nil {
			return ident, nil
		}
	}
	return nil, nil
}
