package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/nolancloud/ncp/internal/domain"
	domainerrors "github.com/nolancloud/ncp/internal/domain/errors"
	"github.com/nolancloud/ncp/internal/impls"
)

const sessionTTL = 24 * time.Hour

// AccountService implements signup, login and api key issuance. Session
// tokens are HS256 with the user id as subject.
type AccountService struct {
	users  impls.UserStore
	keys   impls.APIKeyStore
	secret []byte
	logger *slog.Logger
}

func NewAccountService(users impls.UserStore, keys impls.APIKeyStore, secret []byte, logger *slog.Logger) *AccountService {
	return &AccountService{users: users, keys: keys, secret: secret, logger: logger}
}

func (s *AccountService) Signup(ctx context.Context, email, password, name string) (*domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, "", domainerrors.ValidationError{Reason: "a valid email is required"}
	}
	if len(password) < 8 {
		return nil, "", domainerrors.ValidationError{Reason: "password must be at least 8 characters"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, "", err
	}
	s.logger.Info("user signed up", "user_id", user.ID, "email", user.Email)
	return user, token, nil
}

func (s *AccountService) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		// Same failure for an unknown email and a wrong password.
		return nil, "", domainerrors.PermissionDeniedError{Reason: "invalid email or password"}
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, "", domainerrors.PermissionDeniedError{Reason: "invalid email or password"}
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// CreateAPIKey mints an opaque "ncp-" key for the user.
func (s *AccountService) CreateAPIKey(ctx context.Context, userID string) (*domain.APIKey, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}

	key := &domain.APIKey{
		ID:        uuid.NewString(),
		Key:       "ncp-" + hex.EncodeToString(raw),
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.keys.Create(ctx, key); err != nil {
		return nil, err
	}
	s.logger.Info("api key issued", "user_id", userID, "key_id", key.ID)
	return key, nil
}

func (s *AccountService) issueToken(user *domain.User) (string, error) {
	now := time.Now().UTC()
	claims := sessionClaims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
