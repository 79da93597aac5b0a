package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	domainerrors "github.com/nolancloud/ncp/internal/domain/errors"
)

const purposePresigned = "presigned"

type capabilityClaims struct {
	Bucket  string `json:"bucket"`
	Key     string `json:"key"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// CapabilitySigner mints and verifies the stateless download tokens
// carried on presigned URLs. Validity is entirely signature plus embedded
// claims; nothing is recorded server side, so a token cannot be revoked
// before its expiry.
type CapabilitySigner struct {
	secret []byte
}

func NewCapabilitySigner(secret []byte) *CapabilitySigner {
	return &CapabilitySigner{secret: secret}
}

// Issue signs a token granting a read of exactly (bucket, key) for ttl.
func (s *CapabilitySigner) Issue(bucket, key string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now().UTC()
	expiry := now.Add(ttl)
	claims := capabilityClaims{
		Bucket:  bucket,
		Key:     key,
		Purpose: purposePresigned,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiry, nil
}

// Verify checks signature and expiry and requires the embedded claims to
// match the requested (bucket, key) exactly.
func (s *CapabilitySigner) Verify(token, bucket, key string) error {
	var claims capabilityClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return domainerrors.InvalidCapabilityError{Reason: "signature or expiry check failed"}
	}
	if claims.Purpose != purposePresigned {
		return domainerrors.InvalidCapabilityError{Reason: "unexpected purpose"}
	}
	if claims.Bucket != bucket || claims.Key != key {
		return domainerrors.InvalidCapabilityError{Reason: "token does not cover this object"}
	}
	return nil
}
