package security

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"live_contest/internal/common"
	"live_contest/internal/domain/model"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
)

// TokenAuthority verifies participant credentials. Issuance lives elsewhere;
// GenerateToken exists for tooling and tests that need a valid credential.
type TokenAuthority struct {
	auth *jwtauth.JWTAuth
	ttl  time.Duration
}

func NewTokenAuthority(key []byte, ttl time.Duration) *TokenAuthority {
	return &TokenAuthority{
		auth: jwtauth.New("HS256", key, nil),
		ttl:  ttl,
	}
}

// JWTAuth exposes the underlying verifier for chi middleware.
func (a *TokenAuthority) JWTAuth() *jwtauth.JWTAuth {
	return a.auth
}

func (a *TokenAuthority) GenerateToken(userID string, role model.Role) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    string(role),
		"exp":     time.Now().Add(a.ttl).Unix(),
		"iat":     time.Now().Unix(),
	}
	_, tokenString, err := a.auth.Encode(claims)
	return tokenString, err
}

// Verify checks signature and expiry and extracts the participant identity.
func (a *TokenAuthority) Verify(tokenString string) (model.Identity, error) {
	if tokenString == "" {
		return model.Identity{}, fmt.Errorf("token missing: %w", common.ErrUnauthorized)
	}
	token, err := jwtauth.VerifyToken(a.auth, tokenString)
	if err != nil {
		return model.Identity{}, fmt.Errorf("%v: %w", err, common.ErrUnauthorized)
	}
	claims, err := token.AsMap(context.Background())
	if err != nil {
		return model.Identity{}, fmt.Errorf("reading claims: %v: %w", err, common.ErrUnauthorized)
	}
	return IdentityFromClaims(claims)
}

// IdentityFromClaims validates the user_id and role claims.
func IdentityFromClaims(claims jwt.MapClaims) (model.Identity, error) {
	userID, err := GetUserIDFromClaims(claims)
	if err != nil {
		return model.Identity{}, fmt.Errorf("%v: %w", err, common.ErrUnauthorized)
	}
	roleStr, err := GetUserRoleFromClaims(claims)
	if err != nil {
		return model.Identity{}, fmt.Errorf("%v: %w", err, common.ErrUnauthorized)
	}
	role, ok := model.ParseRole(roleStr)
	if !ok {
		return model.Identity{}, fmt.Errorf("unknown role %q: %w", roleStr, common.ErrUnauthorized)
	}
	if !model.ValidID(userID) {
		return model.Identity{}, fmt.Errorf("malformed user_id %q: %w", userID, common.ErrUnauthorized)
	}
	return model.Identity{UserID: userID, Role: role}, nil
}

func GetUserIDFromClaims(claims jwt.MapClaims) (string, error) {
	switch id := claims["user_id"].(type) {
	case string:
		return id, nil
	case float64:
		// numeric ids survive JSON decoding as float64
		return strconv.FormatInt(int64(id), 10), nil
	}
	return "", errors.New("user_id claim is missing or not a string")
}

func GetUserRoleFromClaims(claims jwt.MapClaims) (string, error) {
	role, ok := claims["role"].(string)
	if !ok {
		return "", errors.New("role claim is missing or not a string")
	}
	return role, nil
}
