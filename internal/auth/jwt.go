package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/quillpress/quill-server/internal/config"
	"github.com/quillpress/quill-server/internal/id"
)

// minJWTSecret is the shortest HS256 secret accepted.
const minJWTSecret = 32

// Claims are the registered claims of an HS256 token. The subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
}

// JWTService issues HS256-signed JWTs.
type JWTService struct {
	secret   []byte
	duration time.Duration
	now      func() time.Time
}

var _ TokenService = (*JWTService)(nil)

// NewJWTService creates a JWT token service.
func NewJWTService(secret []byte, duration time.Duration) (*JWTService, error) {
	if len(secret) < minJWTSecret {
		return nil, fmt.Errorf("JWT secret must be at least %d bytes, got %d", minJWTSecret, len(secret))
	}
	if duration <= 0 {
		duration = DefaultTokenDuration
	}
	return &JWTService{secret: secret, duration: duration, now: time.Now}, nil
}

// Issue signs a token whose subject is userID.
func (s *JWTService) Issue(userID string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.duration)

	tokenID, err := id.Generate("tok")
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate token ID: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   userID,
			Audience:  jwt.ClaimStrings{tokenAudience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        tokenID,
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks the signature and registered claims and returns the subject.
func (s *JWTService) Verify(tokenString string) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "", ErrTokenMalformed
	case err != nil:
		return "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	case !token.Valid || claims.Subject == "":
		return "", ErrTokenInvalid
	}
	return claims.Subject, nil
}

// NewTokenService selects the token format from configuration.
func NewTokenService(cfg config.AuthConfig) (TokenService, error) {
	switch cfg.TokenFormat {
	case config.TokenFormatJWT:
		return NewJWTService([]byte(cfg.JWTSecret), cfg.TokenDuration)
	case config.TokenFormatPASETO, "":
		return NewPasetoService(cfg.TokenKey, cfg.TokenDuration)
	default:
		return nil, fmt.Errorf("unknown token format %q", cfg.TokenFormat)
	}
}
