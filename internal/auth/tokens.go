package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"aidanwoods.dev/go-paseto"

	"github.com/quillpress/quill-server/internal/id"
)

const (
	tokenIssuer   = "quill-server"
	tokenAudience = "quill-client"

	// DefaultTokenDuration is the lifetime of an issued token.
	DefaultTokenDuration = 30 * 24 * time.Hour

	pasetoPrefix = "v4.local."
)

// Verification failures. Callers map all three to 401; the distinction is for logs.
var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenInvalid   = errors.New("token invalid")
)

// TokenService issues and verifies stateless identity tokens bound to a user id.
type TokenService interface {
	Issue(userID string) (token string, expiresAt time.Time, err error)
	Verify(token string) (userID string, err error)
}

// PasetoService issues PASETO v4.local tokens.
type PasetoService struct {
	key      paseto.V4SymmetricKey
	duration time.Duration
	now      func() time.Time
}

var _ TokenService = (*PasetoService)(nil)

// NewPasetoService creates a token service from a 32-byte symmetric key.
func NewPasetoService(key []byte, duration time.Duration) (*PasetoService, error) {
	if len(key) != keyLength {
		return nil, fmt.Errorf("PASETO v4 key must be exactly %d bytes, got %d", keyLength, len(key))
	}

	symmetricKey, err := paseto.V4SymmetricKeyFromBytes(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create PASETO symmetric key: %w", err)
	}

	if duration <= 0 {
		duration = DefaultTokenDuration
	}
	return &PasetoService{key: symmetricKey, duration: duration, now: time.Now}, nil
}

// Issue creates an encrypted token whose subject is userID.
func (s *PasetoService) Issue(userID string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.duration)

	token := paseto.NewToken()
	token.SetIssuer(tokenIssuer)
	token.SetSubject(userID)
	token.SetAudience(tokenAudience)
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(expiresAt)

	tokenID, err := id.Generate("tok")
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate token ID: %w", err)
	}
	token.SetJti(tokenID)

	return token.V4Encrypt(s.key, nil), expiresAt, nil
}

// Verify decrypts the token and returns its subject.
func (s *PasetoService) Verify(tokenString string) (string, error) {
	if !strings.HasPrefix(tokenString, pasetoPrefix) || len(tokenString) == len(pasetoPrefix) {
		return "", ErrTokenMalformed
	}

	// Expiry is checked below so that it can be reported separately.
	parser := paseto.NewParserWithoutExpiryCheck()
	parser.AddRule(paseto.ForAudience(tokenAudience))
	parser.AddRule(paseto.IssuedBy(tokenIssuer))

	token, err := parser.ParseV4Local(s.key, tokenString, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	exp, err := token.GetExpiration()
	if err != nil {
		return "", fmt.Errorf("%w: missing expiration", ErrTokenInvalid)
	}
	if !s.now().Before(exp) {
		return "", ErrTokenExpired
	}

	subject, err := token.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	return subject, nil
}
