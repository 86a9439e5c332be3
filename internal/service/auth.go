package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/quillpress/quill-server/internal/auth"
	"github.com/quillpress/quill-server/internal/config"
	"github.com/quillpress/quill-server/internal/domain"
	domainerrors "github.com/quillpress/quill-server/internal/errors"
	"github.com/quillpress/quill-server/internal/id"
	"github.com/quillpress/quill-server/internal/media"
	"github.com/quillpress/quill-server/internal/store"
	"github.com/quillpress/quill-server/internal/validation"
)

// AuthService registers identities, checks credentials, and manages profiles.
type AuthService struct {
	store     store.Store
	tokens    auth.TokenService
	media     *MediaClient
	validator *validation.Validator
	logger    *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	store store.Store,
	tokens auth.TokenService,
	media *MediaClient,
	validator *validation.Validator,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		store:     store,
		tokens:    tokens,
		media:     media,
		validator: validator,
		logger:    logger,
	}
}

// RegisterRequest contains the data for a new identity.
type RegisterRequest struct {
	Email        string     `json:"email" validate:"required,email,max=254"`
	Password     string     `json:"password" validate:"required,min=8,max=72"`
	Name         string     `json:"name" validate:"required,max=100"`
	Bio          string     `json:"bio" validate:"max=1000"`
	Role         string     `json:"role" validate:"omitempty,role"`
	ProfileImage *ImageFile `json:"-"`
}

// LoginRequest contains user credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
	User      domain.PublicUser `json:"user"`
}

// UpdateProfileRequest carries a partial profile update. Empty fields are kept.
type UpdateProfileRequest struct {
	Name         string     `json:"name" validate:"max=100"`
	Bio          string     `json:"bio" validate:"max=1000"`
	ProfileImage *ImageFile `json:"-"`
}

// Register creates a new identity and returns a token for it.
// Self-registration defaults to the reader role and never grants admin.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	role := domain.RoleReader
	if req.Role != "" {
		parsed, err := domain.ParseRole(req.Role)
		if err != nil {
			return nil, domainerrors.ValidationWithDetails("validation failed", map[string]string{"role": err.Error()})
		}
		if !parsed.SelfAssignable() {
			return nil, domainerrors.Forbidden("role cannot be self-assigned")
		}
		role = parsed
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, domainerrors.Validation("password cannot be used").WithCause(err)
	}

	user, err := s.createUser(ctx, req, role, hash)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID, "role", user.Role)
	return s.issue(user)
}

// createUser uploads the optional profile image and persists the user with
// passwordHash. req.Password is ignored. A failed insert discards the
// uploaded image.
func (s *AuthService) createUser(ctx context.Context, req RegisterRequest, role domain.Role, passwordHash string) (*domain.User, error) {
	if _, err := s.store.GetUserByEmail(ctx, req.Email); err == nil {
		return nil, domainerrors.Conflict("email already registered")
	} else if !domainerrors.Is(err, store.ErrNotFound) {
		return nil, storeError(err, "user not found")
	}

	userID, err := id.Generate(id.PrefixUser)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to generate user id")
	}

	user := &domain.User{
		ID:           userID,
		Email:        req.Email,
		PasswordHash: passwordHash,
		Name:         req.Name,
		Bio:          req.Bio,
		Role:         role,
		ArticleIDs:   []string{},
		CreatedAt:    time.Now(),
	}

	if req.ProfileImage != nil {
		ref, err := s.media.Upload(ctx, req.ProfileImage, media.FolderProfiles)
		if err != nil {
			return nil, err
		}
		user.ProfileImage = ref
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		s.media.Discard(user.ProfileImage)
		return nil, storeError(err, "user not found")
	}
	return user, nil
}

// Login verifies credentials. When roleHint is set the identity must hold it.
// Every failure is reported as invalid credentials.
func (s *AuthService) Login(ctx context.Context, req LoginRequest, roleHint domain.Role) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if !domainerrors.Is(err, store.ErrNotFound) {
			return nil, storeError(err, "user not found")
		}
		// Spend the same time as a real comparison so unknown emails are not distinguishable.
		auth.CheckPassword(dummyHash, req.Password)
		s.logger.Debug("login for unknown email")
		return nil, domainerrors.InvalidCredentials("invalid email or password")
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		s.logger.Info("login failed", "user_id", user.ID, "reason", "password")
		return nil, domainerrors.InvalidCredentials("invalid email or password")
	}
	if roleHint != "" && user.Role != roleHint {
		s.logger.Info("login failed", "user_id", user.ID, "reason", "role")
		return nil, domainerrors.InvalidCredentials("invalid email or password")
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	return s.issue(user)
}

// dummyHash is a bcrypt hash of a random string.
const dummyHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z3PWcclq/kVhQxiNMvoIkdJe"

func (s *AuthService) issue(user *domain.User) (*AuthResponse, error) {
	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to issue token")
	}
	return &AuthResponse{Token: token, ExpiresAt: expiresAt, User: user.Public()}, nil
}

// ResolveIdentity loads the user a token was issued for.
func (s *AuthService) ResolveIdentity(ctx context.Context, userID string) (*domain.User, error) {
	return s.store.GetUser(ctx, userID)
}

// Me returns the caller's own profile.
func (s *AuthService) Me(ctx context.Context, identity *domain.User) (domain.PublicUser, error) {
	user, err := s.store.GetUser(ctx, identity.ID)
	if err != nil {
		return domain.PublicUser{}, storeError(err, "user not found")
	}
	return user.Public(), nil
}

// GetProfile returns the public profile of any user.
func (s *AuthService) GetProfile(ctx context.Context, userID string) (domain.PublicUser, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return domain.PublicUser{}, storeError(err, "user not found")
	}
	return user.Author(), nil
}

// UpdateProfile applies the non-empty fields of req. A new profile image is
// uploaded before anything changes, and the old one is deleted only after the
// user is saved.
func (s *AuthService) UpdateProfile(ctx context.Context, identity *domain.User, req UpdateProfileRequest) (domain.PublicUser, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Validate(req); err != nil {
		return domain.PublicUser{}, err
	}

	user, err := s.store.GetUser(ctx, identity.ID)
	if err != nil {
		return domain.PublicUser{}, storeError(err, "user not found")
	}

	changed := domain.ProfilePatch{Name: req.Name, Bio: req.Bio}.Apply(user)

	var oldImage domain.MediaRef
	if req.ProfileImage != nil {
		ref, err := s.media.Upload(ctx, req.ProfileImage, media.FolderProfiles)
		if err != nil {
			return domain.PublicUser{}, err
		}
		oldImage = user.ProfileImage
		user.ProfileImage = ref
		changed = true
	}

	if !changed {
		return user.Public(), nil
	}

	if err := s.store.UpdateUser(ctx, user); err != nil {
		if req.ProfileImage != nil {
			s.media.Discard(user.ProfileImage)
		}
		return domain.PublicUser{}, storeError(err, "user not found")
	}

	s.media.Discard(oldImage)
	s.logger.Info("profile updated", "user_id", user.ID)
	return user.Public(), nil
}

// EnsureAdmin creates the bootstrap administrator unless its email is taken.
// It is a no-op when cfg has no email.
func (s *AuthService) EnsureAdmin(ctx context.Context, cfg config.AdminConfig) error {
	if cfg.Email == "" {
		return nil
	}

	existing, err := s.store.GetUserByEmail(ctx, cfg.Email)
	switch {
	case err == nil:
		if existing.Role != domain.RoleAdmin {
			s.logger.Warn("bootstrap admin email belongs to a non-admin user", "user_id", existing.ID)
		}
		return nil
	case !domainerrors.Is(err, store.ErrNotFound):
		return storeError(err, "user not found")
	}

	name := cfg.Name
	if name == "" {
		name = "Administrator"
	}
	hash := cfg.PasswordHash
	if hash != "" {
		if !auth.IsHashed(hash) {
			return domainerrors.Validation("admin password hash is not a bcrypt hash")
		}
	} else if hash, err = auth.HashPassword(cfg.Password); err != nil {
		return domainerrors.Validation("admin password cannot be used").WithCause(err)
	}

	user, err := s.createUser(ctx, RegisterRequest{Email: cfg.Email, Name: name}, domain.RoleAdmin, hash)
	if err != nil {
		return err
	}

	s.logger.Info("bootstrap admin created", "user_id", user.ID, "email", user.Email)
	return nil
}
