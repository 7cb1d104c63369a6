package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/internal/users"
	pkgAuth "github.com/angelmondragon/marketplace-backend/pkg/auth"
	"github.com/angelmondragon/marketplace-backend/pkg/auth/session"
	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/security"
)

// Every login failure reads the same so callers cannot probe which emails exist.
func invalidCredentials() error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
}

// Service backs the login and profile endpoints.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Details(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error)
	UpdateDetails(ctx context.Context, userID uuid.UUID, req DetailsUpdateRequest) (*users.UserDTO, error)
}

type userRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdateProfile(ctx context.Context, id uuid.UUID, update users.ProfileUpdate) (*models.User, error)
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string) (string, error)
}

type ServiceParams struct {
	UserRepo       userRepository
	SessionManager sessionManager
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
}

type service struct {
	users    userRepository
	sessions sessionManager
	jwt      config.JWTConfig
	password config.PasswordConfig
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.UserRepo == nil:
		return nil, errors.New("user repository is required")
	case params.SessionManager == nil:
		return nil, errors.New("session manager is required")
	}
	return &service{
		users:    params.UserRepo,
		sessions: params.SessionManager,
		jwt:      params.JWTConfig,
		password: params.PasswordConfig,
		now:      time.Now,
	}, nil
}

// Login verifies the credentials, stamps last_login_at and opens a session:
// a short-lived JWT plus a refresh token keyed by the JWT's jti.
func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update last login")
	}
	user.LastLoginAt = &now

	jti := session.NewAccessID()
	access, err := pkgAuth.MintAccessToken(s.jwt, now, pkgAuth.AccessTokenPayload{UserID: user.ID, Role: user.Role, JTI: jti})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	refresh, err := s.sessions.Generate(ctx, jti)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh token")
	}
	return &LoginResponse{AccessToken: access, RefreshToken: refresh, User: users.FromModel(user)}, nil
}

func (s *service) Details(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return users.FromModel(user), nil
}

// UpdateDetails ignores blank name fields. A new password must pass the
// strength check against the account email before it is hashed.
func (s *service) UpdateDetails(ctx context.Context, userID uuid.UUID, req DetailsUpdateRequest) (*users.UserDTO, error) {
	update := users.ProfileUpdate{
		FirstName: nonBlank(req.FirstName),
		LastName:  nonBlank(req.LastName),
		Company:   nonBlank(req.Company),
		Position:  nonBlank(req.Position),
	}
	if req.Password != nil {
		current, err := s.load(ctx, userID)
		if err != nil {
			return nil, err
		}
		if err := security.CheckPasswordStrength(*req.Password, current.Email); err != nil {
			return nil, pkgerrors.Combine(pkgerrors.CodeValidation, err, "password does not meet requirements")
		}
		hash, err := security.HashPassword(*req.Password, s.password)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
		}
		update.PasswordHash = &hash
	}

	user, err := s.users.UpdateProfile(ctx, userID, update)
	if err != nil {
		return nil, userError(err, "update user")
	}
	return users.FromModel(user), nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, userError(err, "load user")
	}
	return user, nil
}

func userError(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, op)
}

func (s *service) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = users.NormalizeEmail(email)
	if email == "" {
		return nil, invalidCredentials()
	}
	user, err := s.users.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, invalidCredentials()
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok || !user.IsActive || !user.Role.IsValid() {
		return nil, invalidCredentials()
	}
	s.upgradeHash(ctx, user, password)
	return user, nil
}

// upgradeHash re-derives the stored hash when the argon2 settings changed.
// A failure leaves the old hash in place; it still verifies.
func (s *service) upgradeHash(ctx context.Context, user *models.User, password string) {
	if !security.NeedsRehash(user.PasswordHash, s.password) {
		return
	}
	hash, err := security.HashPassword(password, s.password)
	if err != nil {
		return
	}
	if _, err := s.users.UpdateProfile(ctx, user.ID, users.ProfileUpdate{PasswordHash: &hash}); err == nil {
		user.PasswordHash = hash
	}
}

func nonBlank(value *string) *string {
	if value == nil {
		return nil
	}
	if v := strings.TrimSpace(*value); v != "" {
		return &v
	}
	return nil
}
