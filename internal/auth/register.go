package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/internal/users"
	"github.com/angelmondragon/marketplace-backend/pkg/config"
	pkgdb "github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/marketplace-backend/pkg/security"
)

// AccountService covers sign-up, confirmation, and password reset.
type AccountService interface {
	Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error)
	Confirm(ctx context.Context, req ConfirmRequest) error
	RequestPasswordReset(ctx context.Context, req PasswordResetRequest) error
	ConfirmPasswordReset(ctx context.Context, req PasswordResetConfirmRequest) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// AccountServiceParams packages the dependencies for the account flows.
type AccountServiceParams struct {
	DB             txRunner
	Tokens         tokenStore
	Outbox         outboxEmitter
	PasswordConfig config.PasswordConfig
	Logger         *logger.Logger
}

type accountService struct {
	db          txRunner
	tokens      accountTokens
	outbox      outboxEmitter
	passwordCfg config.PasswordConfig
	logg        *logger.Logger
}

// NewAccountService builds the account service with the provided dependencies.
func NewAccountService(params AccountServiceParams) (AccountService, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	if params.Tokens == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "token store required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox service required")
	}
	return &accountService{
		db:          params.DB,
		tokens:      accountTokens{store: params.Tokens, ttl: params.PasswordConfig.TokenTTL},
		outbox:      params.Outbox,
		passwordCfg: params.PasswordConfig,
		logg:        params.Logger,
	}, nil
}

func (s *accountService) Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error) {
	email := users.NormalizeEmail(req.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	role := enums.RoleCustomer
	if strings.TrimSpace(req.Type) != "" {
		parsed, err := enums.ParseRole(strings.TrimSpace(req.Type))
		if err != nil || parsed == enums.RoleStaff {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "type must be customer or shop")
		}
		role = parsed
	}
	if err := security.CheckPasswordStrength(req.Password, email); err != nil {
		return nil, pkgerrors.Combine(pkgerrors.CodeValidation, err, "password does not meet requirements")
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	token, err := security.GenerateAccountToken()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate confirmation token")
	}

	var created *users.UserDTO
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := users.NewRepository(tx)

		if _, err := userRepo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}

		user, err := userRepo.Create(ctx, users.CreateUserDTO{
			Email:        email,
			PasswordHash: passwordHash,
			FirstName:    strings.TrimSpace(req.FirstName),
			LastName:     strings.TrimSpace(req.LastName),
			Company:      strings.TrimSpace(req.Company),
			Position:     strings.TrimSpace(req.Position),
			Role:         role,
		})
		if err != nil {
			if pkgdb.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}

		if err := s.tokens.put(ctx, purposeConfirm, token, user.ID.String()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store confirmation token")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventUserRegistered,
			AggregateType: enums.AggregateUser,
			AggregateID:   user.ID.String(),
			Actor:         &outbox.ActorRef{UserID: user.ID, Role: string(user.Role)},
			Data: payloads.UserRegisteredEvent{
				UserID:    user.ID,
				Email:     user.Email,
				FirstName: user.FirstName,
				LastName:  user.LastName,
				Token:     token,
			},
		}); err != nil {
			_ = s.tokens.drop(ctx, purposeConfirm, token)
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit user registered")
		}

		created = users.FromModel(user)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *accountService) Confirm(ctx context.Context, req ConfirmRequest) error {
	token := strings.TrimSpace(req.Token)
	if token == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "token is required")
	}
	owner, err := s.tokens.lookup(ctx, purposeConfirm, token)
	if err != nil {
		if errors.Is(err, errTokenNotFound) {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid token or email")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup confirmation token")
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := users.NewRepository(tx)
		user, err := userRepo.FindByEmail(ctx, req.Email)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeValidation, "invalid token or email")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
		}
		if user.ID.String() != owner {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid token or email")
		}
		if err := userRepo.Activate(ctx, user.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "activate user")
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.tokens.drop(ctx, purposeConfirm, token); err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "failed to drop confirmation token")
	}
	return nil
}

// RequestPasswordReset answers identically whether or not the email is known.
func (s *accountService) RequestPasswordReset(ctx context.Context, req PasswordResetRequest) error {
	email := users.NormalizeEmail(req.Email)
	if email == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		user, err := users.NewRepository(tx).FindByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
		}

		token, err := security.GenerateAccountToken()
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate reset token")
		}
		if err := s.tokens.put(ctx, purposeReset, token, user.ID.String()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store reset token")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPasswordResetRequested,
			AggregateType: enums.AggregateUser,
			AggregateID:   user.ID.String(),
			Data: payloads.PasswordResetRequestedEvent{
				UserID:    user.ID,
				Email:     user.Email,
				FirstName: user.FirstName,
				LastName:  user.LastName,
				Token:     token,
			},
		}); err != nil {
			_ = s.tokens.drop(ctx, purposeReset, token)
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit password reset")
		}
		return nil
	})
}

func (s *accountService) ConfirmPasswordReset(ctx context.Context, req PasswordResetConfirmRequest) error {
	token := strings.TrimSpace(req.Token)
	owner, err := s.tokens.lookup(ctx, purposeReset, token)
	if err != nil {
		if errors.Is(err, errTokenNotFound) {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid or expired token")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup reset token")
	}
	userID, err := uuid.Parse(owner)
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid or expired token")
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := users.NewRepository(tx)
		user, err := userRepo.FindByID(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeValidation, "invalid or expired token")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
		}
		if err := security.CheckPasswordStrength(req.Password, user.Email); err != nil {
			return pkgerrors.Combine(pkgerrors.CodeValidation, err, "password does not meet requirements")
		}
		hash, err := security.HashPassword(req.Password, s.passwordCfg)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
		}
		if err := userRepo.UpdatePassword(ctx, user.ID, hash); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update password")
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := s.tokens.drop(ctx, purposeReset, token); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "drop reset token")
	}
	return nil
}
