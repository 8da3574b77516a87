package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/dat-nglt/cusc-schedule/internal/models"
	appErrors "github.com/dat-nglt/cusc-schedule/pkg/errors"
)

type accountRepository interface {
	Create(ctx context.Context, account *models.Account, profile models.Profile) error
	FindByID(ctx context.Context, id string) (*models.Account, error)
	List(ctx context.Context, filter models.AccountFilter) ([]models.Account, int, error)
	AttachProfiles(ctx context.Context, accounts []models.Account) error
	LoadProfile(ctx context.Context, account *models.Account) error
	UpdateStatus(ctx context.Context, id string, status models.AccountStatus) error
	UpdateProfile(ctx context.Context, accountID string, profile models.Profile) error
	SoftDeleteProfile(ctx context.Context, accountID string, role models.Role) error
	Delete(ctx context.Context, id string) error
}

// sessionRevoker ends refresh sessions and blacklists live access tokens.
type sessionRevoker interface {
	RevokeAccount(ctx context.Context, accountID string) (int64, error)
}

// AccountService handles account registration and administration.
type AccountService struct {
	repo      accountRepository
	sessions  sessionRevoker
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAccountService creates an instance of AccountService.
func NewAccountService(repo accountRepository, sessions sessionRevoker, validate *validator.Validate, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AccountService{repo: repo, sessions: sessions, validator: validate, logger: logger}
}

// Register creates an account and its role profile atomically.
func (s *AccountService) Register(ctx context.Context, req models.RegisterRequest) (*models.Account, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid registration payload")
	}
	if req.Password == "" && req.GoogleID == nil {
		return nil, appErrors.WithFields(appErrors.ErrValidation, map[string]string{"password": "is required"})
	}

	profile, err := s.decodeProfile(req.Role, req.Profile)
	if err != nil {
		return nil, err
	}

	account := &models.Account{
		Email:    req.Email,
		Name:     strings.TrimSpace(req.Name),
		Role:     req.Role,
		GoogleID: req.GoogleID,
		Status:   models.AccountStatusActive,
	}
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to hash password")
		}
		h := string(hash)
		account.PasswordHash = &h
	}

	if err := s.repo.Create(ctx, account, profile); err != nil {
		return nil, mapWriteError(err, "failed to create account")
	}
	s.logger.Info("account registered", zap.String("account_id", account.ID), zap.String("role", string(account.Role)))
	return account, nil
}

func (s *AccountService) decodeProfile(role models.Role, raw []byte) (models.Profile, error) {
	profile, err := models.DecodeProfile(role, raw)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}
	if err := s.validator.Struct(profile); err != nil {
		return nil, appErrors.FromValidation(err, "invalid profile payload")
	}
	return profile, nil
}

// Get returns an account with its live profile.
func (s *AccountService) Get(ctx context.Context, id string) (*models.Account, error) {
	account, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.LoadProfile(ctx, account); err != nil {
		return nil, appErrors.Internal(err, "failed to load profile")
	}
	return account, nil
}

func (s *AccountService) find(ctx context.Context, id string) (*models.Account, error) {
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Internal(err, "failed to load account")
	}
	return account, nil
}

// List returns accounts with profiles attached.
func (s *AccountService) List(ctx context.Context, filter models.AccountFilter) ([]models.Account, *models.Pagination, error) {
	if filter.Role != nil && !filter.Role.Valid() {
		return nil, nil, appErrors.WithFields(appErrors.ErrValidation, map[string]string{"role": "must be one of: student lecturer admin training_officer"})
	}
	accounts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list accounts")
	}
	if err := s.repo.AttachProfiles(ctx, accounts); err != nil {
		return nil, nil, appErrors.Internal(err, "failed to load profiles")
	}
	return accounts, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// UpdateStatus activates or deactivates an account. Leaving the active
// state also ends the refresh session.
func (s *AccountService) UpdateStatus(ctx context.Context, id string, req models.UpdateAccountStatusRequest) (*models.Account, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid status payload")
	}
	if err := s.repo.UpdateStatus(ctx, id, req.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Internal(err, "failed to update account status")
	}
	if req.Status != models.AccountStatusActive {
		s.revokeSessions(ctx, id)
	}
	return s.Get(ctx, id)
}

// UpdateProfile replaces the profile of an account. The payload is decoded
// into the variant of the account's role.
func (s *AccountService) UpdateProfile(ctx context.Context, id string, req models.UpdateProfileRequest) (*models.Account, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid profile payload")
	}
	account, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Role != "" && req.Role != account.Role {
		return nil, appErrors.WithFields(appErrors.ErrValidation, map[string]string{"role": "does not match the account role"})
	}

	profile, err := s.decodeProfile(account.Role, req.Profile)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateProfile(ctx, id, profile); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "profile not found")
		}
		return nil, mapWriteError(err, "failed to update profile")
	}
	account.Profile = profile
	return account, nil
}

// DeleteProfile soft deletes the profile and deactivates the account.
func (s *AccountService) DeleteProfile(ctx context.Context, id string) error {
	account, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.SoftDeleteProfile(ctx, id, account.Role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "profile not found")
		}
		return appErrors.Internal(err, "failed to delete profile")
	}
	s.revokeSessions(ctx, id)
	return nil
}

// Delete removes the account. The database cascades the delete to the
// profile, tokens and notification state.
func (s *AccountService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return appErrors.Internal(err, "failed to delete account")
	}
	s.logger.Info("account deleted", zap.String("account_id", id))
	return nil
}

func (s *AccountService) revokeSessions(ctx context.Context, id string) {
	if s.sessions == nil {
		return
	}
	if _, err := s.sessions.RevokeAccount(ctx, id); err != nil {
		s.logger.Warn("failed to revoke sessions", zap.String("account_id", id), zap.Error(err))
	}
}
