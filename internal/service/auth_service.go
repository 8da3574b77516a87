package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/dat-nglt/cusc-schedule/internal/models"
	"github.com/dat-nglt/cusc-schedule/pkg/database"
	appErrors "github.com/dat-nglt/cusc-schedule/pkg/errors"
)

type authAccountRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByID(ctx context.Context, id string) (*models.Account, error)
	FindByGoogleID(ctx context.Context, googleID string) (*models.Account, error)
	LinkGoogleID(ctx context.Context, id, googleID string) error
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	LoadProfile(ctx context.Context, account *models.Account) error
}

type authTokenRepository interface {
	StartSession(ctx context.Context, token *models.RefreshToken) error
	Rotate(ctx context.Context, currentID string, next *models.RefreshToken) error
	FindByToken(ctx context.Context, token string) (*models.RefreshToken, error)
	RevokeActive(ctx context.Context, accountID string) (int64, error)
	LiveAccessTokens(ctx context.Context, accountID string, now time.Time) ([]models.RefreshToken, error)
	Blacklist(ctx context.Context, entry *models.BlacklistedToken) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
	PurgeExpiredBlacklist(ctx context.Context, now time.Time) (int64, error)
	PurgeStaleRefreshTokens(ctx context.Context, now, revokedBefore time.Time) (int64, error)
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret  string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	Issuer             string
	// RevokedRetention keeps revoked refresh tokens around for auditing
	// before the janitor purges them.
	RevokedRetention time.Duration
}

// AuthService provides authentication use cases.
type AuthService struct {
	accounts  authAccountRepository
	tokens    authTokenRepository
	cache     *CacheService
	google    GoogleTokenVerifier
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	config    AuthConfig
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance. cache, google and
// metrics are optional.
func NewAuthService(accounts authAccountRepository, tokens authTokenRepository, cache *CacheService, google GoogleTokenVerifier, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = 15 * time.Minute
	}
	if config.RefreshTokenExpiry <= 0 {
		config.RefreshTokenExpiry = 7 * 24 * time.Hour
	}
	if config.RevokedRetention <= 0 {
		config.RevokedRetention = 7 * 24 * time.Hour
	}
	return &AuthService{
		accounts:  accounts,
		tokens:    tokens,
		cache:     cache,
		google:    google,
		validator: validate,
		logger:    logger,
		metrics:   metrics,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Login authenticates with email and password. Unknown e-mail and wrong
// password produce the same error.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid login payload")
	}

	account, err := s.accounts.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
		}
		return nil, appErrors.Internal(err, "failed to fetch account")
	}

	if account.PasswordHash == nil || bcrypt.CompareHashAndPassword([]byte(*account.PasswordHash), []byte(req.Password)) != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}
	if account.Status != models.AccountStatusActive {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "")
	}

	return s.issueSession(ctx, account, req.IP, req.UserAgent)
}

// LoginWithGoogle signs in with a Google ID token. The Google subject is
// linked to an existing account on first use; it never creates accounts.
func (s *AuthService) LoginWithGoogle(ctx context.Context, req models.GoogleLoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid google login payload")
	}
	if s.google == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "google sign-in is not configured")
	}

	identity, err := s.google.Verify(ctx, req.IDToken)
	if err != nil {
		s.logger.Debug("google token rejected", zap.Error(err))
		return nil, appErrors.Clone(appErrors.ErrInvalidToken, "invalid google token")
	}

	account, err := s.accounts.FindByGoogleID(ctx, identity.Subject)
	if errors.Is(err, sql.ErrNoRows) {
		account, err = s.linkGoogleAccount(ctx, identity)
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, appErrors.Internal(err, "failed to fetch account")
	}

	if account.Status != models.AccountStatusActive {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "")
	}
	return s.issueSession(ctx, account, req.IP, req.UserAgent)
}

func (s *AuthService) linkGoogleAccount(ctx context.Context, identity *GoogleIdentity) (*models.Account, error) {
	account, err := s.accounts.FindByEmail(ctx, identity.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "no account is registered for this google identity")
		}
		return nil, appErrors.Internal(err, "failed to fetch account")
	}

	if err := s.accounts.LinkGoogleID(ctx, account.ID, identity.Subject); err != nil {
		if database.IsUniqueViolation(err) || errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "google account is already linked")
		}
		return nil, appErrors.Internal(err, "failed to link google account")
	}
	account.GoogleID = &identity.Subject
	return account, nil
}

// issueSession signs an access token and starts a new refresh session,
// revoking any previous one.
func (s *AuthService) issueSession(ctx context.Context, account *models.Account, ip, userAgent string) (*models.LoginResponse, error) {
	now := s.now()
	accessToken, access, err := s.generateAccessToken(account, now)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create access token")
	}

	refresh, err := s.newRefreshToken(account.ID, ip, userAgent, now)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create refresh token")
	}
	refresh.TrackAccess(access.ID, access.ExpiresAt.Time)
	if err := s.tokens.StartSession(ctx, refresh); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "another session was started concurrently")
		}
		return nil, appErrors.Internal(err, "failed to persist refresh token")
	}

	if err := s.accounts.UpdateLastLogin(ctx, account.ID, now); err != nil {
		s.logger.Warn("failed to update last login", zap.String("account_id", account.ID), zap.Error(err))
	}

	return &models.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refresh.Token,
		ExpiresIn:    int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:     now,
		Account: models.AccountInfo{
			ID:    account.ID,
			Email: account.Email,
			Name:  account.Name,
			Role:  account.Role,
		},
	}, nil
}

// VerifyToken parses an access token and rejects it when the signature,
// expiry or blacklist check fails. Every rejection reads as "invalid token";
// a failing blacklist lookup is a server error.
func (s *AuthService) VerifyToken(ctx context.Context, tokenString string) (*models.JWTClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now)}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.config.AccessTokenSecret), nil
	}, opts...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidToken.Code, appErrors.ErrInvalidToken.Status, appErrors.ErrInvalidToken.Message)
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid || claims.ID == "" || claims.AccountID == "" {
		return nil, appErrors.Clone(appErrors.ErrInvalidToken, "")
	}

	revoked, err := s.isRevoked(ctx, claims)
	if err != nil {
		s.logger.Error("blacklist lookup failed", zap.String("jti", claims.ID), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to check token revocation")
	}
	if revoked {
		return nil, appErrors.Clone(appErrors.ErrInvalidToken, "")
	}
	return claims, nil
}

func (s *AuthService) isRevoked(ctx context.Context, claims *models.JWTClaims) (bool, error) {
	if s.cache.Revoked(ctx, claims.ID) {
		s.metrics.RecordBlacklistLookup("cache", true)
		return true, nil
	}
	revoked, err := s.tokens.IsBlacklisted(ctx, claims.ID)
	if err != nil {
		return false, err
	}
	s.metrics.RecordBlacklistLookup("db", revoked)
	if revoked && claims.ExpiresAt != nil {
		s.cache.Remember(ctx, claims.ID, claims.ExpiresAt.Time)
	}
	return revoked, nil
}

// Refresh rotates a refresh token. Only one of several concurrent calls
// presenting the same token wins; the others get 401. Every 401 carries the
// same message whatever check failed.
func (s *AuthService) Refresh(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid refresh payload")
	}

	stored, err := s.tokens.FindByToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.rejectRefresh("unknown token", "")
		}
		return nil, appErrors.Internal(err, "failed to fetch refresh token")
	}

	now := s.now()
	if stored.Status != models.RefreshTokenActive {
		return nil, s.rejectRefresh("revoked token", stored.ID)
	}
	if !now.Before(stored.ExpiresAt) {
		return nil, s.rejectRefresh("expired token", stored.ID)
	}

	account, err := s.accounts.FindByID(ctx, stored.AccountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.rejectRefresh("account gone", stored.ID)
		}
		return nil, appErrors.Internal(err, "failed to load account")
	}
	if account.Status != models.AccountStatusActive {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "")
	}

	accessToken, access, err := s.generateAccessToken(account, now)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to generate access token")
	}
	next, err := s.newRefreshToken(account.ID, req.IP, req.UserAgent, now)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create refresh token")
	}
	next.TrackAccess(access.ID, access.ExpiresAt.Time)
	if err := s.tokens.Rotate(ctx, stored.ID, next); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, s.rejectRefresh("lost rotation race", stored.ID)
		case database.IsUniqueViolation(err):
			return nil, appErrors.Clone(appErrors.ErrConflict, "refresh token rotated concurrently")
		default:
			return nil, appErrors.Internal(err, "failed to rotate refresh token")
		}
	}

	return &models.RefreshTokenResponse{
		AccessToken:  accessToken,
		RefreshToken: next.Token,
		ExpiresIn:    int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:     now,
	}, nil
}

func (s *AuthService) rejectRefresh(reason, tokenID string) error {
	s.logger.Debug("refresh rejected", zap.String("reason", reason), zap.String("token_id", tokenID))
	return appErrors.Clone(appErrors.ErrInvalidToken, "")
}

// Logout blacklists the presented access token and ends the refresh
// session. Calling it twice is harmless.
func (s *AuthService) Logout(ctx context.Context, claims *models.JWTClaims, refreshToken string) error {
	if claims == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "")
	}

	if refreshToken != "" {
		stored, err := s.tokens.FindByToken(ctx, refreshToken)
		switch {
		case err == nil && stored.AccountID != claims.AccountID:
			return appErrors.Clone(appErrors.ErrForbidden, "token does not belong to account")
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return appErrors.Internal(err, "failed to load refresh token")
		}
	}

	expiresAt := s.now().Add(s.config.AccessTokenExpiry)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	reason := "logout"
	if err := s.tokens.Blacklist(ctx, &models.BlacklistedToken{JTI: claims.ID, AccountID: claims.AccountID, ExpiresAt: expiresAt, Reason: &reason}); err != nil {
		return appErrors.Internal(err, "failed to revoke access token")
	}
	s.cache.Remember(ctx, claims.ID, expiresAt)

	if _, err := s.tokens.RevokeActive(ctx, claims.AccountID); err != nil {
		return appErrors.Internal(err, "failed to revoke refresh token")
	}
	return nil
}

// RevokeAccount blacklists every unexpired access token issued to the
// account and ends its refresh sessions, for instance after a detected
// compromise or a suspension. It returns the number of refresh tokens revoked.
func (s *AuthService) RevokeAccount(ctx context.Context, accountID string) (int64, error) {
	live, err := s.tokens.LiveAccessTokens(ctx, accountID, s.now())
	if err != nil {
		return 0, appErrors.Internal(err, "failed to list issued access tokens")
	}
	reason := "revoked"
	for _, rt := range live {
		if rt.AccessJTI == nil || rt.AccessExpiresAt == nil {
			continue
		}
		entry := &models.BlacklistedToken{JTI: *rt.AccessJTI, AccountID: accountID, ExpiresAt: *rt.AccessExpiresAt, Reason: &reason}
		if err := s.tokens.Blacklist(ctx, entry); err != nil {
			return 0, appErrors.Internal(err, "failed to revoke access token")
		}
		s.cache.Remember(ctx, entry.JTI, entry.ExpiresAt)
	}

	n, err := s.tokens.RevokeActive(ctx, accountID)
	if err != nil {
		return 0, appErrors.Internal(err, "failed to revoke refresh tokens")
	}
	s.logger.Info("account sessions revoked", zap.String("account_id", accountID), zap.Int64("count", n), zap.Int("access_tokens", len(live)))
	return n, nil
}

// ChangePassword changes the password for the given account and ends its
// refresh session.
func (s *AuthService) ChangePassword(ctx context.Context, accountID string, req models.ChangePasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.FromValidation(err, "invalid change password payload")
	}

	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return appErrors.Internal(err, "failed to load account")
	}

	if account.PasswordHash == nil || bcrypt.CompareHashAndPassword([]byte(*account.PasswordHash), []byte(req.OldPassword)) != nil {
		return appErrors.Clone(appErrors.ErrForbidden, "old password does not match")
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Internal(err, "failed to hash password")
	}
	if err := s.accounts.UpdatePassword(ctx, accountID, string(newHash)); err != nil {
		return appErrors.Internal(err, "failed to update password")
	}

	if _, err := s.tokens.RevokeActive(ctx, accountID); err != nil {
		s.logger.Warn("failed to revoke refresh tokens after password change", zap.Error(err))
	}
	return nil
}

// Me returns the authenticated account with its profile.
func (s *AuthService) Me(ctx context.Context, claims *models.JWTClaims) (*models.Account, error) {
	if claims == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	account, err := s.accounts.FindByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Internal(err, "failed to load account")
	}
	if err := s.accounts.LoadProfile(ctx, account); err != nil {
		return nil, appErrors.Internal(err, "failed to load profile")
	}
	return account, nil
}

// PurgeExpiredBlacklist drops blacklist rows that can no longer match a live token.
func (s *AuthService) PurgeExpiredBlacklist(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.tokens.PurgeExpiredBlacklist(ctx, now)
	if err != nil {
		return 0, appErrors.Internal(err, "failed to purge blacklist")
	}
	return n, nil
}

// PurgeStaleRefreshTokens drops expired tokens and revoked tokens older than
// the retention window.
func (s *AuthService) PurgeStaleRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.tokens.PurgeStaleRefreshTokens(ctx, now, now.Add(-s.config.RevokedRetention))
	if err != nil {
		return 0, appErrors.Internal(err, "failed to purge refresh tokens")
	}
	return n, nil
}

func (s *AuthService) generateAccessToken(account *models.Account, issuedAt time.Time) (string, *models.JWTClaims, error) {
	expiresAt := issuedAt.Add(s.config.AccessTokenExpiry)
	claims := &models.JWTClaims{
		AccountID: account.ID,
		Role:      account.Role,
		Email:     account.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.config.Issuer,
			Subject:   account.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.AccessTokenSecret))
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

func (s *AuthService) newRefreshToken(accountID, ip, userAgent string, now time.Time) (*models.RefreshToken, error) {
	value, err := generateRefreshTokenString()
	if err != nil {
		return nil, err
	}
	return &models.RefreshToken{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Token:     value,
		ExpiresAt: now.Add(s.config.RefreshTokenExpiry),
		IPAddress: optionalString(ip),
		UserAgent: optionalString(userAgent),
	}, nil
}

func generateRefreshTokenString() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
