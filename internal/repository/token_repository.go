package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dat-nglt/cusc-schedule/internal/models"
)

const refreshTokenColumns = `id, account_id, token, expires_at, ip_address, user_agent, status, revoked_at, access_jti, access_expires_at, created_at, updated_at`

// TokenRepository persists refresh token sessions and the access token blacklist.
type TokenRepository struct {
	db *sqlx.DB
}

// NewTokenRepository constructs the repository.
func NewTokenRepository(db *sqlx.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// StartSession revokes any active refresh token of the account and stores
// the new one in a single transaction.
func (r *TokenRepository) StartSession(ctx context.Context, token *models.RefreshToken) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin start session: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	const revoke = `UPDATE refresh_tokens SET status = 'revoked', revoked_at = $2, updated_at = $2 WHERE account_id = $1 AND status = 'active'`
	if _, err = tx.ExecContext(ctx, revoke, token.AccountID, now); err != nil {
		return fmt.Errorf("revoke previous session: %w", err)
	}
	if err = insertRefreshToken(ctx, tx, token, now); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit start session: %w", err)
	}
	return nil
}

// Rotate revokes the presented token and inserts its successor atomically.
// When the presented token is no longer active (a concurrent rotation won)
// sql.ErrNoRows is returned and nothing is written.
func (r *TokenRepository) Rotate(ctx context.Context, currentID string, next *models.RefreshToken) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rotate refresh token: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	const revoke = `UPDATE refresh_tokens SET status = 'revoked', revoked_at = $2, updated_at = $2 WHERE id = $1 AND status = 'active'`
	res, err := tx.ExecContext(ctx, revoke, currentID, now)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if err = expectRows(res, "revoke refresh token"); err != nil {
		return err
	}
	if err = insertRefreshToken(ctx, tx, next, now); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit rotate refresh token: %w", err)
	}
	return nil
}

func insertRefreshToken(ctx context.Context, exec sqlx.ExtContext, token *models.RefreshToken, now time.Time) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	token.Status = models.RefreshTokenActive
	token.CreatedAt = now
	token.UpdatedAt = now
	const query = `INSERT INTO refresh_tokens (id, account_id, token, expires_at, ip_address, user_agent, status, access_jti, access_expires_at, created_at, updated_at) VALUES (:id, :account_id, :token, :expires_at, :ip_address, :user_agent, :status, :access_jti, :access_expires_at, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindByToken returns a refresh token by its opaque value.
func (r *TokenRepository) FindByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := fmt.Sprintf("SELECT %s FROM refresh_tokens WHERE token = $1 LIMIT 1", refreshTokenColumns)
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, query, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &rt, nil
}

// RevokeActive revokes every active refresh token of the account.
func (r *TokenRepository) RevokeActive(ctx context.Context, accountID string) (int64, error) {
	const query = `UPDATE refresh_tokens SET status = 'revoked', revoked_at = $2, updated_at = $2 WHERE account_id = $1 AND status = 'active'`
	res, err := r.db.ExecContext(ctx, query, accountID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("revoke account refresh tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("revoke account refresh tokens rows: %w", err)
	}
	return n, nil
}

// LiveAccessTokens returns the account's refresh token rows, active or not,
// whose paired access token has not expired yet.
func (r *TokenRepository) LiveAccessTokens(ctx context.Context, accountID string, now time.Time) ([]models.RefreshToken, error) {
	query := fmt.Sprintf("SELECT %s FROM refresh_tokens WHERE account_id = $1 AND access_jti IS NOT NULL AND access_expires_at > $2", refreshTokenColumns)
	var out []models.RefreshToken
	if err := r.db.SelectContext(ctx, &out, query, accountID, now); err != nil {
		return nil, fmt.Errorf("list live access tokens: %w", err)
	}
	return out, nil
}

// Blacklist records a revoked jti. Blacklisting the same jti twice is a no-op.
func (r *TokenRepository) Blacklist(ctx context.Context, entry *models.BlacklistedToken) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO blacklisted_tokens (id, jti, account_id, expires_at, reason, created_at, updated_at) VALUES (:id, :jti, :account_id, :expires_at, :reason, :created_at, :created_at) ON CONFLICT (jti) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}
	return nil
}

// IsBlacklisted reports whether jti has been revoked.
func (r *TokenRepository) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM blacklisted_tokens WHERE jti = $1)`, jti); err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}
	return exists, nil
}

// PurgeExpiredBlacklist deletes blacklist rows whose tokens expired before now.
func (r *TokenRepository) PurgeExpiredBlacklist(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM blacklisted_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge blacklist: %w", err)
	}
	return res.RowsAffected()
}

// PurgeStaleRefreshTokens deletes expired tokens and tokens revoked before revokedBefore.
func (r *TokenRepository) PurgeStaleRefreshTokens(ctx context.Context, now, revokedBefore time.Time) (int64, error) {
	const query = `DELETE FROM refresh_tokens WHERE expires_at < $1 OR (status = 'revoked' AND revoked_at < $2)`
	res, err := r.db.ExecContext(ctx, query, now, revokedBefore)
	if err != nil {
		return 0, fmt.Errorf("purge refresh tokens: %w", err)
	}
	return res.RowsAffected()
}
