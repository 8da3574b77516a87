package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/dat-nglt/cusc-schedule/internal/models"
)

const accountColumns = `id, email, password_hash, name, role, google_id, status, last_login, created_at, updated_at`

// profileSpec maps a role to its profile table and mutable columns.
type profileSpec struct {
	table   string
	columns []string
}

var profileSpecs = map[models.Role]profileSpec{
	models.RoleStudent:         {table: "students", columns: []string{"student_code", "class_id", "gpa", "enrollment_date", "phone", "address"}},
	models.RoleLecturer:        {table: "lecturers", columns: []string{"lecturer_code", "department", "degree", "hire_date", "phone"}},
	models.RoleAdmin:           {table: "admins", columns: []string{"admin_code", "department"}},
	models.RoleTrainingOfficer: {table: "training_officers", columns: []string{"staff_code", "department"}},
}

func specFor(role models.Role) (profileSpec, error) {
	spec, ok := profileSpecs[role]
	if !ok {
		return profileSpec{}, fmt.Errorf("no profile table for role %q", role)
	}
	return spec, nil
}

func (s profileSpec) insertQuery() string {
	return fmt.Sprintf("INSERT INTO %s (account_id, %s, created_at, updated_at) VALUES (:account_id, :%s, :created_at, :updated_at)",
		s.table, strings.Join(s.columns, ", "), strings.Join(s.columns, ", :"))
}

func (s profileSpec) updateQuery() string {
	sets := make([]string, len(s.columns))
	for i, c := range s.columns {
		sets[i] = c + " = :" + c
	}
	return fmt.Sprintf("UPDATE %s SET %s, updated_at = :updated_at WHERE account_id = :account_id AND deleted_at IS NULL",
		s.table, strings.Join(sets, ", "))
}

func (s profileSpec) selectQuery() string {
	return fmt.Sprintf("SELECT account_id, %s, created_at, updated_at, deleted_at FROM %s WHERE account_id = ANY($1) AND deleted_at IS NULL",
		strings.Join(s.columns, ", "), s.table)
}

// AccountRepository provides database access for accounts and their role profiles.
type AccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository creates a new instance of AccountRepository.
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts the account and its profile in one transaction. The profile
// variant must match the account role; the composite foreign key rejects
// anything else.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account, profile models.Profile) (err error) {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now
	if account.Status == "" {
		account.Status = models.AccountStatusActive
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create account: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO accounts (id, email, password_hash, name, role, google_id, status, created_at, updated_at) VALUES (:id, :email, :password_hash, :name, :role, :google_id, :status, :created_at, :updated_at)`
	if _, err = sqlx.NamedExecContext(ctx, tx, query, account); err != nil {
		return fmt.Errorf("create account: %w", err)
	}

	if profile != nil {
		if err = r.insertProfile(ctx, tx, account.ID, profile, now); err != nil {
			return err
		}
		account.Profile = profile
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create account: %w", err)
	}
	return nil
}

func (r *AccountRepository) insertProfile(ctx context.Context, exec sqlx.ExtContext, accountID string, profile models.Profile, now time.Time) error {
	spec, err := specFor(profile.Role())
	if err != nil {
		return err
	}
	models.SetProfileAccount(profile, accountID)
	touchProfile(profile, now, true)
	if _, err := sqlx.NamedExecContext(ctx, exec, spec.insertQuery(), profile); err != nil {
		return fmt.Errorf("create %s profile: %w", profile.Role(), err)
	}
	return nil
}

func touchProfile(p models.Profile, now time.Time, created bool) {
	switch v := p.(type) {
	case *models.StudentProfile:
		if created {
			v.CreatedAt = now
		}
		v.UpdatedAt = now
	case *models.LecturerProfile:
		if created {
			v.CreatedAt = now
		}
		v.UpdatedAt = now
	case *models.AdminProfile:
		if created {
			v.CreatedAt = now
		}
		v.UpdatedAt = now
	case *models.TrainingOfficerProfile:
		if created {
			v.CreatedAt = now
		}
		v.UpdatedAt = now
	}
}

func (r *AccountRepository) findOne(ctx context.Context, column string, value interface{}) (*models.Account, error) {
	query := fmt.Sprintf("SELECT %s FROM accounts WHERE %s = $1 LIMIT 1", accountColumns, column)
	var account models.Account
	if err := r.db.GetContext(ctx, &account, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find account by %s: %w", column, err)
	}
	return &account, nil
}

// FindByEmail returns an account by email address.
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.findOne(ctx, "email", strings.ToLower(email))
}

// FindByID returns an account by identifier.
func (r *AccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	return r.findOne(ctx, "id", id)
}

// FindByGoogleID returns the account linked to a Google subject.
func (r *AccountRepository) FindByGoogleID(ctx context.Context, googleID string) (*models.Account, error) {
	return r.findOne(ctx, "google_id", googleID)
}

// LinkGoogleID stores the Google subject on an account that has none yet.
func (r *AccountRepository) LinkGoogleID(ctx context.Context, id, googleID string) error {
	const query = `UPDATE accounts SET google_id = $2, updated_at = $3 WHERE id = $1 AND google_id IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, googleID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("link google id: %w", err)
	}
	return expectRows(res, "link google id")
}

// UpdateLastLogin updates the last_login timestamp for an account.
func (r *AccountRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE accounts SET last_login = $2, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// UpdatePassword updates the stored password hash.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const query = `UPDATE accounts SET password_hash = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, passwordHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return expectRows(res, "update password")
}

// UpdateStatus changes the account status.
func (r *AccountRepository) UpdateStatus(ctx context.Context, id string, status models.AccountStatus) error {
	const query = `UPDATE accounts SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update account status: %w", err)
	}
	return expectRows(res, "update account status")
}

// UpdateProfile writes the mutable profile columns of a live profile.
func (r *AccountRepository) UpdateProfile(ctx context.Context, accountID string, profile models.Profile) error {
	spec, err := specFor(profile.Role())
	if err != nil {
		return err
	}
	models.SetProfileAccount(profile, accountID)
	touchProfile(profile, time.Now().UTC(), false)
	res, err := r.db.NamedExecContext(ctx, spec.updateQuery(), profile)
	if err != nil {
		return fmt.Errorf("update %s profile: %w", profile.Role(), err)
	}
	return expectRows(res, "update profile")
}

// SoftDeleteProfile stamps deleted_at on the profile and deactivates the
// account in the same transaction.
func (r *AccountRepository) SoftDeleteProfile(ctx context.Context, accountID string, role models.Role) (err error) {
	spec, err := specFor(role)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete profile: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := fmt.Sprintf("UPDATE %s SET deleted_at = $2, updated_at = $2 WHERE account_id = $1 AND deleted_at IS NULL", spec.table)
	res, err := tx.ExecContext(ctx, query, accountID, now)
	if err != nil {
		return fmt.Errorf("soft delete profile: %w", err)
	}
	if err = expectRows(res, "soft delete profile"); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `UPDATE accounts SET status = $2, updated_at = $3 WHERE id = $1`, accountID, models.AccountStatusInactive, now); err != nil {
		return fmt.Errorf("deactivate account: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete profile: %w", err)
	}
	return nil
}

// Delete hard deletes the account; foreign keys cascade to its profile,
// tokens and notification state.
func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return expectRows(res, "delete account")
}

// List returns accounts based on filters with total count.
func (r *AccountRepository) List(ctx context.Context, filter models.AccountFilter) ([]models.Account, int, error) {
	baseQuery := `FROM accounts WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Role != nil {
		args = append(args, *filter.Role)
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(email) LIKE $%d OR LOWER(name) LIKE $%d)", len(args), len(args)))
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{"email": true, "name": true, "created_at": true, "last_login": true}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}
	page, pageSize := models.NormalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", accountColumns, baseQuery, sortBy, sortOrder, pageSize, offset)
	var accounts []models.Account
	if err := r.db.SelectContext(ctx, &accounts, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s", baseQuery), args...); err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}

	return accounts, total, nil
}

// AttachProfiles loads live profiles for the given accounts with one query per role.
func (r *AccountRepository) AttachProfiles(ctx context.Context, accounts []models.Account) error {
	byRole := make(map[models.Role][]string)
	for _, a := range accounts {
		byRole[a.Role] = append(byRole[a.Role], a.ID)
	}

	found := make(map[string]models.Profile, len(accounts))
	for role, ids := range byRole {
		profiles, err := r.selectProfiles(ctx, role, ids)
		if err != nil {
			return err
		}
		for _, p := range profiles {
			found[profileAccountID(p)] = p
		}
	}

	for i := range accounts {
		if p, ok := found[accounts[i].ID]; ok {
			accounts[i].Profile = p
		}
	}
	return nil
}

// LoadProfile attaches the live profile of a single account, if any.
func (r *AccountRepository) LoadProfile(ctx context.Context, account *models.Account) error {
	list := []models.Account{*account}
	if err := r.AttachProfiles(ctx, list); err != nil {
		return err
	}
	account.Profile = list[0].Profile
	return nil
}

func (r *AccountRepository) selectProfiles(ctx context.Context, role models.Role, ids []string) ([]models.Profile, error) {
	spec, err := specFor(role)
	if err != nil {
		return nil, err
	}
	query := spec.selectQuery()
	var out []models.Profile

	switch role {
	case models.RoleStudent:
		var rows []models.StudentProfile
		err = r.db.SelectContext(ctx, &rows, query, pq.Array(ids))
		for i := range rows {
			out = append(out, &rows[i])
		}
	case models.RoleLecturer:
		var rows []models.LecturerProfile
		err = r.db.SelectContext(ctx, &rows, query, pq.Array(ids))
		for i := range rows {
			out = append(out, &rows[i])
		}
	case models.RoleAdmin:
		var rows []models.AdminProfile
		err = r.db.SelectContext(ctx, &rows, query, pq.Array(ids))
		for i := range rows {
			out = append(out, &rows[i])
		}
	case models.RoleTrainingOfficer:
		var rows []models.TrainingOfficerProfile
		err = r.db.SelectContext(ctx, &rows, query, pq.Array(ids))
		for i := range rows {
			out = append(out, &rows[i])
		}
	}
	if err != nil {
		return nil, fmt.Errorf("select %s profiles: %w", spec.table, err)
	}
	return out, nil
}

func profileAccountID(p models.Profile) string {
	switch v := p.(type) {
	case *models.StudentProfile:
		return v.AccountID
	case *models.LecturerProfile:
		return v.AccountID
	case *models.AdminProfile:
		return v.AccountID
	case *models.TrainingOfficerProfile:
		return v.AccountID
	}
	return ""
}

// expectRows turns "no rows affected" into sql.ErrNoRows.
func expectRows(res sql.Result, op string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
