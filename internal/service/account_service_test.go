package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dat-nglt/cusc-schedule/internal/models"
	"github.com/dat-nglt/cusc-schedule/pkg/database"
	appErrors "github.com/dat-nglt/cusc-schedule/pkg/errors"
)

// stubAccountRepo keeps accounts in memory and enforces email uniqueness
// the way the database does.
type stubAccountRepo struct {
	accounts map[string]*models.Account
	profiles map[string]models.Profile
	revoked  []string
	deleted  []string
	fkErr    bool
}

func newStubAccountRepo() *stubAccountRepo {
	return &stubAccountRepo{accounts: map[string]*models.Account{}, profiles: map[string]models.Profile{}}
}

func (r *stubAccountRepo) Create(_ context.Context, a *models.Account, p models.Profile) error {
	for _, existing := range r.accounts {
		if existing.Email == a.Email {
			return &pq.Error{Code: "23505", Constraint: database.AccountsEmailConstraint}
		}
	}
	if r.fkErr {
		return &pq.Error{Code: "23503"}
	}
	a.ID = "acc-" + a.Email
	r.accounts[a.ID] = a
	r.profiles[a.ID] = p
	return nil
}

func (r *stubAccountRepo) FindByID(_ context.Context, id string) (*models.Account, error) {
	if a, ok := r.accounts[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (r *stubAccountRepo) List(context.Context, models.AccountFilter) ([]models.Account, int, error) {
	var out []models.Account
	for _, a := range r.accounts {
		out = append(out, *a)
	}
	return out, len(out), nil
}

func (r *stubAccountRepo) AttachProfiles(_ context.Context, accounts []models.Account) error {
	for i := range accounts {
		accounts[i].Profile = r.profiles[accounts[i].ID]
	}
	return nil
}

func (r *stubAccountRepo) LoadProfile(_ context.Context, a *models.Account) error {
	a.Profile = r.profiles[a.ID]
	return nil
}

func (r *stubAccountRepo) UpdateStatus(_ context.Context, id string, status models.AccountStatus) error {
	a, ok := r.accounts[id]
	if !ok {
		return sql.ErrNoRows
	}
	a.Status = status
	return nil
}

func (r *stubAccountRepo) UpdateProfile(_ context.Context, id string, p models.Profile) error {
	if _, ok := r.profiles[id]; !ok {
		return sql.ErrNoRows
	}
	r.profiles[id] = p
	return nil
}

func (r *stubAccountRepo) SoftDeleteProfile(_ context.Context, id string, _ models.Role) error {
	if _, ok := r.profiles[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.profiles, id)
	r.accounts[id].Status = models.AccountStatusInactive
	return nil
}

func (r *stubAccountRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.accounts[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.accounts, id)
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *stubAccountRepo) RevokeAccount(_ context.Context, id string) (int64, error) {
	r.revoked = append(r.revoked, id)
	return 1, nil
}

func studentRegistration(email string) models.RegisterRequest {
	return models.RegisterRequest{
		Email:    email,
		Password: "password123",
		Name:     "An Nguyen",
		Role:     models.RoleStudent,
		Profile:  json.RawMessage(`{"student_code":"B2000001"}`),
	}
}

func TestRegisterCreatesAccountWithMatchingProfile(t *testing.T) {
	repo := newStubAccountRepo()
	svc := NewAccountService(repo, repo, nil, nil)

	account, err := svc.Register(context.Background(), studentRegistration("An@Example.com "))
	require.NoError(t, err)
	assert.Equal(t, "an@example.com", account.Email)
	require.NotNil(t, account.PasswordHash)
	assert.NotEqual(t, "password123", *account.PasswordHash)

	profile, ok := repo.profiles[account.ID].(*models.StudentProfile)
	require.True(t, ok)
	assert.Equal(t, "B2000001", profile.StudentCode)
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	repo := newStubAccountRepo()
	svc := NewAccountService(repo, repo, nil, nil)

	_, err := svc.Register(context.Background(), studentRegistration("dup@example.com"))
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), studentRegistration("dup@example.com"))
	appErr := appErrors.FromError(err)
	assert.Equal(t, 409, appErr.Status)
	assert.Equal(t, "email already registered", appErr.Message)
	assert.Len(t, repo.accounts, 1)
}

func TestRegisterValidation(t *testing.T) {
	repo := newStubAccountRepo()
	svc := NewAccountService(repo, repo, nil, nil)

	cases := map[string]models.RegisterRequest{
		"bad role":         {Email: "x@example.com", Password: "password123", Name: "X", Role: "teacher"},
		"short password":   {Email: "x@example.com", Password: "short", Name: "X", Role: models.RoleAdmin},
		"no credentials":   {Email: "x@example.com", Name: "X", Role: models.RoleAdmin, Profile: json.RawMessage(`{"admin_code":"A1"}`)},
		"missing code":     {Email: "x@example.com", Password: "password123", Name: "X", Role: models.RoleLecturer},
		"malformed object": {Email: "x@example.com", Password: "password123", Name: "X", Role: models.RoleAdmin, Profile: json.RawMessage(`[1]`)},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), req)
			assert.Equal(t, 400, appErrors.FromError(err).Status)
		})
	}
	assert.Empty(t, repo.accounts)
}

func TestRegisterUnknownReferenceIsValidationError(t *testing.T) {
	repo := newStubAccountRepo()
	repo.fkErr = true
	svc := NewAccountService(repo, repo, nil, nil)

	req := studentRegistration("s@example.com")
	req.Profile = json.RawMessage(`{"student_code":"B1","class_id":"7f1f4a5e-0000-4000-8000-000000000000"}`)
	_, err := svc.Register(context.Background(), req)
	assert.Equal(t, 400, appErrors.FromError(err).Status)
}

func TestUpdateProfileRoleMismatch(t *testing.T) {
	repo := newStubAccountRepo()
	svc := NewAccountService(repo, repo, nil, nil)
	account, err := svc.Register(context.Background(), studentRegistration("s@example.com"))
	require.NoError(t, err)

	_, err = svc.UpdateProfile(context.Background(), account.ID, models.UpdateProfileRequest{Role: models.RoleLecturer, Profile: json.RawMessage(`{"lecturer_code":"L1"}`)})
	assert.Equal(t, 400, appErrors.FromError(err).Status)

	updated, err := svc.UpdateProfile(context.Background(), account.ID, models.UpdateProfileRequest{Profile: json.RawMessage(`{"student_code":"B2"}`)})
	require.NoError(t, err)
	assert.Equal(t, "B2", updated.Profile.(*models.StudentProfile).StudentCode)
}

func TestDeleteProfileDeactivatesAndRevokes(t *testing.T) {
	repo := newStubAccountRepo()
	svc := NewAccountService(repo, repo, nil, nil)
	account, err := svc.Register(context.Background(), studentRegistration("s@example.com"))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteProfile(context.Background(), account.ID))
	assert.Equal(t, models.AccountStatusInactive, repo.accounts[account.ID].Status)
	assert.Equal(t, []string{account.ID}, repo.revoked)

	err = svc.DeleteProfile(context.Background(), account.ID)
	assert.Equal(t, 404, appErrors.FromError(err).Status)
}

func TestUpdateStatusSuspendRevokesSessions(t *testing.T) {
	repo := newStubAccountRepo()
	svc := NewAccountService(repo, repo, nil, nil)
	account, err := svc.Register(context.Background(), studentRegistration("s@example.com"))
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(context.Background(), account.ID, models.UpdateAccountStatusRequest{Status: models.AccountStatusSuspended})
	require.NoError(t, err)
	assert.Equal(t, models.AccountStatusSuspended, updated.Status)
	assert.Len(t, repo.revoked, 1)

	_, err = svc.UpdateStatus(context.Background(), "missing", models.UpdateAccountStatusRequest{Status: models.AccountStatusActive})
	assert.Equal(t, 404, appErrors.FromError(err).Status)
}

func TestDeleteAccount(t *testing.T) {
	repo := newStubAccountRepo()
	svc := NewAccountService(repo, repo, nil, nil)
	account, err := svc.Register(context.Background(), studentRegistration("s@example.com"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), account.ID))
	assert.Equal(t, 404, appErrors.FromError(svc.Delete(context.Background(), account.ID)).Status)
}

func TestListAttachesProfiles(t *testing.T) {
	repo := newStubAccountRepo()
	svc := NewAccountService(repo, repo, nil, nil)
	_, err := svc.Register(context.Background(), studentRegistration("s@example.com"))
	require.NoError(t, err)

	accounts, pagination, err := svc.List(context.Background(), models.AccountFilter{})
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.NotNil(t, accounts[0].Profile)
	assert.Equal(t, 1, pagination.TotalCount)
	assert.Equal(t, models.DefaultPageSize, pagination.PageSize)
}

func TestSuspendedAccountAccessTokenStopsVerifying(t *testing.T) {
	auth, _, _ := newAuthFixture(t)
	login, err := auth.Login(context.Background(), models.LoginRequest{Email: "student@example.com", Password: "secret123"})
	require.NoError(t, err)

	repo := newStubAccountRepo()
	repo.accounts["acc-1"] = &models.Account{ID: "acc-1", Email: "student@example.com", Role: models.RoleStudent, Status: models.AccountStatusActive}
	svc := NewAccountService(repo, auth, nil, nil)

	_, err = auth.VerifyToken(context.Background(), login.AccessToken)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), "acc-1", models.UpdateAccountStatusRequest{Status: models.AccountStatusSuspended})
	require.NoError(t, err)

	_, err = auth.VerifyToken(context.Background(), login.AccessToken)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidToken))
}
