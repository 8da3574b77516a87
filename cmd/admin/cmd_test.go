package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dat-nglt/cusc-schedule/internal/models"
)

type stubRegistrar struct {
	got models.RegisterRequest
	err error
}

func (s *stubRegistrar) Register(_ context.Context, req models.RegisterRequest) (*models.Account, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return &models.Account{ID: "acc-1", Email: req.Email, Role: req.Role}, nil
}

type stubJanitor struct {
	calls int
	err   error
}

func (s *stubJanitor) RunOnce(context.Context) error {
	s.calls++
	return s.err
}

func newTestCLI() (*commandLine, *stubRegistrar, *stubJanitor, *int) {
	accounts := &stubRegistrar{}
	janitor := &stubJanitor{}
	migrations := 0
	cli := &commandLine{
		migrate: func(context.Context) error {
			migrations++
			return nil
		},
		accounts: accounts,
		janitor:  janitor,
		logger:   zap.NewNop(),
	}
	return cli, accounts, janitor, &migrations
}

func stubPassword(t *testing.T, pwd string, err error) {
	t.Helper()
	prev := readPasswordFunc
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), err }
	t.Cleanup(func() { readPasswordFunc = prev })
}

func TestRunUsage(t *testing.T) {
	cli, _, _, _ := newTestCLI()
	ctx := context.Background()

	assert.ErrorIs(t, cli.run(ctx, []string{"admin"}), errHelp)
	assert.ErrorIs(t, cli.run(ctx, []string{"admin", "unknown"}), errHelp)
}

func TestRunMigrate(t *testing.T) {
	cli, _, _, migrations := newTestCLI()

	require.NoError(t, cli.run(context.Background(), []string{"admin", "migrate"}))
	assert.Equal(t, 1, *migrations)
}

func TestRunMigrateWrapsError(t *testing.T) {
	cli, _, _, _ := newTestCLI()
	cli.migrate = func(context.Context) error { return errors.New("db down") }

	err := cli.run(context.Background(), []string{"admin", "migrate"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrate")
}

func TestRunCreateAdmin(t *testing.T) {
	cli, accounts, _, _ := newTestCLI()
	stubPassword(t, "s3cretpass", nil)

	err := cli.run(context.Background(), []string{"admin", "createadmin", "-email", "root@cusc.vn", "-name", "Root", "-code", "AD01", "-department", "IT"})
	require.NoError(t, err)

	assert.Equal(t, "root@cusc.vn", accounts.got.Email)
	assert.Equal(t, "s3cretpass", accounts.got.Password)
	assert.Equal(t, models.RoleAdmin, accounts.got.Role)

	var profile models.AdminProfile
	require.NoError(t, json.Unmarshal(accounts.got.Profile, &profile))
	assert.Equal(t, "AD01", profile.AdminCode)
	require.NotNil(t, profile.Department)
	assert.Equal(t, "IT", *profile.Department)
}

func TestRunCreateAdminMissingFlags(t *testing.T) {
	cli, accounts, _, _ := newTestCLI()
	stubPassword(t, "s3cretpass", nil)

	err := cli.run(context.Background(), []string{"admin", "createadmin", "-email", "root@cusc.vn"})
	assert.ErrorIs(t, err, errHelp)
	assert.Empty(t, accounts.got.Email)
}

func TestRunCreateAdminEmptyPassword(t *testing.T) {
	cli, accounts, _, _ := newTestCLI()
	stubPassword(t, "", nil)

	err := cli.run(context.Background(), []string{"admin", "createadmin", "-email", "root@cusc.vn", "-name", "Root", "-code", "AD01"})
	assert.ErrorIs(t, err, errHelp)
	assert.Empty(t, accounts.got.Email)
}

func TestRunCreateAdminPasswordReadFails(t *testing.T) {
	cli, _, _, _ := newTestCLI()
	stubPassword(t, "", errors.New("no tty"))

	err := cli.run(context.Background(), []string{"admin", "createadmin", "-email", "root@cusc.vn", "-name", "Root", "-code", "AD01"})
	assert.EqualError(t, err, "no tty")
}

func TestRunCreateAdminRegisterFails(t *testing.T) {
	cli, accounts, _, _ := newTestCLI()
	accounts.err = errors.New("duplicate email")
	stubPassword(t, "s3cretpass", nil)

	err := cli.run(context.Background(), []string{"admin", "createadmin", "-email", "root@cusc.vn", "-name", "Root", "-code", "AD01"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate email")
}

func TestRunPurge(t *testing.T) {
	cli, _, janitor, _ := newTestCLI()

	require.NoError(t, cli.run(context.Background(), []string{"admin", "purge"}))
	assert.Equal(t, 1, janitor.calls)

	janitor.err = errors.New("partial")
	assert.Error(t, cli.run(context.Background(), []string{"admin", "purge"}))
}
