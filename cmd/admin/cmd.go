package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/dat-nglt/cusc-schedule/internal/models"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type accountRegistrar interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.Account, error)
}

type janitorRunner interface {
	RunOnce(ctx context.Context) error
}

type commandLine struct {
	migrate  func(ctx context.Context) error
	accounts accountRegistrar
	janitor  janitorRunner
	logger   *zap.Logger
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate                                   - create every table, index and constraint")
	fmt.Println("  createadmin -email EMAIL -name NAME -code CODE - create an admin account; the password is prompted")
	fmt.Println("  purge                                     - purge expired tokens and expire stale change requests")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	createAdminCmd := flag.NewFlagSet("createadmin", flag.ContinueOnError)
	email := createAdminCmd.String("email", "", "The admin's e-mail. The password will be prompted next.")
	name := createAdminCmd.String("name", "", "The admin's display name.")
	code := createAdminCmd.String("code", "", "The admin staff code.")
	department := createAdminCmd.String("department", "", "Optional department.")

	switch args[1] {
	case "migrate":
		if err := cli.migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		cli.logger.Info("schema created")
		return nil
	case "createadmin":
		if err := createAdminCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *email == "" || *name == "" || *code == "" {
			createAdminCmd.Usage()
			return errHelp
		}
		fmt.Print("Enter password:")
		pwd, err := readPasswordFunc(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			createAdminCmd.Usage()
			return errHelp
		}
		return cli.createAdmin(ctx, *email, *name, *code, *department, string(pwd))
	case "purge":
		if err := cli.janitor.RunOnce(ctx); err != nil {
			return fmt.Errorf("purge: %w", err)
		}
		cli.logger.Info("purge finished")
		return nil
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) createAdmin(ctx context.Context, email, name, code, department, password string) error {
	profile := models.AdminProfile{AdminCode: code}
	if department != "" {
		profile.Department = &department
	}
	raw, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	account, err := cli.accounts.Register(ctx, models.RegisterRequest{
		Email:    email,
		Password: password,
		Name:     name,
		Role:     models.RoleAdmin,
		Profile:  raw,
	})
	if err != nil {
		return fmt.Errorf("createadmin: %w", err)
	}
	cli.logger.Info("admin created", zap.String("account_id", account.ID), zap.String("email", account.Email))
	return nil
}
