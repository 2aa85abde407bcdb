package main

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meddevice/medauth"
	"github.com/meddevice/medauth/internal/logging"
	"github.com/meddevice/medauth/jwt"
	"github.com/meddevice/medauth/password"
)

func loadConfig(path string) (medauth.Config, error) {
	if path != "" {
		return medauth.LoadConfigFile(path)
	}
	return medauth.LoadConfig()
}

func hashPasswordCmd(configPath *string) *cobra.Command {
	var skipPolicy bool

	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print the Argon2id PHC hash of a password",
		Long: `Hashes a password with the configured Argon2id parameters. The
password is read from the first argument or, when absent, from the first
line of standard input.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			plain, err := passwordInput(cmd, args)
			if err != nil {
				return err
			}
			if !skipPolicy {
				if err := password.ValidateStrength(plain); err != nil {
					return err
				}
			}

			hasher, err := password.NewArgon2(cfg.Password)
			if err != nil {
				return fmt.Errorf("argon2: %w", err)
			}
			hash, err := hasher.Hash(plain)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipPolicy, "skip-policy", false, "Hash even if the password fails the strength policy")
	return cmd
}

func passwordInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return "", errors.New("empty password")
	}
	return line, nil
}

func genSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gen-secret",
		Short: "Print a random JWT signing secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := jwt.GenerateSecret()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), secret)
			return nil
		},
	}
}

func securityReportCmd(configPath *string) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "security-report",
		Short: "Report on the signing secret and environment posture",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			report := medauth.BuildSecurityReport(cfg)
			if _, err := report.WriteTo(cmd.OutOrStdout()); err != nil {
				return err
			}
			for _, w := range cfg.Lint() {
				fmt.Fprintf(cmd.OutOrStdout(), "LINT %s: %s\n", w.Code, w.Message)
			}
			if strict && !report.IsSecure {
				return errors.New("configuration is not secure")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when the report is not secure")
	return cmd
}

func createUserCmd(configPath *string) *cobra.Command {
	req := medauth.CreateUserRequest{}

	cmd := &cobra.Command{
		Use:   "create-user [password]",
		Short: "Create an account directly in the configured user store",
		Long: `Creates an account without an acting user, for bootstrapping the first
administrator. Self-registration over HTTP cannot assign the admin role.
The password is read from the first argument or, when absent, from the
first line of standard input.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if req.Password, err = passwordInput(cmd, args); err != nil {
				return err
			}

			ctx := cmd.Context()
			logger := logging.NewWithWriter(cfg.Log.Service, cfg.Log.Level, cmd.ErrOrStderr())

			var cl closers
			defer func() {
				if err := cl.Close(); err != nil {
					logger.Error("close backends", slog.String("error", err.Error()))
				}
			}()

			auditStore, err := openAuditStore(ctx, cfg.Audit, cmd.ErrOrStderr(), logger, &cl)
			if err != nil {
				return err
			}
			users, err := openUserStore(ctx, cfg.Users, logger, &cl)
			if err != nil {
				return err
			}
			engine, err := medauth.New().
				WithConfig(cfg).
				WithUserStore(users).
				WithAuditStore(auditStore).
				WithLogger(logger).
				Build()
			if err != nil {
				return fmt.Errorf("build engine: %w", err)
			}

			profile, err := engine.ProvisionUser(ctx, req)
			if err != nil {
				return fmt.Errorf("create user: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s %s id=%s\n", profile.Role, profile.Email, profile.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&req.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&req.Role, "role", "admin", "admin, doctor, patient or technician")
	cmd.Flags().StringVar(&req.LicenseNumber, "license", "", "Professional license number")
	cmd.Flags().StringVar(&req.Department, "department", "", "Department")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
