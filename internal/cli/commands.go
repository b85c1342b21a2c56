package cli

import (
	"bufio"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/noah-isme/course-registration/internal/console"
	"github.com/noah-isme/course-registration/internal/models"
	"github.com/noah-isme/course-registration/internal/seed"
	"github.com/noah-isme/course-registration/internal/server"
	"github.com/noah-isme/course-registration/internal/service"
	"github.com/noah-isme/course-registration/pkg/logger"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API until SIGINT or SIGTERM.

With the json backend the files are read at start and written back on shutdown,
and after every change unless STORAGE_AUTOSAVE=false.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := opts.build(ctx, logger.New)
			if err != nil {
				return err
			}
			defer closeApp(app)

			return server.New(app).Run(ctx)
		},
	}
}

func newConsoleCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Run the interactive menu",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.build(cmd.Context(), logger.NewConsole)
			if err != nil {
				return err
			}
			defer closeApp(app)

			app.Registration.StartAutosave(cmd.Context())
			defer app.Registration.StopAutosave()

			menu := console.NewMenu(app.Registration, cmd.InOrStdin(), cmd.OutOrStdout(), app.Logger)
			return menu.Run(cmd.Context())
		},
	}
}

func newSeedCommand(opts *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load teachers, students, courses and registrations from a YAML fixture",
		Long: `Load a YAML fixture through the registration rules.

Entries that already exist are skipped. Registrations refused by a rule
(credit limit, full course, unknown ids) are listed and do not stop the run.

Example:
  registration seed --file fixtures/university.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fixture, err := seed.LoadFile(file)
			if err != nil {
				return err
			}

			app, err := opts.build(cmd.Context(), logger.NewConsole)
			if err != nil {
				return err
			}
			defer closeApp(app)

			app.Registration.LoadAll(cmd.Context())
			result, err := seed.NewSeeder(app.Registration, app.Logger).Apply(cmd.Context(), fixture)
			app.Registration.SaveAll(cmd.Context())

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "teachers: %d, students: %d, courses: %d, registrations: %d, skipped: %d\n",
				result.Teachers, result.Students, result.Courses, result.Registrations, result.Skipped)
			for _, rejected := range result.Rejected {
				fmt.Fprintf(out, "rejected %s\n", rejected)
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "fixture file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newHashPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print the bcrypt hash to use as ADMIN_PASSWORD_HASH",
		Long: `Print the bcrypt hash to use as ADMIN_PASSWORD_HASH.

Without an argument the password is read from the first line of stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password := ""
			if len(args) == 1 {
				password = args[0]
			} else {
				scanner := bufio.NewScanner(cmd.InOrStdin())
				if scanner.Scan() {
					password = strings.TrimSpace(scanner.Text())
				}
			}
			hash, err := service.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func newTokenCommand(opts *rootOptions) *cobra.Command {
	var (
		subject   string
		role      string
		teacherID int64
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token signed with JWT_SECRET",
		Long: `Issue an access token signed with JWT_SECRET.

Examples:
  registration token --subject ops --role ADMIN
  registration token --subject florin --role TEACHER --teacher-id 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			auth := service.NewAuthService(nil, nil, service.AuthConfig{
				AccessTokenSecret: cfg.Auth.Secret,
				AccessTokenExpiry: cfg.Auth.Expiration,
			})

			req := models.TokenRequest{Subject: subject, Role: models.UserRole(strings.ToUpper(role))}
			if cmd.Flags().Changed("teacher-id") {
				req.TeacherID = &teacherID
			}
			token, err := auth.IssueToken(req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token.AccessToken)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "token subject")
	cmd.Flags().StringVar(&role, "role", string(models.RoleAdmin), "ADMIN or TEACHER")
	cmd.Flags().Int64Var(&teacherID, "teacher-id", 0, "teacher id for TEACHER tokens")
	return cmd
}
