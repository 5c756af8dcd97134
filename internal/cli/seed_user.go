package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schooldesk/schooldesk/internal/auth"
	"github.com/schooldesk/schooldesk/internal/config"
	"github.com/schooldesk/schooldesk/internal/database"
	"github.com/schooldesk/schooldesk/internal/database/users"
	"github.com/schooldesk/schooldesk/internal/entities"
)

// SeedUserCommand creates or updates a local account, typically the first
// administrator of a fresh install.
type SeedUserCommand struct {
	ID        string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string

	Database config.Database
	Auth     config.Auth

	Out io.Writer
}

func NewSeedUserCommand(cfg *config.Config) *SeedUserCommand {
	return &SeedUserCommand{
		Database: cfg.Database,
		Auth:     cfg.Auth,
		Out:      os.Stdout,
	}
}

func (cmd *SeedUserCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("seed-user", flag.ExitOnError)

	fs.StringVar(&cmd.ID, "id", "test-admin-user", "Stable user ID")
	fs.StringVar(&cmd.Email, "email", "admin@test.com", "Login email")
	fs.StringVar(&cmd.Password, "password", "admin123", "Login password")
	fs.StringVar(&cmd.FirstName, "first", "Admin", "First name")
	fs.StringVar(&cmd.LastName, "last", "User", "Last name")
	fs.StringVar(&cmd.Role, "role", string(entities.UserRoleAdmin), "Role: Admin, Teacher or Accountant")
	fs.StringVar(&cmd.Database.Path, "db", cmd.Database.Path, "Path to the sqlite database (ignored for postgres)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s seed-user [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Create a local account, or reset the password and role of an existing one.\n")
		fmt.Fprintf(os.Stderr, "Database settings come from the environment; -db overrides DATABASE_PATH.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Seed the default development administrator:\n")
		fmt.Fprintf(os.Stderr, "  %s seed-user\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  # Add a teacher account:\n")
		fmt.Fprintf(os.Stderr, "  %s seed-user -id t-1 -email jane@school.edu -password s3cret -role Teacher\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.Database.Path == "" {
		cmd.Database.Path = config.DefaultDatabasePath
	}
	if !entities.UserRole(cmd.Role).Valid() {
		return fmt.Errorf("invalid -role %q", cmd.Role)
	}

	return nil
}

func (cmd *SeedUserCommand) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.NewDatabase(cmd.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	service := auth.NewService(users.NewRepository(db.DB), cmd.Auth)
	user, err := service.CreateLocalUser(ctx, auth.LocalUserInput{
		ID:        cmd.ID,
		Email:     cmd.Email,
		Password:  cmd.Password,
		FirstName: cmd.FirstName,
		LastName:  cmd.LastName,
		Role:      entities.UserRole(cmd.Role),
	})
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}

	fmt.Fprintf(cmd.Out, "Saved user %s (%s) with role %s\n", user.ID, *user.Email, user.Role)
	return nil
}
