// admin-seed creates a super_admin account when the directory has no
// active one, either on first install or to recover from a lockout.
//
//	STOREFRONT_POSTGRES_URL=postgres://localhost/storefront \
//	STOREFRONT_SEED_PASSWORD=... \
//	admin-seed --email owner@example.com --first-name Ada
//
// The password is read from STOREFRONT_SEED_PASSWORD so it stays out of
// shell history; --password exists for scripted local setups.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/platinummonkey/storefront/pkg/auth"
	"github.com/platinummonkey/storefront/pkg/directory"
	"github.com/platinummonkey/storefront/pkg/observability"
	"github.com/platinummonkey/storefront/pkg/storage"
	"github.com/platinummonkey/storefront/pkg/storage/postgres"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "admin-seed: %v\n", err)
		os.Exit(1)
	}
}

type seedFlags struct {
	email      string
	password   string
	firstName  string
	lastName   string
	phone      string
	bcryptCost int
	timeout    time.Duration
	verbose    bool
}

func parseFlags(args []string) (*seedFlags, error) {
	var f seedFlags

	flagSet := pflag.NewFlagSet("admin-seed", pflag.ContinueOnError)
	flagSet.StringVar(&f.email, "email", "", "email of the super_admin account (required)")
	flagSet.StringVar(&f.password, "password", "", "password; defaults to $STOREFRONT_SEED_PASSWORD")
	flagSet.StringVar(&f.firstName, "first-name", "", "first name")
	flagSet.StringVar(&f.lastName, "last-name", "", "last name")
	flagSet.StringVar(&f.phone, "phone", "", "phone number")
	flagSet.IntVar(&f.bcryptCost, "bcrypt-cost", 10, "bcrypt work factor")
	flagSet.DurationVar(&f.timeout, "timeout", 30*time.Second, "overall deadline")
	flagSet.BoolVarP(&f.verbose, "verbose", "v", false, "log at debug level")

	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}

	if f.password == "" {
		f.password = os.Getenv("STOREFRONT_SEED_PASSWORD")
	}
	if f.email == "" {
		return nil, errors.New("--email is required")
	}
	if f.password == "" {
		return nil, errors.New("a password is required (--password or STOREFRONT_SEED_PASSWORD)")
	}
	return &f, nil
}

func run(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	level := observability.InfoLevel
	if f.verbose {
		level = observability.DebugLevel
	}
	logger := observability.NewLogger(level, os.Stderr).WithField("service", "admin-seed")

	cfg := storage.DefaultConfig()
	cfg.PostgresURL = os.Getenv("STOREFRONT_POSTGRES_URL")
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	cm, err := postgres.NewConnectionManager(postgres.ConnectionConfigFrom(cfg), logger)
	if err != nil {
		return err
	}
	defer cm.Close()

	if err := directory.RunMigrations(ctx, cm.Primary(), logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	dir := directory.New(directory.NewPostgresStore(cm.Primary()), auth.NewPasswordHasher(f.bcryptCost),
		directory.WithLogger(logger),
	)
	account, err := seed(ctx, dir, f)
	if err != nil {
		return err
	}

	fmt.Println(describe(account))
	return nil
}

// describe is the line printed once the account exists
func describe(account *auth.AdminAccount) string {
	if name := account.FullName(); name != "" {
		return fmt.Sprintf("created super_admin %s <%s> (id %d)", name, account.Email, account.ID)
	}
	return fmt.Sprintf("created super_admin %s (id %d)", account.Email, account.ID)
}

// seed creates the account and turns the common failures into readable errors
func seed(ctx context.Context, dir *directory.Directory, f *seedFlags) (*auth.AdminAccount, error) {
	account, err := dir.Seed(ctx, directory.CreateRequest{
		Email:     f.email,
		Password:  f.password,
		FirstName: f.firstName,
		LastName:  f.lastName,
		Phone:     f.phone,
	})
	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, directory.ErrAlreadySeeded):
		return nil, errors.New("an active super_admin already exists; create further admins through the API")
	case errors.Is(err, auth.ErrDuplicateEmail):
		return nil, fmt.Errorf("an account with email %s already exists", auth.NormalizeEmail(f.email))
	case auth.IsValidation(err):
		return nil, fmt.Errorf("invalid account details: %w", err)
	default:
		return nil, err
	}
}
