// Command create-user inserts a user with access granted, for seeding
// accounts that bypass signup.
//
//	create-user -name Ada -email ada@example.com -database-url postgres://...
//
// The password is read from the terminal without echo.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"golang.org/x/term"

	"github.com/phonetica/phonauth"
	"github.com/phonetica/phonauth/internal/config"
	"github.com/phonetica/phonauth/password"
	"github.com/phonetica/phonauth/storage/postgres"
)

const defaultTimezone = "America/New_York"

// readPassword is swapped in tests.
var readPassword = term.ReadPassword

type options struct {
	name        string
	email       string
	databaseURL string
	timezone    string
}

type hasher interface {
	Hash(ctx context.Context, password string) (string, error)
}

func main() {
	var opts options
	flag.StringVar(&opts.name, "name", "", "user's name")
	flag.StringVar(&opts.email, "email", "", "user's email")
	flag.StringVar(&opts.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "database URL")
	flag.StringVar(&opts.timezone, "timezone", defaultTimezone, "user's timezone")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "create-user: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	if strings.TrimSpace(opts.name) == "" || strings.TrimSpace(opts.email) == "" {
		return errors.New("-name and -email are required")
	}
	dsn := config.NormalizeDatabaseURL(opts.databaseURL)
	if dsn == "" {
		return errors.New("-database-url is required")
	}

	pw, err := promptPassword(out)
	if err != nil {
		return err
	}

	if err := postgres.Migrate(ctx, dsn); err != nil {
		return err
	}
	pool, err := postgres.NewPool(ctx, dsn, postgres.WithMaxConns(2))
	if err != nil {
		return err
	}
	defer pool.Close()

	h, err := password.New(password.DefaultOptions())
	if err != nil {
		return err
	}
	return createUser(ctx, postgres.NewUsers(pool), h, opts, pw, out)
}

func promptPassword(out io.Writer) (string, error) {
	fmt.Fprint(out, "Password: ")
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if len(pw) == 0 {
		return "", errors.New("password must not be empty")
	}
	return string(pw), nil
}

func createUser(ctx context.Context, users phonauth.UserRepository, h hasher, opts options, pw string, out io.Writer) error {
	if _, err := users.FindByEmail(ctx, opts.email); err == nil {
		fmt.Fprintf(out, "User with email %s already exists.\n", opts.email)
		return nil
	} else if !errors.Is(err, phonauth.ErrUserNotFound) {
		return err
	}

	hash, err := h.Hash(ctx, pw)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	tz := opts.timezone
	if tz == "" {
		tz = defaultTimezone
	}
	_, err = users.Create(ctx, phonauth.User{
		Name:         opts.name,
		Email:        opts.email,
		PasswordHash: hash,
		Timezone:     tz,
		HasAccess:    true,
	})
	if errors.Is(err, phonauth.ErrEmailTaken) {
		fmt.Fprintf(out, "User with email %s already exists.\n", opts.email)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "User %s with email %s created successfully.\n", opts.name, opts.email)
	return nil
}
