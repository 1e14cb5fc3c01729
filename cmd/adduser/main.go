// Command adduser creates or checks ledger accounts from the shell.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"expense-ledger/internal/auth"
	"expense-ledger/internal/storage"

	"golang.org/x/term"
)

const defaultDBPath = "expenses.db"

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	fs.SetOutput(stderr)

	username := fs.String("user", "", "Username")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	dbPath := fs.String("db", defaultDBPath, "Path to database file")
	verify := fs.Bool("verify", false, "Check the password of an existing user instead of creating one")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *username == "" {
		fmt.Fprintln(stdout, "Usage: adduser -user <username> [-password <password>] [-db <db_path>] [-verify]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: user")
	}

	password := *passwordFlag
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		var err error
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("password cannot be empty")
	}

	// DB_PATH applies only when -db was left at its default.
	if path := os.Getenv("DB_PATH"); path != "" && *dbPath == defaultDBPath {
		*dbPath = path
	}

	db, err := storage.NewDB(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	creds, err := auth.NewCredentials(db)
	if err != nil {
		return err
	}

	if *verify {
		ok, err := creds.Verify(ctx, *username, password)
		if err != nil {
			return fmt.Errorf("failed to verify user: %w", err)
		}
		if !ok {
			return fmt.Errorf("invalid credentials for %s", *username)
		}
		fmt.Fprintf(stdout, "Credentials for %s are valid\n", *username)
		return nil
	}

	user, err := creds.Register(ctx, *username, password)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrDuplicateUsername):
		return fmt.Errorf("user %s already exists", *username)
	case errors.Is(err, auth.ErrInvalidUsername), errors.Is(err, auth.ErrWeakPassword):
		return err
	default:
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintf(stdout, "User %s created successfully with ID %d\n", user.Username, user.ID)
	return nil
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}

	// pipes and tests
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
