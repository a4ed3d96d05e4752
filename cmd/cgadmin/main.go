// Command cgadmin runs one-off maintenance tasks against the platform database.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/cybergames/internal/config"
	"github.com/and161185/cybergames/internal/migrate"
	"github.com/and161185/cybergames/internal/repository"
	"github.com/and161185/cybergames/internal/repository/postgres"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// tool holds the stores every subcommand works on.
type tool struct {
	users      repository.UserRepository
	games      repository.GameRepository
	identities repository.IdentityRepository
	out        io.Writer
}

func usage() {
	fmt.Fprintf(os.Stderr, `cgadmin
Usage:
  cgadmin [-dsn DSN] <cmd> [args]

Commands:
  version
  create-admin    -email <address>     (promote an existing account)
  seed                                 (insert the default catalog when missing)
  verify-accounts                      (mark every account email as verified)
`)
	os.Exit(2)
}

// main dispatches subcommands over a migrated database.
func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fail(err)
	}
	dsn := flag.String("dsn", os.Getenv("DATABASE_DSN"), "PostgreSQL DSN")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	if flag.Arg(0) == "version" {
		fmt.Printf("cgadmin %s (%s)\n", version, buildDate)
		return
	}
	if *dsn == "" {
		fail(fmt.Errorf("missing -dsn or DATABASE_DSN"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := migrate.Up(ctx, *dsn, zap.NewNop()); err != nil {
		fail(fmt.Errorf("migrate: %w", err))
	}
	db, err := postgres.New(ctx, *dsn)
	if err != nil {
		fail(err)
	}
	defer db.Close()

	t := &tool{
		users:      postgres.NewUserRepo(db),
		games:      postgres.NewGameRepo(db),
		identities: postgres.NewIdentityRepo(db),
		out:        os.Stdout,
	}
	if err := t.run(ctx, flag.Args()); err != nil {
		db.Close()
		fail(err)
	}
}

// run executes one subcommand; args[0] is its name.
func (t *tool) run(ctx context.Context, args []string) error {
	switch args[0] {
	case "create-admin":
		fs := flag.NewFlagSet("create-admin", flag.ContinueOnError)
		email := fs.String("email", "", "account email")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		return t.createAdmin(ctx, *email)

	case "seed":
		return t.seed(ctx)

	case "verify-accounts":
		n, err := t.identities.MarkAllVerified(ctx)
		if err != nil {
			return fmt.Errorf("verify accounts: %w", err)
		}
		fmt.Fprintf(t.out, "verified %d account(s)\n", n)
		return nil

	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
