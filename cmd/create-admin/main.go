// Command create-admin provisions an administrator account. Intended for
// first-time setup:
//
//	create-admin -username admin -password secret
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/tkteam/meeting-assistant/internal/auth"
	"github.com/tkteam/meeting-assistant/internal/config"
	"github.com/tkteam/meeting-assistant/internal/storage"
)

func main() {
	username := flag.String("username", "", "admin username")
	password := flag.String("password", "", "admin password")
	flag.Parse()

	if *username == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "usage: create-admin -username <name> -password <secret>")
		os.Exit(2)
	}

	if err := run(*username, *password); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(username, password string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := storage.Migrate(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	db, err := storage.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer db.Close()

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	user, err := storage.NewPostgresStore(db).CreateUser(ctx, username, hash, "admin")
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	fmt.Printf("created admin %q (id %d)\n", user.Username, user.ID)
	return nil
}
