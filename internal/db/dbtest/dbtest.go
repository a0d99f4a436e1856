// Package dbtest connects package tests to a throwaway PostgreSQL database.
package dbtest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vasiliy-maslov/print-admin/internal/config"
	"github.com/vasiliy-maslov/print-admin/internal/db"
)

// Tables in truncation order.
var Tables = []string{
	"admin_sessions", "admin_users", "delivery_addresses", "order_files",
	"uploaded_files", "order_options", "orders", "users",
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Connect opens a pool from the DB_*_TEST variables and applies migrations.
// It returns nil, nil when DB_HOST_TEST is unset so callers can skip.
func Connect() (*pgxpool.Pool, error) {
	host := os.Getenv("DB_HOST_TEST")
	if host == "" {
		return nil, nil
	}

	cfg := config.PostgresConfig{
		Host:     host,
		Port:     getenv("DB_PORT_TEST", "5432"),
		User:     getenv("DB_USER_TEST", "postgres"),
		Password: getenv("DB_PASSWORD_TEST", "postgres"),
		DBName:   getenv("DB_NAME_TEST", "print_admin_test"),
		SSLMode:  getenv("DB_SSLMODE_TEST", "disable"),
		MaxConns: 5,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pg, err := db.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("dbtest: %w", err)
	}
	if err := db.ApplyMigrations(pg.Pool, migrationsDir()); err != nil {
		pg.Close()
		return nil, fmt.Errorf("dbtest: %w", err)
	}
	return pg.Pool, nil
}

// Truncate empties every application table.
func Truncate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, table := range Tables {
		if _, err := pool.Exec(ctx, "TRUNCATE TABLE "+table+" RESTART IDENTITY CASCADE"); err != nil {
			return fmt.Errorf("dbtest: truncate %s: %w", table, err)
		}
	}
	return nil
}

func migrationsDir() string {
	if p := os.Getenv("DB_MIGRATIONS_PATH_TEST"); p != "" {
		return p
	}
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "migrations")
}
