package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OrderBy int

const (
	OrderByASC OrderBy = iota
	OrderByDESC
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrPersonNotFound       = errors.New("person not found")
	ErrModuleNotFound       = errors.New("module not found")
	ErrPermissionNotFound   = errors.New("permission not found")
	ErrRoleNotFound         = errors.New("role not found")
	ErrRoleCategoryNotFound = errors.New("role category not found")
	ErrBranchNotFound       = errors.New("branch not found")
	ErrDepartmentNotFound   = errors.New("department not found")

	// ErrDuplicateAssignment signals an attach of an already existing
	// many-to-many pair. Callers treat it as a no-op conflict, not a failure.
	ErrDuplicateAssignment = errors.New("assignment already exists")

	// ErrAssignmentNotFound signals a detach of a pair that does not exist.
	ErrAssignmentNotFound = errors.New("assignment not found")

	// ErrHasDependents blocks deletion of an entity that still owns live rows.
	ErrHasDependents = errors.New("entity has dependent records")

	// ErrNotDeleted is returned by restore operations on live entities.
	ErrNotDeleted = errors.New("entity is not deleted")

	// ErrDuplicateSlug maps unique-constraint violations on slug/email columns.
	ErrDuplicateSlug = errors.New("slug already in use")

	// ErrModuleCycle blocks a module update whose parent chain would loop.
	ErrModuleCycle = errors.New("module parent chain would form a cycle")
)

type Database struct {
	Pool *pgxpool.Pool
}

func NewDatabase() Database {
	return Database{Pool: nil}
}

func (db *Database) Connect(ctx context.Context, connString string) error {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return fmt.Errorf("unable to parse database configuration: %w", err)
	}

	db.Pool, err = pgxpool.New(ctx, config.ConnString())
	if err != nil {
		return fmt.Errorf("unable to create database pool: %w", err)
	}

	return nil
}

func (db *Database) Close() {
	db.Pool.Close()
}

func (db *Database) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// withTx runs fn inside a transaction, rolling back on error. All multi-step
// mutations (registration, sync, bulk assignment) go through here so a reader
// never observes a half-applied change.
func (db *Database) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("database: failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("database: failed to commit transaction: %w", err)
	}
	return nil
}

// rowQuerier is the subset of pgxpool.Pool and pgx.Tx the insert helpers
// accept, so registration can reuse them inside a transaction.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// isUniqueViolation reports whether err is a Postgres unique-constraint error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// prefixColumns qualifies a comma-separated column list with a table alias
// so joined queries can reuse the per-entity scan helpers.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, part := range parts {
		parts[i] = alias + "." + part
	}
	return strings.Join(parts, ", ")
}

// sortClause picks a safe ORDER BY column from a per-entity whitelist.
// Unknown columns silently fall back to the default, matching list-endpoint
// behavior where a bad sort_by is not worth a 422.
func sortClause(allowed map[string]string, sortBy, sortOrder, fallback string) string {
	col, ok := allowed[sortBy]
	if !ok {
		col = fallback
	}
	dir := "ASC"
	if sortOrder == "desc" || sortOrder == "DESC" {
		dir = "DESC"
	}
	return col + " " + dir
}
