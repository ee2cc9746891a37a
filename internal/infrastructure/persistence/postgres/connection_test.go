package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "user_achievements_pkey",
	}
	assert.True(t, IsUniqueViolation(pgErr))
	assert.True(t, IsUniqueViolation(fmt.Errorf("failed to insert award: %w", pgErr)))

	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("connection reset")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestIsForeignKeyViolation(t *testing.T) {
	assert.True(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23505"}))
}

func TestIsNoRows(t *testing.T) {
	assert.True(t, IsNoRows(pgx.ErrNoRows))
	assert.True(t, IsNoRows(fmt.Errorf("failed to resolve quiz module: %w", pgx.ErrNoRows)))
	assert.False(t, IsNoRows(errors.New("connection reset")))
}

func TestConfigDSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "db.example.com"
	cfg.Password = "secret"

	dsn := cfg.DSN()
	assert.Contains(t, dsn, "host=db.example.com")
	assert.Contains(t, dsn, "port=5432")
	assert.Contains(t, dsn, "sslmode=require")
}
