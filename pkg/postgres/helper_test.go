package postgres

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViolations(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505", ConstraintName: "rides_active_customer_uq"}
	wrapped := fmt.Errorf("ride repo: Create: %w", unique)

	assert.True(t, IsUniqueViolation(wrapped, ""))
	assert.True(t, IsUniqueViolation(wrapped, "rides_active_customer_uq"))
	assert.False(t, IsUniqueViolation(wrapped, "rides_active_rider_uq"))
	assert.False(t, IsUniqueViolation(errors.New("boom"), ""))
	assert.False(t, IsForeignKeyViolation(wrapped))

	fk := &pgconn.PgError{Code: "23503"}
	assert.True(t, IsForeignKeyViolation(fmt.Errorf("wrap: %w", fk)))
	assert.False(t, IsForeignKeyViolation(nil))
}

type limits struct{}

func (limits) GetDSN() string { return "postgres://u:p@localhost:5432/db" }

func (limits) PoolLimits() (int32, int32, time.Duration, time.Duration) {
	return 8, 2, time.Hour, time.Minute
}

func TestApplyLimits(t *testing.T) {
	cfg, err := pgxpool.ParseConfig(limits{}.GetDSN())
	require.NoError(t, err)

	applyLimits(cfg, limits{})
	assert.Equal(t, int32(8), cfg.MaxConns)
	assert.Equal(t, int32(2), cfg.MinConns)
	assert.Equal(t, time.Hour, cfg.MaxConnLifetime)
	assert.Equal(t, time.Minute, cfg.MaxConnIdleTime)
}
