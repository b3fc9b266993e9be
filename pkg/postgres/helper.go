package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	foreignKeyViolation = "23503"
	uniqueViolation     = "23505"
)

// IsForeignKeyViolation проверяет, является ли переданная ошибка нарушением внешнего ключа PostgreSQL (SQLSTATE 23503).
//
// Эта функция безопасно работает с обернутыми ошибками благодаря errors.As.
func IsForeignKeyViolation(err error) bool {
	return sqlState(err) == foreignKeyViolation
}

// IsUniqueViolation reports a unique violation (SQLSTATE 23505).
// With a non-empty constraint only violations of that constraint or index match.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func sqlState(err error) string {
	if err == nil {
		return ""
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.SQLState()
	}
	return ""
}
