package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/saturnino-fabrica-de-software/patientid/internal/domain"
)

// PgxPool is the subset of *pgxpool.Pool the repositories use, so tests
// can substitute pgxmock.
type PgxPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// IdentityRepositoryInterface defines operations for gallery data access
type IdentityRepositoryInterface interface {
	ListEnrolled(ctx context.Context) ([]domain.Identity, error)
	GetByKeys(ctx context.Context, keys []string) ([]domain.Identity, error)
}

var _ IdentityRepositoryInterface = (*IdentityRepository)(nil)
