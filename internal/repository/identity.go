package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/saturnino-fabrica-de-software/patientid/internal/domain"
)

// IdentityRepository reads the enrolled-user gallery from the users table.
type IdentityRepository struct {
	pool PgxPool
}

func NewIdentityRepository(pool PgxPool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// ListEnrolled returns active users that have a portrait, oldest first.
// The ordering is stable so that matching ties resolve the same way on
// every request.
func (r *IdentityRepository) ListEnrolled(ctx context.Context) ([]domain.Identity, error) {
	query := `
		SELECT id, name, portrait_url, created_at
		FROM users
		WHERE is_active = true AND portrait_url IS NOT NULL AND portrait_url <> ''
		ORDER BY created_at, id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list enrolled identities: %w", err)
	}
	defer rows.Close()

	identities, err := scanIdentities(rows)
	if err != nil {
		return nil, fmt.Errorf("list enrolled identities: %w", err)
	}
	return identities, nil
}

// GetByKeys returns the active users among keys, in gallery order. Users
// without a portrait are included; unknown keys are simply absent.
func (r *IdentityRepository) GetByKeys(ctx context.Context, keys []string) ([]domain.Identity, error) {
	if len(keys) == 0 {
		return []domain.Identity{}, nil
	}

	query := `
		SELECT id, name, portrait_url, created_at
		FROM users
		WHERE is_active = true AND id = ANY($1)
		ORDER BY created_at, id
	`

	rows, err := r.pool.Query(ctx, query, keys)
	if err != nil {
		return nil, fmt.Errorf("get identities by keys: %w", err)
	}
	defer rows.Close()

	identities, err := scanIdentities(rows)
	if err != nil {
		return nil, fmt.Errorf("get identities by keys: %w", err)
	}
	return identities, nil
}

func scanIdentities(rows pgx.Rows) ([]domain.Identity, error) {
	identities := make([]domain.Identity, 0)
	for rows.Next() {
		var (
			identity    domain.Identity
			portraitURL *string
			createdAt   time.Time
		)
		if err := rows.Scan(&identity.Key, &identity.Name, &portraitURL, &createdAt); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		if portraitURL != nil {
			identity.PortraitURL = *portraitURL
		}
		identity.CreatedAt = createdAt
		identities = append(identities, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return identities, nil
}
