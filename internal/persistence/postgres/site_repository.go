package postgres

import (
	"context"
	"database/sql"

	"github.com/example/fieldops/internal/persistence"
)

// SiteRepository implements persistence.SiteRepository on PostgreSQL.
type SiteRepository struct {
	db *sql.DB
}

func (r *SiteRepository) UpsertSite(ctx context.Context, site persistence.ClientSite) error {
	if site.ClientID == "" {
		return persistence.ErrConstraintViolation
	}
	createdAt := nowIfZero(site.CreatedAt)
	updatedAt := nowIfZero(site.UpdatedAt)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO client_sites (client_id, name, latitude, longitude, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (client_id) DO UPDATE SET
			name = EXCLUDED.name,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			updated_at = EXCLUDED.updated_at`,
		site.ClientID, site.Name, site.Latitude, site.Longitude, createdAt, updatedAt,
	)
	return mapError(err)
}

func (r *SiteRepository) GetSite(ctx context.Context, clientID string) (persistence.ClientSite, error) {
	var site persistence.ClientSite
	err := r.db.QueryRowContext(ctx, `
		SELECT client_id, name, latitude, longitude, created_at, updated_at
		FROM client_sites WHERE client_id = $1`, clientID).
		Scan(&site.ClientID, &site.Name, &site.Latitude, &site.Longitude, &site.CreatedAt, &site.UpdatedAt)
	if err != nil {
		return persistence.ClientSite{}, mapError(err)
	}
	site.CreatedAt = site.CreatedAt.UTC()
	site.UpdatedAt = site.UpdatedAt.UTC()
	return site, nil
}
