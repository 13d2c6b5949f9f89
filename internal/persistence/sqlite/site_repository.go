package sqlite

import (
	"context"
	"time"

	"github.com/example/fieldops/internal/persistence"
)

// SiteRepository implements persistence.SiteRepository using SQLite
type SiteRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewSiteRepository creates a new SQLite client site repository
func NewSiteRepository(pool *ConnectionPool) *SiteRepository {
	return &SiteRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// UpsertSite inserts a client site or replaces its coordinates
func (r *SiteRepository) UpsertSite(ctx context.Context, site persistence.ClientSite) error {
	if site.ClientID == "" {
		return persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	if site.CreatedAt.IsZero() {
		site.CreatedAt = now
	}
	if site.UpdatedAt.IsZero() {
		site.UpdatedAt = now
	}

	query := `
		INSERT INTO client_sites (client_id, name, latitude, longitude, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (client_id) DO UPDATE SET
			name = excluded.name,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			updated_at = excluded.updated_at
	`

	_, err := r.helper.Exec(ctx, query,
		site.ClientID,
		site.Name,
		site.Latitude,
		site.Longitude,
		formatTime(site.CreatedAt),
		formatTime(site.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// GetSite retrieves the site registered for a client
func (r *SiteRepository) GetSite(ctx context.Context, clientID string) (persistence.ClientSite, error) {
	query := `
		SELECT client_id, name, latitude, longitude, created_at, updated_at
		FROM client_sites
		WHERE client_id = ?
	`

	var (
		site                 persistence.ClientSite
		createdAt, updatedAt string
	)
	err := r.helper.QueryRow(ctx, query, clientID).Scan(
		&site.ClientID,
		&site.Name,
		&site.Latitude,
		&site.Longitude,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.ClientSite{}, r.mapper.MapError(err)
	}

	if site.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.ClientSite{}, err
	}
	if site.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return persistence.ClientSite{}, err
	}

	return site, nil
}
