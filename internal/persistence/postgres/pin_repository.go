package postgres

import (
	"context"
	"database/sql"

	"github.com/example/fieldops/internal/persistence"
)

// PinRepository implements persistence.PinRepository on PostgreSQL.
type PinRepository struct {
	db *sql.DB
}

func (r *PinRepository) SetPin(ctx context.Context, pin persistence.OrganizationPin) error {
	if pin.Hash == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO organization_pin (id, pin_hash, updated_by, updated_at)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			pin_hash = EXCLUDED.pin_hash,
			updated_by = EXCLUDED.updated_by,
			updated_at = EXCLUDED.updated_at`,
		pin.Hash, pin.UpdatedBy, nowIfZero(pin.UpdatedAt),
	)
	return mapError(err)
}

func (r *PinRepository) GetPin(ctx context.Context) (persistence.OrganizationPin, error) {
	var pin persistence.OrganizationPin
	err := r.db.QueryRowContext(ctx, `SELECT pin_hash, updated_by, updated_at FROM organization_pin WHERE id = 1`).
		Scan(&pin.Hash, &pin.UpdatedBy, &pin.UpdatedAt)
	if err != nil {
		return persistence.OrganizationPin{}, mapError(err)
	}
	pin.UpdatedAt = pin.UpdatedAt.UTC()
	return pin, nil
}
