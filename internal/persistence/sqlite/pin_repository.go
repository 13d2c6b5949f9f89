package sqlite

import (
	"context"
	"time"

	"github.com/example/fieldops/internal/persistence"
)

// PinRepository implements persistence.PinRepository using SQLite. The
// organization_pin table holds at most one row.
type PinRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewPinRepository creates a new SQLite PIN repository
func NewPinRepository(pool *ConnectionPool) *PinRepository {
	return &PinRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// SetPin stores the organisation PIN hash, replacing any previous one
func (r *PinRepository) SetPin(ctx context.Context, pin persistence.OrganizationPin) error {
	if pin.Hash == "" {
		return persistence.ErrConstraintViolation
	}
	if pin.UpdatedAt.IsZero() {
		pin.UpdatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO organization_pin (id, pin_hash, updated_by, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			pin_hash = excluded.pin_hash,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at
	`

	_, err := r.helper.Exec(ctx, query, pin.Hash, pin.UpdatedBy, formatTime(pin.UpdatedAt))
	return r.mapper.MapError(err)
}

// GetPin returns the stored PIN hash or persistence.ErrNotFound
func (r *PinRepository) GetPin(ctx context.Context) (persistence.OrganizationPin, error) {
	var (
		pin       persistence.OrganizationPin
		updatedAt string
	)
	err := r.helper.QueryRow(ctx, `SELECT pin_hash, updated_by, updated_at FROM organization_pin WHERE id = 1`).
		Scan(&pin.Hash, &pin.UpdatedBy, &updatedAt)
	if err != nil {
		return persistence.OrganizationPin{}, r.mapper.MapError(err)
	}

	if pin.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return persistence.OrganizationPin{}, err
	}
	return pin, nil
}
