package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/fieldops/internal/geo"
	"github.com/example/fieldops/internal/shift"
)

// SiteRepository captures the persistence operations needed by the service.
type SiteRepository interface {
	UpsertSite(ctx context.Context, site Site) (Site, error)
	GetSite(ctx context.Context, clientID string) (Site, error)
}

// SiteService manages client site coordinates and resolves them for the
// geofence. It satisfies shift.SiteLocator.
type SiteService struct {
	sites  SiteRepository
	now    func() time.Time
	logger *slog.Logger
}

// NewSiteService constructs a site service.
func NewSiteService(sites SiteRepository, now func() time.Time, logger *slog.Logger) *SiteService {
	if now == nil {
		now = time.Now
	}
	return &SiteService{sites: sites, now: now, logger: defaultLogger(logger)}
}

// UpsertSite registers or moves a client site. Administrators only.
func (s *SiteService) UpsertSite(ctx context.Context, params UpsertSiteParams) (site Site, err error) {
	if s == nil {
		return Site{}, fmt.Errorf("SiteService is nil")
	}
	if s.sites == nil {
		return Site{}, fmt.Errorf("site repository not configured")
	}

	clientID := strings.TrimSpace(params.Input.ClientID)
	logger := serviceLogger(ctx, s.logger, "SiteService", "UpsertSite",
		"worker_id", params.Session.WorkerID,
		"client_id", clientID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to save client site", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "client site saved",
			"latitude", site.Location.Latitude,
			"longitude", site.Location.Longitude,
		)
	}()

	if !params.Session.IsAdmin() {
		return Site{}, ErrUnauthorized
	}

	vErr := &ValidationError{}
	if clientID == "" {
		vErr.add("client_id", "client_id is required")
	}
	location := geo.Coordinate{Latitude: params.Input.Latitude, Longitude: params.Input.Longitude}
	if err := location.Validate(); err != nil {
		vErr.add("location", err.Error())
	}
	if vErr.HasErrors() {
		return Site{}, vErr
	}

	now := s.now()
	site = Site{
		ClientID:  clientID,
		Name:      strings.TrimSpace(params.Input.Name),
		Location:  location,
		CreatedAt: now,
		UpdatedAt: now,
	}

	persisted, err := s.sites.UpsertSite(ctx, site)
	if err != nil {
		return Site{}, err
	}
	return persisted, nil
}

// GetSite returns the registered site of a client.
func (s *SiteService) GetSite(ctx context.Context, clientID string) (Site, error) {
	if s == nil {
		return Site{}, fmt.Errorf("SiteService is nil")
	}
	if s.sites == nil {
		return Site{}, fmt.Errorf("site repository not configured")
	}

	site, err := s.sites.GetSite(ctx, strings.TrimSpace(clientID))
	if err != nil {
		if isNotFoundError(err) {
			return Site{}, ErrNotFound
		}
		return Site{}, err
	}
	return site, nil
}

// SiteFor implements shift.SiteLocator.
func (s *SiteService) SiteFor(ctx context.Context, clientID string) (geo.Coordinate, error) {
	site, err := s.GetSite(ctx, clientID)
	if err != nil {
		if isNotFoundError(err) {
			return geo.Coordinate{}, fmt.Errorf("%w: no site registered for client %s", ErrNotFound, clientID)
		}
		return geo.Coordinate{}, err
	}
	return site.Location, nil
}

var _ shift.SiteLocator = (*SiteService)(nil)
