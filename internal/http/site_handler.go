package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/fieldops/internal/application"
)

type siteService interface {
	UpsertSite(ctx context.Context, params application.UpsertSiteParams) (application.Site, error)
	GetSite(ctx context.Context, clientID string) (application.Site, error)
}

// SiteHandler manages client site coordinates.
type SiteHandler struct {
	service   siteService
	responder responder
}

func NewSiteHandler(service siteService, logger *slog.Logger) *SiteHandler {
	return &SiteHandler{service: service, responder: newResponder(logger)}
}

func (h *SiteHandler) Put(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	clientID := strings.TrimSpace(r.PathValue("id"))
	if clientID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidClientID)
		return
	}

	var req siteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	session, _ := SessionFromContext(r.Context())
	site, err := h.service.UpsertSite(r.Context(), application.UpsertSiteParams{
		Session: session,
		Input: application.SiteInput{
			ClientID:  clientID,
			Name:      req.Name,
			Latitude:  req.Latitude,
			Longitude: req.Longitude,
		},
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toSiteDTO(site))
}

func (h *SiteHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	clientID := strings.TrimSpace(r.PathValue("id"))
	if clientID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidClientID)
		return
	}

	site, err := h.service.GetSite(r.Context(), clientID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toSiteDTO(site))
}

type siteRequest struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type siteDTO struct {
	ClientID  string  `json:"client_id"`
	Name      string  `json:"name,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	UpdatedAt string  `json:"updated_at"`
}

func toSiteDTO(site application.Site) siteDTO {
	return siteDTO{
		ClientID:  site.ClientID,
		Name:      site.Name,
		Latitude:  site.Location.Latitude,
		Longitude: site.Location.Longitude,
		UpdatedAt: site.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}
