package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/example/fieldops/internal/application"
)

type pinService interface {
	SetPin(ctx context.Context, params application.SetPinParams) error
}

// PinHandler replaces the organisation manager PIN.
type PinHandler struct {
	service   pinService
	responder responder
}

func NewPinHandler(service pinService, logger *slog.Logger) *PinHandler {
	return &PinHandler{service: service, responder: newResponder(logger)}
}

func (h *PinHandler) Put(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req struct {
		Pin string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	session, _ := SessionFromContext(r.Context())
	if err := h.service.SetPin(r.Context(), application.SetPinParams{Session: session, Pin: req.Pin}); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}
