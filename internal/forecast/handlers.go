package forecast

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/andino-pos/andino-pos/internal/platform/httpx"
	"github.com/andino-pos/andino-pos/internal/shared"
)

// Handler exposes the on-demand recalculation endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs forecast handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers forecast routes. Mounted alongside the alert routes
// since recalculation is expressed as an alert operation.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/recalculate", h.handleRecalculate)
}

func (h *Handler) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	id, _ := shared.IdentityFromContext(r.Context())

	snap, err := h.service.Recalculate(r.Context(), id.TenantID)
	if err != nil {
		h.logger.Error("recalculate cash risk", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snap)
}
