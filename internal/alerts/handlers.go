package alerts

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/andino-pos/andino-pos/internal/platform/httpx"
	"github.com/andino-pos/andino-pos/internal/shared"
)

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Handler wires HTTP endpoints for the alert engine.
type Handler struct {
	logger *slog.Logger
	engine *Engine
	audit  AuditPort
}

// NewHandler constructs alerts handler.
func NewHandler(logger *slog.Logger, engine *Engine, audit AuditPort) *Handler {
	return &Handler{logger: logger, engine: engine, audit: audit}
}

// MountRoutes registers alert routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/{id}/close", h.handleClose)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	id, _ := shared.IdentityFromContext(r.Context())

	var status *Status
	if raw := strings.ToUpper(r.URL.Query().Get("status")); raw != "" {
		s := Status(raw)
		if s != StatusOpen && s != StatusClosed {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "status must be OPEN or CLOSED")
			return
		}
		status = &s
	}

	list, err := h.engine.List(r.Context(), id.TenantID, status)
	if err != nil {
		h.logger.Error("list alerts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	id, _ := shared.IdentityFromContext(r.Context())
	alertID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "malformed alert id")
		return
	}

	if err := h.engine.Close(r.Context(), id.TenantID, alertID); err != nil {
		httpx.RespondError(w, err)
		return
	}

	if h.audit != nil {
		_ = h.audit.Record(r.Context(), shared.AuditLog{
			TenantID: id.TenantID,
			ActorID:  id.ActorID,
			Action:   "alerts:close",
			Entity:   "alert",
			EntityID: alertID.String(),
		})
	}

	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true, "id": alertID, "status": StatusClosed})
}
