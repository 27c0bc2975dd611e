package stock

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/andino-pos/andino-pos/internal/platform/httpx"
	"github.com/andino-pos/andino-pos/internal/shared"
)

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Handler wires HTTP endpoints for manual stock movements.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	audit     AuditPort
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, audit AuditPort) *Handler {
	return &Handler{logger: logger, service: service, audit: audit, validator: validator.New()}
}

// MountRoutes registers movement routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/movements", h.handleMove)
	r.Get("/movements", h.handleHistory)
}

type moveRequest struct {
	ProductID string  `json:"productId" validate:"required,uuid4"`
	Type      string  `json:"type" validate:"required,oneof=IN OUT ADJUST"`
	Quantity  int64   `json:"quantity" validate:"min=0"`
	Reason    *string `json:"reason" validate:"omitempty,max=500"`
}

func (h *Handler) handleMove(w http.ResponseWriter, r *http.Request) {
	id, _ := shared.IdentityFromContext(r.Context())

	var req moveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", err.Error())
		return
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "malformed product id")
		return
	}

	result, err := h.service.Move(r.Context(), id.TenantID, id.ActorID, MoveInput{
		ProductID: productID,
		Type:      MovementType(req.Type),
		Quantity:  req.Quantity,
		Reason:    req.Reason,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInsufficientStock):
			httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
		default:
			httpx.RespondError(w, err)
		}
		return
	}

	if h.audit != nil {
		_ = h.audit.Record(r.Context(), shared.AuditLog{
			TenantID: id.TenantID,
			ActorID:  id.ActorID,
			Action:   "stock:move",
			Entity:   "movement",
			EntityID: result.MovementID.String(),
		})
	}

	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, _ := shared.IdentityFromContext(r.Context())

	filter := MovementFilter{}
	if raw := r.URL.Query().Get("productId"); raw != "" {
		productID, err := uuid.Parse(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "malformed product id")
			return
		}
		filter.ProductID = &productID
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			filter.Limit = n
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	list, err := h.service.History(r.Context(), id.TenantID, filter)
	if err != nil {
		h.logger.Error("list movements", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}
