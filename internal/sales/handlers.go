package sales

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
	"github.com/andino-pos/andino-pos/internal/stock"
)

// Reader exposes the sale read model to the handler.
type Reader interface {
	Get(ctx context.Context, tenantID, saleID uuid.UUID) (Sale, []SaleItem, error)
	List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]Sale, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Handler wires HTTP endpoints for sales.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	reader    Reader
	audit     AuditPort
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, reader Reader, audit AuditPort) *Handler {
	return &Handler{logger: logger, service: service, reader: reader, audit: audit, validator: validator.New()}
}

// MountRoutes registers sale routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
}

type saleLineRequest struct {
	ProductID string `json:"productId" validate:"required,uuid4"`
	Quantity  int64  `json:"quantity" validate:"required,min=1"`
}

type createSaleRequest struct {
	PaymentMethod string            `json:"paymentMethod" validate:"required,oneof=CASH CARD TRANSFER OTHER"`
	Items         []saleLineRequest `json:"items" validate:"required,min=1,max=200,dive"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	id, _ := shared.IdentityFromContext(r.Context())

	var req createSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", err.Error())
		return
	}

	in := CreateInput{PaymentMethod: PaymentMethod(req.PaymentMethod)}
	for _, line := range req.Items {
		productID, err := uuid.Parse(line.ProductID)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "malformed product id")
			return
		}
		in.Lines = append(in.Lines, LineInput{ProductID: productID, Quantity: line.Quantity})
	}

	receipt, err := h.service.Create(r.Context(), id.TenantID, id.ActorID, in)
	if err != nil {
		switch {
		case errors.Is(err, stock.ErrInsufficientStock):
			httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
		case errors.Is(err, ErrUnknownProduct):
			httpx.Problem(w, http.StatusBadRequest, "Unknown Product", err.Error())
		case errors.Is(err, ErrReceiptAssignment):
			httpx.Problem(w, http.StatusServiceUnavailable, "Receipt Assignment Failed", "could not assign a receipt number, retry the sale")
		default:
			httpx.RespondError(w, err)
		}
		return
	}

	if h.audit != nil {
		_ = h.audit.Record(r.Context(), shared.AuditLog{
			TenantID: id.TenantID,
			ActorID:  id.ActorID,
			Action:   "sales:create",
			Entity:   "sale",
			EntityID: receipt.SaleID.String(),
		})
	}

	httpx.JSON(w, http.StatusCreated, receipt)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	id, _ := shared.IdentityFromContext(r.Context())

	limit, offset := 0, 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			offset = n
		}
	}

	list, err := h.reader.List(r.Context(), id.TenantID, limit, offset)
	if err != nil {
		h.logger.Error("list sales", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

type saleResponse struct {
	Sale
	Items []SaleItem `json:"items"`
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, _ := shared.IdentityFromContext(r.Context())
	saleID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "malformed sale id")
		return
	}

	sale, items, err := h.reader.Get(r.Context(), id.TenantID, saleID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, saleResponse{Sale: sale, Items: items})
}
