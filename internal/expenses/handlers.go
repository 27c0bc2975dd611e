package expenses

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/andino-pos/andino-pos/internal/platform/httpx"
	"github.com/andino-pos/andino-pos/internal/shared"
)

// Handler wires HTTP endpoints for expenses and categories.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers expense routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Post("/categories", h.handleCreateCategory)
	r.Get("/categories", h.handleListCategories)
}

type createExpenseRequest struct {
	CategoryID  *string `json:"categoryId" validate:"omitempty,uuid4"`
	Description string  `json:"description" validate:"required,max=500"`
	Amount      string  `json:"amount" validate:"required"`
	IncurredAt  *string `json:"incurredAt" validate:"omitempty"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	id, _ := shared.IdentityFromContext(r.Context())

	var req createExpenseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", err.Error())
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "malformed amount")
		return
	}

	in := CreateExpenseInput{Description: req.Description, Amount: amount}
	if req.CategoryID != nil {
		categoryID, err := uuid.Parse(*req.CategoryID)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "malformed category id")
			return
		}
		in.CategoryID = &categoryID
	}
	if req.IncurredAt != nil {
		incurredAt, err := time.Parse(time.RFC3339, *req.IncurredAt)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "incurredAt must be RFC 3339")
			return
		}
		in.IncurredAt = &incurredAt
	}

	expense, err := h.service.CreateExpense(r.Context(), id.TenantID, id.ActorID, in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, expense)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	id, _ := shared.IdentityFromContext(r.Context())

	filter := Filter{}
	if raw := r.URL.Query().Get("categoryId"); raw != "" {
		categoryID, err := uuid.Parse(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "malformed category id")
			return
		}
		filter.CategoryID = &categoryID
	}
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Input", "since must be RFC 3339")
			return
		}
		filter.Since = &since
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

	list, err := h.service.List(r.Context(), id.TenantID, filter)
	if err != nil {
		h.logger.Error("list expenses", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

type createCategoryRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

func (h *Handler) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	id, _ := shared.IdentityFromContext(r.Context())

	var req createCategoryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", err.Error())
		return
	}

	category, err := h.service.CreateCategory(r.Context(), id.TenantID, req.Name)
	if err != nil {
		if errors.Is(err, ErrDuplicateCategory) {
			httpx.Problem(w, http.StatusConflict, "Duplicate Category", err.Error())
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, category)
}

func (h *Handler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	id, _ := shared.IdentityFromContext(r.Context())

	list, err := h.service.ListCategories(r.Context(), id.TenantID)
	if err != nil {
		h.logger.Error("list categories", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}
