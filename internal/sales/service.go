package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/andino-pos/andino-pos/internal/alerts"
	"github.com/andino-pos/andino-pos/internal/observability"
	"github.com/andino-pos/andino-pos/internal/shared"
	"github.com/andino-pos/andino-pos/internal/stock"
)

// TxRunner abstracts the transactional sale repository for tests.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// ServiceConfig groups the sale processor's tunables.
type ServiceConfig struct {
	// ReceiptRetries bounds how many times a sale is re-attempted after a
	// receipt-number collision.
	ReceiptRetries int
	// DedupeLowStock suppresses a low-stock alert while an OPEN one still
	// references the product. Off by default: one alert per breach.
	DedupeLowStock bool
}

// Service commits sales atomically: sale row, priced items, one OUT movement
// per line, the guarded stock decrements, and any low-stock alerts they
// trigger. Pricing is server-authoritative; the client only names products
// and quantities.
type Service struct {
	logger  *slog.Logger
	repo    TxRunner
	metrics *observability.Metrics
	cfg     ServiceConfig
}

// NewService constructs the sale processor.
func NewService(logger *slog.Logger, repo TxRunner, metrics *observability.Metrics, cfg ServiceConfig) *Service {
	if cfg.ReceiptRetries <= 0 {
		cfg.ReceiptRetries = 3
	}
	return &Service{logger: logger, repo: repo, metrics: metrics, cfg: cfg}
}

// Create validates, prices, and commits one sale. A receipt-number collision
// rolls back and re-runs the whole transaction with a fresh number, up to the
// configured budget; business rejections are terminal and leave no state.
func (s *Service) Create(ctx context.Context, tenantID, actorID uuid.UUID, in CreateInput) (Receipt, error) {
	if err := validateInput(in); err != nil {
		return Receipt{}, err
	}

	var receipt Receipt
	for attempt := 0; attempt < s.cfg.ReceiptRetries; attempt++ {
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			r, err := s.commit(ctx, tx, tenantID, actorID, in)
			if err != nil {
				return err
			}
			receipt = r
			return nil
		})
		if err == nil {
			s.metrics.RecordSale("committed")
			if s.logger != nil {
				s.logger.Info("sale committed",
					slog.String("tenant", tenantID.String()),
					slog.String("sale", receipt.SaleID.String()),
					slog.Int64("receipt", receipt.ReceiptNumber),
					slog.String("total", receipt.Total.String()))
			}
			return receipt, nil
		}
		if errors.Is(err, ErrReceiptCollision) {
			s.metrics.RecordReceiptRetry()
			if s.logger != nil {
				s.logger.Warn("receipt collision, retrying",
					slog.String("tenant", tenantID.String()),
					slog.Int("attempt", attempt+1))
			}
			continue
		}
		if errors.Is(err, stock.ErrInsufficientStock) || errors.Is(err, ErrUnknownProduct) || errors.Is(err, shared.ErrInvalidInput) {
			s.metrics.RecordSale("rejected")
		} else {
			s.metrics.RecordSale("failed")
		}
		return Receipt{}, err
	}

	s.metrics.RecordSale("failed")
	return Receipt{}, fmt.Errorf("%w after %d attempts", ErrReceiptAssignment, s.cfg.ReceiptRetries)
}

// commit is one atomic sale attempt running inside the transaction.
func (s *Service) commit(ctx context.Context, tx TxRepository, tenantID, actorID uuid.UUID, in CreateInput) (Receipt, error) {
	ids := make([]uuid.UUID, 0, len(in.Lines))
	for _, line := range in.Lines {
		ids = append(ids, line.ProductID)
	}
	products, err := tx.LoadProducts(ctx, tenantID, ids)
	if err != nil {
		return Receipt{}, err
	}

	sale := Sale{
		ID:            uuid.New(),
		TenantID:      tenantID,
		PaymentMethod: in.PaymentMethod,
		CreatedBy:     actorID,
		CreatedAt:     time.Now().UTC(),
	}

	items := make([]SaleItem, 0, len(in.Lines))
	total := decimal.Zero
	for _, line := range in.Lines {
		p, ok := products[line.ProductID]
		if !ok {
			return Receipt{}, fmt.Errorf("%w: %s", ErrUnknownProduct, line.ProductID)
		}
		lineTotal := p.SalePrice.Mul(decimal.NewFromInt(line.Quantity))
		items = append(items, SaleItem{
			ID:        uuid.New(),
			SaleID:    sale.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: p.SalePrice,
			LineTotal: lineTotal,
		})
		total = total.Add(lineTotal)
	}
	sale.Total = total

	number, err := tx.NextReceiptNumber(ctx, tenantID)
	if err != nil {
		return Receipt{}, err
	}
	sale.ReceiptNumber = number

	if err := tx.InsertSale(ctx, sale); err != nil {
		return Receipt{}, err
	}
	if err := tx.InsertItems(ctx, items); err != nil {
		return Receipt{}, err
	}

	reason := fmt.Sprintf("Venta %s", sale.ID)
	for _, it := range items {
		adjusted, err := tx.DecrementStock(ctx, tenantID, it.ProductID, it.Quantity)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return Receipt{}, fmt.Errorf("%w: %s", ErrUnknownProduct, it.ProductID)
			}
			return Receipt{}, err
		}
		if err := tx.InsertMovement(ctx, stock.Movement{
			ID:        uuid.New(),
			TenantID:  tenantID,
			ProductID: it.ProductID,
			Type:      stock.MovementOut,
			Quantity:  it.Quantity,
			Reason:    &reason,
			CreatedBy: actorID,
			CreatedAt: sale.CreatedAt,
		}); err != nil {
			return Receipt{}, err
		}

		if adjusted.NewStock <= adjusted.StockMin {
			if err := s.raiseLowStock(ctx, tx, tenantID, it.ProductID, adjusted); err != nil {
				return Receipt{}, err
			}
		}
	}

	return Receipt{SaleID: sale.ID, ReceiptNumber: sale.ReceiptNumber, Total: sale.Total}, nil
}

func (s *Service) raiseLowStock(ctx context.Context, tx TxRepository, tenantID, productID uuid.UUID, adjusted stock.AdjustResult) error {
	if s.cfg.DedupeLowStock {
		open, err := tx.HasOpenLowStock(ctx, tenantID, productID)
		if err != nil {
			return err
		}
		if open {
			return nil
		}
	}
	if err := tx.RaiseLowStock(ctx, alerts.NewLowStock(tenantID, productID, adjusted.ProductName, adjusted.NewStock)); err != nil {
		return err
	}
	s.metrics.RecordAlertRaised(string(alerts.TypeLowStock))
	return nil
}

func validateInput(in CreateInput) error {
	if !in.PaymentMethod.Valid() {
		return fmt.Errorf("%w: unknown payment method %q", shared.ErrInvalidInput, in.PaymentMethod)
	}
	if len(in.Lines) == 0 {
		return fmt.Errorf("%w: sale requires at least one line", shared.ErrInvalidInput)
	}
	for _, line := range in.Lines {
		if line.ProductID == uuid.Nil {
			return fmt.Errorf("%w: line requires product", shared.ErrInvalidInput)
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("%w: line quantity must be positive", shared.ErrInvalidInput)
		}
	}
	return nil
}
