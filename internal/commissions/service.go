package commissions

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/taxi-admin/internal/models"
	"github.com/example/taxi-admin/internal/recordstore"
)

// CardProcessor is the hold/capture/cancel slice of the payment provider
// that card collection needs. Satisfied by payments.StripeClient.
type CardProcessor interface {
	Hold(ctx context.Context, amount int64, currency, customerID string) (string, error)
	Capture(ctx context.Context, paymentIntentID string) error
	Cancel(ctx context.Context, paymentIntentID string) error
}

// Service manages driver commission records and annual membership fees.
type Service struct {
	Store    *recordstore.Client
	Payments CardProcessor // optional; cash payments skip it
	Logger   *slog.Logger
	PageSize int

	// Rate is the commission share taken from BaseAmount; the store holds
	// no per-hire pricing yet, so DefaultBaseAmount stands in.
	Rate              float64
	DefaultBaseAmount float64
}

func (s *Service) List(ctx context.Context) ([]models.Commission, error) {
	commissions, err := recordstore.FetchAll[models.Commission](ctx, s.Store, recordstore.CollectionCommissions, recordstore.ListOptions{
		PerPage: s.PageSize,
		Sort:    "-created",
		Expand:  "driverid",
	})
	if err != nil {
		return nil, fmt.Errorf("list commissions: %w", err)
	}
	return commissions, nil
}

// GenerateMissing creates commission records for completed, driver-backed
// hires that have none yet and returns how many were created. Hires that
// already have a record are left alone, so re-running is safe.
func (s *Service) GenerateMissing(ctx context.Context) (int, error) {
	hires, err := recordstore.FetchAll[models.Hire](ctx, s.Store, recordstore.CollectionHire, recordstore.ListOptions{
		PerPage: s.PageSize,
		Filter:  recordstore.And(recordstore.Eq("is_completed", true)),
		Sort:    "-completed_at",
	})
	if err != nil {
		return 0, fmt.Errorf("list completed hires: %w", err)
	}
	existing, err := recordstore.FetchAll[models.Commission](ctx, s.Store, recordstore.CollectionCommissions, recordstore.ListOptions{
		PerPage: s.PageSize,
	})
	if err != nil {
		return 0, fmt.Errorf("list commissions: %w", err)
	}
	covered := make(map[string]bool, len(existing))
	for _, c := range existing {
		covered[c.HireID] = true
	}

	created := 0
	for _, h := range hires {
		if h.Driverid == "" || covered[h.ID] {
			continue
		}
		base := s.DefaultBaseAmount
		body := map[string]any{
			"hireid":      h.ID,
			"driverid":    h.Driverid,
			"customer_id": h.UserID,
			"base_amount": base,
			"commition":   base * s.Rate,
			"ispayed":     false,
		}
		if _, err := recordstore.Create[models.Commission](ctx, s.Store, recordstore.CollectionCommissions, body); err != nil {
			return created, fmt.Errorf("create commission for hire %s: %w", h.ID, err)
		}
		created++
	}
	return created, nil
}

func (s *Service) MarkPaid(ctx context.Context, id string) error {
	_, err := recordstore.Patch[models.Commission](ctx, s.Store, recordstore.CollectionCommissions, id, map[string]any{
		"ispayed": true,
	})
	if err != nil {
		return fmt.Errorf("mark commission %s paid: %w", id, err)
	}
	return nil
}

func (s *Service) MarkAnnualFeePaid(ctx context.Context, driverID string) error {
	_, err := recordstore.Patch[models.Driver](ctx, s.Store, recordstore.CollectionDriver, driverID, map[string]any{
		"anuualfee_paid": true,
	})
	if err != nil {
		return fmt.Errorf("mark annual fee paid for driver %s: %w", driverID, err)
	}
	return nil
}

// CollectByCard charges a commission through Stripe and, only once the
// capture succeeds, flips the paid flag on the record.
func (s *Service) CollectByCard(ctx context.Context, commission models.Commission, stripeCustomerID string) error {
	if s.Payments == nil {
		return fmt.Errorf("card payments not configured")
	}
	amountCents := int64(commission.Commission * 100)
	intentID, err := s.Payments.Hold(ctx, amountCents, "lkr", stripeCustomerID)
	if err != nil {
		return fmt.Errorf("hold commission %s: %w", commission.ID, err)
	}
	if err := s.Payments.Capture(ctx, intentID); err != nil {
		if cancelErr := s.Payments.Cancel(ctx, intentID); cancelErr != nil && s.Logger != nil {
			s.Logger.Warn("release of failed capture also failed", "intent", intentID, "error", cancelErr)
		}
		return fmt.Errorf("capture commission %s: %w", commission.ID, err)
	}
	return s.MarkPaid(ctx, commission.ID)
}
