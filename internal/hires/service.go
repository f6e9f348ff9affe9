package hires

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/taxi-admin/internal/models"
	"github.com/example/taxi-admin/internal/recordstore"
)

// Service covers the plain hire screen: listing with date filters,
// manual creation, and the completed/cancelled terminal transitions.
type Service struct {
	Store    *recordstore.Client
	Logger   *slog.Logger
	PageSize int
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// ErrInvalidForm rejects a creation form before any store call.
var ErrInvalidForm = errors.New("pickup and drop-off locations are required")

// NewHire is the creation form for an office-entered hire.
type NewHire struct {
	UserID          string `json:"user_id"`
	PickLocation    string `json:"pick_location"`
	DropOffLocation string `json:"drop_off_location"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	VehicleType     string `json:"vehicle_type"`
	Passengers      int    `json:"passengers"`
	IsRoundTrip     bool   `json:"isroundtrip"`
	PrimaryPhone    string `json:"primary_phone"`
	Description     string `json:"description"`
}

func (s *Service) ListAll(ctx context.Context) ([]models.Hire, error) {
	hires, err := recordstore.FetchAll[models.Hire](ctx, s.Store, recordstore.CollectionHire, recordstore.ListOptions{
		PerPage: s.PageSize,
		Sort:    "-created",
	})
	if err != nil {
		return nil, fmt.Errorf("list hires: %w", err)
	}
	return hires, nil
}

func (s *Service) Create(ctx context.Context, form NewHire) (models.Hire, error) {
	if form.PickLocation == "" || form.DropOffLocation == "" {
		return models.Hire{}, ErrInvalidForm
	}
	if form.Passengers <= 0 {
		form.Passengers = 1
	}
	body := map[string]any{
		"user_id":           form.UserID,
		"pick_location":     form.PickLocation,
		"drop_off_location": form.DropOffLocation,
		"date":              form.Date,
		"time":              form.Time,
		"vehicle_type":      form.VehicleType,
		"passengers":        form.Passengers,
		"isroundtrip":       form.IsRoundTrip,
		"primary_phone":     form.PrimaryPhone,
		"description":       form.Description,
		"ispending":         true,
		"created1":          s.now().UTC().Format(time.RFC3339),
	}
	hire, err := recordstore.Create[models.Hire](ctx, s.Store, recordstore.CollectionHire, body)
	if err != nil {
		return models.Hire{}, fmt.Errorf("create hire: %w", err)
	}
	return hire, nil
}

func (s *Service) Complete(ctx context.Context, id string) error {
	_, err := recordstore.Patch[models.Hire](ctx, s.Store, recordstore.CollectionHire, id, map[string]any{
		"is_completed": true,
		"completed_at": s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("complete hire %s: %w", id, err)
	}
	return nil
}

func (s *Service) Cancel(ctx context.Context, id string) error {
	_, err := recordstore.Patch[models.Hire](ctx, s.Store, recordstore.CollectionHire, id, map[string]any{
		"is_cancelled": true,
	})
	if err != nil {
		return fmt.Errorf("cancel hire %s: %w", id, err)
	}
	return nil
}
