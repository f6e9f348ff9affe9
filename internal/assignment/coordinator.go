package assignment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/taxi-admin/internal/models"
	"github.com/example/taxi-admin/internal/observability"
	"github.com/example/taxi-admin/internal/recordstore"
	"github.com/example/taxi-admin/internal/storage"
)

// ErrNoSelection is returned before any network call when either side of
// the assignment is missing.
var ErrNoSelection = errors.New("hire and driver must both be selected")

// ErrAcceptanceNotRecorded reports the known inconsistency window: the
// hire was patched to assigned but the matching driver request could not
// be marked accepted. The hire mutation is NOT rolled back; the operator
// must see this and may retry the acceptance write alone.
var ErrAcceptanceNotRecorded = errors.New("hire assigned but driver request acceptance was not recorded")

// EventPublisher is satisfied by events.Producer.
type EventPublisher interface {
	PublishAssignment(ctx context.Context, ev models.AssignmentEvent) error
}

// Notifier tells the chosen driver their request was honored.
type Notifier interface {
	AssignmentConfirmed(driver models.Driver, hireID string) error
}

// Result describes what the coordinator actually committed. RequestMarked
// is false both when no matching request existed (tolerated, e.g. an
// administratively created hire) and when the acceptance write failed
// (surfaced via ErrAcceptanceNotRecorded).
type Result struct {
	HireID        string    `json:"hire_id"`
	DriverID      string    `json:"driver_id"`
	RequestID     string    `json:"request_id,omitempty"`
	RequestMarked bool      `json:"request_marked"`
	AssignedAt    time.Time `json:"assigned_at"`
}

// Coordinator performs the two dependent writes that confirm one driver
// for one hire. The external store offers no transaction, so the sequence
// is strictly ordered and the second write's failure leaves the first in
// place.
type Coordinator struct {
	Store  *recordstore.Client
	Audit  storage.AuditStore // optional
	Events EventPublisher     // optional
	Notify Notifier           // optional
	Logger *slog.Logger
	Now    func() time.Time // test seam, defaults to time.Now
}

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Assign confirms driverID for hireID. Step one patches the hire; its
// failure aborts the whole operation with nothing else touched. Step two
// locates and marks the honored request; its failure surfaces as
// ErrAcceptanceNotRecorded with the hire left assigned.
func (c *Coordinator) Assign(ctx context.Context, hireID, driverID string) (Result, error) {
	if hireID == "" || driverID == "" {
		return Result{}, ErrNoSelection
	}
	assignedAt := c.now().UTC()
	res := Result{HireID: hireID, DriverID: driverID, AssignedAt: assignedAt}

	_, err := recordstore.Patch[models.Hire](ctx, c.Store, recordstore.CollectionHire, hireID, map[string]any{
		"driverid":    driverID,
		"ispending":   false,
		"accepted_at": assignedAt.Format(time.RFC3339),
	})
	if err != nil {
		return Result{}, fmt.Errorf("assign hire %s: %w", hireID, err)
	}

	requestID, marked, err := c.markAcceptance(ctx, hireID, driverID, assignedAt)
	res.RequestID = requestID
	res.RequestMarked = marked
	if err != nil {
		observability.AcceptanceMarkFailures.Inc()
		return res, err
	}

	observability.AssignmentsTotal.Inc()
	c.afterAssign(ctx, res)
	return res, nil
}

// RetryAcceptance re-runs the acceptance write alone. The hire patch is
// idempotent so callers recovering from ErrAcceptanceNotRecorded do not
// need to repeat it.
func (c *Coordinator) RetryAcceptance(ctx context.Context, hireID, driverID string) (Result, error) {
	if hireID == "" || driverID == "" {
		return Result{}, ErrNoSelection
	}
	assignedAt := c.now().UTC()
	res := Result{HireID: hireID, DriverID: driverID, AssignedAt: assignedAt}
	requestID, marked, err := c.markAcceptance(ctx, hireID, driverID, assignedAt)
	res.RequestID = requestID
	res.RequestMarked = marked
	if err != nil {
		observability.AcceptanceMarkFailures.Inc()
		return res, err
	}
	return res, nil
}

// markAcceptance finds the request being honored and patches it. Zero
// matches is not an error; more than one means the store holds duplicates
// and the first one wins, matching the dashboard's historical behavior.
func (c *Coordinator) markAcceptance(ctx context.Context, hireID, driverID string, at time.Time) (string, bool, error) {
	page, err := recordstore.List[models.DriverRequest](ctx, c.Store, recordstore.CollectionRequestHandle, recordstore.ListOptions{
		PerPage: recordstore.DefaultPageSize,
		Filter:  recordstore.And(recordstore.Eq("hire_id", hireID), recordstore.Eq("driver_id", driverID)),
	})
	if err != nil {
		return "", false, fmt.Errorf("locate request for hire %s driver %s: %v: %w", hireID, driverID, err, ErrAcceptanceNotRecorded)
	}
	if len(page.Items) == 0 {
		if c.Logger != nil {
			c.Logger.Warn("no driver request on record for assignment", "hire", hireID, "driver", driverID)
		}
		return "", false, nil
	}
	req := page.Items[0]
	_, err = recordstore.Patch[models.DriverRequest](ctx, c.Store, recordstore.CollectionRequestHandle, req.ID, map[string]any{
		"is_accepted": true,
		"accepted_at": at.Format(time.RFC3339),
	})
	if err != nil {
		return req.ID, false, fmt.Errorf("mark request %s accepted: %v: %w", req.ID, err, ErrAcceptanceNotRecorded)
	}
	return req.ID, true, nil
}

// afterAssign runs the best-effort side effects: audit trail, event
// publish, driver notification. None of them can fail the assignment.
func (c *Coordinator) afterAssign(ctx context.Context, res Result) {
	ev := models.AssignmentEvent{
		HireID:        res.HireID,
		DriverID:      res.DriverID,
		RequestID:     res.RequestID,
		RequestMarked: res.RequestMarked,
		AssignedAt:    res.AssignedAt,
	}
	if c.Audit != nil {
		if err := c.Audit.SaveAssignment(ev); err != nil && c.Logger != nil {
			c.Logger.Warn("audit write failed", "hire", res.HireID, "error", err)
		}
	}
	if c.Events != nil {
		if err := c.Events.PublishAssignment(ctx, ev); err != nil && c.Logger != nil {
			c.Logger.Warn("assignment event publish failed", "hire", res.HireID, "error", err)
		}
	}
	if c.Notify != nil {
		driver, err := recordstore.Get[models.Driver](ctx, c.Store, recordstore.CollectionDriver, res.DriverID, "")
		if err == nil {
			err = c.Notify.AssignmentConfirmed(driver, res.HireID)
		}
		if err != nil && c.Logger != nil {
			c.Logger.Warn("driver notification failed", "driver", res.DriverID, "error", err)
		}
	}
}

// EligibleDrivers lists the drivers that may be assigned to a hire: only
// those with an outstanding request for it. The ids come from the
// request_handle records; the driver details are fetched in one id-OR
// filtered listing.
func (c *Coordinator) EligibleDrivers(ctx context.Context, hireID string) ([]models.Driver, error) {
	requests, err := recordstore.FetchAll[models.DriverRequest](ctx, c.Store, recordstore.CollectionRequestHandle, recordstore.ListOptions{
		Filter: recordstore.And(recordstore.Eq("hire_id", hireID)),
	})
	if err != nil {
		return nil, fmt.Errorf("list requests for hire %s: %w", hireID, err)
	}
	seen := make(map[string]bool)
	terms := make([]string, 0, len(requests))
	for _, r := range requests {
		if r.DriverID == "" || seen[r.DriverID] {
			continue
		}
		seen[r.DriverID] = true
		terms = append(terms, recordstore.Eq("id", r.DriverID))
	}
	if len(terms) == 0 {
		return nil, nil
	}
	drivers, err := recordstore.FetchAll[models.Driver](ctx, c.Store, recordstore.CollectionDriver, recordstore.ListOptions{
		Filter: recordstore.Or(terms...),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch candidate drivers for hire %s: %w", hireID, err)
	}
	return drivers, nil
}
