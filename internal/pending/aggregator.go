package pending

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/taxi-admin/internal/cache"
	"github.com/example/taxi-admin/internal/models"
	"github.com/example/taxi-admin/internal/observability"
	"github.com/example/taxi-admin/internal/recordstore"
)

// QueueFilter narrows the queue view after eligibility filtering.
type QueueFilter string

const (
	FilterAll      QueueFilter = "all"
	FilterBusiness QueueFilter = "business"
	FilterNormal   QueueFilter = "normal"
	FilterMultiple QueueFilter = "multiple"
)

// QueuedHire is a pending hire annotated for the staff queue.
type QueuedHire struct {
	models.Hire
	Customer            models.CustomerProfile `json:"customer"`
	RequestCount        int                    `json:"request_count"`
	HasMultipleRequests bool                   `json:"has_multiple_requests"`
}

// Snapshot is one consistent view of the assignment queue. Either the
// whole refresh succeeded or no snapshot is produced; a mixed dataset is
// never rendered.
type Snapshot struct {
	Hires          []QueuedHire                      `json:"hires"`
	RequestsByHire map[string][]models.DriverRequest `json:"requests_by_hire"`
	RefreshedAt    time.Time                         `json:"refreshed_at"`
}

// Aggregator builds the pending-hire queue: hires that still need a
// driver and have at least one outstanding driver request, annotated with
// their resolved customer and request counts.
type Aggregator struct {
	Store    *recordstore.Client
	Cache    cache.ProfileCache // optional
	Logger   *slog.Logger
	PageSize int
	// OnUpdate, when set, receives every published snapshot. The HTTP
	// layer uses it to feed connected dashboards.
	OnUpdate func(Snapshot)

	epoch  atomic.Uint64
	mu     sync.RWMutex
	latest Snapshot
	ready  bool
}

// Refresh rebuilds the queue from the record store. Overlapping refreshes
// are allowed; only the most recently issued one publishes its result,
// stale in-flight results are discarded.
func (a *Aggregator) Refresh(ctx context.Context) (Snapshot, error) {
	e := a.epoch.Add(1)
	start := time.Now()
	snap, err := a.build(ctx)
	observability.QueueRefreshDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		observability.QueueRefreshesTotal.WithLabelValues("error").Inc()
		return Snapshot{}, err
	}
	observability.QueueRefreshesTotal.WithLabelValues("ok").Inc()
	a.publish(e, snap)
	return snap, nil
}

// Latest returns the last published snapshot, if any refresh has
// completed yet.
func (a *Aggregator) Latest() (Snapshot, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.latest, a.ready
}

func (a *Aggregator) build(ctx context.Context) (Snapshot, error) {
	requests, err := recordstore.FetchAll[models.DriverRequest](ctx, a.Store, recordstore.CollectionRequestHandle, recordstore.ListOptions{
		PerPage: a.PageSize,
		Expand:  "driver_id",
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch driver requests: %w", err)
	}
	if len(requests) == 0 {
		return Snapshot{RequestsByHire: map[string][]models.DriverRequest{}, RefreshedAt: time.Now()}, nil
	}

	hires, err := recordstore.FetchAll[models.Hire](ctx, a.Store, recordstore.CollectionHire, recordstore.ListOptions{
		PerPage: a.PageSize,
		Filter:  recordstore.And(recordstore.Eq("ispending", true)),
		Expand:  "user_id",
		Fields:  "*,expand.user_id.usertype,expand.user_id.full_name,expand.user_id.phonenumber,expand.user_id.photo",
		Sort:    "-created1",
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch pending hires: %w", err)
	}

	profiles, err := a.customerProfiles(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch customers: %w", err)
	}

	byHire := BuildRequestIndex(requests)

	queue := make([]QueuedHire, 0, len(hires))
	for _, h := range hires {
		reqs, hasRequest := byHire[h.ID]
		if !hasRequest {
			continue
		}
		profile := resolveCustomer(h, profiles)
		if !profile.UserType.QueueEligible() {
			continue
		}
		queue = append(queue, QueuedHire{
			Hire:                h,
			Customer:            profile,
			RequestCount:        len(reqs),
			HasMultipleRequests: len(reqs) > 1,
		})
	}
	sortQueue(queue)

	observability.QueueSize.Set(float64(len(queue)))
	return Snapshot{Hires: queue, RequestsByHire: byHire, RefreshedAt: time.Now()}, nil
}

// customerProfiles serves the fallback map from the cache when it is warm
// and rebuilds it from the store otherwise.
func (a *Aggregator) customerProfiles(ctx context.Context) (map[string]models.CustomerProfile, error) {
	if a.Cache != nil {
		if profiles, ok := a.Cache.GetAll(ctx); ok {
			return profiles, nil
		}
	}
	customers, err := recordstore.FetchAll[models.Customer](ctx, a.Store, recordstore.CollectionCustomer, recordstore.ListOptions{
		PerPage: a.PageSize,
	})
	if err != nil {
		return nil, err
	}
	profiles := BuildCustomerIndex(customers)
	if a.Cache != nil {
		if err := a.Cache.SetAll(ctx, profiles); err != nil && a.Logger != nil {
			a.Logger.Warn("profile cache update failed", "error", err)
		}
	}
	return profiles, nil
}

// resolveCustomer is the single place where a hire's customer identity is
// decided: relation expansion first, the fallback map second. A hire whose
// customer cannot be resolved at all stays in the queue as unspecified,
// identified by its primary phone.
func resolveCustomer(h models.Hire, profiles map[string]models.CustomerProfile) models.CustomerProfile {
	if h.Expand.User != nil {
		return profileFromCustomer(*h.Expand.User)
	}
	if h.UserID != "" {
		if p, ok := profiles[h.UserID]; ok {
			return p
		}
	}
	return models.CustomerProfile{
		UserType:    models.UserTypeUnspecified,
		PhoneNumber: h.PrimaryPhone.String(),
		FullName:    "Unknown Customer",
	}
}

// sortQueue re-sorts client-side by creation timestamp descending, since
// the backend ordering has proven unreliable. Missing timestamps go last.
func sortQueue(queue []QueuedHire) {
	sort.SliceStable(queue, func(i, j int) bool {
		a, b := queue[i].Created1, queue[j].Created1
		switch {
		case a.IsZero() && b.IsZero():
			return false
		case a.IsZero():
			return false
		case b.IsZero():
			return true
		default:
			return a.After(b.Time)
		}
	})
}

// Filtered applies the staff-selected queue filter to a snapshot.
func (s Snapshot) Filtered(f QueueFilter) []QueuedHire {
	switch f {
	case FilterBusiness:
		return filterHires(s.Hires, func(h QueuedHire) bool { return h.Customer.UserType == models.UserTypeBusiness })
	case FilterNormal:
		return filterHires(s.Hires, func(h QueuedHire) bool { return h.Customer.UserType == models.UserTypeNormal })
	case FilterMultiple:
		return filterHires(s.Hires, func(h QueuedHire) bool { return h.HasMultipleRequests })
	default:
		return s.Hires
	}
}

func filterHires(hires []QueuedHire, keep func(QueuedHire) bool) []QueuedHire {
	out := make([]QueuedHire, 0, len(hires))
	for _, h := range hires {
		if keep(h) {
			out = append(out, h)
		}
	}
	return out
}

// publish installs a snapshot unless a newer refresh has been issued in
// the meantime. The epoch check, the install and the broadcast all happen
// under the same lock: checking before locking would let a slow refresh
// pass the check, lose the CPU, and then overwrite a newer snapshot.
func (a *Aggregator) publish(epoch uint64, snap Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.epoch.Load() != epoch {
		if a.Logger != nil {
			a.Logger.Debug("discarding stale queue refresh", "epoch", epoch)
		}
		return
	}
	a.latest = snap
	a.ready = true
	if a.OnUpdate != nil {
		a.OnUpdate(snap)
	}
}
