package assignment

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/example/taxi-admin/internal/models"
	"github.com/example/taxi-admin/internal/recordstore"
	"github.com/example/taxi-admin/internal/storage"
	"github.com/example/taxi-admin/internal/storetest"
)

var fixedNow = time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)

func newCoordinator(srv *storetest.Server) *Coordinator {
	return &Coordinator{
		Store: recordstore.New(srv.URL(), 5*time.Second),
		Now:   func() time.Time { return fixedNow },
	}
}

func seedAssignable(srv *storetest.Server) {
	srv.Seed("hire", storetest.Record{"id": "h1", "ispending": true, "user_id": "c1"})
	srv.Seed("request_handle",
		storetest.Record{"id": "r1", "hire_id": "h1", "driver_id": "d1"},
		storetest.Record{"id": "r2", "hire_id": "h1", "driver_id": "d2"},
	)
}

func TestAssignPatchesHireAndHonoredRequest(t *testing.T) {
	srv := storetest.New()
	defer srv.Close()
	seedAssignable(srv)

	res, err := newCoordinator(srv).Assign(context.Background(), "h1", "d2")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if !res.RequestMarked || res.RequestID != "r2" {
		t.Fatalf("result wrong: %+v", res)
	}

	hire := srv.Get("hire", "h1")
	if hire["driverid"] != "d2" || hire["ispending"] != false {
		t.Fatalf("hire not assigned: %+v", hire)
	}
	if hire["accepted_at"] != fixedNow.Format(time.RFC3339) {
		t.Fatalf("hire accepted_at wrong: %v", hire["accepted_at"])
	}

	honored := srv.Get("request_handle", "r2")
	if honored["is_accepted"] != true {
		t.Fatalf("honored request not marked: %+v", honored)
	}
	if other := srv.Get("request_handle", "r1"); other["is_accepted"] != nil {
		t.Fatalf("competing request was touched: %+v", other)
	}
}

func TestAssignWithoutRequestOnRecordStillSucceeds(t *testing.T) {
	srv := storetest.New()
	defer srv.Close()
	srv.Seed("hire", storetest.Record{"id": "h1", "ispending": true})

	res, err := newCoordinator(srv).Assign(context.Background(), "h1", "d9")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if res.RequestMarked || res.RequestID != "" {
		t.Fatalf("expected unmarked result, got %+v", res)
	}
	if hire := srv.Get("hire", "h1"); hire["driverid"] != "d9" {
		t.Fatalf("hire not assigned: %+v", hire)
	}
}

func TestAssignAbortsWhenHirePatchFails(t *testing.T) {
	srv := storetest.New()
	defer srv.Close()
	seedAssignable(srv)
	srv.FailWith("PATCH hire h1", http.StatusInternalServerError)

	_, err := newCoordinator(srv).Assign(context.Background(), "h1", "d1")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrAcceptanceNotRecorded) {
		t.Fatalf("first-step failure must not report the inconsistency window: %v", err)
	}
	if srv.CountRequests("/collections/request_handle/") != 0 {
		t.Fatalf("request lookup issued after aborted hire patch: %v", srv.Requests())
	}
}

func TestAssignSurfacesUnrecordedAcceptanceWithoutRollback(t *testing.T) {
	srv := storetest.New()
	defer srv.Close()
	seedAssignable(srv)
	srv.FailWith("PATCH request_handle r1", http.StatusBadGateway)

	res, err := newCoordinator(srv).Assign(context.Background(), "h1", "d1")
	if !errors.Is(err, ErrAcceptanceNotRecorded) {
		t.Fatalf("expected ErrAcceptanceNotRecorded, got %v", err)
	}
	if res.RequestMarked {
		t.Fatalf("result claims the request was marked: %+v", res)
	}
	// the hire mutation stays in place
	if hire := srv.Get("hire", "h1"); hire["driverid"] != "d1" || hire["ispending"] != false {
		t.Fatalf("hire patch was rolled back: %+v", hire)
	}
}

func TestRetryAcceptanceRepairsTheSecondWrite(t *testing.T) {
	srv := storetest.New()
	defer srv.Close()
	seedAssignable(srv)
	srv.FailWith("PATCH request_handle r1", http.StatusBadGateway)

	coord := newCoordinator(srv)
	if _, err := coord.Assign(context.Background(), "h1", "d1"); !errors.Is(err, ErrAcceptanceNotRecorded) {
		t.Fatalf("setup assign: %v", err)
	}

	srv.ClearFail("PATCH request_handle r1")
	hirePatches := srv.CountRequests("PATCH /collections/hire/")

	res, err := coord.RetryAcceptance(context.Background(), "h1", "d1")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !res.RequestMarked || res.RequestID != "r1" {
		t.Fatalf("retry result wrong: %+v", res)
	}
	if srv.Get("request_handle", "r1")["is_accepted"] != true {
		t.Fatal("acceptance still not recorded")
	}
	if srv.CountRequests("PATCH /collections/hire/") != hirePatches {
		t.Fatal("retry repeated the hire patch")
	}
}

func TestAssignIsIdempotent(t *testing.T) {
	srv := storetest.New()
	defer srv.Close()
	seedAssignable(srv)

	coord := newCoordinator(srv)
	for i := 0; i < 2; i++ {
		if _, err := coord.Assign(context.Background(), "h1", "d1"); err != nil {
			t.Fatalf("assign %d: %v", i+1, err)
		}
	}
	if hire := srv.Get("hire", "h1"); hire["driverid"] != "d1" {
		t.Fatalf("hire state wrong after repeat: %+v", hire)
	}
}

func TestAssignRejectsMissingSelection(t *testing.T) {
	srv := storetest.New()
	defer srv.Close()

	coord := newCoordinator(srv)
	for _, pair := range [][2]string{{"", "d1"}, {"h1", ""}, {"", ""}} {
		if _, err := coord.Assign(context.Background(), pair[0], pair[1]); !errors.Is(err, ErrNoSelection) {
			t.Fatalf("pair %v: expected ErrNoSelection, got %v", pair, err)
		}
	}
	if len(srv.Requests()) != 0 {
		t.Fatalf("validation failure still hit the store: %v", srv.Requests())
	}
}

func TestAssignRunsBestEffortSideEffects(t *testing.T) {
	srv := storetest.New()
	defer srv.Close()
	seedAssignable(srv)
	srv.Seed("driver", storetest.Record{"id": "d1", "full_name": "Sunil", "onesignal_player_id": "p-1"})

	audit := storage.NewMemoryStore()
	events := &captureEvents{}
	notify := &captureNotify{}
	coord := newCoordinator(srv)
	coord.Audit = audit
	coord.Events = events
	coord.Notify = notify

	if _, err := coord.Assign(context.Background(), "h1", "d1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if got := audit.ByHire("h1"); len(got) != 1 || got[0].DriverID != "d1" {
		t.Fatalf("audit trail wrong: %+v", got)
	}
	if len(events.published) != 1 || events.published[0].HireID != "h1" {
		t.Fatalf("event not published: %+v", events.published)
	}
	if len(notify.confirmed) != 1 || notify.confirmed[0].ID != "d1" {
		t.Fatalf("driver not notified: %+v", notify.confirmed)
	}
}

func TestSideEffectFailuresDoNotFailTheAssignment(t *testing.T) {
	srv := storetest.New()
	defer srv.Close()
	seedAssignable(srv)

	coord := newCoordinator(srv)
	coord.Events = &captureEvents{err: errors.New("broker down")}
	coord.Notify = &captureNotify{err: errors.New("push down")}

	if _, err := coord.Assign(context.Background(), "h1", "d1"); err != nil {
		t.Fatalf("assign should succeed despite side-effect failures: %v", err)
	}
}

func TestEligibleDriversDeduplicates(t *testing.T) {
	srv := storetest.New()
	defer srv.Close()
	srv.Seed("request_handle",
		storetest.Record{"id": "r1", "hire_id": "h1", "driver_id": "d1"},
		storetest.Record{"id": "r2", "hire_id": "h1", "driver_id": "d1"},
		storetest.Record{"id": "r3", "hire_id": "h1", "driver_id": "d2"},
		storetest.Record{"id": "r4", "hire_id": "h2", "driver_id": "d3"},
	)
	srv.Seed("driver",
		storetest.Record{"id": "d1", "full_name": "Sunil"},
		storetest.Record{"id": "d2", "full_name": "Kamal"},
		storetest.Record{"id": "d3", "full_name": "Ruwan"},
	)

	drivers, err := newCoordinator(srv).EligibleDrivers(context.Background(), "h1")
	if err != nil {
		t.Fatalf("eligible drivers: %v", err)
	}
	if len(drivers) != 2 {
		t.Fatalf("expected d1 and d2 exactly once, got %+v", drivers)
	}
	seen := map[string]bool{}
	for _, d := range drivers {
		seen[d.ID] = true
	}
	if !seen["d1"] || !seen["d2"] || seen["d3"] {
		t.Fatalf("wrong candidate set: %v", seen)
	}
}

func TestEligibleDriversEmptyWithoutRequests(t *testing.T) {
	srv := storetest.New()
	defer srv.Close()

	drivers, err := newCoordinator(srv).EligibleDrivers(context.Background(), "h1")
	if err != nil {
		t.Fatalf("eligible drivers: %v", err)
	}
	if len(drivers) != 0 {
		t.Fatalf("expected no candidates, got %+v", drivers)
	}
	if srv.CountRequests("/collections/driver/") != 0 {
		t.Fatalf("driver fetch issued with no candidate ids: %v", srv.Requests())
	}
}

type captureEvents struct {
	published []models.AssignmentEvent
	err       error
}

func (c *captureEvents) PublishAssignment(_ context.Context, ev models.AssignmentEvent) error {
	c.published = append(c.published, ev)
	return c.err
}

type captureNotify struct {
	confirmed []models.Driver
	err       error
}

func (c *captureNotify) AssignmentConfirmed(d models.Driver, _ string) error {
	c.confirmed = append(c.confirmed, d)
	return c.err
}
