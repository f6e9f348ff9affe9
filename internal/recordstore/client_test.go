package recordstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/taxi-admin/internal/storetest"
)

func testClient(url string) *Client {
	return New(url, 5*time.Second)
}

type rec struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestFetchAllPagesUntilExhausted(t *testing.T) {
	srv := storetest.New()
	defer srv.Close()
	for i := 0; i < 250; i++ {
		srv.Seed("customer", storetest.Record{"id": fmt.Sprintf("c%03d", i), "name": fmt.Sprintf("n%03d", i)})
	}

	c := testClient(srv.URL())
	items, err := FetchAll[rec](context.Background(), c, "customer", ListOptions{PerPage: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 250 {
		t.Fatalf("expected 250 items, got %d", len(items))
	}
	if got := srv.CountRequests("GET /collections/customer/records"); got != 3 {
		t.Fatalf("expected exactly 3 page fetches, got %d", got)
	}
	// page order is preserved across the concatenation
	if items[0].ID != "c000" || items[249].ID != "c249" {
		t.Fatalf("items out of order: first=%s last=%s", items[0].ID, items[249].ID)
	}
}

func TestFetchAllStopsOnShortPageDespiteTotalPages(t *testing.T) {
	// a backend that reports one page too many; the short page must still
	// terminate the loop
	calls := 0
	h := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"page": 1, "perPage": 100, "totalPages": 2, "totalItems": 3,
			"items": []rec{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		})
	}))
	defer h.Close()

	items, err := FetchAll[rec](context.Background(), testClient(h.URL), "hire", ListOptions{PerPage: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 3 || calls != 1 {
		t.Fatalf("expected 3 items from 1 call, got %d items from %d calls", len(items), calls)
	}
}

func TestFetchAllFailsFastWithoutPartialResult(t *testing.T) {
	srv := storetest.New()
	defer srv.Close()
	srv.Seed("hire", storetest.Record{"id": "h1"})
	srv.FailWith("GET hire", http.StatusInternalServerError)

	items, err := FetchAll[rec](context.Background(), testClient(srv.URL()), "hire", ListOptions{})
	if err == nil {
		t.Fatal("expected an error")
	}
	if items != nil {
		t.Fatalf("expected no partial result, got %d items", len(items))
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusInternalServerError {
		t.Fatalf("expected StatusError 500, got %v", err)
	}
}

func TestPatchMergesFields(t *testing.T) {
	srv := storetest.New()
	defer srv.Close()
	srv.Seed("hire", storetest.Record{"id": "h1", "ispending": true, "pick_location": "Galle"})

	c := testClient(srv.URL())
	out, err := Patch[map[string]any](context.Background(), c, "hire", "h1", map[string]any{"ispending": false, "driverid": "d1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["ispending"] != false || out["driverid"] != "d1" {
		t.Fatalf("patch not applied: %v", out)
	}
	if out["pick_location"] != "Galle" {
		t.Fatalf("patch clobbered untouched field: %v", out)
	}
}

func TestDeleteAndGet(t *testing.T) {
	srv := storetest.New()
	defer srv.Close()
	srv.Seed("driver", storetest.Record{"id": "d1", "name": "Sunil"})

	c := testClient(srv.URL())
	got, err := Get[rec](context.Background(), c, "driver", "d1", "")
	if err != nil || got.Name != "Sunil" {
		t.Fatalf("get: %v %v", got, err)
	}
	if err := c.Delete(context.Background(), "driver", "d1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := Get[rec](context.Background(), c, "driver", "d1", ""); err == nil {
		t.Fatal("expected error getting deleted record")
	}
}

func TestFilterHelpers(t *testing.T) {
	cases := []struct {
		got  string
		want string
	}{
		{And(Eq("ispending", true)), `(ispending=true)`},
		{And(Eq("hire_id", "h1"), Eq("driver_id", "d2")), `(hire_id="h1" && driver_id="d2")`},
		{Or(Eq("id", "a"), Eq("id", "b")), `(id="a" || id="b")`},
		{And(), ""},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Errorf("got %q, want %q", c.got, c.want)
		}
	}
}

func TestFileURL(t *testing.T) {
	c := New("http://store.local/api", time.Second)
	got := c.FileURL("driver", "d1", "photo.jpg")
	want := "http://store.local/api/files/driver/d1/photo.jpg"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
