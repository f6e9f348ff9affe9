package cache

import (
	"context"
	"testing"
	"time"

	"github.com/example/taxi-admin/internal/models"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	ctx := context.Background()

	if _, ok := c.GetAll(ctx); ok {
		t.Fatal("cold cache reported warm")
	}

	profiles := map[string]models.CustomerProfile{
		"c1": {UserType: models.UserTypeNormal, FullName: "Nimal"},
	}
	if err := c.SetAll(ctx, profiles); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok := c.GetAll(ctx)
	if !ok || got["c1"].FullName != "Nimal" {
		t.Fatalf("warm read wrong: ok=%v got=%+v", ok, got)
	}
}

func TestMemoryCacheReturnsCopies(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	ctx := context.Background()

	src := map[string]models.CustomerProfile{"c1": {FullName: "Nimal"}}
	if err := c.SetAll(ctx, src); err != nil {
		t.Fatalf("set: %v", err)
	}
	src["c1"] = models.CustomerProfile{FullName: "mutated"}

	got, _ := c.GetAll(ctx)
	if got["c1"].FullName != "Nimal" {
		t.Fatal("cache shares the caller's map")
	}
	got["c2"] = models.CustomerProfile{}
	again, _ := c.GetAll(ctx)
	if _, leaked := again["c2"]; leaked {
		t.Fatal("read result mutates the cache")
	}
}

func TestMemoryCacheExpires(t *testing.T) {
	c := NewMemoryCache(10 * time.Millisecond)
	ctx := context.Background()

	if err := c.SetAll(ctx, map[string]models.CustomerProfile{"c1": {}}); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(25 * time.Millisecond)
	if _, ok := c.GetAll(ctx); ok {
		t.Fatal("expired entry still served")
	}
}
