package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestFlexStringAcceptsNumbersAndStrings(t *testing.T) {
	var v struct {
		Phone FlexString `json:"phonenumber"`
	}
	if err := json.Unmarshal([]byte(`{"phonenumber": 771234567}`), &v); err != nil {
		t.Fatalf("number: %v", err)
	}
	if v.Phone != "771234567" {
		t.Fatalf("got %q", v.Phone)
	}
	if err := json.Unmarshal([]byte(`{"phonenumber": "071-1234567"}`), &v); err != nil {
		t.Fatalf("string: %v", err)
	}
	if v.Phone != "071-1234567" {
		t.Fatalf("got %q", v.Phone)
	}
	if err := json.Unmarshal([]byte(`{"phonenumber": null}`), &v); err != nil {
		t.Fatalf("null: %v", err)
	}
	if v.Phone != "" {
		t.Fatalf("got %q", v.Phone)
	}
}

func TestTimestampAcceptsStoreLayouts(t *testing.T) {
	cases := []string{
		`"2024-03-01T10:00:00Z"`,
		`"2024-03-01T10:00:00.123Z"`,
		`"2024-03-01 10:00:00.123Z"`,
		`"2024-03-01 10:00:00Z"`,
	}
	for _, c := range cases {
		var ts Timestamp
		if err := json.Unmarshal([]byte(c), &ts); err != nil {
			t.Errorf("%s: %v", c, err)
			continue
		}
		if ts.Year() != 2024 || ts.Month() != time.March {
			t.Errorf("%s parsed to %v", c, ts.Time)
		}
	}
}

func TestTimestampEmptyIsZero(t *testing.T) {
	var ts Timestamp
	if err := json.Unmarshal([]byte(`""`), &ts); err != nil {
		t.Fatalf("empty: %v", err)
	}
	if !ts.IsZero() {
		t.Fatalf("expected zero time, got %v", ts.Time)
	}
	b, err := json.Marshal(ts)
	if err != nil || string(b) != `""` {
		t.Fatalf("zero marshals to %s (%v)", b, err)
	}
}

func TestNormalizeUserType(t *testing.T) {
	cases := map[string]UserType{
		"business_customer": UserTypeBusiness,
		"normal":            UserTypeNormal,
		"normal_customer":   UserTypeNormal,
		"cab_service":       UserTypeCabService,
		"":                  UserTypeUnspecified,
		"something_else":    UserTypeUnspecified,
	}
	for raw, want := range cases {
		if got := NormalizeUserType(raw); got != want {
			t.Errorf("NormalizeUserType(%q) = %q, want %q", raw, got, want)
		}
	}
	if UserTypeCabService.QueueEligible() {
		t.Error("cab_service must never be queue eligible")
	}
	for _, ut := range []UserType{UserTypeBusiness, UserTypeNormal, UserTypeUnspecified} {
		if !ut.QueueEligible() {
			t.Errorf("%q should be queue eligible", ut)
		}
	}
}
