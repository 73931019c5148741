package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coachbook/coachbook/internal/domain"
	"github.com/coachbook/coachbook/libs/auth"
)

func TestParseDateRange(t *testing.T) {
	now := time.Date(2026, 3, 2, 15, 30, 0, 0, time.UTC)

	r := httptest.NewRequest(http.MethodGet, "/slots", nil)
	from, to, err := parseDateRange(r, now)
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if !from.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("default from = %s", from)
	}
	if to.Sub(from) != 13*24*time.Hour {
		t.Fatalf("default window = %s", to.Sub(from))
	}

	r = httptest.NewRequest(http.MethodGet, "/slots?from=2026-03-10&to=2026-03-12", nil)
	from, to, err = parseDateRange(r, now)
	if err != nil {
		t.Fatalf("explicit: %v", err)
	}
	if from.Day() != 10 || to.Day() != 12 {
		t.Fatalf("explicit range %s..%s", from, to)
	}

	r = httptest.NewRequest(http.MethodGet, "/slots?from=2026-03-10&to=2026-03-01", nil)
	if _, _, err = parseDateRange(r, now); err == nil {
		t.Fatal("inverted range should fail")
	}
	r = httptest.NewRequest(http.MethodGet, "/slots?from=2026-03-01&to=2026-06-01", nil)
	if _, _, err = parseDateRange(r, now); err == nil {
		t.Fatal("oversized range should fail")
	}
}

func TestWriteDomainError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrNotFound, http.StatusNotFound, "not_found"},
		{domain.ErrConflict, http.StatusConflict, "slot_taken"},
		{domain.ErrCapacityExceeded, http.StatusConflict, "session_full"},
		{domain.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
		{domain.Invalid("weekday", "must be 0..6"), http.StatusBadRequest, "validation_error"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeDomainError(rec, tc.err)
		if rec.Code != tc.status {
			t.Fatalf("%v: status %d, want %d", tc.err, rec.Code, tc.status)
		}
		var body envelope
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("%v: bad body: %v", tc.err, err)
		}
		if body.Success || body.Error == nil || body.Error.Code != tc.code {
			t.Fatalf("%v: body %+v", tc.err, body)
		}
	}
}

func TestAuthenticate(t *testing.T) {
	const secret = "test-secret"
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFrom(r.Context())
		if claims == nil || claims.Sub != "member-1" {
			t.Fatalf("claims not propagated: %+v", claims)
		}
		w.WriteHeader(http.StatusNoContent)
	})
	handler := Authenticate(secret)(next)

	token, err := auth.SignHS256(auth.Claims{
		Sub:  "member-1",
		Role: RoleMember,
		Exp:  time.Now().Add(time.Hour).Unix(),
		Iat:  time.Now().Unix(),
	}, secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/bookings/mine", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("valid token rejected: %d", rec.Code)
	}

	r = httptest.NewRequest(http.MethodGet, "/bookings/mine", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token accepted: %d", rec.Code)
	}

	r = httptest.NewRequest(http.MethodGet, "/bookings/mine", nil)
	r.Header.Set("Authorization", "Bearer "+token+"tampered")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("tampered token accepted: %d", rec.Code)
	}
}
