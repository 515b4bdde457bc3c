package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phonetica/phonauth"
)

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"BEARER  abc ", "abc", true},
		{"Bearer ", "", false},
		{"Basic abc", "", false},
		{"", "", false},
		{"Bear", "", false},
	}
	for _, tc := range cases {
		got, ok := bearerToken(tc.header)
		if got != tc.want || ok != tc.ok {
			t.Errorf("bearerToken(%q) = %q, %v; want %q, %v", tc.header, got, ok, tc.want, tc.ok)
		}
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.7:51234"
	if got := ClientIP(r); got != "203.0.113.7" {
		t.Fatalf("ClientIP = %q", got)
	}
	r.RemoteAddr = "203.0.113.8"
	if got := ClientIP(r); got != "203.0.113.8" {
		t.Fatalf("ClientIP without port = %q", got)
	}
}

func TestStatusOf(t *testing.T) {
	cases := map[error]int{
		phonauth.ErrEmailTaken:          http.StatusBadRequest,
		phonauth.ErrInvalidCredentials:  http.StatusUnauthorized,
		phonauth.ErrUserNotFound:        http.StatusNotFound,
		phonauth.ErrRateLimited:         http.StatusTooManyRequests,
		phonauth.ErrIdentityUnavailable: http.StatusInternalServerError,
		errors.New("boom"):              http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := StatusOf(err); got != want {
			t.Errorf("StatusOf(%v) = %d, want %d", err, got, want)
		}
	}
}

func TestWriteErrorHidesInternalCause(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, nil, errors.New("pq: connection refused"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Body.String(); got != "{\"detail\":\"Internal server error\"}\n" {
		t.Fatalf("body = %q", got)
	}
}
