package auth

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStaticAPIKeyValidatorParsing(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:ops:editor|viewer, k2:finance:viewer")
	if err != nil {
		t.Fatalf("NewStaticAPIKeyValidator() error = %v", err)
	}
	if validator.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", validator.Len())
	}
	identity, ok := validator.Validate(context.Background(), "k1")
	if !ok {
		t.Fatal("expected key to be valid")
	}
	if identity.Owner != "ops" {
		t.Fatalf("Owner = %q", identity.Owner)
	}
	if !identity.HasRole(RoleEditor) || !identity.CanRead() {
		t.Fatalf("Roles = %v", identity.Roles)
	}
	reader, ok := validator.Validate(context.Background(), "k2")
	if !ok || reader.HasRole(RoleEditor) {
		t.Fatalf("k2 identity = %#v, ok = %v", reader, ok)
	}
	if _, ok := validator.Validate(context.Background(), "nope"); ok {
		t.Fatal("unknown key should not validate")
	}
}

func TestStaticAPIKeyValidatorRejectsBadSpec(t *testing.T) {
	for _, spec := range []string{
		"invalid",
		"k1::viewer",
		"k1:ops:",
		"k1:ops:superuser",
		"k1:ops:viewer,k1:other:editor",
	} {
		if _, err := NewStaticAPIKeyValidator(spec); err == nil {
			t.Fatalf("NewStaticAPIKeyValidator(%q) expected error", spec)
		}
	}
}

func TestEditorCanRead(t *testing.T) {
	if !(Identity{Roles: []string{RoleEditor}}).CanRead() {
		t.Fatal("editor should be able to read")
	}
	if (Identity{}).CanRead() {
		t.Fatal("identity without roles should not read")
	}
}

func TestMiddlewareRequiresKey(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:ops:viewer")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}

	mw := Middleware(slog.New(slog.NewJSONHandler(io.Discard, nil)), validator)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/datasets", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
	if !strings.Contains(rr.Body.String(), "UNAUTHORIZED") {
		t.Fatalf("body = %s", rr.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/datasets", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status with wrong key = %d", rr.Code)
	}
}

func TestMiddlewareAllowsPreflight(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:ops:viewer")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}
	handler := Middleware(nil, validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/v1/datasets", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestMiddlewareInjectsIdentity(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:ops:viewer")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}

	handler := Middleware(nil, validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Fatal("expected identity in context")
		}
		if identity.Owner != "ops" {
			t.Fatalf("Owner = %q", identity.Owner)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, header := range []struct{ name, value string }{
		{"X-API-Key", "k1"},
		{"Authorization", "Bearer k1"},
		{"Authorization", "bearer k1"},
	} {
		req := httptest.NewRequest(http.MethodGet, "/v1/datasets", nil)
		req.Header.Set(header.name, header.value)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusNoContent {
			t.Fatalf("%s: status = %d", header.name, rr.Code)
		}
	}
}
