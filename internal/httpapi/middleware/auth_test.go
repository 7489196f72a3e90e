package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func serve(h func(http.Handler) http.Handler, header, value string) int {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	rec := httptest.NewRecorder()
	h(okHandler).ServeHTTP(rec, req)
	return rec.Code
}

func TestRequireAdmin_AllowsAdminKey_BlocksPublicKey(t *testing.T) {
	keys := Keys{
		Public: []string{"pub_key"},
		Admin:  []string{"adm_key"},
	}

	if c := serve(RequireAdmin(keys), "X-API-Key", "adm_key"); c != http.StatusOK {
		t.Fatalf("admin key should pass; got %d", c)
	}
	if c := serve(RequireAdmin(keys), "Authorization", "Bearer adm_key"); c != http.StatusOK {
		t.Fatalf("bearer admin key should pass; got %d", c)
	}
	if c := serve(RequireAdmin(keys), "X-API-Key", "pub_key"); c != http.StatusForbidden {
		t.Fatalf("public key should be forbidden; got %d", c)
	}
	if c := serve(RequireAdmin(keys), "", ""); c != http.StatusUnauthorized {
		t.Fatalf("missing key should be 401; got %d", c)
	}
}

func TestRequireAny(t *testing.T) {
	keys := Keys{Public: []string{"pub_key"}, Admin: []string{"adm_key"}}

	for _, k := range []string{"pub_key", "adm_key"} {
		if c := serve(RequireAny(keys), "X-API-Key", k); c != http.StatusOK {
			t.Fatalf("%s should pass; got %d", k, c)
		}
	}
	if c := serve(RequireAny(keys), "X-API-Key", "nope"); c != http.StatusUnauthorized {
		t.Fatalf("unknown key should be 401; got %d", c)
	}
	if c := serve(RequireAny(Keys{}), "", ""); c != http.StatusOK {
		t.Fatalf("no keys configured should pass; got %d", c)
	}
}
