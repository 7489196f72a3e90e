package probe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/hamed0406/netdiag/internal/domain"
)

func TestHTTPProbe_StatusOK(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		w.Write([]byte("ok"))
	}))
	defer s.Close()

	res := NewHTTPProbe(false).FetchURL(context.Background(), s.URL+"/", 2*time.Second)
	if res.Category != domain.CategoryHTTP || res.Label != s.URL+"/" {
		t.Fatalf("unexpected identity: %+v", res)
	}
	if res.Status != "ok" || res.Detail["http_code"] != "200" {
		t.Fatalf("want ok/200, got %q %+v", res.Status, res.Detail)
	}
	connect, err1 := strconv.ParseFloat(res.Detail["connect_time_seconds"], 64)
	total, err2 := strconv.ParseFloat(res.Detail["total_time_seconds"], 64)
	if err1 != nil || err2 != nil || connect < 0 || total < connect {
		t.Fatalf("bad timings: %+v", res.Detail)
	}
}

func TestHTTPProbe_ErrorStatusIsStillOK(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", 500)
	}))
	defer s.Close()

	res := NewHTTPProbe(false).FetchURL(context.Background(), s.URL+"/", 2*time.Second)
	if res.Status != "ok" || res.Detail["http_code"] != "500" {
		t.Fatalf("want ok/500, got %q %+v", res.Status, res.Detail)
	}
}

func TestHTTPProbe_DoesNotFollowRedirects(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://example.com/", http.StatusMovedPermanently)
	}))
	defer s.Close()

	res := NewHTTPProbe(false).FetchURL(context.Background(), s.URL+"/", 2*time.Second)
	if res.Detail["http_code"] != "301" {
		t.Fatalf("want 301, got %+v", res.Detail)
	}
}

type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

func TestHTTPProbe_Failure(t *testing.T) {
	h := &HTTPProbe{Transport: failingTransport{}}
	res := h.Fetch(context.Background(), "https", "192.0.2.1", time.Second)
	if res.Label != "https://192.0.2.1/" {
		t.Fatalf("label=%q", res.Label)
	}
	if !strings.HasPrefix(res.Status, "error:") {
		t.Fatalf("want error status, got %q", res.Status)
	}
	if res.Detail["http_code"] != "000" || res.Detail["connect_time_seconds"] != "-1" || res.Detail["total_time_seconds"] != "-1" {
		t.Fatalf("failure detail wrong: %+v", res.Detail)
	}
}

func TestHTTPProbe_Timeout(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer s.Close()

	res := NewHTTPProbe(false).FetchURL(context.Background(), s.URL+"/", 100*time.Millisecond)
	if !strings.HasPrefix(res.Status, "error:") || res.Detail["http_code"] != "000" {
		t.Fatalf("want timeout error, got %q %+v", res.Status, res.Detail)
	}
}

func TestTargetURL(t *testing.T) {
	cases := []struct{ scheme, target, want string }{
		{"http", "example.com", "http://example.com/"},
		{"https", "192.0.2.1", "https://192.0.2.1/"},
		{"http", "2001:db8::1", "http://[2001:db8::1]/"},
	}
	for _, c := range cases {
		if got := TargetURL(c.scheme, c.target); got != c.want {
			t.Fatalf("TargetURL(%q,%q)=%q want %q", c.scheme, c.target, got, c.want)
		}
	}
	if pad3(0) != "000" || pad3(204) != "204" {
		t.Fatalf("pad3")
	}
}
