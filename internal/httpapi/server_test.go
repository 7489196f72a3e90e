package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/hamed0406/netdiag/internal/domain"
	apimw "github.com/hamed0406/netdiag/internal/httpapi/middleware"
	"github.com/hamed0406/netdiag/internal/orchestrator"
	"github.com/hamed0406/netdiag/internal/repo/memory"
)

// ---- test helpers ----

type fakeRunner struct {
	mu    sync.Mutex
	reqs  []domain.DiagnosticRequest
	paths []string
	err   error
}

func (f *fakeRunner) Run(_ context.Context, req domain.DiagnosticRequest, out orchestrator.Output) (*domain.DiagnosticReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	f.paths = append(f.paths, out.Path)
	rep := &domain.DiagnosticReport{
		ID:      domain.NewReportID(),
		Request: req,
		Results: []domain.ProbeResult{
			domain.NewProbeResult(domain.CategoryHTTP, "http://"+req.Target+"/", "ok", map[string]string{"http_code": "200"}),
		},
	}
	if f.err != nil {
		rep.Interrupted = true
	}
	return rep, f.err
}

func setupRouter(t *testing.T, runner Runner) (http.Handler, string) {
	t.Helper()
	dir := t.TempDir()
	srv := NewServer(zap.NewNop(), memory.New(10), runner, Defaults{
		Ports:          []int{22, 80},
		Count:          4,
		TimeoutSeconds: 3,
		Concurrency:    1,
	}, dir)

	keys := apimw.Keys{
		Public: []string{"pub_test"},
		Admin:  []string{"adm_test"},
	}

	// very high rate limits to avoid flakiness in tests
	return srv.Router(keys, nil, 10_000, 10_000, 10_000, 10_000), dir
}

func do(t *testing.T, ts *httptest.Server, method, path, key, body string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// ---- tests ----

func TestRunDiagnostic_OK_Invalid_Forbidden(t *testing.T) {
	runner := &fakeRunner{}
	h, dir := setupRouter(t, runner)
	ts := httptest.NewServer(h)
	defer ts.Close()

	// 1) run OK, defaults filled in
	resp := do(t, ts, http.MethodPost, "/api/diagnostics", "adm_test", `{"target":"example.com","nmap":true}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("want 201, got %d", resp.StatusCode)
	}
	var rep domain.DiagnosticReport
	if err := json.NewDecoder(resp.Body).Decode(&rep); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if rep.ID == "" || len(rep.Results) != 1 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	got := runner.reqs[0]
	if got.PingCount != 4 || got.TimeoutSeconds != 3 || len(got.Ports) != 2 || !got.UseDeepScan {
		t.Fatalf("defaults not applied: %+v", got)
	}
	if want := filepath.Join(dir, "diag_example.com.log"); runner.paths[0] != want {
		t.Fatalf("log path=%q want %q", runner.paths[0], want)
	}

	// 2) invalid target is 400 and never reaches the runner
	resp2 := do(t, ts, http.MethodPost, "/api/diagnostics", "adm_test", `{"target":"http://x"}`)
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusBadRequest {
		t.Fatalf("want 400 on invalid target, got %d", resp2.StatusCode)
	}
	if len(runner.reqs) != 1 {
		t.Fatalf("runner called for invalid request")
	}

	// 3) public key may not start runs
	resp3 := do(t, ts, http.MethodPost, "/api/diagnostics", "pub_test", `{"target":"example.com"}`)
	defer resp3.Body.Close()
	if resp3.StatusCode != http.StatusForbidden {
		t.Fatalf("want 403 for public key, got %d", resp3.StatusCode)
	}
}

func TestListAndGet(t *testing.T) {
	h, _ := setupRouter(t, &fakeRunner{})
	ts := httptest.NewServer(h)
	defer ts.Close()

	resp := do(t, ts, http.MethodPost, "/api/diagnostics", "adm_test", `{"target":"192.0.2.1","ports":[443]}`)
	var rep domain.DiagnosticReport
	_ = json.NewDecoder(resp.Body).Decode(&rep)
	resp.Body.Close()

	respL := do(t, ts, http.MethodGet, "/api/diagnostics", "pub_test", "")
	defer respL.Body.Close()
	if respL.StatusCode != 200 {
		t.Fatalf("want 200 list, got %d", respL.StatusCode)
	}
	var list []domain.ReportSummary
	if err := json.NewDecoder(respL.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].Target != "192.0.2.1" || list[0].ID != rep.ID {
		t.Fatalf("unexpected list: %+v", list)
	}

	respG := do(t, ts, http.MethodGet, "/api/diagnostics/"+string(rep.ID), "pub_test", "")
	defer respG.Body.Close()
	if respG.StatusCode != 200 {
		t.Fatalf("want 200 get, got %d", respG.StatusCode)
	}

	respN := do(t, ts, http.MethodGet, "/api/diagnostics/missing", "pub_test", "")
	defer respN.Body.Close()
	if respN.StatusCode != http.StatusNotFound {
		t.Fatalf("want 404, got %d", respN.StatusCode)
	}

	respU := do(t, ts, http.MethodGet, "/api/diagnostics", "", "")
	defer respU.Body.Close()
	if respU.StatusCode != http.StatusUnauthorized {
		t.Fatalf("want 401 without key, got %d", respU.StatusCode)
	}
}

func TestRunDiagnostic_InterruptedStillStored(t *testing.T) {
	h, _ := setupRouter(t, &fakeRunner{err: domain.ErrInterrupted})
	ts := httptest.NewServer(h)
	defer ts.Close()

	resp := do(t, ts, http.MethodPost, "/api/diagnostics", "adm_test", `{"target":"example.com"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("want 201, got %d", resp.StatusCode)
	}
	var rep domain.DiagnosticReport
	_ = json.NewDecoder(resp.Body).Decode(&rep)
	if !rep.Interrupted {
		t.Fatalf("expected interrupted report")
	}
}

func TestHealthz(t *testing.T) {
	h, _ := setupRouter(t, &fakeRunner{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != 200 || rec.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rec.Code, rec.Body.String())
	}
}
