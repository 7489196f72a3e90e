package probe

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"strconv"
	"sync"
	"time"

	"github.com/hamed0406/netdiag/internal/domain"
)

var Schemes = []string{"http", "https"}

const failedHTTPCode = "000"

// HTTPProbe fetches scheme://target/ once, without following redirects.
type HTTPProbe struct {
	InsecureTLS bool
	// Transport overrides the per-request transport; tests use it.
	Transport http.RoundTripper
}

func NewHTTPProbe(insecure bool) *HTTPProbe {
	return &HTTPProbe{InsecureTLS: insecure}
}

func TargetURL(scheme, target string) string {
	host := target
	if ip := net.ParseIP(target); ip != nil && ip.To4() == nil {
		host = "[" + target + "]"
	}
	return scheme + "://" + host + "/"
}

func (h *HTTPProbe) Fetch(ctx context.Context, scheme, target string, timeout time.Duration) domain.ProbeResult {
	return h.FetchURL(ctx, TargetURL(scheme, target), timeout)
}

func (h *HTTPProbe) FetchURL(ctx context.Context, url string, timeout time.Duration) domain.ProbeResult {
	fail := func(err error) domain.ProbeResult {
		return domain.NewProbeResult(domain.CategoryHTTP, url, errorStatus(err), map[string]string{
			"http_code":            failedHTTPCode,
			"connect_time_seconds": "-1",
			"total_time_seconds":   "-1",
		})
	}

	var (
		mu        sync.Mutex
		connected time.Time
	)
	trace := &httptrace.ClientTrace{
		ConnectDone: func(_, _ string, err error) {
			if err != nil {
				return
			}
			mu.Lock()
			if connected.IsZero() {
				connected = time.Now()
			}
			mu.Unlock()
		},
	}

	cctx, cancel := context.WithTimeout(httptrace.WithClientTrace(ctx, trace), timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(cctx, http.MethodGet, url, nil)
	if err != nil {
		return fail(err)
	}
	req.Header.Set("User-Agent", "netdiag/1.0")

	client := &http.Client{
		Timeout:   timeout,
		Transport: h.transport(timeout),
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return fail(err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	resp.Body.Close()
	total := time.Since(start)

	mu.Lock()
	connect := time.Duration(0)
	if !connected.IsZero() {
		connect = connected.Sub(start)
	}
	mu.Unlock()

	return domain.NewProbeResult(domain.CategoryHTTP, url, "ok", map[string]string{
		"http_code":            pad3(resp.StatusCode),
		"connect_time_seconds": seconds(connect),
		"total_time_seconds":   seconds(total),
	})
}

func (h *HTTPProbe) transport(timeout time.Duration) http.RoundTripper {
	if h.Transport != nil {
		return h.Transport
	}
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: timeout}).DialContext,
		TLSHandshakeTimeout: timeout,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: h.InsecureTLS}, //nolint:gosec // opt-in via --insecure
		DisableKeepAlives:   true,
	}
}

func pad3(code int) string {
	s := strconv.Itoa(code)
	for len(s) < 3 {
		s = "0" + s
	}
	return s
}
