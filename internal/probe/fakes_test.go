package probe

import (
	"context"
	"net"
	"time"
)

type dialFunc func(ctx context.Context, network, address string) (net.Conn, error)

func (f dialFunc) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return f(ctx, network, address)
}

// fakeResolver answers from fixed tables; a missing entry is NXDOMAIN.
type fakeResolver struct {
	ips  map[string][]net.IP // keyed by network
	mx   []*net.MX
	ns   []*net.NS
	txt  []string
	errs map[string]error // keyed by record type
}

func notFound(name string) error {
	return &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
}

func (f *fakeResolver) LookupIP(_ context.Context, network, host string) ([]net.IP, error) {
	rr := "A"
	if network == "ip6" {
		rr = "AAAA"
	}
	if err := f.errs[rr]; err != nil {
		return nil, err
	}
	if ips := f.ips[network]; len(ips) > 0 {
		return ips, nil
	}
	return nil, notFound(host)
}

func (f *fakeResolver) LookupMX(_ context.Context, name string) ([]*net.MX, error) {
	if err := f.errs["MX"]; err != nil {
		return nil, err
	}
	if len(f.mx) == 0 {
		return nil, notFound(name)
	}
	return f.mx, nil
}

func (f *fakeResolver) LookupNS(_ context.Context, name string) ([]*net.NS, error) {
	if err := f.errs["NS"]; err != nil {
		return nil, err
	}
	if len(f.ns) == 0 {
		return nil, notFound(name)
	}
	return f.ns, nil
}

func (f *fakeResolver) LookupTXT(_ context.Context, name string) ([]string, error) {
	if err := f.errs["TXT"]; err != nil {
		return nil, err
	}
	if len(f.txt) == 0 {
		return nil, notFound(name)
	}
	return f.txt, nil
}

type fakePinger struct {
	stats PingStats
	err   error
}

func (f *fakePinger) Ping(context.Context, string, int, time.Duration) (PingStats, error) {
	return f.stats, f.err
}

func (f *fakePinger) Method() string { return "fake" }

type fakeScanner struct {
	out   string
	err   error
	ports []int
}

func (f *fakeScanner) Scan(_ context.Context, _ string, ports []int, _ time.Duration) (string, error) {
	f.ports = ports
	return f.out, f.err
}

func (f *fakeScanner) Name() string { return "fake-scan" }

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }
