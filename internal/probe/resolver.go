package probe

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/hamed0406/netdiag/internal/domain"
)

// RecordTypes is the fixed query set, in report order.
var RecordTypes = []string{"A", "AAAA", "MX", "NS", "TXT"}

const (
	NoRecords        = "no records"
	ResolverSkipped  = "skipped: no resolver available"
	dnsQueryTimeout  = 5 * time.Second
	resolverSkipName = "resolver"
)

type ResolverProbe struct {
	Resolver Resolver
	Timeout  time.Duration
}

func NewResolverProbe(r Resolver) *ResolverProbe {
	return &ResolverProbe{Resolver: r, Timeout: dnsQueryTimeout}
}

// NewNetResolver returns the OS resolver, or a pure-Go resolver pinned to
// server ("host" or "host:port") when server is set.
func NewNetResolver(server string) *net.Resolver {
	server = strings.TrimSpace(server)
	if server == "" {
		return net.DefaultResolver
	}
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(strings.Trim(server, "[]"), "53")
	}
	return &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			d := net.Dialer{}
			return d.DialContext(ctx, network, server)
		},
	}
}

type answer struct {
	records []string
	err     error
}

// Resolve issues one query per record type. A "not found" answer counts as
// "no records" when some other type resolved, since the name then exists.
func (p *ResolverProbe) Resolve(ctx context.Context, target string) []domain.ProbeResult {
	if p == nil || p.Resolver == nil {
		return []domain.ProbeResult{
			domain.NewProbeResult(domain.CategoryDNS, resolverSkipName, ResolverSkipped, nil),
		}
	}

	answers := make([]answer, len(RecordTypes))
	nameExists := false
	for i, rr := range RecordTypes {
		recs, err := p.query(ctx, rr, target)
		answers[i] = answer{records: recs, err: err}
		if err == nil && len(recs) > 0 {
			nameExists = true
		}
	}

	out := make([]domain.ProbeResult, 0, len(RecordTypes))
	for i, rr := range RecordTypes {
		a := answers[i]
		var res domain.ProbeResult
		switch {
		case a.err == nil && len(a.records) > 0:
			joined := strings.Join(a.records, ", ")
			res = domain.NewProbeResult(domain.CategoryDNS, rr, joined, map[string]string{
				"records": joined,
				"count":   strconv.Itoa(len(a.records)),
			})
		case a.err == nil, nameExists && isNotFound(a.err):
			res = domain.NewProbeResult(domain.CategoryDNS, rr, NoRecords, map[string]string{"count": "0"})
		default:
			res = domain.NewProbeResult(domain.CategoryDNS, rr, "error:"+dnsReason(a.err), nil)
		}
		out = append(out, res)
	}
	return out
}

func (p *ResolverProbe) query(ctx context.Context, rr, name string) ([]string, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = dnsQueryTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch rr {
	case "A", "AAAA":
		network := "ip4"
		if rr == "AAAA" {
			network = "ip6"
		}
		ips, err := p.Resolver.LookupIP(cctx, network, name)
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, len(ips))
		for _, ip := range ips {
			out = append(out, ip.String())
		}
		return out, nil
	case "MX":
		mxs, err := p.Resolver.LookupMX(cctx, name)
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, len(mxs))
		for _, mx := range mxs {
			out = append(out, strconv.Itoa(int(mx.Pref))+" "+strings.TrimSuffix(mx.Host, "."))
		}
		return out, nil
	case "NS":
		nss, err := p.Resolver.LookupNS(cctx, name)
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, len(nss))
		for _, ns := range nss {
			out = append(out, strings.TrimSuffix(ns.Host, "."))
		}
		return out, nil
	case "TXT":
		return p.Resolver.LookupTXT(cctx, name)
	}
	return nil, errors.New("unsupported record type " + rr)
}

// isNotFound reports an empty answer. LookupIP signals "no address of this
// family" with an AddrError, e.g. ip6 for an IPv4 literal.
func isNotFound(err error) bool {
	var de *net.DNSError
	if errors.As(err, &de) {
		return de.IsNotFound
	}
	var ae *net.AddrError
	return errors.As(err, &ae)
}

// dnsReason classifies a lookup error the same way for every record type.
func dnsReason(err error) string {
	var de *net.DNSError
	if errors.As(err, &de) {
		switch {
		case de.IsNotFound:
			return "NXDOMAIN (" + de.Err + ")"
		case de.IsTimeout:
			return "timeout (" + de.Err + ")"
		case de.IsTemporary:
			return "SERVFAIL (" + de.Err + ")"
		}
		return de.Err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return err.Error()
}
