package probe

import (
	"context"
	"net"
	"testing"
)

func statuses(t *testing.T, p *ResolverProbe, target string) map[string]string {
	t.Helper()
	res := p.Resolve(context.Background(), target)
	if len(res) != len(RecordTypes) {
		t.Fatalf("want %d results, got %d", len(RecordTypes), len(res))
	}
	out := make(map[string]string, len(res))
	for i, r := range res {
		if r.Label != RecordTypes[i] {
			t.Fatalf("result %d label=%q want %q", i, r.Label, RecordTypes[i])
		}
		out[r.Label] = r.Status
	}
	return out
}

func TestResolve_AllTypes(t *testing.T) {
	r := &fakeResolver{
		ips: map[string][]net.IP{
			"ip4": {net.ParseIP("93.184.216.34")},
			"ip6": {net.ParseIP("2606:2800:220:1::1")},
		},
		mx:  []*net.MX{{Host: "mail.example.com.", Pref: 10}},
		ns:  []*net.NS{{Host: "a.iana-servers.net."}, {Host: "b.iana-servers.net."}},
		txt: []string{"v=spf1 -all"},
	}
	got := statuses(t, NewResolverProbe(r), "example.com")
	want := map[string]string{
		"A":    "93.184.216.34",
		"AAAA": "2606:2800:220:1::1",
		"MX":   "10 mail.example.com",
		"NS":   "a.iana-servers.net, b.iana-servers.net",
		"TXT":  "v=spf1 -all",
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("%s=%q want %q", k, got[k], v)
		}
	}
}

func TestResolve_NoRecordsWhenNameExists(t *testing.T) {
	r := &fakeResolver{ips: map[string][]net.IP{"ip4": {net.ParseIP("192.0.2.10")}}}
	got := statuses(t, NewResolverProbe(r), "v4only.example")
	for _, rr := range []string{"AAAA", "MX", "NS", "TXT"} {
		if got[rr] != NoRecords {
			t.Fatalf("%s=%q want %q", rr, got[rr], NoRecords)
		}
	}
}

func TestResolve_NoAddressOfFamilyIsNoRecords(t *testing.T) {
	r := &fakeResolver{
		ips:  map[string][]net.IP{"ip4": {net.ParseIP("192.0.2.10")}},
		errs: map[string]error{"AAAA": &net.AddrError{Err: "no suitable address found", Addr: "192.0.2.10"}},
	}
	got := statuses(t, NewResolverProbe(r), "hosts-only.example")
	if got["AAAA"] != NoRecords {
		t.Fatalf("AAAA=%q want %q", got["AAAA"], NoRecords)
	}
}

// literalResolver answers address lookups with the system resolver, which
// handles IP literals without touching the network.
type literalResolver struct{ fakeResolver }

func (literalResolver) LookupIP(ctx context.Context, network, host string) ([]net.IP, error) {
	return net.DefaultResolver.LookupIP(ctx, network, host)
}

func TestResolve_IPv4Literal(t *testing.T) {
	got := statuses(t, NewResolverProbe(&literalResolver{}), "192.0.2.1")
	if got["A"] != "192.0.2.1" {
		t.Fatalf("A=%q", got["A"])
	}
	for _, rr := range []string{"AAAA", "MX", "NS", "TXT"} {
		if got[rr] != NoRecords {
			t.Fatalf("%s=%q want %q", rr, got[rr], NoRecords)
		}
	}
}

func TestResolve_NXDOMAIN(t *testing.T) {
	got := statuses(t, NewResolverProbe(&fakeResolver{}), "nonexistent.invalid")
	for rr, st := range got {
		if st != "error:NXDOMAIN (no such host)" {
			t.Fatalf("%s=%q", rr, st)
		}
	}
}

func TestResolve_TimeoutAndServfail(t *testing.T) {
	r := &fakeResolver{
		ips: map[string][]net.IP{"ip4": {net.ParseIP("192.0.2.10")}},
		errs: map[string]error{
			"MX": &net.DNSError{Err: "i/o timeout", IsTimeout: true},
			"NS": &net.DNSError{Err: "server misbehaving", IsTemporary: true},
		},
	}
	got := statuses(t, NewResolverProbe(r), "flaky.example")
	if got["MX"] != "error:timeout (i/o timeout)" {
		t.Fatalf("MX=%q", got["MX"])
	}
	if got["NS"] != "error:SERVFAIL (server misbehaving)" {
		t.Fatalf("NS=%q", got["NS"])
	}
}

func TestResolve_NoResolver(t *testing.T) {
	res := NewResolverProbe(nil).Resolve(context.Background(), "example.com")
	if len(res) != 1 || res[0].Status != ResolverSkipped {
		t.Fatalf("want single skipped result, got %+v", res)
	}
}

func TestNewNetResolver(t *testing.T) {
	if NewNetResolver("") != net.DefaultResolver {
		t.Fatalf("empty server should use the system resolver")
	}
	if r := NewNetResolver("9.9.9.9"); r == net.DefaultResolver || !r.PreferGo {
		t.Fatalf("pinned resolver should be a pure-Go resolver")
	}
}
