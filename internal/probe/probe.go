package probe

import (
	"context"
	"net"
	"time"
)

// Capabilities are the external facilities probes depend on. Any of them may
// be nil at runtime; probes degrade to a skipped or error result instead of
// failing.

// Dialer opens TCP connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Resolver answers DNS queries for a single record type.
type Resolver interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
	LookupNS(ctx context.Context, name string) ([]*net.NS, error)
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// PingStats is what a Pinger reports for one burst of echo requests.
type PingStats struct {
	Sent     int
	Received int
	MinRTT   time.Duration
	AvgRTT   time.Duration
	MaxRTT   time.Duration
}

// LossPercent is 100 when nothing was sent.
func (s PingStats) LossPercent() float64 {
	if s.Sent == 0 {
		return 100
	}
	return float64(s.Sent-s.Received) / float64(s.Sent) * 100
}

// Pinger sends count echo requests, each waiting at most timeout.
type Pinger interface {
	Ping(ctx context.Context, target string, count int, timeout time.Duration) (PingStats, error)
	Method() string
}

// DeepScanner runs an external scanner over the whole port set and returns
// its raw output.
type DeepScanner interface {
	Scan(ctx context.Context, target string, ports []int, timeout time.Duration) (string, error)
	Name() string
}
