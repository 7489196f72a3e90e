package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"
	"time"

	"github.com/hamed0406/netdiag/internal/domain"
)

const (
	PortOpen     = "open"
	PortClosed   = "closed"
	PortFiltered = "filtered/timeout"
)

// PortProbe makes a single TCP connect attempt per port.
type PortProbe struct {
	Dialer Dialer
}

func NewPortProbe(d Dialer) *PortProbe {
	if d == nil {
		d = &net.Dialer{}
	}
	return &PortProbe{Dialer: d}
}

func PortLabel(port int) string {
	return "Port " + strconv.Itoa(port)
}

func (p *PortProbe) Probe(ctx context.Context, host string, port int, timeout time.Duration) domain.ProbeResult {
	label := PortLabel(port)
	if p == nil || p.Dialer == nil {
		return domain.NewProbeResult(domain.CategoryPort, label, errorStatus(domain.ErrCapabilityUnavailable), nil)
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	conn, err := p.Dialer.DialContext(cctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	elapsed := time.Since(start)
	if err != nil {
		return domain.NewProbeResult(domain.CategoryPort, label, dialStatus(err), nil)
	}
	_ = conn.Close()

	return domain.NewProbeResult(domain.CategoryPort, label, PortOpen, map[string]string{
		"connect_time_seconds": seconds(elapsed),
	})
}

// dialStatus maps a failed connect to closed, filtered/timeout or error:<reason>.
func dialStatus(err error) string {
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &dnsErr):
		return errorStatus(err)
	case errors.Is(err, syscall.ECONNREFUSED):
		return PortClosed
	case isTimeout(err):
		return PortFiltered
	default:
		return errorStatus(err)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, domain.ErrProbeTimeout) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// errorStatus renders err as "error:<reason>", dropping the "dial tcp x:y:"
// noise net.OpError adds.
func errorStatus(err error) string {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Err != nil {
		err = opErr.Err
	}
	return "error:" + err.Error()
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}
