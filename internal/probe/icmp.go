package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/hamed0406/netdiag/internal/domain"
)

const (
	protocolICMP     = 1
	protocolIPv6ICMP = 58
	pingInterval     = time.Second
)

// ICMPPinger sends echo requests itself. Unprivileged mode uses datagram
// ICMP sockets (Linux ping_group_range, macOS); privileged mode needs raw
// socket rights.
type ICMPPinger struct {
	Privileged bool
	Interval   time.Duration
	Resolver   *net.Resolver
}

// DetectICMP returns a native pinger if this process may open ICMP sockets,
// preferring the unprivileged kind.
func DetectICMP() *ICMPPinger {
	for _, privileged := range []bool{false, true} {
		network, addr := icmpNetwork(false, privileged)
		c, err := icmp.ListenPacket(network, addr)
		if err != nil {
			continue
		}
		_ = c.Close()
		return &ICMPPinger{Privileged: privileged, Interval: pingInterval}
	}
	return nil
}

func (p *ICMPPinger) Method() string {
	if p.Privileged {
		return "icmp-raw"
	}
	return "icmp"
}

func icmpNetwork(v6, privileged bool) (network, address string) {
	switch {
	case v6 && privileged:
		return "ip6:ipv6-icmp", "::"
	case v6:
		return "udp6", "::"
	case privileged:
		return "ip4:icmp", "0.0.0.0"
	default:
		return "udp4", "0.0.0.0"
	}
}

func (p *ICMPPinger) Ping(ctx context.Context, target string, count int, timeout time.Duration) (PingStats, error) {
	ip, err := p.resolve(ctx, target)
	if err != nil {
		return PingStats{}, fmt.Errorf("%w: %w", domain.ErrProbeNetwork, err)
	}
	v6 := ip.To4() == nil
	network, laddr := icmpNetwork(v6, p.Privileged)
	conn, err := icmp.ListenPacket(network, laddr)
	if err != nil {
		return PingStats{}, fmt.Errorf("listen %s: %w: %w", network, domain.ErrProbeNetwork, err)
	}
	defer conn.Close()

	var dst net.Addr = &net.IPAddr{IP: ip}
	if !p.Privileged {
		dst = &net.UDPAddr{IP: ip}
	}
	var echoType icmp.Type = ipv4.ICMPTypeEcho
	if v6 {
		echoType = ipv6.ICMPTypeEchoRequest
	}
	interval := p.Interval
	if interval <= 0 || interval > timeout {
		interval = timeout
	}

	id := os.Getpid() & 0xffff
	var (
		rtts    []time.Duration
		sent    int
		lastErr error
	)
	for seq := 1; seq <= count; seq++ {
		if ctx.Err() != nil {
			break
		}
		msg := icmp.Message{
			Type: echoType,
			Body: &icmp.Echo{ID: id, Seq: seq, Data: []byte("netdiag-latency-probe")},
		}
		b, err := msg.Marshal(nil)
		if err != nil {
			return rttStats(sent, rtts), err
		}

		start := time.Now()
		sent++
		if _, err := conn.WriteTo(b, dst); err != nil {
			lastErr = err
		} else if rtt, ok, err := p.awaitReply(conn, v6, id, seq, start, start.Add(timeout)); ok {
			rtts = append(rtts, rtt)
		} else if err != nil {
			lastErr = err
		}

		if seq < count {
			wait(ctx, time.Until(start.Add(interval)))
		}
	}
	return rttStats(sent, rtts), lastErr
}

func (p *ICMPPinger) awaitReply(conn *icmp.PacketConn, v6 bool, id, seq int, start, deadline time.Time) (time.Duration, bool, error) {
	proto := protocolICMP
	var replyType icmp.Type = ipv4.ICMPTypeEchoReply
	if v6 {
		proto = protocolIPv6ICMP
		replyType = ipv6.ICMPTypeEchoReply
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return 0, false, err
	}
	buf := make([]byte, 1500)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return 0, false, nil
			}
			return 0, false, err
		}
		rtt := time.Since(start)
		msg, err := icmp.ParseMessage(proto, buf[:n])
		if err != nil || msg.Type != replyType {
			continue
		}
		echo, ok := msg.Body.(*icmp.Echo)
		if !ok || echo.Seq != seq {
			continue
		}
		// the kernel rewrites the ID on datagram sockets
		if p.Privileged && echo.ID != id {
			continue
		}
		return rtt, true, nil
	}
}

func (p *ICMPPinger) resolve(ctx context.Context, target string) (net.IP, error) {
	if ip := net.ParseIP(target); ip != nil {
		return ip, nil
	}
	r := p.Resolver
	if r == nil {
		r = net.DefaultResolver
	}
	addrs, err := r.LookupIPAddr(ctx, target)
	if err != nil {
		return nil, err
	}
	for _, a := range addrs {
		if a.IP.To4() != nil {
			return a.IP, nil
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("lookup %s: no addresses", target)
	}
	return addrs[0].IP, nil
}

func wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
