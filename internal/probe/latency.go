package probe

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hamed0406/netdiag/internal/domain"
)

const (
	PingLabel      = "ping"
	PingOK         = "ok"
	PingNoResponse = "no response / blocked or unsupported"
)

// LatencyProbe wraps a Pinger. A missing pinger or zero replies are
// reported, not treated as failures.
type LatencyProbe struct {
	Pinger Pinger
}

func NewLatencyProbe(p Pinger) *LatencyProbe {
	return &LatencyProbe{Pinger: p}
}

func (l *LatencyProbe) Ping(ctx context.Context, target string, count int, timeout time.Duration) domain.ProbeResult {
	if l == nil || l.Pinger == nil {
		return domain.NewProbeResult(domain.CategoryLatency, PingLabel, PingNoResponse, map[string]string{
			"method":       "none",
			"sent":         "0",
			"received":     "0",
			"loss_percent": "100",
			"error":        domain.ErrCapabilityUnavailable.Error(),
		})
	}

	stats, err := l.Pinger.Ping(ctx, target, count, timeout)
	detail := map[string]string{
		"method":       l.Pinger.Method(),
		"sent":         strconv.Itoa(stats.Sent),
		"received":     strconv.Itoa(stats.Received),
		"loss_percent": fmt.Sprintf("%.1f", stats.LossPercent()),
	}
	if err != nil {
		detail["error"] = err.Error()
	}
	if stats.Received == 0 {
		return domain.NewProbeResult(domain.CategoryLatency, PingLabel, PingNoResponse, detail)
	}
	detail["rtt_min_ms"] = millis(stats.MinRTT)
	detail["rtt_avg_ms"] = millis(stats.AvgRTT)
	detail["rtt_max_ms"] = millis(stats.MaxRTT)
	return domain.NewProbeResult(domain.CategoryLatency, PingLabel, PingOK, detail)
}

func millis(d time.Duration) string {
	return fmt.Sprintf("%.3f", float64(d)/float64(time.Millisecond))
}

// rttStats folds individual round trips into min/avg/max.
func rttStats(sent int, rtts []time.Duration) PingStats {
	s := PingStats{Sent: sent, Received: len(rtts)}
	if len(rtts) == 0 {
		return s
	}
	var sum time.Duration
	s.MinRTT, s.MaxRTT = rtts[0], rtts[0]
	for _, r := range rtts {
		sum += r
		if r < s.MinRTT {
			s.MinRTT = r
		}
		if r > s.MaxRTT {
			s.MaxRTT = r
		}
	}
	s.AvgRTT = sum / time.Duration(len(rtts))
	return s
}
