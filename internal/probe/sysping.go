package probe

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"time"

	"github.com/hamed0406/netdiag/internal/domain"
)

// SystemPinger shells out to the platform ping binary and parses its summary.
type SystemPinger struct {
	Path string
	GOOS string
}

// DetectSystemPing returns nil when no ping binary is on PATH.
func DetectSystemPing() *SystemPinger {
	path, err := exec.LookPath("ping")
	if err != nil {
		return nil
	}
	return &SystemPinger{Path: path, GOOS: runtime.GOOS}
}

func (s *SystemPinger) Method() string { return "system-ping" }

func (s *SystemPinger) Ping(ctx context.Context, target string, count int, timeout time.Duration) (PingStats, error) {
	budget := time.Duration(count)*(timeout+time.Second) + 2*time.Second
	cctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	out, runErr := exec.CommandContext(cctx, s.Path, s.args(target, count, timeout)...).CombinedOutput()
	stats, ok := parsePingOutput(string(out))
	if !ok {
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			runErr = domain.ErrProbeTimeout
		}
		if runErr == nil {
			runErr = errors.New("unrecognised ping output")
		}
		return PingStats{}, fmt.Errorf("ping: %w", runErr)
	}
	// ping exits non-zero when nothing came back; the summary already says so.
	return stats, nil
}

func (s *SystemPinger) args(target string, count int, timeout time.Duration) []string {
	c := strconv.Itoa(count)
	switch s.GOOS {
	case "darwin", "freebsd", "openbsd", "netbsd":
		return []string{"-c", c, "-W", strconv.Itoa(int(timeout / time.Millisecond)), target}
	default:
		return []string{"-c", c, "-W", strconv.Itoa(int(timeout / time.Second)), target}
	}
}

var (
	pingCountRe = regexp.MustCompile(`(\d+) packets transmitted, (\d+) (?:packets )?received`)
	pingRTTRe   = regexp.MustCompile(`(?:rtt|round-trip) min/avg/max/(?:mdev|stddev) = ([0-9.]+)/([0-9.]+)/([0-9.]+)/`)
)

// parsePingOutput reads the iputils or BSD ping summary block.
func parsePingOutput(out string) (PingStats, bool) {
	m := pingCountRe.FindStringSubmatch(out)
	if len(m) != 3 {
		return PingStats{}, false
	}
	var s PingStats
	s.Sent, _ = strconv.Atoi(m[1])
	s.Received, _ = strconv.Atoi(m[2])

	if r := pingRTTRe.FindStringSubmatch(out); len(r) == 4 {
		s.MinRTT = parseMillis(r[1])
		s.AvgRTT = parseMillis(r[2])
		s.MaxRTT = parseMillis(r[3])
	}
	return s, true
}

func parseMillis(v string) time.Duration {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return time.Duration(math.Round(f * float64(time.Millisecond)))
}
