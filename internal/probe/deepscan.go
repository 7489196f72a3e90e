package probe

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/hamed0406/netdiag/internal/domain"
)

const DeepScanLabel = "deep-scan"

// NmapScanner delegates the port stage to nmap.
type NmapScanner struct {
	Path string
}

// DetectNmap returns nil when nmap is not on PATH.
func DetectNmap() *NmapScanner {
	path, err := exec.LookPath("nmap")
	if err != nil {
		return nil
	}
	return &NmapScanner{Path: path}
}

func (n *NmapScanner) Name() string { return "nmap" }

func (n *NmapScanner) Scan(ctx context.Context, target string, ports []int, timeout time.Duration) (string, error) {
	budget := time.Duration(len(ports))*timeout + 30*time.Second
	cctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	args := []string{"-Pn", "--host-timeout", fmt.Sprintf("%ds", int(budget/time.Second)), "-p", domain.JoinPorts(ports), target}
	out, err := exec.CommandContext(cctx, n.Path, args...).CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("nmap: %w", err)
	}
	return string(out), nil
}

// DeepScan runs scanner over ports and captures its output verbatim as a
// single PORT result.
func DeepScan(ctx context.Context, scanner DeepScanner, target string, ports []int, timeout time.Duration) domain.ProbeResult {
	if scanner == nil {
		return domain.NewProbeResult(domain.CategoryPort, DeepScanLabel, errorStatus(domain.ErrCapabilityUnavailable), nil)
	}
	out, err := scanner.Scan(ctx, target, ports, timeout)
	detail := map[string]string{
		"tool":   scanner.Name(),
		"ports":  domain.JoinPorts(ports),
		"output": strings.TrimRight(out, "\n"),
	}
	status := "ok"
	if err != nil {
		status = "error:" + err.Error()
	}
	return domain.NewProbeResult(domain.CategoryPort, DeepScanLabel, status, detail)
}
