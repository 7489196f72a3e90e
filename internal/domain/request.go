package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultPorts mirrors the CLI default port list.
var DefaultPorts = []int{22, 80, 443, 53, 25, 3389, 8080}

// DiagnosticRequest is everything one run needs. Built by the CLI or the API
// and not modified once handed to the orchestrator.
type DiagnosticRequest struct {
	Target         string `json:"target"`
	Ports          []int  `json:"ports"`
	PingCount      int    `json:"ping_count"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	UseDeepScan    bool   `json:"use_deep_scan"`
	Concurrency    int    `json:"concurrency,omitempty"`
	InsecureTLS    bool   `json:"insecure_tls,omitempty"`
}

func (r DiagnosticRequest) Validate() error {
	t := strings.TrimSpace(r.Target)
	if t == "" {
		return &ConfigurationError{Field: "target", Reason: "must not be empty"}
	}
	if strings.Contains(t, "://") || strings.ContainsAny(t, " /") {
		return &ConfigurationError{Field: "target", Reason: fmt.Sprintf("%q is not a hostname or IP address", r.Target)}
	}
	if len(r.Ports) == 0 {
		return &ConfigurationError{Field: "ports", Reason: "at least one port is required"}
	}
	for _, p := range r.Ports {
		if p < 1 || p > 65535 {
			return &ConfigurationError{Field: "ports", Reason: fmt.Sprintf("%d is outside 1-65535", p)}
		}
	}
	if r.PingCount < 1 {
		return &ConfigurationError{Field: "count", Reason: "must be >= 1"}
	}
	if r.TimeoutSeconds < 1 {
		return &ConfigurationError{Field: "timeout", Reason: "must be >= 1"}
	}
	if r.Concurrency < 0 {
		return &ConfigurationError{Field: "concurrency", Reason: "must not be negative"}
	}
	return nil
}

// UniquePorts drops repeated ports, keeping first-seen order.
func (r DiagnosticRequest) UniquePorts() []int {
	seen := make(map[int]struct{}, len(r.Ports))
	out := make([]int, 0, len(r.Ports))
	for _, p := range r.Ports {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func (r DiagnosticRequest) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// Workers is the effective PORT stage pool size (1 means sequential).
func (r DiagnosticRequest) Workers() int {
	if r.Concurrency < 1 {
		return 1
	}
	return r.Concurrency
}

// ParsePorts parses a comma-separated port list such as "22,80,443".
func ParsePorts(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, &ConfigurationError{Field: "ports", Reason: fmt.Sprintf("%q is not a number", part)}
		}
		if n < 1 || n > 65535 {
			return nil, &ConfigurationError{Field: "ports", Reason: fmt.Sprintf("%d is outside 1-65535", n)}
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, &ConfigurationError{Field: "ports", Reason: "at least one port is required"}
	}
	return out, nil
}

// JoinPorts is the inverse of ParsePorts.
func JoinPorts(ports []int) string {
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}

// SanitizeTarget turns a target into something safe for a file name.
func SanitizeTarget(target string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(target) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "target"
	}
	return b.String()
}

// DefaultLogName is the log file name used when no output path is given.
func DefaultLogName(target string) string {
	return "diag_" + SanitizeTarget(target) + ".log"
}
