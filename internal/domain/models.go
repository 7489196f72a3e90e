package domain

import (
	"time"

	"github.com/google/uuid"
)

type Category string

const (
	CategoryDNS     Category = "DNS"
	CategoryPort    Category = "PORT"
	CategoryLatency Category = "LATENCY"
	CategoryHTTP    Category = "HTTP"
)

// ProbeResult is the outcome of one probe invocation. Build it with
// NewProbeResult and treat it as read-only afterwards.
type ProbeResult struct {
	Category  Category          `json:"category"`
	Label     string            `json:"label"`
	Status    string            `json:"status"`
	Detail    map[string]string `json:"detail,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewProbeResult stamps the result with the current UTC time and takes its
// own copy of detail so callers can keep reusing their map.
func NewProbeResult(cat Category, label, status string, detail map[string]string) ProbeResult {
	var d map[string]string
	if len(detail) > 0 {
		d = make(map[string]string, len(detail))
		for k, v := range detail {
			d[k] = v
		}
	}
	return ProbeResult{
		Category:  cat,
		Label:     label,
		Status:    status,
		Detail:    d,
		Timestamp: time.Now().UTC(),
	}
}

type ReportID string

func NewReportID() ReportID {
	return ReportID(uuid.NewString())
}

type DiagnosticReport struct {
	ID          ReportID          `json:"id"`
	Request     DiagnosticRequest `json:"request"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  time.Time         `json:"finished_at"`
	Interrupted bool              `json:"interrupted,omitempty"`
	Results     []ProbeResult     `json:"results"`
}

// Count returns how many results of the given category the report holds.
func (r *DiagnosticReport) Count(cat Category) int {
	n := 0
	for _, res := range r.Results {
		if res.Category == cat {
			n++
		}
	}
	return n
}

// ReportSummary is the list view of a report.
type ReportSummary struct {
	ID          ReportID  `json:"id"`
	Target      string    `json:"target"`
	Results     int       `json:"results"`
	Interrupted bool      `json:"interrupted,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

func (r *DiagnosticReport) Summary() ReportSummary {
	return ReportSummary{
		ID:          r.ID,
		Target:      r.Request.Target,
		Results:     len(r.Results),
		Interrupted: r.Interrupted,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
	}
}
