package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/hamed0406/netdiag/internal/domain"
)

type Notifier interface {
	Send(ctx context.Context, title, text string) error
}

// Multi fans a message out to every notifier and reports all failures.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, title, text string) error {
	var err error
	for _, n := range m {
		if n == nil {
			continue
		}
		err = multierr.Append(err, n.Send(ctx, title, text))
	}
	return err
}

// New returns the notifiers configured for serve mode, or nil when there
// are none.
func New(slackWebhook string) Notifier {
	var m Multi
	if s := NewSlack(slackWebhook); s != nil {
		m = append(m, s)
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

// ReportText renders a short summary of rep: one line per stage.
func ReportText(rep *domain.DiagnosticReport) (title, text string) {
	title = "netdiag: " + rep.Request.Target
	if rep.Interrupted {
		title += " (interrupted)"
	}

	var dns, ports, latency, http []string
	for _, r := range rep.Results {
		switch r.Category {
		case domain.CategoryDNS:
			dns = append(dns, r.Label+"="+r.Status)
		case domain.CategoryPort:
			ports = append(ports, strings.TrimPrefix(r.Label, "Port ")+"="+r.Status)
		case domain.CategoryLatency:
			s := r.Status
			if avg := r.Detail["rtt_avg_ms"]; avg != "" {
				s += " avg=" + avg + "ms"
			}
			if loss := r.Detail["loss_percent"]; loss != "" {
				s += " loss=" + loss + "%"
			}
			latency = append(latency, s)
		case domain.CategoryHTTP:
			http = append(http, r.Label+" "+r.Detail["http_code"])
		}
	}

	var b strings.Builder
	line := func(name string, parts []string) {
		if len(parts) > 0 {
			fmt.Fprintf(&b, "%s: %s\n", name, strings.Join(parts, ", "))
		}
	}
	line("DNS", dns)
	line("Ports", ports)
	line("Latency", latency)
	line("HTTP", http)
	fmt.Fprintf(&b, "Run %s, %d results", rep.ID, len(rep.Results))
	return title, b.String()
}
