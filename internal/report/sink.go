package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/hamed0406/netdiag/internal/domain"
)

const (
	resultIndent = "    "
	extraIndent  = "        "
)

// Sink is the append-only text log of a run: one "[<RFC3339 UTC>] <message>"
// line per event. Writes are serialised and go straight to the file so an
// interrupted run still leaves a readable partial log.
type Sink struct {
	mu   sync.Mutex
	w    io.Writer
	file *os.File
	path string
	now  func() time.Time
}

// Create truncates (or creates) path and returns a sink writing to it, and
// to mirror as well when mirror is non-nil.
func Create(path string, mirror io.Writer) (*Sink, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open log sink: %w", err)
	}
	var w io.Writer = f
	if mirror != nil {
		w = io.MultiWriter(f, mirror)
	}
	return &Sink{w: w, file: f, path: path, now: time.Now}, nil
}

// NewSink writes to w only; Close is a no-op.
func NewSink(w io.Writer) *Sink {
	return &Sink{w: w, now: time.Now}
}

func (s *Sink) Path() string { return s.path }

// Event writes one line stamped with the current time.
func (s *Sink) Event(format string, args ...any) error {
	return s.write(s.now(), []string{fmt.Sprintf(format, args...)})
}

func (s *Sink) Banner(title string) error {
	return s.Event("--- %s ---", title)
}

// Result writes res, stamped with its own timestamp, as a single write.
func (s *Sink) Result(res domain.ProbeResult) error {
	return s.write(res.Timestamp, FormatResult(res))
}

func (s *Sink) write(ts time.Time, lines []string) error {
	stamp := "[" + ts.UTC().Format(time.RFC3339) + "] "
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(stamp)
		b.WriteString(l)
		b.WriteByte('\n')
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.w, b.String())
	return err
}

func (s *Sink) Close() error {
	if s.file == nil {
		return nil
	}
	return multierr.Append(s.file.Sync(), s.file.Close())
}

// FormatResult renders res as its log lines (without timestamps): the
// indented "<label>: <status> key=value..." line, then one line per line of
// any multi-line detail value.
func FormatResult(res domain.ProbeResult) []string {
	keys := make([]string, 0, len(res.Detail))
	for k := range res.Detail {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var head strings.Builder
	head.WriteString(resultIndent)
	head.WriteString(res.Label)
	head.WriteString(": ")
	head.WriteString(res.Status)

	var extra []string
	for _, k := range keys {
		v := res.Detail[k]
		switch {
		case v == res.Status:
		case strings.Contains(v, "\n"):
			extra = append(extra, resultIndent+k+":")
			for _, l := range strings.Split(v, "\n") {
				extra = append(extra, extraIndent+strings.TrimRight(l, "\r"))
			}
		default:
			head.WriteString(" ")
			head.WriteString(k)
			head.WriteString("=")
			head.WriteString(quoteIfNeeded(v))
		}
	}
	return append([]string{head.String()}, extra...)
}

func quoteIfNeeded(v string) string {
	if v == "" || strings.ContainsAny(v, " \t=\"") {
		return strconv.Quote(v)
	}
	return v
}
