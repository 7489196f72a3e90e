package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/netdiag/internal/domain"
	"github.com/hamed0406/netdiag/internal/notify"
	"github.com/hamed0406/netdiag/internal/orchestrator"
	"github.com/hamed0406/netdiag/internal/repo"
)

type Runner interface {
	Run(ctx context.Context, req domain.DiagnosticRequest, out orchestrator.Output) (*domain.DiagnosticReport, error)
}

type WatcherConfig struct {
	Targets     []string
	Template    domain.DiagnosticRequest // Target is filled in per run
	ReportDir   string
	Interval    time.Duration // 0 disables the watcher
	Concurrency int           // targets diagnosed at once
	Cooldown    time.Duration // minimum gap between notifications per target
}

// Watcher re-diagnoses a fixed target list on an interval, stores every
// report and notifies when a target's reachability fingerprint changes.
type Watcher struct {
	Logger   *zap.Logger
	Runner   Runner
	Reports  repo.ReportStore
	Notifier notify.Notifier
	cfg      WatcherConfig

	mu    sync.Mutex
	state map[string]watchState
}

type watchState struct {
	fingerprint string
	sentAt      time.Time
}

func NewWatcher(logger *zap.Logger, runner Runner, reports repo.ReportStore, n notify.Notifier, cfg WatcherConfig) *Watcher {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Interval < 0 {
		cfg.Interval = 0
	}
	return &Watcher{
		Logger:   logger,
		Runner:   runner,
		Reports:  reports,
		Notifier: n,
		cfg:      cfg,
		state:    make(map[string]watchState),
	}
}

// Run does an immediate pass, then one per tick, until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	if w.cfg.Interval == 0 || len(w.cfg.Targets) == 0 {
		w.Logger.Info("watcher_disabled")
		return
	}
	t := time.NewTicker(w.cfg.Interval)
	defer t.Stop()

	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			w.Logger.Info("watcher_stopped")
			return
		case <-t.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Watcher) runOnce(ctx context.Context) {
	sem := make(chan struct{}, w.cfg.Concurrency)
	var wg sync.WaitGroup

	for _, target := range w.cfg.Targets {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return
		}
		wg.Add(1)
		go func() {
			defer func() { <-sem }()
			defer wg.Done()
			w.check(ctx, target)
		}()
	}

	wg.Wait()
}

func (w *Watcher) check(ctx context.Context, target string) {
	req := w.cfg.Template
	req.Target = target
	req.Ports = append([]int(nil), w.cfg.Template.Ports...)
	path := filepath.Join(w.cfg.ReportDir, domain.DefaultLogName(target))

	rep, err := w.Runner.Run(ctx, req, orchestrator.Output{Path: path})
	if err != nil && !errors.Is(err, domain.ErrInterrupted) {
		w.Logger.Warn("watcher_run_error", zap.String("target", target), zap.Error(err))
		return
	}
	if err := w.Reports.Save(ctx, rep); err != nil {
		w.Logger.Warn("watcher_save_error", zap.String("target", target), zap.Error(err))
	}
	if rep.Interrupted {
		return
	}

	fp := Fingerprint(rep)
	w.Logger.Debug("watcher_checked",
		zap.String("target", target),
		zap.String("id", string(rep.ID)),
		zap.String("fingerprint", fp),
	)

	prev, seen, send := w.observe(target, fp, time.Now())
	if !send {
		return
	}
	title, text := notify.ReportText(rep)
	title = "Reachability changed: " + title
	if seen {
		text = "was: " + prev + "\nnow: " + fp + "\n" + text
	}
	if err := w.Notifier.Send(ctx, title, text); err != nil {
		w.Logger.Warn("watcher_notify_error", zap.String("target", target), zap.Error(err))
	}
}

// observe records fp for target and says whether a notification is due:
// only on a change from a previously seen fingerprint, outside the cooldown.
func (w *Watcher) observe(target, fp string, now time.Time) (prev string, seen, send bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	st, seen := w.state[target]
	prev = st.fingerprint
	if seen && st.fingerprint == fp {
		return prev, seen, false
	}
	cooled := st.sentAt.IsZero() || now.Sub(st.sentAt) >= w.cfg.Cooldown
	send = seen && cooled && w.Notifier != nil

	st.fingerprint = fp
	if send {
		st.sentAt = now
	}
	w.state[target] = st
	return prev, seen, send
}

// Fingerprint condenses the reachability facts of rep: port states, ping
// outcome and HTTP codes. DNS answers are left out since record order and
// addresses may rotate between runs.
func Fingerprint(rep *domain.DiagnosticReport) string {
	var parts []string
	for _, r := range rep.Results {
		switch r.Category {
		case domain.CategoryPort:
			parts = append(parts, r.Label+"="+r.Status)
		case domain.CategoryLatency:
			parts = append(parts, "ping="+r.Status)
		case domain.CategoryHTTP:
			parts = append(parts, r.Label+"="+r.Detail["http_code"])
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}
