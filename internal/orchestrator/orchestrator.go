package orchestrator

import (
	"context"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/netdiag/internal/domain"
	"github.com/hamed0406/netdiag/internal/probe"
	"github.com/hamed0406/netdiag/internal/report"
)

type State string

const (
	StateInit    State = "INIT"
	StateDNS     State = "DNS"
	StatePorts   State = "PORTS"
	StateLatency State = "LATENCY"
	StateHTTP    State = "HTTP"
	StateDone    State = "DONE"
)

// Stages lists the probing states in the order they run.
var Stages = []State{StateDNS, StatePorts, StateLatency, StateHTTP}

var banners = map[State]string{
	StateDNS:     "DNS lookups",
	StatePorts:   "Port checks",
	StateLatency: "Latency",
	StateHTTP:    "HTTP checks",
}

// Output says where the run log goes.
type Output struct {
	Path   string
	Mirror io.Writer
}

// Orchestrator runs the four probe stages against one target. It holds no
// per-run state and can be shared between runs; runs writing the same log
// path are serialised.
type Orchestrator struct {
	Logger   *zap.Logger
	Resolver *probe.ResolverProbe
	Ports    *probe.PortProbe
	Latency  *probe.LatencyProbe
	HTTP     *probe.HTTPProbe
	Scanner  probe.DeepScanner

	sinks sync.Map // log path -> *sync.Mutex
}

func New(logger *zap.Logger, caps probe.Capabilities) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		Logger:   logger,
		Resolver: probe.NewResolverProbe(caps.Resolver),
		Ports:    &probe.PortProbe{Dialer: caps.Dialer},
		Latency:  probe.NewLatencyProbe(caps.Pinger),
		HTTP:     probe.NewHTTPProbe(false),
		Scanner:  caps.Scanner,
	}
}

// run is the state of a single invocation.
type run struct {
	o      *Orchestrator
	req    domain.DiagnosticRequest
	sink   *report.Sink
	rep    *domain.DiagnosticReport
	log    *zap.Logger
	state  State
	probes context.Context
}

// Run validates req, truncates the log at out.Path and walks every stage.
// Only an invalid request or an unopenable log are errors; probe failures
// end up in the report. A cancelled ctx stops new probes from being issued
// and yields domain.ErrInterrupted together with the partial report.
func (o *Orchestrator) Run(ctx context.Context, req domain.DiagnosticRequest, out Output) (*domain.DiagnosticReport, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	mu, _ := o.sinks.LoadOrStore(out.Path, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	defer mu.(*sync.Mutex).Unlock()

	sink, err := report.Create(out.Path, out.Mirror)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			o.Logger.Warn("sink_close_error", zap.String("path", out.Path), zap.Error(err))
		}
	}()
	return o.RunWithSink(ctx, req, sink)
}

// RunWithSink is Run with a sink the caller owns.
func (o *Orchestrator) RunWithSink(ctx context.Context, req domain.DiagnosticRequest, sink *report.Sink) (*domain.DiagnosticReport, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	rep := &domain.DiagnosticReport{
		ID:        domain.NewReportID(),
		Request:   req,
		StartedAt: time.Now().UTC(),
	}
	r := &run{
		o:      o,
		req:    req,
		sink:   sink,
		rep:    rep,
		log:    o.Logger.With(zap.String("run_id", string(rep.ID)), zap.String("target", req.Target)),
		state:  StateInit,
		probes: context.WithoutCancel(ctx),
	}
	r.header()

	for _, st := range Stages {
		if ctx.Err() != nil {
			rep.Interrupted = true
			break
		}
		r.enter(st)
		start := time.Now()
		before := len(rep.Results)
		switch st {
		case StateDNS:
			r.dnsStage()
		case StatePorts:
			r.portStage(ctx)
		case StateLatency:
			r.latencyStage(ctx)
		case StateHTTP:
			r.httpStage(ctx)
		}
		r.log.Info("stage_done",
			zap.String("stage", string(st)),
			zap.Int("results", len(rep.Results)-before),
			zap.Duration("took", time.Since(start)),
		)
	}

	rep.FinishedAt = time.Now().UTC()
	if rep.Interrupted {
		r.event("run interrupted after %s: %d results recorded", r.state, len(rep.Results))
		r.log.Warn("run_interrupted", zap.String("state", string(r.state)))
		return rep, domain.ErrInterrupted
	}
	r.enter(StateDone)
	r.event("Diagnostics complete: %d results in %s", len(rep.Results), rep.FinishedAt.Sub(rep.StartedAt).Round(time.Millisecond))
	return rep, nil
}

func (r *run) header() {
	r.event("Network diagnostics for %s", r.req.Target)
	r.event("Options: ports=%s count=%d timeout=%ds deep_scan=%t concurrency=%d",
		domain.JoinPorts(r.req.Ports), r.req.PingCount, r.req.TimeoutSeconds, r.req.UseDeepScan, r.req.Workers())
	r.event("Run ID: %s", r.rep.ID)
	r.log.Info("run_start",
		zap.Ints("ports", r.req.Ports),
		zap.Int("ping_count", r.req.PingCount),
		zap.Int("timeout_seconds", r.req.TimeoutSeconds),
		zap.Bool("deep_scan", r.req.UseDeepScan),
		zap.Int("concurrency", r.req.Workers()),
	)
}

func (r *run) enter(st State) {
	r.state = st
	if title, ok := banners[st]; ok {
		if err := r.sink.Banner(title); err != nil {
			r.log.Warn("sink_write_error", zap.Error(err))
		}
	}
	r.log.Debug("stage_start", zap.String("stage", string(st)))
}

func (r *run) event(format string, args ...any) {
	if err := r.sink.Event(format, args...); err != nil {
		r.log.Warn("sink_write_error", zap.Error(err))
	}
}

// record appends res to the report and flushes it to the log right away.
func (r *run) record(res domain.ProbeResult) {
	r.rep.Results = append(r.rep.Results, res)
	if err := r.sink.Result(res); err != nil {
		r.log.Warn("sink_write_error", zap.String("label", res.Label), zap.Error(err))
	}
	r.log.Debug("probe_done",
		zap.String("category", string(res.Category)),
		zap.String("label", res.Label),
		zap.String("status", res.Status),
	)
}

func (r *run) dnsStage() {
	for _, res := range r.o.Resolver.Resolve(r.probes, r.req.Target) {
		r.record(res)
	}
}

func (r *run) portStage(ctx context.Context) {
	ports := r.req.UniquePorts()
	if r.req.UseDeepScan {
		if r.o.Scanner != nil {
			r.log.Info("deep_scan", zap.String("tool", r.o.Scanner.Name()))
			r.record(probe.DeepScan(r.probes, r.o.Scanner, r.req.Target, ports, r.req.Timeout()))
			return
		}
		r.event("deep scan requested but no scanner is available; falling back to TCP connect")
		r.log.Warn("deep_scan_unavailable", zap.Error(domain.ErrCapabilityUnavailable))
	}

	for res := range r.probePorts(ctx, ports) {
		if res == nil {
			r.rep.Interrupted = true
			continue
		}
		r.record(*res)
	}
}

// probePorts runs the port probes through a pool of req.Workers() and
// yields results in port order. Ports never issued because ctx was
// cancelled come back as nil.
func (r *run) probePorts(ctx context.Context, ports []int) <-chan *domain.ProbeResult {
	slots := make([]chan domain.ProbeResult, len(ports))
	for i := range slots {
		slots[i] = make(chan domain.ProbeResult, 1)
	}

	var wg sync.WaitGroup
	go func() {
		sem := make(chan struct{}, r.req.Workers())
		for i, port := range ports {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				for _, s := range slots[i:] {
					close(s)
				}
				return
			}
			wg.Add(1)
			go func(i, port int) {
				defer wg.Done()
				defer func() { <-sem }()
				slots[i] <- r.o.Ports.Probe(r.probes, r.req.Target, port, r.req.Timeout())
			}(i, port)
		}
	}()

	out := make(chan *domain.ProbeResult)
	go func() {
		defer close(out)
		for _, s := range slots {
			res, ok := <-s
			if !ok {
				out <- nil
				continue
			}
			out <- &res
		}
		wg.Wait()
	}()
	return out
}

func (r *run) latencyStage(ctx context.Context) {
	r.record(r.o.Latency.Ping(ctx, r.req.Target, r.req.PingCount, r.req.Timeout()))
}

func (r *run) httpStage(ctx context.Context) {
	h := r.o.HTTP
	if r.req.InsecureTLS && !h.InsecureTLS {
		h = &probe.HTTPProbe{InsecureTLS: true, Transport: h.Transport}
	}
	for _, scheme := range probe.Schemes {
		if ctx.Err() != nil {
			r.rep.Interrupted = true
			return
		}
		r.record(h.Fetch(r.probes, scheme, r.req.Target, r.req.Timeout()))
	}
}
