package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/hamed0406/netdiag/internal/config"
	"github.com/hamed0406/netdiag/internal/domain"
	"github.com/hamed0406/netdiag/internal/logging"
	"github.com/hamed0406/netdiag/internal/orchestrator"
	"github.com/hamed0406/netdiag/internal/probe"
)

// detect is swapped out by tests.
var detect = probe.Detect

type runFlags struct {
	target      string
	ports       string
	output      string
	count       int
	timeout     int
	nmap        bool
	concurrency int
	insecure    bool
	jsonOut     bool
	quiet       bool
}

func newRunFlags() *runFlags {
	return &runFlags{}
}

func (f *runFlags) register(fs *pflag.FlagSet) {
	def := config.Defaults()
	fs.StringVarP(&f.target, "target", "t", "", "Hostname or IP address to diagnose (required)")
	fs.StringVarP(&f.ports, "ports", "p", domain.JoinPorts(def.Ports), "Comma-separated TCP ports")
	fs.StringVarP(&f.output, "output", "o", "", "Log file (default diag_<target>.log)")
	fs.IntVarP(&f.count, "count", "c", def.Count, "ICMP echo requests to send")
	fs.IntVarP(&f.timeout, "timeout", "T", def.TimeoutSeconds, "Per-probe timeout in seconds")
	fs.BoolVarP(&f.nmap, "nmap", "n", false, "Delegate the port stage to nmap when installed")
	fs.IntVarP(&f.concurrency, "concurrency", "j", def.Concurrency, "Port checks in flight at once")
	fs.BoolVarP(&f.insecure, "insecure", "k", false, "Skip TLS certificate verification for HTTPS")
	fs.BoolVar(&f.jsonOut, "json", false, "Print the report as JSON instead of mirroring the log")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "Do not mirror the log to stdout")
}

// request merges flags over cfg: flags the user set win, the rest come
// from the config file and environment.
func (f *runFlags) request(fs *pflag.FlagSet, cfg config.Config) (domain.DiagnosticRequest, error) {
	req := domain.DiagnosticRequest{
		Target:         strings.TrimSpace(f.target),
		Ports:          cfg.Ports,
		PingCount:      cfg.Count,
		TimeoutSeconds: cfg.TimeoutSeconds,
		UseDeepScan:    f.nmap,
		Concurrency:    cfg.Concurrency,
		InsecureTLS:    f.insecure,
	}
	if fs.Changed("ports") {
		ports, err := domain.ParsePorts(f.ports)
		if err != nil {
			return req, err
		}
		req.Ports = ports
	}
	if fs.Changed("count") {
		req.PingCount = f.count
	}
	if fs.Changed("timeout") {
		req.TimeoutSeconds = f.timeout
	}
	if fs.Changed("concurrency") {
		req.Concurrency = f.concurrency
	}
	return req, req.Validate()
}

func (f *runFlags) outputPath(target string) string {
	if f.output != "" {
		return f.output
	}
	return domain.DefaultLogName(target)
}

func runDiagnostics(cmd *cobra.Command, g *globalFlags, f *runFlags, stdout io.Writer) error {
	if strings.TrimSpace(f.target) == "" {
		return &usageError{err: errors.New("required flag --target not set")}
	}
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return err
	}
	req, err := f.request(cmd.Flags(), cfg)
	if err != nil {
		return &usageError{err: err}
	}

	logger, err := logging.New(logging.Options{Dir: cfg.LogDir, Verbose: g.verbose, Console: cmd.ErrOrStderr()})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	caps := detect(cfg.DNSServer)
	logCapabilities(logger, caps)

	out := orchestrator.Output{Path: f.outputPath(req.Target)}
	if !f.quiet && !f.jsonOut {
		out.Mirror = stdout
	}
	rep, err := orchestrator.New(logger, caps).Run(cmd.Context(), req, out)
	if rep != nil && f.jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(rep); encErr != nil {
			logger.Warn("json_output_error", zap.Error(encErr))
		}
	}
	switch {
	case errors.Is(err, domain.ErrInterrupted):
		return &exitError{code: exitInterrupted, err: err}
	case err != nil:
		return &exitError{code: exitFailure, err: err}
	}

	if abs, absErr := filepath.Abs(out.Path); absErr == nil && !f.jsonOut {
		fmt.Fprintf(cmd.ErrOrStderr(), "log written to %s\n", abs)
	}
	return nil
}

func logCapabilities(logger *zap.Logger, caps probe.Capabilities) {
	for _, c := range caps.Report() {
		logger.Info("capability_selected",
			zap.String("capability", c.Name),
			zap.Bool("available", c.Available),
			zap.String("using", c.Using),
		)
	}
}
