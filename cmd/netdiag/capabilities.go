package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hamed0406/netdiag/internal/config"
	"github.com/hamed0406/netdiag/internal/probe"
)

var capabilityHints = map[string]string{
	"tcp-connect": "port checks will report errors",
	"dns":         "DNS stage will be skipped",
	"ping":        "allow unprivileged ICMP (net.ipv4.ping_group_range) or install ping",
	"deep-scan":   "install nmap to use --nmap",
}

func newCapabilitiesCmd(g *globalFlags, stdout io.Writer) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "capabilities",
		Short: "Show which probing facilities are usable on this host",
		Long: `capabilities detects the facilities each stage relies on, the same way a
diagnostic run does, and reports what was selected. Missing facilities are
warnings: a run still completes and records them in its results.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(g.configPath)
			if err != nil {
				return err
			}
			caps := detect(cfg.DNSServer)
			if jsonOut {
				enc := json.NewEncoder(stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(caps.Report())
			}
			printCapabilities(stdout, caps)
			printServeChecks(stdout, cfg)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the capability list as JSON")
	return cmd
}

func printCapabilities(w io.Writer, caps probe.Capabilities) {
	for _, c := range caps.Report() {
		if c.Available {
			fmt.Fprintf(w, "✔ %s: %s\n", c.Name, c.Using)
			continue
		}
		fmt.Fprintf(w, "⚠ %s: unavailable (%s)\n", c.Name, capabilityHints[c.Name])
	}
}

// printServeChecks flags settings that make `netdiag serve` awkward to use.
func printServeChecks(w io.Writer, cfg config.Config) {
	if len(cfg.AdminAPIKeys) == 0 {
		fmt.Fprintln(w, "⚠ serve: ADMIN_API_KEYS is empty (anyone can start diagnostics)")
	}
	if len(cfg.PublicAPIKeys) == 0 && len(cfg.AdminAPIKeys) == 0 {
		fmt.Fprintln(w, "⚠ serve: PUBLIC_API_KEYS is empty (reports are readable without a key)")
	}
	if len(cfg.AllowedOrigins) == 0 {
		fmt.Fprintln(w, "⚠ serve: ALLOWED_ORIGINS is empty (CORS allows every origin)")
	} else {
		fmt.Fprintf(w, "✔ serve: ALLOWED_ORIGINS=%v\n", cfg.AllowedOrigins)
	}
	fmt.Fprintf(w, "✔ serve: listening address %s\n", cfg.Addr)
}
