package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/hamed0406/netdiag/internal/domain"
)

type Config struct {
	LogDir         string `yaml:"log_dir"`         // operational (zap) logs
	Ports          []int  `yaml:"ports"`           // default port list
	Count          int    `yaml:"count"`           // ICMP echo requests
	TimeoutSeconds int    `yaml:"timeout_seconds"` // per-probe timeout
	Concurrency    int    `yaml:"concurrency"`     // port stage workers, 1 = sequential
	DNSServer      string `yaml:"dns_server"`      // empty = system resolver

	// serve mode
	Addr           string   `yaml:"api_addr"`
	ReportDir      string   `yaml:"report_dir"`
	ReportHistory  int      `yaml:"report_history"`
	PublicAPIKeys  []string `yaml:"public_api_keys"`
	AdminAPIKeys   []string `yaml:"admin_api_keys"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	PublicRPM      int      `yaml:"public_rpm"`
	PublicBurst    int      `yaml:"public_burst"`
	AdminRPM       int      `yaml:"admin_rpm"`
	AdminBurst     int      `yaml:"admin_burst"`

	// periodic re-diagnosis in serve mode
	WatchTargets          []string `yaml:"watch_targets"`
	WatchIntervalSeconds  int      `yaml:"watch_interval_seconds"` // 0 = off
	WatchConcurrency      int      `yaml:"watch_concurrency"`
	NotifyCooldownSeconds int      `yaml:"notify_cooldown_seconds"`
	SlackWebhook          string   `yaml:"slack_webhook"`
}

func Defaults() Config {
	return Config{
		LogDir:         "logs",
		Ports:          append([]int(nil), domain.DefaultPorts...),
		Count:          4,
		TimeoutSeconds: 3,
		Concurrency:    1,
		Addr:           "127.0.0.1:8080",
		ReportDir:      "reports",
		ReportHistory:  100,
		PublicRPM:      60,
		PublicBurst:    20,
		AdminRPM:       10,
		AdminBurst:     5,

		WatchConcurrency:      2,
		NotifyCooldownSeconds: 900,
	}
}

// Load reads an optional YAML file over the defaults, then applies the
// environment on top. An empty path means environment only.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides cfg from the environment. Every malformed variable is
// reported, each as a ConfigurationError naming it.
func applyEnv(cfg *Config) error {
	var errs error
	if v := os.Getenv("NETDIAG_LOG_DIR"); v != "" {
		cfg.LogDir = v
	}
	if v := os.Getenv("NETDIAG_PORTS"); v != "" {
		ports, err := domain.ParsePorts(v)
		if err != nil {
			errs = multierr.Append(errs, &domain.ConfigurationError{Field: "NETDIAG_PORTS", Reason: err.Error()})
		} else {
			cfg.Ports = ports
		}
	}
	errs = multierr.Append(errs, envInt("NETDIAG_COUNT", &cfg.Count, 1))
	errs = multierr.Append(errs, envInt("NETDIAG_TIMEOUT", &cfg.TimeoutSeconds, 1))
	errs = multierr.Append(errs, envInt("NETDIAG_CONCURRENCY", &cfg.Concurrency, 1))
	if v := os.Getenv("NETDIAG_DNS_SERVER"); v != "" {
		cfg.DNSServer = v
	}

	if v := os.Getenv("NETDIAG_API_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("NETDIAG_REPORT_DIR"); v != "" {
		cfg.ReportDir = v
	}
	errs = multierr.Append(errs, envInt("NETDIAG_REPORT_HISTORY", &cfg.ReportHistory, 1))
	if v := os.Getenv("PUBLIC_API_KEYS"); v != "" {
		cfg.PublicAPIKeys = splitList(v)
	}
	if v := os.Getenv("ADMIN_API_KEYS"); v != "" {
		cfg.AdminAPIKeys = splitList(v)
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}
	errs = multierr.Append(errs, envInt("PUBLIC_RPM", &cfg.PublicRPM, 0))
	errs = multierr.Append(errs, envInt("PUBLIC_BURST", &cfg.PublicBurst, 1))
	errs = multierr.Append(errs, envInt("ADMIN_RPM", &cfg.AdminRPM, 0))
	errs = multierr.Append(errs, envInt("ADMIN_BURST", &cfg.AdminBurst, 1))

	if v := os.Getenv("NETDIAG_WATCH_TARGETS"); v != "" {
		cfg.WatchTargets = splitList(v)
	}
	errs = multierr.Append(errs, envInt("NETDIAG_WATCH_INTERVAL", &cfg.WatchIntervalSeconds, 0))
	errs = multierr.Append(errs, envInt("NETDIAG_WATCH_CONCURRENCY", &cfg.WatchConcurrency, 1))
	errs = multierr.Append(errs, envInt("NETDIAG_NOTIFY_COOLDOWN", &cfg.NotifyCooldownSeconds, 0))
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.SlackWebhook = v
	}
	return errs
}

func envInt(key string, dst *int, floor int) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return &domain.ConfigurationError{Field: key, Reason: fmt.Sprintf("%q is not an integer", v)}
	}
	if n < floor {
		return &domain.ConfigurationError{Field: key, Reason: fmt.Sprintf("must be >= %d", floor)}
	}
	*dst = n
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c Config) validate() error {
	for _, p := range c.Ports {
		if p < 1 || p > 65535 {
			return &domain.ConfigurationError{Field: "ports", Reason: fmt.Sprintf("%d is outside 1-65535", p)}
		}
	}
	if c.Count < 1 {
		return &domain.ConfigurationError{Field: "count", Reason: "must be >= 1"}
	}
	if c.TimeoutSeconds < 1 {
		return &domain.ConfigurationError{Field: "timeout_seconds", Reason: "must be >= 1"}
	}
	if c.Concurrency < 1 {
		return &domain.ConfigurationError{Field: "concurrency", Reason: "must be >= 1"}
	}
	for _, t := range c.WatchTargets {
		req := domain.DiagnosticRequest{Target: t, Ports: c.Ports, PingCount: c.Count, TimeoutSeconds: c.TimeoutSeconds}
		if err := req.Validate(); err != nil {
			return fmt.Errorf("watch_targets: %w", err)
		}
	}
	if c.WatchIntervalSeconds < 0 {
		return &domain.ConfigurationError{Field: "watch_interval_seconds", Reason: "must not be negative"}
	}
	return nil
}
