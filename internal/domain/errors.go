package domain

import (
	"errors"
	"fmt"
)

// Probe-level failure classes. Probes use these to classify what went wrong;
// they are turned into ProbeResult statuses and never escape a probe.
var (
	ErrCapabilityUnavailable = errors.New("capability unavailable")
	ErrProbeTimeout          = errors.New("probe timed out")
	ErrProbeNetwork          = errors.New("network error")
)

// ErrInterrupted is returned by a run that was cancelled before DONE.
var ErrInterrupted = errors.New("run interrupted")

// ConfigurationError is fatal: the run aborts before any stage starts.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsConfigurationError reports whether err wraps a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
