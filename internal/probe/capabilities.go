package probe

import (
	"net"
)

// Capabilities is the set of facilities picked once at startup.
type Capabilities struct {
	Dialer   Dialer
	Resolver Resolver
	Pinger   Pinger
	Scanner  DeepScanner
}

// Detect probes the host for what is usable: native ICMP before the system
// ping binary, nmap only if installed. dnsServer pins the resolver.
func Detect(dnsServer string) Capabilities {
	c := Capabilities{
		Dialer:   &net.Dialer{},
		Resolver: NewNetResolver(dnsServer),
	}
	if p := DetectICMP(); p != nil {
		c.Pinger = p
	} else if sp := DetectSystemPing(); sp != nil {
		c.Pinger = sp
	}
	if s := DetectNmap(); s != nil {
		c.Scanner = s
	}
	return c
}

// CapabilityStatus is one line of the capabilities report.
type CapabilityStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Using     string `json:"using"`
}

func (c Capabilities) Report() []CapabilityStatus {
	out := []CapabilityStatus{
		{Name: "tcp-connect", Available: c.Dialer != nil, Using: "net.Dialer"},
		{Name: "dns", Available: c.Resolver != nil, Using: "net.Resolver"},
		{Name: "ping", Available: c.Pinger != nil},
		{Name: "deep-scan", Available: c.Scanner != nil},
	}
	if c.Pinger != nil {
		out[2].Using = c.Pinger.Method()
	}
	if c.Scanner != nil {
		out[3].Using = c.Scanner.Name()
	}
	return out
}
