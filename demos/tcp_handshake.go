package demos

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"syscall"
	"time"

	"github.com/OfekiAlm/practical-networking-from-zero-to-hero/catalog"
)

// TCPHandshakeParams are the inputs of the tcp-handshake demo.
type TCPHandshakeParams struct {
	TargetIP   string `json:"target_ip" jsonschema:"description=Public IPv4 address to connect to,example=8.8.8.8"`
	TargetPort int    `json:"target_port" jsonschema:"minimum=1,maximum=65535,description=Destination TCP port"`
	Timeout    int    `json:"timeout,omitempty" jsonschema:"minimum=1,maximum=30,default=5,description=Handshake timeout in seconds"`
	SourcePort int    `json:"source_port,omitempty" jsonschema:"minimum=1024,maximum=65535,description=Local port (ephemeral when omitted)"`
}

// ApplyDefaults implements catalog.Defaulter.
func (p *TCPHandshakeParams) ApplyDefaults() {
	p.Timeout = 5
}

// Validate implements catalog.Params.
func (p *TCPHandshakeParams) Validate() error {
	if _, err := publicIPv4(p.TargetIP); err != nil {
		return catalog.Invalid("target_ip", "%s", err)
	}
	if p.TargetPort < 1 || p.TargetPort > 65535 {
		return catalog.Invalid("target_port", "must be between 1 and 65535, got: %d", p.TargetPort)
	}
	if p.Timeout < 1 || p.Timeout > 30 {
		return catalog.Invalid("timeout", "must be between 1 and 30, got: %d", p.Timeout)
	}
	if p.SourcePort != 0 && (p.SourcePort < 1024 || p.SourcePort > 65535) {
		return catalog.Invalid("source_port", "must be between 1024 and 65535, got: %d", p.SourcePort)
	}
	return nil
}

// publicIPv4 parses s and rejects addresses that would let a caller probe
// the host or its private networks.
func publicIPv4(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil || !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("invalid IPv4 address: %q", s)
	}
	first := addr.As4()[0]
	switch {
	case first == 0, first >= 224, addr.IsLoopback():
		return netip.Addr{}, fmt.Errorf("address range not allowed: %s", s)
	case addr.IsPrivate():
		return netip.Addr{}, fmt.Errorf("private address not allowed: %s", s)
	case addr.IsLinkLocalUnicast():
		return netip.Addr{}, fmt.Errorf("link-local address not allowed: %s", s)
	}
	return addr, nil
}

func tcpHandshakeEntry() catalog.Entry {
	return catalog.Define(catalog.Info{
		ID:               TCPHandshakeID,
		Name:             "TCP 3-Way Handshake",
		Description:      "Open a TCP connection to a public host and walk through SYN, SYN-ACK and ACK.",
		Category:         "layer4",
		MaxRuntime:       30 * time.Second,
		RequiresNetwork:  true,
		RequiresElevated: true,
		Capability:       "NET_RAW",
	}, runTCPHandshake)
}

func runTCPHandshake(ctx context.Context, p *TCPHandshakeParams) (map[string]any, error) {
	addr, err := publicIPv4(p.TargetIP)
	if err != nil {
		return nil, err
	}
	target := netip.AddrPortFrom(addr, uint16(p.TargetPort))
	return performHandshake(ctx, target, p.SourcePort, time.Duration(p.Timeout)*time.Second)
}

// performHandshake connects to target and reports the handshake steps. A
// connection failure yields both the partial report and an error.
func performHandshake(ctx context.Context, target netip.AddrPort, sourcePort int, timeout time.Duration) (map[string]any, error) {
	dialer := net.Dialer{Timeout: timeout}
	if sourcePort != 0 {
		dialer.LocalAddr = &net.TCPAddr{Port: sourcePort}
	}

	report := map[string]any{
		"target_ip":   target.Addr().String(),
		"target_port": int(target.Port()),
		"connected":   false,
	}
	steps := []map[string]any{{
		"step":      1,
		"name":      "SYN",
		"direction": "client_to_server",
		"flags":     "S",
	}}

	start := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp4", target.String())
	elapsed := time.Since(start)
	if err != nil {
		report["steps"] = steps
		report["elapsed_ms"] = msSince(elapsed)
		reason := classifyDialError(err)
		report["reason"] = reason
		return report, fmt.Errorf("handshake with %s failed: %s", target, reason)
	}
	defer conn.Close()

	local, ok := conn.LocalAddr().(*net.TCPAddr)
	if ok {
		report["source_port"] = local.Port
		report["local_address"] = local.String()
	}
	steps = append(steps,
		map[string]any{"step": 2, "name": "SYN-ACK", "direction": "server_to_client", "flags": "SA"},
		map[string]any{"step": 3, "name": "ACK", "direction": "client_to_server", "flags": "A"},
	)
	report["steps"] = steps
	report["connected"] = true
	report["handshake_ms"] = msSince(elapsed)
	return report, nil
}

func classifyDialError(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return "connection refused (RST received, port closed)"
	case errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.ENETUNREACH):
		return "host unreachable"
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return "no SYN-ACK received before timeout (port filtered or host down)"
	default:
		return "connection failed"
	}
}

func msSince(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
