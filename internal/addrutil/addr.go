package addrutil

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
)

const (
	HealthPath = "/health"
	StatusPath = "/api/status"
	StreamPath = "/api/network/ws"
)

// Normalize validates a user-supplied hostname ("name", "name:port",
// "10.0.0.5", "[::1]:8080") and returns it in URL-ready form.
// Raw IPv6 literals are bracketed. Case is preserved since registry keys are
// compared exactly.
func Normalize(hostname string) (string, error) {
	h := strings.TrimSpace(hostname)
	if h == "" {
		return "", fmt.Errorf("hostname is empty")
	}
	if strings.Contains(h, "://") || strings.ContainsAny(h, "/?# \t") {
		return "", fmt.Errorf("hostname %q must be a bare host or host:port", hostname)
	}

	if addr, err := netip.ParseAddr(h); err == nil && addr.Is6() {
		return "[" + addr.String() + "]", nil
	}

	if host, port, err := net.SplitHostPort(h); err == nil {
		if host == "" {
			return "", fmt.Errorf("hostname %q has no host part", hostname)
		}
		if n, err := strconv.Atoi(port); err != nil || n <= 0 || n > 65535 {
			return "", fmt.Errorf("hostname %q has invalid port %q", hostname, port)
		}
		return h, nil
	}
	if strings.Contains(h, ":") && !strings.HasPrefix(h, "[") {
		return "", fmt.Errorf("hostname %q is not a valid host:port", hostname)
	}
	return h, nil
}

// Key returns the registry key for a hostname typed by a user: the
// normalized form when it is valid, the input unchanged otherwise.
func Key(hostname string) string {
	if h, err := Normalize(hostname); err == nil {
		return h
	}
	return hostname
}

// Host strips an optional port from a hostname.
func Host(hostname string) string {
	a := strings.TrimSpace(hostname)
	if a == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(a); err == nil {
		return h
	}
	return strings.Trim(a, "[]")
}

// HTTPURL builds http://{hostname}{path}.
func HTTPURL(hostname, path string) string {
	return "http://" + hostname + path
}

// WSURL builds ws://{hostname}{path}.
func WSURL(hostname, path string) string {
	return "ws://" + hostname + path
}
