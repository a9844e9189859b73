// Package ipchecker provides utilities for extracting and validating
// client IP addresses from HTTP requests. It guards the internal
// statistics endpoint, which only answers clients of a trusted subnet.
package ipchecker

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/patric-chuzhbe/securevault/internal/logger"
)

// IPChecker is responsible for extracting a client's IP address from
// an HTTP request and validating whether it belongs to a trusted subnet.
type IPChecker struct {
	trustedSubnet *net.IPNet
}

// New creates a new IPChecker instance configured with a trusted subnet.
// If the input trustedSubnet is an empty string, the IPChecker will be
// initialized in a disabled state, so IsTrustedSubnetEmpty will return true
// and every client is rejected.
//
// The trustedSubnet must be in CIDR notation (e.g., "192.168.1.0/24").
func New(trustedSubnet string) (*IPChecker, error) {
	if trustedSubnet == "" {
		return &IPChecker{
			trustedSubnet: nil,
		}, nil
	}
	_, allowedNet, err := net.ParseCIDR(trustedSubnet)
	if err != nil {
		return nil, fmt.Errorf("parsing trusted subnet %q: %w", trustedSubnet, err)
	}
	return &IPChecker{
		trustedSubnet: allowedNet,
	}, nil
}

// Check verifies whether the given IP address belongs to the configured
// trusted subnet. If no trusted subnet is configured, it returns false.
func (checker *IPChecker) Check(clientIP net.IP) bool {
	return checker.trustedSubnet != nil && clientIP != nil && checker.trustedSubnet.Contains(clientIP)
}

// GetClientIP extracts the client's IP address from an HTTP request,
// checking in order: the "X-Real-IP" header, the "X-Forwarded-For" header,
// and finally the request's RemoteAddr field.
func (checker *IPChecker) GetClientIP(request *http.Request) (net.IP, error) {
	ip := net.ParseIP(strings.TrimSpace(request.Header.Get("X-Real-IP")))
	if ip != nil {
		return ip, nil
	}
	if xff := request.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		ip := net.ParseIP(strings.TrimSpace(ips[0]))
		if ip == nil {
			return nil, fmt.Errorf("malformed X-Forwarded-For header %q", xff)
		}
		return ip, nil
	}
	host, _, err := net.SplitHostPort(request.RemoteAddr)
	if err != nil {
		return nil, fmt.Errorf("splitting remote address %q: %w", request.RemoteAddr, err)
	}
	return net.ParseIP(host), nil
}

// IsTrustedSubnetEmpty returns true if the IPChecker was initialized
// without a trusted subnet.
func (checker *IPChecker) IsTrustedSubnetEmpty() bool {
	return checker.trustedSubnet == nil
}

// TrustedSubnetOnly is an HTTP middleware answering 403 to every client
// outside the trusted subnet.
func (checker *IPChecker) TrustedSubnetOnly(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		if checker.IsTrustedSubnetEmpty() {
			response.WriteHeader(http.StatusForbidden)
			return
		}

		clientIP, err := checker.GetClientIP(request)
		if err != nil {
			logger.Log.Debugln("Error calling the `checker.GetClientIP()`: ", err)
			response.WriteHeader(http.StatusForbidden)
			return
		}
		if !checker.Check(clientIP) {
			response.WriteHeader(http.StatusForbidden)
			return
		}

		h.ServeHTTP(response, request)
	}

	return http.HandlerFunc(middleware)
}
