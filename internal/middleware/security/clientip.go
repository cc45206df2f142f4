package security

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Resolver finds the client address of a request. Forwarding headers are
// honoured only when the direct peer is a trusted proxy.
type Resolver struct {
	trustedProxies []*net.IPNet
}

var defaultTrusted = []string{"127.0.0.0/8", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "::1/128"}

// NewResolver trusts loopback and private networks plus extra CIDRs.
func NewResolver(extra ...string) (*Resolver, error) {
	r := &Resolver{}
	for _, cidr := range append(append([]string(nil), defaultTrusted...), extra...) {
		_, network, err := net.ParseCIDR(strings.TrimSpace(cidr))
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %s: %w", cidr, err)
		}
		r.trustedProxies = append(r.trustedProxies, network)
	}
	return r, nil
}

// DefaultResolver trusts loopback and private networks only.
func DefaultResolver() *Resolver {
	r, err := NewResolver()
	if err != nil {
		panic(err)
	}
	return r
}

// ClientIP extracts the real client IP. X-Forwarded-For is read from the
// right, skipping trusted proxies; the first untrusted hop is the client.
func (res *Resolver) ClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}

	parsed := net.ParseIP(directIP)
	if parsed == nil || !res.isTrustedProxy(parsed) {
		return directIP
	}

	if hops := forwardedHops(r); len(hops) > 0 {
		client := directIP
		for i := len(hops) - 1; i >= 0; i-- {
			ip := net.ParseIP(hops[i])
			if ip == nil {
				break
			}
			client = hops[i]
			if !res.isTrustedProxy(ip) {
				break
			}
		}
		return client
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" && net.ParseIP(xri) != nil {
		return xri
	}
	return directIP
}

func forwardedHops(r *http.Request) []string {
	var hops []string
	for _, v := range r.Header.Values("X-Forwarded-For") {
		for _, hop := range strings.Split(v, ",") {
			if hop = strings.TrimSpace(hop); hop != "" {
				hops = append(hops, hop)
			}
		}
	}
	return hops
}

func (res *Resolver) isTrustedProxy(ip net.IP) bool {
	for _, network := range res.trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
