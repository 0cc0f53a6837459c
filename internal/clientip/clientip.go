// Package clientip resolves the address of the client behind a request.
package clientip

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/gaissmai/bart"
)

// DefaultTrustedProxies covers a reverse proxy running on the same host.
var DefaultTrustedProxies = []string{"127.0.0.0/8", "::1/128"}

// Resolver extracts client IPs, honouring forwarding headers only when the
// direct peer is a trusted proxy.
type Resolver struct {
	trusted bart.Table[struct{}]
}

// NewResolver builds a Resolver from a list of proxy addresses or CIDR
// prefixes.
func NewResolver(trustedProxies []string) (*Resolver, error) {
	r := &Resolver{}
	for _, p := range trustedProxies {
		prefix, err := parsePrefix(p)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", p, err)
		}
		r.trusted.Insert(prefix, struct{}{})
	}
	return r, nil
}

func parsePrefix(s string) (netip.Prefix, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, err
		}
		return p.Masked(), nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// Trusted reports whether ip belongs to a trusted proxy.
func (r *Resolver) Trusted(ip string) bool {
	if r == nil {
		return false
	}
	addr, err := netip.ParseAddr(Clean(ip))
	if err != nil {
		return false
	}
	_, ok := r.trusted.Lookup(addr.Unmap())
	return ok
}

// FromRequest returns the client IP for r, without any IPv4-mapped prefix.
// The leftmost X-Forwarded-For entry is used when the peer is trusted,
// then X-Real-IP, else the transport peer address.
func (r *Resolver) FromRequest(req *http.Request) string {
	peer := RemoteHost(req)
	if r.Trusted(peer) {
		if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
			first := strings.TrimSpace(strings.Split(xff, ",")[0])
			if net.ParseIP(first) != nil {
				return Clean(first)
			}
		}
		if xri := strings.TrimSpace(req.Header.Get("X-Real-IP")); xri != "" {
			if net.ParseIP(xri) != nil {
				return Clean(xri)
			}
		}
	}
	return Clean(peer)
}

// RemoteHost returns the host part of req.RemoteAddr.
func RemoteHost(req *http.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}

// Clean strips an IPv4-in-IPv6 "::ffff:" prefix.
func Clean(ip string) string {
	return strings.TrimPrefix(ip, "::ffff:")
}
