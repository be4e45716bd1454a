package clientip

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// RealClientIP returns the client address from r.RemoteAddr. Proxy headers
// are not read here; the RealIP middleware rewrites RemoteAddr only for
// requests arriving from a trusted proxy. IPv6 clients are reduced to their
// /64 prefix.
func RealClientIP(r *http.Request) string {
	host := strings.TrimSpace(hostOnly(r.RemoteAddr))

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return host
	}
	addr = addr.Unmap()
	if addr.Is6() {
		prefix, err := addr.Prefix(64)
		if err == nil {
			return prefix.String()
		}
	}
	return addr.String()
}

// ParseTrusted parses proxy entries given as CIDRs ("10.0.0.0/8") or bare
// addresses ("192.0.2.7").
func ParseTrusted(entries []string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// Forwarded resolves the originating client of r when the direct peer is a
// trusted proxy. X-Forwarded-For is walked right to left and the first hop
// outside trusted wins; X-Real-IP is used when that header is absent.
// ok is false when the peer is untrusted or no usable address is present.
func Forwarded(r *http.Request, trusted []netip.Prefix) (netip.Addr, bool) {
	if len(trusted) == 0 {
		return netip.Addr{}, false
	}
	peer, err := netip.ParseAddr(strings.TrimSpace(hostOnly(r.RemoteAddr)))
	if err != nil || !contains(trusted, peer.Unmap()) {
		return netip.Addr{}, false
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			addr, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				// an unparseable hop was written by someone we cannot vouch for
				return netip.Addr{}, false
			}
			addr = addr.Unmap()
			if !contains(trusted, addr) {
				return addr, true
			}
		}
		return netip.Addr{}, false
	}

	if xrip := strings.TrimSpace(r.Header.Get("X-Real-IP")); xrip != "" {
		addr, err := netip.ParseAddr(xrip)
		if err != nil {
			return netip.Addr{}, false
		}
		return addr.Unmap(), true
	}
	return netip.Addr{}, false
}

func contains(prefixes []netip.Prefix, addr netip.Addr) bool {
	for _, p := range prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func hostOnly(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
