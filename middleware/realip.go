package middleware

import (
	"net/http"
	"net/netip"
	"strings"
)

// RealIP replaces r.RemoteAddr with the forwarded client address, but only
// for requests whose peer is in trusted. X-Forwarded-For is read right to
// left and the first hop outside trusted wins, so entries a client prepends
// itself are never used. X-Real-IP is consulted when X-Forwarded-For is
// absent. With no trusted prefixes the handler chain is returned unchanged.
func RealIP(trusted []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(trusted) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if addr, ok := forwardedFor(r, trusted); ok {
				r.RemoteAddr = addr.String()
			}
			next.ServeHTTP(w, r)
		})
	}
}

func forwardedFor(r *http.Request, trusted []netip.Prefix) (netip.Addr, bool) {
	peer, err := netip.ParseAddr(ClientIP(r))
	if err != nil || !isTrusted(peer.Unmap(), trusted) {
		return netip.Addr{}, false
	}

	var hops []string
	for _, v := range r.Header.Values("X-Forwarded-For") {
		hops = append(hops, strings.Split(v, ",")...)
	}
	if len(hops) == 0 {
		addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP")))
		if err != nil {
			return netip.Addr{}, false
		}
		return addr.Unmap(), true
	}

	var last netip.Addr
	for i := len(hops) - 1; i >= 0; i-- {
		addr, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			// Garbage to the left of a trusted hop ends the chain.
			break
		}
		last = addr.Unmap()
		if !isTrusted(last, trusted) {
			return last, true
		}
	}
	return last, last.IsValid()
}

func isTrusted(addr netip.Addr, trusted []netip.Prefix) bool {
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
