package attestation

import (
	"net"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// ParseTrustedProxies parses a comma separated CIDR list.
func ParseTrustedProxies(csv string) ([]*net.IPNet, error) {
	if strings.TrimSpace(csv) == "" {
		return nil, nil
	}
	var nets []*net.IPNet
	for _, raw := range strings.Split(csv, ",") {
		_, n, err := net.ParseCIDR(strings.TrimSpace(raw))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid trusted proxy cidr %q", raw)
		}
		nets = append(nets, n)
	}
	return nets, nil
}

// ClientIP extracts the client address for rate limiting. X-Forwarded-For is
// honoured only when the immediate peer is inside the trusted proxy set, and
// then only its right-most entry (the one our proxy appended) is used. The
// left-most entries are client supplied and never trusted.
func ClientIP(r *http.Request, trustedProxies []*net.IPNet) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	remote := net.ParseIP(host)
	if remote == nil || !ipInNets(remote, trustedProxies) {
		return host
	}
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return host
	}
	parts := strings.Split(xff, ",")
	candidate := strings.TrimSpace(parts[len(parts)-1])
	if net.ParseIP(candidate) == nil {
		return host
	}
	return candidate
}

func ipInNets(ip net.IP, nets []*net.IPNet) bool {
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
