package accesslog

import (
	"net/netip"
	"strings"
	"time"

	"github.com/doc-johnson/xray-reality-vpn/internal/domain"
)

const timeLayout = "2006/01/02 15:04:05"

// ParseLine extracts the client address, identity and time from one relay
// access log line:
//
//	2024/05/01 12:00:00.123456 from 203.0.113.7:51234 accepted tcp:example.com:443 [vless-in -> direct] email: alice
//
// Lines that are not accepted connections, carry no identity tag, or whose
// client is not a numeric IP are rejected.
func ParseLine(line string, loc *time.Location) (domain.Observation, bool) {
	fields := strings.Fields(line)
	if len(fields) < 6 {
		return domain.Observation{}, false
	}
	seen, err := time.ParseInLocation(timeLayout, fields[0]+" "+fields[1], loc)
	if err != nil {
		return domain.Observation{}, false
	}

	i := 2
	if fields[i] == "from" {
		i++
	}
	if i+1 >= len(fields) || fields[i+1] != "accepted" {
		return domain.Observation{}, false
	}
	addr, ok := clientAddress(fields[i])
	if !ok {
		return domain.Observation{}, false
	}

	name := ""
	for j := i + 2; j < len(fields)-1; j++ {
		if fields[j] == "email:" {
			name = fields[j+1]
			break
		}
	}
	if name == "" {
		return domain.Observation{}, false
	}
	return domain.Observation{Identity: name, Address: addr, Seen: seen}, true
}

func clientAddress(tok string) (string, bool) {
	tok = strings.TrimPrefix(strings.TrimPrefix(tok, "tcp:"), "udp:")
	if tok == "" || tok[0] < '0' || tok[0] > '9' {
		return "", false
	}
	if ap, err := netip.ParseAddrPort(tok); err == nil {
		return ap.Addr().Unmap().String(), true
	}
	if a, err := netip.ParseAddr(tok); err == nil {
		return a.Unmap().String(), true
	}
	return "", false
}
