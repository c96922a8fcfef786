package counter

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/doc-johnson/xray-reality-vpn/internal/domain"
)

// DefaultPattern selects the per-user counters of the relay.
const DefaultPattern = "user>>>"

const statSep = ">>>"

// Stat is one named counter as returned by the relay's stats service.
type Stat struct {
	Name  string    `json:"name"`
	Value statValue `json:"value"`
}

// statValue accepts both JSON numbers and the quoted form protojson uses for
// 64-bit integers.
type statValue int64

func (v *statValue) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*v = 0
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*v = statValue(n)
	return nil
}

// parseStatName splits "user>>>NAME>>>traffic>>>uplink". ok is false for any
// other counter (inbound, outbound, malformed).
func parseStatName(name string) (user string, uplink bool, ok bool) {
	parts := strings.Split(name, statSep)
	if len(parts) != 4 || parts[0] != "user" || parts[2] != "traffic" || parts[1] == "" {
		return "", false, false
	}
	switch parts[3] {
	case "uplink":
		return parts[1], true, true
	case "downlink":
		return parts[1], false, true
	default:
		return "", false, false
	}
}

// Fold groups per-user uplink and downlink counters into deltas.
func Fold(stats []Stat) map[string]domain.RawTraffic {
	out := make(map[string]domain.RawTraffic)
	for _, s := range stats {
		user, uplink, ok := parseStatName(s.Name)
		if !ok {
			continue
		}
		d := out[user]
		if uplink {
			d.Up += int64(s.Value)
		} else {
			d.Down += int64(s.Value)
		}
		out[user] = d
	}
	return out
}
