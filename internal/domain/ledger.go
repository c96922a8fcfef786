package domain

import "time"

// Observation is one (identity, address, time) tuple read from the access log.
type Observation struct {
	Identity string
	Address  string
	Seen     time.Time
}

// AddressLedger maps identity -> address -> last time the address was seen.
type AddressLedger struct {
	Users map[string]map[string]Timestamp `json:"users"`
}

func NewAddressLedger() *AddressLedger {
	return &AddressLedger{Users: make(map[string]map[string]Timestamp)}
}

// Merge records o, keeping the later of the stored and observed times. It
// reports whether the ledger changed.
func (l *AddressLedger) Merge(o Observation) bool {
	if l.Users == nil {
		l.Users = make(map[string]map[string]Timestamp)
	}
	seen := At(o.Seen)
	addrs, ok := l.Users[o.Identity]
	if !ok {
		addrs = make(map[string]Timestamp)
		l.Users[o.Identity] = addrs
	}
	if prev, ok := addrs[o.Address]; ok && !seen.After(prev.Time) {
		return false
	}
	addrs[o.Address] = seen
	return true
}

// Prune drops every address last seen before horizon and every identity left
// without addresses. It returns the number of addresses removed.
func (l *AddressLedger) Prune(horizon time.Time) int {
	removed := 0
	for name, addrs := range l.Users {
		for addr, seen := range addrs {
			if seen.Before(horizon) {
				delete(addrs, addr)
				removed++
			}
		}
		if len(addrs) == 0 {
			delete(l.Users, name)
		}
	}
	return removed
}

// Len is the number of (identity, address) entries.
func (l *AddressLedger) Len() int {
	n := 0
	for _, addrs := range l.Users {
		n += len(addrs)
	}
	return n
}
