package domain

// UserStats is the published current state of one identity.
type UserStats struct {
	Totals
	IPsNow    int `json:"ips_now"`
	IPsMax24h int `json:"ips_max_24h"`
}

// Snapshot is the current-state document. It is also where cumulative totals
// live between runs.
type Snapshot struct {
	Updated Timestamp            `json:"updated"`
	Users   map[string]UserStats `json:"users"`
}

func NewSnapshot() *Snapshot {
	return &Snapshot{Users: make(map[string]UserStats)}
}

// TotalsOf returns the stored totals of name, zero when absent.
func (s *Snapshot) TotalsOf(name string) Totals {
	if s == nil || s.Users == nil {
		return Totals{}
	}
	return s.Users[name].Totals
}

// ResetTotals zeroes the traffic counters and last-seen of name, keeping its
// presence figures.
func (s *Snapshot) ResetTotals(name string) {
	if s.Users == nil {
		s.Users = make(map[string]UserStats)
	}
	u := s.Users[name]
	u.Totals = Totals{}
	s.Users[name] = u
}
