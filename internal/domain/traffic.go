package domain

// Traffic is a pair of byte counts as seen from the client: Up is what the
// client sent, Down is what it received.
type Traffic struct {
	Up   uint64 `json:"up"`
	Down uint64 `json:"dn"`
}

// Total is Up + Down.
func (t Traffic) Total() uint64 { return t.Up + t.Down }

// Add returns the component-wise sum.
func (t Traffic) Add(o Traffic) Traffic {
	return Traffic{Up: t.Up + o.Up, Down: t.Down + o.Down}
}

// RawTraffic is a delta exactly as a counter source reported it. The relay
// stores its counters as signed integers, so a reset racing a read can surface
// as a negative value.
type RawTraffic struct {
	Up   int64
	Down int64
}

// Clamp converts r to a Traffic delta, replacing negative components with
// zero. anomalous reports whether any component had to be clamped.
func (r RawTraffic) Clamp() (t Traffic, anomalous bool) {
	if r.Up > 0 {
		t.Up = uint64(r.Up)
	} else if r.Up < 0 {
		anomalous = true
	}
	if r.Down > 0 {
		t.Down = uint64(r.Down)
	} else if r.Down < 0 {
		anomalous = true
	}
	return t, anomalous
}

// Totals is the cumulative traffic of one identity.
type Totals struct {
	Up       uint64    `json:"up"`
	Down     uint64    `json:"dn"`
	LastSeen Timestamp `json:"last_seen"`
}

// Apply folds a delta observed at now into the totals. LastSeen only moves
// when the delta carried traffic.
func (t Totals) Apply(delta Traffic, now Timestamp) Totals {
	t.Up += delta.Up
	t.Down += delta.Down
	if delta.Total() > 0 {
		t.LastSeen = now
	}
	return t
}
