package domain

import "time"

// DefaultHistoryCapacity is 24h of samples at a one-minute cadence.
const DefaultHistoryCapacity = 1440

// Stamped is implemented by every sample kept in a Ring.
type Stamped interface {
	At() time.Time
}

// TrafficSample holds the per-identity traffic deltas of one run.
type TrafficSample struct {
	TS    Timestamp          `json:"ts"`
	Users map[string]Traffic `json:"users"`
}

func (s TrafficSample) At() time.Time { return s.TS.Time }

// PresenceSample holds the per-identity "active now" address counts of one run.
type PresenceSample struct {
	TS    Timestamp      `json:"ts"`
	Users map[string]int `json:"users"`
}

func (s PresenceSample) At() time.Time { return s.TS.Time }

// Ring is a bounded, oldest-first series of samples. Once full, every push
// evicts from the front.
type Ring[S Stamped] struct {
	Capacity int `json:"capacity"`
	Samples  []S `json:"samples"`
}

type (
	TrafficSeries  = Ring[TrafficSample]
	PresenceSeries = Ring[PresenceSample]
)

func NewRing[S Stamped](capacity int) *Ring[S] {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &Ring[S]{Capacity: capacity, Samples: make([]S, 0)}
}

// Push appends s and evicts the oldest samples beyond capacity. It returns the
// number evicted.
func (r *Ring[S]) Push(s S) int {
	r.Samples = append(r.Samples, s)
	return r.trim()
}

// SetCapacity changes the bound, trimming immediately if the ring shrinks.
func (r *Ring[S]) SetCapacity(capacity int) int {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	r.Capacity = capacity
	return r.trim()
}

func (r *Ring[S]) trim() int {
	if r.Capacity <= 0 {
		r.Capacity = DefaultHistoryCapacity
	}
	excess := len(r.Samples) - r.Capacity
	if excess <= 0 {
		return 0
	}
	r.Samples = append(r.Samples[:0], r.Samples[excess:]...)
	return excess
}

func (r *Ring[S]) Len() int { return len(r.Samples) }

// Since returns the samples stamped at or after t, oldest first.
func (r *Ring[S]) Since(t time.Time) []S {
	for i, s := range r.Samples {
		if !s.At().Before(t) {
			return r.Samples[i:]
		}
	}
	return nil
}

// RollingPeak is the largest presence count recorded for name across the
// retained samples.
func RollingPeak(r *PresenceSeries, name string) int {
	peak := 0
	for _, s := range r.Samples {
		if v := s.Users[name]; v > peak {
			peak = v
		}
	}
	return peak
}

// SumTraffic adds up the deltas of name across samples.
func SumTraffic(samples []TrafficSample, name string) Traffic {
	var sum Traffic
	for _, s := range samples {
		sum = sum.Add(s.Users[name])
	}
	return sum
}
