package domain

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// legacyLayout is the format older collectors wrote into last_seen.
const legacyLayout = "2006-01-02 15:04:05"

// Timestamp is a time that encodes as an RFC 3339 string, or "" when unset.
type Timestamp struct {
	time.Time
}

// At wraps t at whole-second precision, the precision the documents carry.
func At(t time.Time) Timestamp {
	return Timestamp{Time: t.Truncate(time.Second)}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(strconv.Quote(t.Format(time.RFC3339))), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339, s); err == nil {
		t.Time = parsed
		return nil
	}
	parsed, err := time.ParseInLocation(legacyLayout, s, time.Local)
	if err != nil {
		return fmt.Errorf("timestamp %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}
