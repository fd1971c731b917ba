package tuition

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// MonthKey identifies a fee-billing period. Its wire and storage form is "MM-YYYY".
type MonthKey struct {
	Year  int
	Month int
}

// ParseMonthKey accepts exactly "MM-YYYY" with a two-digit month in 01..12.
func ParseMonthKey(s string) (MonthKey, error) {
	if len(s) != 7 || s[2] != '-' {
		return MonthKey{}, fmt.Errorf("%q: %w", s, ErrInvalidMonthKey)
	}
	for i := 0; i < len(s); i++ {
		if i != 2 && (s[i] < '0' || s[i] > '9') {
			return MonthKey{}, fmt.Errorf("%q: %w", s, ErrInvalidMonthKey)
		}
	}
	month, _ := strconv.Atoi(s[:2])
	if month < 1 || month > 12 {
		return MonthKey{}, fmt.Errorf("%q: %w", s, ErrInvalidMonthKey)
	}
	year, _ := strconv.Atoi(s[3:])
	if year < 1 {
		return MonthKey{}, fmt.Errorf("%q: %w", s, ErrInvalidMonthKey)
	}
	return MonthKey{Year: year, Month: month}, nil
}

// MonthOf returns the month containing t, in t's location.
func MonthOf(t time.Time) MonthKey {
	return MonthKey{Year: t.Year(), Month: int(t.Month())}
}

// MonthFromIndex is the inverse of Index.
func MonthFromIndex(i int) MonthKey {
	// Index counts months 1..12, so shift to a zero-based month before dividing.
	i--
	return MonthKey{Year: i / 12, Month: i%12 + 1}
}

func (m MonthKey) String() string {
	return fmt.Sprintf("%02d-%04d", m.Month, m.Year)
}

// Index maps the key onto a line (year*12 + month) so months compare as integers.
func (m MonthKey) Index() int {
	return m.Year*12 + m.Month
}

// Add moves n months forward (or back for negative n).
func (m MonthKey) Add(n int) MonthKey {
	return MonthFromIndex(m.Index() + n)
}

func (m MonthKey) Before(o MonthKey) bool { return m.Index() < o.Index() }

func (m MonthKey) After(o MonthKey) bool { return m.Index() > o.Index() }

// Clamp pins m into [lo, hi]. When lo is after hi, hi wins.
func (m MonthKey) Clamp(lo, hi MonthKey) MonthKey {
	if m.After(hi) {
		return hi
	}
	if m.Before(lo) {
		if lo.After(hi) {
			return hi
		}
		return lo
	}
	return m
}

// Within reports whether m lies in [lo, hi].
func (m MonthKey) Within(lo, hi MonthKey) bool {
	return !m.Before(lo) && !m.After(hi)
}

// Navigate steps delta months from m and clamps the result into [lo, hi].
func Navigate(m MonthKey, delta int, lo, hi MonthKey) MonthKey {
	return m.Add(delta).Clamp(lo, hi)
}

// HasPrev reports whether stepping one month back from m stays at or after lo.
func HasPrev(m, lo MonthKey) bool {
	return m.After(lo)
}

// HasNext reports whether stepping one month forward from m stays at or before hi.
func HasNext(m, hi MonthKey) bool {
	return m.Before(hi)
}

// MonthsBetween lists every key from lo to hi inclusive, oldest first.
func MonthsBetween(lo, hi MonthKey) []MonthKey {
	if lo.After(hi) {
		return nil
	}
	out := make([]MonthKey, 0, hi.Index()-lo.Index()+1)
	for i := lo.Index(); i <= hi.Index(); i++ {
		out = append(out, MonthFromIndex(i))
	}
	return out
}

func (m MonthKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *MonthKey) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseMonthKey(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
