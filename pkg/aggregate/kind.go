package aggregate

import (
	"strings"

	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/histcache/internal/sentinel"
)

// Kind is the closed set of aggregate variants a collection can hold.
type Kind uint8

// Constants for the different aggregate kinds.
const (
	KindUnknown      Kind = iota // zero value, never stored
	KindCounter                  // 1-bin histogram incremented once per call
	KindDistribution             // 1-D fixed-range histogram
	KindProfile                  // mean of y per bin of x
	KindSparse                   // N-D histogram storing populated bins only
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindCounter:
		return "counter"
	case KindDistribution:
		return "distribution"
	case KindProfile:
		return "profile"
	case KindSparse:
		return "sparse"
	case KindUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

// ParseKind converts a configuration string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "counter":
		return KindCounter, nil
	case "distribution", "h1", "histogram":
		return KindDistribution, nil
	case "profile":
		return KindProfile, nil
	case "sparse":
		return KindSparse, nil
	default:
		return KindUnknown, ewrap.Wrapf(sentinel.ErrKindMismatch, "unsupported kind %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}

	*k = parsed

	return nil
}
