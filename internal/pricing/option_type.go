package pricing

import (
	"fmt"
	"strings"
)

// OptionType is the payoff branch of a European option.
type OptionType int

// The zero OptionType is invalid so an unset field never prices as a call.
const (
	Call OptionType = iota + 1 // right to buy at the strike
	Put                        // right to sell at the strike
)

// ParseOptionType accepts "call", "c", "put" or "p" in any case.
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "c":
		return Call, nil
	case "put", "p":
		return Put, nil
	}
	return 0, fmt.Errorf("invalid option type: %q", s)
}

// String returns "call", "put" or "OptionType(n)" for invalid values.
func (t OptionType) String() string {
	switch t {
	case Call:
		return "call"
	case Put:
		return "put"
	}
	return fmt.Sprintf("OptionType(%d)", int(t))
}

// Validate reports whether t is one of the two known variants.
func (t OptionType) Validate() error {
	if t != Call && t != Put {
		return fmt.Errorf("OptionType: Validate: invalid option type: %d", int(t))
	}
	return nil
}

func (t OptionType) MarshalText() ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return []byte(t.String()), nil
}

func (t *OptionType) UnmarshalText(b []byte) error {
	v, err := ParseOptionType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// MarshalCSV and UnmarshalCSV let gocsv read and write the type column.
func (t OptionType) MarshalCSV() (string, error) {
	b, err := t.MarshalText()
	return string(b), err
}

func (t *OptionType) UnmarshalCSV(s string) error {
	return t.UnmarshalText([]byte(s))
}
