package models

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DateFormats are the layouts accepted for the front matter date option.
var DateFormats = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// Date is a calendar date decoded from front matter.
type Date struct {
	time.Time
	Raw string
}

func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range DateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: t, Raw: s}, nil
		}
	}
	return Date{Raw: s}, fmt.Errorf("unrecognized date %q", s)
}

func (d *Date) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: date must be a scalar", node.Line)
	}
	// An unparseable value is kept in Raw and reported by header validation.
	*d, _ = ParseDate(node.Value)
	return nil
}

// Valid reports whether the raw value parsed as a date.
func (d Date) Valid() bool {
	return !d.IsZero()
}

func (d Date) String() string {
	if d.IsZero() {
		return d.Raw
	}
	return d.Format("2006-01-02")
}
