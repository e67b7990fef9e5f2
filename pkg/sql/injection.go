package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheck describes a filter value that failed injection screening.
type InjectionCheck struct {
	Fingerprint string // libinjection fingerprint of the detected pattern
	Value       string // the value that was flagged
}

// ScreenFilterValue checks a literal value lifted from user text before it
// is embedded in a WHERE clause. Planner-extracted values are the only part
// of the generated SQL that originates verbatim from user input, so they are
// the only part screened.
//
// Returns nil when the value is clean.
func ScreenFilterValue(value string) *InjectionCheck {
	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if !isSQLi {
		return nil
	}
	return &InjectionCheck{
		Fingerprint: string(fingerprint),
		Value:       value,
	}
}
