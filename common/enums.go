// Package common keeps enums shared by configuration and the resolution
// engine, so neither has to import the other.
package common

import (
	"errors"
	"fmt"
	"strings"
)

// What to do with a remote @import which could not be fetched or parsed.
// ENUM(keep, marker, abort)
type FailurePolicy int

const (
	// FailurePolicyKeep leaves directive in place.
	FailurePolicyKeep FailurePolicy = iota
	// FailurePolicyMarker leaves directive in place preceded by a comment describing the failure.
	FailurePolicyMarker
	// FailurePolicyAbort fails the whole resolution run.
	FailurePolicyAbort
)

var ErrInvalidFailurePolicy = errors.New("not a valid FailurePolicy")

var failurePolicyNames = []string{"keep", "marker", "abort"}

// FailurePolicyNames returns a list of possible string values of FailurePolicy.
func FailurePolicyNames() []string {
	return append([]string(nil), failurePolicyNames...)
}

// String implements the Stringer interface.
func (p FailurePolicy) String() string {
	if p.IsValid() {
		return failurePolicyNames[p]
	}
	return fmt.Sprintf("FailurePolicy(%d)", int(p))
}

// IsValid provides a quick way to determine if the typed value is part of
// the allowed enumerated values.
func (p FailurePolicy) IsValid() bool {
	return p >= FailurePolicyKeep && int(p) < len(failurePolicyNames)
}

// ParseFailurePolicy attempts to convert a string to a FailurePolicy.
func ParseFailurePolicy(name string) (FailurePolicy, error) {
	for i, n := range failurePolicyNames {
		if strings.EqualFold(n, name) {
			return FailurePolicy(i), nil
		}
	}
	return FailurePolicy(0), fmt.Errorf("%s is %w", name, ErrInvalidFailurePolicy)
}

// MarshalText implements the text marshaller method.
func (p FailurePolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements the text unmarshaller method.
func (p *FailurePolicy) UnmarshalText(text []byte) error {
	tmp, err := ParseFailurePolicy(string(text))
	if err != nil {
		return err
	}
	*p = tmp
	return nil
}
