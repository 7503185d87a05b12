package core

import (
	"encoding/json"
	"fmt"
)

// Any is the wire value for an unconstrained qualifier.
const Any = "Any"

// Qualifier is either Any or a list of constrained values.
// The zero value is Any.
type Qualifier struct {
	values []string
}

// Constrain returns a qualifier restricted to values.
// Constrain() and Constrain("Any") both return Any.
func Constrain(values ...string) Qualifier {
	if len(values) == 0 || (len(values) == 1 && values[0] == Any) {
		return Qualifier{}
	}
	return Qualifier{values: append([]string(nil), values...)}
}

// IsAny reports whether the qualifier is unconstrained.
func (q Qualifier) IsAny() bool {
	return len(q.values) == 0
}

// First returns the first constrained value, or "" for Any.
func (q Qualifier) First() string {
	if q.IsAny() {
		return ""
	}
	return q.values[0]
}

// Values returns a copy of the constrained values.
func (q Qualifier) Values() []string {
	return append([]string(nil), q.values...)
}

func (q Qualifier) String() string {
	if q.IsAny() {
		return Any
	}
	return fmt.Sprint(q.values)
}

// MarshalJSON writes "Any" or the list of values.
func (q Qualifier) MarshalJSON() ([]byte, error) {
	if q.IsAny() {
		return json.Marshal(Any)
	}
	return json.Marshal(q.values)
}

// UnmarshalJSON accepts "Any", a single string, a list of strings or null.
func (q *Qualifier) UnmarshalJSON(data []byte) error {
	var list StringList
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("%w: qualifier must be a string or a list of strings", ErrInvalidQuery)
	}
	*q = Constrain(list...)
	return nil
}

// StringList is a list of strings that also accepts a bare string on the wire.
type StringList []string

// UnmarshalJSON accepts a string, a list of strings or null.
func (l *StringList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = StringList{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("%w: expected a string or a list of strings", ErrInvalidQuery)
	}
	*l = list
	return nil
}
