package model

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var numericString = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)

// ID is an optional persistent identifier. The zero value is unset.
type ID struct {
	value int64
	set   bool
}

// NewID returns a set identifier.
func NewID(v int64) ID {
	return ID{value: v, set: true}
}

// Value returns the identifier and whether it is set.
func (id ID) Value() (int64, bool) {
	return id.value, id.set
}

// Int64 returns the identifier or zero when unset.
func (id ID) Int64() int64 {
	return id.value
}

// Valid reports whether the identifier holds a finite integral number.
func (id ID) Valid() bool {
	return id.set
}

func (id ID) String() string {
	if !id.set {
		return ""
	}
	return strconv.FormatInt(id.value, 10)
}

// MarshalJSON encodes a set identifier as a number and an unset one as null.
func (id ID) MarshalJSON() ([]byte, error) {
	if !id.set {
		return []byte("null"), nil
	}
	return strconv.AppendInt(nil, id.value, 10), nil
}

// UnmarshalJSON accepts numbers and purely numeric strings. Anything that is
// not a finite integral value decodes as unset rather than failing.
func (id *ID) UnmarshalJSON(data []byte) error {
	*id = ParseID(data)
	return nil
}

// ParseID coerces a raw JSON value to an identifier.
func ParseID(raw []byte) ID {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ID{}
	}
	var text string
	switch raw[0] {
	case '"':
		if err := json.Unmarshal(raw, &text); err != nil {
			return ID{}
		}
		text = strings.TrimSpace(text)
		if !numericString.MatchString(text) {
			return ID{}
		}
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		text = string(raw)
	default:
		return ID{}
	}
	return parseNumber(text)
}

// ParseIDString coerces free text such as a CLI flag or query parameter.
func ParseIDString(text string) ID {
	text = strings.TrimSpace(text)
	if !numericString.MatchString(text) {
		return ID{}
	}
	return parseNumber(text)
}

func parseNumber(text string) ID {
	if v, err := strconv.ParseInt(text, 10, 64); err == nil {
		return NewID(v)
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return ID{}
	}
	if f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return ID{}
	}
	return NewID(int64(f))
}
