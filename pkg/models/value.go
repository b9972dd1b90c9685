package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// NotAvailable is the literal used wherever an extracted field could not be determined.
const NotAvailable = "N/A"

// ValueKind discriminates the two shapes a record value can take.
type ValueKind int

const (
	// Unparsed holds raw text the model returned (or "N/A").
	Unparsed ValueKind = iota
	// Numeric holds a finite float.
	Numeric
)

// Value is the number-or-string value of a NumericRecord.
// The zero value is Unparsed("") and is never produced by the normalizer.
type Value struct {
	Kind ValueKind
	Num  float64
	Raw  string
}

// NumberValue builds a numeric value.
func NumberValue(f float64) Value {
	return Value{Kind: Numeric, Num: f}
}

// TextValue builds an unparsed value.
func TextValue(s string) Value {
	return Value{Kind: Unparsed, Raw: s}
}

// NAValue is the "N/A" sentinel value.
func NAValue() Value {
	return TextValue(NotAvailable)
}

// IsNumeric reports whether the value holds a number.
func (v Value) IsNumeric() bool {
	return v.Kind == Numeric
}

// Float returns the number and whether the value is numeric.
func (v Value) Float() (float64, bool) {
	if v.Kind != Numeric {
		return 0, false
	}
	return v.Num, true
}

func (v Value) String() string {
	if v.Kind == Numeric {
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	}
	return v.Raw
}

// MarshalJSON writes a JSON number or a JSON string.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Kind == Numeric {
		if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
			return json.Marshal(NotAvailable)
		}
		return json.Marshal(v.Num)
	}
	return json.Marshal(v.Raw)
}

// UnmarshalJSON accepts a number, a string or null (null becomes "N/A").
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = NAValue()
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = TextValue(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("value must be a number or string: %w", err)
	}
	*v = NumberValue(f)
	return nil
}
