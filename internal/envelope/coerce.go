package envelope

import (
	"bytes"
	"encoding/json"
	"log"
	"sort"
	"strconv"
	"time"
)

// Clients ship these fields as whatever their local storage happened to
// hold: numbers, numeric strings, empty strings, nulls. The types below
// absorb all of that without ever failing the decode; anything
// unrecognizable becomes "unset" (or false for flags).

// OptInt is an optional integer field. Valid is false when the field was
// absent, null, empty, or unparseable.
type OptInt struct {
	Value int64
	Valid bool
}

// UnmarshalJSON never returns an error; bad input leaves the field unset.
func (o *OptInt) UnmarshalJSON(b []byte) error {
	*o = OptInt{}
	s := unquote(b)
	if s == "" || s == "null" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	o.Value = int64(f)
	o.Valid = true
	return nil
}

// IntPtr returns the value as a nullable int for persistence.
func (o OptInt) IntPtr() *int {
	if !o.Valid {
		return nil
	}
	v := int(o.Value)
	return &v
}

// Int64Or returns the value, or def when unset.
func (o OptInt) Int64Or(def int64) int64 {
	if !o.Valid {
		return def
	}
	return o.Value
}

// OptFloat is an optional floating-point field with the same total
// decode behavior as OptInt.
type OptFloat struct {
	Value float64
	Valid bool
}

func (o *OptFloat) UnmarshalJSON(b []byte) error {
	*o = OptFloat{}
	s := unquote(b)
	if s == "" || s == "null" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	o.Value = f
	o.Valid = true
	return nil
}

// FloatPtr returns the value as a nullable float for persistence.
func (o OptFloat) FloatPtr() *float64 {
	if !o.Valid {
		return nil
	}
	v := o.Value
	return &v
}

// Flag is a boolean field that accepts true/false and their string
// forms. Absent, null, or unrecognized input is false.
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	*f = false
	v, err := strconv.ParseBool(unquote(b))
	if err != nil {
		return nil
	}
	*f = Flag(v)
	return nil
}

// Bool returns the flag as a plain bool.
func (f Flag) Bool() bool { return bool(f) }

// FilterSet is a free-form preference-filter map reduced to the keys
// whose value is literally true.
type FilterSet map[string]bool

func (fs *FilterSet) UnmarshalJSON(b []byte) error {
	*fs = nil
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	set := make(FilterSet)
	for k, v := range raw {
		if bytes.Equal(bytes.TrimSpace(v), []byte("true")) {
			set[k] = true
		}
	}
	*fs = set
	return nil
}

// JSON renders the set as a stable JSON object, "{}" when empty.
func (fs FilterSet) JSON() string {
	if len(fs) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(fs))
	for k := range fs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		buf.Write(kb)
		buf.WriteString(":true")
	}
	buf.WriteByte('}')
	return buf.String()
}

var captureDateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z",
}

// ParseCaptureDate accepts a bare date or a full timestamp form.
// Unrecognized formats are logged and leave the field unset; they never
// abort the record.
func ParseCaptureDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range captureDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	log.Printf("[Envelope] Unrecognized capture date format: %q", s)
	return nil
}

// ParseTradeTime parses trade status timestamps (RFC3339), returning nil
// when absent or unparseable.
func ParseTradeTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

// NullableString converts an empty string to an unset column value.
func NullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// unquote strips one layer of JSON string quoting so "12" and 12 coerce
// the same way.
func unquote(b []byte) string {
	s := string(bytes.TrimSpace(b))
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if u, err := strconv.Unquote(s); err == nil {
			return u
		}
	}
	return s
}
