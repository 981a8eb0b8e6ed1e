// Package edgar decodes SEC EDGAR JSON payloads into the tabular value objects
// the rest of the application works with.
//
// EDGAR's JSON shapes are not contractually fixed, so every decoder here is
// lenient: a field with an unexpected type decodes as absent, and a malformed
// record is skipped rather than failing the whole payload.
package edgar

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// flexString decodes a JSON string, number or boolean into its text form.
// null, objects and arrays decode as "".
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*s = ""
	if len(b) == 0 {
		return nil
	}
	switch b[0] {
	case '"':
		var v string
		if err := json.Unmarshal(b, &v); err == nil {
			*s = flexString(v)
		}
	case '{', '[', 'n':
		// absent
	default:
		*s = flexString(b)
	}
	return nil
}

// flexStrings decodes a JSON array leniently; any other shape decodes as nil.
type flexStrings []flexString

func (a *flexStrings) UnmarshalJSON(b []byte) error {
	var raw []flexString
	if err := json.Unmarshal(b, &raw); err != nil {
		*a = nil
		return nil
	}
	*a = raw
	return nil
}

// at returns the i-th element, or "" when the array is too short.
func (a flexStrings) at(i int) string {
	if i < 0 || i >= len(a) {
		return ""
	}
	return string(a[i])
}

// parseNumber converts a decoded JSON scalar to a finite float.
func parseNumber(s flexString) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(string(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// parseID converts a decoded JSON scalar to a non-negative integer identifier.
// Integral floats such as 320193.0 are accepted.
func parseID(s flexString) (int64, bool) {
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(string(s), 10, 64); err == nil {
		return n, n >= 0
	}
	f, ok := parseNumber(s)
	if !ok || f < 0 || f != math.Trunc(f) || f > math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// records returns the elements of a top-level JSON object (in document order)
// or array. Any other payload yields nil.
func records(payload []byte) []json.RawMessage {
	dec := json.NewDecoder(bytes.NewReader(payload))
	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return nil
	}

	var out []json.RawMessage
	switch delim {
	case '{':
		for dec.More() {
			if _, err := dec.Token(); err != nil { // key
				return out
			}
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return out
			}
			out = append(out, raw)
		}
	case '[':
		for dec.More() {
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return out
			}
			out = append(out, raw)
		}
	}
	return out
}
