package types

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
)

// Uint64 is a wrapper for uint64, but it is marshalled to and from JSON as a string
type Uint64 uint64

func (u Uint64) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatUint(uint64(u), 10))
}

func (u *Uint64) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("cannot unmarshal %s into Uint64, expected string-encoded integer", data)
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("cannot unmarshal %s into Uint64, failed to parse integer", data)
	}
	*u = Uint64(v)
	return nil
}

// Base64 is a byte blob that is marshalled as a standard base64 string.
// A nil blob encodes as the empty string, never as null.
type Base64 []byte

func (b Base64) MarshalText() ([]byte, error) {
	return []byte(base64.StdEncoding.EncodeToString(b)), nil
}

func (b *Base64) UnmarshalText(text []byte) error {
	data, err := base64.StdEncoding.DecodeString(string(text))
	if err != nil {
		return err
	}
	*b = data
	return nil
}

// Measurement holds the storage usage readings taken around one call.
type Measurement struct {
	Before uint64 `json:"before"`
	After  uint64 `json:"after"`
}

// Delta returns the bytes added by the call, or 0 if the call freed storage.
func (m Measurement) Delta() uint64 {
	if m.After < m.Before {
		return 0
	}
	return m.After - m.Before
}

// Freed returns the bytes released by the call, or 0 if it added storage.
func (m Measurement) Freed() uint64 {
	if m.Before < m.After {
		return 0
	}
	return m.Before - m.After
}

// ReportRow is one line of a batch report.
type ReportRow struct {
	Operation string `json:"operation" csv:"operation"`
	Method    string `json:"method" csv:"method"`
	Bytes     uint64 `json:"bytes" csv:"bytes"`
}

// Report maps operation labels to byte counts, in menu order.
type Report []ReportRow

// Get returns the byte count recorded for the given label.
func (r Report) Get(label string) (uint64, bool) {
	for _, row := range r {
		if row.Operation == label {
			return row.Bytes, true
		}
	}
	return 0, false
}

// Map returns the report as a label to byte count map.
func (r Report) Map() map[string]uint64 {
	out := make(map[string]uint64, len(r))
	for _, row := range r {
		out[row.Operation] = row.Bytes
	}
	return out
}
