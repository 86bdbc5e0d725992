package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Reserved non-positional keys of a FinalRecord's JSON form.
const (
	IdentifierKey = "_id"
	ReceivedKey   = "_received"
)

// RawEnvelope is one page returned by GET /api/1/csr/rdm.
type RawEnvelope struct {
	Records   []RawRecord
	Continues bool // More (older) pages remain
}

type RawRecord struct {
	ID   string
	Data RecordData
}

// RecordData is the JSON object embedded as a string in the record's "data" field.
type RecordData struct {
	Received string `json:"received"` // YYYY-MM-DD...
	Payload  string `json:"data"`     // base64, "~" delimited once decoded
}

// DecodedRecord holds the payload fields with the record id appended as the last element.
type DecodedRecord struct {
	Fields   []string
	Received string
}

// ID returns the trailing identifier sentinel.
func (d DecodedRecord) ID() string {
	if len(d.Fields) == 0 {
		return ""
	}
	return d.Fields[len(d.Fields)-1]
}

// FinalRecord maps positional field indexes 0..n-1 to values.
type FinalRecord struct {
	ID       string
	Fields   map[int]string
	Received string
}

// Len is the number of positional fields.
func (r FinalRecord) Len() int {
	return len(r.Fields)
}

// Values returns the positional fields in index order.
func (r FinalRecord) Values() []string {
	out := make([]string, len(r.Fields))
	for i := range out {
		out[i] = r.Fields[i]
	}
	return out
}

// MarshalJSON renders {"0": ..., "1": ..., "_id": ..., "_received": ...}.
func (r FinalRecord) MarshalJSON() ([]byte, error) {
	m := make(map[string]string, len(r.Fields)+2)
	for k, v := range r.Fields {
		m[strconv.Itoa(k)] = v
	}
	m[IdentifierKey] = r.ID
	if r.Received != "" {
		m[ReceivedKey] = r.Received
	}
	return json.Marshal(m)
}

// UnmarshalJSON accepts the form produced by MarshalJSON. Positional keys
// must run 0..n-1 without gaps.
func (r *FinalRecord) UnmarshalJSON(b []byte) error {
	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}

	fields := make(map[int]string, len(m))
	positional := 0
	for k, v := range m {
		if k == IdentifierKey || k == ReceivedKey {
			continue
		}
		i, err := strconv.Atoi(k)
		if err != nil {
			return fmt.Errorf("record key %q is not a field index: %w", k, err)
		}
		fields[i] = v
		positional++
	}
	if positional != len(fields) {
		return fmt.Errorf("record has %d field keys for %d distinct indexes", positional, len(fields))
	}
	for i := range fields {
		if i < 0 || i >= len(fields) {
			return fmt.Errorf("record field index %d out of range 0..%d", i, len(fields)-1)
		}
	}

	r.ID = m[IdentifierKey]
	r.Received = m[ReceivedKey]
	r.Fields = fields
	return nil
}
