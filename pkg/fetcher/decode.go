package fetcher

import (
	"encoding/base64"
	"errors"
	"strings"
	"unicode/utf8"

	"hologram-cli/pkg/models"
)

// FieldSeparator delimits payload fields once decoded.
const FieldSeparator = "~"

var errInvalidUTF8 = errors.New("payload is not valid UTF-8")

// DecodePayload base64-decodes a record payload and splits it into fields.
func DecodePayload(payload string) ([]string, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(raw) {
		return nil, errInvalidUTF8
	}
	return strings.Split(string(raw), FieldSeparator), nil
}

// DecodeRecord decodes rec and appends its id as the trailing sentinel field.
func DecodeRecord(rec models.RawRecord) (models.DecodedRecord, error) {
	fields, err := DecodePayload(rec.Data.Payload)
	if err != nil {
		return models.DecodedRecord{}, &DecodeError{RecordID: rec.ID, Err: err}
	}
	return models.DecodedRecord{
		Fields:   append(fields, rec.ID),
		Received: rec.Data.Received,
	}, nil
}

// Finalize drops the trailing id sentinel into the reserved key and keys the
// remaining fields by position.
func Finalize(d models.DecodedRecord) models.FinalRecord {
	n := len(d.Fields) - 1
	if n < 0 {
		n = 0
	}
	r := models.FinalRecord{
		ID:       d.ID(),
		Fields:   make(map[int]string, n),
		Received: d.Received,
	}
	for i := 0; i < n; i++ {
		r.Fields[i] = d.Fields[i]
	}
	return r
}
