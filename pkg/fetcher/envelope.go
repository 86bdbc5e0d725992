package fetcher

import (
	"bytes"
	"encoding/json"
	"fmt"

	"hologram-cli/pkg/models"
)

type wireEnvelope struct {
	Data      *[]wireRecord `json:"data"`
	Continues *bool         `json:"continues"`
}

type wireRecord struct {
	RecordID *recordID `json:"record_id"`
	Data     *string   `json:"data"`
}

type wireRecordData struct {
	Received *string `json:"received"`
	Data     *string `json:"data"`
}

// recordID accepts a JSON string or number.
type recordID string

func (id *recordID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = recordID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("record_id must be a string or number: %w", err)
	}
	*id = recordID(n.String())
	return nil
}

// parseEnvelope strictly decodes one page. Every required field must be present.
func parseEnvelope(body []byte) (models.RawEnvelope, error) {
	var env wireEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return models.RawEnvelope{}, &MalformedResponseError{Reason: "invalid JSON envelope", Err: err}
	}
	if env.Data == nil {
		return models.RawEnvelope{}, &MalformedResponseError{Reason: `missing "data"`}
	}
	if env.Continues == nil {
		return models.RawEnvelope{}, &MalformedResponseError{Reason: `missing "continues"`}
	}

	out := models.RawEnvelope{
		Records:   make([]models.RawRecord, 0, len(*env.Data)),
		Continues: *env.Continues,
	}

	for i, rec := range *env.Data {
		if rec.RecordID == nil || *rec.RecordID == "" {
			return models.RawEnvelope{}, &MalformedResponseError{Reason: fmt.Sprintf(`record %d: missing "record_id"`, i)}
		}
		id := string(*rec.RecordID)
		if rec.Data == nil {
			return models.RawEnvelope{}, &MalformedResponseError{Reason: fmt.Sprintf(`record %s: missing "data"`, id)}
		}

		var inner wireRecordData
		if err := json.Unmarshal([]byte(*rec.Data), &inner); err != nil {
			return models.RawEnvelope{}, &MalformedResponseError{Reason: fmt.Sprintf(`record %s: "data" is not a JSON object`, id), Err: err}
		}
		if inner.Received == nil {
			return models.RawEnvelope{}, &MalformedResponseError{Reason: fmt.Sprintf(`record %s: missing "received"`, id)}
		}
		if inner.Data == nil {
			return models.RawEnvelope{}, &MalformedResponseError{Reason: fmt.Sprintf(`record %s: missing payload "data"`, id)}
		}

		out.Records = append(out.Records, models.RawRecord{
			ID: id,
			Data: models.RecordData{
				Received: *inner.Received,
				Payload:  *inner.Data,
			},
		})
	}

	return out, nil
}
