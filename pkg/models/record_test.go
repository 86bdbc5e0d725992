package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinalRecordJSONUsesReservedIDKey(t *testing.T) {
	t.Parallel()

	r := FinalRecord{ID: "rec-1", Fields: map[int]string{0: "21.5", 1: "48"}, Received: "2021-06-05"}
	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"0":"21.5","1":"48","_id":"rec-1","_received":"2021-06-05"}`, string(b))

	var back FinalRecord
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, r, back)
	assert.Equal(t, []string{"21.5", "48"}, back.Values())
}

func TestFinalRecordJSONOmitsEmptyReceived(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(FinalRecord{ID: "rec-2", Fields: map[int]string{0: "x"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"0":"x","_id":"rec-2"}`, string(b))
}

func TestFinalRecordUnmarshalRejectsNonContiguousKeys(t *testing.T) {
	t.Parallel()

	for _, in := range []string{
		`{"0":"a","5":"b","_id":"x"}`,
		`{"-1":"c","_id":"x"}`,
		`{"0":"a","5":"b","-1":"c","_id":"x"}`,
		`{"1":"a","_id":"x"}`,
		`{"0":"a","00":"b","_id":"x"}`,
	} {
		var r FinalRecord
		assert.Error(t, json.Unmarshal([]byte(in), &r), in)
	}

	var r FinalRecord
	require.NoError(t, json.Unmarshal([]byte(`{"_id":"empty"}`), &r))
	assert.Zero(t, r.Len())
}

func TestFinalRecordUnmarshalRejectsNonPositionalKey(t *testing.T) {
	t.Parallel()

	var r FinalRecord
	assert.Error(t, json.Unmarshal([]byte(`{"temp":"1","_id":"x"}`), &r))
}

func TestDecodedRecordID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "id-9", DecodedRecord{Fields: []string{"a", "id-9"}}.ID())
	assert.Equal(t, "", DecodedRecord{}.ID())
}
