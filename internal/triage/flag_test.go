package triage

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordDecodesIntegerFlags(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Record
	}{
		{"integers", `{"chest_pain":1,"dyspnea":0,"dehydration":1,"spo2":92}`, Record{ChestPain: true, Dehydration: true, SpO2: 92}},
		{"booleans", `{"chest_pain":true,"dyspnea":true}`, Record{ChestPain: true, Dyspnea: true}},
		{"strings and null", `{"chest_pain":"1","dyspnea":"false","dehydration":null}`, Record{ChestPain: true}},
		{"absent", `{"pain":7,"bleeding":"moderate"}`, Record{Pain: 7, Bleeding: "moderate"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec Record
			require.NoError(t, json.Unmarshal([]byte(tt.payload), &rec))
			assert.Equal(t, tt.want, rec)
		})
	}
}

func TestRecordIntegerChestPainIsScored(t *testing.T) {
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(`{"chest_pain":1,"spo2":92}`), &rec))
	assert.Equal(t, 5, Score(rec))
}

func TestRecordRejectsGarbageFlag(t *testing.T) {
	var rec Record
	require.Error(t, json.Unmarshal([]byte(`{"chest_pain":"maybe"}`), &rec))
}
