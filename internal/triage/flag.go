package triage

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// flag decodes yes/no answers sent as booleans, 0/1 numbers or their string
// forms. Null and empty values are false.
type flag bool

func (f *flag) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*f = false
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.ToLower(strings.TrimSpace(unquoted))
		if raw == "" {
			*f = false
			return nil
		}
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		*f = flag(b)
		return nil
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		*f = n != 0
		return nil
	}
	return fmt.Errorf("triage: invalid flag value %s", data)
}

// UnmarshalJSON accepts the boolean vitals as JSON booleans or 0/1 integers.
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	aux := struct {
		*plain
		ChestPain   flag `json:"chest_pain"`
		Dyspnea     flag `json:"dyspnea"`
		Dehydration flag `json:"dehydration"`
	}{plain: (*plain)(r)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.ChestPain = bool(aux.ChestPain)
	r.Dyspnea = bool(aux.Dyspnea)
	r.Dehydration = bool(aux.Dehydration)
	return nil
}
