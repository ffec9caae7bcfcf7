// Package triage turns a vitals record into an urgency level from 1
// (routine) to 5 (emergent).
package triage

import "strings"

const (
	ConsciousnessAlert          = "alert"
	ConsciousnessVoice          = "voice-responsive"
	ConsciousnessPainResponsive = "pain-responsive"
	ConsciousnessUnconscious    = "unconscious"

	BleedingNone     = "none"
	BleedingModerate = "moderate"
	BleedingSevere   = "severe"
)

const (
	MinUrgency = 1
	MaxUrgency = 5
)

// Record holds the vitals collected at intake. Zero values mean "not
// recorded" and never add risk.
type Record struct {
	Age            int     `json:"age,omitempty"`
	Sex            string  `json:"sex,omitempty"`
	Pain           int     `json:"pain,omitempty"`
	Temperature    float64 `json:"temp,omitempty"`
	HeartRate      int     `json:"hr,omitempty"`
	RespRate       int     `json:"rr,omitempty"`
	SpO2           int     `json:"spo2,omitempty"`
	SystolicBP     int     `json:"sbp,omitempty"`
	Bleeding       string  `json:"bleeding,omitempty"`
	Consciousness  string  `json:"consciousness,omitempty"`
	ChestPain      bool    `json:"chest_pain,omitempty"`
	Dyspnea        bool    `json:"dyspnea,omitempty"`
	Dehydration    bool    `json:"dehydration,omitempty"`
	Comorbidities  int     `json:"comorb,omitempty"`
	PregnancyWeeks int     `json:"pregnancy_wks,omitempty"`
	OnsetHours     int     `json:"onset_hours,omitempty"`
	Notes          string  `json:"notes,omitempty"`
}

func (r Record) bleeding() string {
	if b := strings.ToLower(strings.TrimSpace(r.Bleeding)); b != "" {
		return b
	}
	return BleedingNone
}

func (r Record) consciousness() string {
	if c := strings.ToLower(strings.TrimSpace(r.Consciousness)); c != "" {
		return c
	}
	return ConsciousnessAlert
}

// RedFlag reports whether the record carries any sign that makes it
// emergent regardless of the weighted score.
func RedFlag(r Record) bool {
	switch r.consciousness() {
	case ConsciousnessPainResponsive, ConsciousnessUnconscious:
		return true
	}
	if r.SystolicBP > 0 && r.SystolicBP < 90 {
		return true
	}
	if r.RespRate > 0 && (r.RespRate < 8 || r.RespRate > 30) {
		return true
	}
	if r.HeartRate > 0 && (r.HeartRate < 40 || r.HeartRate > 130) {
		return true
	}
	if r.SpO2 > 0 && r.SpO2 < 90 {
		return true
	}
	if r.bleeding() == BleedingSevere {
		return true
	}
	if r.ChestPain && ((r.SpO2 > 0 && r.SpO2 < 94) || (r.SystolicBP > 0 && r.SystolicBP < 100)) {
		return true
	}
	return false
}

// Points is the weighted score used when no red flag is present.
func Points(r Record) int {
	score := 0

	switch {
	case r.Pain >= 8:
		score += 2
	case r.Pain >= 5:
		score++
	}

	switch {
	case r.Temperature >= 39.0:
		score += 2
	case r.Temperature >= 38.0:
		score++
	case r.Temperature > 0 && r.Temperature < 35.0:
		score += 2
	}

	switch {
	case r.HeartRate >= 110:
		score += 2
	case r.HeartRate >= 100:
		score++
	}

	switch {
	case r.RespRate >= 25:
		score += 2
	case r.RespRate >= 20:
		score++
	}

	if r.SpO2 > 0 && r.SpO2 <= 94 {
		score += 2
	}
	if r.Dyspnea {
		score++
	}
	if r.Dehydration {
		score++
	}
	if r.Comorbidities >= 2 {
		score++
	}
	if r.PregnancyWeeks >= 34 {
		score++
	}
	if r.OnsetHours >= 48 {
		score++
	}
	if r.bleeding() == BleedingModerate {
		score++
	}

	return score
}

// Score maps a record to an urgency level in [1,5].
func Score(r Record) int {
	if RedFlag(r) {
		return MaxUrgency
	}

	switch p := Points(r); {
	case p >= 6:
		return 4
	case p >= 3:
		return 3
	case p >= 1:
		return 2
	default:
		return MinUrgency
	}
}

// ClampUrgency forces u into [1,5].
func ClampUrgency(u int) int {
	if u < MinUrgency {
		return MinUrgency
	}
	if u > MaxUrgency {
		return MaxUrgency
	}
	return u
}
