package models

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/spf13/cast"
)

const (
	SymptomActive    = "active"
	SymptomRelieved  = "relieved"
	SymptomRecurring = "recurring"

	FetalMovementYes     = "Yes"
	FetalMovementNo      = "No"
	FetalMovementUnknown = "Unknown"

	// DefaultSeverity is the neutral score used when extraction fails.
	DefaultSeverity = 5
	MinSeverity     = 1
	MaxSeverity     = 10

	summaryFallbackRunes = 200
)

type Symptom struct {
	Name         string `json:"name"`
	ReportedTime string `json:"reported_time"`
	Status       string `json:"status"`
}

type Medication struct {
	Name        string `json:"name"`
	Taken       bool   `json:"taken"`
	TakenTime   string `json:"taken_time"`
	EffectNoted string `json:"effect_noted"`
}

// ClinicalRecord is the structured view of one patient message.
type ClinicalRecord struct {
	Symptoms      []Symptom    `json:"symptoms"`
	Medications   []Medication `json:"medications"`
	ReliefNoted   bool         `json:"relief_noted"`
	ReliefDetails string       `json:"relief_details"`
	FetalMovement string       `json:"fetal_movement"`
	Severity      int          `json:"severity"`
	Summary       string       `json:"summary"`
}

// UnmarshalJSON accepts severity as a number or a numeric string, rounded
// to the nearest integer. Anything else decodes as 0 and is replaced by
// DefaultSeverity in Normalize.
func (c *ClinicalRecord) UnmarshalJSON(data []byte) error {
	type plain ClinicalRecord
	aux := struct {
		*plain
		Severity any `json:"severity"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if s, ok := aux.Severity.(string); ok {
		aux.Severity = strings.TrimSpace(s)
	}
	c.Severity = 0
	if sev, err := cast.ToFloat64E(aux.Severity); err == nil && !math.IsNaN(sev) {
		c.Severity = int(math.Round(sev))
	}
	return nil
}

// DefaultClinicalRecord is returned whenever extraction cannot produce a
// record. The summary keeps the first 200 characters of the transcript.
func DefaultClinicalRecord(transcript string) ClinicalRecord {
	summary := transcript
	if r := []rune(transcript); len(r) > summaryFallbackRunes {
		summary = string(r[:summaryFallbackRunes])
	}
	return ClinicalRecord{
		Symptoms:      []Symptom{},
		Medications:   []Medication{},
		FetalMovement: FetalMovementUnknown,
		Severity:      DefaultSeverity,
		Summary:       summary,
	}
}

// Normalize coerces a parsed record into the allowed value ranges.
func (c *ClinicalRecord) Normalize() {
	if c.Symptoms == nil {
		c.Symptoms = []Symptom{}
	}
	if c.Medications == nil {
		c.Medications = []Medication{}
	}
	for i := range c.Symptoms {
		switch strings.ToLower(strings.TrimSpace(c.Symptoms[i].Status)) {
		case SymptomRelieved:
			c.Symptoms[i].Status = SymptomRelieved
		case SymptomRecurring:
			c.Symptoms[i].Status = SymptomRecurring
		default:
			c.Symptoms[i].Status = SymptomActive
		}
	}
	switch strings.ToLower(strings.TrimSpace(c.FetalMovement)) {
	case "yes":
		c.FetalMovement = FetalMovementYes
	case "no":
		c.FetalMovement = FetalMovementNo
	default:
		c.FetalMovement = FetalMovementUnknown
	}
	switch {
	case c.Severity == 0:
		c.Severity = DefaultSeverity
	case c.Severity < MinSeverity:
		c.Severity = MinSeverity
	case c.Severity > MaxSeverity:
		c.Severity = MaxSeverity
	}
}
