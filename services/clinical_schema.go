package services

import "google.golang.org/genai"

// ClinicalRecordSchema describes the extraction output for Gemini's
// structured-output mode. It mirrors models.ClinicalRecord.
func ClinicalRecordSchema() *genai.Schema {
	str := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeString, Description: desc}
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"symptoms": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"name":          str("Symptom in English, e.g. headache, nausea, swelling."),
						"reported_time": str("When it happens (morning/afternoon/night) or empty."),
						"status": {
							Type: genai.TypeString,
							Enum: []string{"active", "relieved", "recurring"},
						},
					},
					Required: []string{"name", "status"},
				},
			},
			"medications": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"name":         str("Medicine or supplement in English."),
						"taken":        {Type: genai.TypeBoolean},
						"taken_time":   str("When it was taken (morning/daytime/night) or empty."),
						"effect_noted": str("Effect mentioned or empty."),
					},
					Required: []string{"name", "taken"},
				},
			},
			"relief_noted":   {Type: genai.TypeBoolean},
			"relief_details": str("What relief was mentioned, or empty."),
			"fetal_movement": {
				Type: genai.TypeString,
				Enum: []string{"Yes", "No", "Unknown"},
			},
			"severity": {
				Type:    genai.TypeInteger,
				Minimum: genai.Ptr(1.0),
				Maximum: genai.Ptr(10.0),
			},
			"summary": str("One sentence clinical summary in English."),
		},
		Required: []string{"symptoms", "medications", "relief_noted", "fetal_movement", "severity", "summary"},
	}
}
