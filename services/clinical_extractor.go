package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/janani/maai/models"

	"go.uber.org/zap"
)

// ClinicalExtractor turns a patient message into a ClinicalRecord.
type ClinicalExtractor interface {
	// Extract never fails; on any problem it returns the default record.
	Extract(ctx context.Context, transcript, medicalContext string) models.ClinicalRecord
}

type clinicalExtractorImpl struct {
	llm    Completer
	logger *zap.Logger
}

func NewClinicalExtractor(llm Completer, logger *zap.Logger) ClinicalExtractor {
	return &clinicalExtractorImpl{llm: llm, logger: logger}
}

func (e *clinicalExtractorImpl) Extract(ctx context.Context, transcript, medicalContext string) models.ClinicalRecord {
	raw, err := e.llm.Complete(ctx, clinicalPrompt(transcript, medicalContext))
	if err != nil {
		e.logger.Warn("EXTRACTOR: model call failed, using default record", zap.Error(err))
		return models.DefaultClinicalRecord(transcript)
	}

	record, err := parseClinicalRecord(raw)
	if err != nil {
		e.logger.Warn("EXTRACTOR: malformed output, using default record", zap.Error(err))
		return models.DefaultClinicalRecord(transcript)
	}
	return record
}

func parseClinicalRecord(raw string) (models.ClinicalRecord, error) {
	var record models.ClinicalRecord
	body := jsonObjectSpan(stripCodeFence(raw))
	if body == "" {
		return record, fmt.Errorf("no json object in model output")
	}
	if err := json.Unmarshal([]byte(body), &record); err != nil {
		return record, fmt.Errorf("failed to decode clinical record: %w", err)
	}
	record.Normalize()
	return record, nil
}

// stripCodeFence keeps only the inside of a ``` fenced block, dropping a
// language tag such as "json" on the opening line.
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	start := strings.Index(s, "```")
	if start < 0 {
		return s
	}
	inner := s[start+3:]
	if end := strings.Index(inner, "```"); end >= 0 {
		inner = inner[:end]
	}
	if nl := strings.IndexByte(inner, '\n'); nl >= 0 {
		if tag := strings.TrimSpace(inner[:nl]); !strings.ContainsAny(tag, "{[\" ") {
			inner = inner[nl+1:]
		}
	} else {
		inner = strings.TrimPrefix(strings.TrimSpace(inner), "json")
	}
	return strings.TrimSpace(inner)
}

// jsonObjectSpan trims any prose around the outermost JSON object.
func jsonObjectSpan(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}

func clinicalPrompt(transcript, medicalContext string) string {
	var b strings.Builder
	b.WriteString("You are a maternal health clinical data extractor. Analyze this patient's message carefully.\n\n")
	fmt.Fprintf(&b, "PATIENT MESSAGE: %q\n", transcript)
	if medicalContext != "" {
		fmt.Fprintf(&b, "MEDICAL CONTEXT: %q\n", medicalContext)
	}
	b.WriteString(`
Extract and return ONLY valid JSON (no markdown, no explanation):
{
  "symptoms": [
    {"name": "symptom in English", "reported_time": "when (morning/afternoon/night) or empty", "status": "active or relieved or recurring"}
  ],
  "medications": [
    {"name": "medicine in English", "taken": true/false, "taken_time": "when (morning/daytime/night) or empty", "effect_noted": "effect mentioned or empty"}
  ],
  "relief_noted": true/false,
  "relief_details": "what relief was mentioned or empty",
  "fetal_movement": "Yes or No or Unknown",
  "severity": 1-10,
  "summary": "brief medical summary in English"
}

RULES:
- If no symptoms mentioned, return empty symptoms array
- If no medications mentioned, return empty medications array
- Always detect: headache, nausea, vomiting, fever, swelling, bleeding, pain, cramps, dizziness, fatigue
- If fetal movement is not mentioned, use "Unknown"
- If the message is a greeting or general query, set severity to 1 and empty arrays`)
	return b.String()
}
