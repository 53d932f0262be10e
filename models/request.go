package models

import "strings"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	SourceWebsite   = "website"
	SourceVoiceCall = "voice_call"

	// MaxHistoryTurns is how many trailing turns reach the generation prompt.
	MaxHistoryTurns = 5

	DefaultLanguageCode = "hi-IN"
	DefaultPatientData  = "Mother is 2nd week of pregnancy, general wellness query."
)

// ChatMessage is one prior turn of the conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// QueryRequest is the body of POST /api/v1/ask.
type QueryRequest struct {
	Query        string        `json:"query" binding:"required"`
	LanguageCode string        `json:"language_code"`
	PatientData  string        `json:"patient_data"`
	History      []ChatMessage `json:"history"`
	UserPhone    string        `json:"user_phone,omitempty"`
	UserEmail    string        `json:"user_email,omitempty"`
	UserName     string        `json:"user_name,omitempty"`
	Source       string        `json:"source"`
}

// ApplyDefaults fills the optional fields the way the web and voice clients expect.
func (r *QueryRequest) ApplyDefaults() {
	if strings.TrimSpace(r.LanguageCode) == "" {
		r.LanguageCode = DefaultLanguageCode
	}
	if strings.TrimSpace(r.PatientData) == "" {
		r.PatientData = DefaultPatientData
	}
	if r.Source != SourceVoiceCall {
		r.Source = SourceWebsite
	}
}

// TrimHistory returns the most recent MaxHistoryTurns turns with roles
// normalised: anything other than "user" is treated as the assistant.
func TrimHistory(history []ChatMessage) []ChatMessage {
	if len(history) > MaxHistoryTurns {
		history = history[len(history)-MaxHistoryTurns:]
	}
	out := make([]ChatMessage, 0, len(history))
	for _, msg := range history {
		role := RoleAssistant
		if strings.EqualFold(strings.TrimSpace(msg.Role), RoleUser) {
			role = RoleUser
		}
		out = append(out, ChatMessage{Role: role, Content: msg.Content})
	}
	return out
}

// IngestDataRequest is the body of POST /api/v1/ingest.
type IngestDataRequest struct {
	Text   string `json:"text" binding:"required"`
	Source string `json:"source"`
}
