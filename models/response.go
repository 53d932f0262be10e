package models

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// AskResponse is the terminal output of the pipeline.
type AskResponse struct {
	EnglishQuery     string `json:"english_query"`
	EnglishAnswer    string `json:"english_answer"`
	LocalizedAnswer  string `json:"localized_answer"`
	ResolvedLanguage string `json:"resolved_language"`
	Status           string `json:"status"`
}

// ErrorResponse is returned for any request-level failure.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type IngestDataResponse struct {
	Message string `json:"message"`
	Chunks  int    `json:"chunks"`
	Error   string `json:"error,omitempty"`
}

// HistoryResponse lists the stored interactions of one user next to the
// dashboard aggregated from them.
type HistoryResponse struct {
	User         UserRecord            `json:"user"`
	Count        int                   `json:"count"`
	Dashboard    DashboardStats        `json:"dashboard"`
	Interactions []InteractionLogEntry `json:"interactions"`
}

type DoctorSummaryResponse struct {
	User    UserRecord    `json:"user"`
	Summary DoctorSummary `json:"summary"`
}
