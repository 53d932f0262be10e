package models

// TranslationResult is the outcome of one enforced translation.
type TranslationResult struct {
	Text             string `json:"text"`
	ResolvedLanguage string `json:"resolved_language"`
}

// SarvamTranslateRequest is the body sent to the remote translation API.
type SarvamTranslateRequest struct {
	Input              string `json:"input"`
	SourceLanguageCode string `json:"source_language_code"`
	TargetLanguageCode string `json:"target_language_code"`
	SpeakerGender      string `json:"speaker_gender,omitempty"`
	Mode               string `json:"mode,omitempty"`
}

// SarvamTranslateResponse is the subset of the API response we read.
type SarvamTranslateResponse struct {
	TranslatedText     string `json:"translated_text"`
	SourceLanguageCode string `json:"source_language_code,omitempty"`
	RequestID          string `json:"request_id,omitempty"`
}

// LanguageIdentification is the JSON the detection prompt asks the model for.
type LanguageIdentification struct {
	DetectedLanguage   string `json:"detected_language"`
	EnglishTranslation string `json:"english_translation"`
}
