package models

import "time"

// AnonymousUserKey buckets interactions that arrive without phone or email.
const AnonymousUserKey = "anonymous"

// InteractionLogEntry is one append-only record of a completed request.
type InteractionLogEntry struct {
	ID                 string         `json:"id"`
	Timestamp          time.Time      `json:"timestamp"`
	UserKey            string         `json:"user_key"`
	PhoneNumber        string         `json:"phone_number,omitempty"`
	UserEmail          string         `json:"user_email,omitempty"`
	UserName           string         `json:"user_name,omitempty"`
	Source             string         `json:"source"`
	Language           string         `json:"language"`
	UserMessageNative  string         `json:"user_message_native"`
	UserMessageEnglish string         `json:"user_message_english"`
	ReplyEnglish       string         `json:"reply_english"`
	ReplyNative        string         `json:"reply_native"`
	ResolvedLanguage   string         `json:"resolved_language"`
	Clinical           ClinicalRecord `json:"clinical"`
}

// UserKey picks the identity a request is logged under: phone, then email,
// then the anonymous bucket.
func UserKey(phone, email string) string {
	switch {
	case phone != "":
		return phone
	case email != "":
		return email
	default:
		return AnonymousUserKey
	}
}

// UserRecord is the per-identity row. CreatedAt is fixed by the first
// interaction, UpdatedAt moves with every later one.
type UserRecord struct {
	UserKey     string    `json:"user_key"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	UserEmail   string    `json:"user_email,omitempty"`
	UserName    string    `json:"user_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
