package domain

import "time"

// RecordPayload is the metadata payload of a session's transcript
// record. A single record holds the session's entire history; appends
// rewrite the whole record.
type RecordPayload struct {
	Title     string     `json:"title"`
	Messages  []Message  `json:"messages"`
	CreatedAt *time.Time `json:"created_at"` // null when unknown
}
