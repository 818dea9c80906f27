package queue

import "time"

// BatchFilePayload is one resume file inside a queued batch message. Content
// travels base64-encoded inside the JSON body so the whole batch stays a
// single self-contained message.
type BatchFilePayload struct {
	Filename      string `json:"filename"`
	ContentBase64 string `json:"content"`
	FileType      string `json:"file_type"`
}

// BatchJobMessage is the unit of work published for queued batches.
type BatchJobMessage struct {
	TaskID         string             `json:"task_id"`
	Files          []BatchFilePayload `json:"files"`
	JobDescription string             `json:"job_description"`
	UserID         string             `json:"user_id,omitempty"`
	SubmittedAt    time.Time          `json:"submitted_at"`
}
