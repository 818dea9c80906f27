// Package models defines the relational records persisted for screened
// resumes.
package models

import (
	"time"

	"gorm.io/datatypes"
)

// ResumeRecord is the persisted outcome of screening one resume for one
// user. Strengths and weaknesses are stored as JSON arrays.
type ResumeRecord struct {
	ID             string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID         string         `gorm:"type:varchar(64);index" json:"user_id"`
	CandidateName  string         `gorm:"type:varchar(255)" json:"candidateName"`
	CandidateEmail string         `gorm:"type:varchar(255)" json:"candidateEmail"`
	CandidatePhone string         `gorm:"type:varchar(64)" json:"candidatePhone"`
	FileName       string         `gorm:"type:varchar(512)" json:"fileName"`
	StorageURL     string         `gorm:"type:varchar(1024)" json:"s3Url"`
	Score          float64        `json:"score"`
	Category       string         `gorm:"type:varchar(16);index" json:"category"`
	Content        string         `gorm:"type:longtext" json:"content"`
	Explanation    string         `gorm:"type:text" json:"explanation"`
	Strengths      datatypes.JSON `json:"strengths"`
	Weaknesses     datatypes.JSON `json:"weaknesses"`
	UploadedAt     time.Time      `json:"uploadedAt"`
	CreatedAt      time.Time      `json:"-"`
	UpdatedAt      time.Time      `json:"-"`
}

// TableName keeps the table name stable regardless of pluralization rules.
func (ResumeRecord) TableName() string {
	return "resume_records"
}

// UploadedFileRecord tracks the raw files a user has submitted.
type UploadedFileRecord struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID     string    `gorm:"type:varchar(64);index" json:"user_id"`
	FileName   string    `gorm:"type:varchar(512)" json:"fileName"`
	FileSize   int64     `json:"fileSize"`
	FileType   string    `gorm:"type:varchar(16)" json:"fileType"`
	StorageURL string    `gorm:"type:varchar(1024)" json:"s3Url"`
	Status     string    `gorm:"type:varchar(32)" json:"status"`
	CreatedAt  time.Time `json:"uploadedAt"`
}

func (UploadedFileRecord) TableName() string {
	return "uploaded_files"
}

// CategoryStats is the per-user aggregate used by the dashboard.
type CategoryStats struct {
	Total      int64 `json:"total"`
	Selected   int64 `json:"selected"`
	Considered int64 `json:"considered"`
	Rejected   int64 `json:"rejected"`
}
