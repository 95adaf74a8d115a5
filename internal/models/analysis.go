package models

import "time"

// ReportAnalysis is a crime classification attached to a report.
type ReportAnalysis struct {
	ID           string    `gorm:"primaryKey;type:text" json:"id"`
	ReportID     *string   `gorm:"type:text;uniqueIndex" json:"report_id"`
	CrimeType    string    `gorm:"type:text;not null" json:"crime_type"`
	Confidence   float64   `gorm:"not null" json:"confidence"`
	Description  string    `gorm:"type:text;not null" json:"description"`
	ModelVersion *string   `gorm:"type:text" json:"model_version"`
	CreatedAt    time.Time `json:"created_at"`
}

func (ReportAnalysis) TableName() string { return "crime_report_analysis" }
