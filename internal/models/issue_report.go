package models

import "strings"

// ReportStatus tracks a citizen report through triage.
type ReportStatus string

const (
	ReportPending    ReportStatus = "pending"
	ReportInProgress ReportStatus = "in_progress"
	ReportResolved   ReportStatus = "resolved"
	ReportRejected   ReportStatus = "rejected"
)

// ParseReportStatus normalises input and reports whether it is a known status.
func ParseReportStatus(value string) (ReportStatus, bool) {
	status := ReportStatus(strings.ToLower(strings.TrimSpace(value)))
	switch status {
	case ReportPending, ReportInProgress, ReportResolved, ReportRejected:
		return status, true
	}
	return "", false
}

// Active reports whether the report still needs work.
func (s ReportStatus) Active() bool {
	return s == ReportPending || s == ReportInProgress
}

// IssueReport is a citizen-submitted issue such as road damage or a clogged drain.
type IssueReport struct {
	BaseModel

	ReporterID   uint         `gorm:"not null;index" json:"reporter_id"`
	Reporter     *User        `gorm:"foreignKey:ReporterID" json:"-"`
	Category     string       `gorm:"size:64;not null;index" json:"category"`
	Title        string       `gorm:"size:255;not null" json:"title"`
	Description  string       `gorm:"type:text" json:"description"`
	Location     string       `gorm:"size:255;not null" json:"location"`
	Severity     string       `gorm:"size:16;default:'medium'" json:"severity"`
	Status       ReportStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	AssignedToID *uint        `gorm:"index" json:"assigned_to_id,omitempty"`
	Remarks      string       `gorm:"type:text" json:"remarks,omitempty"`
}
