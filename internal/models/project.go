package models

import (
	"strings"
	"time"
)

// ProjectStatus is the lifecycle of an infrastructure project.
type ProjectStatus string

const (
	ProjectPlanned   ProjectStatus = "planned"
	ProjectOngoing   ProjectStatus = "ongoing"
	ProjectCompleted ProjectStatus = "completed"
)

// ParseProjectStatus normalises input and reports whether it is a known status.
func ParseProjectStatus(value string) (ProjectStatus, bool) {
	status := ProjectStatus(strings.ToLower(strings.TrimSpace(value)))
	switch status {
	case ProjectPlanned, ProjectOngoing, ProjectCompleted:
		return status, true
	}
	return "", false
}

// Project is a public works project shown on the GIS map.
type Project struct {
	BaseModel

	Name        string        `gorm:"size:255;not null" json:"name"`
	Description string        `gorm:"type:text" json:"description"`
	Location    string        `gorm:"size:255;not null" json:"location"`
	Status      ProjectStatus `gorm:"type:varchar(16);not null;default:'planned';index" json:"status"`
	Budget      float64       `json:"budget"`
	Contractor  string        `gorm:"size:255" json:"contractor"`
	StartDate   *time.Time    `json:"start_date,omitempty"`
	EndDate     *time.Time    `json:"end_date,omitempty"`
	CreatedByID uint          `gorm:"index" json:"created_by_id"`
}
