package model

import "time"

// AlertType identifies which ranking transition produced an alert.
type AlertType string

// Supported alert types, in classification order.
const (
	AlertLeftPage1    AlertType = "left_page1"
	AlertPositionDrop AlertType = "position_drop"
	AlertRecovery     AlertType = "recovery"
	AlertNewTop3      AlertType = "new_top3"
)

// Severity grades an alert.
type Severity string

// Supported severities.
const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityPositive Severity = "positive"
)

// AlertStatus is the workflow state of an alert.
type AlertStatus string

// Supported alert statuses.
const (
	AlertOpen       AlertStatus = "open"
	AlertInProgress AlertStatus = "in_progress"
	AlertPlanned    AlertStatus = "planned"
	AlertOnHold     AlertStatus = "on_hold"
	AlertMonitoring AlertStatus = "monitoring"
	AlertResolved   AlertStatus = "resolved"
)

// Valid reports whether s is a known alert status.
func (s AlertStatus) Valid() bool {
	switch s {
	case AlertOpen, AlertInProgress, AlertPlanned, AlertOnHold, AlertMonitoring, AlertResolved:
		return true
	}
	return false
}

// Alert describes a significant position change for one keyword.
type Alert struct {
	ID         int64
	KeywordID  int64
	Type       AlertType
	Severity   Severity
	Details    string
	Status     AlertStatus
	Action     string
	CreatedAt  time.Time
	ResolvedAt *time.Time
}
