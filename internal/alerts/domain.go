package alerts

import "time"

// Collection is the change-feed key for the alerts collection.
const Collection = "alerts.changed"

// Severity ranks an alert.
type Severity string

// Alert severities.
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Status tracks an alert through triage.
type Status string

// Alert statuses.
const (
	StatusOpen          Status = "open"
	StatusInvestigating Status = "investigating"
	StatusResolved      Status = "resolved"
)

// Alert is a security alert record.
type Alert struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Severity     Severity  `json:"severity"`
	Status       Status    `json:"status"`
	Source       string    `json:"source"`
	Acknowledged bool      `json:"acknowledged"`
	Timestamp    time.Time `json:"timestamp"`
}

// Summary aggregates alert counts for the console overview.
type Summary struct {
	OpenBySeverity map[Severity]int64 `json:"openBySeverity"`
	Unacknowledged int64              `json:"unacknowledged"`
	TotalSynced    int                `json:"totalSynced"`
	SyncStatus     string             `json:"syncStatus"`
}
