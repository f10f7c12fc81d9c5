package models

import (
	"time"
)

// Issue represents a Jira issue mirrored into the local store.
type Issue struct {
	ID          int64
	Key         string
	Summary     string
	Created     time.Time
	LastViewed  *time.Time
	Resolved    *time.Time
	Updated     time.Time
	DueDate     *time.Time
	Assignee    string
	Creator     string
	Reporter    string
	Labels      string
	StatusID    int64
	StoryPoints *float64
	Type        string
	Priority    string
	Project     string
	Resolution  string
}

// Transition represents one status change of an issue. HistoryID is the
// changelog entry id from Jira; 0 marks a synthetic entry standing in for
// "current status held since creation" when no real history is known.
type Transition struct {
	HistoryID int64
	At        time.Time
	IssueID   int64
	StatusID  int64
}

// Sentinel reports whether the transition is the synthetic bootstrap entry.
func (t Transition) Sentinel() bool {
	return t.HistoryID == 0
}

// Status represents a Jira workflow status.
type Status struct {
	ID          int64
	Name        string
	Description string
	CategoryID  int64
}

// StatusCategory represents a coarse status grouping ("new",
// "indeterminate", "done").
type StatusCategory struct {
	ID   int64
	Key  string
	Name string
}

// Field represents a Jira field definition, including custom fields.
type Field struct {
	ID   string
	Key  string
	Name string
}
