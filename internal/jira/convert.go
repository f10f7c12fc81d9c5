package jira

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/opsmetrics/jiralog/internal/models"
)

// Jira timestamp layouts. Issue timestamps carry milliseconds and a zone
// offset; due dates are bare dates.
const (
	TimeLayout = "2006-01-02T15:04:05.000-0700"
	DateLayout = "2006-01-02"
)

func decodeJSON(r io.Reader, out any) error {
	dec := json.NewDecoder(r)
	return dec.Decode(out)
}

// ParseTime parses a Jira issue timestamp and normalizes it to UTC.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// ParseDate parses a Jira due date (midnight UTC).
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return t.UTC(), nil
}

func parseOptionalTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := ParseTime(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ConvertIssue maps a raw API issue onto the domain model. Decoding fails
// closed: a malformed id or timestamp is an error, an absent optional field
// is not.
func ConvertIssue(raw Issue) (*models.Issue, error) {
	id, err := strconv.ParseInt(raw.ID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("issue %s: parsing id %q: %w", raw.Key, raw.ID, err)
	}
	statusID, err := strconv.ParseInt(raw.Fields.Status.ID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("issue %s: parsing status id %q: %w", raw.Key, raw.Fields.Status.ID, err)
	}
	created, err := ParseTime(raw.Fields.Created)
	if err != nil {
		return nil, fmt.Errorf("issue %s: created: %w", raw.Key, err)
	}
	updated, err := ParseTime(raw.Fields.Updated)
	if err != nil {
		return nil, fmt.Errorf("issue %s: updated: %w", raw.Key, err)
	}
	lastViewed, err := parseOptionalTime(raw.Fields.LastViewed)
	if err != nil {
		return nil, fmt.Errorf("issue %s: lastViewed: %w", raw.Key, err)
	}
	resolved, err := parseOptionalTime(raw.Fields.ResolutionDate)
	if err != nil {
		return nil, fmt.Errorf("issue %s: resolutiondate: %w", raw.Key, err)
	}

	var dueDate *time.Time
	if raw.Fields.DueDate != "" {
		d, err := ParseDate(raw.Fields.DueDate)
		if err != nil {
			return nil, fmt.Errorf("issue %s: duedate: %w", raw.Key, err)
		}
		dueDate = &d
	}

	issue := &models.Issue{
		ID:          id,
		Key:         raw.Key,
		Summary:     raw.Fields.Summary,
		Created:     created,
		LastViewed:  lastViewed,
		Resolved:    resolved,
		Updated:     updated,
		DueDate:     dueDate,
		Labels:      strings.Join(raw.Fields.Labels, ","),
		StatusID:    statusID,
		StoryPoints: raw.Fields.StoryPoints,
	}
	if raw.Fields.Assignee != nil {
		issue.Assignee = raw.Fields.Assignee.Key
	}
	if raw.Fields.Creator != nil {
		issue.Creator = raw.Fields.Creator.Key
	}
	if raw.Fields.Reporter != nil {
		issue.Reporter = raw.Fields.Reporter.Key
	}
	if raw.Fields.IssueType != nil {
		issue.Type = raw.Fields.IssueType.Name
	}
	if raw.Fields.Priority != nil {
		issue.Priority = raw.Fields.Priority.Name
	}
	if raw.Fields.Project != nil {
		issue.Project = raw.Fields.Project.Key
	}
	if raw.Fields.Resolution != nil {
		issue.Resolution = raw.Fields.Resolution.Name
	}
	return issue, nil
}

// ConvertStatus maps a status dictionary entry onto the domain model.
func ConvertStatus(def StatusDef) (*models.Status, error) {
	id, err := strconv.ParseInt(def.ID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("status %q: parsing id %q: %w", def.Name, def.ID, err)
	}
	return &models.Status{
		ID:          id,
		Name:        def.Name,
		Description: def.Description,
		CategoryID:  def.StatusCategory.ID,
	}, nil
}

// ConvertStatusCategory maps a category dictionary entry onto the domain model.
func ConvertStatusCategory(cat StatusCategory) *models.StatusCategory {
	return &models.StatusCategory{
		ID:   cat.ID,
		Key:  cat.Key,
		Name: cat.Name,
	}
}

// ConvertField maps a field dictionary entry onto the domain model.
func ConvertField(def FieldDef) *models.Field {
	return &models.Field{
		ID:   def.ID,
		Key:  def.Key,
		Name: def.Name,
	}
}
