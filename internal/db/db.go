package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/opsmetrics/jiralog/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultWatermark is the lower bound used when the store holds no issues
// yet. The first run then falls back to the relative day-range bound.
var DefaultWatermark = time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)

// DB represents the database connection
type DB struct {
	*sql.DB
}

// New creates a new database connection
func New(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Initialize creates the database schema if it doesn't exist
func (db *DB) Initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS issues (
		id INTEGER PRIMARY KEY,
		issue_key TEXT NOT NULL,
		summary TEXT,
		created_at TIMESTAMP NOT NULL,
		last_viewed_at TIMESTAMP,
		resolved_at TIMESTAMP,
		updated_at TIMESTAMP NOT NULL,
		due_date TIMESTAMP,
		assignee TEXT,
		creator TEXT,
		reporter TEXT,
		labels TEXT,
		status_id INTEGER,
		story_points REAL,
		issue_type TEXT,
		priority TEXT,
		project TEXT,
		resolution TEXT
	);

	CREATE INDEX IF NOT EXISTS issues_updated_at ON issues (updated_at);

	CREATE TABLE IF NOT EXISTS status_log (
		history_id INTEGER NOT NULL,
		changed_at TIMESTAMP NOT NULL,
		issue_id INTEGER NOT NULL,
		status_id INTEGER NOT NULL,
		UNIQUE (history_id, issue_id, status_id)
	);

	CREATE INDEX IF NOT EXISTS status_log_issue ON status_log (issue_id);

	CREATE TABLE IF NOT EXISTS statuses (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		category_id INTEGER
	);

	CREATE TABLE IF NOT EXISTS status_categories (
		id INTEGER PRIMARY KEY,
		category_key TEXT NOT NULL,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS fields (
		id TEXT PRIMARY KEY,
		field_key TEXT,
		name TEXT
	);

	CREATE VIEW IF NOT EXISTS current_status AS
	SELECT a.*
	FROM status_log a
	LEFT OUTER JOIN status_log b
	ON a.issue_id = b.issue_id AND a.changed_at < b.changed_at
	WHERE b.issue_id IS NULL;
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Watermark returns the most recent updated timestamp across all stored
// issues, or DefaultWatermark if the store is empty. It is read fresh at
// the start of every sync run and never cached.
func (db *DB) Watermark() (time.Time, error) {
	var ts time.Time
	query := `SELECT updated_at FROM issues ORDER BY updated_at DESC LIMIT 1`

	err := db.QueryRow(query).Scan(&ts)
	if err != nil {
		if err == sql.ErrNoRows {
			return DefaultWatermark, nil
		}
		return time.Time{}, fmt.Errorf("failed to read watermark: %w", err)
	}

	return ts.UTC(), nil
}

// UpsertIssue saves an issue to the database, replacing any previous row
// with the same id.
func (db *DB) UpsertIssue(issue *models.Issue) error {
	query := `
	INSERT INTO issues (id, issue_key, summary, created_at, last_viewed_at, resolved_at,
		updated_at, due_date, assignee, creator, reporter, labels, status_id,
		story_points, issue_type, priority, project, resolution)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		issue_key = excluded.issue_key,
		summary = excluded.summary,
		created_at = excluded.created_at,
		last_viewed_at = excluded.last_viewed_at,
		resolved_at = excluded.resolved_at,
		updated_at = excluded.updated_at,
		due_date = excluded.due_date,
		assignee = excluded.assignee,
		creator = excluded.creator,
		reporter = excluded.reporter,
		labels = excluded.labels,
		status_id = excluded.status_id,
		story_points = excluded.story_points,
		issue_type = excluded.issue_type,
		priority = excluded.priority,
		project = excluded.project,
		resolution = excluded.resolution
	`

	_, err := db.Exec(
		query,
		issue.ID,
		issue.Key,
		issue.Summary,
		issue.Created,
		issue.LastViewed,
		issue.Resolved,
		issue.Updated,
		issue.DueDate,
		issue.Assignee,
		issue.Creator,
		issue.Reporter,
		issue.Labels,
		issue.StatusID,
		issue.StoryPoints,
		issue.Type,
		issue.Priority,
		issue.Project,
		issue.Resolution,
	)
	if err != nil {
		return fmt.Errorf("failed to save issue %s: %w", issue.Key, err)
	}

	return nil
}

// UpsertTransitions saves status transitions, replacing any previous row
// with the same (history id, issue, status) triple.
func (db *DB) UpsertTransitions(transitions []models.Transition) error {
	query := `
	INSERT INTO status_log (history_id, changed_at, issue_id, status_id)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(history_id, issue_id, status_id) DO UPDATE SET
		changed_at = excluded.changed_at
	`

	for _, t := range transitions {
		if _, err := db.Exec(query, t.HistoryID, t.At, t.IssueID, t.StatusID); err != nil {
			return fmt.Errorf("failed to save transition %d for issue %d: %w", t.HistoryID, t.IssueID, err)
		}
	}

	return nil
}

// DeleteSentinel removes the synthetic bootstrap transition (history id 0)
// for the given issue. Called once real history has been confirmed.
func (db *DB) DeleteSentinel(issueID int64) error {
	_, err := db.Exec(`DELETE FROM status_log WHERE history_id = 0 AND issue_id = ?`, issueID)
	if err != nil {
		return fmt.Errorf("failed to delete sentinel for issue %d: %w", issueID, err)
	}
	return nil
}

// UpsertStatus saves a status dictionary entry.
func (db *DB) UpsertStatus(s *models.Status) error {
	query := `
	INSERT INTO statuses (id, name, description, category_id)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		description = excluded.description,
		category_id = excluded.category_id
	`

	_, err := db.Exec(query, s.ID, s.Name, s.Description, s.CategoryID)
	if err != nil {
		return fmt.Errorf("failed to save status %s: %w", s.Name, err)
	}
	return nil
}

// UpsertStatusCategory saves a status category dictionary entry.
func (db *DB) UpsertStatusCategory(c *models.StatusCategory) error {
	query := `
	INSERT INTO status_categories (id, category_key, name)
	VALUES (?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		category_key = excluded.category_key,
		name = excluded.name
	`

	_, err := db.Exec(query, c.ID, c.Key, c.Name)
	if err != nil {
		return fmt.Errorf("failed to save status category %s: %w", c.Name, err)
	}
	return nil
}

// UpsertField saves a field dictionary entry.
func (db *DB) UpsertField(f *models.Field) error {
	query := `
	INSERT INTO fields (id, field_key, name)
	VALUES (?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		field_key = excluded.field_key,
		name = excluded.name
	`

	_, err := db.Exec(query, f.ID, f.Key, f.Name)
	if err != nil {
		return fmt.Errorf("failed to save field %s: %w", f.ID, err)
	}
	return nil
}

// DeleteIssueByKey removes an issue and its status log. Returns the number
// of issue rows removed.
func (db *DB) DeleteIssueByKey(key string) (int64, error) {
	_, err := db.Exec(`DELETE FROM status_log WHERE issue_id IN (SELECT id FROM issues WHERE issue_key = ?)`, key)
	if err != nil {
		return 0, fmt.Errorf("failed to delete status log for issue %s: %w", key, err)
	}

	res, err := db.Exec(`DELETE FROM issues WHERE issue_key = ?`, key)
	if err != nil {
		return 0, fmt.Errorf("failed to delete issue %s: %w", key, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted rows: %w", err)
	}
	return n, nil
}

// ListIssues returns all stored issues.
func (db *DB) ListIssues() ([]models.Issue, error) {
	query := `
	SELECT id, issue_key, summary, created_at, last_viewed_at, resolved_at,
		updated_at, due_date, assignee, creator, reporter, labels, status_id,
		story_points, issue_type, priority, project, resolution
	FROM issues ORDER BY id
	`

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	defer rows.Close()

	var issues []models.Issue
	for rows.Next() {
		var i models.Issue
		var lastViewed, resolved, dueDate sql.NullTime
		var points sql.NullFloat64
		err := rows.Scan(&i.ID, &i.Key, &i.Summary, &i.Created, &lastViewed, &resolved,
			&i.Updated, &dueDate, &i.Assignee, &i.Creator, &i.Reporter, &i.Labels,
			&i.StatusID, &points, &i.Type, &i.Priority, &i.Project, &i.Resolution)
		if err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		i.Created = i.Created.UTC()
		i.Updated = i.Updated.UTC()
		i.LastViewed = nullTimePtr(lastViewed)
		i.Resolved = nullTimePtr(resolved)
		i.DueDate = nullTimePtr(dueDate)
		if points.Valid {
			i.StoryPoints = &points.Float64
		}
		issues = append(issues, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}

	return issues, nil
}

// ListTransitions returns all stored transitions ordered by issue and
// timestamp.
func (db *DB) ListTransitions() ([]models.Transition, error) {
	query := `
	SELECT history_id, changed_at, issue_id, status_id
	FROM status_log ORDER BY issue_id, changed_at
	`

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}
	defer rows.Close()

	var transitions []models.Transition
	for rows.Next() {
		var t models.Transition
		if err := rows.Scan(&t.HistoryID, &t.At, &t.IssueID, &t.StatusID); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		t.At = t.At.UTC()
		transitions = append(transitions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}

	return transitions, nil
}

// ListStatuses returns the status dictionary.
func (db *DB) ListStatuses() ([]models.Status, error) {
	rows, err := db.Query(`SELECT id, name, description, category_id FROM statuses ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list statuses: %w", err)
	}
	defer rows.Close()

	var statuses []models.Status
	for rows.Next() {
		var s models.Status
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.CategoryID); err != nil {
			return nil, fmt.Errorf("failed to scan status: %w", err)
		}
		statuses = append(statuses, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list statuses: %w", err)
	}

	return statuses, nil
}

// ListStatusCategories returns the status category dictionary.
func (db *DB) ListStatusCategories() ([]models.StatusCategory, error) {
	rows, err := db.Query(`SELECT id, category_key, name FROM status_categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list status categories: %w", err)
	}
	defer rows.Close()

	var cats []models.StatusCategory
	for rows.Next() {
		var c models.StatusCategory
		if err := rows.Scan(&c.ID, &c.Key, &c.Name); err != nil {
			return nil, fmt.Errorf("failed to scan status category: %w", err)
		}
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list status categories: %w", err)
	}

	return cats, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	u := t.Time.UTC()
	return &u
}
