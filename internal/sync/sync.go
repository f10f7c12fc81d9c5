// Package sync pulls issues from Jira into the local store and rebuilds
// each issue's status transition log. Runs are idempotent: replaying the
// same remote state converges on the same store contents.
package sync

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/opsmetrics/jiralog/internal/db"
	"github.com/opsmetrics/jiralog/internal/jira"
)

// defaultPageSize is the page size requested from the search endpoint. The
// server may honor a smaller value; the fetcher adapts to what it reports.
const defaultPageSize = 50

// Syncer handles syncing Jira issues to the local database
type Syncer struct {
	db     *db.DB
	client *jira.Client
}

// New creates a new syncer
func New(db *db.DB, client *jira.Client) *Syncer {
	return &Syncer{
		db:     db,
		client: client,
	}
}

// SyncIssues fetches every issue in the given projects updated after the
// stored watermark (bounded by dayRange days back) and persists the issues
// and their reconstructed transition logs.
func (s *Syncer) SyncIssues(ctx context.Context, projects []string, dayRange int) error {
	if len(projects) == 0 {
		return fmt.Errorf("no projects configured")
	}

	watermark, err := s.db.Watermark()
	if err != nil {
		return fmt.Errorf("failed to read watermark: %w", err)
	}

	jql := jira.BuildJQL(projects, dayRange, watermark)
	log.Printf("jira query: %s", jql)

	pages, err := s.client.SearchAll(ctx, jql, defaultPageSize)
	if err != nil {
		return fmt.Errorf("failed to search issues: %w", err)
	}

	total := 0
	for _, page := range pages {
		n, err := s.processPage(page, watermark)
		if err != nil {
			return err
		}
		total += n
	}

	log.Printf("issues updated: %d", total)
	return nil
}

// processPage persists one page of search results. Issues whose updated
// timestamp does not beat the watermark at second resolution are skipped:
// the JQL date predicate only has minute resolution, so the page matching
// the watermark's minute is always re-returned.
func (s *Syncer) processPage(page *jira.SearchResponse, watermark time.Time) (int, error) {
	var updated []string
	wm := watermark.Truncate(time.Second)

	for _, raw := range page.Issues {
		issueUpdated, err := jira.ParseTime(raw.Fields.Updated)
		if err != nil {
			return 0, fmt.Errorf("issue %s: updated: %w", raw.Key, err)
		}
		if !issueUpdated.Truncate(time.Second).After(wm) {
			continue
		}

		if err := s.processIssue(raw); err != nil {
			return 0, err
		}
		updated = append(updated, raw.Key)
	}

	if len(updated) > 0 {
		log.Printf("updating: %s", strings.Join(updated, ", "))
	}
	return len(updated), nil
}

// processIssue persists a single issue and its reconstructed transitions.
// Write order matters: the issue row first, then its transitions, then the
// sentinel delete, so a reader never sees transitions for an unknown issue.
func (s *Syncer) processIssue(raw jira.Issue) error {
	issue, err := jira.ConvertIssue(raw)
	if err != nil {
		return err
	}

	rec, err := Reconstruct(issue, raw.Changelog)
	if err != nil {
		return err
	}

	if err := s.db.UpsertIssue(issue); err != nil {
		return err
	}
	if err := s.db.UpsertTransitions(rec.Transitions); err != nil {
		return err
	}
	if rec.DropSentinel {
		if err := s.db.DeleteSentinel(issue.ID); err != nil {
			return err
		}
	}

	if rec.Incomplete {
		log.Printf("need to paginate history on issue %s", issue.Key)
	}
	return nil
}

// SyncMetadata mirrors the status category, status, and field dictionaries
// into the store. Categories come first so statuses never reference an
// unknown category.
func (s *Syncer) SyncMetadata(ctx context.Context) error {
	cats, err := s.client.StatusCategories(ctx)
	if err != nil {
		return err
	}
	for _, c := range cats {
		if err := s.db.UpsertStatusCategory(jira.ConvertStatusCategory(c)); err != nil {
			return err
		}
	}

	defs, err := s.client.Statuses(ctx)
	if err != nil {
		return err
	}
	for _, d := range defs {
		status, err := jira.ConvertStatus(d)
		if err != nil {
			return err
		}
		if err := s.db.UpsertStatus(status); err != nil {
			return err
		}
	}

	fields, err := s.client.Fields(ctx)
	if err != nil {
		return err
	}
	for _, f := range fields {
		if err := s.db.UpsertField(jira.ConvertField(f)); err != nil {
			return err
		}
	}

	log.Printf("metadata updated: %d categories, %d statuses, %d fields",
		len(cats), len(defs), len(fields))
	return nil
}
