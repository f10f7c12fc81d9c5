package sync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"strconv"
	gosync "sync"
	"testing"
	"time"

	"github.com/opsmetrics/jiralog/internal/config"
	"github.com/opsmetrics/jiralog/internal/db"
	"github.com/opsmetrics/jiralog/internal/jira"
)

// fakeJira serves whatever issues the test loads into it, ignoring the JQL
// like the real server ignores sub-minute precision.
type fakeJira struct {
	mu     gosync.Mutex
	issues []jira.Issue
}

func (f *fakeJira) set(issues ...jira.Issue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issues = issues
}

func (f *fakeJira) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	json.NewEncoder(w).Encode(jira.SearchResponse{
		MaxResults: 50,
		Total:      len(f.issues),
		Issues:     f.issues,
	})
}

func newTestSyncer(t *testing.T) (*Syncer, *fakeJira, *db.DB) {
	t.Helper()

	remote := &fakeJira{}
	srv := httptest.NewServer(remote)
	t.Cleanup(srv.Close)

	store, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Initialize(); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	client := jira.NewClient(config.Config{URL: srv.URL, Email: "dev@example.com", Token: "token"})
	return New(store, client), remote, store
}

func fakeIssue(id int64, key string, created, updated time.Time, statusID int64, changelog *jira.Changelog) jira.Issue {
	return jira.Issue{
		ID:  strconv.FormatInt(id, 10),
		Key: key,
		Fields: jira.Fields{
			Summary: "test issue",
			Created: created.Format(jira.TimeLayout),
			Updated: updated.Format(jira.TimeLayout),
			Status:  jira.Status{ID: strconv.FormatInt(statusID, 10)},
		},
		Changelog: changelog,
	}
}

func emptyChangelog() *jira.Changelog {
	return &jira.Changelog{MaxResults: 100, Total: 0}
}

// First run against an empty store: the record gains a sentinel transition.
// A later run finds real history: the sentinel is superseded by a synthetic
// entry carrying the source status of the earliest real change.
func TestSyncBootstrapThenSupersession(t *testing.T) {
	syncer, remote, store := newTestSyncer(t)
	ctx := context.Background()

	created := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	remote.set(fakeIssue(1001, "EO-1", created, created, 1, emptyChangelog()))

	if err := syncer.SyncIssues(ctx, []string{"EO"}, 35); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	transitions, err := store.ListTransitions()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(transitions) != 1 {
		t.Fatalf("got %d transitions, want 1", len(transitions))
	}
	sentinel := transitions[0]
	if !sentinel.Sentinel() || !sentinel.At.Equal(created) || sentinel.StatusID != 1 {
		t.Errorf("unexpected sentinel %+v", sentinel)
	}

	// The issue is later moved to status 2; the fetch re-finds it with one
	// real history entry.
	changed := time.Date(2024, 5, 3, 12, 0, 0, 0, time.UTC)
	updated := changed.Add(5 * time.Second)
	remote.set(fakeIssue(1001, "EO-1", created, updated, 2, &jira.Changelog{
		MaxResults: 100,
		Total:      1,
		Histories: []jira.History{{
			ID:      "777",
			Created: changed.Format(jira.TimeLayout),
			Items:   []jira.HistoryItem{{FieldID: "status", From: "1", To: "2"}},
		}},
	}))

	if err := syncer.SyncIssues(ctx, []string{"EO"}, 35); err != nil {
		t.Fatalf("second sync: %v", err)
	}

	transitions, err = store.ListTransitions()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(transitions) != 2 {
		t.Fatalf("got %d transitions, want 2: %+v", len(transitions), transitions)
	}
	for _, tr := range transitions {
		if tr.Sentinel() {
			t.Errorf("sentinel survived supersession: %+v", tr)
		}
	}

	// Open from creation to the change, status 2 thereafter.
	if transitions[0].HistoryID != 777 || !transitions[0].At.Equal(created) || transitions[0].StatusID != 1 {
		t.Errorf("unexpected synthetic entry %+v", transitions[0])
	}
	if transitions[1].HistoryID != 777 || !transitions[1].At.Equal(changed) || transitions[1].StatusID != 2 {
		t.Errorf("unexpected real entry %+v", transitions[1])
	}
}

// Running twice with no remote changes leaves the store identical.
func TestSyncIdempotentRerun(t *testing.T) {
	syncer, remote, store := newTestSyncer(t)
	ctx := context.Background()

	created := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	updated := time.Date(2024, 5, 2, 10, 30, 10, 0, time.UTC)
	remote.set(
		fakeIssue(1001, "EO-1", created, updated, 1, emptyChangelog()),
		fakeIssue(1002, "EO-2", created, updated.Add(time.Minute), 2, emptyChangelog()),
	)

	if err := syncer.SyncIssues(ctx, []string{"EO"}, 35); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	issuesBefore, err := store.ListIssues()
	if err != nil {
		t.Fatalf("list issues: %v", err)
	}
	transitionsBefore, err := store.ListTransitions()
	if err != nil {
		t.Fatalf("list transitions: %v", err)
	}
	wmBefore, err := store.Watermark()
	if err != nil {
		t.Fatalf("watermark: %v", err)
	}

	if err := syncer.SyncIssues(ctx, []string{"EO"}, 35); err != nil {
		t.Fatalf("second sync: %v", err)
	}

	issuesAfter, err := store.ListIssues()
	if err != nil {
		t.Fatalf("list issues: %v", err)
	}
	transitionsAfter, err := store.ListTransitions()
	if err != nil {
		t.Fatalf("list transitions: %v", err)
	}
	wmAfter, err := store.Watermark()
	if err != nil {
		t.Fatalf("watermark: %v", err)
	}

	if !reflect.DeepEqual(issuesBefore, issuesAfter) {
		t.Errorf("issues changed on re-run:\n%+v\n%+v", issuesBefore, issuesAfter)
	}
	if !reflect.DeepEqual(transitionsBefore, transitionsAfter) {
		t.Errorf("transitions changed on re-run:\n%+v\n%+v", transitionsBefore, transitionsAfter)
	}
	if !wmAfter.Equal(wmBefore) || wmAfter.Before(wmBefore) {
		t.Errorf("watermark moved on empty re-run: %v -> %v", wmBefore, wmAfter)
	}
}

// The JQL date bound only has minute resolution, so the remote re-returns
// issues from the watermark's minute. Re-processing them must not create
// duplicate transitions.
func TestSyncBoundaryQuirkTolerance(t *testing.T) {
	syncer, remote, store := newTestSyncer(t)
	ctx := context.Background()

	created := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	updated := time.Date(2024, 1, 1, 10, 30, 10, 0, time.UTC)
	remote.set(fakeIssue(1001, "EO-1", created, updated, 1, emptyChangelog()))

	for i := 0; i < 3; i++ {
		if err := syncer.SyncIssues(ctx, []string{"EO"}, 35); err != nil {
			t.Fatalf("sync %d: %v", i, err)
		}
	}

	transitions, err := store.ListTransitions()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(transitions) != 1 {
		t.Errorf("got %d transitions, want 1", len(transitions))
	}
}

// An issue whose changelog is itself paginated keeps its observed
// transitions but never gains a fabricated bootstrap entry.
func TestSyncIncompleteHistoryPersistsObserved(t *testing.T) {
	syncer, remote, store := newTestSyncer(t)
	ctx := context.Background()

	created := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	updated := time.Date(2024, 5, 3, 12, 0, 0, 0, time.UTC)
	remote.set(fakeIssue(1001, "EO-1", created, updated, 2, &jira.Changelog{
		MaxResults: 1,
		Total:      9,
		Histories: []jira.History{{
			ID:      "500",
			Created: updated.Format(jira.TimeLayout),
			Items:   []jira.HistoryItem{{FieldID: "status", From: "1", To: "2"}},
		}},
	}))

	if err := syncer.SyncIssues(ctx, []string{"EO"}, 35); err != nil {
		t.Fatalf("sync: %v", err)
	}

	transitions, err := store.ListTransitions()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(transitions) != 1 {
		t.Fatalf("got %d transitions, want only the observed one", len(transitions))
	}
	if transitions[0].Sentinel() {
		t.Error("bootstrap applied to incomplete history")
	}

	issues, err := store.ListIssues()
	if err != nil {
		t.Fatalf("list issues: %v", err)
	}
	if len(issues) != 1 {
		t.Errorf("issue row missing despite incomplete history")
	}
}

// Transitions always reference a persisted issue row.
func TestSyncNoOrphanTransitions(t *testing.T) {
	syncer, remote, store := newTestSyncer(t)
	ctx := context.Background()

	created := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	remote.set(
		fakeIssue(1001, "EO-1", created, created.Add(time.Hour), 1, emptyChangelog()),
		fakeIssue(1002, "EO-2", created, created.Add(2*time.Hour), 2, emptyChangelog()),
	)

	if err := syncer.SyncIssues(ctx, []string{"EO"}, 35); err != nil {
		t.Fatalf("sync: %v", err)
	}

	var orphans int
	err := store.QueryRow(`
		SELECT COUNT(*) FROM status_log
		WHERE issue_id NOT IN (SELECT id FROM issues)
	`).Scan(&orphans)
	if err != nil {
		t.Fatalf("count orphans: %v", err)
	}
	if orphans != 0 {
		t.Errorf("found %d orphan transitions", orphans)
	}
}

func TestSyncNoProjects(t *testing.T) {
	syncer, _, _ := newTestSyncer(t)
	if err := syncer.SyncIssues(context.Background(), nil, 35); err == nil {
		t.Fatal("expected error with no projects configured")
	}
}
