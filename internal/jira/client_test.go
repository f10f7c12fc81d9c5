package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsmetrics/jiralog/internal/config"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.Config{URL: srv.URL, Email: "dev@example.com", Token: "token"})
}

// pagedSearchHandler simulates a search endpoint with the given total,
// honoring pageSize and recording the requested offsets.
type pagedSearchHandler struct {
	total    int
	pageSize int

	mu       sync.Mutex
	requests int
	offsets  []int
}

func (h *pagedSearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	startAt, _ := strconv.Atoi(r.URL.Query().Get("startAt"))

	h.mu.Lock()
	h.requests++
	h.offsets = append(h.offsets, startAt)
	h.mu.Unlock()

	n := h.pageSize
	if startAt+n > h.total {
		n = h.total - startAt
	}
	res := SearchResponse{
		StartAt:    startAt,
		MaxResults: h.pageSize,
		Total:      h.total,
	}
	for i := 0; i < n; i++ {
		res.Issues = append(res.Issues, Issue{
			ID:  strconv.Itoa(startAt + i + 1),
			Key: fmt.Sprintf("EO-%d", startAt+i+1),
		})
	}
	json.NewEncoder(w).Encode(res)
}

func TestSearchAllPaginationCompleteness(t *testing.T) {
	handler := &pagedSearchHandler{total: 120, pageSize: 50}
	client := testClient(t, handler)

	pages, err := client.SearchAll(context.Background(), "project in (EO)", 50)
	require.NoError(t, err)

	require.Len(t, pages, 3)
	assert.Equal(t, 3, handler.requests, "expected exactly 3 page requests")

	sort.Ints(handler.offsets)
	assert.Equal(t, []int{0, 50, 100}, handler.offsets)

	var issues []Issue
	for _, p := range pages {
		issues = append(issues, p.Issues...)
	}
	assert.Len(t, issues, 120)

	seen := make(map[string]bool)
	for _, i := range issues {
		assert.False(t, seen[i.ID], "issue %s returned twice", i.ID)
		seen[i.ID] = true
	}
}

func TestSearchAllSinglePage(t *testing.T) {
	handler := &pagedSearchHandler{total: 7, pageSize: 50}
	client := testClient(t, handler)

	pages, err := client.SearchAll(context.Background(), "project in (EO)", 50)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, 1, handler.requests)
	assert.Len(t, pages[0].Issues, 7)
}

func TestSearchAllHonorsServerPageSize(t *testing.T) {
	// The server clamps the requested page size to 25.
	handler := &pagedSearchHandler{total: 60, pageSize: 25}
	client := testClient(t, handler)

	pages, err := client.SearchAll(context.Background(), "project in (EO)", 100)
	require.NoError(t, err)
	require.Len(t, pages, 3)

	sort.Ints(handler.offsets)
	assert.Equal(t, []int{0, 25, 50}, handler.offsets)
}

func TestSearchAllServerError(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := client.SearchAll(context.Background(), "project in (EO)", 50)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Jira API returned 500")
}

func TestBuildJQL(t *testing.T) {
	wm := time.Date(2024, 1, 1, 10, 30, 45, 0, time.UTC)
	jql := BuildJQL([]string{"EO", "CE"}, 35, wm)
	assert.Equal(t, "project in (EO,CE) and updated > -35d and updated > '2024/01/01 10:30'", jql)
}

func TestMetadataEndpoints(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/statuscategory", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]StatusCategory{
			{ID: 2, Key: "new", Name: "To Do"},
			{ID: 4, Key: "indeterminate", Name: "In Progress"},
		})
	})
	mux.HandleFunc("/rest/api/2/status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]StatusDef{
			{ID: "1", Name: "Open", StatusCategory: StatusCategory{ID: 2, Key: "new"}},
		})
	})
	mux.HandleFunc("/rest/api/2/field", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]FieldDef{
			{ID: "customfield_10002", Key: "customfield_10002", Name: "Story Points"},
		})
	})
	client := testClient(t, mux)

	cats, err := client.StatusCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "new", cats[0].Key)

	defs, err := client.Statuses(context.Background())
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, int64(2), defs[0].StatusCategory.ID)

	fields, err := client.Fields(context.Background())
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "Story Points", fields[0].Name)
}

func TestClientSendsAuthHeader(t *testing.T) {
	var gotAuth string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(SearchResponse{})
	})
	client := testClient(t, handler)

	_, err := client.SearchAll(context.Background(), "key = EO-1", 50)
	require.NoError(t, err)
	assert.Contains(t, gotAuth, "Basic ")
}
