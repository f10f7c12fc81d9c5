// Package report selects precomputed views of the store and renders them
// for the terminal. Reports are read-only consumers of the synced data.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/opsmetrics/jiralog/internal/db"
	"github.com/opsmetrics/jiralog/internal/timing"
)

// Jira's built-in status category ids.
const (
	categoryToDo       = 2 // key "new"
	categoryInProgress = 4 // key "indeterminate"
)

// Resolutions that mean the issue never represented real work.
var discardedResolutions = map[string]bool{
	"Duplicate":   true,
	"Dev Only":    true,
	"No Response": true,
	"Expired":     true,
}

// Row is one line of the ops measure: time spent waiting (To Do) and being
// fixed (In Progress) for one issue.
type Row struct {
	Key         string
	Resolution  string
	NewSeconds  int64
	NewDHMS     string
	NewDays     int64
	FixSeconds  int64
	FixDHMS     string
	FixDays     int64
	TotalDays   int64
	DueDate     string
	Status      string
	CategoryKey string
	Labels      string
}

// Generate runs the named report over the store. Unknown names are rejected
// before any query executes.
func Generate(store *db.DB, name string, now time.Time) ([]Row, error) {
	switch name {
	case "ops":
		return OpsMeasure(store, now)
	default:
		return nil, fmt.Errorf("unknown report %q (available: ops)", name)
	}
}

// OpsMeasure computes the operational measure over every issue in the
// store: elapsed and weekday-adjusted time in the To Do and In Progress
// categories, excluding epics, future work, and discarded issues.
func OpsMeasure(store *db.DB, now time.Time) ([]Row, error) {
	issues, err := store.ListIssues()
	if err != nil {
		return nil, err
	}
	statuses, err := store.ListStatuses()
	if err != nil {
		return nil, err
	}
	categories, err := store.ListStatusCategories()
	if err != nil {
		return nil, err
	}
	transitions, err := store.ListTransitions()
	if err != nil {
		return nil, err
	}

	statusByID := make(map[int64]string, len(statuses))
	categoryByStatus := make(map[int64]int64, len(statuses))
	for _, s := range statuses {
		statusByID[s.ID] = s.Name
		categoryByStatus[s.ID] = s.CategoryID
	}
	categoryKeys := make(map[int64]string, len(categories))
	for _, c := range categories {
		categoryKeys[c.ID] = c.Key
	}

	elapsed := timing.Compute(issues, statuses, transitions, now)
	type issueCategory struct {
		issueID    int64
		categoryID int64
	}
	byIssueCategory := make(map[issueCategory]timing.Elapsed, len(elapsed))
	for _, e := range elapsed {
		byIssueCategory[issueCategory{e.IssueID, e.CategoryID}] = e
	}

	var rows []Row
	for _, i := range issues {
		if i.Type == "Epic" {
			continue
		}
		if i.DueDate != nil && !i.DueDate.Before(now) {
			continue // exclude future tasks
		}
		if hasAnyLabel(i.Labels, "blocked", "awaiting", "exclude") {
			continue
		}
		if discardedResolutions[i.Resolution] {
			continue
		}
		statusName := statusByID[i.StatusID]
		if statusName == "Request Canceled" {
			continue
		}

		row := Row{
			Key:         i.Key,
			Resolution:  i.Resolution,
			Status:      statusName,
			CategoryKey: categoryKeys[categoryByStatus[i.StatusID]],
			Labels:      i.Labels,
		}
		if i.DueDate != nil {
			row.DueDate = i.DueDate.Format("2006-01-02")
		}
		if e, ok := byIssueCategory[issueCategory{i.ID, categoryToDo}]; ok {
			row.NewSeconds = e.Seconds
			row.NewDHMS = e.DHMS()
			row.NewDays = e.WeekdayDays
		}
		if e, ok := byIssueCategory[issueCategory{i.ID, categoryInProgress}]; ok {
			row.FixSeconds = e.Seconds
			row.FixDHMS = e.DHMS()
			row.FixDays = e.WeekdayDays
		}
		row.TotalDays = row.NewDays + row.FixDays
		rows = append(rows, row)
	}

	return rows, nil
}

func hasAnyLabel(labels string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(labels, n) {
			return true
		}
	}
	return false
}

var header = []string{
	"key", "resolution", "new", "newdhms", "ndays",
	"fix", "fixdhms", "fdays", "tdays", "due", "status", "category", "labels",
}

func (r Row) cells() []string {
	return []string{
		r.Key,
		r.Resolution,
		strconv.FormatInt(r.NewSeconds, 10),
		r.NewDHMS,
		strconv.FormatInt(r.NewDays, 10),
		strconv.FormatInt(r.FixSeconds, 10),
		r.FixDHMS,
		strconv.FormatInt(r.FixDays, 10),
		strconv.FormatInt(r.TotalDays, 10),
		r.DueDate,
		r.Status,
		r.CategoryKey,
		r.Labels,
	}
}

// Render writes the rows in the requested format: "table", "csv", or
// "markdown".
func Render(w io.Writer, format string, rows []Row) error {
	switch format {
	case "table":
		return renderTable(w, rows)
	case "csv":
		return renderCSV(w, rows)
	case "markdown":
		return renderMarkdown(w, rows)
	default:
		return fmt.Errorf("unknown format %q (available: table, csv, markdown)", format)
	}
}

func renderTable(w io.Writer, rows []Row) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r.cells(), "\t"))
	}
	return tw.Flush()
}

func renderCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.cells()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func renderMarkdown(w io.Writer, rows []Row) error {
	if _, err := fmt.Fprintf(w, "| %s |\n", strings.Join(header, " | ")); err != nil {
		return err
	}
	sep := make([]string, len(header))
	for i := range sep {
		sep[i] = "---"
	}
	if _, err := fmt.Fprintf(w, "| %s |\n", strings.Join(sep, " | ")); err != nil {
		return err
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(w, "| %s |\n", strings.Join(r.cells(), " | ")); err != nil {
			return err
		}
	}
	return nil
}
