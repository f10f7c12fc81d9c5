// Package timing turns a status transition log into elapsed-time-in-status
// metrics. It replaces the layered SQL views of earlier tooling with an
// explicit pipeline: transitions -> intervals -> category sums.
package timing

import (
	"fmt"
	"sort"
	"time"

	"github.com/opsmetrics/jiralog/internal/models"
)

// Interval is the half-open span [Start, End) during which an issue held a
// status. The last interval of each issue ends at "now".
type Interval struct {
	IssueID  int64
	StatusID int64
	Start    time.Time
	End      time.Time
}

// Elapsed is the total time one issue spent in one status category.
type Elapsed struct {
	IssueID    int64
	CategoryID int64

	// Seconds is raw elapsed time, with each interval start clipped to the
	// issue's due date (or the epoch when no due date is set).
	Seconds int64

	// WeekdayDays approximates elapsed weekdays: for each interval,
	// days - (startWeekday + days)/7*2 in integer arithmetic, summed.
	// It subtracts roughly two days per spanned 7-day period.
	WeekdayDays int64
}

// DHMS renders the elapsed seconds as "days:HH:MM:SS".
func (e Elapsed) DHMS() string {
	return FormatDHMS(e.Seconds)
}

// FormatDHMS renders a duration in seconds as "days:HH:MM:SS".
func FormatDHMS(seconds int64) string {
	days := seconds / 86400
	rem := seconds % 86400
	return fmt.Sprintf("%d:%02d:%02d:%02d", days, rem/3600, (rem%3600)/60, rem%60)
}

// Intervals pairs each transition with the timestamp of the issue's next
// transition, or now for the latest one. Input order does not matter.
func Intervals(transitions []models.Transition, now time.Time) []Interval {
	byIssue := make(map[int64][]models.Transition)
	var issueIDs []int64
	for _, t := range transitions {
		if _, ok := byIssue[t.IssueID]; !ok {
			issueIDs = append(issueIDs, t.IssueID)
		}
		byIssue[t.IssueID] = append(byIssue[t.IssueID], t)
	}
	sort.Slice(issueIDs, func(i, j int) bool { return issueIDs[i] < issueIDs[j] })

	var intervals []Interval
	for _, id := range issueIDs {
		ts := byIssue[id]
		sort.SliceStable(ts, func(i, j int) bool {
			if !ts[i].At.Equal(ts[j].At) {
				return ts[i].At.Before(ts[j].At)
			}
			return ts[i].HistoryID < ts[j].HistoryID
		})
		for i, t := range ts {
			end := now
			if i+1 < len(ts) {
				end = ts[i+1].At
			}
			intervals = append(intervals, Interval{
				IssueID:  t.IssueID,
				StatusID: t.StatusID,
				Start:    t.At,
				End:      end,
			})
		}
	}
	return intervals
}

// Compute aggregates elapsed time per (issue, status category) over the
// full transition log. Intervals whose status is missing from the status
// dictionary are dropped, mirroring the inner join the reports rely on.
// An interval that ends before the issue's due date contributes negative
// seconds: clipping moves only the start, so time spent before the due
// date is charged against the category rather than ignored.
func Compute(issues []models.Issue, statuses []models.Status, transitions []models.Transition, now time.Time) []Elapsed {
	categoryByStatus := make(map[int64]int64, len(statuses))
	for _, s := range statuses {
		categoryByStatus[s.ID] = s.CategoryID
	}

	clipByIssue := make(map[int64]time.Time, len(issues))
	for _, i := range issues {
		clip := time.Unix(0, 0).UTC()
		if i.DueDate != nil {
			clip = *i.DueDate
		}
		clipByIssue[i.ID] = clip
	}

	type groupKey struct {
		issueID    int64
		categoryID int64
	}
	sums := make(map[groupKey]*Elapsed)
	var order []groupKey

	for _, iv := range Intervals(transitions, now) {
		categoryID, ok := categoryByStatus[iv.StatusID]
		if !ok {
			continue
		}
		clip, ok := clipByIssue[iv.IssueID]
		if !ok {
			continue
		}

		start := iv.Start
		if clip.After(start) {
			start = clip
		}
		seconds := iv.End.Unix() - start.Unix()
		days := seconds / 86400
		weekday := int64(start.UTC().Weekday()) // Sunday = 0
		weekdayDays := days - (weekday+days)/7*2

		k := groupKey{iv.IssueID, categoryID}
		e, ok := sums[k]
		if !ok {
			e = &Elapsed{IssueID: iv.IssueID, CategoryID: categoryID}
			sums[k] = e
			order = append(order, k)
		}
		e.Seconds += seconds
		e.WeekdayDays += weekdayDays
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].issueID != order[j].issueID {
			return order[i].issueID < order[j].issueID
		}
		return order[i].categoryID < order[j].categoryID
	})

	out := make([]Elapsed, 0, len(order))
	for _, k := range order {
		out = append(out, *sums[k])
	}
	return out
}
