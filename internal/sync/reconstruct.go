package sync

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/opsmetrics/jiralog/internal/jira"
	"github.com/opsmetrics/jiralog/internal/models"
)

// Reconstruction is the result of rebuilding one issue's transition log
// from its raw changelog.
type Reconstruction struct {
	// Transitions in chronological order, deduplicated on the
	// (history id, issue, status) triple. May include one synthetic entry
	// covering the span from creation to the earliest observed change.
	Transitions []models.Transition

	// DropSentinel is set when real history exists, superseding any
	// previously stored bootstrap sentinel for this issue.
	DropSentinel bool

	// Incomplete is set when the changelog itself was paginated and the
	// returned entries do not cover the full history. The bootstrap rule is
	// suppressed in that case so we never fabricate early history.
	Incomplete bool
}

// statusChange is one real status transition extracted from the changelog,
// with its source status retained for the supersession synthetic.
type statusChange struct {
	transition   models.Transition
	fromStatusID int64
}

// Reconstruct rebuilds the status transition log for one issue from its raw
// change history. It is a pure function of its inputs: identical input
// always yields an identical result.
func Reconstruct(issue *models.Issue, changelog *jira.Changelog) (Reconstruction, error) {
	changes, err := extractStatusChanges(issue, changelog)
	if err != nil {
		return Reconstruction{}, err
	}

	sort.SliceStable(changes, func(i, j int) bool {
		a, b := changes[i].transition, changes[j].transition
		if !a.At.Equal(b.At) {
			return a.At.Before(b.At)
		}
		return a.HistoryID < b.HistoryID
	})

	rec := Reconstruction{}
	for _, c := range changes {
		rec.Transitions = append(rec.Transitions, c.transition)
	}

	if changelog != nil && changelog.Total > len(changelog.Histories) {
		// The changelog was paginated; anything before the returned window
		// is unknown, so we persist what we saw and skip the bootstrap.
		rec.Incomplete = true
		return rec, nil
	}

	if len(changes) == 0 {
		// No observed transitions: assume the current status has held since
		// creation. History id 0 marks the entry as synthetic.
		rec.Transitions = []models.Transition{{
			HistoryID: 0,
			At:        issue.Created,
			IssueID:   issue.ID,
			StatusID:  issue.StatusID,
		}}
		return rec, nil
	}

	// Real history supersedes the bootstrap assumption: the span from
	// creation to the earliest change is attributed to that change's source
	// status, and any stored sentinel is marked for deletion.
	earliest := changes[0]
	synthetic := models.Transition{
		HistoryID: earliest.transition.HistoryID,
		At:        issue.Created,
		IssueID:   issue.ID,
		StatusID:  earliest.fromStatusID,
	}
	rec.Transitions = append([]models.Transition{synthetic}, rec.Transitions...)
	rec.DropSentinel = true
	return rec, nil
}

// extractStatusChanges keeps only the changelog entries that changed the
// status field, decoded and deduplicated.
func extractStatusChanges(issue *models.Issue, changelog *jira.Changelog) ([]statusChange, error) {
	if changelog == nil {
		return nil, nil
	}

	type key struct {
		historyID int64
		statusID  int64
	}
	seen := make(map[key]bool)

	var changes []statusChange
	for _, h := range changelog.Histories {
		item := h.StatusChange()
		if item == nil {
			continue
		}

		historyID, err := strconv.ParseInt(h.ID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("issue %s: parsing history id %q: %w", issue.Key, h.ID, err)
		}
		at, err := jira.ParseTime(h.Created)
		if err != nil {
			return nil, fmt.Errorf("issue %s: history %d: %w", issue.Key, historyID, err)
		}
		toStatus, err := strconv.ParseInt(item.To, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("issue %s: history %d: parsing status id %q: %w", issue.Key, historyID, item.To, err)
		}
		fromStatus, err := strconv.ParseInt(item.From, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("issue %s: history %d: parsing status id %q: %w", issue.Key, historyID, item.From, err)
		}

		k := key{historyID, toStatus}
		if seen[k] {
			continue
		}
		seen[k] = true

		changes = append(changes, statusChange{
			transition: models.Transition{
				HistoryID: historyID,
				At:        at,
				IssueID:   issue.ID,
				StatusID:  toStatus,
			},
			fromStatusID: fromStatus,
		})
	}

	return changes, nil
}
