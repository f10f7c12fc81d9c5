package jira

// SearchResponse is one page of results from POST-less GET /search.
type SearchResponse struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}

// Issue represents a Jira issue from the REST API v2 search endpoint.
// Jira serializes issue and status ids as strings.
type Issue struct {
	ID        string     `json:"id"`
	Key       string     `json:"key"`
	Fields    Fields     `json:"fields"`
	Changelog *Changelog `json:"changelog,omitempty"`
}

// Fields contains the issue fields we request. All reference and timestamp
// fields other than created/updated are optional.
type Fields struct {
	Summary        string      `json:"summary"`
	Created        string      `json:"created"`
	Updated        string      `json:"updated"`
	LastViewed     string      `json:"lastViewed,omitempty"`
	ResolutionDate string      `json:"resolutiondate,omitempty"`
	DueDate        string      `json:"duedate,omitempty"`
	Labels         []string    `json:"labels,omitempty"`
	Status         Status      `json:"status"`
	Assignee       *User       `json:"assignee,omitempty"`
	Creator        *User       `json:"creator,omitempty"`
	Reporter       *User       `json:"reporter,omitempty"`
	IssueType      *NamedRef   `json:"issuetype,omitempty"`
	Priority       *NamedRef   `json:"priority,omitempty"`
	Project        *ProjectRef `json:"project,omitempty"`
	Resolution     *NamedRef   `json:"resolution,omitempty"`
	StoryPoints    *float64    `json:"customfield_10002,omitempty"`
}

// Status represents a Jira status reference on an issue.
type Status struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	StatusCategory *StatusCategory `json:"statusCategory,omitempty"`
}

// StatusCategory represents the high-level category of a Jira status.
type StatusCategory struct {
	ID   int64  `json:"id"`
	Key  string `json:"key"`  // "new", "indeterminate", "done"
	Name string `json:"name"` // "To Do", "In Progress", "Done"
}

// StatusDef is a status dictionary entry from GET /status.
type StatusDef struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	StatusCategory StatusCategory `json:"statusCategory"`
}

// FieldDef is a field dictionary entry from GET /field.
type FieldDef struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// User represents a Jira user reference.
type User struct {
	Key         string `json:"key"`
	DisplayName string `json:"displayName"`
}

// NamedRef is a generic named reference (issuetype, priority, resolution).
type NamedRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProjectRef represents the project an issue belongs to.
type ProjectRef struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Changelog is the per-issue change history block. It is itself paginated:
// Total may exceed the number of histories returned inline.
type Changelog struct {
	StartAt    int       `json:"startAt"`
	MaxResults int       `json:"maxResults"`
	Total      int       `json:"total"`
	Histories  []History `json:"histories"`
}

// History is one changelog entry, covering one or more field changes.
type History struct {
	ID      string        `json:"id"`
	Created string        `json:"created"`
	Items   []HistoryItem `json:"items"`
}

// HistoryItem is one field change within a changelog entry.
type HistoryItem struct {
	FieldID    string `json:"fieldId"`
	Field      string `json:"field"`
	From       string `json:"from"`
	To         string `json:"to"`
	FromString string `json:"fromString"`
	ToString   string `json:"toString"`
}

// StatusChange returns the first status change item of the entry, or nil if
// the entry touched other fields only.
func (h History) StatusChange() *HistoryItem {
	for i := range h.Items {
		if h.Items[i].FieldID == "status" {
			return &h.Items[i]
		}
	}
	return nil
}
