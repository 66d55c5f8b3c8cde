package types

import (
	"strconv"
	"strings"
	"time"
)

// Relation kinds the engine cares about.
const (
	RelHierarchyForward = "System.LinkTypes.Hierarchy-Forward"
	RelRelated          = "System.LinkTypes.Related"
)

// Work item types recognised by name.
const (
	TypeProductBacklogItem = "Product Backlog Item"
	TypeFeature            = "Feature"
	TypeTask               = "Task"
	TypeBug                = "Bug"
)

// WorkItem is a work item as returned by the work item tracking API.
type WorkItem struct {
	ID        int            `json:"id" yaml:"id"`
	Rev       int            `json:"rev,omitempty" yaml:"rev,omitempty"`
	Fields    map[string]any `json:"fields" yaml:"fields"`
	Relations []Relation     `json:"relations,omitempty" yaml:"relations,omitempty"`
	URL       string         `json:"url,omitempty" yaml:"url,omitempty"`
}

// Relation is a typed link from one work item to another.
type Relation struct {
	Rel        string         `json:"rel" yaml:"rel"`
	URL        string         `json:"url" yaml:"url"`
	ID         int            `json:"id,omitempty" yaml:"id,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// TargetID returns the id of the linked item: the explicit ID when set,
// otherwise the integer in the last path segment of the link URL. It
// returns 0 when neither yields a positive id.
func (r Relation) TargetID() int {
	if r.ID > 0 {
		return r.ID
	}
	u := strings.TrimRight(r.URL, "/")
	seg := u[strings.LastIndex(u, "/")+1:]
	id, err := strconv.Atoi(seg)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

// Identity is a user reference (assignee, comment author, authenticated user).
type Identity struct {
	DisplayName string `json:"displayName" yaml:"displayName"`
	UniqueName  string `json:"uniqueName,omitempty" yaml:"uniqueName,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty" yaml:"imageUrl,omitempty"`
}

// TimeEntry is one dated contribution of hours from a line item.
type TimeEntry struct {
	Date  time.Time `json:"date" yaml:"date"`
	Hours float64   `json:"hours" yaml:"hours"`
}

// Comment is a discussion entry on a work item.
type Comment struct {
	ID           int       `json:"id" yaml:"id"`
	Text         string    `json:"text" yaml:"text"`
	RenderedText string    `json:"renderedText,omitempty" yaml:"renderedText,omitempty"`
	CreatedBy    Identity  `json:"createdBy" yaml:"createdBy"`
	CreatedDate  time.Time `json:"createdDate" yaml:"createdDate"`
}

// Reference is an id/url pair as returned by a WIQL query.
type Reference struct {
	ID  int    `json:"id"`
	URL string `json:"url"`
}
