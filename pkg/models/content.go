// Package models contains request/response models and business domain types.
package models

import (
	"encoding/json"
	"time"
)

// ContentType identifies the kind of a content item and dictates the shape
// of its data document.
type ContentType string

const (
	ContentTypeProject    ContentType = "project"
	ContentTypeExperience ContentType = "experience"
	ContentTypeEducation  ContentType = "education"
	ContentTypeSkill      ContentType = "skill"
	ContentTypeAbout      ContentType = "about"
	ContentTypeContact    ContentType = "contact"
)

// ContentTypes lists every valid content type.
var ContentTypes = []ContentType{
	ContentTypeProject,
	ContentTypeExperience,
	ContentTypeEducation,
	ContentTypeSkill,
	ContentTypeAbout,
	ContentTypeContact,
}

// IsValid reports whether t is a known content type.
func (t ContentType) IsValid() bool {
	for _, ct := range ContentTypes {
		if t == ct {
			return true
		}
	}
	return false
}

// IsSingleton reports whether at most one live item of this type may exist.
// The bundle view collapses these types to a single value, so the repository
// rejects a second live row at write time.
func (t ContentType) IsSingleton() bool {
	return t == ContentTypeAbout || t == ContentTypeContact
}

// ContentStatus is the publication lifecycle state of a content item.
type ContentStatus string

const (
	ContentStatusDraft     ContentStatus = "draft"
	ContentStatusPublished ContentStatus = "published"
	ContentStatusArchived  ContentStatus = "archived"
)

// IsValid reports whether s is a known content status.
func (s ContentStatus) IsValid() bool {
	switch s {
	case ContentStatusDraft, ContentStatusPublished, ContentStatusArchived:
		return true
	}
	return false
}

// ChangeType classifies a content history entry.
type ChangeType string

const (
	ChangeTypeCreated  ChangeType = "created"
	ChangeTypeUpdated  ChangeType = "updated"
	ChangeTypeDeleted  ChangeType = "deleted"
	ChangeTypeRestored ChangeType = "restored"
)

// ContentItem is a single addressable portfolio record. Data is an opaque
// JSON document whose shape is dictated by Type; the repository never
// interprets it.
type ContentItem struct {
	ID        string          `json:"id"`
	Type      ContentType     `json:"type"`
	Slug      string          `json:"slug"`
	Data      json.RawMessage `json:"data"`
	Status    ContentStatus   `json:"status"`
	Version   int             `json:"version"`
	SortOrder int             `json:"sortOrder"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	DeletedAt *time.Time      `json:"deletedAt,omitempty"`
}

// ContentHistory is an append-only snapshot of a content item at a version.
type ContentHistory struct {
	ID            string          `json:"id"`
	ContentID     string          `json:"contentId"`
	Version       int             `json:"version"`
	Data          json.RawMessage `json:"data"`
	ChangeType    ChangeType      `json:"changeType"`
	ChangedBy     string          `json:"changedBy,omitempty"`
	ChangeSummary string          `json:"changeSummary,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// CreateContentRequest contains fields for creating a content item.
type CreateContentRequest struct {
	Type      ContentType    `json:"type"`
	Slug      string         `json:"slug"`
	Data      map[string]any `json:"data"`
	Status    ContentStatus  `json:"status,omitempty"`
	SortOrder int            `json:"sortOrder,omitempty"`
}

// UpdateContentRequest contains fields for updating a content item.
// Nil pointers mean "leave unchanged".
type UpdateContentRequest struct {
	Slug      *string        `json:"slug,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Status    *ContentStatus `json:"status,omitempty"`
	SortOrder *int           `json:"sortOrder,omitempty"`
}

// ContentListQuery contains filtering options for the admin content listing.
type ContentListQuery struct {
	Type           ContentType   `json:"type,omitempty"`
	Status         ContentStatus `json:"status,omitempty"`
	IncludeDeleted bool          `json:"includeDeleted,omitempty"`
	Limit          int           `json:"limit,omitempty"`
	Offset         int           `json:"offset,omitempty"`
}

// ContentListResponse contains a paginated content listing.
type ContentListResponse struct {
	Items  []*ContentItem `json:"items"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// Bundle is the aggregated view of all published content partitioned by type.
// Singleton types collapse to a single item.
type Bundle struct {
	Projects    []*ContentItem `json:"projects"`
	Experiences []*ContentItem `json:"experiences"`
	Education   []*ContentItem `json:"education"`
	Skills      []*ContentItem `json:"skills"`
	About       *ContentItem   `json:"about"`
	Contact     *ContentItem   `json:"contact"`
}
