// Package validation checks content data documents against the per-type
// schema before they reach the repository. Validation is dispatched by the
// item's type tag; the repository itself treats data as opaque JSON.
package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/openfolio/openfolio/pkg/models"
)

var (
	slugRegex  = regexp.MustCompile(`^[a-z0-9-]{1,100}$`)
	monthRegex = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)
)

// Field-length and array caps shared by the type schemas.
const (
	maxTitleLen       = 200
	maxNameLen        = 200
	maxShortTextLen   = 500
	maxLongTextLen    = 5000
	maxURLLen         = 2048
	maxTags           = 20
	maxItems          = 50
	maxHighlights     = 20
	MaxSlugLen        = 100
	DefaultListLimit  = 50
	MaxListLimit      = 100
	MaxSearchLimit    = 50
	DefaultSearchHits = 10
)

// SkillCategories enumerates valid skill item categories.
var SkillCategories = []string{"language", "framework", "tool", "platform", "practice", "other"}

// EmploymentTypes enumerates valid experience employment types.
var EmploymentTypes = []string{"full-time", "part-time", "contract", "freelance", "internship"}

// Error aggregates per-field validation failures, keyed by dotted field path.
type Error struct {
	Fields map[string][]string
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	paths := make([]string, 0, len(e.Fields))
	for p := range e.Fields {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return "validation failed: " + strings.Join(paths, ", ")
}

// Add records a failure message for a field path.
func (e *Error) Add(path, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[path] = append(e.Fields[path], message)
}

func (e *Error) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// ValidateSlug checks the slug shape (lowercase alphanumerics and hyphens,
// at most 100 characters).
func ValidateSlug(slug string) error {
	if !slugRegex.MatchString(slug) {
		ve := &Error{}
		ve.Add("slug", "must match ^[a-z0-9-]{1,100}$")
		return ve
	}
	return nil
}

var slugStripRegex = regexp.MustCompile(`[^a-z0-9]+`)

// DeriveSlug derives a slug from a human title: lowercase, non-alphanumeric
// runs collapsed to single hyphens, edges trimmed, truncated to 100.
func DeriveSlug(title string) string {
	s := strings.ToLower(title)
	s = slugStripRegex.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > MaxSlugLen {
		s = s[:MaxSlugLen]
		s = strings.TrimRight(s, "-")
	}
	return s
}

// NormalizeListQuery bounds pagination values: limit defaults to 50 and is
// capped at 100, offset is floored at 0.
func NormalizeListQuery(q *models.ContentListQuery) {
	if q.Limit <= 0 {
		q.Limit = DefaultListLimit
	}
	if q.Limit > MaxListLimit {
		q.Limit = MaxListLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
}

// ValidateContentData validates a data document against the schema for its
// type and returns the document on success. Failures carry per-field paths.
func ValidateContentData(contentType models.ContentType, data map[string]any) (map[string]any, error) {
	if data == nil {
		ve := &Error{}
		ve.Add("data", "is required")
		return nil, ve
	}

	ve := &Error{}
	switch contentType {
	case models.ContentTypeProject:
		validateProject(ve, data)
	case models.ContentTypeExperience:
		validateExperience(ve, data)
	case models.ContentTypeEducation:
		validateEducation(ve, data)
	case models.ContentTypeSkill:
		validateSkillList(ve, data)
	case models.ContentTypeAbout:
		validateAbout(ve, data)
	case models.ContentTypeContact:
		validateContact(ve, data)
	default:
		ve.Add("type", fmt.Sprintf("unknown content type %q", contentType))
	}

	if err := ve.orNil(); err != nil {
		return nil, err
	}
	return data, nil
}

func validateProject(ve *Error, data map[string]any) {
	requireString(ve, data, "title", maxTitleLen)
	requireString(ve, data, "description", maxLongTextLen)
	optionalURL(ve, data, "url")
	optionalURL(ve, data, "repoUrl")
	optionalURL(ve, data, "imageUrl")
	optionalStringArray(ve, data, "tags", maxTags, maxNameLen)
	optionalStringArray(ve, data, "highlights", maxHighlights, maxShortTextLen)
}

func validateExperience(ve *Error, data map[string]any) {
	requireString(ve, data, "company", maxNameLen)
	requireString(ve, data, "role", maxNameLen)
	optionalString(ve, data, "description", maxLongTextLen)
	optionalEnum(ve, data, "employmentType", EmploymentTypes)
	requireMonth(ve, data, "startDate")
	optionalMonth(ve, data, "endDate") // null means current position
	optionalStringArray(ve, data, "highlights", maxHighlights, maxShortTextLen)
	optionalStringArray(ve, data, "tags", maxTags, maxNameLen)
}

func validateEducation(ve *Error, data map[string]any) {
	requireString(ve, data, "institution", maxNameLen)
	requireString(ve, data, "degree", maxNameLen)
	optionalString(ve, data, "field", maxNameLen)
	requireMonth(ve, data, "startDate")
	optionalMonth(ve, data, "endDate")
	optionalString(ve, data, "description", maxLongTextLen)
}

// validateSkillList validates the list-shaped skill document:
// {name, items: [{name, category, level?}]}.
func validateSkillList(ve *Error, data map[string]any) {
	requireString(ve, data, "name", maxNameLen)

	raw, ok := data["items"]
	if !ok {
		ve.Add("items", "is required")
		return
	}
	items, ok := raw.([]any)
	if !ok {
		ve.Add("items", "must be an array")
		return
	}
	if len(items) > maxItems {
		ve.Add("items", fmt.Sprintf("must have at most %d entries", maxItems))
	}
	for i, item := range items {
		path := fmt.Sprintf("items.%d", i)
		obj, ok := item.(map[string]any)
		if !ok {
			ve.Add(path, "must be an object")
			continue
		}
		requireStringAt(ve, obj, "name", path+".name", maxNameLen)
		if v, ok := obj["category"]; ok {
			checkEnumAt(ve, v, path+".category", SkillCategories)
		} else {
			ve.Add(path+".category", "is required")
		}
		if v, ok := obj["level"]; ok {
			checkStringAt(ve, v, path+".level", maxNameLen)
		}
	}
}

func validateAbout(ve *Error, data map[string]any) {
	requireString(ve, data, "name", maxNameLen)
	requireString(ve, data, "content", maxLongTextLen)
	optionalString(ve, data, "tagline", maxShortTextLen)
	optionalURL(ve, data, "imageUrl")
}

func validateContact(ve *Error, data map[string]any) {
	requireString(ve, data, "email", maxNameLen)
	optionalString(ve, data, "location", maxNameLen)
	optionalURL(ve, data, "linkedinUrl")
	optionalURL(ve, data, "githubUrl")
	optionalURL(ve, data, "websiteUrl")
}

func requireString(ve *Error, data map[string]any, field string, maxLen int) {
	requireStringAt(ve, data, field, field, maxLen)
}

func requireStringAt(ve *Error, data map[string]any, field, path string, maxLen int) {
	v, ok := data[field]
	if !ok || v == nil {
		ve.Add(path, "is required")
		return
	}
	checkStringLenAt(ve, v, path, maxLen, true)
}

func optionalString(ve *Error, data map[string]any, field string, maxLen int) {
	v, ok := data[field]
	if !ok || v == nil {
		return
	}
	checkStringLenAt(ve, v, field, maxLen, false)
}

func checkStringAt(ve *Error, v any, path string, maxLen int) {
	checkStringLenAt(ve, v, path, maxLen, false)
}

func checkStringLenAt(ve *Error, v any, path string, maxLen int, required bool) {
	s, ok := v.(string)
	if !ok {
		ve.Add(path, "must be a string")
		return
	}
	if required && strings.TrimSpace(s) == "" {
		ve.Add(path, "must not be empty")
		return
	}
	if len(s) > maxLen {
		ve.Add(path, fmt.Sprintf("must be at most %d characters", maxLen))
	}
}

func optionalURL(ve *Error, data map[string]any, field string) {
	v, ok := data[field]
	if !ok || v == nil {
		return
	}
	s, ok := v.(string)
	if !ok {
		ve.Add(field, "must be a string")
		return
	}
	if len(s) > maxURLLen {
		ve.Add(field, fmt.Sprintf("must be at most %d characters", maxURLLen))
		return
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		ve.Add(field, "must be an http(s) URL")
	}
}

func optionalEnum(ve *Error, data map[string]any, field string, allowed []string) {
	v, ok := data[field]
	if !ok || v == nil {
		return
	}
	checkEnumAt(ve, v, field, allowed)
}

func checkEnumAt(ve *Error, v any, path string, allowed []string) {
	s, ok := v.(string)
	if !ok {
		ve.Add(path, "must be a string")
		return
	}
	for _, a := range allowed {
		if s == a {
			return
		}
	}
	ve.Add(path, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")))
}

func requireMonth(ve *Error, data map[string]any, field string) {
	v, ok := data[field]
	if !ok || v == nil {
		ve.Add(field, "is required")
		return
	}
	checkMonthAt(ve, v, field)
}

func optionalMonth(ve *Error, data map[string]any, field string) {
	v, ok := data[field]
	if !ok || v == nil {
		return
	}
	checkMonthAt(ve, v, field)
}

func checkMonthAt(ve *Error, v any, path string) {
	s, ok := v.(string)
	if !ok {
		ve.Add(path, "must be a string")
		return
	}
	if !monthRegex.MatchString(s) {
		ve.Add(path, "must be in YYYY-MM format")
	}
}

func optionalStringArray(ve *Error, data map[string]any, field string, maxEntries, maxLen int) {
	v, ok := data[field]
	if !ok || v == nil {
		return
	}
	arr, ok := v.([]any)
	if !ok {
		ve.Add(field, "must be an array")
		return
	}
	if len(arr) > maxEntries {
		ve.Add(field, fmt.Sprintf("must have at most %d entries", maxEntries))
	}
	for i, item := range arr {
		checkStringAt(ve, item, fmt.Sprintf("%s.%d", field, i), maxLen)
	}
}
