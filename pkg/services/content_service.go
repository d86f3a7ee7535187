package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openfolio/openfolio/pkg/events"
	"github.com/openfolio/openfolio/pkg/ids"
	"github.com/openfolio/openfolio/pkg/models"
	"github.com/openfolio/openfolio/pkg/validation"
)

// writeTimeout bounds every repository write.
const writeTimeout = 10 * time.Second

const contentColumns = `id, type, slug, data, status, version, sort_order, created_at, updated_at, deleted_at`

const historyColumns = `id, content_id, version, data, change_type, changed_by, change_summary, created_at`

// ContentService owns ContentItem and ContentHistory rows. Every mutation
// writes the item and its history snapshot in one transaction.
type ContentService struct {
	db  *sql.DB
	bus *events.Bus
}

// NewContentService creates a new ContentService
func NewContentService(db *sql.DB, bus *events.Bus) *ContentService {
	return &ContentService{db: db, bus: bus}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContentItem(row rowScanner) (*models.ContentItem, error) {
	var item models.ContentItem
	var data []byte
	var deletedAt sql.NullTime
	err := row.Scan(
		&item.ID, &item.Type, &item.Slug, &data, &item.Status,
		&item.Version, &item.SortOrder, &item.CreatedAt, &item.UpdatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}
	item.Data = json.RawMessage(data)
	if deletedAt.Valid {
		t := deletedAt.Time
		item.DeletedAt = &t
	}
	return &item, nil
}

func scanHistory(row rowScanner) (*models.ContentHistory, error) {
	var h models.ContentHistory
	var data []byte
	var changedBy, changeSummary sql.NullString
	err := row.Scan(
		&h.ID, &h.ContentID, &h.Version, &data, &h.ChangeType,
		&changedBy, &changeSummary, &h.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	h.Data = json.RawMessage(data)
	h.ChangedBy = changedBy.String
	h.ChangeSummary = changeSummary.String
	return &h, nil
}

// FindByID returns a live (non-deleted) item by id.
func (s *ContentService) FindByID(ctx context.Context, id string) (*models.ContentItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+contentColumns+` FROM content WHERE id = $1 AND deleted_at IS NULL`, id)
	item, err := scanContentItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find content by id: %w", err)
	}
	return item, nil
}

// FindBySlug returns a live item by its (type, slug) pair.
func (s *ContentService) FindBySlug(ctx context.Context, contentType models.ContentType, slug string) (*models.ContentItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+contentColumns+` FROM content WHERE type = $1 AND slug = $2 AND deleted_at IS NULL`,
		contentType, slug)
	item, err := scanContentItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find content by slug: %w", err)
	}
	return item, nil
}

// FindByType returns all live items of one type, ordered for display.
func (s *ContentService) FindByType(ctx context.Context, contentType models.ContentType) ([]*models.ContentItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+contentColumns+` FROM content
		 WHERE type = $1 AND deleted_at IS NULL
		 ORDER BY sort_order ASC, created_at DESC`, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to query content by type: %w", err)
	}
	return collectItems(rows)
}

// FindPublished returns published live items, optionally filtered by type.
func (s *ContentService) FindPublished(ctx context.Context, contentType models.ContentType) ([]*models.ContentItem, error) {
	query := `SELECT ` + contentColumns + ` FROM content
		 WHERE status = 'published' AND deleted_at IS NULL`
	args := []any{}
	if contentType != "" {
		query += ` AND type = $1`
		args = append(args, contentType)
	}
	query += ` ORDER BY sort_order ASC, created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query published content: %w", err)
	}
	return collectItems(rows)
}

// FindAll returns a paginated admin listing, including drafts and optionally
// soft-deleted rows.
func (s *ContentService) FindAll(ctx context.Context, q models.ContentListQuery) (*models.ContentListResponse, error) {
	validation.NormalizeListQuery(&q)

	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !q.IncludeDeleted {
		conds = append(conds, "deleted_at IS NULL")
	}
	if q.Type != "" {
		conds = append(conds, "type = "+arg(q.Type))
	}
	if q.Status != "" {
		conds = append(conds, "status = "+arg(q.Status))
	}

	query := `SELECT ` + contentColumns + ` FROM content`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY sort_order ASC, created_at DESC LIMIT ` + arg(q.Limit) + ` OFFSET ` + arg(q.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query content listing: %w", err)
	}
	items, err := collectItems(rows)
	if err != nil {
		return nil, err
	}
	return &models.ContentListResponse{Items: items, Limit: q.Limit, Offset: q.Offset}, nil
}

// SlugExists reports whether a (type, slug) pair is taken. Soft-deleted rows
// count: resurrecting a freed slug requires an explicit hard delete or
// restore first.
func (s *ContentService) SlugExists(ctx context.Context, contentType models.ContentType, slug, excludeID string) (bool, error) {
	return slugExists(ctx, s.db, contentType, slug, excludeID)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func slugExists(ctx context.Context, q querier, contentType models.ContentType, slug, excludeID string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT count(*) FROM content WHERE type = $1 AND slug = $2 AND id <> $3`,
		contentType, slug, excludeID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count slugs: %w", err)
	}
	return count > 0, nil
}

// Create validates and writes a new item with version 1 and its matching
// "created" history row in one transaction.
func (s *ContentService) Create(ctx context.Context, req models.CreateContentRequest, changedBy string) (*models.ContentItem, error) {
	if !req.Type.IsValid() {
		ve := &validation.Error{}
		ve.Add("type", "unknown content type")
		return nil, ve
	}
	if err := validation.ValidateSlug(req.Slug); err != nil {
		return nil, err
	}
	status := req.Status
	if status == "" {
		status = models.ContentStatusDraft
	}
	if !status.IsValid() {
		ve := &validation.Error{}
		ve.Add("status", "unknown status")
		return nil, ve
	}
	data, err := validation.ValidateContentData(req.Type, req.Data)
	if err != nil {
		return nil, err
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal data: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if req.Type.IsSingleton() {
		var live int
		err := tx.QueryRowContext(ctx,
			`SELECT count(*) FROM content WHERE type = $1 AND deleted_at IS NULL`,
			req.Type).Scan(&live)
		if err != nil {
			return nil, fmt.Errorf("failed to count singleton rows: %w", err)
		}
		if live > 0 {
			return nil, ErrConflict
		}
	}

	taken, err := slugExists(ctx, tx, req.Type, req.Slug, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrConflict
	}

	now := time.Now().UTC()
	item := &models.ContentItem{
		ID:        ids.NewContentID(),
		Type:      req.Type,
		Slug:      req.Slug,
		Data:      json.RawMessage(dataJSON),
		Status:    status,
		Version:   1,
		SortOrder: req.SortOrder,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO content (id, type, slug, data, status, version, sort_order, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		item.ID, item.Type, item.Slug, dataJSON, item.Status, item.Version, item.SortOrder, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert content: %w", err)
	}

	if err := insertHistory(ctx, tx, item.ID, 1, dataJSON, models.ChangeTypeCreated, changedBy, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit create: %w", err)
	}

	s.emitContent(events.TypeContentCreated, item, changedBy)
	return item, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertHistory(ctx context.Context, tx execer, contentID string, version int, data []byte, changeType models.ChangeType, changedBy string, now time.Time) error {
	var by sql.NullString
	if changedBy != "" {
		by = sql.NullString{String: changedBy, Valid: true}
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO content_history (id, content_id, version, data, change_type, changed_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ids.NewHistoryID(), contentID, version, data, changeType, by, now)
	if err != nil {
		return fmt.Errorf("failed to insert history row: %w", err)
	}
	return nil
}

// lockItem reads a live row FOR UPDATE inside tx.
func lockItem(ctx context.Context, tx *sql.Tx, id string) (*models.ContentItem, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+contentColumns+` FROM content WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id)
	item, err := scanContentItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock content row: %w", err)
	}
	return item, nil
}

// UpdateWithHistory applies a partial update: it snapshots the pre-update
// state into history with the old version, then bumps the item's version.
func (s *ContentService) UpdateWithHistory(ctx context.Context, id string, updates models.UpdateContentRequest, changedBy string) (*models.ContentItem, error) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := lockItem(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	slug := existing.Slug
	if updates.Slug != nil && *updates.Slug != existing.Slug {
		if err := validation.ValidateSlug(*updates.Slug); err != nil {
			return nil, err
		}
		taken, err := slugExists(ctx, tx, existing.Type, *updates.Slug, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrConflict
		}
		slug = *updates.Slug
	}

	dataJSON := []byte(existing.Data)
	if updates.Data != nil {
		validated, err := validation.ValidateContentData(existing.Type, updates.Data)
		if err != nil {
			return nil, err
		}
		dataJSON, err = json.Marshal(validated)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal data: %w", err)
		}
	}

	status := existing.Status
	if updates.Status != nil {
		if !updates.Status.IsValid() {
			ve := &validation.Error{}
			ve.Add("status", "unknown status")
			return nil, ve
		}
		status = *updates.Status
	}

	sortOrder := existing.SortOrder
	if updates.SortOrder != nil {
		sortOrder = *updates.SortOrder
	}

	now := time.Now().UTC()
	if err := insertHistory(ctx, tx, id, existing.Version, []byte(existing.Data), models.ChangeTypeUpdated, changedBy, now); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE content SET slug = $1, data = $2, status = $3, sort_order = $4, version = $5, updated_at = $6
		 WHERE id = $7`,
		slug, dataJSON, status, sortOrder, existing.Version+1, now, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update content: %w", err)
	}

	row := tx.QueryRowContext(ctx, `SELECT `+contentColumns+` FROM content WHERE id = $1`, id)
	updated, err := scanContentItem(row)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read content: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit update: %w", err)
	}

	s.emitContent(events.TypeContentUpdated, updated, changedBy)
	return updated, nil
}

// Delete soft-deletes an item: a "deleted" history row snapshots the current
// state, then deletedAt is set. The version does not change.
func (s *ContentService) Delete(ctx context.Context, id string, changedBy string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := lockItem(ctx, tx, id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := insertHistory(ctx, tx, id, existing.Version, []byte(existing.Data), models.ChangeTypeDeleted, changedBy, now); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE content SET deleted_at = $1, updated_at = $1 WHERE id = $2`, now, id)
	if err != nil {
		return fmt.Errorf("failed to soft-delete content: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}

	s.emitContent(events.TypeContentDeleted, existing, changedBy)
	return nil
}

// HardDelete physically removes an item; the cascade drops its history.
func (s *ContentService) HardDelete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM content WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to hard-delete content: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// RestoreVersion rewinds an item's data to a historical snapshot. The current
// state is snapshotted first with changeType "restored", then the item takes
// the historical data with version = current + 1.
func (s *ContentService) RestoreVersion(ctx context.Context, id string, version int, changedBy string) (*models.ContentItem, error) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := lockItem(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	var snapshot []byte
	err = tx.QueryRowContext(ctx,
		`SELECT data FROM content_history WHERE content_id = $1 AND version = $2
		 ORDER BY created_at DESC LIMIT 1`, id, version).Scan(&snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load history snapshot: %w", err)
	}

	now := time.Now().UTC()
	if err := insertHistory(ctx, tx, id, existing.Version, []byte(existing.Data), models.ChangeTypeRestored, changedBy, now); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE content SET data = $1, version = $2, updated_at = $3 WHERE id = $4`,
		snapshot, existing.Version+1, now, id)
	if err != nil {
		return nil, fmt.Errorf("failed to restore content: %w", err)
	}

	row := tx.QueryRowContext(ctx, `SELECT `+contentColumns+` FROM content WHERE id = $1`, id)
	restored, err := scanContentItem(row)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read content: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit restore: %w", err)
	}

	s.emitContent(events.TypeContentRestored, restored, changedBy)
	return restored, nil
}

// GetHistory returns history rows for an item, newest version first.
func (s *ContentService) GetHistory(ctx context.Context, id string, limit, offset int) ([]*models.ContentHistory, error) {
	if limit <= 0 {
		limit = validation.DefaultListLimit
	}
	if limit > validation.MaxListLimit {
		limit = validation.MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM content WHERE id = $1`, id).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check content existence: %w", err)
	}
	if exists == 0 {
		return nil, ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+historyColumns+` FROM content_history
		 WHERE content_id = $1
		 ORDER BY version DESC, created_at DESC
		 LIMIT $2 OFFSET $3`, id, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var history []*models.ContentHistory
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history rows: %w", err)
	}
	return history, nil
}

// GetBundle returns all published content partitioned by type. Singleton
// types collapse to a single item.
func (s *ContentService) GetBundle(ctx context.Context) (*models.Bundle, error) {
	published, err := s.FindPublished(ctx, "")
	if err != nil {
		return nil, err
	}

	bundle := &models.Bundle{
		Projects:    []*models.ContentItem{},
		Experiences: []*models.ContentItem{},
		Education:   []*models.ContentItem{},
		Skills:      []*models.ContentItem{},
	}
	for _, item := range published {
		switch item.Type {
		case models.ContentTypeProject:
			bundle.Projects = append(bundle.Projects, item)
		case models.ContentTypeExperience:
			bundle.Experiences = append(bundle.Experiences, item)
		case models.ContentTypeEducation:
			bundle.Education = append(bundle.Education, item)
		case models.ContentTypeSkill:
			bundle.Skills = append(bundle.Skills, item)
		case models.ContentTypeAbout:
			bundle.About = item
		case models.ContentTypeContact:
			bundle.Contact = item
		}
	}
	return bundle, nil
}

func collectItems(rows *sql.Rows) ([]*models.ContentItem, error) {
	defer rows.Close()
	var items []*models.ContentItem
	for rows.Next() {
		item, err := scanContentItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan content row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate content rows: %w", err)
	}
	return items, nil
}

func (s *ContentService) emitContent(t events.Type, item *models.ContentItem, changedBy string) {
	if s.bus == nil {
		return
	}
	s.bus.Emit(t, events.ContentPayload{
		ContentID: item.ID,
		Type:      string(item.Type),
		Slug:      item.Slug,
		Version:   item.Version,
		ChangedBy: changedBy,
	})
}
