package database

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

var _ SourceRepository = (*SourceRepositoryImpl)(nil)

type SourceRepositoryImpl struct {
	db *DB
}

func NewSourceRepository(db *DB) *SourceRepositoryImpl {
	return &SourceRepositoryImpl{db: db}
}

const sourceColumns = `id, user_id, name, source_type, url, extraction_method,
	item_selector, title_selector, link_selector, summary_selector,
	include_keywords, exclude_keywords, categories,
	auto_post, post_delay_minutes, check_interval_minutes,
	last_check_at, next_check_at, last_check_status, last_error_message,
	total_checks, total_items_found, total_items_new, total_posts_created,
	last_snapshot_hash, is_active, created_at, updated_at`

func scanSource(row interface{ Scan(...any) error }) (*ContentSource, error) {
	var s ContentSource
	err := row.Scan(
		&s.ID, &s.UserID, &s.Name, &s.SourceType, &s.URL, &s.ExtractionMethod,
		&s.ItemSelector, &s.TitleSelector, &s.LinkSelector, &s.SummarySelector,
		pq.Array(&s.IncludeKeywords), pq.Array(&s.ExcludeKeywords), pq.Array(&s.Categories),
		&s.AutoPost, &s.PostDelayMinutes, &s.CheckIntervalMinutes,
		&s.LastCheckAt, &s.NextCheckAt, &s.LastCheckStatus, &s.LastErrorMessage,
		&s.TotalChecks, &s.TotalItemsFound, &s.TotalItemsNew, &s.TotalPostsCreated,
		&s.LastSnapshotHash, &s.IsActive, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetDueSources returns active sources whose next check time has passed,
// earliest due first.
func (r *SourceRepositoryImpl) GetDueSources(limit int) ([]ContentSource, error) {
	rows, err := r.db.Query(`
		SELECT `+sourceColumns+`
		FROM content_sources
		WHERE is_active = TRUE
		  AND (next_check_at IS NULL OR next_check_at <= NOW())
		ORDER BY COALESCE(next_check_at, '1970-01-01'::timestamptz)
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get due sources: %w", err)
	}
	defer rows.Close()

	var sources []ContentSource
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source rows: %w", err)
	}

	return sources, nil
}

func (r *SourceRepositoryImpl) GetSource(id string) (*ContentSource, error) {
	s, err := scanSource(r.db.QueryRow(`
		SELECT `+sourceColumns+` FROM content_sources WHERE id = $1
	`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return s, nil
}

func (r *SourceRepositoryImpl) GetSourceForUser(id, userID string) (*ContentSource, error) {
	s, err := scanSource(r.db.QueryRow(`
		SELECT `+sourceColumns+` FROM content_sources WHERE id = $1 AND user_id = $2
	`, id, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return s, nil
}

func (r *SourceRepositoryImpl) GetSourceByURL(userID, url string) (*ContentSource, error) {
	s, err := scanSource(r.db.QueryRow(`
		SELECT `+sourceColumns+` FROM content_sources WHERE user_id = $1 AND url = $2
	`, userID, url))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source by URL: %w", err)
	}
	return s, nil
}

func (r *SourceRepositoryImpl) ListSources(userID string) ([]ContentSource, error) {
	rows, err := r.db.Query(`
		SELECT `+sourceColumns+` FROM content_sources
		WHERE user_id = $1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []ContentSource
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source rows: %w", err)
	}

	return sources, nil
}

func (r *SourceRepositoryImpl) CreateSource(s *ContentSource) (string, error) {
	var id string
	err := r.db.QueryRow(`
		INSERT INTO content_sources (
			user_id, name, source_type, url, extraction_method,
			item_selector, title_selector, link_selector, summary_selector,
			include_keywords, exclude_keywords, categories,
			auto_post, post_delay_minutes, check_interval_minutes, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id
	`, s.UserID, s.Name, s.SourceType, s.URL, s.ExtractionMethod,
		s.ItemSelector, s.TitleSelector, s.LinkSelector, s.SummarySelector,
		pq.Array(s.IncludeKeywords), pq.Array(s.ExcludeKeywords), pq.Array(s.Categories),
		s.AutoPost, s.PostDelayMinutes, s.CheckIntervalMinutes, s.IsActive,
	).Scan(&id)

	if err != nil {
		return "", fmt.Errorf("failed to create source: %w", err)
	}

	return id, nil
}

func (r *SourceRepositoryImpl) UpdateSource(s *ContentSource) error {
	_, err := r.db.Exec(`
		UPDATE content_sources
		SET name = $3, source_type = $4, url = $5, extraction_method = $6,
		    item_selector = $7, title_selector = $8, link_selector = $9, summary_selector = $10,
		    include_keywords = $11, exclude_keywords = $12, categories = $13,
		    auto_post = $14, post_delay_minutes = $15, check_interval_minutes = $16,
		    updated_at = NOW()
		WHERE id = $1 AND user_id = $2
	`, s.ID, s.UserID, s.Name, s.SourceType, s.URL, s.ExtractionMethod,
		s.ItemSelector, s.TitleSelector, s.LinkSelector, s.SummarySelector,
		pq.Array(s.IncludeKeywords), pq.Array(s.ExcludeKeywords), pq.Array(s.Categories),
		s.AutoPost, s.PostDelayMinutes, s.CheckIntervalMinutes)

	if err != nil {
		return fmt.Errorf("failed to update source: %w", err)
	}

	return nil
}

func (r *SourceRepositoryImpl) SetSourceActive(id, userID string, active bool) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE content_sources
		SET is_active = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
	`, id, userID, active)
	if err != nil {
		return false, fmt.Errorf("failed to set source active status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return affected > 0, nil
}

// RecordCheckResult updates the source's running counters and reschedules it.
// Called after every check, successful or not, so a broken source never spins
// hot. Both timestamps come from the same NOW(), so next_check_at is always a
// full interval past last_check_at no matter how long the check itself took.
func (r *SourceRepositoryImpl) RecordCheckResult(id, status, errorMessage, snapshotHash string, itemsFound, itemsNew, intervalMinutes int) error {
	_, err := r.db.Exec(`
		UPDATE content_sources
		SET last_check_at = NOW(),
		    next_check_at = NOW() + ($2 * interval '1 minute'),
		    last_check_status = $3,
		    last_error_message = $4,
		    last_snapshot_hash = CASE WHEN $5 <> '' THEN $5 ELSE last_snapshot_hash END,
		    total_checks = total_checks + 1,
		    total_items_found = total_items_found + $6,
		    total_items_new = total_items_new + $7,
		    updated_at = NOW()
		WHERE id = $1
	`, id, intervalMinutes, status, errorMessage, snapshotHash, itemsFound, itemsNew)

	if err != nil {
		return fmt.Errorf("failed to record check result: %w", err)
	}

	return nil
}

func (r *SourceRepositoryImpl) IncrementPostsCreated(id string) error {
	_, err := r.db.Exec(`
		UPDATE content_sources
		SET total_posts_created = total_posts_created + 1, updated_at = NOW()
		WHERE id = $1
	`, id)

	if err != nil {
		return fmt.Errorf("failed to increment posts created: %w", err)
	}

	return nil
}

func (r *SourceRepositoryImpl) InsertCheck(c SourceCheck) error {
	_, err := r.db.Exec(`
		INSERT INTO source_check_history (
			source_id, user_id, status, items_found, items_new,
			items_duplicate, posts_created, error_message, execution_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, c.SourceID, c.UserID, c.Status, c.ItemsFound, c.ItemsNew,
		c.ItemsDuplicate, c.PostsCreated, c.ErrorMessage, c.ExecutionMS)

	if err != nil {
		return fmt.Errorf("failed to insert check history: %w", err)
	}

	return nil
}

func (r *SourceRepositoryImpl) ListChecks(sourceID string, limit int) ([]SourceCheck, error) {
	rows, err := r.db.Query(`
		SELECT id, source_id, user_id, status, items_found, items_new,
		       items_duplicate, posts_created, error_message, execution_ms, checked_at
		FROM source_check_history
		WHERE source_id = $1
		ORDER BY checked_at DESC
		LIMIT $2
	`, sourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list check history: %w", err)
	}
	defer rows.Close()

	var checks []SourceCheck
	for rows.Next() {
		var c SourceCheck
		err := rows.Scan(&c.ID, &c.SourceID, &c.UserID, &c.Status, &c.ItemsFound,
			&c.ItemsNew, &c.ItemsDuplicate, &c.PostsCreated, &c.ErrorMessage,
			&c.ExecutionMS, &c.CheckedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan check row: %w", err)
		}
		checks = append(checks, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating check rows: %w", err)
	}

	return checks, nil
}
