package database

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

var _ ItemRepository = (*ItemRepositoryImpl)(nil)

type ItemRepositoryImpl struct {
	db *DB
}

func NewItemRepository(db *DB) *ItemRepositoryImpl {
	return &ItemRepositoryImpl{db: db}
}

const itemColumns = `id, source_id, user_id, external_id, COALESCE(title, ''),
	COALESCE(content, ''), COALESCE(summary, ''), COALESCE(url, ''),
	COALESCE(image_url, ''), COALESCE(author, ''), published_at,
	relevance_score, COALESCE(sentiment, ''), COALESCE(category, ''),
	COALESCE(keywords, '{}'), status, duplicate_of_id, scheduled_post_id, created_at`

func scanItem(row interface{ Scan(...any) error }) (*MonitoredItem, error) {
	var item MonitoredItem
	err := row.Scan(
		&item.ID, &item.SourceID, &item.UserID, &item.ExternalID, &item.Title,
		&item.Content, &item.Summary, &item.URL, &item.ImageURL, &item.Author,
		&item.PublishedAt, &item.RelevanceScore, &item.Sentiment, &item.Category,
		pq.Array(&item.Keywords), &item.Status, &item.DuplicateOfID,
		&item.ScheduledPostID, &item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *ItemRepositoryImpl) ItemExists(sourceID, externalID string) (bool, error) {
	var id string
	err := r.db.QueryRow(`
		SELECT id FROM monitored_items
		WHERE source_id = $1 AND external_id = $2
		LIMIT 1
	`, sourceID, externalID).Scan(&id)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check item existence: %w", err)
	}

	return true, nil
}

// InsertItem stores a discovered item. Ingestion is idempotent on
// (source_id, external_id): a conflicting insert is a no-op and reported via
// the second return value.
func (r *ItemRepositoryImpl) InsertItem(item *MonitoredItem) (string, bool, error) {
	var id string
	err := r.db.QueryRow(`
		INSERT INTO monitored_items (
			source_id, user_id, external_id, title, content, summary,
			url, image_url, author, published_at, relevance_score,
			sentiment, category, keywords, status, duplicate_of_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (source_id, external_id) DO NOTHING
		RETURNING id
	`, item.SourceID, item.UserID, item.ExternalID, item.Title, item.Content,
		item.Summary, item.URL, item.ImageURL, item.Author, item.PublishedAt,
		item.RelevanceScore, item.Sentiment, item.Category, pq.Array(item.Keywords),
		item.Status, item.DuplicateOfID).Scan(&id)

	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to insert item: %w", err)
	}

	return id, true, nil
}

func (r *ItemRepositoryImpl) GetItemForUser(id, userID string) (*MonitoredItem, error) {
	item, err := scanItem(r.db.QueryRow(`
		SELECT `+itemColumns+` FROM monitored_items WHERE id = $1 AND user_id = $2
	`, id, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

func (r *ItemRepositoryImpl) ListItems(userID, status string, limit int) ([]MonitoredItem, error) {
	query := `
		SELECT ` + itemColumns + ` FROM monitored_items
		WHERE user_id = $1`
	args := []any{userID}

	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY COALESCE(published_at, created_at) DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

// RecentItemsForOwner returns the owner's latest items from sources other
// than the one being polled, for the cross-source near-duplicate check.
func (r *ItemRepositoryImpl) RecentItemsForOwner(userID, excludeSourceID string, limit int) ([]MonitoredItem, error) {
	rows, err := r.db.Query(`
		SELECT `+itemColumns+` FROM monitored_items
		WHERE user_id = $1
		  AND source_id <> $2
		  AND status <> 'duplicate'
		ORDER BY created_at DESC
		LIMIT $3
	`, userID, excludeSourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent items: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

// TransitionItemStatus performs a guarded status change. Transitions are
// monotonic: the update only applies when the row still holds the expected
// prior status, so concurrent actors cannot revert a later state.
func (r *ItemRepositoryImpl) TransitionItemStatus(id, userID, from, to string) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE monitored_items
		SET status = $4
		WHERE id = $1 AND user_id = $2 AND status = $3
	`, id, userID, from, to)
	if err != nil {
		return false, fmt.Errorf("failed to transition item status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return affected > 0, nil
}

// SelectItemsForRule returns items eligible for an auto-posting rule run:
// status new or approved, never consumed by a prior execution, matching the
// rule's keyword/category/relevance filter.
func (r *ItemRepositoryImpl) SelectItemsForRule(userID string, filter RuleItemFilter, limit int) ([]MonitoredItem, error) {
	query := `
		SELECT ` + itemColumns + ` FROM monitored_items
		WHERE user_id = $1
		  AND status IN ('new', 'approved')
		  AND scheduled_post_id IS NULL
		  AND relevance_score >= $2`
	args := []any{userID, filter.MinRelevance}

	if len(filter.Categories) > 0 {
		args = append(args, pq.Array(filter.Categories))
		query += fmt.Sprintf(` AND (category = ANY($%d) OR keywords && $%d)`, len(args), len(args))
	}

	if len(filter.Keywords) > 0 {
		var clauses []string
		for _, kw := range filter.Keywords {
			args = append(args, "%"+kw+"%")
			clauses = append(clauses, fmt.Sprintf("title ILIKE $%d OR content ILIKE $%d", len(args), len(args)))
		}
		query += ` AND (` + strings.Join(clauses, " OR ") + `)`
	}

	args = append(args, limit)
	// 'approved' sorts before 'new', so user-approved items win ties
	query += fmt.Sprintf(`
		ORDER BY status, relevance_score DESC, created_at
		LIMIT $%d`, len(args))

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select items for rule: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

// AttachScheduledPost consumes an item for posting. The conditional WHERE
// guarantees an item is never selected by two rule executions.
func (r *ItemRepositoryImpl) AttachScheduledPost(itemID, postID string) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE monitored_items
		SET status = 'posted', scheduled_post_id = $2
		WHERE id = $1
		  AND status IN ('new', 'approved')
		  AND scheduled_post_id IS NULL
	`, itemID, postID)
	if err != nil {
		return false, fmt.Errorf("failed to attach scheduled post: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return affected > 0, nil
}

func collectItems(rows *sql.Rows) ([]MonitoredItem, error) {
	var items []MonitoredItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item rows: %w", err)
	}

	return items, nil
}
