package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

var _ PostRepository = (*PostRepositoryImpl)(nil)

type PostRepositoryImpl struct {
	db *DB
}

func NewPostRepository(db *DB) *PostRepositoryImpl {
	return &PostRepositoryImpl{db: db}
}

const postColumns = `id, user_id, item_id, rule_id, platform, account_id, content,
	publish_options, scheduled_at, published_at, status, platform_post_id,
	error_message, publish_attempts, publishing_started_at, created_at, updated_at`

func scanPost(row interface{ Scan(...any) error }) (*ScheduledPost, error) {
	var p ScheduledPost
	var optionsRaw []byte
	err := row.Scan(
		&p.ID, &p.UserID, &p.ItemID, &p.RuleID, &p.Platform, &p.AccountID,
		&p.Content, &optionsRaw, &p.ScheduledAt, &p.PublishedAt, &p.Status,
		&p.PlatformPostID, &p.ErrorMessage, &p.PublishAttempts,
		&p.PublishingStartedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(optionsRaw) > 0 {
		if err := json.Unmarshal(optionsRaw, &p.PublishOptions); err != nil {
			return nil, fmt.Errorf("failed to decode publish options: %w", err)
		}
	}

	return &p, nil
}

// GetDuePosts returns scheduled posts whose time has come, earliest due
// first, to bound worst-case staleness.
func (r *PostRepositoryImpl) GetDuePosts(limit int) ([]ScheduledPost, error) {
	rows, err := r.db.Query(`
		SELECT `+postColumns+`
		FROM scheduled_posts
		WHERE status = 'scheduled'
		  AND scheduled_at <= NOW()
		ORDER BY scheduled_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get due posts: %w", err)
	}
	defer rows.Close()

	return collectPosts(rows)
}

func (r *PostRepositoryImpl) GetPostForUser(id, userID string) (*ScheduledPost, error) {
	p, err := scanPost(r.db.QueryRow(`
		SELECT `+postColumns+` FROM scheduled_posts WHERE id = $1 AND user_id = $2
	`, id, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return p, nil
}

func (r *PostRepositoryImpl) ListPosts(userID, status string, limit int) ([]ScheduledPost, error) {
	query := `
		SELECT ` + postColumns + ` FROM scheduled_posts
		WHERE user_id = $1`
	args := []any{userID}

	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY scheduled_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	return collectPosts(rows)
}

func (r *PostRepositoryImpl) CreatePost(p *ScheduledPost) (string, error) {
	options, err := json.Marshal(orEmptyOptions(p.PublishOptions))
	if err != nil {
		return "", fmt.Errorf("failed to encode publish options: %w", err)
	}

	var id string
	err = r.db.QueryRow(`
		INSERT INTO scheduled_posts (
			user_id, item_id, rule_id, platform, account_id, content,
			publish_options, scheduled_at, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'scheduled')
		RETURNING id
	`, p.UserID, p.ItemID, p.RuleID, p.Platform, p.AccountID, p.Content,
		options, p.ScheduledAt).Scan(&id)

	if err != nil {
		return "", fmt.Errorf("failed to create post: %w", err)
	}

	return id, nil
}

// CreatePostCapped inserts a rule-created post only while the rule stays
// under its daily and weekly caps. The count re-check lives inside the
// INSERT ... SELECT, so concurrent engine runs cannot overshoot the cap.
func (r *PostRepositoryImpl) CreatePostCapped(p *ScheduledPost, caps PostCaps) (string, bool, error) {
	if p.RuleID == nil {
		return "", false, fmt.Errorf("capped insert requires a rule id")
	}

	options, err := json.Marshal(orEmptyOptions(p.PublishOptions))
	if err != nil {
		return "", false, fmt.Errorf("failed to encode publish options: %w", err)
	}

	var id string
	err = r.db.QueryRow(`
		INSERT INTO scheduled_posts (
			user_id, item_id, rule_id, platform, account_id, content,
			publish_options, scheduled_at, status
		)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, 'scheduled'
		WHERE ($9 <= 0 OR (
			SELECT COUNT(*) FROM scheduled_posts
			WHERE rule_id = $3 AND created_at >= $10 AND status <> 'cancelled'
		) < $9)
		AND ($11 <= 0 OR (
			SELECT COUNT(*) FROM scheduled_posts
			WHERE rule_id = $3 AND created_at >= $12 AND status <> 'cancelled'
		) < $11)
		RETURNING id
	`, p.UserID, p.ItemID, p.RuleID, p.Platform, p.AccountID, p.Content,
		options, p.ScheduledAt,
		caps.MaxPerDay, caps.DayStart, caps.MaxPerWeek, caps.WeekStart).Scan(&id)

	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to create capped post: %w", err)
	}

	return id, true, nil
}

// ClaimForPublishing transitions scheduled -> publishing before the adapter
// is called, so a crash mid-publish is visible rather than silently retried.
func (r *PostRepositoryImpl) ClaimForPublishing(id string) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE scheduled_posts
		SET status = 'publishing',
		    publishing_started_at = NOW(),
		    publish_attempts = publish_attempts + 1,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'scheduled'
	`, id)
	if err != nil {
		return false, fmt.Errorf("failed to claim post for publishing: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return affected > 0, nil
}

// ReleaseToScheduled returns a claimed post to the queue for a later retry,
// pushed forward to the given time. The claim's attempt increment stands: a
// publish was tried and failed.
func (r *PostRepositoryImpl) ReleaseToScheduled(id string, until time.Time) error {
	_, err := r.db.Exec(`
		UPDATE scheduled_posts
		SET status = 'scheduled',
		    scheduled_at = $2,
		    publishing_started_at = NULL,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'publishing'
	`, id, until)

	if err != nil {
		return fmt.Errorf("failed to release post to scheduled: %w", err)
	}

	return nil
}

// DeferForQuota pushes a claimed post past the account's quota window. The
// platform was never called, so the claim's attempt increment is undone and
// waiting out the quota costs no retry budget.
func (r *PostRepositoryImpl) DeferForQuota(id string, until time.Time) error {
	_, err := r.db.Exec(`
		UPDATE scheduled_posts
		SET status = 'scheduled',
		    scheduled_at = $2,
		    publishing_started_at = NULL,
		    publish_attempts = GREATEST(publish_attempts - 1, 0),
		    updated_at = NOW()
		WHERE id = $1 AND status = 'publishing'
	`, id, until)

	if err != nil {
		return fmt.Errorf("failed to defer post for quota: %w", err)
	}

	return nil
}

func (r *PostRepositoryImpl) MarkPublished(id, platformPostID string) error {
	_, err := r.db.Exec(`
		UPDATE scheduled_posts
		SET status = 'published',
		    published_at = NOW(),
		    platform_post_id = $2,
		    error_message = '',
		    updated_at = NOW()
		WHERE id = $1 AND status = 'publishing'
	`, id, platformPostID)

	if err != nil {
		return fmt.Errorf("failed to mark post published: %w", err)
	}

	return nil
}

func (r *PostRepositoryImpl) MarkFailed(id, errorMessage string) error {
	_, err := r.db.Exec(`
		UPDATE scheduled_posts
		SET status = 'failed',
		    error_message = $2,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'publishing'
	`, id, errorMessage)

	if err != nil {
		return fmt.Errorf("failed to mark post failed: %w", err)
	}

	return nil
}

// CancelPost only succeeds while the dispatcher has not picked the post up.
// The status re-check in the WHERE clause makes the race against the
// dispatcher's claim a single atomic conditional update.
func (r *PostRepositoryImpl) CancelPost(id, userID string) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE scheduled_posts
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND status = 'scheduled'
	`, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to cancel post: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return affected > 0, nil
}

// RecoverStalePublishing handles posts stuck in publishing past the
// staleness window (crash recovery). Posts under the attempt budget go back
// to scheduled for a retry; the rest are failed, since platform adapters are
// not guaranteed idempotent and must not be republished blindly.
func (r *PostRepositoryImpl) RecoverStalePublishing(staleBefore time.Time, maxAttempts int) (int, int, error) {
	requeuedRes, err := r.db.Exec(`
		UPDATE scheduled_posts
		SET status = 'scheduled',
		    scheduled_at = NOW(),
		    publishing_started_at = NULL,
		    updated_at = NOW()
		WHERE status = 'publishing'
		  AND publishing_started_at < $1
		  AND publish_attempts < $2
	`, staleBefore, maxAttempts)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to requeue stale posts: %w", err)
	}

	failedRes, err := r.db.Exec(`
		UPDATE scheduled_posts
		SET status = 'failed',
		    error_message = 'publish attempt abandoned after staleness window',
		    updated_at = NOW()
		WHERE status = 'publishing'
		  AND publishing_started_at < $1
		  AND publish_attempts >= $2
	`, staleBefore, maxAttempts)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to fail stale posts: %w", err)
	}

	requeued, _ := requeuedRes.RowsAffected()
	failed, _ := failedRes.RowsAffected()

	return int(requeued), int(failed), nil
}

func collectPosts(rows *sql.Rows) ([]ScheduledPost, error) {
	var posts []ScheduledPost
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}
		posts = append(posts, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating post rows: %w", err)
	}

	return posts, nil
}

func orEmptyOptions(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
