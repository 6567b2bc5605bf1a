package database

import (
	"fmt"
	"time"
)

var _ UsageRepository = (*UsageRepositoryImpl)(nil)

type UsageRepositoryImpl struct {
	db *DB
}

func NewUsageRepository(db *DB) *UsageRepositoryImpl {
	return &UsageRepositoryImpl{db: db}
}

// InsertEvent appends one usage record. Events are written synchronously at
// the point of consumption and never mutated afterwards; the token-sum
// invariant is enforced again by a CHECK constraint.
func (r *UsageRepositoryImpl) InsertEvent(e *UsageEvent) (string, error) {
	var id string
	err := r.db.QueryRow(`
		INSERT INTO token_usage (
			user_id, agent, provider, model,
			prompt_tokens, completion_tokens, total_tokens, cost_usd
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, e.UserID, e.Agent, e.Provider, e.Model,
		e.PromptTokens, e.CompletionTokens, e.TotalTokens, e.CostUSD).Scan(&id)

	if err != nil {
		return "", fmt.Errorf("failed to insert usage event: %w", err)
	}

	return id, nil
}

// RecomputeDailyStats fully replaces the rollups inside the window, so a
// re-run after a crash cannot double-count.
func (r *UsageRepositoryImpl) RecomputeDailyStats(from, to time.Time) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin rollup transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		DELETE FROM token_usage_daily_stats
		WHERE usage_date >= $1::date AND usage_date <= $2::date
	`, from, to)
	if err != nil {
		return fmt.Errorf("failed to clear rollup window: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO token_usage_daily_stats (
			user_id, usage_date, agent, provider, model,
			prompt_tokens, completion_tokens, total_tokens, cost_usd, updated_at
		)
		SELECT user_id, created_at::date, agent, provider, model,
		       SUM(prompt_tokens), SUM(completion_tokens), SUM(total_tokens),
		       SUM(cost_usd), NOW()
		FROM token_usage
		WHERE created_at >= $1::date AND created_at < ($2::date + INTERVAL '1 day')
		GROUP BY user_id, created_at::date, agent, provider, model
	`, from, to)
	if err != nil {
		return fmt.Errorf("failed to recompute rollups: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rollup transaction: %w", err)
	}

	return nil
}

func (r *UsageRepositoryImpl) GetDailyStats(userID string, from, to time.Time) ([]DailyUsage, error) {
	rows, err := r.db.Query(`
		SELECT user_id, usage_date, agent, provider, model,
		       prompt_tokens, completion_tokens, total_tokens, cost_usd
		FROM token_usage_daily_stats
		WHERE user_id = $1 AND usage_date >= $2::date AND usage_date <= $3::date
		ORDER BY usage_date, agent, provider, model
	`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily stats: %w", err)
	}
	defer rows.Close()

	var stats []DailyUsage
	for rows.Next() {
		var d DailyUsage
		err := rows.Scan(&d.UserID, &d.UsageDate, &d.Agent, &d.Provider, &d.Model,
			&d.PromptTokens, &d.CompletionTokens, &d.TotalTokens, &d.CostUSD)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily stats row: %w", err)
		}
		stats = append(stats, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily stats rows: %w", err)
	}

	return stats, nil
}
