package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

var _ RuleRepository = (*RuleRepositoryImpl)(nil)

type RuleRepositoryImpl struct {
	db *DB
}

func NewRuleRepository(db *DB) *RuleRepositoryImpl {
	return &RuleRepositoryImpl{db: db}
}

const ruleColumns = `id, user_id, name, schedule_type, interval_minutes,
	times_of_day, weekdays, filter_keywords, filter_categories, min_relevance,
	targets, max_posts_per_day, max_posts_per_week, is_active, is_paused,
	total_executions, successful_executions, failed_executions,
	last_execution_at, next_execution_at, created_at, updated_at`

func scanRule(row interface{ Scan(...any) error }) (*AutoPostingRule, error) {
	var r AutoPostingRule
	var targetsRaw []byte
	err := row.Scan(
		&r.ID, &r.UserID, &r.Name, &r.ScheduleType, &r.IntervalMinutes,
		pq.Array(&r.TimesOfDay), pq.Array(&r.Weekdays),
		pq.Array(&r.FilterKeywords), pq.Array(&r.FilterCategories), &r.MinRelevance,
		&targetsRaw, &r.MaxPostsPerDay, &r.MaxPostsPerWeek, &r.IsActive, &r.IsPaused,
		&r.TotalExecutions, &r.SuccessfulExecutions, &r.FailedExecutions,
		&r.LastExecutionAt, &r.NextExecutionAt, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(targetsRaw) > 0 {
		if err := json.Unmarshal(targetsRaw, &r.Targets); err != nil {
			return nil, fmt.Errorf("failed to decode rule targets: %w", err)
		}
	}

	return &r, nil
}

// GetDueRules returns active, unpaused rules whose next execution time has
// passed. next_execution_at is only consulted for active unpaused rows.
func (r *RuleRepositoryImpl) GetDueRules(limit int) ([]AutoPostingRule, error) {
	rows, err := r.db.Query(`
		SELECT `+ruleColumns+`
		FROM auto_posting_rules
		WHERE is_active = TRUE
		  AND is_paused = FALSE
		  AND (next_execution_at IS NULL OR next_execution_at <= NOW())
		ORDER BY COALESCE(next_execution_at, '1970-01-01'::timestamptz)
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get due rules: %w", err)
	}
	defer rows.Close()

	var rules []AutoPostingRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule row: %w", err)
		}
		rules = append(rules, *rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rule rows: %w", err)
	}

	return rules, nil
}

func (r *RuleRepositoryImpl) GetRuleForUser(id, userID string) (*AutoPostingRule, error) {
	rule, err := scanRule(r.db.QueryRow(`
		SELECT `+ruleColumns+` FROM auto_posting_rules WHERE id = $1 AND user_id = $2
	`, id, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

func (r *RuleRepositoryImpl) ListRules(userID string) ([]AutoPostingRule, error) {
	rows, err := r.db.Query(`
		SELECT `+ruleColumns+` FROM auto_posting_rules
		WHERE user_id = $1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var rules []AutoPostingRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule row: %w", err)
		}
		rules = append(rules, *rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rule rows: %w", err)
	}

	return rules, nil
}

func (r *RuleRepositoryImpl) CreateRule(rule *AutoPostingRule) (string, error) {
	targets, err := json.Marshal(rule.Targets)
	if err != nil {
		return "", fmt.Errorf("failed to encode rule targets: %w", err)
	}

	var id string
	err = r.db.QueryRow(`
		INSERT INTO auto_posting_rules (
			user_id, name, schedule_type, interval_minutes, times_of_day, weekdays,
			filter_keywords, filter_categories, min_relevance, targets,
			max_posts_per_day, max_posts_per_week, is_active, is_paused, next_execution_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`, rule.UserID, rule.Name, rule.ScheduleType, rule.IntervalMinutes,
		pq.Array(rule.TimesOfDay), pq.Array(rule.Weekdays),
		pq.Array(rule.FilterKeywords), pq.Array(rule.FilterCategories),
		rule.MinRelevance, targets, rule.MaxPostsPerDay, rule.MaxPostsPerWeek,
		rule.IsActive, rule.IsPaused, rule.NextExecutionAt).Scan(&id)

	if err != nil {
		return "", fmt.Errorf("failed to create rule: %w", err)
	}

	return id, nil
}

func (r *RuleRepositoryImpl) UpdateRule(rule *AutoPostingRule) error {
	targets, err := json.Marshal(rule.Targets)
	if err != nil {
		return fmt.Errorf("failed to encode rule targets: %w", err)
	}

	_, err = r.db.Exec(`
		UPDATE auto_posting_rules
		SET name = $3, schedule_type = $4, interval_minutes = $5, times_of_day = $6,
		    weekdays = $7, filter_keywords = $8, filter_categories = $9,
		    min_relevance = $10, targets = $11, max_posts_per_day = $12,
		    max_posts_per_week = $13, is_active = $14, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
	`, rule.ID, rule.UserID, rule.Name, rule.ScheduleType, rule.IntervalMinutes,
		pq.Array(rule.TimesOfDay), pq.Array(rule.Weekdays),
		pq.Array(rule.FilterKeywords), pq.Array(rule.FilterCategories),
		rule.MinRelevance, targets, rule.MaxPostsPerDay, rule.MaxPostsPerWeek,
		rule.IsActive)

	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}

	return nil
}

func (r *RuleRepositoryImpl) SetRulePaused(id, userID string, paused bool) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE auto_posting_rules
		SET is_paused = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
	`, id, userID, paused)
	if err != nil {
		return false, fmt.Errorf("failed to set rule paused status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return affected > 0, nil
}

// RecordExecution advances the rule after a run. total_executions always
// increments; success/failure counters only for their outcome. A deferred
// (capped) run counts as neither.
func (r *RuleRepositoryImpl) RecordExecution(id string, outcome ExecutionOutcome, next time.Time) error {
	_, err := r.db.Exec(`
		UPDATE auto_posting_rules
		SET total_executions = total_executions + 1,
		    successful_executions = successful_executions + CASE WHEN $2 THEN 1 ELSE 0 END,
		    failed_executions = failed_executions + CASE WHEN $3 THEN 1 ELSE 0 END,
		    last_execution_at = NOW(),
		    next_execution_at = $4,
		    updated_at = NOW()
		WHERE id = $1
	`, id, outcome == ExecutionSucceeded, outcome == ExecutionFailed, next)

	if err != nil {
		return fmt.Errorf("failed to record rule execution: %w", err)
	}

	return nil
}
