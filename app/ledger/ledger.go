package ledger

import (
	"fmt"
	"time"

	"github.com/postcomb/postcomb/app/database"
)

// Recorder validates and persists per-call token usage events. Aggregation
// into daily stats happens asynchronously via the rollup task, so recording
// stays a single insert on the request path.
type Recorder struct {
	usageRepository database.UsageRepository
}

func NewRecorder(usageRepository database.UsageRepository) *Recorder {
	return &Recorder{usageRepository: usageRepository}
}

func (r *Recorder) Record(e *database.UsageEvent) (string, error) {
	if err := validateEvent(e); err != nil {
		return "", err
	}

	// Callers may omit the total; the components are authoritative
	if e.TotalTokens == 0 {
		e.TotalTokens = e.PromptTokens + e.CompletionTokens
	}

	return r.usageRepository.InsertEvent(e)
}

func validateEvent(e *database.UsageEvent) error {
	if e.UserID == "" {
		return fmt.Errorf("usage event requires a user id")
	}
	if e.Agent == "" || e.Provider == "" || e.Model == "" {
		return fmt.Errorf("usage event requires agent, provider and model")
	}
	if e.PromptTokens < 0 || e.CompletionTokens < 0 || e.TotalTokens < 0 {
		return fmt.Errorf("token counts must not be negative")
	}
	if e.CostUSD < 0 {
		return fmt.Errorf("cost must not be negative")
	}
	if e.TotalTokens != 0 && e.TotalTokens != e.PromptTokens+e.CompletionTokens {
		return fmt.Errorf("total tokens %d does not match prompt %d + completion %d",
			e.TotalTokens, e.PromptTokens, e.CompletionTokens)
	}
	return nil
}

// DailyStats returns the user's per-day aggregates inside [from, to).
func (r *Recorder) DailyStats(userID string, from, to time.Time) ([]database.DailyUsage, error) {
	return r.usageRepository.GetDailyStats(userID, from, to)
}

// Rollup recomputes the daily aggregates covering [from, to). The
// recomputation is idempotent, so overlapping windows are safe.
func (r *Recorder) Rollup(from, to time.Time) error {
	if !to.After(from) {
		return fmt.Errorf("rollup window end must be after start")
	}
	return r.usageRepository.RecomputeDailyStats(from, to)
}
