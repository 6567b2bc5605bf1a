package ledger

import (
	"testing"
	"time"

	"github.com/postcomb/postcomb/app/database"
)

type mockUsageRepository struct {
	inserted  []*database.UsageEvent
	rolledUp  bool
	rollFrom  time.Time
	rollTo    time.Time
	insertErr error
}

func (m *mockUsageRepository) InsertEvent(e *database.UsageEvent) (string, error) {
	if m.insertErr != nil {
		return "", m.insertErr
	}
	m.inserted = append(m.inserted, e)
	return "event-1", nil
}

func (m *mockUsageRepository) RecomputeDailyStats(from, to time.Time) error {
	m.rolledUp = true
	m.rollFrom = from
	m.rollTo = to
	return nil
}

func (m *mockUsageRepository) GetDailyStats(userID string, from, to time.Time) ([]database.DailyUsage, error) {
	return nil, nil
}

func validEvent() *database.UsageEvent {
	return &database.UsageEvent{
		UserID:           "user-1",
		Agent:            "content_writer",
		Provider:         "openai",
		Model:            "gpt-4o",
		PromptTokens:     120,
		CompletionTokens: 80,
		TotalTokens:      200,
		CostUSD:          0.0042,
	}
}

func TestRecorder_Record(t *testing.T) {
	repo := &mockUsageRepository{}
	recorder := NewRecorder(repo)

	id, err := recorder.Record(validEvent())
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if id != "event-1" {
		t.Errorf("Unexpected id: %s", id)
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("Expected 1 inserted event, got %d", len(repo.inserted))
	}
}

func TestRecorder_FillsTotal(t *testing.T) {
	repo := &mockUsageRepository{}
	recorder := NewRecorder(repo)

	event := validEvent()
	event.TotalTokens = 0

	if _, err := recorder.Record(event); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if repo.inserted[0].TotalTokens != 200 {
		t.Errorf("Expected total 200, got %d", repo.inserted[0].TotalTokens)
	}
}

func TestRecorder_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*database.UsageEvent)
	}{
		{"MissingUser", func(e *database.UsageEvent) { e.UserID = "" }},
		{"MissingModel", func(e *database.UsageEvent) { e.Model = "" }},
		{"NegativePrompt", func(e *database.UsageEvent) { e.PromptTokens = -1 }},
		{"NegativeCost", func(e *database.UsageEvent) { e.CostUSD = -0.01 }},
		{"MismatchedTotal", func(e *database.UsageEvent) { e.TotalTokens = 999 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockUsageRepository{}
			recorder := NewRecorder(repo)

			event := validEvent()
			tt.mutate(event)

			if _, err := recorder.Record(event); err == nil {
				t.Error("Expected validation error")
			}
			if len(repo.inserted) != 0 {
				t.Error("Invalid event should not be inserted")
			}
		})
	}
}

func TestRecorder_Rollup(t *testing.T) {
	repo := &mockUsageRepository{}
	recorder := NewRecorder(repo)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	if err := recorder.Rollup(from, to); err != nil {
		t.Fatalf("Rollup failed: %v", err)
	}
	if !repo.rolledUp {
		t.Error("Expected rollup to reach the repository")
	}

	if err := recorder.Rollup(to, from); err == nil {
		t.Error("Expected error for inverted window")
	}
}
