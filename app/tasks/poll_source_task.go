package tasks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/postcomb/postcomb/app/database"
	"github.com/postcomb/postcomb/app/source"
)

const similarityLookback = 200

// PollSourceTask fetches one content source, extracts candidate items and
// stores the new ones. Re-fetches are idempotent: exact repeats are skipped
// via (source, external_id), near-duplicates from the owner's other sources
// are stored with status duplicate.
type PollSourceTask struct {
	Task
	Source     *database.ContentSource
	httpClient *http.Client
	filterer   *source.Filterer
	scorer     *source.Scorer
	similarity source.SimilarityStrategy
	sourceRepo database.SourceRepository
	itemRepo   database.ItemRepository
	userAgent  string
	timeout    time.Duration
}

func NewPollSourceTask(src *database.ContentSource, httpClient *http.Client, filterer *source.Filterer,
	scorer *source.Scorer, similarity source.SimilarityStrategy, sourceRepo database.SourceRepository,
	itemRepo database.ItemRepository, userAgent string, timeout time.Duration) *PollSourceTask {
	return &PollSourceTask{
		Task:       NewTask(TaskTypePollSource, src.Name),
		Source:     src,
		httpClient: httpClient,
		filterer:   filterer,
		scorer:     scorer,
		similarity: similarity,
		sourceRepo: sourceRepo,
		itemRepo:   itemRepo,
		userAgent:  userAgent,
		timeout:    timeout,
	}
}

func (t *PollSourceTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	data, err := t.fetchSource(ctx)
	if err != nil {
		// The check failed but the source must not get stuck in the due
		// set: advance next_check_at regardless
		t.recordOutcome(database.CheckStatusError, err.Error(), "", 0, 0, 0)
		return fmt.Errorf("failed to fetch source: %w", err)
	}

	// Unchanged page bodies skip extraction entirely
	snapshotHash := source.SnapshotHash(data)
	if t.Source.LastSnapshotHash != "" && snapshotHash == t.Source.LastSnapshotHash {
		t.recordOutcome(database.CheckStatusSuccess, "", snapshotHash, 0, 0, 0)
		slog.Debug("Source content unchanged", "source", t.Source.Name)
		return nil
	}

	extractor, err := source.ForMethod(t.Source.ExtractionMethod)
	if err != nil {
		t.recordOutcome(database.CheckStatusError, err.Error(), snapshotHash, 0, 0, 0)
		return fmt.Errorf("failed to resolve extractor: %w", err)
	}

	candidates, extractErr := extractor.Extract(data, t.Source)
	if extractErr != nil && len(candidates) == 0 {
		t.recordOutcome(database.CheckStatusError, extractErr.Error(), snapshotHash, 0, 0, 0)
		return fmt.Errorf("failed to extract items: %w", extractErr)
	}

	newCount := 0
	duplicateCount := 0
	filteredCount := 0

	// Near-duplicate detection compares against the owner's recent items
	// from other sources
	prior, err := t.itemRepo.RecentItemsForOwner(t.Source.UserID, t.Source.ID, similarityLookback)
	if err != nil {
		t.recordOutcome(database.CheckStatusError, err.Error(), snapshotHash, 0, 0, 0)
		return fmt.Errorf("failed to load recent items: %w", err)
	}

	for _, candidate := range candidates {
		exists, err := t.itemRepo.ItemExists(t.Source.ID, candidate.ExternalID)
		if err != nil {
			t.recordOutcome(database.CheckStatusError, err.Error(), snapshotHash, len(candidates), newCount, duplicateCount)
			return fmt.Errorf("failed to check for existing item: %w", err)
		}
		if exists {
			duplicateCount++
			continue
		}

		if dropped, reason := t.filterer.Run(candidate, t.Source); dropped {
			filteredCount++
			slog.Debug("Candidate filtered", "source", t.Source.Name, "title", candidate.Title, "reason", reason)
			continue
		}

		item := &database.MonitoredItem{
			SourceID:    t.Source.ID,
			UserID:      t.Source.UserID,
			ExternalID:  candidate.ExternalID,
			Title:       candidate.Title,
			Content:     candidate.Content,
			Summary:     candidate.Summary,
			URL:         candidate.URL,
			ImageURL:    candidate.ImageURL,
			Author:      candidate.Author,
			PublishedAt: candidate.PublishedAt,
			Category:    firstOrEmpty(candidate.Categories),
			Keywords:    t.filterer.MatchedKeywords(candidate, t.Source),
			Status:      database.ItemStatusNew,
		}

		if original := t.similarity.FindDuplicate(candidate, prior); original != nil {
			item.Status = database.ItemStatusDuplicate
			item.DuplicateOfID = &original.ID
		} else {
			item.RelevanceScore = t.scorer.Run(candidate, t.Source)
			if t.Source.AutoPost {
				item.Status = database.ItemStatusApproved
			}
		}

		_, inserted, err := t.itemRepo.InsertItem(item)
		if err != nil {
			// A mid-loop storage failure is still a finished check: the
			// history row keeps what landed so far and the source is
			// rescheduled rather than left stuck in the due set
			t.recordOutcome(database.CheckStatusError, err.Error(), snapshotHash, len(candidates), newCount, duplicateCount)
			return fmt.Errorf("failed to insert item: %w", err)
		}
		if !inserted {
			// Concurrent poll won the insert race
			duplicateCount++
			continue
		}

		if item.Status == database.ItemStatusDuplicate {
			duplicateCount++
		} else {
			newCount++
		}
	}

	status := database.CheckStatusSuccess
	errorMessage := ""
	if extractErr != nil {
		status = database.CheckStatusPartial
		errorMessage = extractErr.Error()
	}

	t.recordOutcome(status, errorMessage, snapshotHash, len(candidates), newCount, duplicateCount)

	slog.Info("Task completed",
		"type", "PollSource",
		"source", t.Source.Name,
		"duration", t.GetDuration(),
		"total", len(candidates),
		"duplicates", duplicateCount,
		"filtered", filteredCount,
		"new", newCount)

	return nil
}

func (t *PollSourceTask) fetchSource(ctx context.Context) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", t.Source.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

// recordOutcome writes the check history row and rolls the outcome into the
// source's counters, rescheduling the source one interval out. Failures here
// are logged, not propagated: the poll's own result matters more than its
// bookkeeping.
func (t *PollSourceTask) recordOutcome(status, errorMessage, snapshotHash string, found, newCount, duplicates int) {
	check := database.SourceCheck{
		SourceID:       t.Source.ID,
		UserID:         t.Source.UserID,
		Status:         status,
		ItemsFound:     found,
		ItemsNew:       newCount,
		ItemsDuplicate: duplicates,
		ErrorMessage:   errorMessage,
		ExecutionMS:    t.GetDuration().Milliseconds(),
	}

	if err := t.sourceRepo.InsertCheck(check); err != nil {
		slog.Warn("Failed to record source check", "source", t.Source.Name, "error", err)
	}

	if err := t.sourceRepo.RecordCheckResult(t.Source.ID, status, errorMessage, snapshotHash, found, newCount, t.Source.CheckIntervalMinutes); err != nil {
		slog.Warn("Failed to update source counters", "source", t.Source.Name, "error", err)
	}
}

func firstOrEmpty(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
