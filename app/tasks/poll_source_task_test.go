package tasks

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/postcomb/postcomb/app/database"
	"github.com/postcomb/postcomb/app/source"
)

const pollTestFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Tech News</title>
    <item>
      <guid>guid-1</guid>
      <title>Kubernetes 1.31 released</title>
      <link>https://example.com/k8s-131</link>
      <description>The new release ships with improvements.</description>
    </item>
    <item>
      <guid>guid-2</guid>
      <title>Weekly crypto roundup</title>
      <link>https://example.com/crypto</link>
      <description>Bitcoin and friends.</description>
    </item>
  </channel>
</rss>`

func testSource(url string) *database.ContentSource {
	return &database.ContentSource{
		ID:                   "src-1",
		UserID:               "user-1",
		Name:                 "Tech News",
		SourceType:           "rss",
		URL:                  url,
		ExtractionMethod:     "rss",
		CheckIntervalMinutes: 30,
	}
}

func newPollTask(src *database.ContentSource, sourceRepo *mockSourceRepository, itemRepo *mockItemRepository) *PollSourceTask {
	return NewPollSourceTask(src, http.DefaultClient, source.NewFilterer(), source.NewScorer(),
		source.NewTitleSimilarity(0.85), sourceRepo, itemRepo, "postcomb-test/1.0", 10*time.Second)
}

func feedServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestPollSourceTask_StoresNewItems(t *testing.T) {
	server := feedServer(t, pollTestFeed)
	sourceRepo := newMockSourceRepository()
	itemRepo := newMockItemRepository()

	task := newPollTask(testSource(server.URL), sourceRepo, itemRepo)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(itemRepo.items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(itemRepo.items))
	}
	for _, item := range itemRepo.items {
		if item.Status != database.ItemStatusNew {
			t.Errorf("Expected status new, got %s", item.Status)
		}
		if item.UserID != "user-1" {
			t.Errorf("Item not scoped to owner: %s", item.UserID)
		}
	}

	if len(sourceRepo.checks) != 1 {
		t.Fatalf("Expected 1 check record, got %d", len(sourceRepo.checks))
	}
	check := sourceRepo.checks[0]
	if check.Status != database.CheckStatusSuccess {
		t.Errorf("Expected success check, got %s", check.Status)
	}
	if check.ItemsFound != 2 || check.ItemsNew != 2 {
		t.Errorf("Unexpected check counters: found=%d new=%d", check.ItemsFound, check.ItemsNew)
	}

	if len(sourceRepo.checkResults) != 1 {
		t.Fatalf("Expected 1 check result, got %d", len(sourceRepo.checkResults))
	}
	if sourceRepo.checkResults[0].IntervalMinutes != 30 {
		t.Errorf("Source should be rescheduled one interval out, got %d", sourceRepo.checkResults[0].IntervalMinutes)
	}
}

func TestPollSourceTask_RepollIsIdempotent(t *testing.T) {
	server := feedServer(t, pollTestFeed)
	sourceRepo := newMockSourceRepository()
	itemRepo := newMockItemRepository()

	src := testSource(server.URL)
	if err := newPollTask(src, sourceRepo, itemRepo).Execute(context.Background()); err != nil {
		t.Fatalf("First poll failed: %v", err)
	}
	// Second poll without the snapshot optimization still skips on
	// (source, external_id)
	if err := newPollTask(src, sourceRepo, itemRepo).Execute(context.Background()); err != nil {
		t.Fatalf("Second poll failed: %v", err)
	}

	if len(itemRepo.items) != 2 {
		t.Errorf("Repoll should not duplicate items, got %d", len(itemRepo.items))
	}
	if sourceRepo.checks[1].ItemsDuplicate != 2 {
		t.Errorf("Expected 2 duplicates on repoll, got %d", sourceRepo.checks[1].ItemsDuplicate)
	}
}

func TestPollSourceTask_UnchangedSnapshotSkipsExtraction(t *testing.T) {
	server := feedServer(t, pollTestFeed)
	sourceRepo := newMockSourceRepository()
	itemRepo := newMockItemRepository()

	src := testSource(server.URL)
	src.LastSnapshotHash = source.SnapshotHash([]byte(pollTestFeed))

	if err := newPollTask(src, sourceRepo, itemRepo).Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(itemRepo.items) != 0 {
		t.Errorf("Unchanged content should not be extracted, got %d items", len(itemRepo.items))
	}
	if len(sourceRepo.checkResults) != 1 {
		t.Fatal("Unchanged content should still advance next_check_at")
	}
}

func TestPollSourceTask_FiltersExcludedCandidates(t *testing.T) {
	server := feedServer(t, pollTestFeed)
	sourceRepo := newMockSourceRepository()
	itemRepo := newMockItemRepository()

	src := testSource(server.URL)
	src.ExcludeKeywords = []string{"crypto"}

	if err := newPollTask(src, sourceRepo, itemRepo).Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(itemRepo.items) != 1 {
		t.Fatalf("Expected 1 item after filtering, got %d", len(itemRepo.items))
	}
	for _, item := range itemRepo.items {
		if item.Title != "Kubernetes 1.31 released" {
			t.Errorf("Wrong item survived the filter: %s", item.Title)
		}
	}
}

func TestPollSourceTask_AutoPostApproves(t *testing.T) {
	server := feedServer(t, pollTestFeed)
	sourceRepo := newMockSourceRepository()
	itemRepo := newMockItemRepository()

	src := testSource(server.URL)
	src.AutoPost = true

	if err := newPollTask(src, sourceRepo, itemRepo).Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	for _, item := range itemRepo.items {
		if item.Status != database.ItemStatusApproved {
			t.Errorf("Auto-post source should approve items, got %s", item.Status)
		}
	}
}

func TestPollSourceTask_CrossSourceDuplicate(t *testing.T) {
	server := feedServer(t, pollTestFeed)
	sourceRepo := newMockSourceRepository()
	itemRepo := newMockItemRepository()

	itemRepo.recent = []database.MonitoredItem{
		{ID: "item-earlier", SourceID: "src-other", Title: "Kubernetes 1.31 Released"},
	}

	if err := newPollTask(testSource(server.URL), sourceRepo, itemRepo).Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	var duplicate *database.MonitoredItem
	for _, item := range itemRepo.items {
		if item.Status == database.ItemStatusDuplicate {
			duplicate = item
		}
	}
	if duplicate == nil {
		t.Fatal("Expected a cross-source duplicate")
	}
	if duplicate.DuplicateOfID == nil || *duplicate.DuplicateOfID != "item-earlier" {
		t.Error("Duplicate should point at the earlier item")
	}
}

func TestPollSourceTask_FetchErrorStillAdvancesNextCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	sourceRepo := newMockSourceRepository()
	itemRepo := newMockItemRepository()

	task := newPollTask(testSource(server.URL), sourceRepo, itemRepo)
	if err := task.Execute(context.Background()); err == nil {
		t.Fatal("Expected fetch error")
	}

	if len(sourceRepo.checkResults) != 1 {
		t.Fatal("Failed check should still be recorded")
	}
	result := sourceRepo.checkResults[0]
	if result.Status != database.CheckStatusError {
		t.Errorf("Expected error status, got %s", result.Status)
	}
	if result.IntervalMinutes != 30 {
		t.Errorf("Failed check must still reschedule the source, got interval %d", result.IntervalMinutes)
	}
}

func TestPollSourceTask_StorageErrorStillRecordsCheck(t *testing.T) {
	server := feedServer(t, pollTestFeed)
	sourceRepo := newMockSourceRepository()
	itemRepo := newMockItemRepository()
	itemRepo.insertErr = errors.New("connection reset by peer")

	task := newPollTask(testSource(server.URL), sourceRepo, itemRepo)
	if err := task.Execute(context.Background()); err == nil {
		t.Fatal("Expected storage error")
	}

	if len(sourceRepo.checkResults) != 1 {
		t.Fatal("Mid-check storage failure should still be recorded")
	}
	result := sourceRepo.checkResults[0]
	if result.Status != database.CheckStatusError {
		t.Errorf("Expected error status, got %s", result.Status)
	}
	if result.ErrorMessage != "connection reset by peer" {
		t.Errorf("Failure reason should be recorded, got %q", result.ErrorMessage)
	}
	if result.IntervalMinutes != 30 {
		t.Errorf("Source must still be rescheduled, got interval %d", result.IntervalMinutes)
	}
	if len(sourceRepo.checks) != 1 {
		t.Errorf("Expected 1 check history row, got %d", len(sourceRepo.checks))
	}
}
