package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/postcomb/postcomb/app/database"
)

func testRule() *database.AutoPostingRule {
	return &database.AutoPostingRule{
		ID:              "rule-1",
		UserID:          "user-1",
		Name:            "Morning tech posts",
		ScheduleType:    "interval",
		IntervalMinutes: 60,
		Targets: []database.RuleTarget{
			{Platform: database.PlatformTelegram, AccountID: "ch-1"},
		},
		MaxPostsPerDay: 5,
	}
}

func approvedItem(id string) database.MonitoredItem {
	return database.MonitoredItem{
		ID:       id,
		SourceID: "src-1",
		UserID:   "user-1",
		Title:    "Kubernetes 1.31 released",
		URL:      "https://example.com/k8s-131",
		Status:   database.ItemStatusApproved,
	}
}

func newRuleTask(rule *database.AutoPostingRule, ruleRepo *mockRuleRepository,
	itemRepo *mockItemRepository, postRepo *mockPostRepository, sourceRepo *mockSourceRepository) *ExecuteRuleTask {
	task := NewExecuteRuleTask(rule, ruleRepo, itemRepo, postRepo, sourceRepo)
	task.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	return task
}

func TestExecuteRuleTask_PostsOneItemPerTick(t *testing.T) {
	ruleRepo := &mockRuleRepository{}
	itemRepo := newMockItemRepository()
	postRepo := newMockPostRepository()
	sourceRepo := newMockSourceRepository()

	itemRepo.seed(approvedItem("item-1"))
	itemRepo.seed(approvedItem("item-2"))
	itemRepo.selectable = []database.MonitoredItem{approvedItem("item-1"), approvedItem("item-2")}

	task := newRuleTask(testRule(), ruleRepo, itemRepo, postRepo, sourceRepo)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(postRepo.posts) != 1 {
		t.Fatalf("Expected 1 post per tick, got %d", len(postRepo.posts))
	}
	for _, post := range postRepo.posts {
		if post.Platform != database.PlatformTelegram || post.AccountID != "ch-1" {
			t.Errorf("Post targeted wrong account: %s/%s", post.Platform, post.AccountID)
		}
		if post.Status != database.PostStatusScheduled {
			t.Errorf("Expected scheduled status, got %s", post.Status)
		}
	}

	if itemRepo.items["item-1"].Status != database.ItemStatusPosted {
		t.Errorf("Posted item should transition to posted, got %s", itemRepo.items["item-1"].Status)
	}
	if itemRepo.items["item-2"].Status != database.ItemStatusApproved {
		t.Error("Second item should stay untouched this tick")
	}
	if sourceRepo.postsCreated["src-1"] != 1 {
		t.Error("Source post counter should be incremented")
	}

	if len(ruleRepo.executions) != 1 {
		t.Fatalf("Expected 1 execution record, got %d", len(ruleRepo.executions))
	}
	execution := ruleRepo.executions[0]
	if execution.Outcome != database.ExecutionSucceeded {
		t.Errorf("Expected succeeded, got %s", execution.Outcome)
	}
	if !execution.Next.After(task.now()) {
		t.Error("Next execution must be in the future")
	}
}

func TestExecuteRuleTask_MultipleTargets(t *testing.T) {
	ruleRepo := &mockRuleRepository{}
	itemRepo := newMockItemRepository()
	postRepo := newMockPostRepository()
	sourceRepo := newMockSourceRepository()

	rule := testRule()
	rule.Targets = append(rule.Targets, database.RuleTarget{Platform: database.PlatformTwitter, AccountID: "tw-1"})

	itemRepo.seed(approvedItem("item-1"))
	itemRepo.selectable = []database.MonitoredItem{approvedItem("item-1")}

	task := newRuleTask(rule, ruleRepo, itemRepo, postRepo, sourceRepo)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(postRepo.posts) != 2 {
		t.Fatalf("Expected one post per target, got %d", len(postRepo.posts))
	}
}

func TestExecuteRuleTask_SourceDelayPushesScheduledAt(t *testing.T) {
	ruleRepo := &mockRuleRepository{}
	itemRepo := newMockItemRepository()
	postRepo := newMockPostRepository()
	sourceRepo := newMockSourceRepository()

	sourceRepo.sources["src-1"] = &database.ContentSource{ID: "src-1", UserID: "user-1", PostDelayMinutes: 15}

	itemRepo.seed(approvedItem("item-1"))
	itemRepo.selectable = []database.MonitoredItem{approvedItem("item-1")}

	task := newRuleTask(testRule(), ruleRepo, itemRepo, postRepo, sourceRepo)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(postRepo.posts) != 1 {
		t.Fatalf("Expected 1 post, got %d", len(postRepo.posts))
	}
	want := task.now().Add(15 * time.Minute)
	for _, post := range postRepo.posts {
		if !post.ScheduledAt.Equal(want) {
			t.Errorf("Source delay should push the post to %v, got %v", want, post.ScheduledAt)
		}
	}
}

func TestExecuteRuleTask_CapBlocksAsDeferred(t *testing.T) {
	ruleRepo := &mockRuleRepository{}
	itemRepo := newMockItemRepository()
	postRepo := newMockPostRepository()
	sourceRepo := newMockSourceRepository()

	rule := testRule()
	rule.MaxPostsPerDay = 1

	// The rule already created one post inside the current day window
	ruleID := rule.ID
	postRepo.posts["post-existing"] = &database.ScheduledPost{
		ID:     "post-existing",
		RuleID: &ruleID,
		Status: database.PostStatusPublished,
	}

	itemRepo.seed(approvedItem("item-1"))
	itemRepo.selectable = []database.MonitoredItem{approvedItem("item-1")}

	task := newRuleTask(rule, ruleRepo, itemRepo, postRepo, sourceRepo)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(postRepo.posts) != 1 {
		t.Errorf("Cap should block new posts, got %d", len(postRepo.posts))
	}
	if itemRepo.items["item-1"].Status != database.ItemStatusApproved {
		t.Error("Blocked item should keep its status")
	}
	if ruleRepo.executions[0].Outcome != database.ExecutionDeferred {
		t.Errorf("Expected deferred, got %s", ruleRepo.executions[0].Outcome)
	}
}

func TestExecuteRuleTask_NoMatchingItems(t *testing.T) {
	ruleRepo := &mockRuleRepository{}
	itemRepo := newMockItemRepository()
	postRepo := newMockPostRepository()
	sourceRepo := newMockSourceRepository()

	task := newRuleTask(testRule(), ruleRepo, itemRepo, postRepo, sourceRepo)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(postRepo.posts) != 0 {
		t.Error("No items should mean no posts")
	}
	if ruleRepo.executions[0].Outcome != database.ExecutionSucceeded {
		t.Errorf("Idle tick should still succeed, got %s", ruleRepo.executions[0].Outcome)
	}
}

func TestExecuteRuleTask_ClaimedItemFallsThrough(t *testing.T) {
	ruleRepo := &mockRuleRepository{}
	itemRepo := newMockItemRepository()
	postRepo := newMockPostRepository()
	sourceRepo := newMockSourceRepository()

	// item-1 was already attached by a concurrent rule
	claimed := approvedItem("item-1")
	attachedPost := "post-other"
	claimed.ScheduledPostID = &attachedPost
	itemRepo.seed(claimed)
	itemRepo.seed(approvedItem("item-2"))
	itemRepo.selectable = []database.MonitoredItem{approvedItem("item-1"), approvedItem("item-2")}

	task := newRuleTask(testRule(), ruleRepo, itemRepo, postRepo, sourceRepo)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	// The orphaned post for item-1 is backed out; item-2 gets posted
	active := 0
	for _, post := range postRepo.posts {
		if post.Status == database.PostStatusScheduled {
			active++
			if post.ItemID == nil || *post.ItemID != "item-2" {
				t.Errorf("Expected post for item-2, got %v", post.ItemID)
			}
		}
	}
	if active != 1 {
		t.Fatalf("Expected exactly 1 active post, got %d", active)
	}
	if ruleRepo.executions[0].Outcome != database.ExecutionSucceeded {
		t.Errorf("Expected succeeded, got %s", ruleRepo.executions[0].Outcome)
	}
}

func TestExecuteRuleTask_NextExecutionKeepsCadence(t *testing.T) {
	ruleRepo := &mockRuleRepository{}
	itemRepo := newMockItemRepository()
	postRepo := newMockPostRepository()
	sourceRepo := newMockSourceRepository()

	rule := testRule()
	due := time.Date(2026, 3, 1, 9, 58, 0, 0, time.UTC)
	rule.NextExecutionAt = &due

	task := newRuleTask(rule, ruleRepo, itemRepo, postRepo, sourceRepo)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	// Cadence anchors on the due tick, not the actual execution time
	want := time.Date(2026, 3, 1, 10, 58, 0, 0, time.UTC)
	if !ruleRepo.executions[0].Next.Equal(want) {
		t.Errorf("Expected next execution %v, got %v", want, ruleRepo.executions[0].Next)
	}
}
