package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/postcomb/postcomb/app/database"
	"github.com/postcomb/postcomb/app/publisher"
)

type mockSourceRepository struct {
	mu           sync.Mutex
	dueSources   []database.ContentSource
	sources      map[string]*database.ContentSource
	checks       []database.SourceCheck
	checkResults []recordedCheckResult
	postsCreated map[string]int
}

type recordedCheckResult struct {
	ID              string
	Status          string
	ErrorMessage    string
	SnapshotHash    string
	ItemsFound      int
	ItemsNew        int
	IntervalMinutes int
}

func newMockSourceRepository() *mockSourceRepository {
	return &mockSourceRepository{
		sources:      make(map[string]*database.ContentSource),
		postsCreated: make(map[string]int),
	}
}

func (m *mockSourceRepository) GetDueSources(limit int) ([]database.ContentSource, error) {
	return m.dueSources, nil
}

func (m *mockSourceRepository) GetSource(id string) (*database.ContentSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sources[id], nil
}

func (m *mockSourceRepository) GetSourceForUser(id, userID string) (*database.ContentSource, error) {
	return nil, nil
}

func (m *mockSourceRepository) GetSourceByURL(userID, url string) (*database.ContentSource, error) {
	return nil, nil
}

func (m *mockSourceRepository) ListSources(userID string) ([]database.ContentSource, error) {
	return nil, nil
}

func (m *mockSourceRepository) CreateSource(s *database.ContentSource) (string, error) {
	return "", nil
}

func (m *mockSourceRepository) UpdateSource(s *database.ContentSource) error {
	return nil
}

func (m *mockSourceRepository) SetSourceActive(id, userID string, active bool) (bool, error) {
	return false, nil
}

func (m *mockSourceRepository) RecordCheckResult(id, status, errorMessage, snapshotHash string, itemsFound, itemsNew, intervalMinutes int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkResults = append(m.checkResults, recordedCheckResult{id, status, errorMessage, snapshotHash, itemsFound, itemsNew, intervalMinutes})
	return nil
}

func (m *mockSourceRepository) IncrementPostsCreated(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.postsCreated[id]++
	return nil
}

func (m *mockSourceRepository) InsertCheck(c database.SourceCheck) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks = append(m.checks, c)
	return nil
}

func (m *mockSourceRepository) ListChecks(sourceID string, limit int) ([]database.SourceCheck, error) {
	return m.checks, nil
}

type mockItemRepository struct {
	mu         sync.Mutex
	items      map[string]*database.MonitoredItem
	recent     []database.MonitoredItem
	selectable []database.MonitoredItem
	nextID     int
	insertErr  error
}

func newMockItemRepository() *mockItemRepository {
	return &mockItemRepository{items: make(map[string]*database.MonitoredItem)}
}

func (m *mockItemRepository) ItemExists(sourceID, externalID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range m.items {
		if item.SourceID == sourceID && item.ExternalID == externalID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockItemRepository) InsertItem(item *database.MonitoredItem) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return "", false, m.insertErr
	}
	for _, existing := range m.items {
		if existing.SourceID == item.SourceID && existing.ExternalID == item.ExternalID {
			return existing.ID, false, nil
		}
	}
	m.nextID++
	item.ID = fmt.Sprintf("item-%d", m.nextID)
	m.items[item.ID] = item
	return item.ID, true, nil
}

func (m *mockItemRepository) GetItemForUser(id, userID string) (*database.MonitoredItem, error) {
	return m.items[id], nil
}

func (m *mockItemRepository) ListItems(userID, status string, limit int) ([]database.MonitoredItem, error) {
	return nil, nil
}

func (m *mockItemRepository) RecentItemsForOwner(userID, excludeSourceID string, limit int) ([]database.MonitoredItem, error) {
	return m.recent, nil
}

func (m *mockItemRepository) TransitionItemStatus(id, userID, from, to string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok || item.Status != from {
		return false, nil
	}
	item.Status = to
	return true, nil
}

func (m *mockItemRepository) SelectItemsForRule(userID string, filter database.RuleItemFilter, limit int) ([]database.MonitoredItem, error) {
	return m.selectable, nil
}

func (m *mockItemRepository) AttachScheduledPost(itemID, postID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[itemID]
	if !ok || item.ScheduledPostID != nil {
		return false, nil
	}
	item.ScheduledPostID = &postID
	item.Status = database.ItemStatusPosted
	return true, nil
}

// seed registers an item without going through the insert path.
func (m *mockItemRepository) seed(item database.MonitoredItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := item
	m.items[item.ID] = &stored
}

type mockRuleRepository struct {
	mu         sync.Mutex
	executions []recordedExecution
}

type recordedExecution struct {
	RuleID  string
	Outcome database.ExecutionOutcome
	Next    time.Time
}

func (m *mockRuleRepository) GetDueRules(limit int) ([]database.AutoPostingRule, error) {
	return nil, nil
}

func (m *mockRuleRepository) GetRuleForUser(id, userID string) (*database.AutoPostingRule, error) {
	return nil, nil
}

func (m *mockRuleRepository) ListRules(userID string) ([]database.AutoPostingRule, error) {
	return nil, nil
}

func (m *mockRuleRepository) CreateRule(r *database.AutoPostingRule) (string, error) {
	return "", nil
}

func (m *mockRuleRepository) UpdateRule(r *database.AutoPostingRule) error {
	return nil
}

func (m *mockRuleRepository) SetRulePaused(id, userID string, paused bool) (bool, error) {
	return false, nil
}

func (m *mockRuleRepository) RecordExecution(id string, outcome database.ExecutionOutcome, next time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executions = append(m.executions, recordedExecution{id, outcome, next})
	return nil
}

type mockPostRepository struct {
	mu     sync.Mutex
	posts  map[string]*database.ScheduledPost
	nextID int
}

func newMockPostRepository() *mockPostRepository {
	return &mockPostRepository{posts: make(map[string]*database.ScheduledPost)}
}

func (m *mockPostRepository) GetDuePosts(limit int) ([]database.ScheduledPost, error) {
	return nil, nil
}

func (m *mockPostRepository) GetPostForUser(id, userID string) (*database.ScheduledPost, error) {
	return m.posts[id], nil
}

func (m *mockPostRepository) ListPosts(userID, status string, limit int) ([]database.ScheduledPost, error) {
	return nil, nil
}

func (m *mockPostRepository) CreatePost(p *database.ScheduledPost) (string, error) {
	id, _, err := m.CreatePostCapped(p, database.PostCaps{})
	return id, err
}

func (m *mockPostRepository) CreatePostCapped(p *database.ScheduledPost, caps database.PostCaps) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.RuleID != nil {
		count := 0
		for _, existing := range m.posts {
			if existing.RuleID != nil && *existing.RuleID == *p.RuleID && existing.Status != database.PostStatusCancelled {
				count++
			}
		}
		if caps.MaxPerDay > 0 && count >= caps.MaxPerDay {
			return "", false, nil
		}
		if caps.MaxPerWeek > 0 && count >= caps.MaxPerWeek {
			return "", false, nil
		}
	}

	m.nextID++
	stored := *p
	stored.ID = fmt.Sprintf("post-%d", m.nextID)
	m.posts[stored.ID] = &stored
	return stored.ID, true, nil
}

func (m *mockPostRepository) ClaimForPublishing(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	post, ok := m.posts[id]
	if !ok || post.Status != database.PostStatusScheduled {
		return false, nil
	}
	post.Status = database.PostStatusPublishing
	post.PublishAttempts++
	return true, nil
}

func (m *mockPostRepository) ReleaseToScheduled(id string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if post, ok := m.posts[id]; ok {
		post.Status = database.PostStatusScheduled
		post.ScheduledAt = until
	}
	return nil
}

func (m *mockPostRepository) DeferForQuota(id string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if post, ok := m.posts[id]; ok {
		post.Status = database.PostStatusScheduled
		post.ScheduledAt = until
		if post.PublishAttempts > 0 {
			post.PublishAttempts--
		}
	}
	return nil
}

func (m *mockPostRepository) MarkPublished(id, platformPostID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if post, ok := m.posts[id]; ok {
		post.Status = database.PostStatusPublished
		post.PlatformPostID = platformPostID
	}
	return nil
}

func (m *mockPostRepository) MarkFailed(id, errorMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if post, ok := m.posts[id]; ok {
		post.Status = database.PostStatusFailed
		post.ErrorMessage = errorMessage
	}
	return nil
}

func (m *mockPostRepository) CancelPost(id, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	post, ok := m.posts[id]
	if !ok || post.Status != database.PostStatusScheduled {
		return false, nil
	}
	post.Status = database.PostStatusCancelled
	return true, nil
}

func (m *mockPostRepository) RecoverStalePublishing(staleBefore time.Time, maxAttempts int) (int, int, error) {
	return 0, 0, nil
}

func (m *mockPostRepository) byStatus(status string) []*database.ScheduledPost {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*database.ScheduledPost
	for _, post := range m.posts {
		if post.Status == status {
			out = append(out, post)
		}
	}
	return out
}

type mockAccountRepository struct {
	mu             sync.Mutex
	account        *database.Account
	quotaRemaining int
}

func (m *mockAccountRepository) GetAccount(platform, id string) (*database.Account, error) {
	return m.account, nil
}

func (m *mockAccountRepository) ListAccounts(userID string) ([]database.Account, error) {
	return nil, nil
}

func (m *mockAccountRepository) CreateTelegramChannel(ch *database.TelegramChannel) (string, error) {
	return "", nil
}

func (m *mockAccountRepository) CreateInstagramAccount(a *database.InstagramAccount) (string, error) {
	return "", nil
}

func (m *mockAccountRepository) CreateTwitterAccount(a *database.TwitterAccount) (string, error) {
	return "", nil
}

func (m *mockAccountRepository) TryConsumeDailyQuota(platform, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.quotaRemaining <= 0 {
		return false, nil
	}
	m.quotaRemaining--
	return true, nil
}

func (m *mockAccountRepository) RemainingDailyQuota(platform, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.quotaRemaining, nil
}

type stubPublisher struct {
	platform  string
	publishFn func(ctx context.Context, content publisher.Content, account *database.Account) (string, error)
	calls     int
}

func (p *stubPublisher) Platform() string {
	return p.platform
}

func (p *stubPublisher) Publish(ctx context.Context, content publisher.Content, account *database.Account) (string, error) {
	p.calls++
	if p.publishFn != nil {
		return p.publishFn(ctx, content, account)
	}
	return "platform-post-1", nil
}
