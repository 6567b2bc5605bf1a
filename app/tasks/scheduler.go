package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/postcomb/postcomb/app/cfg"
	"github.com/postcomb/postcomb/app/database"
	"github.com/postcomb/postcomb/app/ledger"
	"github.com/postcomb/postcomb/app/publisher"
	"github.com/postcomb/postcomb/app/source"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const (
	recoveryInterval = 5 * time.Minute
	rollupInterval   = time.Hour
)

type Scheduler struct {
	sourceRepo   database.SourceRepository
	itemRepo     database.ItemRepository
	ruleRepo     database.RuleRepository
	postRepo     database.PostRepository
	accountRepo  database.AccountRepository
	recorder     *ledger.Recorder
	registry     *publisher.Registry
	httpClient   *http.Client
	filterer     *source.Filterer
	scorer       *source.Scorer
	similarity   source.SimilarityStrategy
	userAgent    string
	fetchTimeout time.Duration
	staleAfter   time.Duration
	maxAttempts  int
	batchLimit   int
	interval     time.Duration
	workerCount  int
	lastRecovery time.Time
	lastRollup   time.Time
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	taskQueue    chan TaskInterface
}

func NewScheduler(sourceRepo database.SourceRepository, itemRepo database.ItemRepository,
	ruleRepo database.RuleRepository, postRepo database.PostRepository,
	accountRepo database.AccountRepository, recorder *ledger.Recorder,
	registry *publisher.Registry, httpClient *http.Client, filterer *source.Filterer,
	scorer *source.Scorer, similarity source.SimilarityStrategy) TaskSchedulerInterface {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		sourceRepo:   sourceRepo,
		itemRepo:     itemRepo,
		ruleRepo:     ruleRepo,
		postRepo:     postRepo,
		accountRepo:  accountRepo,
		recorder:     recorder,
		registry:     registry,
		httpClient:   httpClient,
		filterer:     filterer,
		scorer:       scorer,
		similarity:   similarity,
		userAgent:    cfg.UserAgent,
		fetchTimeout: time.Duration(cfg.FetchTimeoutSeconds) * time.Second,
		staleAfter:   time.Duration(cfg.PublishStaleMinutes) * time.Minute,
		maxAttempts:  cfg.MaxPublishAttempts,
		batchLimit:   cfg.DispatchBatchLimit,
		interval:     time.Duration(cfg.SchedulerInterval) * time.Second,
		workerCount:  cfg.WorkerCount,
		ctx:          ctx,
		cancel:       cancel,
		taskQueue:    make(chan TaskInterface, 300),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		// Crash recovery runs before the first dispatch so stale posts do
		// not sit out a full recovery interval
		s.enqueueRecoveryTask()
		s.enqueueTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) enqueueTasks() {
	s.enqueueSourceTasks()
	s.enqueueRuleTasks()
	s.enqueueDispatchTasks()

	now := time.Now().UTC()
	if now.Sub(s.lastRecovery) >= recoveryInterval {
		s.enqueueRecoveryTask()
	}
	if now.Sub(s.lastRollup) >= rollupInterval {
		s.lastRollup = now
		if err := s.EnqueueTask(NewRollupUsageTask(s.recorder)); err != nil {
			slog.Warn("Failed to enqueue RollupUsageTask", "error", err)
		}
	}
}

func (s *Scheduler) enqueueSourceTasks() {
	sources, err := s.sourceRepo.GetDueSources(s.batchLimit)
	if err != nil {
		slog.Warn("Failed to load due sources", "error", err)
		return
	}

	for i := range sources {
		task := NewPollSourceTask(&sources[i], s.httpClient, s.filterer, s.scorer, s.similarity,
			s.sourceRepo, s.itemRepo, s.userAgent, s.fetchTimeout)
		if err := s.EnqueueTask(task); err != nil {
			slog.Warn("Failed to enqueue PollSourceTask", "source", sources[i].Name, "error", err)
		}
	}
}

func (s *Scheduler) enqueueRuleTasks() {
	rules, err := s.ruleRepo.GetDueRules(s.batchLimit)
	if err != nil {
		slog.Warn("Failed to load due rules", "error", err)
		return
	}

	for i := range rules {
		task := NewExecuteRuleTask(&rules[i], s.ruleRepo, s.itemRepo, s.postRepo, s.sourceRepo)
		if err := s.EnqueueTask(task); err != nil {
			slog.Warn("Failed to enqueue ExecuteRuleTask", "rule", rules[i].Name, "error", err)
		}
	}
}

func (s *Scheduler) enqueueDispatchTasks() {
	posts, err := s.postRepo.GetDuePosts(s.batchLimit)
	if err != nil {
		slog.Warn("Failed to load due posts", "error", err)
		return
	}
	if len(posts) == 0 {
		return
	}

	// One task per (platform, account) keeps publishes against the same
	// credential sequential
	type accountKey struct {
		platform  string
		accountID string
	}
	grouped := make(map[accountKey][]database.ScheduledPost)
	var order []accountKey
	for _, post := range posts {
		key := accountKey{post.Platform, post.AccountID}
		if _, seen := grouped[key]; !seen {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], post)
	}

	for _, key := range order {
		task := NewDispatchPostsTask(key.platform, key.accountID, grouped[key],
			s.postRepo, s.accountRepo, s.registry, s.maxAttempts)
		if err := s.EnqueueTask(task); err != nil {
			slog.Warn("Failed to enqueue DispatchPostsTask", "platform", key.platform, "account", key.accountID, "error", err)
		}
	}
}

func (s *Scheduler) enqueueRecoveryTask() {
	s.lastRecovery = time.Now().UTC()
	if err := s.EnqueueTask(NewRecoverPostsTask(s.postRepo, s.staleAfter, s.maxAttempts)); err != nil {
		slog.Warn("Failed to enqueue RecoverPostsTask", "error", err)
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)

	if err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()
			retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "subject", task.GetSubject(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

			go func() {
				time.Sleep(retryDelay)
				select {
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
					return
				default:
					if retryErr := s.EnqueueTask(task); retryErr != nil {
						slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
					}
				}
			}()
		} else {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
	}
}
