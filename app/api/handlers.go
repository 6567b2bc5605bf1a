package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/postcomb/postcomb/app/cfg"
	"github.com/postcomb/postcomb/app/database"
	"github.com/postcomb/postcomb/app/ledger"
	"github.com/postcomb/postcomb/app/secrets"
	"github.com/postcomb/postcomb/app/source"
	"github.com/postcomb/postcomb/app/tasks"
)

func NewHandler(sourceRepo database.SourceRepository, itemRepo database.ItemRepository,
	ruleRepo database.RuleRepository, postRepo database.PostRepository,
	accountRepo database.AccountRepository, recorder *ledger.Recorder,
	cipher *secrets.Cipher, scheduler tasks.TaskSchedulerInterface,
	httpClient *http.Client, filterer *source.Filterer, scorer *source.Scorer,
	similarity source.SimilarityStrategy) *Handler {
	c := cfg.Get()

	return &Handler{
		sourceRepo:   sourceRepo,
		itemRepo:     itemRepo,
		ruleRepo:     ruleRepo,
		postRepo:     postRepo,
		accountRepo:  accountRepo,
		recorder:     recorder,
		cipher:       cipher,
		scheduler:    scheduler,
		httpClient:   httpClient,
		filterer:     filterer,
		scorer:       scorer,
		similarity:   similarity,
		userAgent:    c.UserAgent,
		fetchTimeout: time.Duration(c.FetchTimeoutSeconds) * time.Second,
		startedAt:    time.Now().UTC(),
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":   "postcomb",
		"version":   cfg.Get().Version,
		"uptime":    time.Since(h.startedAt).Round(time.Second).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
