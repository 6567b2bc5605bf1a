package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/postcomb/postcomb/app/database"
)

const defaultDailyPostsLimit = 10

func (h *Handler) ListAccounts(c *gin.Context) {
	accounts, err := h.accountRepo.ListAccounts(currentUserID(c))
	if err != nil {
		slog.Error("Database error", "operation", "list_accounts", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	// Credentials stay encrypted at rest and never leave over the API
	summaries := make([]gin.H, 0, len(accounts))
	for _, account := range accounts {
		// posts_today alone overstates usage right after midnight; the
		// repository applies the rollover
		remaining, err := h.accountRepo.RemainingDailyQuota(account.Platform, account.ID)
		if err != nil {
			slog.Error("Database error", "operation", "remaining_daily_quota", "error", err)
			c.Status(http.StatusInternalServerError)
			return
		}

		summaries = append(summaries, gin.H{
			"id":                account.ID,
			"platform":          account.Platform,
			"label":             account.Label,
			"posts_today":       account.PostsToday,
			"daily_posts_limit": account.DailyPostsLimit,
			"remaining_today":   remaining,
			"is_active":         account.IsActive,
		})
	}

	c.JSON(http.StatusOK, gin.H{"accounts": summaries, "count": len(summaries)})
}

func (h *Handler) CreateTelegramChannel(c *gin.Context) {
	var req telegramChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tokenEnc, err := h.cipher.Encrypt(req.BotToken)
	if err != nil {
		slog.Error("Failed to encrypt bot token", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	id, err := h.accountRepo.CreateTelegramChannel(&database.TelegramChannel{
		UserID:          currentUserID(c),
		Title:           req.Title,
		ChatID:          req.ChatID,
		BotTokenEnc:     tokenEnc,
		DailyPostsLimit: dailyLimitOrDefault(req.DailyPostsLimit),
		IsActive:        true,
	})
	if err != nil {
		slog.Error("Database error", "operation", "create_telegram_channel", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id, "platform": database.PlatformTelegram})
}

func (h *Handler) CreateInstagramAccount(c *gin.Context) {
	var req instagramAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	passwordEnc, err := h.cipher.Encrypt(req.Password)
	if err != nil {
		slog.Error("Failed to encrypt password", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	id, err := h.accountRepo.CreateInstagramAccount(&database.InstagramAccount{
		UserID:          currentUserID(c),
		Username:        req.Username,
		PasswordEnc:     passwordEnc,
		DailyPostsLimit: dailyLimitOrDefault(req.DailyPostsLimit),
		IsActive:        true,
	})
	if err != nil {
		slog.Error("Database error", "operation", "create_instagram_account", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id, "platform": database.PlatformInstagram})
}

func (h *Handler) CreateTwitterAccount(c *gin.Context) {
	var req twitterAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account := &database.TwitterAccount{
		UserID:          currentUserID(c),
		Handle:          req.Handle,
		DailyPostsLimit: dailyLimitOrDefault(req.DailyPostsLimit),
		IsActive:        true,
	}

	var err error
	for _, cred := range []struct {
		plain string
		dest  *[]byte
	}{
		{req.ConsumerKey, &account.ConsumerKeyEnc},
		{req.ConsumerSecret, &account.ConsumerSecretEnc},
		{req.AccessToken, &account.AccessTokenEnc},
		{req.AccessSecret, &account.AccessSecretEnc},
	} {
		*cred.dest, err = h.cipher.Encrypt(cred.plain)
		if err != nil {
			slog.Error("Failed to encrypt twitter credential", "error", err)
			c.Status(http.StatusInternalServerError)
			return
		}
	}

	id, err := h.accountRepo.CreateTwitterAccount(account)
	if err != nil {
		slog.Error("Database error", "operation", "create_twitter_account", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id, "platform": database.PlatformTwitter})
}

func dailyLimitOrDefault(limit int) int {
	if limit <= 0 {
		return defaultDailyPostsLimit
	}
	return limit
}
