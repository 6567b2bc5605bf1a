package database

import (
	"database/sql"
	"fmt"
)

var _ AccountRepository = (*AccountRepositoryImpl)(nil)

type AccountRepositoryImpl struct {
	db *DB
}

func NewAccountRepository(db *DB) *AccountRepositoryImpl {
	return &AccountRepositoryImpl{db: db}
}

func accountTable(platform string) (string, error) {
	switch platform {
	case PlatformTelegram:
		return "telegram_channels", nil
	case PlatformInstagram:
		return "instagram_accounts", nil
	case PlatformTwitter:
		return "twitter_accounts", nil
	default:
		return "", fmt.Errorf("unknown platform: %s", platform)
	}
}

func (r *AccountRepositoryImpl) GetAccount(platform, id string) (*Account, error) {
	switch platform {
	case PlatformTelegram:
		return r.getTelegram(id)
	case PlatformInstagram:
		return r.getInstagram(id)
	case PlatformTwitter:
		return r.getTwitter(id)
	default:
		return nil, fmt.Errorf("unknown platform: %s", platform)
	}
}

func (r *AccountRepositoryImpl) getTelegram(id string) (*Account, error) {
	var ch TelegramChannel
	err := r.db.QueryRow(`
		SELECT id, user_id, title, chat_id, bot_token_enc, posts_today,
		       daily_posts_limit, posts_reset_date, is_active, created_at
		FROM telegram_channels
		WHERE id = $1
	`, id).Scan(&ch.ID, &ch.UserID, &ch.Title, &ch.ChatID, &ch.BotTokenEnc,
		&ch.PostsToday, &ch.DailyPostsLimit, &ch.PostsResetDate, &ch.IsActive, &ch.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get telegram channel: %w", err)
	}

	return &Account{
		Platform:        PlatformTelegram,
		ID:              ch.ID,
		UserID:          ch.UserID,
		Label:           ch.Title,
		PostsToday:      ch.PostsToday,
		DailyPostsLimit: ch.DailyPostsLimit,
		IsActive:        ch.IsActive,
		Telegram:        &ch,
	}, nil
}

func (r *AccountRepositoryImpl) getInstagram(id string) (*Account, error) {
	var a InstagramAccount
	err := r.db.QueryRow(`
		SELECT id, user_id, username, password_enc, posts_today,
		       daily_posts_limit, posts_reset_date, is_active, created_at
		FROM instagram_accounts
		WHERE id = $1
	`, id).Scan(&a.ID, &a.UserID, &a.Username, &a.PasswordEnc,
		&a.PostsToday, &a.DailyPostsLimit, &a.PostsResetDate, &a.IsActive, &a.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get instagram account: %w", err)
	}

	return &Account{
		Platform:        PlatformInstagram,
		ID:              a.ID,
		UserID:          a.UserID,
		Label:           a.Username,
		PostsToday:      a.PostsToday,
		DailyPostsLimit: a.DailyPostsLimit,
		IsActive:        a.IsActive,
		Instagram:       &a,
	}, nil
}

func (r *AccountRepositoryImpl) getTwitter(id string) (*Account, error) {
	var a TwitterAccount
	err := r.db.QueryRow(`
		SELECT id, user_id, handle, consumer_key_enc, consumer_secret_enc,
		       access_token_enc, access_secret_enc, posts_today,
		       daily_posts_limit, posts_reset_date, is_active, created_at
		FROM twitter_accounts
		WHERE id = $1
	`, id).Scan(&a.ID, &a.UserID, &a.Handle, &a.ConsumerKeyEnc, &a.ConsumerSecretEnc,
		&a.AccessTokenEnc, &a.AccessSecretEnc, &a.PostsToday,
		&a.DailyPostsLimit, &a.PostsResetDate, &a.IsActive, &a.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get twitter account: %w", err)
	}

	return &Account{
		Platform:        PlatformTwitter,
		ID:              a.ID,
		UserID:          a.UserID,
		Label:           a.Handle,
		PostsToday:      a.PostsToday,
		DailyPostsLimit: a.DailyPostsLimit,
		IsActive:        a.IsActive,
		Twitter:         &a,
	}, nil
}

func (r *AccountRepositoryImpl) ListAccounts(userID string) ([]Account, error) {
	var accounts []Account

	rows, err := r.db.Query(`
		SELECT id, title, posts_today, daily_posts_limit, is_active
		FROM telegram_channels WHERE user_id = $1 ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list telegram channels: %w", err)
	}
	accounts, err = appendAccountSummaries(accounts, rows, PlatformTelegram, userID)
	if err != nil {
		return nil, err
	}

	rows, err = r.db.Query(`
		SELECT id, username, posts_today, daily_posts_limit, is_active
		FROM instagram_accounts WHERE user_id = $1 ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list instagram accounts: %w", err)
	}
	accounts, err = appendAccountSummaries(accounts, rows, PlatformInstagram, userID)
	if err != nil {
		return nil, err
	}

	rows, err = r.db.Query(`
		SELECT id, handle, posts_today, daily_posts_limit, is_active
		FROM twitter_accounts WHERE user_id = $1 ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list twitter accounts: %w", err)
	}
	accounts, err = appendAccountSummaries(accounts, rows, PlatformTwitter, userID)
	if err != nil {
		return nil, err
	}

	return accounts, nil
}

func appendAccountSummaries(accounts []Account, rows *sql.Rows, platform, userID string) ([]Account, error) {
	defer rows.Close()

	for rows.Next() {
		a := Account{Platform: platform, UserID: userID}
		if err := rows.Scan(&a.ID, &a.Label, &a.PostsToday, &a.DailyPostsLimit, &a.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan account row: %w", err)
		}
		accounts = append(accounts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating account rows: %w", err)
	}

	return accounts, nil
}

func (r *AccountRepositoryImpl) CreateTelegramChannel(ch *TelegramChannel) (string, error) {
	var id string
	err := r.db.QueryRow(`
		INSERT INTO telegram_channels (user_id, title, chat_id, bot_token_enc, daily_posts_limit)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, ch.UserID, ch.Title, ch.ChatID, ch.BotTokenEnc, ch.DailyPostsLimit).Scan(&id)

	if err != nil {
		return "", fmt.Errorf("failed to create telegram channel: %w", err)
	}

	return id, nil
}

func (r *AccountRepositoryImpl) CreateInstagramAccount(a *InstagramAccount) (string, error) {
	var id string
	err := r.db.QueryRow(`
		INSERT INTO instagram_accounts (user_id, username, password_enc, daily_posts_limit)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, a.UserID, a.Username, a.PasswordEnc, a.DailyPostsLimit).Scan(&id)

	if err != nil {
		return "", fmt.Errorf("failed to create instagram account: %w", err)
	}

	return id, nil
}

func (r *AccountRepositoryImpl) CreateTwitterAccount(a *TwitterAccount) (string, error) {
	var id string
	err := r.db.QueryRow(`
		INSERT INTO twitter_accounts (user_id, handle, consumer_key_enc,
			consumer_secret_enc, access_token_enc, access_secret_enc, daily_posts_limit)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, a.UserID, a.Handle, a.ConsumerKeyEnc, a.ConsumerSecretEnc,
		a.AccessTokenEnc, a.AccessSecretEnc, a.DailyPostsLimit).Scan(&id)

	if err != nil {
		return "", fmt.Errorf("failed to create twitter account: %w", err)
	}

	return id, nil
}

// TryConsumeDailyQuota is a single conditional update so concurrent
// dispatch workers cannot race the posts_today counter past the cap. The
// CASE handles the midnight rollover in the same statement.
func (r *AccountRepositoryImpl) TryConsumeDailyQuota(platform, id string) (bool, error) {
	table, err := accountTable(platform)
	if err != nil {
		return false, err
	}

	res, err := r.db.Exec(`
		UPDATE `+table+`
		SET posts_today = CASE WHEN posts_reset_date < CURRENT_DATE THEN 1 ELSE posts_today + 1 END,
		    posts_reset_date = CURRENT_DATE
		WHERE id = $1
		  AND is_active = TRUE
		  AND (posts_reset_date < CURRENT_DATE OR posts_today < daily_posts_limit)
	`, id)
	if err != nil {
		return false, fmt.Errorf("failed to consume daily quota: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return affected > 0, nil
}

func (r *AccountRepositoryImpl) RemainingDailyQuota(platform, id string) (int, error) {
	table, err := accountTable(platform)
	if err != nil {
		return 0, err
	}

	var remaining int
	err = r.db.QueryRow(`
		SELECT CASE WHEN posts_reset_date < CURRENT_DATE THEN daily_posts_limit
		            ELSE GREATEST(daily_posts_limit - posts_today, 0) END
		FROM `+table+`
		WHERE id = $1
	`, id).Scan(&remaining)

	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get remaining quota: %w", err)
	}

	return remaining, nil
}
