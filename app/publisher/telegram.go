package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/postcomb/postcomb/app/database"
	"github.com/postcomb/postcomb/app/secrets"
)

const defaultTelegramAPIBaseURL = "https://api.telegram.org"

// TelegramPublisher posts to channels through the Bot API sendMessage and
// sendPhoto methods. Each channel carries its own encrypted bot token.
type TelegramPublisher struct {
	baseURL string
	cipher  *secrets.Cipher
	client  *http.Client
}

func NewTelegramPublisher(baseURL string, cipher *secrets.Cipher) *TelegramPublisher {
	if baseURL == "" {
		baseURL = defaultTelegramAPIBaseURL
	}
	return &TelegramPublisher{
		baseURL: baseURL,
		cipher:  cipher,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *TelegramPublisher) Platform() string { return database.PlatformTelegram }

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	ErrorCode   int    `json:"error_code"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

func (p *TelegramPublisher) Publish(ctx context.Context, content Content, account *database.Account) (string, error) {
	if account.Telegram == nil {
		return "", NewError(ErrorKindRejected, "account %s is not a telegram channel", account.ID)
	}

	token, err := p.cipher.Decrypt(account.Telegram.BotTokenEnc)
	if err != nil {
		return "", NewError(ErrorKindAuth, "failed to decrypt bot token: %v", err)
	}

	method := "sendMessage"
	payload := map[string]any{
		"chat_id":    account.Telegram.ChatID,
		"parse_mode": "HTML",
	}
	if content.ImageURL != "" {
		method = "sendPhoto"
		payload["photo"] = content.ImageURL
		payload["caption"] = content.Text
	} else {
		payload["text"] = content.Text
	}
	if content.Options["disable_notification"] == "true" {
		payload["disable_notification"] = true
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", p.baseURL, token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", NewError(ErrorKindTransient, "telegram request failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", NewError(ErrorKindTransient, "failed to read telegram response: %v", err)
	}

	var parsed telegramResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", NewError(ErrorKindTransient, "unexpected telegram response: %v", err)
	}

	if !parsed.OK {
		return "", classifyTelegramError(parsed.ErrorCode, parsed.Description)
	}

	return strconv.FormatInt(parsed.Result.MessageID, 10), nil
}

func classifyTelegramError(code int, description string) *Error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return NewError(ErrorKindAuth, "telegram rejected credentials: %s", description)
	case code == http.StatusTooManyRequests || code >= 500:
		return NewError(ErrorKindTransient, "telegram error %d: %s", code, description)
	default:
		return NewError(ErrorKindRejected, "telegram refused message: %s", description)
	}
}
