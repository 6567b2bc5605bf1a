package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/postcomb/postcomb/app/database"
	"github.com/postcomb/postcomb/app/secrets"
)

// InstagramPublisher talks to a posting gateway that wraps the Instagram
// private API. Instagram has no official content publishing endpoint for
// ordinary accounts, so the heavy lifting (login flow, challenge handling)
// lives in a separate service and this adapter stays a thin client.
type InstagramPublisher struct {
	baseURL string
	cipher  *secrets.Cipher
	client  *http.Client
}

func NewInstagramPublisher(baseURL string, cipher *secrets.Cipher) *InstagramPublisher {
	return &InstagramPublisher{
		baseURL: baseURL,
		cipher:  cipher,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *InstagramPublisher) Platform() string { return database.PlatformInstagram }

type instagramGatewayResponse struct {
	PostID string `json:"post_id"`
	Error  string `json:"error"`
}

func (p *InstagramPublisher) Publish(ctx context.Context, content Content, account *database.Account) (string, error) {
	if account.Instagram == nil {
		return "", NewError(ErrorKindRejected, "account %s is not an instagram account", account.ID)
	}
	if p.baseURL == "" {
		return "", NewError(ErrorKindRejected, "instagram posting gateway is not configured")
	}
	if content.ImageURL == "" {
		return "", NewError(ErrorKindRejected, "instagram posts require an image")
	}

	password, err := p.cipher.Decrypt(account.Instagram.PasswordEnc)
	if err != nil {
		return "", NewError(ErrorKindAuth, "failed to decrypt instagram password: %v", err)
	}

	body, err := json.Marshal(map[string]string{
		"username":  account.Instagram.Username,
		"password":  password,
		"image_url": content.ImageURL,
		"caption":   content.Text,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode instagram payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/publish", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create instagram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", NewError(ErrorKindTransient, "instagram gateway request failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", NewError(ErrorKindTransient, "failed to read instagram response: %v", err)
	}

	var parsed instagramGatewayResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", NewError(ErrorKindTransient, "unexpected instagram response: %v", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK && parsed.PostID != "":
		return parsed.PostID, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", NewError(ErrorKindAuth, "instagram rejected credentials: %s", parsed.Error)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", NewError(ErrorKindTransient, "instagram error %d: %s", resp.StatusCode, parsed.Error)
	default:
		return "", NewError(ErrorKindRejected, "instagram refused post: %s", parsed.Error)
	}
}
