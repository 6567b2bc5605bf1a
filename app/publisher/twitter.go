package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dghubble/oauth1"

	"github.com/postcomb/postcomb/app/database"
	"github.com/postcomb/postcomb/app/secrets"
)

const defaultTwitterAPIBaseURL = "https://api.twitter.com"

// TwitterPublisher posts tweets through the v2 API with per-account OAuth 1.0a
// user context credentials.
type TwitterPublisher struct {
	baseURL string
	cipher  *secrets.Cipher
	timeout time.Duration
}

func NewTwitterPublisher(baseURL string, cipher *secrets.Cipher) *TwitterPublisher {
	if baseURL == "" {
		baseURL = defaultTwitterAPIBaseURL
	}
	return &TwitterPublisher{
		baseURL: baseURL,
		cipher:  cipher,
		timeout: 30 * time.Second,
	}
}

func (p *TwitterPublisher) Platform() string { return database.PlatformTwitter }

type tweetResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
	Detail string `json:"detail"`
}

func (p *TwitterPublisher) Publish(ctx context.Context, content Content, account *database.Account) (string, error) {
	if account.Twitter == nil {
		return "", NewError(ErrorKindRejected, "account %s is not a twitter account", account.ID)
	}

	client, err := p.signedClient(account.Twitter)
	if err != nil {
		return "", NewError(ErrorKindAuth, "failed to decrypt twitter credentials: %v", err)
	}

	text := content.Text
	// Tweets cap at 280 characters; truncate rather than fail outright
	if runes := []rune(text); len(runes) > 280 {
		text = string(runes[:279]) + "…"
	}

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", fmt.Errorf("failed to encode tweet payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/2/tweets", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create tweet request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", NewError(ErrorKindTransient, "twitter request failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", NewError(ErrorKindTransient, "failed to read twitter response: %v", err)
	}

	var parsed tweetResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", NewError(ErrorKindTransient, "unexpected twitter response: %v", err)
	}

	switch {
	case resp.StatusCode == http.StatusCreated:
		return parsed.Data.ID, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", NewError(ErrorKindAuth, "twitter rejected credentials: %s", parsed.Detail)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", NewError(ErrorKindTransient, "twitter error %d: %s", resp.StatusCode, parsed.Detail)
	default:
		return "", NewError(ErrorKindRejected, "twitter refused tweet: %s", parsed.Detail)
	}
}

// signedClient builds an OAuth1-signing HTTP client from the account's four
// encrypted credentials.
func (p *TwitterPublisher) signedClient(account *database.TwitterAccount) (*http.Client, error) {
	consumerKey, err := p.cipher.Decrypt(account.ConsumerKeyEnc)
	if err != nil {
		return nil, err
	}
	consumerSecret, err := p.cipher.Decrypt(account.ConsumerSecretEnc)
	if err != nil {
		return nil, err
	}
	accessToken, err := p.cipher.Decrypt(account.AccessTokenEnc)
	if err != nil {
		return nil, err
	}
	accessSecret, err := p.cipher.Decrypt(account.AccessSecretEnc)
	if err != nil {
		return nil, err
	}

	config := oauth1.NewConfig(consumerKey, consumerSecret)
	token := oauth1.NewToken(accessToken, accessSecret)

	client := config.Client(oauth1.NoContext, token)
	client.Timeout = p.timeout
	return client, nil
}
