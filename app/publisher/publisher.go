package publisher

import (
	"context"
	"fmt"

	"github.com/postcomb/postcomb/app/database"
)

// ErrorKind classifies publish failures for the dispatcher's retry policy.
type ErrorKind string

const (
	// ErrorKindTransient covers network timeouts and platform rate limits;
	// worth retrying with backoff.
	ErrorKindTransient ErrorKind = "transient"
	// ErrorKindAuth means the stored credential was rejected; not retried.
	ErrorKindAuth ErrorKind = "auth"
	// ErrorKindRejected means the platform refused the content; not retried.
	ErrorKindRejected ErrorKind = "rejected"
)

// Error is a classified publish failure.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// IsRetryable reports whether the dispatcher should retry the post. Errors
// without a classification are treated as transient.
func IsRetryable(err error) bool {
	if pubErr, ok := err.(*Error); ok {
		return pubErr.Kind == ErrorKindTransient
	}
	return true
}

// Content is the platform-independent payload of one publish.
type Content struct {
	Text     string
	Title    string
	URL      string
	ImageURL string
	Options  map[string]string
}

// Publisher is the uniform contract every platform adapter satisfies.
type Publisher interface {
	Platform() string
	Publish(ctx context.Context, content Content, account *database.Account) (string, error)
}

// Registry maps platforms to their adapters so the dispatcher stays
// platform-agnostic.
type Registry struct {
	publishers map[string]Publisher
}

func NewRegistry(publishers ...Publisher) *Registry {
	r := &Registry{publishers: make(map[string]Publisher)}
	for _, p := range publishers {
		r.publishers[p.Platform()] = p
	}
	return r
}

func (r *Registry) For(platform string) (Publisher, error) {
	p, ok := r.publishers[platform]
	if !ok {
		return nil, fmt.Errorf("no publisher registered for platform %s", platform)
	}
	return p, nil
}
