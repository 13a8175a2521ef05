package publisher

import (
	"context"
	"encoding/json"

	"sjsage522/newsworker/internal/news"
	"sjsage522/newsworker/pkg/errors"
)

// MessageKey is the stream field new article notifications are written under
const MessageKey = "b64_newsrows"

// Publisher represents a service for publishing messages
type Publisher interface {
	// Publish publishes a message to a stream
	Publish(ctx context.Context, key string, message []byte) error

	// TrimStreams trims all streams to the configured maximum length
	TrimStreams(ctx context.Context) error

	// Close closes the publisher connection
	Close() error
}

// Notification announces an article newly written to a sheet
type Notification struct {
	Sheet        string `json:"sheet"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	Source       string `json:"source"`
	Engine       string `json:"engine"`
	PublishedAt  string `json:"published_at"`
	BodyPages    int    `json:"body_pages"`
	CommentCount int    `json:"comment_count"`
}

// NewNotification builds the notification for an article written to sheet
func NewNotification(sheet string, a news.EnrichedArticle) Notification {
	return Notification{
		Sheet:        sheet,
		Title:        a.Title,
		URL:          a.URL,
		Source:       a.SourceName(),
		Engine:       a.Engine,
		PublishedAt:  a.PublishedAt.String(),
		BodyPages:    len(a.BodyPages),
		CommentCount: a.CommentCount(),
	}
}

// PublishArticles publishes one notification per article and returns how many were
// sent. It stops at the first failure.
func PublishArticles(ctx context.Context, p Publisher, sheet string, articles []news.EnrichedArticle) (int, error) {
	for i, a := range articles {
		body, err := json.Marshal(NewNotification(sheet, a))
		if err != nil {
			return i, errors.NewPublisher("redis", "failed to encode notification", err)
		}
		if err := p.Publish(ctx, MessageKey, body); err != nil {
			return i, err
		}
	}
	return len(articles), nil
}
