// Package comments walks a cursor paginated comment API for one article.
package comments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"sjsage522/newsworker/logger"
	"sjsage522/newsworker/pkg/errors"
)

// DefaultMaxBatches bounds a traversal whose cursor never ends
const DefaultMaxBatches = 500

// Fetcher is the HTTP capability the client needs
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, headers map[string]string, params url.Values) ([]byte, error)
}

// Batch is one page of comments. An empty Next ends the traversal.
type Batch struct {
	Comments []string
	Next     string
}

// DecodeFunc turns a response body into a batch
type DecodeFunc func(body []byte) (Batch, error)

// Client collects the full comment thread of an article
type Client struct {
	Fetcher    Fetcher
	Endpoint   string // %s is replaced by the article id
	Decode     DecodeFunc
	MaxBatches int
}

// NewClient creates a client for endpoint using the JSON decoder
func NewClient(fetcher Fetcher, endpoint string) *Client {
	return &Client{
		Fetcher:    fetcher,
		Endpoint:   endpoint,
		Decode:     DecodeJSON,
		MaxBatches: DefaultMaxBatches,
	}
}

// Collect returns the article's comments in endpoint order. A failing batch ends the
// traversal and whatever was collected before it is returned.
func (c *Client) Collect(ctx context.Context, articleID string) []string {
	comments, _ := c.CollectWithError(ctx, articleID)
	return comments
}

// CollectWithError is Collect that also reports why a traversal ended early
func (c *Client) CollectWithError(ctx context.Context, articleID string) ([]string, error) {
	if articleID == "" {
		return nil, errors.NewValidation("comments", "empty article id")
	}

	endpoint := fmt.Sprintf(c.Endpoint, url.PathEscape(articleID))
	decode := c.Decode
	if decode == nil {
		decode = DecodeJSON
	}
	maxBatches := c.MaxBatches
	if maxBatches <= 0 {
		maxBatches = DefaultMaxBatches
	}
	log := logger.ForComponent("comments").WithField("article", articleID)

	var (
		comments []string
		cursor   string
	)
	for i := 0; i < maxBatches; i++ {
		var params url.Values
		if cursor != "" {
			params = url.Values{"cursor": {cursor}}
		}

		body, err := c.Fetcher.Fetch(ctx, endpoint, map[string]string{"Accept": "application/json"}, params)
		if err != nil {
			log.Warn().Err(err).Int("batch", i+1).Int("collected", len(comments)).Msg("Comment batch failed")
			return comments, err
		}
		batch, err := decode(body)
		if err != nil {
			log.Warn().Err(err).Int("batch", i+1).Int("collected", len(comments)).Msg("Comment batch malformed")
			return comments, errors.NewParsing("comments", "failed to decode comment batch", err)
		}

		comments = append(comments, batch.Comments...)
		if len(batch.Comments) == 0 || batch.Next == "" || batch.Next == cursor {
			return comments, nil
		}
		cursor = batch.Next
	}

	log.Warn().Int("max_batches", maxBatches).Msg("Comment traversal hit batch ceiling")
	return comments, nil
}

type jsonComment struct {
	Text string `json:"text"`
	Body string `json:"body"`
}

type jsonBatch struct {
	Comments   []jsonComment `json:"comments"`
	Next       *string       `json:"next"`
	NextCursor *string       `json:"nextCursor"`
}

// DecodeJSON decodes {"comments":[{"text":"..."}],"next":"..."}; "body" and
// "nextCursor" are accepted as aliases. Blank comments are dropped.
func DecodeJSON(body []byte) (Batch, error) {
	var raw jsonBatch
	if err := json.Unmarshal(body, &raw); err != nil {
		return Batch{}, err
	}

	batch := Batch{}
	for _, c := range raw.Comments {
		text := c.Text
		if text == "" {
			text = c.Body
		}
		if text = strings.TrimSpace(text); text != "" {
			batch.Comments = append(batch.Comments, text)
		}
	}

	switch {
	case raw.Next != nil:
		batch.Next = *raw.Next
	case raw.NextCursor != nil:
		batch.Next = *raw.NextCursor
	}
	return batch, nil
}
