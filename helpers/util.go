package helpers

import (
	"net/url"
	"strings"

	"sjsage522/newsworker/pkg/errors"
)

// PathSegmentAfter returns the path segment that follows marker in rawURL,
// e.g. the article id in https://news.yahoo.co.jp/articles/<id>/comments.
func PathSegmentAfter(rawURL, marker string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.NewValidation(rawURL, "invalid url")
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, seg := range segments {
		if seg == marker && i+1 < len(segments) && segments[i+1] != "" {
			return segments[i+1], nil
		}
	}
	return "", errors.NewValidation(rawURL, "segment "+marker+" not found")
}
