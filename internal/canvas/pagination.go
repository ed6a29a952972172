package canvas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	appErrors "github.com/noah-isme/assignment-sync/pkg/errors"
)

// Doer is the authenticated HTTP capability handed in by the caller.
// *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RequestError describes a non-success Canvas response.
type RequestError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("Canvas API request failed: %d %s", e.StatusCode, e.statusText())
}

func (e *RequestError) statusText() string {
	text := strings.TrimSpace(strings.TrimPrefix(e.Status, fmt.Sprintf("%d", e.StatusCode)))
	if text == "" {
		text = http.StatusText(e.StatusCode)
	}
	return text
}

// FetchAll drains a Link-paginated collection starting at startURL and
// returns every element of every array-shaped page in order. Pages whose
// body is not a JSON array contribute nothing. Any failed page aborts the
// whole fetch and discards what was already read.
func FetchAll(ctx context.Context, doer Doer, startURL string) ([]json.RawMessage, error) {
	var items []json.RawMessage
	nextURL := startURL

	for nextURL != "" {
		page, link, err := fetchPage(ctx, doer, nextURL)
		if err != nil {
			return nil, err
		}
		items = append(items, page...)
		nextURL = NextLink(link)
	}

	return items, nil
}

func fetchPage(ctx context.Context, doer Doer, pageURL string) ([]json.RawMessage, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create canvas request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := doer.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("canvas request %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, resp.Body)
		reqErr := &RequestError{URL: pageURL, StatusCode: resp.StatusCode, Status: resp.Status}
		return nil, "", appErrors.Typed(appErrors.ErrUpstreamRequest, reqErr)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read canvas response: %w", err)
	}

	link := resp.Header.Get("Link")
	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) {
		return nil, "", fmt.Errorf("decode canvas page %s: invalid json", pageURL)
	}
	if trimmed[0] != '[' {
		return nil, link, nil
	}

	var page []json.RawMessage
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return nil, "", fmt.Errorf("decode canvas page %s: %w", pageURL, err)
	}
	return page, link, nil
}

// NextLink extracts the rel="next" URL from a Link header made of
// comma-separated `<url>; rel="value"` segments.
func NextLink(header string) string {
	if strings.TrimSpace(header) == "" {
		return ""
	}

	for _, segment := range strings.Split(header, ",") {
		sections := strings.Split(segment, ";")
		if len(sections) < 2 {
			continue
		}
		target := strings.TrimSpace(sections[0])
		if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
			continue
		}
		for _, param := range sections[1:] {
			if isNextRel(param) {
				return target[1 : len(target)-1]
			}
		}
	}

	return ""
}

func isNextRel(param string) bool {
	key, value, found := strings.Cut(strings.TrimSpace(param), "=")
	if !found || !strings.EqualFold(strings.TrimSpace(key), "rel") {
		return false
	}
	value = strings.Trim(strings.TrimSpace(value), `"`)
	return value == "next"
}
