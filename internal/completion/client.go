// Package completion is the client side of the chat-completion proxy: it
// submits a conversation's role-tagged messages and returns the generated
// reply. The proxy holds the provider credential; this client never sees it.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tobyh/chatpad/internal/models"
)

// Kind identifies a class of completion failure so callers can branch
// without parsing error prose.
type Kind string

const (
	// KindNotConfigured means the proxy has no provider credential.
	KindNotConfigured Kind = "not_configured"
	// KindQuota means the provider reported a quota or rate-limit condition.
	KindQuota Kind = "quota"
	// KindUnavailable means the proxy could not be reached.
	KindUnavailable Kind = "unavailable"
	// KindUpstream means the proxy reported a provider-side failure.
	KindUpstream Kind = "upstream"
	// KindMalformed means the proxy's response was missing the expected
	// content field.
	KindMalformed Kind = "malformed"
)

type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("completion %s: %s", e.Kind, e.Detail)
}

type Client struct {
	url    string
	client *http.Client
}

// NewClient returns a client that posts to the proxy at url. Exactly one
// upstream call is made per Complete invocation; there are no retries.
func NewClient(url string) *Client {
	return &Client{
		url:    url,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type completionRequest struct {
	Messages []models.ChatMessage `json:"messages"`
}

type completionResponse struct {
	Content string `json:"content"`
	Error   string `json:"error"`
}

// Complete submits the ordered message sequence and returns the generated
// text. Failures are returned as *Error with a classified Kind.
func (c *Client) Complete(ctx context.Context, messages []models.ChatMessage) (string, error) {
	body, err := json.Marshal(completionRequest{Messages: messages})
	if err != nil {
		return "", &Error{Kind: KindMalformed, Detail: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", &Error{Kind: KindUnavailable, Detail: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &Error{Kind: KindUnavailable, Detail: err.Error()}
	}
	defer resp.Body.Close()

	var decoded completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", &Error{Kind: KindMalformed, Detail: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		return "", classify(decoded.Error, resp.StatusCode)
	}
	if decoded.Content == "" {
		return "", &Error{Kind: KindMalformed, Detail: "response is missing content"}
	}
	return decoded.Content, nil
}

// classify maps the proxy's error string to a Kind. The provider only
// reports prose, so the string match happens here, once, at the boundary.
func classify(detail string, status int) *Error {
	if detail == "" {
		detail = fmt.Sprintf("proxy returned status %d", status)
	}
	lower := strings.ToLower(detail)
	switch {
	case strings.Contains(lower, "api key"):
		return &Error{Kind: KindNotConfigured, Detail: detail}
	case strings.Contains(lower, "quota") || strings.Contains(lower, "rate limit"):
		return &Error{Kind: KindQuota, Detail: detail}
	default:
		return &Error{Kind: KindUpstream, Detail: detail}
	}
}
