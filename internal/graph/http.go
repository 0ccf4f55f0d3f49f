// internal/graph/http.go — talks to the Graph REST endpoints over net/http
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
)

const listTop = 10

// HTTPClient implements Client against a Graph-shaped REST base URL.
// Requests are built from typed parts rather than string concatenation
// so query and path segments are always percent-encoded.
type HTTPClient struct {
	base    string // e.g. https://graph.microsoft.com
	mailbox string
	tokens  TokenSource
	http    *http.Client
	log     *slog.Logger
}

// NewHTTPClient constructs a client for one mailbox. The base URL must
// not have a trailing slash path beyond the host.
func NewHTTPClient(base, mailbox string, tokens TokenSource, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &HTTPClient{
		base:    strings.TrimRight(base, "/"),
		mailbox: mailbox,
		tokens:  tokens,
		// No client timeout: a poll cycle blocks on the transport's own
		// defaults, and the coarse polling cadence tolerates that.
		http: &http.Client{},
		log:  logger,
	}
}

// ListUnread fetches up to listTop unread messages in server order.
func (c *HTTPClient) ListUnread(ctx context.Context) ([]Message, error) {
	q := url.Values{}
	q.Set("$filter", "isRead eq false")
	q.Set("$select", "subject,bodyPreview,from")
	q.Set("$top", fmt.Sprintf("%d", listTop))
	endpoint := c.messagesURL("") + "?" + q.Encode()

	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("list unread: %w", err)
	}

	var lr listResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return nil, fmt.Errorf("list unread: decode response: %w", err)
	}
	msgs := make([]Message, 0, len(lr.Value))
	for _, m := range lr.Value {
		msgs = append(msgs, Message{
			ID:            MessageID(m.ID),
			Subject:       m.Subject,
			BodyPreview:   m.BodyPreview,
			SenderAddress: m.From.EmailAddress.Address,
		})
	}
	return msgs, nil
}

// MarkRead sets the read flag on one message.
func (c *HTTPClient) MarkRead(ctx context.Context, id MessageID) error {
	payload, err := json.Marshal(markReadRequest{IsRead: true})
	if err != nil {
		return fmt.Errorf("mark read %s: encode request: %w", id, err)
	}
	if _, err := c.do(ctx, http.MethodPatch, c.messagesURL(string(id)), payload); err != nil {
		return fmt.Errorf("mark read %s: %w", id, err)
	}
	return nil
}

// messagesURL builds the messages collection URL, or a single message
// URL when id is non-empty.
func (c *HTTPClient) messagesURL(id string) string {
	u := fmt.Sprintf("%s/v1.0/users/%s/messages", c.base, url.PathEscape(c.mailbox))
	if id != "" {
		u += "/" + url.PathEscape(id)
	}
	return u
}

func (c *HTTPClient) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire token: %w", err)
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, snippet(body))
	}
	return body, nil
}

const snippetLimit = 200

// snippet trims a response body for log/error inclusion.
func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > snippetLimit {
		s = s[:snippetLimit] + "..."
	}
	return s
}

var _ Client = (*HTTPClient)(nil)
