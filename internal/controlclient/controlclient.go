// Package controlclient implements the HTTP Control Client (spec §4.J): a
// thin client for the control protocol the original daemon speaks to
// itself (and to `monit`-style CLIs) — one action verb per request, no
// session, no keep-alive required.
package controlclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxErrorBodyBytes = 1024

// Client issues control requests against one daemon's HTTP control
// listener (spec §4.J / §6's action verbs).
type Client struct {
	BaseURL  string
	Username string
	Password string

	HTTPClient *http.Client
}

// New returns a Client with a sane default timeout. baseURL is the
// listener's root, e.g. "http://127.0.0.1:2812".
func New(baseURL, username, password string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Username:   username,
		Password:   password,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Do posts action against the named service and reports success (status
// below 300). A response with status 300 or above is scraped for the
// operator-facing error message
// the listener embeds in its HTML body, between the first "</h2>" and the
// following "<p>" (spec §4.J), capped at maxErrorBodyBytes of body read.
func (c *Client) Do(ctx context.Context, service, action string) error {
	endpoint := fmt.Sprintf("%s/%s", c.BaseURL, url.PathEscape(service))
	body := url.Values{"action": {action}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("controlclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.Username != "" {
		req.SetBasicAuth(c.Username, c.Password)
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("controlclient: %s %s: %w", action, service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 300 {
		return nil
	}

	limited := io.LimitReader(resp.Body, maxErrorBodyBytes)
	raw, _ := io.ReadAll(limited)
	msg := scrapeError(string(raw))
	if msg == "" {
		msg = resp.Status
	}
	return fmt.Errorf("controlclient: %s %s: %s", action, service, msg)
}

// scrapeError pulls the operator-facing message out of the listener's
// error page, matching the original CLI's screen-scraping of its own
// server's HTML (there was never a structured error format).
func scrapeError(body string) string {
	start := strings.Index(body, "</h2>")
	if start == -1 {
		return ""
	}
	rest := body[start+len("</h2>"):]
	end := strings.Index(rest, "<p>")
	if end == -1 {
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(rest[:end])
}
