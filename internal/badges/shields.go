// Package badges renders status badges through a shields-compatible service.
package badges

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const DefaultBaseURL = "https://img.shields.io/badge/"

// Client downloads static badges.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Logger  zerolog.Logger
}

func NewClient(baseURL string, logger zerolog.Logger) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		Logger:  logger.With().Str("component", "badges").Logger(),
	}
}

// URL returns the static badge URL for label, message and color.
func (c *Client) URL(label, message, color string) string {
	return c.BaseURL + escapePart(label) + "-" + escapePart(message) + "-" + escapePart(color)
}

// escapePart applies the shields static badge escaping ("-" and "_" are
// doubled) and then percent-encodes the result.
func escapePart(s string) string {
	s = strings.NewReplacer("-", "--", "_", "__").Replace(s)
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// Download fetches the badge and writes it to path, creating the parent
// directory when needed.
func (c *Client) Download(ctx context.Context, path, label, message, color string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create badge dir: %w", err)
	}

	badgeURL := c.URL(label, message, color)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, badgeURL, nil)
	if err != nil {
		return fmt.Errorf("build badge request: %w", err)
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download badge %s: %w", badgeURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("download badge %s: status %d", badgeURL, resp.StatusCode)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create badge file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return fmt.Errorf("write badge %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write badge %s: %w", path, err)
	}

	c.Logger.Debug().Str("path", path).Str("url", badgeURL).Msg("badge written")
	return nil
}
