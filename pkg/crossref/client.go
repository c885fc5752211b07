// Package crossref queries the Crossref works API by DOI.
package crossref

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/scholarpipe/backend/internal/httpx"
)

const baseURL = "https://api.crossref.org"

// Client is a Crossref API client. Crossref abstracts arrive as JATS XML
// fragments; the client strips markup down to plain text.
type Client struct {
	httpClient *httpx.Client
}

// NewClient creates a Crossref client on top of the shared retrying
// HTTP client.
func NewClient(httpClient *httpx.Client) *Client {
	return &Client{httpClient: httpClient}
}

// Work is the normalized subset of a Crossref work record.
type Work struct {
	Title    string
	Abstract string
	OAPDFURL string
	License  string
}

type worksResponse struct {
	Message struct {
		Title    []string `json:"title"`
		Abstract string   `json:"abstract"`
		Link     []struct {
			URL         string `json:"URL"`
			ContentType string `json:"content-type"`
		} `json:"link"`
		License []struct {
			URL string `json:"URL"`
		} `json:"license"`
	} `json:"message"`
}

// GetWork fetches the work for a normalized DOI. raw is the verbatim
// response payload for provenance.
func (c *Client) GetWork(ctx context.Context, doiNorm string) (*Work, []byte, error) {
	reqURL := fmt.Sprintf("%s/works/%s", baseURL, doiNorm)

	body, err := c.httpClient.GetBody(ctx, reqURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("crossref request failed: %w", err)
	}

	var resp worksResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, body, fmt.Errorf("failed to parse crossref response: %w", err)
	}

	work := &Work{Abstract: stripTags(resp.Message.Abstract)}
	if len(resp.Message.Title) > 0 {
		work.Title = strings.TrimSpace(resp.Message.Title[0])
	}
	for _, link := range resp.Message.Link {
		if link.ContentType == "application/pdf" {
			work.OAPDFURL = link.URL
			break
		}
	}
	if len(resp.Message.License) > 0 {
		work.License = resp.Message.License[0].URL
	}
	return work, body, nil
}

// RequestURL returns the URL GetWork would fetch, for provenance records.
func (c *Client) RequestURL(doiNorm string) string {
	return fmt.Sprintf("%s/works/%s", baseURL, doiNorm)
}

var (
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// stripTags flattens a JATS abstract fragment to plain text.
func stripTags(s string) string {
	if s == "" {
		return ""
	}
	s = tagRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
