// Package semanticscholar queries the Semantic Scholar Graph API by DOI.
package semanticscholar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/scholarpipe/backend/internal/httpx"
)

const baseURL = "https://api.semanticscholar.org/graph/v1"

const paperFields = "title,abstract,externalIds,openAccessPdf"

// Client is a Semantic Scholar Graph API client. An API key raises the
// rate limits but is optional.
type Client struct {
	httpClient *httpx.Client
	apiKey     string
}

func NewClient(httpClient *httpx.Client, apiKey string) *Client {
	return &Client{httpClient: httpClient, apiKey: apiKey}
}

// Paper is the normalized subset of a Semantic Scholar paper record.
type Paper struct {
	Title         string
	Abstract      string
	OpenAccessPDF string
	ArxivID       string
}

type paperResponse struct {
	Title         string            `json:"title"`
	Abstract      string            `json:"abstract"`
	ExternalIDs   map[string]string `json:"externalIds"`
	OpenAccessPdf *struct {
		URL string `json:"url"`
	} `json:"openAccessPdf"`
}

// GetPaperByDOI fetches the paper record for a normalized DOI. raw is
// the verbatim response payload for provenance.
func (c *Client) GetPaperByDOI(ctx context.Context, doiNorm string) (*Paper, []byte, error) {
	reqURL := c.RequestURL(doiNorm)

	headers := http.Header{}
	if c.apiKey != "" {
		headers.Set("x-api-key", c.apiKey)
	}

	body, err := c.httpClient.GetBody(ctx, reqURL, headers)
	if err != nil {
		return nil, nil, fmt.Errorf("semantic scholar request failed: %w", err)
	}

	var resp paperResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, body, fmt.Errorf("failed to parse semantic scholar response: %w", err)
	}

	paper := &Paper{
		Title:    strings.TrimSpace(resp.Title),
		Abstract: strings.TrimSpace(resp.Abstract),
		ArxivID:  resp.ExternalIDs["ArXiv"],
	}
	if resp.OpenAccessPdf != nil {
		paper.OpenAccessPDF = resp.OpenAccessPdf.URL
	}
	return paper, body, nil
}

// RequestURL returns the URL GetPaperByDOI would fetch.
func (c *Client) RequestURL(doiNorm string) string {
	return fmt.Sprintf("%s/paper/DOI:%s?fields=%s", baseURL, doiNorm, paperFields)
}
