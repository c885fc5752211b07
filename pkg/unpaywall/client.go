// Package unpaywall queries the Unpaywall v2 API for Open Access status.
package unpaywall

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/scholarpipe/backend/internal/httpx"
)

const baseURL = "https://api.unpaywall.org/v2"

// Client is an Unpaywall API client. Unpaywall requires a contact email
// on every request.
type Client struct {
	httpClient *httpx.Client
	email      string
}

// NewClient creates an Unpaywall client. email must be non-empty; the
// API rejects anonymous requests.
func NewClient(httpClient *httpx.Client, email string) *Client {
	return &Client{httpClient: httpClient, email: email}
}

// Result is the normalized OA snapshot for one DOI.
type Result struct {
	IsOA       bool
	OAStatus   string
	License    string
	OAPDFURL   string
	LandingURL string
}

type response struct {
	IsOA           bool   `json:"is_oa"`
	OAStatus       string `json:"oa_status"`
	BestOALocation *struct {
		License       string `json:"license"`
		URLForPDF     string `json:"url_for_pdf"`
		URLForLanding string `json:"url_for_landing_page"`
		URL           string `json:"url"`
	} `json:"best_oa_location"`
}

// GetByDOI fetches OA status for a normalized DOI. raw is the verbatim
// response payload for provenance.
func (c *Client) GetByDOI(ctx context.Context, doiNorm string) (*Result, []byte, error) {
	if c.email == "" {
		return nil, nil, fmt.Errorf("unpaywall requires a contact email")
	}
	reqURL := c.RequestURL(doiNorm)

	body, err := c.httpClient.GetBody(ctx, reqURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("unpaywall request failed: %w", err)
	}

	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, body, fmt.Errorf("failed to parse unpaywall response: %w", err)
	}

	result := &Result{IsOA: resp.IsOA, OAStatus: resp.OAStatus}
	if best := resp.BestOALocation; best != nil {
		result.License = best.License
		result.OAPDFURL = best.URLForPDF
		if best.URLForLanding != "" {
			result.LandingURL = best.URLForLanding
		} else {
			result.LandingURL = best.URL
		}
	}
	return result, body, nil
}

// RequestURL returns the URL GetByDOI would fetch.
func (c *Client) RequestURL(doiNorm string) string {
	return fmt.Sprintf("%s/%s?email=%s", baseURL, doiNorm, url.QueryEscape(c.email))
}
