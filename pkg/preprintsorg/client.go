// Package preprintsorg queries the Preprints.org manuscript API by DOI.
package preprintsorg

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/scholarpipe/backend/internal/httpx"
)

const baseURL = "https://www.preprints.org/api/manuscript/doi"

type Client struct {
	httpClient *httpx.Client
}

func NewClient(httpClient *httpx.Client) *Client {
	return &Client{httpClient: httpClient}
}

// Manuscript is the normalized subset of a Preprints.org record.
type Manuscript struct {
	Title            string
	Abstract         string
	PublishedDate    string
	PublishedDOI     string
	PublishedJournal string
	FullTextURL      string
}

// The API payload is loosely specified; several field names occur in
// the wild, so alternatives are checked in order.
type manuscriptResponse struct {
	Title            string `json:"title"`
	Abstract         string `json:"abstract"`
	PublishedDate    string `json:"published_date"`
	DatePublished    string `json:"date_published"`
	PublishedDOI     string `json:"published_doi"`
	PeerReviewedDOI  string `json:"peer_reviewed_doi"`
	PublishedJournal string `json:"published_journal"`
	JournalName      string `json:"journal_name"`
	PublishedURL     string `json:"published_url"`
	FulltextURL      string `json:"fulltext_url"`
}

// GetByDOI fetches the manuscript record for a Preprints.org DOI. raw
// is the verbatim payload for provenance.
func (c *Client) GetByDOI(ctx context.Context, doiNorm string) (*Manuscript, []byte, error) {
	reqURL := c.RequestURL(doiNorm)

	body, err := c.httpClient.GetBody(ctx, reqURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("preprints.org request failed: %w", err)
	}

	var resp manuscriptResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, body, fmt.Errorf("failed to parse preprints.org response: %w", err)
	}

	m := &Manuscript{
		Title:            strings.TrimSpace(resp.Title),
		Abstract:         strings.TrimSpace(resp.Abstract),
		PublishedDate:    firstNonEmpty(resp.PublishedDate, resp.DatePublished),
		PublishedDOI:     firstNonEmpty(resp.PublishedDOI, resp.PeerReviewedDOI),
		PublishedJournal: firstNonEmpty(resp.PublishedJournal, resp.JournalName),
		FullTextURL:      firstNonEmpty(resp.PublishedURL, resp.FulltextURL),
	}
	return m, body, nil
}

// RequestURL returns the URL GetByDOI would fetch.
func (c *Client) RequestURL(doiNorm string) string {
	return fmt.Sprintf("%s/%s", baseURL, doiNorm)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
