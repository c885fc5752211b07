// Package biorxiv queries the bioRxiv/medRxiv details API. Both servers
// share one API host; the server name is part of the path.
package biorxiv

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/scholarpipe/backend/internal/httpx"
)

const baseURL = "https://api.biorxiv.org/details"

// Servers accepted by the details API.
const (
	ServerBiorxiv = "biorxiv"
	ServerMedrxiv = "medrxiv"
)

type Client struct {
	httpClient *httpx.Client
}

func NewClient(httpClient *httpx.Client) *Client {
	return &Client{httpClient: httpClient}
}

// Preprint is the normalized subset of a details record. PublishedDOI
// is set when the server knows the peer-reviewed version.
type Preprint struct {
	Title            string
	Abstract         string
	Date             string
	Version          string
	PublishedDOI     string
	PublishedJournal string
}

type detailsResponse struct {
	Collection []struct {
		Title            string `json:"title"`
		Abstract         string `json:"abstract"`
		Date             string `json:"date"`
		Version          string `json:"version"`
		Published        string `json:"published"`
		PublishedJournal string `json:"published_journal"`
		Journal          string `json:"journal"`
	} `json:"collection"`
}

// GetByDOI fetches the latest version record for a preprint DOI on the
// given server. raw is the verbatim payload for provenance. A nil
// Preprint with nil error means the DOI is unknown to the server.
func (c *Client) GetByDOI(ctx context.Context, server, doiNorm string) (*Preprint, []byte, error) {
	reqURL := c.RequestURL(server, doiNorm)

	body, err := c.httpClient.GetBody(ctx, reqURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%s request failed: %w", server, err)
	}

	var resp detailsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, body, fmt.Errorf("failed to parse %s response: %w", server, err)
	}
	if len(resp.Collection) == 0 {
		return nil, body, nil
	}

	item := resp.Collection[0]
	p := &Preprint{
		Title:            strings.TrimSpace(item.Title),
		Abstract:         strings.TrimSpace(item.Abstract),
		Date:             item.Date,
		Version:          item.Version,
		PublishedJournal: item.PublishedJournal,
	}
	if p.PublishedJournal == "" {
		p.PublishedJournal = item.Journal
	}
	// "NA" means no published version is known yet.
	if item.Published != "" && !strings.EqualFold(item.Published, "NA") {
		p.PublishedDOI = item.Published
	}
	return p, body, nil
}

// RequestURL returns the URL GetByDOI would fetch.
func (c *Client) RequestURL(server, doiNorm string) string {
	return fmt.Sprintf("%s/%s/%s", baseURL, server, doiNorm)
}

// PDFURL builds the full-text PDF location for a preprint DOI.
func PDFURL(server, doiNorm string) string {
	host := "www.biorxiv.org"
	if server == ServerMedrxiv {
		host = "www.medrxiv.org"
	}
	return fmt.Sprintf("https://%s/content/%s.full.pdf", host, doiNorm)
}
