// Package openalex queries the OpenAlex works API by DOI.
package openalex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/scholarpipe/backend/internal/httpx"
)

const baseURL = "https://api.openalex.org"

// Client is an OpenAlex API client. OpenAlex is free and fast with the
// polite pool; abstracts come back as an inverted index that has to be
// reconstructed into plain text.
type Client struct {
	httpClient *httpx.Client
	email      string // for polite pool — faster responses
}

// NewClient creates an OpenAlex client. email is recommended — it puts
// requests in the polite pool.
func NewClient(httpClient *httpx.Client, email string) *Client {
	return &Client{httpClient: httpClient, email: email}
}

// Work is the normalized subset of an OpenAlex work record.
type Work struct {
	Title    string
	Abstract string
	IsOA     bool
	OAStatus string
	OAPDFURL string
	License  string
}

type workResult struct {
	Title                 string           `json:"title"`
	DisplayName           string           `json:"display_name"`
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
	OpenAccess            *struct {
		IsOA     bool   `json:"is_oa"`
		OAStatus string `json:"oa_status"`
		OAURL    string `json:"oa_url"`
	} `json:"open_access"`
	BestOALocation *struct {
		PDFURL  string `json:"pdf_url"`
		License string `json:"license"`
	} `json:"best_oa_location"`
}

// GetWorkByDOI fetches the work for a normalized DOI. raw is the
// verbatim response payload for provenance.
func (c *Client) GetWorkByDOI(ctx context.Context, doiNorm string) (*Work, []byte, error) {
	reqURL := c.RequestURL(doiNorm)

	body, err := c.httpClient.GetBody(ctx, reqURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("OpenAlex request failed: %w", err)
	}

	var w workResult
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, body, fmt.Errorf("failed to parse OpenAlex response: %w", err)
	}

	work := &Work{
		Title:    strings.TrimSpace(firstNonEmpty(w.Title, w.DisplayName)),
		Abstract: reconstructAbstract(w.AbstractInvertedIndex),
	}
	if w.OpenAccess != nil {
		work.IsOA = w.OpenAccess.IsOA
		work.OAStatus = w.OpenAccess.OAStatus
	}
	if w.BestOALocation != nil {
		work.OAPDFURL = w.BestOALocation.PDFURL
		work.License = w.BestOALocation.License
	}
	return work, body, nil
}

// RequestURL returns the URL GetWorkByDOI would fetch.
func (c *Client) RequestURL(doiNorm string) string {
	reqURL := fmt.Sprintf("%s/works/doi:%s", baseURL, doiNorm)
	if c.email != "" {
		reqURL += "?mailto=" + url.QueryEscape(c.email)
	}
	return reqURL
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// reconstructAbstract rebuilds a plain text abstract from OpenAlex's
// inverted index format: {"word": [position1, position2], ...}
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	maxPos := 0
	for _, positions := range invertedIndex {
		for _, pos := range positions {
			if pos > maxPos {
				maxPos = pos
			}
		}
	}

	words := make([]string, maxPos+1)
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			if pos >= 0 && pos <= maxPos {
				words[pos] = word
			}
		}
	}

	var sb strings.Builder
	for _, word := range words {
		if word != "" {
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(word)
		}
	}
	return sb.String()
}
