// Package europepmc queries the Europe PMC REST search API by DOI.
package europepmc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/scholarpipe/backend/internal/httpx"
)

const baseURL = "https://www.ebi.ac.uk/europepmc/webservices/rest"

// Client is a Europe PMC API client.
type Client struct {
	httpClient *httpx.Client
}

func NewClient(httpClient *httpx.Client) *Client {
	return &Client{httpClient: httpClient}
}

// FullTextURL is one advertised full-text location.
type FullTextURL struct {
	URL          string `json:"url"`
	DocumentType string `json:"documentStyle"`
	Availability string `json:"availability"`
	Site         string `json:"site"`
}

// Result is the normalized subset of a Europe PMC search hit.
type Result struct {
	Abstract     string
	FullTextURLs []FullTextURL
}

type searchResponse struct {
	ResultList struct {
		Result []struct {
			AbstractText    string `json:"abstractText"`
			FullTextURLList struct {
				FullTextURL []FullTextURL `json:"fullTextUrl"`
			} `json:"fullTextUrlList"`
		} `json:"result"`
	} `json:"resultList"`
}

// SearchByDOI fetches the first search hit for a normalized DOI. raw is
// the verbatim response payload for provenance. A nil Result with nil
// error means the DOI is unknown to Europe PMC.
func (c *Client) SearchByDOI(ctx context.Context, doiNorm string) (*Result, []byte, error) {
	reqURL := c.RequestURL(doiNorm)

	body, err := c.httpClient.GetBody(ctx, reqURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("europepmc request failed: %w", err)
	}

	result, err := ParseSearchBody(body)
	if err != nil {
		return nil, body, err
	}
	return result, body, nil
}

// ParseSearchBody extracts the first hit from a raw search payload, for
// re-reading payloads captured in provenance. A nil Result with nil
// error means the payload held no hits.
func ParseSearchBody(body []byte) (*Result, error) {
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse europepmc response: %w", err)
	}
	if len(resp.ResultList.Result) == 0 {
		return nil, nil
	}
	hit := resp.ResultList.Result[0]
	return &Result{
		Abstract:     strings.TrimSpace(hit.AbstractText),
		FullTextURLs: hit.FullTextURLList.FullTextURL,
	}, nil
}

// PDFURL returns the first open-access PDF location, or "".
func (r *Result) PDFURL() string {
	return r.fullTextByStyle("pdf")
}

// HTMLURL returns the first open-access HTML location, or "".
func (r *Result) HTMLURL() string {
	return r.fullTextByStyle("html")
}

// Only locations flagged "Open access" qualify; subscription and
// free-to-read listings are skipped.
func (r *Result) fullTextByStyle(style string) string {
	for _, ft := range r.FullTextURLs {
		if strings.EqualFold(ft.DocumentType, style) && strings.EqualFold(ft.Availability, "Open access") {
			return ft.URL
		}
	}
	return ""
}

// RequestURL returns the URL SearchByDOI would fetch.
func (c *Client) RequestURL(doiNorm string) string {
	q := url.Values{}
	q.Set("query", "DOI:"+doiNorm)
	q.Set("format", "json")
	return fmt.Sprintf("%s/search?%s", baseURL, q.Encode())
}
