// Package arxiv queries the arXiv Atom API for preprint metadata.
package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/scholarpipe/backend/internal/httpx"
)

const baseURL = "https://export.arxiv.org/api/query"

type Client struct {
	httpClient *httpx.Client
}

func NewClient(httpClient *httpx.Client) *Client {
	return &Client{httpClient: httpClient}
}

// Feed represents the arXiv Atom feed response
type Feed struct {
	XMLName xml.Name `xml:"feed"`
	Entries []Entry  `xml:"entry"`
}

type Entry struct {
	ID         string `xml:"id"`
	Title      string `xml:"title"`
	Summary    string `xml:"summary"`
	Published  string `xml:"published"`
	DOI        string `xml:"http://arxiv.org/schemas/atom doi"`
	JournalRef string `xml:"http://arxiv.org/schemas/atom journal_ref"`
	Links      []Link `xml:"link"`
}

type Link struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
}

// Preprint is the normalized arXiv record. PublishedDOI is set when
// arXiv knows the DOI of the peer-reviewed version.
type Preprint struct {
	ArxivID      string
	Title        string
	Abstract     string
	Published    string
	PublishedDOI string
	JournalRef   string
	PDFURL       string
}

// GetByID fetches metadata for one arXiv identifier. raw is the Atom
// payload for provenance. A nil Preprint with nil error means the id is
// unknown.
func (c *Client) GetByID(ctx context.Context, arxivID string) (*Preprint, []byte, error) {
	reqURL := c.RequestURL(arxivID)

	body, err := c.httpClient.GetBody(ctx, reqURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("arxiv API request failed: %w", err)
	}

	var feed Feed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, body, fmt.Errorf("failed to parse arxiv response: %w", err)
	}
	if len(feed.Entries) == 0 {
		return nil, body, nil
	}
	return entryToPreprint(&feed.Entries[0]), body, nil
}

// RequestURL returns the URL GetByID would fetch.
func (c *Client) RequestURL(arxivID string) string {
	params := url.Values{}
	params.Set("id_list", arxivID)
	return fmt.Sprintf("%s?%s", baseURL, params.Encode())
}

func entryToPreprint(entry *Entry) *Preprint {
	arxivID := ExtractArxivID(entry.ID)
	if arxivID == "" {
		return nil
	}

	p := &Preprint{
		ArxivID:   arxivID,
		Title:     strings.TrimSpace(entry.Title),
		Abstract:  strings.TrimSpace(entry.Summary),
		Published: entry.Published,
		PDFURL:    fmt.Sprintf("https://arxiv.org/pdf/%s.pdf", arxivID),
	}
	if entry.JournalRef != "" {
		p.JournalRef = strings.TrimSpace(entry.JournalRef)
	}

	// The published DOI appears as a link titled "doi"; newer feeds also
	// carry an <arxiv:doi> element.
	for _, link := range entry.Links {
		switch {
		case link.Title == "doi":
			p.PublishedDOI = strings.TrimPrefix(strings.TrimPrefix(link.Href, "https://doi.org/"), "http://dx.doi.org/")
		case link.Title == "pdf" || link.Type == "application/pdf":
			p.PDFURL = link.Href
		}
	}
	if p.PublishedDOI == "" && entry.DOI != "" {
		p.PublishedDOI = strings.TrimSpace(entry.DOI)
	}
	return p
}

var arxivIDPattern = regexp.MustCompile(`(\d{4}\.\d{4,5})(v\d+)?`)

// ExtractArxivIDFromDOI pulls a modern arXiv identifier out of an arXiv
// DOI or "arxiv:" shorthand, e.g. "10.48550/arxiv.2103.12345" -> "2103.12345".
func ExtractArxivIDFromDOI(doiNorm string) string {
	lower := strings.ToLower(doiNorm)
	if !strings.Contains(lower, "arxiv") {
		return ""
	}
	if m := arxivIDPattern.FindStringSubmatch(lower); m != nil {
		return m[1]
	}
	return ""
}

// ExtractArxivID extracts the bare identifier from an abs URL.
// e.g., "http://arxiv.org/abs/2301.00001v1" -> "2301.00001"
func ExtractArxivID(fullURL string) string {
	parts := strings.Split(fullURL, "/abs/")
	if len(parts) != 2 {
		return ""
	}
	id := strings.TrimRight(parts[1], "/")
	// Remove version suffix
	if idx := strings.LastIndex(id, "v"); idx > 0 {
		versionPart := id[idx+1:]
		isVersion := len(versionPart) > 0
		for _, c := range versionPart {
			if c < '0' || c > '9' {
				isVersion = false
				break
			}
		}
		if isVersion {
			id = id[:idx]
		}
	}
	return id
}
