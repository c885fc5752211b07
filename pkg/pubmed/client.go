// Package pubmed fetches abstracts through the NCBI E-utilities
// (ESearch to map a DOI to a PMID, then EFetch for the article XML).
package pubmed

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"

	"github.com/scholarpipe/backend/internal/httpx"
)

const (
	esearchURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/esearch.fcgi"
	efetchURL  = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/efetch.fcgi"
)

type Client struct {
	httpClient *httpx.Client
}

func NewClient(httpClient *httpx.Client) *Client {
	return &Client{httpClient: httpClient}
}

// ESearch response types
type eSearchResult struct {
	XMLName xml.Name `xml:"eSearchResult"`
	Count   int      `xml:"Count"`
	IDList  struct {
		IDs []string `xml:"Id"`
	} `xml:"IdList"`
}

// EFetch response types
type pubmedArticleSet struct {
	XMLName  xml.Name `xml:"PubmedArticleSet"`
	Articles []struct {
		MedlineCitation struct {
			PMID    string `xml:"PMID"`
			Article struct {
				ArticleTitle string `xml:"ArticleTitle"`
				Abstract     struct {
					AbstractTexts []abstractText `xml:"AbstractText"`
				} `xml:"Abstract"`
			} `xml:"Article"`
		} `xml:"MedlineCitation"`
	} `xml:"PubmedArticle"`
}

type abstractText struct {
	Label string `xml:"Label,attr"`
	Text  string `xml:",chardata"`
}

// Result is the normalized PubMed record for one DOI.
type Result struct {
	PMID     string
	Title    string
	Abstract string
}

// GetAbstractByDOI resolves a normalized DOI to a PMID via ESearch and
// fetches the abstract via EFetch. raw is the EFetch XML payload for
// provenance. A nil Result with nil error means no PMID matched.
func (c *Client) GetAbstractByDOI(ctx context.Context, doiNorm string) (*Result, []byte, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", doiNorm+"[AID]")

	searchBody, err := c.httpClient.GetBody(ctx, esearchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("pubmed esearch failed: %w", err)
	}

	var search eSearchResult
	if err := xml.Unmarshal(searchBody, &search); err != nil {
		return nil, searchBody, fmt.Errorf("failed to parse esearch response: %w", err)
	}
	if len(search.IDList.IDs) == 0 {
		return nil, searchBody, nil
	}
	pmid := search.IDList.IDs[0]

	fetchParams := url.Values{}
	fetchParams.Set("db", "pubmed")
	fetchParams.Set("id", pmid)
	fetchParams.Set("retmode", "xml")

	fetchBody, err := c.httpClient.GetBody(ctx, efetchURL+"?"+fetchParams.Encode(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("pubmed efetch failed: %w", err)
	}

	var set pubmedArticleSet
	if err := xml.Unmarshal(fetchBody, &set); err != nil {
		return nil, fetchBody, fmt.Errorf("failed to parse efetch response: %w", err)
	}
	if len(set.Articles) == 0 {
		return &Result{PMID: pmid}, fetchBody, nil
	}

	article := set.Articles[0].MedlineCitation.Article
	return &Result{
		PMID:     pmid,
		Title:    strings.TrimSpace(article.ArticleTitle),
		Abstract: joinAbstract(article.Abstract.AbstractTexts),
	}, fetchBody, nil
}

// RequestURL returns the ESearch URL for a DOI, for provenance records.
func (c *Client) RequestURL(doiNorm string) string {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", doiNorm+"[AID]")
	return esearchURL + "?" + params.Encode()
}

// joinAbstract concatenates structured abstract sections, keeping the
// section labels PubMed provides (Background, Methods, ...).
func joinAbstract(sections []abstractText) string {
	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		if s.Label != "" {
			text = s.Label + ": " + text
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, " ")
}
