package domain

import (
	"encoding/json"
	"time"
)

// ResearchArticle is the canonical work tracked by the pipeline.
// DOINorm is the normalized DOI and is unique when present.
type ResearchArticle struct {
	ID                        int64           `json:"id"`
	Title                     string          `json:"title"`
	DOIRaw                    string          `json:"doi_raw,omitempty"`
	DOINorm                   string          `json:"doi_norm,omitempty"`
	PubDate                   string          `json:"pub_date,omitempty"`
	TotalCitations            *int64          `json:"total_citations,omitempty"`
	CitationsPerYear          *float64        `json:"citations_per_year,omitempty"`
	Authors                   string          `json:"authors,omitempty"`
	SourceTitle               string          `json:"source_title,omitempty"`
	ArxivID                   string          `json:"arxiv_id,omitempty"`
	IsPreprint                bool            `json:"is_preprint"`
	PreprintSource            string          `json:"preprint_source,omitempty"`
	Abstract                  string          `json:"abstract,omitempty"`
	AbstractSource            string          `json:"abstract_source,omitempty"`
	AbstractNoRetrievalReason string          `json:"abstract_no_retrieval_reason,omitempty"`
	OAStatus                  string          `json:"oa_status,omitempty"`
	IsOA                      bool            `json:"is_oa"`
	License                   string          `json:"license,omitempty"`
	OAPDFURL                  string          `json:"oa_pdf_url,omitempty"`
	ManualURLPublisher        string          `json:"manual_url_publisher,omitempty"`
	ManualURLRepository       string          `json:"manual_url_repository,omitempty"`
	Provenance                json.RawMessage `json:"provenance,omitempty"`
	ImportDatetime            time.Time       `json:"import_datetime"`
	EnrichmentDatetime        *time.Time      `json:"enrichment_datetime,omitempty"`
}

// HasAbstract reports whether the record already carries a non-empty abstract.
func (a *ResearchArticle) HasAbstract() bool {
	return a.Abstract != ""
}

// ProvenanceEntry records where one piece of metadata came from.
// Raw holds the source's payload verbatim so future readers can
// tolerate fields we don't model yet.
type ProvenanceEntry struct {
	Source    string          `json:"source"`
	URL       string          `json:"url,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Raw       json.RawMessage `json:"raw,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// ProvenanceMap keys provenance entries by source tag.
type ProvenanceMap map[string]ProvenanceEntry

// MergeProvenance overlays entries onto the article's stored provenance blob.
// Existing sources are overwritten by newer entries.
func (a *ResearchArticle) MergeProvenance(entries ProvenanceMap) error {
	merged := ProvenanceMap{}
	if len(a.Provenance) > 0 {
		if err := json.Unmarshal(a.Provenance, &merged); err != nil {
			// Unreadable old blob: start fresh rather than lose the new entries.
			merged = ProvenanceMap{}
		}
	}
	for src, e := range entries {
		merged[src] = e
	}
	raw, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	a.Provenance = raw
	return nil
}

// ArticleVersionLink relates a preprint record to its published version.
type ArticleVersionLink struct {
	ID              int64     `json:"id"`
	PreprintID      int64     `json:"preprint_id"`
	PublishedID     int64     `json:"published_id"`
	DiscoverySource string    `json:"discovery_source"`
	LinkDatetime    time.Time `json:"link_datetime"`
}
