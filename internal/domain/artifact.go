package domain

import "time"

// PDFDownload status taxonomy. The literal strings are part of the
// external contract and appear in aggregation queries.
const (
	DownloadStatusDownloaded   = "downloaded"
	DownloadStatusUnavailable  = "unavailable"
	DownloadStatusTooLarge     = "too_large"
	DownloadStatusNoCandidates = "no_candidates"
	DownloadStatusError        = "error"
)

// PDFCandidate is a (url, source) pair the resolver believes may yield a
// downloadable PDF.
type PDFCandidate struct {
	URL     string `json:"url"`
	Source  string `json:"source"`
	License string `json:"license,omitempty"`
}

// PDFResolution snapshots the candidates considered for a record.
type PDFResolution struct {
	ID               int64          `json:"id"`
	ArticleID        int64          `json:"article_id"`
	FilteringQueryID *int64         `json:"filtering_query_id,omitempty"`
	Timestamp        time.Time      `json:"timestamp"`
	Candidates       []PDFCandidate `json:"candidates"`
}

// PDFDownload is one download attempt for one candidate URL.
type PDFDownload struct {
	ID               int64     `json:"id"`
	ArticleID        int64     `json:"article_id"`
	FilteringQueryID *int64    `json:"filtering_query_id,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
	URL              string    `json:"url,omitempty"`
	Source           string    `json:"source,omitempty"`
	Status           string    `json:"status"`
	LocalPath        string    `json:"pdf_local_path,omitempty"`
	SHA1             string    `json:"sha1,omitempty"`
	FinalURL         string    `json:"final_url,omitempty"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	FileSizeBytes    *int64    `json:"file_size_bytes,omitempty"`
}

// DocxVersion is a located DOCX artifact for a record.
type DocxVersion struct {
	ID                int64     `json:"id"`
	ArticleID         int64     `json:"article_id"`
	LocalPath         string    `json:"docx_local_path,omitempty"`
	RetrievedDatetime time.Time `json:"retrieved_datetime"`
	FileSizeBytes     *int64    `json:"file_size_bytes,omitempty"`
	ErrorMessage      string    `json:"error_message,omitempty"`
}

// HTMLVersion is a downloaded OA HTML full text for a record.
type HTMLVersion struct {
	ID                int64     `json:"id"`
	ArticleID         int64     `json:"article_id"`
	URL               string    `json:"url,omitempty"`
	LocalPath         string    `json:"html_local_path,omitempty"`
	RetrievedDatetime time.Time `json:"retrieved_datetime"`
	FileSizeBytes     *int64    `json:"file_size_bytes,omitempty"`
	ErrorMessage      string    `json:"error_message,omitempty"`
}

// Markdown conversion flavors.
const (
	MarkdownVariantNoImages   = "no_images"
	MarkdownVariantWithImages = "with_images"
)

// Markdown source types.
const (
	MarkdownSourceDocx = "docx"
	MarkdownSourceHTML = "html"
)

// MarkdownVersion is a converted Markdown artifact. Exactly one of
// DocxVersionID / HTMLVersionID is set, matching SourceType.
type MarkdownVersion struct {
	ID              int64     `json:"id"`
	ArticleID       int64     `json:"article_id"`
	SourceType      string    `json:"source_type"`
	DocxVersionID   *int64    `json:"docx_version_id,omitempty"`
	HTMLVersionID   *int64    `json:"html_version_id,omitempty"`
	Variant         string    `json:"variant"`
	LocalPath       string    `json:"markdown_local_path,omitempty"`
	CreatedDatetime time.Time `json:"created_datetime"`
	FileSizeBytes   *int64    `json:"file_size_bytes,omitempty"`
	ErrorMessage    string    `json:"error_message,omitempty"`
}

// Valid reports whether the version satisfies the one-source invariant.
func (m *MarkdownVersion) Valid() bool {
	switch m.SourceType {
	case MarkdownSourceDocx:
		return m.DocxVersionID != nil && m.HTMLVersionID == nil
	case MarkdownSourceHTML:
		return m.HTMLVersionID != nil && m.DocxVersionID == nil
	}
	return false
}
