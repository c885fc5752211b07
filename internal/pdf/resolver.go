// Package pdf resolves and downloads Open Access PDFs for matched
// records. Resolution is pure bookkeeping over already-enriched data;
// only the downloader touches the network.
package pdf

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/scholarpipe/backend/internal/domain"
	"github.com/scholarpipe/backend/pkg/arxiv"
	"github.com/scholarpipe/backend/pkg/biorxiv"
	"github.com/scholarpipe/backend/pkg/europepmc"
)

// Candidate source tags. The downloader keys its header policy off these.
const (
	SourceArxiv            = "arxiv"
	SourceBiorxiv          = "biorxiv"
	SourceMedrxiv          = "medrxiv"
	SourcePreprintsOrg     = "preprints.org"
	SourceEuropePMC        = "europepmc"
	SourceUnpaywall        = "unpaywall"
	SourceManualRepository = "manual_repository"
	SourceManualPublisher  = "manual_publisher"
)

// Resolver turns an enriched record into a ranked candidate list.
// Ranking prefers repository and preprint-server copies over aggregator
// links, with manually curated URLs as the tail. No network I/O happens
// here: aggregator locations are re-read from the provenance captured
// during enrichment.
type Resolver struct{}

func NewResolver() *Resolver { return &Resolver{} }

// Resolve builds the deduplicated, ranked candidate list for one record.
func (r *Resolver) Resolve(a *domain.ResearchArticle) []domain.PDFCandidate {
	var candidates []domain.PDFCandidate

	candidates = append(candidates, r.platformCandidates(a)...)

	if u := r.europePMCPDF(a); u != "" {
		candidates = append(candidates, domain.PDFCandidate{URL: u, Source: SourceEuropePMC})
	}
	if a.OAPDFURL != "" {
		candidates = append(candidates, domain.PDFCandidate{
			URL:     a.OAPDFURL,
			Source:  SourceUnpaywall,
			License: a.License,
		})
	}
	if a.ManualURLRepository != "" {
		candidates = append(candidates, domain.PDFCandidate{URL: a.ManualURLRepository, Source: SourceManualRepository})
	}
	if a.ManualURLPublisher != "" {
		candidates = append(candidates, domain.PDFCandidate{URL: a.ManualURLPublisher, Source: SourceManualPublisher})
	}

	return dedupeCandidates(candidates)
}

func (r *Resolver) platformCandidates(a *domain.ResearchArticle) []domain.PDFCandidate {
	switch a.PreprintSource {
	case domain.PreprintSourceArxiv:
		id := a.ArxivID
		if id == "" {
			id = arxiv.ExtractArxivIDFromDOI(a.DOINorm)
		}
		if id != "" {
			return []domain.PDFCandidate{{
				URL:    "https://arxiv.org/pdf/" + id + ".pdf",
				Source: SourceArxiv,
			}}
		}
	case domain.PreprintSourceBiorxiv:
		if a.DOINorm != "" {
			return []domain.PDFCandidate{{
				URL:    biorxiv.PDFURL(biorxiv.ServerBiorxiv, a.DOINorm),
				Source: SourceBiorxiv,
			}}
		}
	case domain.PreprintSourceMedrxiv:
		if a.DOINorm != "" {
			return []domain.PDFCandidate{{
				URL:    biorxiv.PDFURL(biorxiv.ServerMedrxiv, a.DOINorm),
				Source: SourceMedrxiv,
			}}
		}
	case domain.PreprintSourcePreprints:
		if u := preprintsOrgPDFURL(a.DOINorm); u != "" {
			return []domain.PDFCandidate{{URL: u, Source: SourcePreprintsOrg}}
		}
	}
	return nil
}

// europePMCPDF re-reads the Europe PMC payload stored in the record's
// provenance, if any, and returns its open-access PDF location.
func (r *Resolver) europePMCPDF(a *domain.ResearchArticle) string {
	raw := provenanceRaw(a, "europepmc")
	if raw == nil {
		return ""
	}
	result, err := europepmc.ParseSearchBody(raw)
	if err != nil || result == nil {
		return ""
	}
	return result.PDFURL()
}

func provenanceRaw(a *domain.ResearchArticle, source string) json.RawMessage {
	if len(a.Provenance) == 0 {
		return nil
	}
	var m domain.ProvenanceMap
	if err := json.Unmarshal(a.Provenance, &m); err != nil {
		return nil
	}
	entry, ok := m[source]
	if !ok || entry.Error != "" {
		return nil
	}
	return entry.Raw
}

// preprintsOrgPDFURL derives the download location from a Preprints.org
// DOI, e.g. "10.20944/preprints202301.0123.v1" ->
// "https://www.preprints.org/manuscript/202301.0123/v1/download".
func preprintsOrgPDFURL(doiNorm string) string {
	const prefix = "10.20944/preprints"
	if !strings.HasPrefix(doiNorm, prefix) {
		return ""
	}
	rest := doiNorm[len(prefix):]
	idx := strings.LastIndex(rest, ".v")
	if idx <= 0 {
		return ""
	}
	manuscript, version := rest[:idx], rest[idx+1:]
	return "https://www.preprints.org/manuscript/" + manuscript + "/" + version + "/download"
}

// PreprintsOrgLandingURL is the page the download URL hangs off; the
// downloader sends it as the Referer.
func PreprintsOrgLandingURL(pdfURL string) string {
	return strings.TrimSuffix(pdfURL, "/download")
}

// dedupeCandidates drops later candidates whose normalized URL already
// appeared, preserving rank order.
func dedupeCandidates(candidates []domain.PDFCandidate) []domain.PDFCandidate {
	seen := make(map[string]struct{}, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		key := normalizeURL(c.URL)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

// normalizeURL lowercases the scheme and host and strips one trailing
// slash, so trivially different spellings of one location collapse.
func normalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	s := u.String()
	return strings.TrimSuffix(s, "/")
}
