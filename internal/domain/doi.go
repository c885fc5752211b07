package domain

import "strings"

// doiURLPrefixes are stripped from raw DOI values before normalization.
var doiURLPrefixes = []string{
	"https://doi.org/",
	"https://dx.doi.org/",
	"http://doi.org/",
	"http://dx.doi.org/",
	"doi.org/",
	"doi:",
}

// NormalizeDOI converts a raw DOI to its canonical form: trimmed,
// lowercase, stripped of URL scheme and host. arXiv shorthand
// ("arxiv:2103.12345") maps into the arXiv DOI namespace. Returns ""
// for values that carry no DOI.
func NormalizeDOI(raw string) string {
	doi := strings.TrimSpace(raw)
	if doi == "" {
		return ""
	}
	doi = strings.ToLower(doi)
	for _, prefix := range doiURLPrefixes {
		if strings.HasPrefix(doi, prefix) {
			doi = doi[len(prefix):]
			break
		}
	}
	if id, ok := strings.CutPrefix(doi, "arxiv:"); ok {
		doi = "10.48550/arxiv." + strings.TrimSpace(id)
	}
	return strings.TrimSpace(doi)
}

// Preprint DOI namespaces.
const (
	doiPrefixBiorxiv      = "10.1101/"    // bioRxiv and medRxiv share this prefix
	doiPrefixPreprintsOrg = "10.20944/"   // Preprints.org
	doiPrefixArxiv        = "10.48550/"   // arXiv DataCite DOIs
)

// Preprint platform tags.
const (
	PreprintSourceArxiv     = "arxiv"
	PreprintSourceBiorxiv   = "biorxiv"
	PreprintSourceMedrxiv   = "medrxiv"
	PreprintSourcePreprints = "preprints.org"
)

// DetectPreprintSource inspects a record's identifiers and venue and
// returns the preprint platform tag, or "" when the record does not look
// like a preprint.
func DetectPreprintSource(a *ResearchArticle) string {
	if a.ArxivID != "" {
		return PreprintSourceArxiv
	}
	if doi := a.DOINorm; doi != "" {
		switch {
		case strings.HasPrefix(doi, doiPrefixArxiv):
			return PreprintSourceArxiv
		case strings.HasPrefix(doi, doiPrefixBiorxiv):
			// The prefix is shared; the venue title disambiguates medRxiv.
			if strings.Contains(strings.ToLower(a.SourceTitle), "medrxiv") {
				return PreprintSourceMedrxiv
			}
			return PreprintSourceBiorxiv
		case strings.HasPrefix(doi, doiPrefixPreprintsOrg):
			return PreprintSourcePreprints
		}
	}
	venue := strings.ToLower(a.SourceTitle)
	switch {
	case strings.Contains(venue, "arxiv"):
		return PreprintSourceArxiv
	case strings.Contains(venue, "medrxiv"):
		return PreprintSourceMedrxiv
	case strings.Contains(venue, "biorxiv"):
		return PreprintSourceBiorxiv
	case strings.Contains(venue, "preprints.org"), venue == "preprints":
		return PreprintSourcePreprints
	}
	return ""
}
