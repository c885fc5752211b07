package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDOI(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
		{"plain doi", "10.1000/xyz123", "10.1000/xyz123"},
		{"uppercase", "10.1000/XYZ123", "10.1000/xyz123"},
		{"https url", "https://doi.org/10.1000/xyz123", "10.1000/xyz123"},
		{"dx url", "http://dx.doi.org/10.1000/xyz123", "10.1000/xyz123"},
		{"bare host", "doi.org/10.1000/xyz123", "10.1000/xyz123"},
		{"doi scheme", "doi:10.1000/xyz123", "10.1000/xyz123"},
		{"surrounding whitespace", "  10.1000/xyz123  ", "10.1000/xyz123"},
		{"arxiv shorthand", "arXiv:2103.12345", "10.48550/arxiv.2103.12345"},
		{"arxiv doi stays lowercase", "10.48550/arXiv.2103.12345", "10.48550/arxiv.2103.12345"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDOI(tt.raw))
		})
	}
}

func TestDetectPreprintSource(t *testing.T) {
	tests := []struct {
		name string
		a    ResearchArticle
		want string
	}{
		{"arxiv id wins", ResearchArticle{ArxivID: "2103.12345"}, PreprintSourceArxiv},
		{"arxiv doi namespace", ResearchArticle{DOINorm: "10.48550/arxiv.2103.12345"}, PreprintSourceArxiv},
		{"biorxiv prefix", ResearchArticle{DOINorm: "10.1101/2023.01.01.522222"}, PreprintSourceBiorxiv},
		{
			"shared prefix with medrxiv venue",
			ResearchArticle{DOINorm: "10.1101/2023.01.01.522222", SourceTitle: "medRxiv"},
			PreprintSourceMedrxiv,
		},
		{"preprints.org prefix", ResearchArticle{DOINorm: "10.20944/preprints202301.0123.v1"}, PreprintSourcePreprints},
		{"venue fallback arxiv", ResearchArticle{SourceTitle: "arXiv e-prints"}, PreprintSourceArxiv},
		{"venue fallback biorxiv", ResearchArticle{SourceTitle: "bioRxiv"}, PreprintSourceBiorxiv},
		{"published journal", ResearchArticle{DOINorm: "10.1038/s41586-021-01234-5", SourceTitle: "Nature"}, ""},
		{"no identifiers", ResearchArticle{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectPreprintSource(&tt.a))
		})
	}
}
