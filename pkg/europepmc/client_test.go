package europepmc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchFixture = `{
  "resultList": {
    "result": [
      {
        "abstractText": "  A study of rice blast resistance.  ",
        "fullTextUrlList": {
          "fullTextUrl": [
            {"url": "https://paywalled.example/full", "documentStyle": "html", "availability": "Subscription required", "site": "publisher"},
            {"url": "https://europepmc.org/articles/PMC1/pdf", "documentStyle": "pdf", "availability": "Open access", "site": "Europe_PMC"},
            {"url": "https://europepmc.org/articles/PMC1", "documentStyle": "html", "availability": "Open access", "site": "Europe_PMC"}
          ]
        }
      }
    ]
  }
}`

func TestParseSearchBody(t *testing.T) {
	result, err := ParseSearchBody([]byte(searchFixture))
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "A study of rice blast resistance.", result.Abstract)
	// Open access locations win over subscription ones of the same style.
	assert.Equal(t, "https://europepmc.org/articles/PMC1/pdf", result.PDFURL())
	assert.Equal(t, "https://europepmc.org/articles/PMC1", result.HTMLURL())
}

func TestParseSearchBodyNoHits(t *testing.T) {
	result, err := ParseSearchBody([]byte(`{"resultList":{"result":[]}}`))
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestFullTextSkipsNonOpenAccess(t *testing.T) {
	result := &Result{FullTextURLs: []FullTextURL{
		{URL: "https://publisher.example/paper.pdf", DocumentType: "pdf", Availability: "Free"},
		{URL: "https://publisher.example/full", DocumentType: "html", Availability: "Subscription required"},
	}}
	assert.Equal(t, "", result.PDFURL())
	assert.Equal(t, "", result.HTMLURL())
}
