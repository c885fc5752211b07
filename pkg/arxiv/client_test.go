package arxiv

import (
	"encoding/xml"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractArxivID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://arxiv.org/abs/2301.00001v1", "2301.00001"},
		{"http://arxiv.org/abs/2301.00001", "2301.00001"},
		{"http://arxiv.org/abs/2301.00001v12", "2301.00001"},
		{"https://arxiv.org/abs/cond-mat/0112334v2", "cond-mat/0112334"},
		{"not a url", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractArxivID(tt.in), "input %q", tt.in)
	}
}

func TestExtractArxivIDFromDOI(t *testing.T) {
	assert.Equal(t, "2103.12345", ExtractArxivIDFromDOI("10.48550/arxiv.2103.12345"))
	assert.Equal(t, "2103.12345", ExtractArxivIDFromDOI("10.48550/arXiv.2103.12345v2"))
	assert.Equal(t, "", ExtractArxivIDFromDOI("10.1101/2023.01.01.522222"))
	assert.Equal(t, "", ExtractArxivIDFromDOI(""))
}

const atomFixture = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <entry>
    <id>http://arxiv.org/abs/2103.12345v2</id>
    <title> Attention Is Not All You Need </title>
    <summary> We revisit the role of attention. </summary>
    <published>2021-03-22T17:59:59Z</published>
    <arxiv:journal_ref>JMLR 23 (2022)</arxiv:journal_ref>
    <link title="doi" href="https://doi.org/10.1000/jmlr.2022.1" rel="related"/>
    <link title="pdf" href="http://arxiv.org/pdf/2103.12345v2" rel="related" type="application/pdf"/>
  </entry>
</feed>`

func TestEntryToPreprint(t *testing.T) {
	var feed Feed
	require.NoError(t, xml.Unmarshal([]byte(atomFixture), &feed))
	require.Len(t, feed.Entries, 1)

	p := entryToPreprint(&feed.Entries[0])
	require.NotNil(t, p)
	assert.Equal(t, "2103.12345", p.ArxivID)
	assert.Equal(t, "Attention Is Not All You Need", p.Title)
	assert.Equal(t, "We revisit the role of attention.", p.Abstract)
	assert.Equal(t, "10.1000/jmlr.2022.1", p.PublishedDOI)
	assert.Equal(t, "JMLR 23 (2022)", p.JournalRef)
	assert.Equal(t, "http://arxiv.org/pdf/2103.12345v2", p.PDFURL)
}
