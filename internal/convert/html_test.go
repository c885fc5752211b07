package convert

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarpipe/backend/internal/domain"
)

func TestConvertHTML(t *testing.T) {
	dir := t.TempDir()
	htmlPath := filepath.Join(dir, "pmc1.html")
	require.NoError(t, os.WriteFile(htmlPath, []byte(
		`<html><body><h1>Results</h1><p>Yields rose by <strong>12%</strong>.</p></body></html>`,
	), 0o644))

	repo := &fakeArtifactRepo{}
	svc := NewHTMLService(repo, dir)

	v, err := svc.ConvertHTML(context.Background(), &domain.HTMLVersion{ID: 4, ArticleID: 9, LocalPath: htmlPath})
	require.NoError(t, err)
	require.NotNil(t, v)

	assert.Equal(t, domain.MarkdownSourceHTML, v.SourceType)
	require.NotNil(t, v.HTMLVersionID)
	assert.Equal(t, int64(4), *v.HTMLVersionID)
	assert.Empty(t, v.ErrorMessage)
	require.NotNil(t, v.FileSizeBytes)

	out, err := os.ReadFile(v.LocalPath)
	require.NoError(t, err)
	assert.Contains(t, string(out), "# Results")
	assert.Contains(t, string(out), "**12%**")
	assert.NotContains(t, string(out), "\n\n\n")
}

func TestConvertHTMLMissingFileRecordsError(t *testing.T) {
	repo := &fakeArtifactRepo{}
	svc := NewHTMLService(repo, t.TempDir())

	v, err := svc.ConvertHTML(context.Background(), &domain.HTMLVersion{
		ID: 1, ArticleID: 2, LocalPath: filepath.Join(t.TempDir(), "gone.html"),
	})
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.NotEmpty(t, v.ErrorMessage)
	assert.Empty(t, v.LocalPath)
	assert.Nil(t, v.FileSizeBytes)
	require.Len(t, repo.markdown, 1)
}
