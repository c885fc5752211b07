package convert

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/phuslu/log"

	"github.com/scholarpipe/backend/internal/domain"
)

var excessBlankLines = regexp.MustCompile(`\n{3,}`)

// HTMLService converts downloaded OA HTML full texts to Markdown and
// persists one MarkdownVersion row per conversion, successful or not.
type HTMLService struct {
	repo      domain.ArtifactRepository
	converter *md.Converter
	outDir    string
}

func NewHTMLService(repo domain.ArtifactRepository, outDir string) *HTMLService {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return &HTMLService{repo: repo, converter: converter, outDir: outDir}
}

// ConvertHTML converts one downloaded HTML version. The row is written
// even when conversion fails, carrying the error and no file size.
func (s *HTMLService) ConvertHTML(ctx context.Context, html *domain.HTMLVersion) (*domain.MarkdownVersion, error) {
	version := &domain.MarkdownVersion{
		ArticleID:       html.ArticleID,
		SourceType:      domain.MarkdownSourceHTML,
		HTMLVersionID:   &html.ID,
		Variant:         domain.MarkdownVariantNoImages,
		CreatedDatetime: time.Now().UTC(),
	}

	if err := s.convertFile(html.LocalPath, version); err != nil {
		version.ErrorMessage = err.Error()
		log.Warn().Int64("article_id", html.ArticleID).Str("path", html.LocalPath).Err(err).Msg("html conversion failed")
	} else {
		log.Info().Int64("article_id", html.ArticleID).Str("path", version.LocalPath).Msg("html converted")
	}

	id, err := s.repo.InsertMarkdownVersion(ctx, version)
	if err != nil {
		return nil, err
	}
	version.ID = id
	return version, nil
}

func (s *HTMLService) convertFile(htmlPath string, version *domain.MarkdownVersion) error {
	raw, err := os.ReadFile(htmlPath)
	if err != nil {
		return err
	}

	markdown, err := s.converter.ConvertString(string(raw))
	if err != nil {
		return err
	}
	markdown = strings.TrimSpace(excessBlankLines.ReplaceAllString(markdown, "\n\n")) + "\n"

	if err := os.MkdirAll(s.outDir, 0o755); err != nil {
		return err
	}
	stem := strings.TrimSuffix(filepath.Base(htmlPath), filepath.Ext(htmlPath))
	outPath := filepath.Join(s.outDir, stem+".md")
	if err := os.WriteFile(outPath, []byte(markdown), 0o644); err != nil {
		return err
	}

	version.LocalPath = outPath
	if info, err := os.Stat(outPath); err == nil {
		size := info.Size()
		version.FileSizeBytes = &size
	}
	return nil
}
