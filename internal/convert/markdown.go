package convert

import (
	"context"
	"os"
	"time"

	"github.com/phuslu/log"

	"github.com/scholarpipe/backend/internal/domain"
)

// DocxService runs the two-variant DOCX conversion and persists one
// MarkdownVersion row per variant, successful or not.
type DocxService struct {
	repo      domain.ArtifactRepository
	converter Converter
	outDir    string
}

func NewDocxService(repo domain.ArtifactRepository, converter Converter, outDir string) *DocxService {
	return &DocxService{repo: repo, converter: converter, outDir: outDir}
}

// ConvertDocx converts one located DOCX twice, without and with image
// extraction. A converter failure for one variant still yields its row,
// with error_message set and no file size, and does not stop the other
// variant.
func (s *DocxService) ConvertDocx(ctx context.Context, docx *domain.DocxVersion) ([]*domain.MarkdownVersion, error) {
	variants := []struct {
		name          string
		extractImages bool
	}{
		{domain.MarkdownVariantNoImages, false},
		{domain.MarkdownVariantWithImages, true},
	}

	versions := make([]*domain.MarkdownVersion, 0, len(variants))
	for _, v := range variants {
		version := &domain.MarkdownVersion{
			ArticleID:       docx.ArticleID,
			SourceType:      domain.MarkdownSourceDocx,
			DocxVersionID:   &docx.ID,
			Variant:         v.name,
			CreatedDatetime: time.Now().UTC(),
		}

		outPath, err := s.converter.Convert(ctx, docx.LocalPath, s.outDir, v.extractImages)
		if err != nil {
			version.ErrorMessage = err.Error()
			log.Warn().
				Int64("article_id", docx.ArticleID).
				Str("variant", v.name).
				Err(err).
				Msg("docx conversion failed")
		} else {
			version.LocalPath = outPath
			if info, statErr := os.Stat(outPath); statErr == nil {
				size := info.Size()
				version.FileSizeBytes = &size
			}
			log.Info().
				Int64("article_id", docx.ArticleID).
				Str("variant", v.name).
				Str("path", outPath).
				Msg("docx converted")
		}

		id, err := s.repo.InsertMarkdownVersion(ctx, version)
		if err != nil {
			return versions, err
		}
		version.ID = id
		versions = append(versions, version)
	}
	return versions, nil
}
