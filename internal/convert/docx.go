package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/phuslu/log"

	"github.com/scholarpipe/backend/internal/domain"
	"github.com/scholarpipe/backend/internal/store"
)

// DocxLocator finds the manually produced DOCX for a record in the
// configured directory. File names encode either the normalized DOI
// (with slashes flattened) or the SHA-1 of the record's downloaded PDF.
type DocxLocator struct {
	repo domain.ArtifactRepository
	dir  string
}

func NewDocxLocator(repo domain.ArtifactRepository, dir string) *DocxLocator {
	return &DocxLocator{repo: repo, dir: dir}
}

// Locate scans the DOCX directory for the record's file, records a
// DocxVersion row on a hit, and returns it. A miss is (nil, nil).
func (l *DocxLocator) Locate(ctx context.Context, a *domain.ResearchArticle) (*domain.DocxVersion, error) {
	keys := l.lookupKeys(ctx, a)
	if len(keys) == 0 {
		return nil, nil
	}

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".docx") {
			continue
		}
		name := strings.ToLower(entry.Name())
		for _, key := range keys {
			if !strings.Contains(name, key) {
				continue
			}
			path := filepath.Join(l.dir, entry.Name())
			info, err := entry.Info()
			if err != nil {
				return nil, err
			}
			size := info.Size()
			version := &domain.DocxVersion{
				ArticleID:         a.ID,
				LocalPath:         path,
				RetrievedDatetime: time.Now().UTC(),
				FileSizeBytes:     &size,
			}
			id, err := l.repo.InsertDocxVersion(ctx, version)
			if err != nil {
				return nil, err
			}
			version.ID = id
			log.Info().Int64("article_id", a.ID).Str("path", path).Msg("docx located")
			return version, nil
		}
	}
	return nil, nil
}

// lookupKeys returns the lowercase substrings a matching file name may
// carry: the flattened DOI and the SHA-1 of the latest downloaded PDF.
func (l *DocxLocator) lookupKeys(ctx context.Context, a *domain.ResearchArticle) []string {
	var keys []string
	if a.DOINorm != "" {
		keys = append(keys, strings.ToLower(strings.ReplaceAll(a.DOINorm, "/", "_")))
	}
	dl, err := l.repo.GetLatestDownloadedPDF(ctx, a.ID)
	if err == nil && dl.SHA1 != "" {
		keys = append(keys, strings.ToLower(dl.SHA1))
	} else if err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Warn().Int64("article_id", a.ID).Err(err).Msg("pdf lookup for docx keys failed")
	}
	return keys
}
