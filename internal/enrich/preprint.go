package enrich

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/phuslu/log"

	"github.com/scholarpipe/backend/internal/domain"
	"github.com/scholarpipe/backend/internal/ratelimit"
	"github.com/scholarpipe/backend/internal/store"
	"github.com/scholarpipe/backend/pkg/arxiv"
	"github.com/scholarpipe/backend/pkg/biorxiv"
)

// platformRecord is the platform-agnostic view of a preprint server's
// answer for one record.
type platformRecord struct {
	abstract     string
	publishedDOI string
	url          string
	raw          []byte
}

// PreprintReport summarizes what preprint processing did for one record.
type PreprintReport struct {
	Provenance       domain.ProvenanceMap
	PublishedDOI     string
	PublishedID      int64
	CreatedPublished bool
}

// PreprintEnricher resolves preprint records against their hosting
// platform: it backfills the abstract when the platform carries one and
// discovers the DOI of the peer-reviewed version, creating and linking a
// published record when one is announced.
type PreprintEnricher struct {
	clients *Clients
	limiter *ratelimit.Table
	repo    domain.ArticleRepository
}

func NewPreprintEnricher(clients *Clients, limiter *ratelimit.Table, repo domain.ArticleRepository) *PreprintEnricher {
	return &PreprintEnricher{clients: clients, limiter: limiter, repo: repo}
}

// Process handles one preprint record. It mutates the record's Abstract
// (when the platform supplies one and the record has none) and returns a
// report with provenance. Records that are not preprints come back with
// a nil report.
func (p *PreprintEnricher) Process(ctx context.Context, a *domain.ResearchArticle) (*PreprintReport, error) {
	src := a.PreprintSource
	if src == "" {
		src = domain.DetectPreprintSource(a)
	}
	if src == "" {
		return nil, nil
	}
	a.PreprintSource = src
	a.IsPreprint = true

	if err := p.limiter.Wait(ctx, rateKeyFor(src)); err != nil {
		return nil, err
	}

	report := &PreprintReport{Provenance: domain.ProvenanceMap{}}
	entry := domain.ProvenanceEntry{Source: src, Timestamp: time.Now().UTC()}

	rec, err := p.fetchPlatform(ctx, src, a)
	if err != nil {
		entry.Error = err.Error()
		report.Provenance[src] = entry
		return report, fmt.Errorf("preprint lookup (%s): %w", src, err)
	}
	if rec != nil {
		entry.URL = rec.url
		entry.Raw = rec.raw
	}
	report.Provenance[src] = entry
	if rec == nil {
		return report, nil
	}

	if !a.HasAbstract() && rec.abstract != "" {
		a.Abstract = rec.abstract
		a.AbstractSource = src
	}

	if err := p.resolvePublished(ctx, a, rec.publishedDOI, report); err != nil {
		return report, err
	}
	return report, nil
}

// resolvePublished handles an announced published DOI: it finds or
// creates the published record and links the two versions. Already
// linked pairs are left alone.
func (p *PreprintEnricher) resolvePublished(ctx context.Context, a *domain.ResearchArticle, announcedDOI string, report *PreprintReport) error {
	publishedDOI := domain.NormalizeDOI(announcedDOI)
	if publishedDOI == "" || publishedDOI == a.DOINorm {
		return nil
	}
	report.PublishedDOI = publishedDOI

	publishedID, created, err := p.ensurePublishedRecord(ctx, a, publishedDOI)
	if err != nil {
		return err
	}
	report.PublishedID = publishedID
	report.CreatedPublished = created

	linked, err := p.repo.HasArticleVersionLink(ctx, a.ID, publishedID)
	if err != nil {
		return fmt.Errorf("check version link: %w", err)
	}
	if linked {
		return nil
	}

	link := &domain.ArticleVersionLink{
		PreprintID:      a.ID,
		PublishedID:     publishedID,
		DiscoverySource: a.PreprintSource,
		LinkDatetime:    time.Now().UTC(),
	}
	if err := p.repo.InsertArticleVersionLink(ctx, link); err != nil {
		return fmt.Errorf("link versions: %w", err)
	}
	log.Info().
		Int64("preprint_id", a.ID).
		Int64("published_id", publishedID).
		Str("published_doi", publishedDOI).
		Str("source", a.PreprintSource).
		Bool("created", created).
		Msg("preprint linked to published version")
	return nil
}

func (p *PreprintEnricher) fetchPlatform(ctx context.Context, src string, a *domain.ResearchArticle) (*platformRecord, error) {
	switch src {
	case domain.PreprintSourceArxiv:
		id := a.ArxivID
		if id == "" {
			id = arxiv.ExtractArxivIDFromDOI(a.DOINorm)
		}
		if id == "" {
			return nil, fmt.Errorf("no arxiv id on record")
		}
		a.ArxivID = id
		pre, raw, err := p.clients.Arxiv.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if pre == nil {
			return &platformRecord{url: p.clients.Arxiv.RequestURL(id), raw: raw}, nil
		}
		return &platformRecord{
			abstract:     pre.Abstract,
			publishedDOI: pre.PublishedDOI,
			url:          p.clients.Arxiv.RequestURL(id),
			raw:          raw,
		}, nil

	case domain.PreprintSourceBiorxiv, domain.PreprintSourceMedrxiv:
		server := biorxiv.ServerBiorxiv
		if src == domain.PreprintSourceMedrxiv {
			server = biorxiv.ServerMedrxiv
		}
		pre, raw, err := p.clients.Biorxiv.GetByDOI(ctx, server, a.DOINorm)
		if err != nil {
			return nil, err
		}
		url := p.clients.Biorxiv.RequestURL(server, a.DOINorm)
		if pre == nil {
			return &platformRecord{url: url, raw: raw}, nil
		}
		return &platformRecord{
			abstract:     pre.Abstract,
			publishedDOI: pre.PublishedDOI,
			url:          url,
			raw:          raw,
		}, nil

	case domain.PreprintSourcePreprints:
		man, raw, err := p.clients.PreprintsOrg.GetByDOI(ctx, a.DOINorm)
		if err != nil {
			return nil, err
		}
		url := p.clients.PreprintsOrg.RequestURL(a.DOINorm)
		if man == nil {
			return &platformRecord{url: url, raw: raw}, nil
		}
		return &platformRecord{
			abstract:     man.Abstract,
			publishedDOI: man.PublishedDOI,
			url:          url,
			raw:          raw,
		}, nil
	}
	return nil, fmt.Errorf("unknown preprint source %q", src)
}

// ensurePublishedRecord finds or creates the record for the published
// DOI. A created record inherits the preprint's descriptive metadata and
// stays un-enriched so the next pass fills in its own abstract and OA
// status.
func (p *PreprintEnricher) ensurePublishedRecord(ctx context.Context, preprint *domain.ResearchArticle, publishedDOI string) (int64, bool, error) {
	existing, err := p.repo.GetRecordByDOI(ctx, publishedDOI)
	if err == nil {
		return existing.ID, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return 0, false, fmt.Errorf("lookup published record: %w", err)
	}

	published := &domain.ResearchArticle{
		Title:          preprint.Title,
		DOIRaw:         publishedDOI,
		DOINorm:        publishedDOI,
		PubDate:        preprint.PubDate,
		Authors:        preprint.Authors,
		IsPreprint:     false,
		ImportDatetime: time.Now().UTC(),
	}
	id, inserted, err := p.repo.UpsertRecord(ctx, published)
	if err != nil {
		return 0, false, fmt.Errorf("create published record: %w", err)
	}
	return id, inserted, nil
}

func rateKeyFor(src string) string {
	if src == domain.PreprintSourceArxiv {
		return "arxiv"
	}
	return "preprints"
}
