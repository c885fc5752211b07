package enrich

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/phuslu/log"
	"golang.org/x/sync/errgroup"

	"github.com/scholarpipe/backend/internal/domain"
)

// Summary reports the outcome of one enrichment run across all passes.
type Summary struct {
	Passes     int
	Total      int
	Succeeded  int
	Failed     int
	NewRecords int
}

// The per-record stages the orchestrator sequences.
type preprintStage interface {
	Process(ctx context.Context, a *domain.ResearchArticle) (*PreprintReport, error)
}

type abstractStage interface {
	Run(ctx context.Context, a *domain.ResearchArticle) ([]string, domain.ProvenanceMap)
}

type oaStage interface {
	Enrich(ctx context.Context, a *domain.ResearchArticle) (domain.ProvenanceMap, error)
}

// Orchestrator drives enrichment over every record that still needs it.
// Discovering a published version can create new records mid-run, so it
// loops in passes until no un-enriched records remain or no pass creates
// new ones.
type Orchestrator struct {
	repo          domain.ArticleRepository
	preprints     preprintStage
	abstracts     abstractStage
	oa            oaStage
	maxConcurrent int
	maxPasses     int
	retryEmpty    bool
}

// Options tunes an enrichment run.
type Options struct {
	MaxConcurrent int
	MaxPasses     int
	// RetryEmpty re-opens previously enriched records that never got an
	// abstract before the first pass.
	RetryEmpty bool
}

// NewOrchestrator assembles an orchestrator from pre-built stages.
func NewOrchestrator(repo domain.ArticleRepository, preprints preprintStage, abstracts abstractStage, oa oaStage, opts Options) *Orchestrator {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 5
	}
	if opts.MaxPasses <= 0 {
		opts.MaxPasses = 2
	}
	return &Orchestrator{
		repo:          repo,
		preprints:     preprints,
		abstracts:     abstracts,
		oa:            oa,
		maxConcurrent: opts.MaxConcurrent,
		maxPasses:     opts.MaxPasses,
		retryEmpty:    opts.RetryEmpty,
	}
}

// Run enriches every record needing it. A record failure is recorded and
// logged, never fatal to the batch.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{}

	if o.retryEmpty {
		reopened, err := o.repo.ClearEnrichmentForEmpty(ctx)
		if err != nil {
			return nil, fmt.Errorf("reopen empty records: %w", err)
		}
		log.Info().Int64("reopened", reopened).Msg("abstract-less records reopened for retry")
	}

	for pass := 1; pass <= o.maxPasses; pass++ {
		records, err := o.repo.GetRecordsNeedingEnrichment(ctx)
		if err != nil {
			return nil, fmt.Errorf("load records for pass %d: %w", pass, err)
		}
		if len(records) == 0 {
			break
		}
		summary.Passes = pass

		log.Info().
			Int("pass", pass).
			Int("records", len(records)).
			Int("max_concurrent", o.maxConcurrent).
			Msg("enrichment pass started")

		var succeeded, failed, created atomic.Int64
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.maxConcurrent)
		for _, rec := range records {
			rec := rec
			g.Go(func() error {
				newRecords, err := o.enrichRecord(gctx, rec)
				created.Add(newRecords)
				if err != nil {
					failed.Add(1)
					log.Error().Int64("article_id", rec.ID).Str("doi", rec.DOINorm).Err(err).Msg("record enrichment failed")
					return nil
				}
				succeeded.Add(1)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		summary.Total += len(records)
		summary.Succeeded += int(succeeded.Load())
		summary.Failed += int(failed.Load())
		summary.NewRecords += int(created.Load())

		log.Info().
			Int("pass", pass).
			Int64("succeeded", succeeded.Load()).
			Int64("failed", failed.Load()).
			Int64("new_records", created.Load()).
			Msg("enrichment pass completed")

		// Later passes serve records created by version discovery; the
		// first pass always gets a follow-up so records whose persist
		// failed are retried.
		if pass > 1 && created.Load() == 0 {
			break
		}
	}
	return summary, nil
}

// enrichRecord runs the per-record stages in order: preprint resolution,
// abstract fallback chain, OA status. Stage failures degrade to reason
// tokens; the record is always stamped enriched so the run converges.
func (o *Orchestrator) enrichRecord(ctx context.Context, a *domain.ResearchArticle) (newRecords int64, err error) {
	var reasons []string
	provenance := domain.ProvenanceMap{}

	report, preErr := o.preprints.Process(ctx, a)
	if report != nil {
		for src, e := range report.Provenance {
			provenance[src] = e
		}
		if report.CreatedPublished {
			newRecords++
		}
	}
	if preErr != nil {
		log.Warn().Int64("article_id", a.ID).Str("doi", a.DOINorm).Err(preErr).Msg("preprint stage failed")
	}

	if !a.HasAbstract() {
		pipelineReasons, pipelineProv := o.abstracts.Run(ctx, a)
		reasons = append(reasons, pipelineReasons...)
		for src, e := range pipelineProv {
			provenance[src] = e
		}
	}

	oaProv, oaErr := o.oa.Enrich(ctx, a)
	for src, e := range oaProv {
		provenance[src] = e
	}
	if oaErr != nil {
		log.Warn().Int64("article_id", a.ID).Str("doi", a.DOINorm).Err(oaErr).Msg("oa stage failed")
	}

	if a.HasAbstract() {
		a.AbstractNoRetrievalReason = ""
	} else if len(reasons) > 0 {
		a.AbstractNoRetrievalReason = strings.Join(reasons, "; ")
	}

	if err := a.MergeProvenance(provenance); err != nil {
		return newRecords, fmt.Errorf("merge provenance: %w", err)
	}
	now := time.Now().UTC()
	a.EnrichmentDatetime = &now
	if err := o.repo.UpdateRecordEnrichment(ctx, a); err != nil {
		return newRecords, fmt.Errorf("persist enrichment: %w", err)
	}
	return newRecords, nil
}
