package enrich

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/phuslu/log"

	"github.com/scholarpipe/backend/internal/domain"
	"github.com/scholarpipe/backend/internal/ratelimit"
)

// abstractResult is what one source contributes to the pipeline.
type abstractResult struct {
	abstract string
	url      string
	raw      []byte
}

// abstractSource is one step of the fallback chain.
type abstractSource struct {
	name  string // display name used in failure reasons
	key   string // provenance key and rate-limit table entry
	fetch func(ctx context.Context, a *domain.ResearchArticle) (*abstractResult, error)
}

// AbstractPipeline tries sources in a fixed order until one supplies an
// abstract; the winner is recorded in AbstractSource and the chain
// short-circuits. Every attempted source that failed contributes a
// reason token.
type AbstractPipeline struct {
	sources []abstractSource
	limiter *ratelimit.Table
}

// NewAbstractPipeline builds the canonical fallback chain:
// Semantic Scholar, Crossref, OpenAlex, Europe PMC, PubMed.
func NewAbstractPipeline(clients *Clients, limiter *ratelimit.Table) *AbstractPipeline {
	return &AbstractPipeline{
		limiter: limiter,
		sources: []abstractSource{
			{
				name: "Semantic Scholar",
				key:  "semantic-scholar",
				fetch: func(ctx context.Context, a *domain.ResearchArticle) (*abstractResult, error) {
					paper, raw, err := clients.SemanticScholar.GetPaperByDOI(ctx, a.DOINorm)
					if err != nil {
						return nil, err
					}
					res := &abstractResult{url: clients.SemanticScholar.RequestURL(a.DOINorm), raw: raw}
					if paper != nil {
						res.abstract = paper.Abstract
						if paper.ArxivID != "" && a.ArxivID == "" {
							a.ArxivID = paper.ArxivID
						}
					}
					return res, nil
				},
			},
			{
				name: "Crossref",
				key:  "crossref",
				fetch: func(ctx context.Context, a *domain.ResearchArticle) (*abstractResult, error) {
					work, raw, err := clients.Crossref.GetWork(ctx, a.DOINorm)
					if err != nil {
						return nil, err
					}
					res := &abstractResult{url: clients.Crossref.RequestURL(a.DOINorm), raw: raw}
					if work != nil {
						res.abstract = work.Abstract
					}
					return res, nil
				},
			},
			{
				name: "OpenAlex",
				key:  "openalex",
				fetch: func(ctx context.Context, a *domain.ResearchArticle) (*abstractResult, error) {
					work, raw, err := clients.OpenAlex.GetWorkByDOI(ctx, a.DOINorm)
					if err != nil {
						return nil, err
					}
					res := &abstractResult{url: clients.OpenAlex.RequestURL(a.DOINorm), raw: raw}
					if work != nil {
						res.abstract = work.Abstract
					}
					return res, nil
				},
			},
			{
				name: "EuropePMC",
				key:  "europepmc",
				fetch: func(ctx context.Context, a *domain.ResearchArticle) (*abstractResult, error) {
					result, raw, err := clients.EuropePMC.SearchByDOI(ctx, a.DOINorm)
					if err != nil {
						return nil, err
					}
					res := &abstractResult{url: clients.EuropePMC.RequestURL(a.DOINorm), raw: raw}
					if result != nil {
						res.abstract = result.Abstract
					}
					return res, nil
				},
			},
			{
				name: "PubMed",
				key:  "pubmed",
				fetch: func(ctx context.Context, a *domain.ResearchArticle) (*abstractResult, error) {
					result, raw, err := clients.PubMed.GetAbstractByDOI(ctx, a.DOINorm)
					if err != nil {
						return nil, err
					}
					res := &abstractResult{url: clients.PubMed.RequestURL(a.DOINorm), raw: raw}
					if result != nil {
						res.abstract = result.Abstract
					}
					return res, nil
				},
			},
		},
	}
}

// Run walks the chain for one record. It mutates the record's Abstract
// and AbstractSource on success and returns the per-source failure
// reasons (in attempt order) plus the provenance entries of every
// attempted source.
func (p *AbstractPipeline) Run(ctx context.Context, a *domain.ResearchArticle) ([]string, domain.ProvenanceMap) {
	var reasons []string
	provenance := domain.ProvenanceMap{}

	if a.DOINorm == "" {
		reasons = append(reasons, "no DOI available for abstract lookup")
		return reasons, provenance
	}

	for _, src := range p.sources {
		if err := p.limiter.Wait(ctx, src.key); err != nil {
			reasons = append(reasons, fmt.Sprintf("%s: %s", src.name, err))
			return reasons, provenance
		}

		entry := domain.ProvenanceEntry{Source: src.key, Timestamp: time.Now().UTC()}
		result, err := src.fetch(ctx, a)
		if err != nil {
			entry.Error = err.Error()
			provenance[src.key] = entry
			reasons = append(reasons, fmt.Sprintf("%s: %s", src.name, err))
			log.Warn().Str("source", src.key).Str("doi", a.DOINorm).Err(err).Msg("abstract source failed")
			continue
		}
		entry.URL = result.url
		entry.Raw = result.raw
		provenance[src.key] = entry

		if strings.TrimSpace(result.abstract) != "" {
			a.Abstract = strings.TrimSpace(result.abstract)
			a.AbstractSource = src.key
			log.Info().Str("source", src.key).Str("doi", a.DOINorm).Msg("abstract retrieved")
			return reasons, provenance
		}
		reasons = append(reasons, fmt.Sprintf("%s: no abstract in response", src.name))
	}
	return reasons, provenance
}
