package enrich

import (
	"github.com/scholarpipe/backend/internal/config"
	"github.com/scholarpipe/backend/internal/httpx"
	"github.com/scholarpipe/backend/pkg/arxiv"
	"github.com/scholarpipe/backend/pkg/biorxiv"
	"github.com/scholarpipe/backend/pkg/crossref"
	"github.com/scholarpipe/backend/pkg/europepmc"
	"github.com/scholarpipe/backend/pkg/openalex"
	"github.com/scholarpipe/backend/pkg/preprintsorg"
	"github.com/scholarpipe/backend/pkg/pubmed"
	"github.com/scholarpipe/backend/pkg/semanticscholar"
	"github.com/scholarpipe/backend/pkg/unpaywall"
)

// Clients bundles the external API clients the orchestrator queries.
type Clients struct {
	Crossref        *crossref.Client
	OpenAlex        *openalex.Client
	EuropePMC       *europepmc.Client
	PubMed          *pubmed.Client
	SemanticScholar *semanticscholar.Client
	Unpaywall       *unpaywall.Client
	Arxiv           *arxiv.Client
	Biorxiv         *biorxiv.Client
	PreprintsOrg    *preprintsorg.Client
}

// NewClients wires every source adapter onto the shared HTTP client.
func NewClients(httpClient *httpx.Client, cfg *config.Config) *Clients {
	return &Clients{
		Crossref:        crossref.NewClient(httpClient),
		OpenAlex:        openalex.NewClient(httpClient, cfg.ContactEmail),
		EuropePMC:       europepmc.NewClient(httpClient),
		PubMed:          pubmed.NewClient(httpClient),
		SemanticScholar: semanticscholar.NewClient(httpClient, cfg.SemanticScholarAPIKey),
		Unpaywall:       unpaywall.NewClient(httpClient, cfg.ContactEmail),
		Arxiv:           arxiv.NewClient(httpClient),
		Biorxiv:         biorxiv.NewClient(httpClient),
		PreprintsOrg:    preprintsorg.NewClient(httpClient),
	}
}
