package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/phuslu/log"

	"github.com/scholarpipe/backend/internal/domain"
	"github.com/scholarpipe/backend/internal/ratelimit"
)

// OAEnricher resolves Open Access status and the best OA PDF location
// for a record via Unpaywall.
type OAEnricher struct {
	clients *Clients
	limiter *ratelimit.Table
}

func NewOAEnricher(clients *Clients, limiter *ratelimit.Table) *OAEnricher {
	return &OAEnricher{clients: clients, limiter: limiter}
}

// Enrich fills the record's OA fields and returns the provenance entry
// for the attempt. A missing DOI skips the lookup without error.
func (o *OAEnricher) Enrich(ctx context.Context, a *domain.ResearchArticle) (domain.ProvenanceMap, error) {
	provenance := domain.ProvenanceMap{}
	if a.DOINorm == "" {
		return provenance, nil
	}

	if err := o.limiter.Wait(ctx, "unpaywall"); err != nil {
		return provenance, err
	}

	entry := domain.ProvenanceEntry{
		Source:    "unpaywall",
		URL:       o.clients.Unpaywall.RequestURL(a.DOINorm),
		Timestamp: time.Now().UTC(),
	}
	result, raw, err := o.clients.Unpaywall.GetByDOI(ctx, a.DOINorm)
	entry.Raw = raw
	if err != nil {
		entry.Error = err.Error()
		provenance["unpaywall"] = entry
		return provenance, fmt.Errorf("unpaywall lookup: %w", err)
	}
	provenance["unpaywall"] = entry
	if result == nil {
		return provenance, nil
	}

	a.IsOA = result.IsOA
	a.OAStatus = result.OAStatus
	if result.License != "" {
		a.License = result.License
	}
	if result.OAPDFURL != "" {
		a.OAPDFURL = result.OAPDFURL
	}
	log.Debug().
		Str("doi", a.DOINorm).
		Bool("is_oa", a.IsOA).
		Str("oa_status", a.OAStatus).
		Msg("oa status resolved")
	return provenance, nil
}
