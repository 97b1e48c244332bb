package catalog

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/wowplug/wowplug/pkg/logging"
	"github.com/wowplug/wowplug/pkg/types"
)

// Provider serves a collection of addons from one remote source.
type Provider interface {
	// Name identifies the provider in logs and candidate sources.
	Name() string

	// Entries lists the addons the provider can serve. Confidence on the
	// returned candidates is unset; the resolver scores them.
	Entries(ctx context.Context) ([]types.Candidate, error)
}

// ResolverOptions tunes candidate ranking.
type ResolverOptions struct {
	MaxCandidates int
	Blacklist     []string
}

// MultiResolver implements types.Resolver over a set of providers. It
// caches provider listings for the lifetime of one run.
type MultiResolver struct {
	providers []Provider
	opts      ResolverOptions
	logger    zerolog.Logger

	mu      sync.Mutex
	entries []types.Candidate
	listed  bool
	listErr error
}

// NewResolver creates a resolver over the given providers.
func NewResolver(providers []Provider, opts ResolverOptions) *MultiResolver {
	return &MultiResolver{
		providers: providers,
		opts:      opts,
		logger:    logging.GetLogger("resolver"),
	}
}

// Resolve returns ranked candidates for name. A non-empty hint bypasses
// fuzzy matching entirely: the hint is trusted as the source with full
// confidence, matching the manifest author's explicit intent.
func (r *MultiResolver) Resolve(ctx context.Context, name, hint string) ([]types.Candidate, error) {
	if hint != "" {
		return []types.Candidate{{
			Name:       name,
			Source:     hint,
			Confidence: 1.0,
		}}, nil
	}

	entries, err := r.listAll(ctx)
	if err != nil {
		return nil, err
	}

	ranked := Rank(name, entries, r.opts.Blacklist, r.opts.MaxCandidates)
	r.logger.Debug().
		Str("addon", name).
		Int("candidates", len(ranked)).
		Msg("Catalog resolution complete")
	return ranked, nil
}

// listAll gathers every provider's entries once per run. A provider
// failure fails the listing; the engine records it per-addon rather than
// aborting the run.
func (r *MultiResolver) listAll(ctx context.Context) ([]types.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listed {
		return r.entries, r.listErr
	}
	r.listed = true

	var all []types.Candidate
	for _, p := range r.providers {
		entries, err := p.Entries(ctx)
		if err != nil {
			r.logger.Warn().Err(err).Str("provider", p.Name()).Msg("Provider listing failed")
			r.listErr = err
			return nil, err
		}
		all = append(all, entries...)
	}
	r.entries = all
	r.listErr = nil
	return all, nil
}
