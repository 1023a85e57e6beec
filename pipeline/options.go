package pipeline

// Options are per-query overrides of the configured defaults. A nil
// *Options or a zero field falls back to configuration.
type Options struct {
	// MaxChunks overrides the number of vector candidates requested.
	MaxChunks int

	// MinRelevanceScore overrides the similarity threshold below which
	// candidates are dropped.
	MinRelevanceScore *float64

	// RepositoryFilter restricts search to one repository when set.
	RepositoryFilter string

	// DocTypeFilter restricts search to one document type when set.
	DocTypeFilter string

	// UseCrossRepoLinks overrides whether linked documents of the top
	// result are fetched.
	UseCrossRepoLinks *bool
}

// WithMinRelevanceScore returns a copy of opts with the threshold set.
// Convenience for building per-call overrides of a float pointer field.
func (o Options) WithMinRelevanceScore(score float64) Options {
	o.MinRelevanceScore = &score
	return o
}

// WithCrossRepoLinks returns a copy of opts with the cross-repo flag set.
func (o Options) WithCrossRepoLinks(enabled bool) Options {
	o.UseCrossRepoLinks = &enabled
	return o
}
