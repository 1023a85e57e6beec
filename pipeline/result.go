package pipeline

// NoRelevantDocumentsAnswer is the fixed answer returned when every
// vector candidate falls below the relevance threshold. The LLM is never
// invoked in that case.
const NoRelevantDocumentsAnswer = "No relevant documents found for your query."

// Result is the pipeline's terminal output, immutable once returned.
type Result struct {
	// Answer is the synthesized answer text, verbatim from the model.
	Answer string `json:"answer"`

	// Sources cites the chunks the answer was synthesized from, in
	// descending relevance order.
	Sources []Source `json:"sources"`

	// RelatedConcepts are concept names linked to the sources, enriched
	// with cross-repository related names. Deduplicated, insertion order
	// preserved.
	RelatedConcepts []string `json:"related_concepts"`

	// LinkedDocuments are IDs of documents linked to the top result's
	// document, when cross-repo links are enabled.
	LinkedDocuments []string `json:"linked_documents,omitempty"`

	// Confidence combines average relevance and result coverage, always
	// in [0, 1] and zero exactly when Sources is empty.
	Confidence float64 `json:"confidence"`

	// Enrichment reports which best-effort enrichment steps degraded.
	Enrichment Enrichment `json:"enrichment,omitempty"`
}

// Source cites one chunk that contributed to the answer.
type Source struct {
	// DocumentID is the owning document's ID.
	DocumentID string `json:"document_id"`

	// ChunkID is the cited chunk's ID.
	ChunkID string `json:"chunk_id"`

	// Repository is the source repository.
	Repository string `json:"repository"`

	// FilePath is the source file path within the repository.
	FilePath string `json:"file_path"`

	// RelevanceScore is the originating vector search score, before any
	// boosting. Confidence is computed separately.
	RelevanceScore float64 `json:"relevance_score"`
}

// StepStatus reports the outcome of one best-effort enrichment step. The
// zero value means the step completed (or was skipped) without degrading
// the result.
type StepStatus struct {
	// Degraded is true when the step failed and its contribution is
	// missing from the result.
	Degraded bool `json:"degraded,omitempty"`

	// Reason is the failure description when Degraded.
	Reason string `json:"reason,omitempty"`
}

// Enrichment makes the "enrichment may silently fail" contract visible on
// the result instead of hiding it in logs: each best-effort step reports
// whether its contribution is present.
type Enrichment struct {
	// Concepts covers the linked-concept lookup.
	Concepts StepStatus `json:"concepts,omitempty"`

	// LinkedDocuments covers the linked-document lookup for the top
	// result.
	LinkedDocuments StepStatus `json:"linked_documents,omitempty"`

	// CrossRepo covers cross-repository entity resolution.
	CrossRepo StepStatus `json:"cross_repo,omitempty"`
}

// IsDegraded reports whether any enrichment step degraded.
func (e Enrichment) IsDegraded() bool {
	return e.Concepts.Degraded || e.LinkedDocuments.Degraded || e.CrossRepo.Degraded
}
