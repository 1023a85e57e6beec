// Package llm defines the consumed LLM provider contract and the tier
// system used to select a capability/cost class per call site.
//
// The query pipeline never talks to a model vendor directly; it calls
// Provider.Generate with a Tier and leaves model routing to the host
// application. Tiers decouple "what quality of model does this call site
// need" from "which concrete model serves it":
//
//   - TierFast: cheap, low-latency calls (classification, expansion)
//   - TierBalanced: mid-range calls (summarization, extraction)
//   - TierSynthesis: the strongest configured model, used for final
//     answer synthesis over retrieved context
package llm
