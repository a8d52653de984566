// Package core provides the foundational domain types used by CapMesh. It
// defines the core abstractions for:
//
//   - Providers (named handles to external capability endpoints) and their
//     live health state
//   - Capability kinds with a closed operation enumeration per kind
//   - Fallback chains (static ordered provider sequences per service)
//   - Intents (classification results driving routing)
//   - QoS tiers (token budget / timeout / cost multiplier bundles)
//   - Memory items and the assembled context snapshot
//   - Routing decisions, council verdicts and the shared error taxonomy
//
// The package intentionally keeps implementation concerns (registries, the
// broker, the orchestrator, concrete provider adapters) out of scope, exposing
// small types and interfaces to enable custom backends and extensions.
package core
