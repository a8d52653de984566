// Package broker performs logical operations against named capability
// providers, honoring retry with exponential backoff, per-provider rate
// limits and the registry's circuit-breaker gate. It additionally offers a
// fallback-chain variant that tries alternate providers for the same service
// in a fixed, configuration-defined order.
//
// Every attempt outcome feeds back into the provider's live health snapshot,
// so request-path traffic sharpens the health picture between probe rounds.
package broker
