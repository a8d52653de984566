// Package registry holds the set of configured capability providers together
// with their live health state, and runs the background health monitor that
// refreshes that state without blocking request-path work.
//
// The Registry is the single owner of provider health. Health counters are
// updated under a per-provider lock so concurrent failure increments from the
// request path and the probe loop never clobber each other. IsEligible is the
// circuit-breaker gate consulted by the broker before every dispatch.
package registry
