// Package engine runs the routing pipeline end to end: it classifies the
// inbound message, selects a quality-of-service tier, assembles memory
// context, reserves budget with the cost sentinel, picks the target
// specialist and attaches a council verdict when the risk rules fire. The
// result is a single immutable RoutingDecision per request; outcomes reported
// afterwards feed the metrics store.
package engine
