// Package intent maps raw input messages to routing intents using the
// completion capability through the broker. Results are cached by content
// hash with a fixed TTL, and concurrent classifications of identical content
// are collapsed into a single underlying call.
//
// Classification failure never blocks the pipeline: any broker error or
// unparsable model output degrades to a fixed default intent.
package intent
