package intent

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/hupe1980/capmesh/core"
)

// classifySystemPrompt instructs the completion capability to emit a compact
// JSON classification. The category list is rendered from the closed set so
// prompt and parser can never drift apart.
func classifySystemPrompt() string {
	cats := make([]string, len(core.Categories))
	for i, c := range core.Categories {
		cats[i] = string(c)
	}
	return fmt.Sprintf(`You are a message classifier. Respond with a single JSON object and nothing else:
{"category": one of [%s], "confidence": 0.0-1.0, "complexity": "simple"|"moderate"|"complex", "urgency": "low"|"medium"|"high", "requires_tools": true|false, "estimated_tokens": integer}`,
		strings.Join(cats, ", "))
}

// parseIntent leniently extracts an intent from model output. Fields that are
// missing or outside their closed sets fall back to the default intent's
// values; a payload with no recognizable category at all is rejected.
func parseIntent(raw string) (core.Intent, error) {
	// Models occasionally wrap JSON in prose or code fences; gjson tolerates
	// leading/trailing noise once we slice to the outermost object.
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return core.Intent{}, fmt.Errorf("no JSON object in classifier output")
	}
	doc := raw[start : end+1]
	if !gjson.Valid(doc) {
		return core.Intent{}, fmt.Errorf("invalid JSON in classifier output")
	}

	out := core.DefaultIntent()

	category := core.Category(gjson.Get(doc, "category").String())
	if !category.Valid() {
		return core.Intent{}, fmt.Errorf("unknown category %q", category)
	}
	out.Category = category

	if v := gjson.Get(doc, "confidence"); v.Exists() {
		c := v.Float()
		if c >= 0 && c <= 1 {
			out.Confidence = c
		}
	}
	if complexity := core.Complexity(gjson.Get(doc, "complexity").String()); complexity.Valid() {
		out.Complexity = complexity
	}
	if urgency := core.Urgency(gjson.Get(doc, "urgency").String()); urgency.Valid() {
		out.Urgency = urgency
	}
	out.RequiresTools = gjson.Get(doc, "requires_tools").Bool()
	if v := gjson.Get(doc, "estimated_tokens"); v.Exists() && v.Int() > 0 {
		out.EstimatedTokens = int(v.Int())
	}
	return out, nil
}
