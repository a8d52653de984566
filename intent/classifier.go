package intent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/capmesh/broker"
	"github.com/hupe1980/capmesh/core"
	"github.com/hupe1980/capmesh/logging"
)

// Context carries the caller-supplied conversation context used to enrich
// intents. The flags derived from it are never taken from model output.
type Context struct {
	ConversationID string
	HasHistory     bool
	IsFollowUp     bool
}

// Options configures a Classifier.
type Options struct {
	// Service is the fallback-chain service name used for classification
	// calls. Defaults to "completion".
	Service string
	// CacheTTL is the fixed time-to-live of cached classifications.
	// Defaults to 5 minutes.
	CacheTTL time.Duration
	// MaxTokens bounds the classification call. Defaults to 200.
	MaxTokens int
	// Logger defaults to NoOpLogger if nil.
	Logger logging.Logger
}

type cacheEntry struct {
	intent    core.Intent
	expiresAt time.Time
}

// Classifier maps messages to intents via the completion capability. Safe
// for concurrent use. Cache entries are immutable once written and simply
// expire; concurrent misses for the same content hash collapse into one
// underlying call.
type Classifier struct {
	broker    *broker.Broker
	service   string
	ttl       time.Duration
	maxTokens int
	logger    logging.Logger

	mu    sync.RWMutex
	cache map[string]cacheEntry
	group singleflight.Group

	now func() time.Time
}

// New constructs a Classifier over a broker.
func New(b *broker.Broker, optFns ...func(o *Options)) *Classifier {
	opts := Options{
		Service:   "completion",
		CacheTTL:  5 * time.Minute,
		MaxTokens: 200,
		Logger:    logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Classifier{
		broker:    b,
		service:   opts.Service,
		ttl:       opts.CacheTTL,
		maxTokens: opts.MaxTokens,
		cache:     make(map[string]cacheEntry),
		logger:    opts.Logger,
		now:       time.Now,
	}
}

// Classify returns the intent for a message. It never fails: broker errors
// and unparsable output degrade to the fixed default intent. Context flags
// are applied after cache retrieval so cached entries stay context free.
func (c *Classifier) Classify(ctx context.Context, message string, convCtx Context) core.Intent {
	key := contentHash(message)

	if intent, ok := c.cached(key); ok {
		return enrich(intent, convCtx)
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		if intent, ok := c.cached(key); ok {
			return intent, nil
		}
		intent, classified := c.classifyOnce(ctx, message)
		if classified {
			c.store(key, intent)
		}
		return intent, nil
	})
	if err != nil {
		// Unreachable with the closure above; kept so a future refactor
		// cannot silently drop the degradation path.
		return enrich(core.DefaultIntent(), convCtx)
	}
	return enrich(result.(core.Intent), convCtx)
}

// classifyOnce performs the single underlying classification call. The
// second return value reports whether the result is cacheable (a real model
// classification rather than the failure default).
func (c *Classifier) classifyOnce(ctx context.Context, message string) (core.Intent, bool) {
	params := map[string]any{
		"system":      classifySystemPrompt(),
		"prompt":      message,
		"max_tokens":  c.maxTokens,
		"temperature": 0.0,
	}
	raw, providerID, err := c.broker.InvokeWithFallback(ctx, c.service, core.OpComplete, params)
	if err != nil {
		c.logger.Warn("classification call failed, using default intent", "error", err)
		return core.DefaultIntent(), false
	}

	intent, parseErr := parseIntent(core.Text(raw))
	if parseErr != nil {
		c.logger.Warn("classification output unparsable, using default intent", "provider", providerID, "error", parseErr)
		return core.DefaultIntent(), false
	}
	c.logger.Debug("message classified", "provider", providerID, "category", string(intent.Category), "confidence", intent.Confidence)
	return intent, true
}

func (c *Classifier) cached(key string) (core.Intent, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[key]
	if !ok || c.now().After(entry.expiresAt) {
		return core.Intent{}, false
	}
	return entry.intent, true
}

func (c *Classifier) store(key string, intent core.Intent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[key] = cacheEntry{intent: intent, expiresAt: c.now().Add(c.ttl)}
}

// PruneExpired drops expired cache entries and returns the number removed.
// Intended for an external scheduler; correctness never depends on it since
// lookups check expiry themselves.
func (c *Classifier) PruneExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for k, e := range c.cache {
		if now.After(e.expiresAt) {
			delete(c.cache, k)
			removed++
		}
	}
	return removed
}

func enrich(intent core.Intent, convCtx Context) core.Intent {
	intent.HasContext = convCtx.HasHistory
	intent.IsFollowUp = convCtx.IsFollowUp
	return intent
}

func contentHash(message string) string {
	sum := sha256.Sum256([]byte(message))
	return hex.EncodeToString(sum[:])
}
