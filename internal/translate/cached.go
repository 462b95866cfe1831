package translate

import (
	"context"

	"github.com/mgpai22/voxsrt/internal/cache"
	"github.com/mgpai22/voxsrt/internal/logging"
)

// CachedTranslator answers repeated lines from a cache.Store. Cache
// failures are logged and never fail a translation.
type CachedTranslator struct {
	Translator Translator
	Store      cache.Store
	Namespace  string // provider and model, so backends never share entries
	Logger     *logging.Logger
}

func NewCachedTranslator(
	next Translator,
	store cache.Store,
	namespace string,
	logger *logging.Logger,
) Translator {
	if store == nil {
		return next
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &CachedTranslator{
		Translator: next,
		Store:      store,
		Namespace:  namespace,
		Logger:     logger,
	}
}

func (c *CachedTranslator) Translate(
	ctx context.Context,
	text, source, target string,
) (string, error) {
	key := cache.Key(c.Namespace, source, target, text)

	cached, ok, err := c.Store.Get(ctx, key)
	if err != nil {
		c.Logger.Warnw("Translation cache read failed", "error", err)
	} else if ok {
		c.Logger.Debugw("Translation cache hit", "text", truncateString(text, 60))
		return cached, nil
	}

	out, err := c.Translator.Translate(ctx, text, source, target)
	if err != nil {
		return "", err
	}

	if err := c.Store.Put(ctx, key, out); err != nil {
		c.Logger.Warnw("Translation cache write failed", "error", err)
	}
	return out, nil
}
